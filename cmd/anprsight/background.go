package main

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/anprsight/vision-core/internal/bus"
	"github.com/anprsight/vision-core/internal/logging"
	"github.com/anprsight/vision-core/internal/ptz"
	"github.com/anprsight/vision-core/internal/supervise"
)

const (
	idleMonitorInterval    = time.Second
	statusPublisherInterval = 2 * time.Second
)

// background runs the PTZ idle-monitor and status-publisher loops
// (SPEC_FULL.md §4.5's implementation notes), supervised by a
// supervise.Group the way the teacher's ManagedGo background goroutines
// are, so shutdown can join them deterministically.
type background struct {
	group *supervise.Group
}

// startBackground launches the idle-monitor and status-publisher
// goroutines, both driven off controller.CurrentState/Tick, and returns
// a handle whose stop() joins both before returning.
func startBackground(ctx context.Context, controller *ptz.Controller, eventBus *bus.Bus, logger logging.Logger) *background {
	group := &supervise.Group{}
	bg := &background{group: group}

	group.Go(func() {
		ticker := time.NewTicker(idleMonitorInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				controller.Tick(ctx)
			}
		}
	}, func() {
		logger.Infow("idle monitor stopped")
	})

	group.Go(func() {
		ticker := time.NewTicker(statusPublisherInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				publishStatus(controller, eventBus, logger)
			}
		}
	}, func() {
		logger.Infow("status publisher stopped")
	})

	return bg
}

func publishStatus(controller *ptz.Controller, eventBus *bus.Bus, logger logging.Logger) {
	if eventBus == nil {
		return
	}
	snap := controller.CurrentState()
	err := eventBus.Publish(bus.TopicPTZStatus, bus.PTZStatusEvent{
		EventID:   uuid.NewString(),
		Timestamp: time.Now(),
		Pan:       snap.LastTargetX,
		Tilt:      snap.LastTargetY,
		Zoom:      snap.Zoom,
		IsMoving:  false, // open question (b): the device never reports this; see ptz.Status.IsMoving.
	})
	if err != nil {
		logger.Errorw("publishing ptz status failed", "err", err)
	}
}

func (b *background) stop() {
	b.group.Wait()
}
