// Command anprsight is the pipeline entrypoint: it loads configuration,
// wires every collaborator (ingest, detection, tracking, prioritization,
// plate proposal, PTZ control, storage, the event bus), and runs the
// orchestrator until signaled to stop. The overall shape mirrors the
// teacher's main.go/mainWithArgs split, hand-rolled here instead of
// go.viam.com/utils.ContextualMain since that helper is bound to the
// RDK module lifecycle this service does not have (see DESIGN.md).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anprsight/vision-core/internal/bus"
	"github.com/anprsight/vision-core/internal/config"
	"github.com/anprsight/vision-core/internal/detect"
	"github.com/anprsight/vision-core/internal/geometry"
	"github.com/anprsight/vision-core/internal/ingest"
	"github.com/anprsight/vision-core/internal/logging"
	"github.com/anprsight/vision-core/internal/orchestrator"
	"github.com/anprsight/vision-core/internal/plate"
	"github.com/anprsight/vision-core/internal/prioritize"
	"github.com/anprsight/vision-core/internal/ptz"
	"github.com/anprsight/vision-core/internal/store"
	"github.com/anprsight/vision-core/internal/tracker"
)

const shutdownGrace = 5 * time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("anprsight", flag.ContinueOnError)
	configPath := fs.String("config", "config.yaml", "path to the pipeline configuration file")
	debug := fs.Bool("debug", false, "enable debug-level logging")
	detectorURL := fs.String("detector-url", "", "HTTP endpoint of the external object detector (overrides ANPRSIGHT_DETECTOR_URL)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *detectorURL == "" {
		*detectorURL = os.Getenv("ANPRSIGHT_DETECTOR_URL")
	}

	logger, err := logging.New("anprsight", *debug)
	if err != nil {
		return fmt.Errorf("constructing logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return mainWithContext(ctx, *configPath, *detectorURL, logger)
}

func mainWithContext(ctx context.Context, configPath, detectorURL string, logger logging.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	eventBus, err := bus.Connect(bus.Config{
		URL:           os.Getenv("ANPRSIGHT_NATS_URL"),
		ConsumerGroup: "anprsight-pipeline",
	}, logger.Named("bus"))
	if err != nil {
		return fmt.Errorf("connecting to event bus: %w", err)
	}
	defer eventBus.Close()

	stream := ingest.New(ingest.Config{
		PrimaryURL:                  cfg.RTSP.PrimaryURL,
		BackupURL:                   cfg.RTSP.BackupURL,
		BufferSize:                  cfg.RTSP.FrameBufferSize,
		MaxReconnectAttempts:        cfg.RTSP.MaxReconnectAttempts,
		ReconnectDelay:              time.Duration(cfg.RTSP.ReconnectDelaySeconds * float64(time.Second)),
		ForceReconnectAfterFailures: 30,
	}, logger.Named("ingest"))
	if err := stream.Start(ctx); err != nil {
		return fmt.Errorf("starting ingest stream: %w", err)
	}
	defer stream.Stop()

	device := ptz.NewONVIFDevice(ptz.ONVIFConfig{
		Host:           cfg.PTZ.ONVIF.Host,
		Port:           cfg.PTZ.ONVIF.Port,
		Username:       cfg.PTZ.ONVIF.Username,
		Password:       cfg.PTZ.ONVIF.Password,
		UseDigestAuth:  cfg.PTZ.ONVIF.UseDigestAuth,
		TimeoutSeconds: cfg.PTZ.ONVIF.TimeoutSeconds,
	}, logger.Named("ptz.device"))

	presets := ptz.NewPresetManager(nil)
	controller := ptz.New(ptz.Config{
		HysteresisPixels: cfg.PTZ.Control.HysteresisPixels,
		ZoomStep:         cfg.PTZ.Control.ZoomStep,
		MoveRateLimit:    time.Duration(cfg.PTZ.Control.MoveRateLimitMs) * time.Millisecond,
		IdleEnabled:      cfg.PTZ.IdleBehavior.Enabled,
		IdleTimeout:      time.Duration(cfg.PTZ.IdleBehavior.TimeoutSeconds * float64(time.Second)),
		ReturnToPreset:   cfg.PTZ.IdleBehavior.ReturnToPreset,
		SweepEnabled:     cfg.PTZ.IdleBehavior.SweepEnabled,
		SweepInterval:    time.Duration(cfg.PTZ.IdleBehavior.SweepIntervalSeconds * float64(time.Second)),
	}, device, presets, logger.Named("ptz.controller"))

	controller.StartupSweep(ctx)

	trk, err := tracker.New(tracker.Config{
		MaxAge:             cfg.Tracking.MaxAge,
		MinHits:            cfg.Tracking.MinHits,
		IoUThreshold:       cfg.Tracking.IoUThreshold,
		AssociationMode:    parseAssociationMode(cfg.Tracking.AssociationMode),
		TrajectoryCapacity: 30,
	})
	if err != nil {
		return fmt.Errorf("constructing tracker: %w", err)
	}

	prio := prioritize.New(prioritize.Config{
		Strategy:            parsePrioritizationStrategy(cfg.Prioritization),
		MinTargetSizePixels: cfg.Prioritization.MinTargetSizePixels,
	})

	proposer := plate.New(plate.Config{
		MinPlateHeightPixels: cfg.ANPR.MinPlateHeightPixels,
		TargetPlateHeight:    cfg.ANPR.Capture.ZoomTargetPlateHeight,
		StabilityFrames:      cfg.ANPR.Capture.StabilityFrames,
	})

	var uploader store.Uploader
	st := store.New(cfg.Crop.Dir, uploader)

	if detectorURL == "" {
		return fmt.Errorf("no detector endpoint configured (pass -detector-url or set ANPRSIGHT_DETECTOR_URL)")
	}
	detector := detect.NewHTTPDetector(nil, detectorURL)

	orch := orchestrator.New(orchestrator.Config{
		MaxFrequencyHz: 30,
		FrameTimeout:   200 * time.Millisecond,
	}, stream, detector, trk, prio, proposer, controller, st, eventBus, logger.Named("orchestrator"))

	bg := startBackground(ctx, controller, eventBus, logger.Named("ptz.background"))

	runErr := orch.Run(ctx)

	// ctx is already cancelled by the time Run returns (normal exit only
	// happens on ctx.Done); bg.stop joins the idle-monitor and
	// status-publisher goroutines within the shutdown grace period.
	stopped := make(chan struct{})
	go func() {
		bg.stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(shutdownGrace):
		logger.Warnw("background goroutines did not stop within grace period")
	}

	return runErr
}

func parseAssociationMode(s string) tracker.AssociationMode {
	switch s {
	case "hungarian":
		return tracker.Hungarian
	default:
		return tracker.Greedy
	}
}

func parsePrioritizationStrategy(cfg config.PrioritizationConfig) prioritize.Strategy {
	zones := make([]prioritize.Zone, 0, len(cfg.ROIZones))
	for _, z := range cfg.ROIZones {
		zones = append(zones, prioritize.Zone{
			Name:    z.Name,
			Weight:  z.Weight,
			Polygon: toPoints(z.Polygon),
		})
	}
	return prioritize.Strategy{
		Kind: prioritize.Kind(cfg.Strategy),
		Weights: prioritize.Weights{
			Proximity: cfg.Weights.Proximity,
			ROI:       cfg.Weights.ROI,
			Speed:     cfg.Weights.Speed,
			Novelty:   cfg.Weights.Novelty,
		},
		Zones: zones,
	}
}

// toPoints converts the config's [][]float64 polygon representation
// into geometry.Point2D vertices, skipping entries with fewer than two
// values.
func toPoints(polygon [][]float64) []geometry.Point2D {
	points := make([]geometry.Point2D, 0, len(polygon))
	for _, v := range polygon {
		if len(v) < 2 {
			continue
		}
		points = append(points, geometry.Point2D{X: v[0], Y: v[1]})
	}
	return points
}
