package supervise

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGoRunsOnExitOnNormalReturn(t *testing.T) {
	var g Group
	var exited atomic.Bool

	g.Go(func() {
		time.Sleep(10 * time.Millisecond)
	}, func() {
		exited.Store(true)
	})

	g.Wait()
	require.True(t, exited.Load())
}

func TestWaitBlocksUntilAllGoroutinesExit(t *testing.T) {
	var g Group
	var count atomic.Int32

	for i := 0; i < 5; i++ {
		g.Go(func() {
			time.Sleep(5 * time.Millisecond)
			count.Add(1)
		}, func() {})
	}

	g.Wait()
	require.EqualValues(t, 5, count.Load())
}

func TestGoRecoversFromPanic(t *testing.T) {
	var g Group
	var exited atomic.Bool

	require.NotPanics(t, func() {
		g.Go(func() {
			panic("synthetic panic")
		}, func() {
			exited.Store(true)
		})
		g.Wait()
	})

	require.True(t, exited.Load())
}
