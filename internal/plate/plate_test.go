package plate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anprsight/vision-core/internal/geometry"
)

func TestEstimateRegion(t *testing.T) {
	vehicle := geometry.NewBox(0, 0, 200, 400) // width 200, height 400
	region := EstimateRegion(vehicle)

	require.InDelta(t, 60.0, region.Height(), 1e-9)  // 15% of 400
	require.InDelta(t, 120.0, region.Width(), 1e-9)   // 60% of 200
	cx, _ := region.Center()
	require.InDelta(t, 100.0, cx, 1e-9) // horizontally centered
	require.InDelta(t, 400-0.25*400, region.Y1, 1e-9)
}

// TestCaptureReadinessScenario is spec.md §8 scenario 5.
func TestCaptureReadinessScenario(t *testing.T) {
	p := New(Config{
		MinPlateHeightPixels: 30,
		TargetPlateHeight:    60,
		StabilityFrames:      3,
	})

	vehicle := geometry.NewBox(0, 0, 800, 400) // plate height = 60

	_, v1 := p.Propose(1, vehicle)
	require.False(t, v1.Ready)

	_, v2 := p.Propose(1, vehicle)
	require.False(t, v2.Ready)

	_, v3 := p.Propose(1, vehicle)
	require.True(t, v3.Ready)
	require.InDelta(t, 1.0, v3.Zoom, 1e-9)
}

func TestStabilityResetsOnTargetSwitch(t *testing.T) {
	p := New(Config{MinPlateHeightPixels: 10, TargetPlateHeight: 60, StabilityFrames: 2})
	vehicle := geometry.NewBox(0, 0, 800, 400)

	_, v1 := p.Propose(1, vehicle)
	require.False(t, v1.Ready)

	// switch to a different target, then back
	p.Propose(2, vehicle)
	_, v := p.Propose(1, vehicle)
	require.False(t, v.Ready) // stability counter was reset, back to 1
}

func TestExplicitResetStability(t *testing.T) {
	p := New(Config{MinPlateHeightPixels: 10, TargetPlateHeight: 60, StabilityFrames: 2})
	vehicle := geometry.NewBox(0, 0, 800, 400)

	p.Propose(1, vehicle)
	_, v := p.Propose(1, vehicle)
	require.True(t, v.Ready)

	p.ResetStability(1)
	_, v2 := p.Propose(1, vehicle)
	require.False(t, v2.Ready)
}

func TestNotReadyBelowMinimumPlateHeight(t *testing.T) {
	p := New(Config{MinPlateHeightPixels: 100, TargetPlateHeight: 200, StabilityFrames: 1})
	vehicle := geometry.NewBox(0, 0, 800, 400) // plate height = 60 < 100

	_, v := p.Propose(1, vehicle)
	require.False(t, v.Ready)
	require.InDelta(t, 200.0/60.0, v.Zoom, 1e-6)
}

func TestCleanupRemovesInactiveIDs(t *testing.T) {
	p := New(Config{MinPlateHeightPixels: 10, TargetPlateHeight: 60, StabilityFrames: 1})
	vehicle := geometry.NewBox(0, 0, 800, 400)

	p.Propose(1, vehicle)
	p.Propose(2, vehicle)
	p.Cleanup(map[int]struct{}{2: {}})

	require.NotContains(t, p.stability, 1)
	require.Contains(t, p.stability, 2)
}
