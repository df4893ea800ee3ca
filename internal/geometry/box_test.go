package geometry

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBoxCenterRoundTrip(t *testing.T) {
	original := NewBox(100, 100, 300, 260)
	cx, cy := original.Center()
	w, h := original.Width(), original.Height()

	rebuilt := FromCenter(cx, cy, w, h)

	require.InDelta(t, original.X1, rebuilt.X1, 1e-9)
	require.InDelta(t, original.Y1, rebuilt.Y1, 1e-9)
	require.InDelta(t, original.X2, rebuilt.X2, 1e-9)
	require.InDelta(t, original.Y2, rebuilt.Y2, 1e-9)
}

func TestIoUNoOverlap(t *testing.T) {
	a := NewBox(0, 0, 10, 10)
	b := NewBox(20, 20, 30, 30)
	require.Zero(t, a.IoU(b))
}

func TestIoUZeroArea(t *testing.T) {
	a := NewBox(0, 0, 10, 10)
	b := NewBox(5, 5, 5, 8)
	require.Zero(t, a.IoU(b))
}

func TestIoUIdentical(t *testing.T) {
	a := NewBox(0, 0, 10, 10)
	require.InDelta(t, 1.0, a.IoU(a), 1e-9)
}

func TestIoUPartialOverlap(t *testing.T) {
	a := NewBox(0, 0, 10, 10)
	b := NewBox(5, 5, 15, 15)
	// intersection: 5x5 = 25, union: 100+100-25 = 175
	require.InDelta(t, 25.0/175.0, a.IoU(b), 1e-9)
}

func TestNewBoxNormalizesCorners(t *testing.T) {
	b := NewBox(10, 10, 0, 0)
	require.Equal(t, Box{0, 0, 10, 10}, b)
}

func TestDistance(t *testing.T) {
	a := NewBox(0, 0, 10, 10)
	b := NewBox(10, 0, 20, 10)
	require.InDelta(t, 10.0, a.Distance(b), 1e-9)
}
