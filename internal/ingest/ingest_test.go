package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/anprsight/vision-core/internal/logging"
)

var errReadFailed = errors.New("synthetic read failure")

// fakeDecoder produces a fixed number of synthetic frames, then fails
// until it is reopened (Open resets the count), so tests can exercise
// the reconnect path without a real
// camera (mirrors the teacher's FakeDetector pattern).
type fakeDecoder struct {
	mu        sync.Mutex
	opens     int
	failAfter int
	served    int
}

func (d *fakeDecoder) Open(url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opens++
	d.served = 0
	return nil
}

func (d *fakeDecoder) Read() (gocv.Mat, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.served >= d.failAfter {
		return gocv.Mat{}, errReadFailed
	}
	d.served++
	return gocv.NewMatWithSize(4, 4, gocv.MatTypeCV8UC3), nil
}

func (d *fakeDecoder) Close() error { return nil }

func TestStreamBuffersFramesInOrder(t *testing.T) {
	dec := &fakeDecoder{failAfter: 5}
	s := NewWithDecoder(Config{BufferSize: 10, ReconnectDelay: 10 * time.Millisecond}, dec, logging.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Start(ctx))
	defer s.Stop()

	for i := 0; i < 5; i++ {
		f, err := s.Read(time.Second)
		require.NoError(t, err)
		require.Equal(t, int64(i+1), f.Seq)
		f.Close()
	}
}

func TestStreamDropsOldestWhenBufferFull(t *testing.T) {
	dec := &fakeDecoder{failAfter: 1000}
	s := NewWithDecoder(Config{BufferSize: 3, ReconnectDelay: 10 * time.Millisecond}, dec, logging.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Start(ctx))
	defer s.Stop()

	time.Sleep(50 * time.Millisecond)

	s.mu.Lock()
	bufLen := len(s.buf)
	s.mu.Unlock()
	require.LessOrEqual(t, bufLen, 3)
}

func TestReadTimesOutWhenNoFrames(t *testing.T) {
	dec := &fakeDecoder{failAfter: 0}
	s := NewWithDecoder(Config{BufferSize: 3, ReconnectDelay: time.Hour}, dec, logging.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Start(ctx))
	defer s.Stop()

	_, err := s.Read(50 * time.Millisecond)
	require.Error(t, err)
}

// failoverDecoder tracks Open attempts per URL so tests can assert the
// two-phase (primary-exhausted-then-backup) reconnect policy, rather
// than the interleaved per-attempt alternation it replaces.
type failoverDecoder struct {
	mu          sync.Mutex
	failURLs    map[string]bool
	opensByURL  map[string]int
	openOrder   []string
}

func newFailoverDecoder(failURLs ...string) *failoverDecoder {
	fail := make(map[string]bool, len(failURLs))
	for _, u := range failURLs {
		fail[u] = true
	}
	return &failoverDecoder{failURLs: fail, opensByURL: make(map[string]int)}
}

func (d *failoverDecoder) Open(url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opensByURL[url]++
	d.openOrder = append(d.openOrder, url)
	if d.failURLs[url] {
		return errReadFailed
	}
	return nil
}

func (d *failoverDecoder) Read() (gocv.Mat, error) {
	return gocv.NewMatWithSize(4, 4, gocv.MatTypeCV8UC3), nil
}

func (d *failoverDecoder) Close() error { return nil }

func (d *failoverDecoder) attempts(url string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opensByURL[url]
}

func TestStartExhaustsPrimaryBeforeTryingBackup(t *testing.T) {
	dec := newFailoverDecoder("primary")
	s := NewWithDecoder(Config{
		PrimaryURL:           "primary",
		BackupURL:            "backup",
		MaxReconnectAttempts: 3,
		ReconnectDelay:       time.Millisecond,
	}, dec, logging.NewNop())

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	require.Equal(t, 3, dec.attempts("primary"))
	require.Equal(t, 1, dec.attempts("backup"))

	dec.mu.Lock()
	order := append([]string(nil), dec.openOrder...)
	dec.mu.Unlock()
	for i := 0; i < 3; i++ {
		require.Equal(t, "primary", order[i])
	}
	require.Equal(t, "backup", order[3])
}

func TestStartSurfacesFatalErrorWhenBothPhasesExhausted(t *testing.T) {
	dec := newFailoverDecoder("primary", "backup")
	s := NewWithDecoder(Config{
		PrimaryURL:           "primary",
		BackupURL:            "backup",
		MaxReconnectAttempts: 2,
		ReconnectDelay:       time.Millisecond,
	}, dec, logging.NewNop())

	err := s.Start(context.Background())
	require.Error(t, err)
	require.Equal(t, 2, dec.attempts("primary"))
	require.Equal(t, 2, dec.attempts("backup"))
}

// onceThenFailDecoder always fails to open the primary URL, opens the
// backup URL successfully exactly once (letting Start succeed), and
// fails every Read, forcing the capture loop into a reconnect on its
// very first iteration, by which point the backup is also exhausted.
type onceThenFailDecoder struct {
	mu          sync.Mutex
	backupOpens int
}

func (d *onceThenFailDecoder) Open(url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if url == "primary" {
		return errReadFailed
	}
	d.backupOpens++
	if d.backupOpens == 1 {
		return nil
	}
	return errReadFailed
}

func (d *onceThenFailDecoder) Read() (gocv.Mat, error) {
	return gocv.Mat{}, errReadFailed
}

func (d *onceThenFailDecoder) Close() error { return nil }

func TestStreamGivesUpAfterForcedReconnectExhaustsBothPhases(t *testing.T) {
	s := NewWithDecoder(Config{
		PrimaryURL:                  "primary",
		BackupURL:                   "backup",
		BufferSize:                  3,
		MaxReconnectAttempts:        2,
		ReconnectDelay:              time.Millisecond,
		ForceReconnectAfterFailures: 1,
	}, &onceThenFailDecoder{}, logging.NewNop())

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	require.Eventually(t, func() bool {
		return s.Err() != nil
	}, time.Second, 5*time.Millisecond)

	_, err := s.Read(50 * time.Millisecond)
	require.Error(t, err)
}
