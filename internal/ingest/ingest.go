// Package ingest implements Stream Ingest: RTSP capture, a bounded
// drop-oldest frame buffer, reconnect with a fixed delay between
// attempts, and FPS tracking,
// per spec.md §4.1. The capture loop follows the teacher's `run()`
// shape in object_tracker.go: a supervised goroutine selecting on
// ctx.Done() with a default branch doing one iteration of work.
package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/bluenviron/gortsplib/v4"
	"github.com/bluenviron/gortsplib/v4/pkg/base"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/anprsight/vision-core/internal/logging"
	"github.com/anprsight/vision-core/internal/supervise"
)

// Config configures a Stream.
type Config struct {
	PrimaryURL                string
	BackupURL                 string
	BufferSize                int
	MaxReconnectAttempts      int
	ReconnectDelay            time.Duration
	ForceReconnectAfterFailures int
}

// Frame is one decoded video frame, timestamped at capture.
type Frame struct {
	Mat       gocv.Mat
	Timestamp time.Time
	Seq       int64
}

// Close releases the frame's underlying Mat.
func (f Frame) Close() error {
	return f.Mat.Close()
}

// Decoder black-boxes how an RTSP source is turned into decoded
// frames, so tests can substitute a synthetic frame source the way the
// teacher's tests substitute a fake vision.Service (tracker_test.go).
type Decoder interface {
	// Open connects to url and prepares to produce frames.
	Open(url string) error
	// Read blocks for at most one frame or returns an error.
	Read() (gocv.Mat, error)
	// Close releases the underlying capture resource.
	Close() error
}

// gocvDecoder decodes an RTSP source via ffmpeg's RTSP demuxer through
// gocv.VideoCapture, generalized from the teacher pack's
// MiFaceDEV/miface OpenCVCamera (USB device id) to an arbitrary URL.
type gocvDecoder struct {
	cap *gocv.VideoCapture
}

func (d *gocvDecoder) Open(url string) error {
	cap, err := gocv.OpenVideoCapture(url)
	if err != nil {
		return errors.Wrapf(err, "opening rtsp source %s", url)
	}
	if !cap.IsOpened() {
		cap.Close()
		return errors.Errorf("rtsp source %s did not open", url)
	}
	d.cap = cap
	return nil
}

func (d *gocvDecoder) Read() (gocv.Mat, error) {
	mat := gocv.NewMat()
	if ok := d.cap.Read(&mat); !ok {
		mat.Close()
		return gocv.Mat{}, errors.New("rtsp read failed")
	}
	if mat.Empty() {
		mat.Close()
		return gocv.Mat{}, errors.New("rtsp frame empty")
	}
	return mat, nil
}

func (d *gocvDecoder) Close() error {
	if d.cap == nil {
		return nil
	}
	return d.cap.Close()
}

// NewGoCVDecoder returns the default Decoder, backed by gocv's ffmpeg
// RTSP demuxer.
func NewGoCVDecoder() Decoder {
	return &gocvDecoder{}
}

// Stream is one RTSP source's capture pipeline: connect, decode,
// buffer, reconnect, and report FPS.
type Stream struct {
	cfg     Config
	decoder Decoder
	logger  logging.Logger

	mu        sync.Mutex
	buf       []Frame
	seq       int64
	fpsWindow []time.Time

	consecutiveFailures int
	fatalErr            error

	group  *supervise.Group
	cancel context.CancelFunc
	newCh  chan struct{}
}

// New constructs a Stream using the default gocv-backed Decoder.
func New(cfg Config, logger logging.Logger) *Stream {
	return NewWithDecoder(cfg, NewGoCVDecoder(), logger)
}

// NewWithDecoder constructs a Stream with a caller-supplied Decoder,
// primarily for tests.
func NewWithDecoder(cfg Config, decoder Decoder, logger logging.Logger) *Stream {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 30
	}
	if cfg.ForceReconnectAfterFailures <= 0 {
		cfg.ForceReconnectAfterFailures = 30
	}
	return &Stream{
		cfg:     cfg,
		decoder: decoder,
		logger:  logger,
		newCh:   make(chan struct{}, 1),
	}
}

// probe performs a lightweight RTSP DESCRIBE against url to confirm the
// source is reachable before handing off to the frame decoder, using
// gortsplib's client directly at the protocol level (the teacher pack
// carries gortsplib only as an indirect camera-component dependency;
// this is where it is actually exercised).
func probe(ctx context.Context, url string, timeout time.Duration) error {
	u, err := base.ParseURL(url)
	if err != nil {
		return errors.Wrapf(err, "parsing rtsp url %s", url)
	}

	client := &gortsplib.Client{
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}
	if err := client.Start(u.Scheme, u.Host); err != nil {
		return errors.Wrapf(err, "connecting to rtsp source %s", url)
	}
	defer client.Close()

	if _, _, err := client.Describe(u); err != nil {
		return errors.Wrapf(err, "describing rtsp source %s", url)
	}
	return nil
}

// Start connects to the primary URL (probing it via RTSP DESCRIBE
// first), retrying and failing over to the backup URL per spec.md
// §4.1's policy if the initial connection does not succeed, and begins
// the supervised capture loop.
func (s *Stream) Start(ctx context.Context) error {
	if err := probe(ctx, s.cfg.PrimaryURL, 5*time.Second); err != nil {
		s.logger.Warnw("rtsp probe failed, attempting capture anyway", "url", s.cfg.PrimaryURL, "err", err)
	}
	if err := s.connectWithFailover(ctx); err != nil {
		return errors.Wrap(err, "starting stream")
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.group = &supervise.Group{}
	s.group.Go(func() {
		s.captureLoop(runCtx)
	}, func() {
		s.decoder.Close()
	})
	return nil
}

func (s *Stream) captureLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		mat, err := s.decoder.Read()
		if err != nil {
			if !s.onReadFailure(ctx) {
				// Both primary and backup phases are exhausted; the
				// fatal error is recorded for Err()/Read() to surface,
				// and the loop gives up rather than spin forever.
				return
			}
			continue
		}

		s.mu.Lock()
		s.seq++
		frame := Frame{Mat: mat, Timestamp: time.Now(), Seq: s.seq}
		s.pushLocked(frame)
		s.recordFPSLocked(frame.Timestamp)
		s.mu.Unlock()

		select {
		case s.newCh <- struct{}{}:
		default:
		}
	}
}

// pushLocked appends frame to the bounded buffer, dropping (and
// closing) the oldest frame when full. Caller must hold s.mu.
func (s *Stream) pushLocked(frame Frame) {
	if len(s.buf) >= s.cfg.BufferSize {
		s.buf[0].Mat.Close()
		s.buf = s.buf[1:]
	}
	s.buf = append(s.buf, frame)
}

func (s *Stream) recordFPSLocked(t time.Time) {
	cutoff := t.Add(-1 * time.Second)
	s.fpsWindow = append(s.fpsWindow, t)
	i := 0
	for ; i < len(s.fpsWindow); i++ {
		if s.fpsWindow[i].After(cutoff) {
			break
		}
	}
	s.fpsWindow = s.fpsWindow[i:]
}

// onReadFailure handles one failed Read: below the forced-reconnect
// threshold it just waits out ReconnectDelay, at/above it triggers a
// full reconnect. Returns false when reconnect has exhausted both the
// primary and backup phases, telling captureLoop to stop.
func (s *Stream) onReadFailure(ctx context.Context) bool {
	s.mu.Lock()
	s.consecutiveFailures++
	failures := s.consecutiveFailures
	s.mu.Unlock()

	s.logger.Warnw("rtsp read failed", "consecutive_failures", failures)

	if failures < s.cfg.ForceReconnectAfterFailures {
		select {
		case <-ctx.Done():
		case <-time.After(s.cfg.ReconnectDelay):
		}
		return true
	}

	if err := s.reconnect(ctx); err != nil {
		s.mu.Lock()
		s.fatalErr = err
		s.mu.Unlock()
		s.logger.Errorw("rtsp stream giving up after exhausting primary and backup", "err", err)
		return false
	}
	return true
}

// reconnect closes the current decoder and retries the primary URL up
// to MaxReconnectAttempts times; only once that phase is fully
// exhausted does it fail over to the backup URL for the same number of
// attempts, per spec.md §4.1's two-phase (not interleaved) policy.
func (s *Stream) reconnect(ctx context.Context) error {
	s.decoder.Close()
	return s.connectWithFailover(ctx)
}

// connectWithFailover tries the primary URL for up to
// MaxReconnectAttempts attempts, then the backup URL (if configured)
// for the same budget, returning an error only once both phases have
// been exhausted. Used both for the initial Start and for mid-stream
// reconnects.
func (s *Stream) connectWithFailover(ctx context.Context) error {
	if err := s.connectPhase(ctx, s.cfg.PrimaryURL, "primary"); err == nil {
		return nil
	}

	if s.cfg.BackupURL == "" {
		return errors.New("rtsp primary exhausted and no backup url configured")
	}

	if err := s.connectPhase(ctx, s.cfg.BackupURL, "backup"); err == nil {
		return nil
	}

	return errors.New("rtsp connect exhausted both primary and backup")
}

// connectPhase retries Open(url) up to MaxReconnectAttempts times,
// waiting ReconnectDelay between attempts (the first attempt is
// immediate).
func (s *Stream) connectPhase(ctx context.Context, url, label string) error {
	attempts := s.cfg.MaxReconnectAttempts
	if attempts <= 0 {
		attempts = 5
	}

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.cfg.ReconnectDelay):
			}
		}

		if err := s.decoder.Open(url); err != nil {
			s.logger.Warnw("rtsp connect attempt failed", "phase", label, "attempt", attempt, "url", url, "err", err)
			continue
		}
		s.logger.Infow("rtsp connected", "phase", label, "url", url)
		s.mu.Lock()
		s.consecutiveFailures = 0
		s.mu.Unlock()
		return nil
	}
	return errors.Errorf("%s exhausted after %d attempts", label, attempts)
}

// Err returns the fatal error recorded once the capture loop has given
// up after exhausting both the primary and backup reconnect phases, or
// nil if the stream is healthy or still retrying.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fatalErr
}

// Read returns the oldest buffered frame not yet consumed, blocking up
// to timeout for one to arrive.
func (s *Stream) Read(timeout time.Duration) (Frame, error) {
	deadline := time.After(timeout)
	for {
		s.mu.Lock()
		if len(s.buf) > 0 {
			frame := s.buf[0]
			s.buf = s.buf[1:]
			s.mu.Unlock()
			return frame, nil
		}
		s.mu.Unlock()

		select {
		case <-s.newCh:
		case <-deadline:
			if err := s.Err(); err != nil {
				return Frame{}, err
			}
			return Frame{}, errors.New("timed out waiting for a frame")
		}
	}
}

// FPS reports the capture rate over the trailing one-second window.
func (s *Stream) FPS() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return float64(len(s.fpsWindow))
}

// Stop cancels the capture loop and waits for it to exit.
func (s *Stream) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.group != nil {
		s.group.Wait()
	}
	s.mu.Lock()
	for _, f := range s.buf {
		f.Mat.Close()
	}
	s.buf = nil
	s.mu.Unlock()
}
