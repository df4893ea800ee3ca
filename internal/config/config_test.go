package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleYAML = `
rtsp:
  primary_url: "rtsp://${CAMERA_HOST}/stream1"
  backup_url: "rtsp://backup/stream1"
  reconnect_delay_seconds: 2
  max_reconnect_attempts: 5
  frame_buffer_size: 30
ptz:
  onvif:
    host: "192.168.1.50"
    port: 80
    username: admin
    password: "${CAMERA_PASSWORD}"
    use_digest_auth: true
    timeout_seconds: 5
  control:
    hysteresis_pixels: 20
    zoom_step: 0.1
    move_rate_limit_ms: 500
  idle_behavior:
    enabled: true
    timeout_seconds: 30
    return_to_preset: "home"
    sweep_enabled: false
    sweep_interval_seconds: 10
detection:
  confidence_threshold: 0.5
  iou_threshold: 0.45
  device: cpu
tracking:
  max_age: 30
  min_hits: 3
  iou_threshold: 0.3
  association_mode: greedy
anpr:
  min_confidence: 0.6
  min_plate_height_pixels: 30
  capture:
    zoom_target_plate_height: 60
    stability_frames: 3
prioritization:
  strategy: weighted
  weights:
    proximity: 0.4
    roi: 0.3
    speed: 0.2
    novelty: 0.1
  min_target_size_pixels: 40
events:
  redis:
    host: localhost
    port: 6379
    stream_max_len: 10000
crop:
  dir: /data/anprsight
`

func TestLoadExpandsEnvAndParses(t *testing.T) {
	t.Setenv("CAMERA_HOST", "10.0.0.5")
	t.Setenv("CAMERA_PASSWORD", "s3cret")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "rtsp://10.0.0.5/stream1", cfg.RTSP.PrimaryURL)
	require.Equal(t, "s3cret", cfg.PTZ.ONVIF.Password)
	require.Equal(t, "weighted", cfg.Prioritization.Strategy)
	require.Equal(t, 3, cfg.Tracking.MinHits)
}

func TestValidateCatchesMissingRequiredKeys(t *testing.T) {
	cfg := &Config{}
	errs := cfg.Validate()
	require.NotEmpty(t, errs)
	require.Contains(t, errs, `expected "rtsp.primary_url"`)
	require.Contains(t, errs, `expected "ptz.onvif.host"`)
	require.Contains(t, errs, `expected "crop.dir"`)
}

func TestValidateRejectsUnknownAssociationMode(t *testing.T) {
	cfg := &Config{
		RTSP:      RTSPConfig{PrimaryURL: "rtsp://x"},
		PTZ:       PTZConfig{ONVIF: ONVIFConfig{Host: "h"}},
		Tracking:  TrackingConfig{MinHits: 1, IoUThreshold: 0.3, AssociationMode: "bogus"},
		Crop:      CropConfig{Dir: "/tmp"},
	}
	errs := cfg.Validate()
	require.Contains(t, errs, `expected "tracking.association_mode" to be "greedy" or "hungarian"`)
}

func TestLoadFailsOnMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	require.Error(t, err)
}
