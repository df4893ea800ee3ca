// Package config loads the layered YAML configuration of spec.md §6:
// a single YAML file, environment-variable substituted before parsing,
// split into one Config struct per section with a Validate that fails
// fast on missing required keys — the same Config/Validate split the
// teacher uses in object_tracker.go's Config.Validate.
package config

import (
	"os"

	"github.com/a8m/envsubst"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// RTSPConfig is the `rtsp` section.
type RTSPConfig struct {
	PrimaryURL            string  `yaml:"primary_url"`
	BackupURL             string  `yaml:"backup_url"`
	ReconnectDelaySeconds float64 `yaml:"reconnect_delay_seconds"`
	MaxReconnectAttempts  int     `yaml:"max_reconnect_attempts"`
	FrameBufferSize       int     `yaml:"frame_buffer_size"`
}

// ONVIFConfig is the `ptz.onvif` section.
type ONVIFConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	UseDigestAuth  bool   `yaml:"use_digest_auth"`
	TimeoutSeconds float64 `yaml:"timeout_seconds"`
}

// PTZControlConfig is the `ptz.control` section.
type PTZControlConfig struct {
	HysteresisPixels float64 `yaml:"hysteresis_pixels"`
	PanSpeed         float64 `yaml:"pan_speed"`
	TiltSpeed        float64 `yaml:"tilt_speed"`
	ZoomStep         float64 `yaml:"zoom_step"`
	MoveRateLimitMs  int     `yaml:"move_rate_limit_ms"`
}

// IdleBehaviorConfig is the `ptz.idle_behavior` section.
type IdleBehaviorConfig struct {
	Enabled             bool    `yaml:"enabled"`
	TimeoutSeconds       float64 `yaml:"timeout_seconds"`
	ReturnToPreset       string  `yaml:"return_to_preset"`
	SweepEnabled         bool    `yaml:"sweep_enabled"`
	SweepIntervalSeconds float64 `yaml:"sweep_interval_seconds"`
}

// PTZConfig groups the `ptz.*` sections.
type PTZConfig struct {
	ONVIF        ONVIFConfig        `yaml:"onvif"`
	Control      PTZControlConfig   `yaml:"control"`
	IdleBehavior IdleBehaviorConfig `yaml:"idle_behavior"`
}

// DetectionConfig is the `detection` section.
type DetectionConfig struct {
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	IoUThreshold        float64 `yaml:"iou_threshold"`
	Device              string  `yaml:"device"`
	InputSize           int     `yaml:"input_size"`
	HalfPrecision       bool    `yaml:"half_precision"`
}

// TrackingConfig is the `tracking` section.
type TrackingConfig struct {
	MaxAge          int     `yaml:"max_age"`
	MinHits         int     `yaml:"min_hits"`
	IoUThreshold    float64 `yaml:"iou_threshold"`
	AssociationMode string  `yaml:"association_mode"`
}

// CaptureConfig is `anpr.capture`.
type CaptureConfig struct {
	ZoomTargetPlateHeight float64 `yaml:"zoom_target_plate_height"`
	StabilityFrames       int     `yaml:"stability_frames"`
}

// ANPRConfig is the `anpr` section.
type ANPRConfig struct {
	MinConfidence        float64       `yaml:"min_confidence"`
	MinPlateHeightPixels float64       `yaml:"min_plate_height_pixels"`
	Capture              CaptureConfig `yaml:"capture"`
	PlatePatterns        []string      `yaml:"plate_patterns"`
}

// WeightsConfig is `prioritization.weights`.
type WeightsConfig struct {
	Proximity float64 `yaml:"proximity"`
	ROI       float64 `yaml:"roi"`
	Speed     float64 `yaml:"speed"`
	Novelty   float64 `yaml:"novelty"`
}

// ZoneConfig is one entry of `prioritization.roi_zones`.
type ZoneConfig struct {
	Name    string      `yaml:"name"`
	Weight  float64     `yaml:"weight"`
	Polygon [][]float64 `yaml:"polygon"`
}

// PrioritizationConfig is the `prioritization` section.
type PrioritizationConfig struct {
	Strategy            string        `yaml:"strategy"`
	Weights             WeightsConfig `yaml:"weights"`
	ROIZones            []ZoneConfig  `yaml:"roi_zones"`
	MinTargetSizePixels float64       `yaml:"min_target_size_pixels"`
}

// EventsConfig is the `events.redis` section (the bounded-log knobs
// spec.md names). These fields are parsed but not passed to
// internal/bus: StreamMaxLen is not read, and every JetStream stream is
// bounded by bus's fixed maxStreamMessages (10,000) instead.
type EventsConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	Password      string `yaml:"password"`
	StreamMaxLen  int    `yaml:"stream_max_len"`
}

// CropConfig names where plate crops are written, per spec.md §6.4.
type CropConfig struct {
	Dir string `yaml:"dir"`
}

// Config is the root configuration document.
type Config struct {
	RTSP           RTSPConfig           `yaml:"rtsp"`
	PTZ            PTZConfig            `yaml:"ptz"`
	Detection      DetectionConfig      `yaml:"detection"`
	Tracking       TrackingConfig       `yaml:"tracking"`
	ANPR           ANPRConfig           `yaml:"anpr"`
	Prioritization PrioritizationConfig `yaml:"prioritization"`
	Events         struct {
		Redis EventsConfig `yaml:"redis"`
	} `yaml:"events"`
	Crop CropConfig `yaml:"crop"`
}

// Load reads the YAML file at path, expands ${VAR} references against
// the process environment, and parses the result into a Config.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config file %s", path)
	}

	expanded, err := envsubst.String(string(raw))
	if err != nil {
		return nil, errors.Wrapf(err, "expanding environment variables in %s", path)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing config file %s", path)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, errors.Errorf("invalid config %s: %v", path, errs)
	}
	return &cfg, nil
}

// Validate checks the required keys of spec.md §6's recognized
// sections and returns every violation found (not just the first),
// fatal-at-startup per spec.md §7's "Config missing" policy.
func (c *Config) Validate() []string {
	var errs []string

	if c.RTSP.PrimaryURL == "" {
		errs = append(errs, `expected "rtsp.primary_url"`)
	}
	if c.PTZ.ONVIF.Host == "" {
		errs = append(errs, `expected "ptz.onvif.host"`)
	}
	if c.Tracking.MinHits <= 0 {
		errs = append(errs, `expected "tracking.min_hits" > 0`)
	}
	if c.Tracking.IoUThreshold < 0 || c.Tracking.IoUThreshold > 1 {
		errs = append(errs, `expected "tracking.iou_threshold" in [0, 1]`)
	}
	switch c.Tracking.AssociationMode {
	case "", "greedy", "hungarian":
	default:
		errs = append(errs, `expected "tracking.association_mode" to be "greedy" or "hungarian"`)
	}
	switch c.Prioritization.Strategy {
	case "", "proximity", "roi", "weighted":
	default:
		errs = append(errs, `expected "prioritization.strategy" to be "proximity", "roi", or "weighted"`)
	}
	if c.ANPR.Capture.StabilityFrames < 0 {
		errs = append(errs, `expected "anpr.capture.stability_frames" >= 0`)
	}
	if c.Crop.Dir == "" {
		errs = append(errs, `expected "crop.dir"`)
	}

	return errs
}
