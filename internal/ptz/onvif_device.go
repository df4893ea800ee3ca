package ptz

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/anprsight/vision-core/internal/logging"
)

// ONVIFConfig configures the HTTP(S) transport to the physical camera,
// matching the ptz.onvif section of spec.md §6.
type ONVIFConfig struct {
	Host           string
	Port           int
	Username       string
	Password       string
	UseDigestAuth  bool
	TimeoutSeconds float64
}

// onvifDevice is an ONVIF-flavored HTTP PTZ client, grounded on
// doxx-NOLO/rivercam's Hikvision controller: absolute-move over a PUT
// with an XML body, digest-auth challenge/response on a 401, and a
// bounded retry loop per command.
type onvifDevice struct {
	cfg    ONVIFConfig
	client *http.Client
	logger logging.Logger
}

// NewONVIFDevice constructs a Device backed by an ONVIF/Hikvision-style
// HTTP control surface.
func NewONVIFDevice(cfg ONVIFConfig, logger logging.Logger) Device {
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 5
	}
	return &onvifDevice{
		cfg:    cfg,
		client: &http.Client{Timeout: time.Duration(timeout * float64(time.Second))},
		logger: logger,
	}
}

func (d *onvifDevice) baseURL() string {
	return fmt.Sprintf("http://%s:%d", d.cfg.Host, d.cfg.Port)
}

// doWithRetry sends body to uri via method, making up to 3 attempts and
// transparently answering a single digest-auth challenge, matching the
// teacher's retry shape.
func (d *onvifDevice) doWithRetry(ctx context.Context, method, uri, contentType, body string) error {
	url := d.baseURL() + uri
	var lastErr error

	for attempt := 0; attempt < 3; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, url, strings.NewReader(body))
		if err != nil {
			return errors.Wrap(err, "building ptz request")
		}
		req.Header.Set("Content-Type", contentType)
		req.ContentLength = int64(len(body))

		resp, err := d.client.Do(req)
		if err != nil {
			lastErr = errors.Wrap(err, "ptz request failed")
			time.Sleep(100 * time.Millisecond)
			continue
		}

		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusOK {
			return nil
		}

		if resp.StatusCode == http.StatusUnauthorized && d.cfg.UseDigestAuth {
			realm, nonce, perr := parseDigestChallenge(resp.Header.Get("WWW-Authenticate"))
			if perr != nil {
				lastErr = perr
				continue
			}
			req2, err := http.NewRequestWithContext(ctx, method, url, strings.NewReader(body))
			if err != nil {
				return errors.Wrap(err, "building ptz retry request")
			}
			req2.Header.Set("Content-Type", contentType)
			req2.Header.Set("Authorization", digestAuthHeader(d.cfg.Username, d.cfg.Password, method, uri, realm, nonce))
			req2.ContentLength = int64(len(body))

			resp2, err := d.client.Do(req2)
			if err != nil {
				lastErr = errors.Wrap(err, "ptz digest-auth request failed")
				continue
			}
			respBody2, _ := io.ReadAll(resp2.Body)
			resp2.Body.Close()
			if resp2.StatusCode == http.StatusOK {
				return nil
			}
			lastErr = errors.Errorf("ptz device returned status %d: %s", resp2.StatusCode, string(respBody2))
			continue
		}

		lastErr = errors.Errorf("ptz device returned status %d: %s", resp.StatusCode, string(respBody))
		time.Sleep(100 * time.Millisecond)
	}
	return lastErr
}

// parseDigestChallenge extracts realm/nonce from a WWW-Authenticate
// header value.
func parseDigestChallenge(header string) (realm, nonce string, err error) {
	if header == "" {
		return "", "", errors.New("no WWW-Authenticate header in response")
	}
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		switch {
		case strings.HasPrefix(part, "realm="):
			realm = strings.Trim(part[len("realm="):], `"`)
		case strings.HasPrefix(part, "nonce="):
			nonce = strings.Trim(part[len("nonce="):], `"`)
		}
	}
	if realm == "" || nonce == "" {
		return "", "", errors.Errorf("invalid WWW-Authenticate header: %s", header)
	}
	return realm, nonce, nil
}

func (d *onvifDevice) AbsoluteMove(ctx context.Context, pos Position) error {
	payload := fmt.Sprintf(
		`<?xml version="1.0" encoding="UTF-8"?><PTZData><AbsoluteHigh><azimuth>%.4f</azimuth><elevation>%.4f</elevation><absoluteZoom>%.4f</absoluteZoom></AbsoluteHigh></PTZData>`,
		pos.Pan, pos.Tilt, pos.Zoom)
	return d.doWithRetry(ctx, http.MethodPut, "/ISAPI/PTZCtrl/channels/1/absolute", "application/xml", payload)
}

func (d *onvifDevice) RelativeMove(ctx context.Context, panOffset, tiltOffset, zoomOffset float64) error {
	payload := fmt.Sprintf(
		`<?xml version="1.0" encoding="UTF-8"?><PTZData><RelativeHigh><azimuth>%.4f</azimuth><elevation>%.4f</elevation><absoluteZoom>%.4f</absoluteZoom></RelativeHigh></PTZData>`,
		panOffset, tiltOffset, zoomOffset)
	return d.doWithRetry(ctx, http.MethodPut, "/ISAPI/PTZCtrl/channels/1/relative", "application/xml", payload)
}

func (d *onvifDevice) ContinuousMove(ctx context.Context, panVel, tiltVel, zoomVel float64) error {
	payload := fmt.Sprintf(
		`<?xml version="1.0" encoding="UTF-8"?><PTZData><Continuous><pan>%.4f</pan><tilt>%.4f</tilt><zoom>%.4f</zoom></Continuous></PTZData>`,
		panVel, tiltVel, zoomVel)
	return d.doWithRetry(ctx, http.MethodPut, "/ISAPI/PTZCtrl/channels/1/continuous", "application/xml", payload)
}

func (d *onvifDevice) Stop(ctx context.Context) error {
	return d.doWithRetry(ctx, http.MethodPut, "/ISAPI/PTZCtrl/channels/1/continuous", "application/xml",
		`<?xml version="1.0" encoding="UTF-8"?><PTZData><Continuous><pan>0</pan><tilt>0</tilt><zoom>0</zoom></Continuous></PTZData>`)
}

func (d *onvifDevice) GetStatus(ctx context.Context) (Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL()+"/ISAPI/PTZCtrl/channels/1/status", nil)
	if err != nil {
		return Status{}, errors.Wrap(err, "building status request")
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return Status{}, errors.Wrap(err, "ptz status request failed")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Status{}, errors.Errorf("ptz device returned status %d", resp.StatusCode)
	}
	// Parsing the device's XML status body is intentionally out of
	// scope here (no pack example ships an ONVIF XML decoder); callers
	// needing live status should track Controller.CurrentState instead.
	return Status{}, nil
}

func (d *onvifDevice) GetPresets(ctx context.Context) ([]Preset, error) {
	return nil, errors.New("GetPresets is not implemented by the HTTP transport")
}

func (d *onvifDevice) GotoPreset(ctx context.Context, token string) error {
	payload := fmt.Sprintf(
		`<?xml version="1.0" encoding="UTF-8"?><PTZPreset><id>%s</id></PTZPreset>`, token)
	uri := fmt.Sprintf("/ISAPI/PTZCtrl/channels/1/presets/%s/goto", token)
	return d.doWithRetry(ctx, http.MethodPut, uri, "application/xml", payload)
}
