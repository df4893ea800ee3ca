package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/anprsight/vision-core/internal/geometry"
)

// HTTPClient abstracts the subset of *http.Client this package needs,
// grounded on the teacher pack's httputil.HTTPClient (banshee-data),
// so requests can be recorded/mocked in tests without a live server.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPDetector is a client for the out-of-scope object-detector collaborator, specified
// only at its boundary (spec.md §1): a JPEG-over-HTTP client is one
// concrete realization of that boundary.
type HTTPDetector struct {
	client HTTPClient
	url    string
}

// NewHTTPDetector builds a Detector that POSTs each frame, JPEG-encoded,
// to url and expects a JSON array of detections back.
func NewHTTPDetector(client HTTPClient, url string) *HTTPDetector {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPDetector{client: client, url: url}
}

// wireDetection is the JSON shape the detector endpoint is expected to
// return per detection.
type wireDetection struct {
	X1         float64 `json:"x1"`
	Y1         float64 `json:"y1"`
	X2         float64 `json:"x2"`
	Y2         float64 `json:"y2"`
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
}

// Detect encodes the raw BGR24 frame as JPEG and posts it to the
// configured detector endpoint.
func (d *HTTPDetector) Detect(ctx context.Context, frameWidth, frameHeight int, frameData []byte) ([]Detection, error) {
	mat, err := gocv.NewMatFromBytes(frameHeight, frameWidth, gocv.MatTypeCV8UC3, frameData)
	if err != nil {
		return nil, errors.Wrap(err, "reconstructing frame for detection request")
	}
	defer mat.Close()

	buf, err := gocv.IMEncode(".jpg", mat)
	if err != nil {
		return nil, errors.Wrap(err, "encoding frame as jpeg")
	}
	defer buf.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(buf.GetBytes()))
	if err != nil {
		return nil, errors.Wrap(err, "building detection request")
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "calling detector endpoint")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, errors.Errorf("detector endpoint returned status %d: %s", resp.StatusCode, string(body))
	}

	var wire []wireDetection
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, errors.Wrap(err, "decoding detection response")
	}

	out := make([]Detection, 0, len(wire))
	for _, w := range wire {
		out = append(out, Detection{
			Box:        geometry.NewBox(w.X1, w.Y1, w.X2, w.Y2),
			Class:      ParseVehicleClass(w.Class),
			Confidence: w.Confidence,
		})
	}
	return out, nil
}

func (d *HTTPDetector) String() string {
	return fmt.Sprintf("HTTPDetector{url: %s}", d.url)
}
