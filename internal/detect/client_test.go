package detect

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeHTTPClient struct {
	status  int
	body    string
	lastReq *http.Request
}

func (f *fakeHTTPClient) Do(req *http.Request) (*http.Response, error) {
	f.lastReq = req
	return &http.Response{
		StatusCode: f.status,
		Body:       io.NopCloser(bytes.NewBufferString(f.body)),
	}, nil
}

func TestHTTPDetectorParsesResponse(t *testing.T) {
	fake := &fakeHTTPClient{status: http.StatusOK, body: `[{"x1":1,"y1":2,"x2":3,"y2":4,"class":"car","confidence":0.9}]`}
	d := NewHTTPDetector(fake, "http://detector.local/infer")

	frame := make([]byte, 4*4*3)
	dets, err := d.Detect(context.Background(), 4, 4, frame)
	require.NoError(t, err)
	require.Len(t, dets, 1)
	require.Equal(t, ClassCar, dets[0].Class)
	require.InDelta(t, 0.9, dets[0].Confidence, 1e-9)
	require.Equal(t, "image/jpeg", fake.lastReq.Header.Get("Content-Type"))
	require.Equal(t, http.MethodPost, fake.lastReq.Method)
}

func TestHTTPDetectorErrorsOnNonOKStatus(t *testing.T) {
	fake := &fakeHTTPClient{status: http.StatusInternalServerError, body: "boom"}
	d := NewHTTPDetector(fake, "http://detector.local/infer")

	frame := make([]byte, 4*4*3)
	_, err := d.Detect(context.Background(), 4, 4, frame)
	require.Error(t, err)
}

func TestHTTPDetectorDefaultsUnknownClass(t *testing.T) {
	fake := &fakeHTTPClient{status: http.StatusOK, body: `[{"x1":0,"y1":0,"x2":1,"y2":1,"class":"bicycle","confidence":0.5}]`}
	d := NewHTTPDetector(fake, "http://detector.local/infer")

	frame := make([]byte, 4*4*3)
	dets, err := d.Detect(context.Background(), 4, 4, frame)
	require.NoError(t, err)
	require.Len(t, dets, 1)
	require.Equal(t, ClassUnknown, dets[0].Class)
}
