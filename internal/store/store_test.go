package store

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCropPathMatchesNamingConvention(t *testing.T) {
	s := New("/data/anprsight", nil)
	path := s.CropPath(7, 42, "jpg")
	require.Equal(t, "/data/anprsight/plate_crops/track_7_frame_42.jpg", path)
}

func TestLocalUploaderWritesToDir(t *testing.T) {
	dir := t.TempDir()
	u := LocalUploader{Dir: dir}

	require.NoError(t, u.Put(context.Background(), "plates/foo.jpg", bytes.NewReader([]byte("hello"))))

	data, err := os.ReadFile(filepath.Join(dir, "plates/foo.jpg"))
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))
}

func TestNopUploaderDiscards(t *testing.T) {
	require.NoError(t, (NopUploader{}).Put(context.Background(), "k", bytes.NewReader([]byte("x"))))
}
