// Package store implements crop persistence (spec.md §6.4): plate
// crops are written to a shared filesystem path that is passed by
// reference in the OCR request, then optionally handed to an
// Uploader for object-store replication.
package store

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Uploader is the boundary interface to the object-store collaborator
// named in spec.md as external and specified only at its boundary. No
// pack example ships a concrete object-store SDK client usable here
// (see DESIGN.md), so only this interface plus two implementations are
// provided: NopUploader (the default) and the local-filesystem
// LocalUploader.
type Uploader interface {
	Put(ctx context.Context, key string, r io.Reader) error
}

// NopUploader discards everything it's given; the default when no
// remote object store is configured.
type NopUploader struct{}

func (NopUploader) Put(ctx context.Context, key string, r io.Reader) error {
	_, err := io.Copy(io.Discard, r)
	return err
}

// LocalUploader mirrors crops into a second local directory, standing
// in for a real S3/GCS client under the same Uploader boundary.
type LocalUploader struct {
	Dir string
}

func (u LocalUploader) Put(ctx context.Context, key string, r io.Reader) error {
	dst := filepath.Join(u.Dir, key)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return errors.Wrapf(err, "creating upload directory for %s", key)
	}
	f, err := os.Create(dst)
	if err != nil {
		return errors.Wrapf(err, "creating upload target %s", dst)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return errors.Wrapf(err, "writing upload target %s", dst)
	}
	return nil
}

// Store writes plate crops under CropDir/plate_crops and optionally
// replicates them via an Uploader, keyed "plates/<basename>" per
// spec.md §6.
type Store struct {
	CropDir  string
	Uploader Uploader
}

// New constructs a Store. A nil uploader defaults to NopUploader.
func New(cropDir string, uploader Uploader) *Store {
	if uploader == nil {
		uploader = NopUploader{}
	}
	return &Store{CropDir: cropDir, Uploader: uploader}
}

// CropPath returns the path spec.md §6's naming convention mandates for
// a plate crop: <crop_dir>/plate_crops/track_<id>_frame_<n>.<ext>.
func (s *Store) CropPath(trackID int, frameNumber int64, ext string) string {
	name := fmt.Sprintf("track_%d_frame_%d.%s", trackID, frameNumber, ext)
	return filepath.Join(s.CropDir, "plate_crops", name)
}

// SaveCrop encodes crop as a JPEG at the conventional path and, if an
// Uploader is configured, replicates it under "plates/<basename>".
func (s *Store) SaveCrop(ctx context.Context, trackID int, frameNumber int64, crop gocv.Mat) (string, error) {
	path := s.CropPath(trackID, frameNumber, "jpg")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", errors.Wrapf(err, "creating crop directory for %s", path)
	}
	if ok := gocv.IMWrite(path, crop); !ok {
		return "", errors.Errorf("writing plate crop to %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return path, errors.Wrapf(err, "reopening crop %s for upload", path)
	}
	defer f.Close()

	key := "plates/" + filepath.Base(path)
	if err := s.Uploader.Put(ctx, key, f); err != nil {
		return path, errors.Wrapf(err, "uploading crop %s", path)
	}
	return path, nil
}
