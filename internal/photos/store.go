// Package photos persists uploaded bird photos to local disk.
//
// Every upload is sniffed, decoded and re-encoded as JPEG, so a stored file
// always matches the ".jpg" suffix of its generated name.
package photos

import (
	"errors"
	"fmt"
	"image"
	"io"
	"math/rand"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp"
)

var (
	ErrMissingFile     = errors.New("no photo file was uploaded")
	ErrTooLarge        = errors.New("photo file is too large")
	ErrUnsupportedType = errors.New("photo file is not a supported image")
)

// FieldName is the multipart form field carrying the photo.
const FieldName = "photo_file"

const (
	jpegQuality = 90
	// width*height limit, checked from the header before decoding
	maxPixels = 40_000_000
)

var allowedTypes = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
	"image/bmp",
	"image/tiff",
}

type Store struct {
	dir      string
	maxBytes int64
	now      func() time.Time
	randInt  func() int
}

// NewStore returns a Store writing into dir, creating it if needed.
func NewStore(dir string, maxBytes int64) (*Store, error) {
	const op = "photos.NewStore"
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Store{
		dir:      dir,
		maxBytes: maxBytes,
		now:      time.Now,
		randInt:  func() int { return rand.Intn(1e9) },
	}, nil
}

// Name builds the stored filename for an upload called original. Only
// [A-Za-z0-9._-] survive from the original base name so the result is a
// plain URL path segment.
func (s *Store) Name(original string) string {
	base := filepath.Base(strings.ReplaceAll(original, `\`, "/"))
	if base == "." || base == "/" || base == ".." {
		base = "photo"
	}
	return fmt.Sprintf("%s-%d-%d.jpg", strings.Map(safeRune, base), s.now().UnixMilli(), s.randInt())
}

func safeRune(r rune) rune {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return r
	case r == '.', r == '_', r == '-':
		return r
	}
	return '_'
}

// Save stores the uploaded file and returns its generated filename.
func (s *Store) Save(fh *multipart.FileHeader) (string, error) {
	const op = "photos.Save"

	if fh == nil {
		return "", ErrMissingFile
	}
	if s.maxBytes > 0 && fh.Size > s.maxBytes {
		return "", fmt.Errorf("%s: %d bytes: %w", op, fh.Size, ErrTooLarge)
	}

	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	defer src.Close()

	mtype, err := mimetype.DetectReader(src)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if !mimetype.EqualsAny(mtype.String(), allowedTypes...) {
		return "", fmt.Errorf("%s: %s: %w", op, mtype.String(), ErrUnsupportedType)
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	cfg, _, err := image.DecodeConfig(src)
	if err != nil {
		return "", fmt.Errorf("%s: %v: %w", op, err, ErrUnsupportedType)
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return "", fmt.Errorf("%s: %dx%d pixels: %w", op, cfg.Width, cfg.Height, ErrTooLarge)
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	img, err := imaging.Decode(src, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("%s: %v: %w", op, err, ErrUnsupportedType)
	}

	name := s.Name(fh.Filename)
	if err := imaging.Save(img, filepath.Join(s.dir, name), imaging.JPEGQuality(jpegQuality)); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return name, nil
}

// Remove deletes a stored photo. A missing file is not an error.
func (s *Store) Remove(name string) error {
	const op = "photos.Remove"
	if name == "" || name != filepath.Base(name) {
		return fmt.Errorf("%s: invalid name %q", op, name)
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
