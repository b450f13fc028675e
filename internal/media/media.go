// Package media registers supplier files and tracks their identity
// (sha + size + source mtime). The normalization cache keys off the
// registered record, so re-registering an unchanged file must not bump
// its fingerprint.
package media

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/artiss27/pricelist-sync/internal/db"
)

var ErrNotFound = errors.New("media not found")

type Registry struct {
	log zerolog.Logger
	db  *gorm.DB
}

func NewRegistry(log zerolog.Logger, gdb *gorm.DB) *Registry {
	return &Registry{log: log.With().Str("component", "media").Logger(), db: gdb}
}

// Register records a supplier file. Same filename + same sha returns the
// existing record untouched; same filename with new content refreshes the
// sha/size and bumps SourceModifiedAt to the file's mtime, which is what
// invalidates any normalization cache built on the old content.
func (r *Registry) Register(path string) (*db.MediaFile, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	sum, err := fileSHA256(path)
	if err != nil {
		return nil, err
	}

	name := filepath.Base(path)

	var existing db.MediaFile
	err = r.db.Where("filename = ?", name).Take(&existing).Error
	switch {
	case err == nil:
		if existing.SHA256 == sum {
			r.log.Debug().Str("file", name).Msg("media unchanged")
			return &existing, nil
		}
		existing.SHA256 = sum
		existing.SizeBytes = fi.Size()
		existing.Path = path
		existing.SourceModifiedAt = fi.ModTime()
		if err := r.db.Save(&existing).Error; err != nil {
			return nil, fmt.Errorf("refresh media %s: %w", name, err)
		}
		r.log.Info().Str("file", name).Str("media_id", existing.ID).Msg("media content changed")
		return &existing, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		rec := db.MediaFile{
			ID:               uuid.NewString(),
			Filename:         name,
			Path:             path,
			SHA256:           sum,
			SizeBytes:        fi.Size(),
			SourceModifiedAt: fi.ModTime(),
			CreatedAt:        time.Now(),
		}
		if err := r.db.Create(&rec).Error; err != nil {
			return nil, fmt.Errorf("register media %s: %w", name, err)
		}
		r.log.Info().Str("file", name).Str("media_id", rec.ID).Msg("media registered")
		return &rec, nil
	default:
		return nil, err
	}
}

func (r *Registry) Get(id string) (*db.MediaFile, error) {
	var rec db.MediaFile
	if err := r.db.Take(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	return &rec, nil
}

// Open returns a reader over the registered file's current content.
func (r *Registry) Open(rec *db.MediaFile) (io.ReadCloser, error) {
	return os.Open(rec.Path)
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
