// Package archive keeps generated audio, either on local disk or in an
// S3-compatible bucket.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/dooshek/polyvoice/internal/fileops"
	"github.com/dooshek/polyvoice/internal/logger"
	"github.com/dooshek/polyvoice/internal/types"
	"github.com/google/uuid"
)

const (
	BackendNone  = "none"
	BackendLocal = "local"
	BackendMinio = "minio"
)

// Object is one piece of generated audio plus labels stored next to it
type Object struct {
	Data     []byte
	Metadata map[string]string
}

type Store interface {
	// Put stores the object and returns its key
	Put(ctx context.Context, obj Object) (string, error)
	Name() string
}

// New returns the store selected by cfg.Backend, or nil for "none"
func New(ctx context.Context, cfg types.ArchiveConfig, fileOps fileops.FileOps) (Store, error) {
	switch cfg.Backend {
	case BackendNone, "":
		return nil, nil
	case BackendLocal:
		return NewLocalStore(fileOps), nil
	case BackendMinio:
		return NewMinioStore(ctx, cfg.Minio)
	default:
		return nil, fmt.Errorf("unsupported archive backend: %s (supported: none, local, minio)", cfg.Backend)
	}
}

// NewKey builds generated/YYYY/MM/DD/<uuid>.<ext>
func NewKey(now time.Time, ext string) string {
	return path.Join("generated", now.UTC().Format("2006/01/02"), uuid.NewString()+"."+ext)
}

// Sniff guesses the extension and content type of an audio payload
func Sniff(data []byte) (ext, contentType string) {
	switch {
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return "wav", "audio/wav"
	case len(data) >= 3 && string(data[0:3]) == "ID3",
		len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return "mp3", "audio/mpeg"
	case bytes.HasPrefix(data, []byte("OggS")):
		return "ogg", "audio/ogg"
	case bytes.HasPrefix(data, []byte("fLaC")):
		return "flac", "audio/flac"
	default:
		return "bin", "application/octet-stream"
	}
}

// LocalStore writes into the recordings directory
type LocalStore struct {
	fileOps fileops.FileOps
	now     func() time.Time
}

func NewLocalStore(fileOps fileops.FileOps) *LocalStore {
	return &LocalStore{fileOps: fileOps, now: time.Now}
}

func (s *LocalStore) Put(_ context.Context, obj Object) (string, error) {
	ext, _ := Sniff(obj.Data)
	key := NewKey(s.now(), ext)

	fullPath, err := s.fileOps.SaveRecording(key, obj.Data)
	if err != nil {
		return "", fmt.Errorf("failed to archive audio: %w", err)
	}

	logger.Debugf("Archived %d bytes to %s", len(obj.Data), fullPath)
	return key, nil
}

func (s *LocalStore) Name() string {
	return BackendLocal
}
