package recordings

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"callcenter-backend/internal/audio"
	"callcenter-backend/internal/shared/metrics"
	"callcenter-backend/internal/shared/storage/object"
	"callcenter-backend/internal/shared/telemetry"
)

const (
	DefaultMaxBytes = 100 << 20
	presignExpires  = 15 * time.Minute
)

var (
	ErrInvalidInput       = errors.New("invalid recording")
	ErrTooLarge           = errors.New("recording exceeds size limit")
	ErrPresignUnsupported = errors.New("direct uploads are not available for this store")
)

// Presigner is implemented by stores that can hand out direct upload URLs.
type Presigner interface {
	PresignPut(ctx context.Context, owner, fileName string, expires time.Duration) (string, string, error)
}

// Service accepts call recordings into the object store.
type Service struct {
	Store    object.ObjectStore
	MaxBytes int64
}

func NewService(store object.ObjectStore, maxBytes int64) *Service {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Service{Store: store, MaxBytes: maxBytes}
}

// Upload validates and stores a recording for owner.
func (s *Service) Upload(ctx context.Context, owner, fileName, declaredType string, r io.Reader) (object.Object, error) {
	if strings.TrimSpace(owner) == "" {
		return object.Object{}, fmt.Errorf("%w: owner is required", ErrInvalidInput)
	}
	if err := audio.Validate(fileName, declaredType); err != nil {
		return object.Object{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	detected, body, err := object.Sniff(r)
	if err != nil {
		return object.Object{}, err
	}
	if err := audio.CheckSniffed(detected); err != nil {
		return object.Object{}, fmt.Errorf("%w: content looks like %s", ErrInvalidInput, detected)
	}

	limited := &limitReader{r: body, remaining: s.MaxBytes}
	obj, err := s.Store.Save(ctx, owner, fileName, limited)
	if err != nil {
		if limited.exceeded {
			return object.Object{}, ErrTooLarge
		}
		return object.Object{}, err
	}

	metrics.ObserveRecordingUploaded(obj.Size)
	telemetry.Info("recordings.uploaded", map[string]any{
		"owner":     owner,
		"key":       obj.Key,
		"size":      obj.Size,
		"mime_type": obj.MIMEType,
	})
	return obj, nil
}

// PresignUpload returns a direct upload URL when the store supports it.
func (s *Service) PresignUpload(ctx context.Context, owner, fileName, declaredType string, size int64) (string, string, time.Duration, error) {
	p, ok := s.Store.(Presigner)
	if !ok {
		return "", "", 0, ErrPresignUnsupported
	}
	if strings.TrimSpace(owner) == "" {
		return "", "", 0, fmt.Errorf("%w: owner is required", ErrInvalidInput)
	}
	if err := audio.Validate(fileName, declaredType); err != nil {
		return "", "", 0, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if size <= 0 {
		return "", "", 0, fmt.Errorf("%w: sizeBytes must be positive", ErrInvalidInput)
	}
	if size > s.MaxBytes {
		return "", "", 0, ErrTooLarge
	}
	url, key, err := p.PresignPut(ctx, owner, fileName, presignExpires)
	if err != nil {
		return "", "", 0, err
	}
	return url, key, presignExpires, nil
}

// limitReader fails the read that would go past the limit so a partial
// object is never reported as a success.
type limitReader struct {
	r         io.Reader
	remaining int64
	exceeded  bool
}

func (l *limitReader) Read(p []byte) (int, error) {
	if l.remaining < 0 {
		l.exceeded = true
		return 0, ErrTooLarge
	}
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		l.exceeded = true
		return 0, ErrTooLarge
	}
	return n, err
}
