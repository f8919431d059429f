package recordings

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"

	"callcenter-backend/internal/shared/server/middleware"
	localstore "callcenter-backend/internal/shared/storage/object/local"
)

func wavPayload(size int) []byte {
	head := []byte("RIFF\x24\x00\x00\x00WAVEfmt ")
	if size < len(head) {
		size = len(head)
	}
	return append(head, make([]byte, size-len(head))...)
}

func TestUploadStoresAudio(t *testing.T) {
	dir := t.TempDir()
	svc := NewService(localstore.New(dir), 1<<20)

	obj, err := svc.Upload(context.Background(), "p-1", "call.wav", "audio/wav", bytes.NewReader(wavPayload(4096)))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if obj.Size != 4096 || obj.MIMEType != "audio/wav" {
		t.Fatalf("unexpected object %+v", obj)
	}
	if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(obj.Key))); err != nil {
		t.Fatalf("expected stored file: %v", err)
	}
}

func TestUploadRejectsNonAudio(t *testing.T) {
	svc := NewService(localstore.New(t.TempDir()), 1<<20)

	if _, err := svc.Upload(context.Background(), "p-1", "notes.txt", "text/plain", bytes.NewReader([]byte("hi"))); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for declared type, got %v", err)
	}
	// Extension passes but the content is a PDF.
	if _, err := svc.Upload(context.Background(), "p-1", "fake.mp3", "", bytes.NewReader([]byte("%PDF-1.7\n"))); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for sniffed type, got %v", err)
	}
}

func TestUploadEnforcesLimit(t *testing.T) {
	dir := t.TempDir()
	svc := NewService(localstore.New(dir), 8192)

	if _, err := svc.Upload(context.Background(), "p-1", "big.wav", "audio/wav", bytes.NewReader(wavPayload(8193))); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	if _, err := svc.Upload(context.Background(), "p-1", "exact.wav", "audio/wav", bytes.NewReader(wavPayload(8192))); err != nil {
		t.Fatalf("upload at limit: %v", err)
	}
}

func TestPresignUnsupportedForLocalStore(t *testing.T) {
	svc := NewService(localstore.New(t.TempDir()), 0)
	if _, _, _, err := svc.PresignUpload(context.Background(), "p-1", "a.wav", "audio/wav", 10); !errors.Is(err, ErrPresignUnsupported) {
		t.Fatalf("expected ErrPresignUnsupported, got %v", err)
	}
}

func TestHandlerUpload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := NewService(localstore.New(t.TempDir()), 1<<20)
	r := gin.New()
	api := r.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		middleware.WithSession(c, middleware.Session{AccountID: "acct-1", PersonnelID: "p-1"})
		c.Next()
	})
	NewHandler(svc).RegisterRoutes(api)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="audio_file"; filename="call.wav"`)
	hdr.Set("Content-Type", "audio/wav")
	part, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatalf("CreatePart: %v", err)
	}
	_, _ = part.Write(wavPayload(2048))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/recordings", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/recordings", bytes.NewReader(nil))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without file, got %d", w.Code)
	}
}
