package object

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/gabriel-vasile/mimetype"
)

// sniffLen matches the read limit mimetype uses for detection.
const sniffLen = 3072

// ErrNotFound is returned by Open for unknown keys.
var ErrNotFound = errors.New("object not found")

// Object describes a stored blob.
type Object struct {
	Key      string `json:"key"`
	Size     int64  `json:"size"`
	MIMEType string `json:"mimeType"`
}

// ObjectStore defines the contract for saving and retrieving binary objects.
type ObjectStore interface {
	Save(ctx context.Context, owner string, fileName string, r io.Reader) (Object, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// Sniff detects the content type from the head of r and returns a reader
// that still yields the full stream.
func Sniff(r io.Reader) (string, io.Reader, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", nil, fmt.Errorf("read sniff: %w", err)
	}
	head = head[:n]
	return mimetype.Detect(head).String(), io.MultiReader(bytes.NewReader(head), r), nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// CountingReader wraps r and reports bytes read through Count.
func CountingReader(r io.Reader) (io.Reader, func() int64) {
	c := &countingReader{r: r}
	return c, func() int64 { return c.n }
}
