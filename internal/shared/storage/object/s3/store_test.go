package s3

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestApplyPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prefix string
		key    string
		want   string
	}{
		{name: "no prefix", prefix: "", key: "owner/call.wav", want: "owner/call.wav"},
		{name: "simple prefix", prefix: "root", key: "owner/call.wav", want: "root/owner/call.wav"},
		{name: "prefix trailing slash", prefix: "root/", key: "owner/call.wav", want: "root/owner/call.wav"},
		{name: "prefix and key slashes", prefix: "/root/", key: "/owner/call.wav", want: "root/owner/call.wav"},
		{name: "nested prefix", prefix: "root/sub", key: "owner/call.wav", want: "root/sub/owner/call.wav"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := applyPrefix(tt.prefix, tt.key); got != tt.want {
				t.Fatalf("applyPrefix(%q, %q) = %q, want %q", tt.prefix, tt.key, got, tt.want)
			}
		})
	}
}

func TestPresignPutSignedHeadersExcludeContentLength(t *testing.T) {
	store, err := New(context.Background(), Options{
		Region:          "us-east-1",
		Bucket:          "bucket",
		Prefix:          "recordings",
		AccessKeyID:     "AKID",
		SecretAccessKey: "SECRET",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rawURL, key, err := store.PresignPut(context.Background(), "acct-1", "call 1.wav", 15*time.Minute)
	if err != nil {
		t.Fatalf("PresignPut: %v", err)
	}
	if !strings.HasSuffix(key, "_call 1.wav") {
		t.Fatalf("unexpected key %q", key)
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if !strings.Contains(parsed.Path, "recordings/") {
		t.Fatalf("expected prefixed object path, got %s", parsed.Path)
	}
	signed := parsed.Query().Get("X-Amz-SignedHeaders")
	if signed == "" {
		t.Fatalf("expected X-Amz-SignedHeaders")
	}
	if strings.Contains(signed, "content-length") {
		t.Fatalf("unexpected content-length in signed headers: %s", signed)
	}
	if !strings.Contains(signed, "host") {
		t.Fatalf("expected host in signed headers: %s", signed)
	}
	if got := parsed.Query().Get("X-Amz-Expires"); got != "900" {
		t.Fatalf("expected 900s expiry, got %q", got)
	}
}
