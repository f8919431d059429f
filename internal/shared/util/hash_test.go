package util

import "testing"

func TestSHA256HexKnownValue(t *testing.T) {
	const want = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	if got := SHA256Hex("hello"); got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestShortHash(t *testing.T) {
	if got := ShortHash("hello", 12); got != "2cf24dba5fb0" {
		t.Fatalf("unexpected short hash %s", got)
	}
	if got := ShortHash("google:12345", 16); got != ShortHash("google:12345", 16) || len(got) != 16 {
		t.Fatalf("expected stable 16 char hash, got %s", got)
	}
	for _, n := range []int{0, -1, 99} {
		if got := ShortHash("hello", n); len(got) != 64 {
			t.Fatalf("ShortHash(n=%d) expected full hash, got %d chars", n, len(got))
		}
	}
}
