package checksum

import "testing"

func Test_Sum(t *testing.T) {
	// Known SHA-256 of the empty input.
	if got := Sum(nil); got != "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855" {
		t.Errorf("unexpected digest for empty input: %s", got)
	}

	a := Sum([]byte("hello"))
	b := Sum([]byte("hello"))
	if a != b {
		t.Error("same input must produce the same digest")
	}
	if c := Sum([]byte("hello!")); c == a {
		t.Error("different inputs must produce different digests")
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
}
