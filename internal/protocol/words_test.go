package protocol

import "testing"

func TestEncodeValue(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"admin", "admin"},
		{"a|b", "a%7Cb"},
		{"50%", "50%25"},
		{"line\nbreak", "line%0Abreak"},
		{"%7C", "%257C"},
	}
	for _, tt := range tests {
		if got := EncodeValue(tt.in); got != tt.want {
			t.Errorf("EncodeValue(%q) = %q, want %q", tt.in, got, tt.want)
		}
		if back := DecodeValue(EncodeValue(tt.in)); back != tt.in {
			t.Errorf("DecodeValue(EncodeValue(%q)) = %q", tt.in, back)
		}
	}
}

func TestCompressWord_RoundTrip(t *testing.T) {
	long := "This plugin watches the chat log and kicks players who spam. "
	for range 6 {
		long += long
	}

	packed, err := CompressWord(long)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	if len(packed) >= len(long) {
		t.Errorf("compressed size %d not smaller than input %d", len(packed), len(long))
	}

	got, err := DecompressWord(packed)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if got != long {
		t.Error("round trip mismatch")
	}
}

func TestDecompressWord_BadInput(t *testing.T) {
	if _, err := DecompressWord("not base64!!"); err == nil {
		t.Error("expected error for invalid base64")
	}
	if _, err := DecompressWord("aGVsbG8="); err == nil {
		t.Error("expected error for non-gzip payload")
	}
}
