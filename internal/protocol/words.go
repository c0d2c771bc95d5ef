package protocol

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// EncodeValue escapes a string so it can be embedded in a pipe-delimited
// word (admin stacks append "|<username>" to the target selector). The
// escape set is the pipe itself, percent, and line breaks.
func EncodeValue(s string) string {
	r := strings.NewReplacer(
		"%", "%25",
		"|", "%7C",
		"\r", "%0D",
		"\n", "%0A",
	)
	return r.Replace(s)
}

// DecodeValue reverses EncodeValue.
func DecodeValue(s string) string {
	r := strings.NewReplacer(
		"%7C", "|",
		"%0D", "\r",
		"%0A", "\n",
		"%25", "%",
	)
	return r.Replace(s)
}

// CompressWord gzips s and returns it base64-encoded, the form used for
// plugin descriptions when a session has compression enabled.
func CompressWord(s string) (string, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(s)); err != nil {
		return "", fmt.Errorf("compressing word: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("compressing word: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DecompressWord reverses CompressWord.
func DecompressWord(s string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("decoding word: %w", err)
	}
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("decompressing word: %w", err)
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return "", fmt.Errorf("decompressing word: %w", err)
	}
	return string(out), nil
}
