package layer

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// Wire-compatible credential hashing. The remote side computes
// MD5(saltBytes || password) and sends it as uppercase hex, so MD5 is
// pinned here regardless of what a fresh design would pick.

// hashPassword returns the uppercase hex MD5 digest of salt followed
// by the raw bytes of secret.
func hashPassword(salt []byte, secret string) string {
	h := md5.New()
	h.Write(salt)
	h.Write([]byte(secret))
	return strings.ToUpper(hex.EncodeToString(h.Sum(nil)))
}

// randRead is swapped out in tests to exercise entropy failures.
var randRead = rand.Read

// generateSalt produces a fresh login challenge. Remote controllers
// expect an MD5-shaped salt, so the random material is folded through
// the same digest used for password hashing.
func generateSalt() (string, error) {
	buf := make([]byte, 1024)
	if _, err := randRead(buf); err != nil {
		return "", fmt.Errorf("read salt entropy: %w", err)
	}
	return hashPassword(buf, base64.StdEncoding.EncodeToString(buf)), nil
}

// saltBytes decodes a hex challenge back to raw bytes for hashing.
func saltBytes(salt string) ([]byte, error) {
	b, err := hex.DecodeString(salt)
	if err != nil {
		return nil, fmt.Errorf("decode salt: %w", err)
	}
	return b, nil
}

// verifyHash checks a client-supplied hash against the expected digest
// for the outstanding salt and the stored password. The comparison
// ignores case so lowercase-hex controllers still authenticate.
func verifyHash(salt, password, clientHash string) bool {
	raw, err := saltBytes(salt)
	if err != nil {
		return false
	}
	return strings.EqualFold(hashPassword(raw, password), clientHash)
}
