package idgen

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

const charset = "0123456789abcdefghijklmnopqrstuvwxyz"

// GenerateSecureID returns "<prefix>_<length random lowercase alphanumerics>".
func GenerateSecureID(prefix string, length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	encoded := make([]byte, length)
	for i := range buf {
		encoded[i] = charset[int(buf[i])%len(charset)]
	}
	return prefix + "_" + string(encoded), nil
}

// ValidateIDFormat reports whether id looks like GenerateSecureID(expectedPrefix, n).
func ValidateIDFormat(id, expectedPrefix string) bool {
	suffix, ok := strings.CutPrefix(id, expectedPrefix+"_")
	if !ok || suffix == "" {
		return false
	}
	for _, r := range suffix {
		if !strings.ContainsRune(charset, r) {
			return false
		}
	}
	return true
}

// HashKey256 returns the hex HMAC-SHA256 of key under secret.
func HashKey256(key string, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}
