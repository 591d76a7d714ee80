package manifest

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
)

// Fingerprint returns the lowercase hex MD5 digest of data.
func Fingerprint(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// FingerprintFile reads the file at path and returns its bytes together with
// their fingerprint. The bytes are returned so callers can hand them to the
// resizer without a second read.
func FingerprintFile(path string) ([]byte, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, Fingerprint(data), nil
}
