package fingerprint

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// SHA1Width is the hex length of a sha1 digest.
const SHA1Width = 40

// NormalizeDigest lowercases and trims a hex digest.
func NormalizeDigest(digest string) string {
	return strings.ToLower(strings.TrimSpace(digest))
}

// ParseDigest validates that digest is width hex characters and returns
// its binary form. Hex validity is checked before length.
func ParseDigest(digest string, width int) ([]byte, error) {
	digest = NormalizeDigest(digest)
	if i := invalidHexIndex(digest); i >= 0 {
		return nil, malformed(digest, "non-hexadecimal digit found", fmt.Errorf("invalid byte %q at offset %d", digest[i], i))
	}
	if len(digest) != width {
		return nil, malformed(digest, fmt.Sprintf("length %d, want %d", len(digest), width), nil)
	}
	b, err := hex.DecodeString(digest)
	if err != nil {
		return nil, malformed(digest, "decoding digest", err)
	}
	return b, nil
}

// FormatDigest returns the lowercase hex form of a binary digest.
func FormatDigest(b []byte) string {
	return hex.EncodeToString(b)
}
