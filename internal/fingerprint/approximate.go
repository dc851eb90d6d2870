package fingerprint

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// ApproximateWidth is the hex length of a directory or resource
	// fingerprint: an 8 hex digit element count followed by a 128-bit hash.
	ApproximateWidth = 40

	countWidth = 8
	hashWidth  = ApproximateWidth - countWidth
)

// Approximate is a parsed locality-sensitive fingerprint.
type Approximate struct {
	// ElementCount is the number of files that went into the hash.
	ElementCount uint32
	Chunks       Chunks
}

// ParseApproximate parses a 40 hex digit fingerprint. Input is
// lowercased before parsing.
func ParseApproximate(fp string) (Approximate, error) {
	var a Approximate
	fp = strings.ToLower(fp)
	if len(fp) < countWidth {
		return a, malformed(fp, fmt.Sprintf("length %d, want %d", len(fp), ApproximateWidth), nil)
	}
	count, err := strconv.ParseUint(fp[:countWidth], 16, 32)
	if err != nil {
		return a, malformed(fp, fmt.Sprintf("invalid element count %q", fp[:countWidth]), err)
	}
	if len(fp) != ApproximateWidth {
		return a, malformed(fp, fmt.Sprintf("length %d, want %d", len(fp), ApproximateWidth), nil)
	}
	chunks, err := Encode(fp[countWidth:])
	if err != nil {
		return a, err
	}
	a.ElementCount = uint32(count)
	a.Chunks = chunks
	return a, nil
}

// String reconstructs the hex fingerprint.
func (a Approximate) String() string {
	return FormatApproximate(a.ElementCount, a.Chunks)
}

// FormatApproximate renders an element count and hash chunks as a fingerprint.
func FormatApproximate(count uint32, chunks Chunks) string {
	return fmt.Sprintf("%08x", count) + chunks.Hex()
}
