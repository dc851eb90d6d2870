package fingerprint

import (
	"encoding/hex"
	"fmt"
)

// ChunkCount is the number of independently indexed segments per fingerprint.
const ChunkCount = 4

// Chunks holds the binary form of the four fingerprint segments, in order.
type Chunks [ChunkCount][]byte

// Split cuts a hex fingerprint into four equal contiguous substrings.
// The length must be a multiple of 8 so every chunk is byte aligned.
func Split(fp string) ([ChunkCount]string, error) {
	var parts [ChunkCount]string
	if i := invalidHexIndex(fp); i >= 0 {
		return parts, malformed(fp, "non-hexadecimal digit found", fmt.Errorf("invalid byte %q at offset %d", fp[i], i))
	}
	if len(fp) == 0 || len(fp)%(2*ChunkCount) != 0 {
		return parts, malformed(fp, fmt.Sprintf("length %d is not a positive multiple of %d", len(fp), 2*ChunkCount), nil)
	}
	size := len(fp) / ChunkCount
	for i := range parts {
		parts[i] = fp[i*size : (i+1)*size]
	}
	return parts, nil
}

// Join concatenates chunks back into the fingerprint they were split from.
func Join(parts [ChunkCount]string) string {
	return parts[0] + parts[1] + parts[2] + parts[3]
}

// Encode splits fp and converts each chunk to its binary representation.
func Encode(fp string) (Chunks, error) {
	var chunks Chunks
	parts, err := Split(fp)
	if err != nil {
		return chunks, err
	}
	for i, part := range parts {
		b, err := hex.DecodeString(part)
		if err != nil {
			return chunks, malformed(fp, "decoding chunk", err)
		}
		chunks[i] = b
	}
	return chunks, nil
}

// Hex renders the chunks back into a lowercase hex fingerprint.
func (c Chunks) Hex() string {
	var parts [ChunkCount]string
	for i, b := range c {
		parts[i] = hex.EncodeToString(b)
	}
	return Join(parts)
}

// Bytes returns the chunks concatenated into a single slice.
func (c Chunks) Bytes() []byte {
	out := make([]byte, 0, len(c[0])*ChunkCount)
	for _, b := range c {
		out = append(out, b...)
	}
	return out
}

func invalidHexIndex(s string) int {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return i
		}
	}
	return -1
}
