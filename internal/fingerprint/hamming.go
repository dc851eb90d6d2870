package fingerprint

import "math/bits"

// HammingDistance counts differing bits between two equal-length byte
// slices. Bytes past the shorter slice count as fully different.
func HammingDistance(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	d := 0
	for i := 0; i < n; i++ {
		d += bits.OnesCount8(a[i] ^ b[i])
	}
	if len(a) > n {
		d += 8 * (len(a) - n)
	}
	if len(b) > n {
		d += 8 * (len(b) - n)
	}
	return d
}

// Distance is the Hamming distance between the hashes of two approximate
// fingerprints. The element count does not contribute.
func Distance(a, b Chunks) int {
	return HammingDistance(a.Bytes(), b.Bytes())
}
