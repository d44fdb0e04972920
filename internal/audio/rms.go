package audio

import "math"

// RMS computes the root mean square of little-endian PCM16 samples.
// A trailing odd byte is ignored.
func RMS(b []byte) float64 {
	if len(b) < 2 {
		return 0
	}
	var sum float64
	n := len(b) / 2
	for i := 0; i < n; i++ {
		sample := int16(uint16(b[i*2]) | uint16(b[i*2+1])<<8)
		sum += float64(sample) * float64(sample)
	}
	return math.Sqrt(sum / float64(n))
}

// PadLeading prefixes pad zero bytes when b is shorter than floor.
func PadLeading(b []byte, floor, pad int) []byte {
	if len(b) >= floor || pad <= 0 {
		return b
	}
	out := make([]byte, pad+len(b))
	copy(out[pad:], b)
	return out
}

// TrimLeadingSilence drops leading all-zero samples.
func TrimLeadingSilence(b []byte) []byte {
	i := 0
	for i+1 < len(b) && b[i] == 0 && b[i+1] == 0 {
		i += 2
	}
	return b[i:]
}

// Tone returns n bytes of PCM16 with every sample set to amp, alternating sign.
// Its RMS is |amp|.
func Tone(n int, amp int16) []byte {
	out := make([]byte, n-n%2)
	for i := 0; i+1 < len(out); i += 2 {
		v := amp
		if (i/2)%2 == 1 {
			v = -amp
		}
		out[i] = byte(uint16(v))
		out[i+1] = byte(uint16(v) >> 8)
	}
	return out
}
