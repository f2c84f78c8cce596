// Package conv formats the fixed-point values drivers report without
// pulling fmt into MCU images.
package conv

// Itoa writes n in base 10 at the end of buf and returns the used tail.
// buf should be at least 20 bytes for int64.
func Itoa(buf []byte, n int64) []byte {
	if len(buf) == 0 {
		return buf[:0]
	}
	i := len(buf)
	neg := n < 0
	u := uint64(n)
	if neg {
		u = uint64(-n)
	}
	if u == 0 {
		i--
		buf[i] = '0'
	}
	for u > 0 && i > 0 {
		i--
		buf[i] = byte('0' + u%10)
		u /= 10
	}
	if neg && i > 0 {
		i--
		buf[i] = '-'
	}
	return buf[i:]
}

// Deci renders a tenths value with one decimal place: 234 -> "23.4",
// -5 -> "-0.5".
func Deci(v int32) string {
	var b [24]byte
	neg := v < 0
	u := int64(v)
	if neg {
		u = -u
	}
	frac := byte('0' + u%10)
	s := Itoa(b[:len(b)-2], u/10)
	out := make([]byte, 0, len(s)+3)
	if neg {
		out = append(out, '-')
	}
	out = append(out, s...)
	return string(append(out, '.', frac))
}

// DeciF converts deci-°C to deci-°F, rounding half away from zero.
func DeciF(deciC int32) int32 {
	v := deciC*9 + 1600
	if v >= 0 {
		return (v + 2) / 5
	}
	return (v - 2) / 5
}
