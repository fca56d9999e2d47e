// Package conv formats integers into caller-provided buffers so log lines
// can be built on the interrupt-delivery path without fmt.
package conv

const digits = "0123456789ABCDEF"

// Utoa writes n in base 10 at the end of buf and returns the written tail.
// A 20-byte buffer holds any uint64.
func Utoa(buf []byte, n uint64) []byte {
	i := len(buf)
	for i > 0 {
		i--
		buf[i] = digits[n%10]
		n /= 10
		if n == 0 {
			return buf[i:]
		}
	}
	return buf[i:]
}

// Itoa is Utoa with a leading '-' for negative n.
func Itoa(buf []byte, n int64) []byte {
	if n >= 0 {
		return Utoa(buf, uint64(n))
	}
	out := Utoa(buf, uint64(-n))
	i := len(buf) - len(out)
	if i == 0 {
		return out
	}
	buf[i-1] = '-'
	return buf[i-1:]
}

// U32Hex writes n as eight upper-case hex digits, without a 0x prefix.
// Buffers shorter than eight bytes yield an empty slice.
func U32Hex(buf []byte, n uint32) []byte {
	if len(buf) < 8 {
		return buf[:0]
	}
	out := buf[len(buf)-8:]
	for i := 7; i >= 0; i-- {
		out[i] = digits[n&0xF]
		n >>= 4
	}
	return out
}
