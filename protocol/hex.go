package protocol

const hexDigits = "0123456789abcdef"

// ParseHex reads a hexadecimal number from the start of s, stopping at the
// first byte that is not a hex digit. An empty or non-numeric s yields 0.
// Digits beyond 32 bits shift the high ones out.
func ParseHex(s string) uint32 {
	var v uint32
	for i := 0; i < len(s); i++ {
		c := s[i]
		var d byte
		switch {
		case c >= '0' && c <= '9':
			d = c - '0'
		case c >= 'a' && c <= 'f':
			d = c - 'a' + 10
		case c >= 'A' && c <= 'F':
			d = c - 'A' + 10
		default:
			return v
		}
		v = v<<4 | uint32(d)
	}
	return v
}

// FormatHex renders v as exactly digits lowercase hex digits, zero padded
// on the left and truncated to the low digits if v is wider.
func FormatHex(v uint32, digits int) string {
	buf := make([]byte, digits)
	for i := digits - 1; i >= 0; i-- {
		buf[i] = hexDigits[v&0xf]
		v >>= 4
	}
	return string(buf)
}
