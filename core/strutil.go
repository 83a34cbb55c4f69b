package core

// itoa converts an integer to a string without using fmt package
func itoa(n int) string {
	if n < 0 {
		return "-" + utoa(uint32(-n))
	}
	return utoa(uint32(n))
}

// utoa converts an unsigned integer to a string
func utoa(n uint32) string {
	if n == 0 {
		return "0"
	}

	var buf [10]byte
	pos := len(buf)
	for n > 0 {
		pos--
		buf[pos] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[pos:])
}

// padDecimal renders n right-aligned in width characters, space padded,
// the way the lock prints sensor readings.
func padDecimal(n int, width int) string {
	s := itoa(n)
	for len(s) < width {
		s = " " + s
	}
	return s
}
