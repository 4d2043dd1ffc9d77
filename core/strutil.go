package core

// Utoa formats an unsigned integer without the fmt package.
// fmt pulls a lot of code into TinyGo images, so firmware paths use this.
func Utoa(n uint64) string {
	return utoa(n)
}

// Hex32 formats v as 0x-prefixed, zero-padded hex
func Hex32(v uint32) string {
	const hexDigits = "0123456789abcdef"
	var buf [10]byte
	buf[0] = '0'
	buf[1] = 'x'
	for i := 9; i >= 2; i-- {
		buf[i] = hexDigits[v&0xf]
		v >>= 4
	}
	return string(buf[:])
}

func utoa(n uint64) string {
	if n == 0 {
		return "0"
	}

	var buf [20]byte
	pos := len(buf)
	for n > 0 {
		pos--
		buf[pos] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[pos:])
}
