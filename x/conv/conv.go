// Package conv formats numbers and bytes into caller buffers without fmt
// or strconv, for MCU builds where those pull in too much.
package conv

const hexd = "0123456789ABCDEF"

// AppendHex appends p as space-separated uppercase hex pairs.
func AppendHex(dst, p []byte) []byte {
	for i, b := range p {
		if i > 0 {
			dst = append(dst, ' ')
		}
		dst = append(dst, hexd[b>>4], hexd[b&0xF])
	}
	return dst
}

// AppendUint appends the base-10 representation of n.
func AppendUint(dst []byte, n uint64) []byte {
	var tmp [20]byte
	i := len(tmp)
	if n == 0 {
		i--
		tmp[i] = '0'
	}
	for n > 0 {
		i--
		tmp[i] = byte('0' + n%10)
		n /= 10
	}
	return append(dst, tmp[i:]...)
}
