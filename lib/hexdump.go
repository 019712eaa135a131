package lib

import "fmt"
import "strings"

// Hexdump render data as lines of 16 bytes, each line has a 4 digit hex
// offset, the bytes in hex and their printable ascii, non-printable
// bytes are shown as '.'.
func Hexdump(data []byte) string {
	if len(data) == 0 {
		return ""
	}

	var out strings.Builder
	ascii := make([]byte, 0, 16)
	i := 0
	for ; i < len(data); i++ {
		if (i % 16) == 0 {
			if i > 0 {
				fmt.Fprintf(&out, "  %s\n", ascii)
				ascii = ascii[:0]
			}
			fmt.Fprintf(&out, "  %04x ", i)
		}
		c := data[i]
		fmt.Fprintf(&out, " %02x", c)
		if 0x20 <= c && c <= 0x7e {
			ascii = append(ascii, c)
		} else {
			ascii = append(ascii, '.')
		}
	}
	if rem := i % 16; rem > 0 {
		out.WriteString(strings.Repeat(" ", 3*(16-rem)))
	}
	fmt.Fprintf(&out, "  %s\n", ascii)
	return out.String()
}
