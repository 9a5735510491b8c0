package memory

import (
	"bufio"
	"fmt"
	"io"
)

// BytesPerLine is the number of bytes printed on each line of a dump.
const BytesPerLine = 16

const hexdigits = "0123456789ABCDEF"

// Dump reads region from r and writes it to w as lines of
//
//	0xADDR: B0 B1 ... B15
//
// The address has at least four hex digits, each byte is two uppercase
// hex digits and every line, including a trailing partial one, ends with a
// newline. An empty region writes nothing.
func Dump(w io.Writer, r Reader, region Region) error {
	if region.Len <= 0 {
		return nil
	}
	bw := bufio.NewWriter(w)
	buf := make([]byte, BytesPerLine)
	addr := region.Start
	for left := region.Len; left > 0; {
		n := BytesPerLine
		if left < n {
			n = left
		}
		if _, err := r.ReadMemory(buf[:n], addr); err != nil {
			bw.Flush()
			return fmt.Errorf("reading %d bytes at %#x: %w", n, addr, err)
		}
		writeLine(bw, addr, buf[:n])
		addr += uint64(n)
		left -= n
	}
	return bw.Flush()
}

// DumpBytes writes data as if it had been read from memory at addr.
func DumpBytes(w io.Writer, addr uint64, data []byte) error {
	bw := bufio.NewWriter(w)
	for len(data) > 0 {
		n := BytesPerLine
		if len(data) < n {
			n = len(data)
		}
		writeLine(bw, addr, data[:n])
		data = data[n:]
		addr += uint64(n)
	}
	return bw.Flush()
}

func writeLine(bw *bufio.Writer, addr uint64, line []byte) {
	fmt.Fprintf(bw, "0x%04X: ", addr)
	for i, b := range line {
		if i > 0 {
			bw.WriteByte(' ')
		}
		bw.WriteByte(hexdigits[b>>4])
		bw.WriteByte(hexdigits[b&0x0f])
	}
	bw.WriteByte('\n')
}
