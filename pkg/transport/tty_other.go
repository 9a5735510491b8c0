//go:build !linux && !darwin

package transport

import (
	"io"
	"os"
	"os/exec"
)

// Pty is not available on this platform.
type Pty struct {
	*Stream
}

func OpenPty() (*Pty, error) {
	return nil, ErrUnsupported
}

func (p *Pty) TTYName() string {
	return ""
}

func StartPty(cmd *exec.Cmd) (*os.File, error) {
	return nil, ErrUnsupported
}

func OpenSerialPort(device string, baud int) (io.ReadWriteCloser, error) {
	return nil, ErrUnsupported
}

func OpenSerial(device string, baud int) (*Stream, error) {
	return nil, ErrUnsupported
}

// Stdio returns a transport over the process' standard input and output.
// The terminal mode is left alone.
func Stdio() (*Stream, func(), error) {
	return NewStream(ReadWriter{os.Stdin, os.Stdout}), func() {}, nil
}
