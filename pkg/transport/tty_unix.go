//go:build linux || darwin

package transport

import (
	"io"
	"os"
	"os/exec"

	"github.com/creack/pty"
	isatty "github.com/mattn/go-isatty"
	"github.com/pkg/term"
	"github.com/pkg/term/termios"
	"golang.org/x/sys/unix"
)

// Pty is a pseudo terminal whose master side is the console transport.
// Terminal programs (screen, minicom, tinydbg connect) attach to the
// slave side by name.
type Pty struct {
	*File
	tty *os.File
}

// OpenPty allocates a pseudo terminal in raw mode.
func OpenPty() (*Pty, error) {
	ptmx, tty, err := pty.Open()
	if err != nil {
		return nil, err
	}
	var attr unix.Termios
	if err := termios.Tcgetattr(tty.Fd(), &attr); err != nil {
		ptmx.Close()
		tty.Close()
		return nil, err
	}
	termios.Cfmakeraw(&attr)
	if err := termios.Tcsetattr(tty.Fd(), termios.TCSANOW, &attr); err != nil {
		ptmx.Close()
		tty.Close()
		return nil, err
	}
	f, err := NewFile(ptmx)
	if err != nil {
		ptmx.Close()
		tty.Close()
		return nil, err
	}
	return &Pty{File: f, tty: tty}, nil
}

// TTYName returns the path of the slave side.
func (p *Pty) TTYName() string {
	return p.tty.Name()
}

// Close closes both sides of the pseudo terminal.
func (p *Pty) Close() error {
	err := p.File.Close()
	if cerr := p.tty.Close(); err == nil {
		err = cerr
	}
	return err
}

// StartPty starts cmd with its standard input, output and error connected
// to a new pseudo terminal and returns the master side.
func StartPty(cmd *exec.Cmd) (*os.File, error) {
	return pty.Start(cmd)
}

// OpenSerialPort opens a serial device in raw mode at the given speed.
func OpenSerialPort(device string, baud int) (io.ReadWriteCloser, error) {
	return term.Open(device, term.Speed(baud), term.RawMode)
}

// OpenSerial returns a transport over a serial device.
func OpenSerial(device string, baud int) (*Stream, error) {
	port, err := OpenSerialPort(device, baud)
	if err != nil {
		return nil, err
	}
	return NewStream(port), nil
}

// Stdio returns a transport over the process' standard input and output.
// When standard input is a terminal it is put in cbreak mode, so that
// bytes arrive as they are typed and are not echoed by the terminal; the
// returned function restores the previous mode.
func Stdio() (*Stream, func(), error) {
	restore := func() {}
	if isatty.IsTerminal(os.Stdin.Fd()) {
		var saved, cbreak unix.Termios
		if err := termios.Tcgetattr(os.Stdin.Fd(), &saved); err != nil {
			return nil, nil, err
		}
		cbreak = saved
		termios.Cfmakecbreak(&cbreak)
		if err := termios.Tcsetattr(os.Stdin.Fd(), termios.TCSANOW, &cbreak); err != nil {
			return nil, nil, err
		}
		restore = func() {
			termios.Tcsetattr(os.Stdin.Fd(), termios.TCSANOW, &saved)
		}
	}
	return NewStream(ReadWriter{os.Stdin, os.Stdout}), restore, nil
}
