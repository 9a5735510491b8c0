//go:build linux || darwin

package transport

import (
	"bufio"
	"errors"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/go-delve/tinydbg/pkg/logflags"
)

// File is a Transport over a unix file descriptor (a pty or a serial
// device). The descriptor is switched to non-blocking mode: reads return
// immediately and Available asks the kernel how many bytes are queued.
type File struct {
	f      *os.File
	fd     int
	w      *bufio.Writer
	closed bool
	log    logflags.Logger
}

// NewFile returns a transport reading and writing f.
func NewFile(f *os.File) (*File, error) {
	fd := int(f.Fd())
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, err
	}
	t := &File{f: f, fd: fd, log: logflags.TransportLogger()}
	t.w = bufio.NewWriter(fdWriter(fd))
	return t, nil
}

func (t *File) WriteByte(c byte) error {
	return t.w.WriteByte(c)
}

func (t *File) TryReadByte() (byte, bool) {
	if t.closed {
		return 0, false
	}
	var b [1]byte
	n, err := unix.Read(t.fd, b[:])
	switch {
	case n == 1:
		return b[0], true
	case err == unix.EAGAIN || err == unix.EINTR:
		return 0, false
	case err == nil || errors.Is(err, unix.EIO):
		// EOF, or the other side of a pty went away.
		t.closed = true
	default:
		t.log.WithError(err).Warn("read failed")
		t.closed = true
	}
	return 0, false
}

func (t *File) Available() int {
	n, err := unix.IoctlGetInt(t.fd, ioctlInputQueue)
	if err != nil {
		return 0
	}
	return n
}

func (t *File) Flush() error {
	return t.w.Flush()
}

func (t *File) Closed() bool {
	return t.closed
}

// Name returns the name of the underlying file.
func (t *File) Name() string {
	return t.f.Name()
}

// Close flushes pending output and closes the file.
func (t *File) Close() error {
	err := t.w.Flush()
	if cerr := t.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// fdWriter writes to a non-blocking descriptor, waiting while the kernel
// buffer is full.
type fdWriter int

func (fd fdWriter) Write(p []byte) (int, error) {
	written := 0
	for written < len(p) {
		n, err := unix.Write(int(fd), p[written:])
		if n > 0 {
			written += n
		}
		switch {
		case err == unix.EAGAIN || err == unix.EINTR:
			time.Sleep(time.Millisecond)
		case err != nil:
			return written, err
		}
	}
	return written, nil
}
