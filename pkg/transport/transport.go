// Package transport implements the byte streams the console talks over.
//
// The console only needs four operations: write a byte, try to read a
// byte without blocking, count the bytes ready to be read and flush
// pending output. Implementations exist for in-memory buffers, any
// io.ReadWriter, unix file descriptors, pseudo terminals, serial ports,
// the process' own terminal and TCP connections.
package transport

import (
	"bytes"
	"errors"
	"io"
)

// ErrUnsupported is returned by constructors that are not available on
// the current platform.
var ErrUnsupported = errors.New("transport not supported on this platform")

// Transport is a duplex byte stream.
type Transport interface {
	// WriteByte queues c for output.
	WriteByte(c byte) error
	// TryReadByte returns the next input byte, or false if none is
	// available right now. It never blocks.
	TryReadByte() (byte, bool)
	// Available returns the number of input bytes that can be read
	// without blocking.
	Available() int
	// Flush writes any queued output.
	Flush() error
}

// Closer is implemented by transports that can tell when their input has
// been closed by the other end.
type Closer interface {
	// Closed returns true once no more input will ever arrive.
	Closed() bool
}

// Closed returns true if t implements Closer and reports itself closed.
func Closed(t Transport) bool {
	c, ok := t.(Closer)
	return ok && c.Closed()
}

// Writer adapts a Transport to io.Writer.
type Writer struct {
	T Transport
}

func (w Writer) Write(p []byte) (int, error) {
	for i, c := range p {
		if err := w.T.WriteByte(c); err != nil {
			return i, err
		}
	}
	return len(p), nil
}

// WriteString writes s to t.
func WriteString(t Transport, s string) error {
	_, err := io.WriteString(Writer{t}, s)
	return err
}

// Buffer is an in-memory transport. Input is queued with Feed, output
// accumulates until read with String or Reset.
type Buffer struct {
	in      []byte
	out     bytes.Buffer
	hangup  bool
	Flushes int
}

// NewBuffer returns a Buffer whose input is the given script. If hangup is
// true the buffer reports itself closed once the script has been read.
func NewBuffer(script string, hangup bool) *Buffer {
	return &Buffer{in: []byte(script), hangup: hangup}
}

// Feed appends s to the pending input.
func (b *Buffer) Feed(s string) {
	b.in = append(b.in, s...)
}

func (b *Buffer) WriteByte(c byte) error {
	return b.out.WriteByte(c)
}

func (b *Buffer) TryReadByte() (byte, bool) {
	if len(b.in) == 0 {
		return 0, false
	}
	c := b.in[0]
	b.in = b.in[1:]
	return c, true
}

func (b *Buffer) Available() int {
	return len(b.in)
}

func (b *Buffer) Flush() error {
	b.Flushes++
	return nil
}

func (b *Buffer) Closed() bool {
	return b.hangup && len(b.in) == 0
}

// String returns the output written so far.
func (b *Buffer) String() string {
	return b.out.String()
}

// Reset discards the output written so far.
func (b *Buffer) Reset() {
	b.out.Reset()
}
