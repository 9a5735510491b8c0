package transport

import (
	"bufio"
	"io"
	"sync"

	"github.com/go-delve/tinydbg/pkg/logflags"
)

const streamBufferSize = 4096

// Stream is a Transport over an io.ReadWriter. A background goroutine
// reads from the underlying reader into a bounded buffer so that
// TryReadByte never blocks; it does nothing else.
type Stream struct {
	rw  io.ReadWriter
	w   *bufio.Writer
	in  chan byte
	log logflags.Logger

	done chan struct{}
	mu   sync.Mutex
	err  error
}

// NewStream starts reading from rw and returns the transport.
func NewStream(rw io.ReadWriter) *Stream {
	s := &Stream{
		rw:   rw,
		w:    bufio.NewWriter(rw),
		in:   make(chan byte, streamBufferSize),
		log:  logflags.TransportLogger(),
		done: make(chan struct{}),
	}
	go s.readLoop()
	return s
}

func (s *Stream) readLoop() {
	defer close(s.done)
	buf := make([]byte, 256)
	for {
		n, err := s.rw.Read(buf)
		if n > 0 && logflags.Transport() {
			s.log.Debugf("<- %q", buf[:n])
		}
		for _, c := range buf[:n] {
			s.in <- c
		}
		if err != nil {
			if err != io.EOF {
				s.log.WithError(err).Warn("read failed")
			}
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
			return
		}
	}
}

func (s *Stream) WriteByte(c byte) error {
	return s.w.WriteByte(c)
}

func (s *Stream) TryReadByte() (byte, bool) {
	select {
	case c := <-s.in:
		return c, true
	default:
		return 0, false
	}
}

func (s *Stream) Available() int {
	return len(s.in)
}

func (s *Stream) Flush() error {
	if logflags.Transport() && s.w.Buffered() > 0 {
		s.log.Debugf("-> %d bytes", s.w.Buffered())
	}
	return s.w.Flush()
}

// Closed returns true once the reader has stopped and every byte it read
// has been consumed.
func (s *Stream) Closed() bool {
	select {
	case <-s.done:
		return len(s.in) == 0
	default:
		return false
	}
}

// Err returns the error that stopped the reader, if any.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close flushes pending output and closes the underlying stream if it is
// an io.Closer.
func (s *Stream) Close() error {
	err := s.w.Flush()
	if c, ok := s.rw.(io.Closer); ok {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// ReadWriter joins a reader and a writer, for example os.Stdin and
// os.Stdout.
type ReadWriter struct {
	io.Reader
	io.Writer
}
