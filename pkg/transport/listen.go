package transport

import (
	"context"
	"net"
)

// Listen listens on the TCP address addr, calls ready with the bound
// address and returns a transport over the first accepted connection.
// The listener is closed once a connection has been accepted or ctx is
// done.
func Listen(ctx context.Context, addr string, ready func(net.Addr)) (*Stream, error) {
	var lc net.ListenConfig
	l, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	defer l.Close()
	if ready != nil {
		ready(l.Addr())
	}

	c, err := accept(ctx, l)
	if err != nil {
		return nil, err
	}
	return NewStream(c), nil
}

// accept waits for one connection on l. When ctx is done first, l is
// closed and a connection accepted in the meantime is closed too.
func accept(ctx context.Context, l net.Listener) (net.Conn, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		c, err := l.Accept()
		ch <- result{c, err}
	}()

	select {
	case r := <-ch:
		return r.conn, r.err
	case <-ctx.Done():
		l.Close()
		if r := <-ch; r.conn != nil {
			r.conn.Close()
		}
		return nil, ctx.Err()
	}
}
