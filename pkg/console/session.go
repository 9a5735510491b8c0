package console

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-delve/tinydbg/pkg/logflags"
	"github.com/go-delve/tinydbg/pkg/transport"
)

type outcome uint8

const (
	resumed outcome = iota
	quit
)

var (
	errResume = errors.New("resume")
	errQuit   = errors.New("quit")
)

const (
	backspace = 0x08
	del       = 0x7f
)

// session runs the read-evaluate-print loop until the user resumes or
// quits. On quit the process has already been terminated, unless the exit
// function returned.
func (c *Console) session(loc Location) outcome {
	for {
		fmt.Fprint(c.out, c.conf.Prompt)
		c.flush()
		line, ok := c.readLine()
		if !ok {
			c.log.Info("transport closed, quitting")
			c.terminate()
			return quit
		}
		if line == "" {
			continue
		}
		if logflags.Console() {
			c.log.Debugf("command %q at %s:%d", line, loc.File, loc.Line)
		}
		ctx := callContext{Location: loc, Marker: c.platform.StackMarker()}
		switch err := c.cmds.Call(c, ctx, line); err {
		case nil:
		case errResume:
			c.flush()
			return resumed
		case errQuit:
			c.terminate()
			return quit
		default:
			fmt.Fprintln(c.out, err)
		}
	}
}

// readLine reads one line from the transport, echoing accepted bytes.
// It returns false if the transport was closed before a line terminator
// arrived.
func (c *Console) readLine() (string, bool) {
	buf := make([]byte, 0, c.conf.MaxLineLength)
	echo := c.conf.EchoEnabled()
	for {
		b, ok := c.t.TryReadByte()
		if !ok {
			if transport.Closed(c.t) {
				return "", false
			}
			c.sched.Yield()
			continue
		}
		if c.skipLF {
			c.skipLF = false
			if b == '\n' {
				continue
			}
		}
		switch b {
		case 0:
		case '\r':
			c.skipLF = true
			fallthrough
		case '\n':
			fmt.Fprintln(c.out)
			c.flush()
			return strings.TrimSpace(string(buf)), true
		case backspace, del:
			if len(buf) == 0 {
				break
			}
			buf = buf[:len(buf)-1]
			if echo {
				fmt.Fprint(c.out, "\b \b")
				c.flush()
			}
		default:
			if len(buf) >= c.conf.MaxLineLength {
				break
			}
			buf = append(buf, b)
			if echo {
				c.t.WriteByte(b)
				c.flush()
			}
		}
	}
}
