//go:build nodebug

package dbg

import (
	"os"

	"github.com/go-delve/tinydbg/pkg/console"
	"github.com/go-delve/tinydbg/pkg/registry"
	"github.com/go-delve/tinydbg/pkg/transport"
)

const Enabled = false

func Stream(c *console.Console, t transport.Transport) error { return nil }

func Assert(c *console.Console, cond bool, text string) {
	if !cond {
		os.Exit(0)
	}
}

func Breakpoint(c *console.Console) {}

func BreakIf(c *console.Console, cond bool, text string) {}

func CheckStack(c *console.Console, room int) {}

func Observe(c *console.Console, expr string, value interface{}) {}

func ObserveIf(c *console.Console, cond bool, expr string, value interface{}) {}

func Register(sc *registry.Scope, name string, addr uint64, size int) registry.Handle {
	return registry.Handle{}
}
