//go:build !nodebug

// Package dbg provides the instrumentation helpers a monitored program
// calls to talk to its console. Each helper records the file, line and
// function of its caller.
//
// Building with -tags nodebug turns every helper into a no-op, except
// Assert which still terminates the process when its condition is false.
package dbg

import (
	"github.com/go-delve/tinydbg/pkg/console"
	"github.com/go-delve/tinydbg/pkg/registry"
	"github.com/go-delve/tinydbg/pkg/transport"
)

// Enabled is true unless built with the nodebug tag.
const Enabled = true

// Stream attaches c to t and runs the first session.
func Stream(c *console.Console, t transport.Transport) error {
	return c.Begin(t, console.Caller(1))
}

// Assert stops in a session and then terminates the process if cond is
// false. text is the source form of the condition.
func Assert(c *console.Console, cond bool, text string) {
	if !cond {
		c.AssertFailed(console.Caller(1), text)
	}
}

// Breakpoint stops in a session.
func Breakpoint(c *console.Console) {
	c.BreakAt(console.Caller(1), "")
}

// BreakIf stops in a session if cond is true.
func BreakIf(c *console.Console, cond bool, text string) {
	if cond {
		c.BreakAt(console.Caller(1), text)
	}
}

// CheckStack fails like an assertion when less than room bytes are left
// between the heap and the stack.
func CheckStack(c *console.Console, room int) {
	if !c.CheckStack(room) {
		c.AssertFailed(console.Caller(1), "check_stack()")
	}
}

// Observe prints expr and its value.
func Observe(c *console.Console, expr string, value interface{}) {
	observe(c, console.Caller(1), expr, value)
}

// ObserveIf prints expr and its value if cond is true.
func ObserveIf(c *console.Console, cond bool, expr string, value interface{}) {
	if cond {
		observe(c, console.Caller(1), expr, value)
	}
}

func observe(c *console.Console, loc console.Location, expr string, value interface{}) {
	c.ObserveAt(loc, expr)
	c.Printf("%v\n", value)
}

// Register registers a variable of the calling function in sc.
func Register(sc *registry.Scope, name string, addr uint64, size int) registry.Handle {
	return sc.Register(console.Caller(1).Function, name, addr, size)
}
