// Package console implements an in-process debug console.
//
// A Console is attached to a byte transport with Begin. From then on the
// program hands control to the console at breakpoints (BreakAt) and failed
// assertions (AssertFailed): the console prints where it stopped and runs
// a session, reading commands from the transport until the user resumes
// the program with "go" or terminates it with "quit". Entering a session
// blocks the program; the only suspension point is the wait for the next
// input byte, where the console calls its scheduler's Yield.
package console

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/go-delve/tinydbg/pkg/config"
	"github.com/go-delve/tinydbg/pkg/logflags"
	"github.com/go-delve/tinydbg/pkg/memory"
	"github.com/go-delve/tinydbg/pkg/registry"
	"github.com/go-delve/tinydbg/pkg/sched"
	"github.com/go-delve/tinydbg/pkg/transport"
	"github.com/go-delve/tinydbg/pkg/version"
)

var (
	// ErrAttached is returned by Begin when the console already has a
	// transport.
	ErrAttached = errors.New("console already attached")
	// ErrNotAttached is returned by End when the console has no transport.
	ErrNotAttached = errors.New("console not attached")
)

type state uint8

const (
	unattached state = iota
	attached
)

func (s state) String() string {
	switch s {
	case unattached:
		return "unattached"
	case attached:
		return "attached"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// Location is a position in the monitored program's source.
type Location struct {
	File     string
	Line     int
	Function string
}

// Console is a debug console. The zero value is not usable, create one
// with New. A Console must only be used from the flow of control of the
// program it monitors.
type Console struct {
	state state
	t     transport.Transport
	out   io.Writer

	reg      *registry.Registry
	platform memory.Platform
	conf     *config.Config
	cmds     *Commands
	sched    sched.Scheduler
	exit     func(code int)
	version  string

	// captured by Begin
	data memory.Region

	// an LF directly following a CR does not start a new line
	skipLF bool

	log logflags.Logger
}

// Option configures a Console.
type Option func(*Console)

// WithConfig sets the configuration of the console. The default is
// config.Default().
func WithConfig(conf *config.Config) Option {
	return func(c *Console) { c.conf = conf }
}

// WithRegistry sets the registry the console looks variables up in.
func WithRegistry(reg *registry.Registry) Option {
	return func(c *Console) { c.reg = reg }
}

// WithScheduler sets the scheduler called while waiting for input.
func WithScheduler(s sched.Scheduler) Option {
	return func(c *Console) { c.sched = s }
}

// WithExit replaces os.Exit as the function terminating the process
// after a failed assertion or a quit command.
func WithExit(exit func(code int)) Option {
	return func(c *Console) { c.exit = exit }
}

// WithVersion sets the version printed in the banner.
func WithVersion(v string) Option {
	return func(c *Console) { c.version = v }
}

// New returns an unattached console inspecting platform.
func New(platform memory.Platform, opts ...Option) (*Console, error) {
	c := &Console{
		platform: platform,
		exit:     os.Exit,
		log:      logflags.ConsoleLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.conf == nil {
		c.conf = config.Default()
	}
	if err := c.conf.Validate(); err != nil {
		return nil, err
	}
	if c.reg == nil {
		c.reg = registry.New()
	}
	if c.sched == nil {
		c.sched = sched.Gosched{Idle: time.Millisecond}
	}
	if c.version == "" {
		c.version = version.TinydbgVersion.String()
	}
	cmds, err := DebugCommands(c.conf)
	if err != nil {
		return nil, err
	}
	c.cmds = cmds
	return c, nil
}

// Registry returns the registry of the console.
func (c *Console) Registry() *registry.Registry {
	return c.reg
}

// Attached returns true between a successful Begin and the matching End.
func (c *Console) Attached() bool {
	return c.state == attached
}

// Begin attaches the console to t, prints a banner and runs a session.
// It returns ErrAttached, without changing anything, if the console is
// already attached.
func (c *Console) Begin(t transport.Transport, loc Location) error {
	if c.state == attached {
		return ErrAttached
	}
	c.t = t
	c.out = transport.Writer{T: t}
	c.state = attached
	c.skipLF = false

	dataStart := c.platform.DataStart()
	c.data = memory.Region{Start: dataStart, Len: int(c.platform.HeapStart() - dataStart)}
	c.log.WithField("data", c.data).Debugf("attached at %s:%d", loc.File, loc.Line)

	fmt.Fprintf(c.out, "tinydbg (%s) %s\n", c.conf.Arch, c.version)
	fmt.Fprintf(c.out, "For help, type \"help\".\n")
	fmt.Fprintf(c.out, "begin:%s:%d\n", loc.Function, loc.Line)
	c.session(loc)
	return nil
}

// AssertFailed reports a failed assertion, runs a session and terminates
// the process. It does not return unless the exit function does.
func (c *Console) AssertFailed(loc Location, cond string) {
	if c.state != attached {
		c.log.Errorf("assertion failed at %s:%d: %s", loc.File, loc.Line, cond)
		c.exit(0)
		return
	}
	fmt.Fprintf(c.out, "assert:%s:%d:%s\n", loc.Function, loc.Line, cond)
	if c.session(loc) == resumed {
		c.terminate()
	}
}

// BreakAt stops at a breakpoint and runs a session. It returns when the
// user resumes the program. An empty cond is not printed.
func (c *Console) BreakAt(loc Location, cond string) {
	if c.state != attached {
		c.log.Debugf("breakpoint at %s:%d ignored, console not attached", loc.File, loc.Line)
		return
	}
	if cond != "" {
		fmt.Fprintf(c.out, "break:%s:%d:%s\n", loc.Function, loc.Line, cond)
	} else {
		fmt.Fprintf(c.out, "break:%s:%d\n", loc.Function, loc.Line)
	}
	c.session(loc)
}

// ObserveAt prints the prefix of an observation and returns. The caller
// prints the observed value.
func (c *Console) ObserveAt(loc Location, expr string) {
	if c.state != attached {
		return
	}
	fmt.Fprintf(c.out, "observe:%s:%d:%s=", loc.Function, loc.Line, expr)
}

// Printf writes to the attached transport. It does nothing when the
// console is not attached.
func (c *Console) Printf(format string, args ...interface{}) {
	if c.state != attached {
		return
	}
	fmt.Fprintf(c.out, format, args...)
	c.flush()
}

// End prints a farewell, waits for the output to drain and detaches the
// console. It returns ErrNotAttached if there is nothing to detach.
func (c *Console) End() error {
	if c.state != attached {
		return ErrNotAttached
	}
	fmt.Fprintf(c.out, "end\n")
	c.flush()
	if d := c.conf.Delay(); d > 0 {
		time.Sleep(d)
	}
	c.t = nil
	c.out = nil
	c.state = unattached
	c.log.Debug("detached")
	return nil
}

// CheckStack returns false if fewer than room bytes are left between the
// heap and the stack.
func (c *Console) CheckStack(room int) bool {
	return memory.CheckStack(c.platform, c.platform.StackMarker(), room)
}

// terminate detaches and exits the process.
func (c *Console) terminate() {
	c.End()
	c.exit(0)
}

func (c *Console) flush() {
	if err := c.t.Flush(); err != nil {
		c.log.WithError(err).Warn("flush failed")
	}
}

// Here returns the location of its caller.
func Here() Location {
	return Caller(1)
}

// Caller returns the location of the function skip frames above its
// caller.
func Caller(skip int) Location {
	pc, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return Location{File: "?", Function: "?"}
	}
	loc := Location{File: file, Line: line, Function: "?"}
	if fn := runtime.FuncForPC(pc); fn != nil {
		loc.Function = shortFuncName(fn.Name())
	}
	return loc
}

// shortFuncName strips the package path from a function name, so that
// "github.com/x/y.(*T).m" becomes "(*T).m".
func shortFuncName(name string) string {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '/' {
			name = name[i+1:]
			break
		}
	}
	for i := 0; i < len(name); i++ {
		if name[i] == '.' {
			return name[i+1:]
		}
	}
	return name
}
