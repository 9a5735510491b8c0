package console

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-delve/tinydbg/pkg/config"
	"github.com/go-delve/tinydbg/pkg/memory"
	"github.com/go-delve/tinydbg/pkg/sched"
	"github.com/go-delve/tinydbg/pkg/transport"
)

const (
	ramStart = 0x0100
	ramSize  = 2048
	dataSize = 512
)

// exitCode is the panic value of the exit function used by tests.
type exitCode int

type fixture struct {
	t   *testing.T
	ram *memory.RAM
	c   *Console
}

func testConfig() *config.Config {
	conf := config.Default()
	var d time.Duration
	conf.EndDelay = &d
	return conf
}

func newFixture(t *testing.T, conf *config.Config, opts ...Option) *fixture {
	t.Helper()
	if conf == nil {
		conf = testConfig()
	}
	ram := memory.NewRAM(ramStart, ramSize, dataSize)
	opts = append([]Option{
		WithConfig(conf),
		WithVersion("test"),
		WithScheduler(sched.SchedulerFunc(func() {})),
		WithExit(func(code int) { panic(exitCode(code)) }),
	}, opts...)
	c, err := New(ram, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{t: t, ram: ram, c: c}
}

// exits runs f and reports whether it called the exit function.
func exits(f func()) (exited bool, code int) {
	defer func() {
		if ec, ok := recover().(exitCode); ok {
			exited, code = true, int(ec)
		}
	}()
	f()
	return false, 0
}

// begin attaches the console to a buffer running script and returns the
// buffer. The script must resume the program.
func (fx *fixture) begin(script string) *transport.Buffer {
	fx.t.Helper()
	buf := transport.NewBuffer(script, true)
	if exited, _ := exits(func() {
		if err := fx.c.Begin(buf, Location{File: "main.go", Line: 10, Function: "setup"}); err != nil {
			fx.t.Fatal(err)
		}
	}); exited {
		fx.t.Fatalf("exited during begin, output:\n%s", buf)
	}
	return buf
}

// session runs script in a breakpoint and returns what was printed after
// the breakpoint line.
func (fx *fixture) session(buf *transport.Buffer, script string) string {
	fx.t.Helper()
	buf.Reset()
	buf.Feed(script)
	if exited, _ := exits(func() { fx.c.BreakAt(Location{File: "main.go", Line: 20, Function: "loop"}, "") }); exited {
		fx.t.Fatalf("exited during session, output:\n%s", buf)
	}
	return strings.TrimPrefix(buf.String(), "break:loop:20\n")
}

func TestBeginOutput(t *testing.T) {
	fx := newFixture(t, nil)
	x := fx.ram.Static(0)
	fx.ram.PutUint16(x, 10)
	fx.c.Registry().Register("loop", "x", x, 2)

	buf := fx.begin("?x\rgo\r")
	want := "tinydbg (sim) test\n" +
		"For help, type \"help\".\n" +
		"begin:setup:10\n" +
		"(debug) ?x\n" +
		"loop:x@0x0100=10 (0xA)\n" +
		"(debug) go\n"
	if got := buf.String(); got != want {
		t.Errorf("got:\n%q\nwant:\n%q", got, want)
	}
	if !fx.c.Attached() {
		t.Error("console not attached after begin")
	}
}

func TestBeginTwice(t *testing.T) {
	fx := newFixture(t, nil)
	fx.begin("go\r")
	other := transport.NewBuffer("go\r", true)
	if err := fx.c.Begin(other, Location{}); !errors.Is(err, ErrAttached) {
		t.Fatalf("second begin: %v", err)
	}
	if other.String() != "" || other.Available() != 3 {
		t.Errorf("second begin touched its transport: %q", other.String())
	}
}

func TestEndUnattached(t *testing.T) {
	fx := newFixture(t, nil)
	if err := fx.c.End(); !errors.Is(err, ErrNotAttached) {
		t.Fatalf("end while unattached: %v", err)
	}
	if fx.c.Attached() {
		t.Fatal("end changed the state")
	}
	buf := fx.begin("go\r")
	if err := fx.c.End(); err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(buf.String(), "end\n") {
		t.Errorf("missing farewell: %q", buf.String())
	}
	if fx.c.Attached() {
		t.Fatal("still attached after end")
	}
	fx.begin("go\r")
}

func TestResume(t *testing.T) {
	fx := newFixture(t, nil)
	buf := fx.begin("go\r")
	buf.Feed("go\r")
	exited, _ := exits(func() { fx.c.BreakAt(Location{Function: "loop", Line: 3}, "n > 2") })
	if exited {
		t.Fatal("go terminated the process")
	}
	if !strings.Contains(buf.String(), "break:loop:3:n > 2\n(debug) go\n") {
		t.Errorf("unexpected output %q", buf.String())
	}
	if !fx.c.Attached() {
		t.Error("detached after go")
	}
}

func TestQuit(t *testing.T) {
	fx := newFixture(t, nil)
	buf := fx.begin("go\r")
	buf.Feed("quit\r")
	exited, code := exits(func() { fx.c.BreakAt(Location{Function: "loop"}, "") })
	if !exited || code != 0 {
		t.Fatalf("quit: exited %v code %d", exited, code)
	}
	if !strings.HasSuffix(buf.String(), "(debug) quit\nend\n") {
		t.Errorf("unexpected output %q", buf.String())
	}
	if fx.c.Attached() {
		t.Error("still attached after quit")
	}
}

func TestQuitExitReturns(t *testing.T) {
	exitCalls := 0
	fx := newFixture(t, nil, WithExit(func(int) { exitCalls++ }))
	buf := fx.begin("go\r")
	buf.Feed("quit\r")
	fx.c.AssertFailed(Location{Function: "loop"}, "x > 0")
	if exitCalls != 1 {
		t.Errorf("exit called %d times", exitCalls)
	}
}

func TestAssertTerminates(t *testing.T) {
	fx := newFixture(t, nil)
	buf := fx.begin("go\r")
	buf.Feed("where\rgo\r")
	exited, _ := exits(func() {
		fx.c.AssertFailed(Location{File: "main.go", Line: 7, Function: "loop"}, "x < 10")
	})
	if !exited {
		t.Fatal("assert returned to the program")
	}
	out := buf.String()
	for _, s := range []string{"assert:loop:7:x < 10\n", "main.go:7:loop\n", "(debug) go\nend\n"} {
		if !strings.Contains(out, s) {
			t.Errorf("missing %q in %q", s, out)
		}
	}
}

func TestAssertUnattached(t *testing.T) {
	fx := newFixture(t, nil)
	if exited, _ := exits(func() { fx.c.AssertFailed(Location{}, "false") }); !exited {
		t.Fatal("assert returned while unattached")
	}
}

func TestHangupQuits(t *testing.T) {
	fx := newFixture(t, nil)
	buf := transport.NewBuffer("where\r", true)
	exited, _ := exits(func() { fx.c.Begin(buf, Location{Function: "setup"}) })
	if !exited {
		t.Fatal("closed transport did not end the session")
	}
	if fx.c.Attached() {
		t.Error("still attached")
	}
}

func TestAmbiguousPrefix(t *testing.T) {
	fx := newFixture(t, nil)
	buf := fx.begin("go\r")
	out := fx.session(buf, "he\rgo\r")
	if !strings.Contains(out, "he: ambiguous command\n") {
		t.Errorf("he not rejected: %q", out)
	}

	conf := testConfig()
	conf.AmbiguousPrefix = config.AmbiguousFirst
	fx = newFixture(t, conf)
	addr, _ := fx.ram.Malloc(2)
	fx.ram.PutUint16(addr, 0xBEEF)
	buf = fx.begin("go\r")
	out = fx.session(buf, "he\rgo\r")
	if !strings.Contains(out, "(debug) he\n0x0300: EF BE\n") {
		t.Errorf("he did not run heap: %q", out)
	}
}


func TestCommandResolution(t *testing.T) {
	conf := testConfig()
	conf.Aliases = map[string][]string{"go": {"continue"}}
	conf.DisableCommands = []string{"data"}
	cmds, err := DebugCommands(conf)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		in        string
		want      string
		ambiguous bool
	}{
		{"go", "go", false},
		{"g", "go", false},
		{"cont", "go", false},
		{"continue", "go", false},
		{"c", "", true},
		{"co", "", true},
		{"com", "commands", false},
		{"help", "commands", false},
		{"h", "", true},
		{"hea", "heap", false},
		{"data", "", false},
		{"d", "", false},
		{"b", "backtrace", false},
		{"goo", "", false},
		{"Go", "", false},
	}
	for _, tc := range tests {
		// twice, the second time from the cache
		for i := 0; i < 2; i++ {
			cmd, ambiguous := cmds.Find(tc.in)
			got := ""
			if cmd != nil {
				got = cmd.aliases[0]
			}
			if got != tc.want || ambiguous != tc.ambiguous {
				t.Errorf("Find(%q) = %q, %v; want %q, %v", tc.in, got, ambiguous, tc.want, tc.ambiguous)
			}
		}
	}
}

func TestDuplicateAlias(t *testing.T) {
	conf := testConfig()
	conf.Aliases = map[string][]string{"go": {"where"}}
	if _, err := DebugCommands(conf); err == nil {
		t.Fatal("alias shadowing a command accepted")
	}
}

func TestUnknown(t *testing.T) {
	conf := testConfig()
	conf.DisableCommands = []string{"heap"}
	fx := newFixture(t, conf)
	buf := fx.begin("go\r")

	tests := []struct {
		in, want string
	}{
		{"foo", "foo: unknown command\n"},
		{"heap", "heap: unknown command\n"},
		{"?nope", "nope: unknown variable\n"},
		{"@nope", "nope: unknown variable\n"},
		{"wherever", "wherever: unknown command\n"},
		{"go now", "go now: unknown command\n"},
		{"quit please", "quit please: unknown command\n"},
		{"variables x", "variables x: unknown command\n"},
	}
	for _, tc := range tests {
		out := fx.session(buf, tc.in+"\rgo\r")
		want := "(debug) " + tc.in + "\n" + tc.want + "(debug) go\n"
		if out != want {
			t.Errorf("%s: got %q, want %q", tc.in, out, want)
		}
	}
}

func TestLookupDisabled(t *testing.T) {
	conf := testConfig()
	conf.DisableCommands = []string{"lookup"}
	fx := newFixture(t, conf)
	fx.c.Registry().Register("loop", "x", fx.ram.Static(0), 2)
	buf := fx.begin("go\r")
	if out := fx.session(buf, "?x\rgo\r"); !strings.Contains(out, "?x: unknown command\n") {
		t.Errorf("lookup still enabled: %q", out)
	}
}

func TestLineEditing(t *testing.T) {
	fx := newFixture(t, nil)
	buf := fx.begin("go\r")

	// CR LF is a single line terminator
	out := fx.session(buf, "where\r\ngo\r\n")
	if n := strings.Count(out, "(debug) "); n != 2 {
		t.Errorf("CR LF: %d prompts in %q", n, out)
	}
	if !strings.Contains(out, "main.go:20:loop\n") {
		t.Errorf("CR LF: where not run: %q", out)
	}

	// empty lines re-prompt
	out = fx.session(buf, "\n\n  \ngo\n")
	if n := strings.Count(out, "(debug) "); n != 4 {
		t.Errorf("empty lines: %d prompts in %q", n, out)
	}

	out = fx.session(buf, "wherx\be\rgo\r")
	if out != "(debug) wherx\b \be\nmain.go:20:loop\n(debug) go\n" {
		t.Errorf("backspace: %q", out)
	}
	out = fx.session(buf, "\x7f\x7fg\x7fgo\r")
	if !strings.HasSuffix(out, "go\n") {
		t.Errorf("delete: %q", out)
	}

	long := strings.Repeat("a", 40)
	out = fx.session(buf, long+"\rgo\r")
	trimmed := strings.Repeat("a", config.DefaultMaxLineLength)
	if !strings.Contains(out, "(debug) "+trimmed+"\n"+trimmed+": unknown command\n") {
		t.Errorf("long line: %q", out)
	}
}

func TestNoEcho(t *testing.T) {
	conf := testConfig()
	echo := false
	conf.Echo = &echo
	conf.Prompt = "> "
	fx := newFixture(t, conf)
	buf := fx.begin("go\r")
	if out := fx.session(buf, "where\rgo\r"); out != "> \nmain.go:20:loop\n> \n" {
		t.Errorf("got %q", out)
	}
}

func TestYieldWhileWaiting(t *testing.T) {
	loop := sched.NewLoop(0)
	fx := newFixture(t, nil, WithScheduler(loop))
	buf := transport.NewBuffer("", false)
	n := 0
	loop.Go(func() bool {
		n++
		if n == 5 {
			buf.Feed("go\r")
			return false
		}
		return true
	})
	if err := fx.c.Begin(buf, Location{Function: "setup"}); err != nil {
		t.Fatal(err)
	}
	if n != 5 || loop.Len() != 0 {
		t.Errorf("task ran %d times, %d tasks left", n, loop.Len())
	}
	if loop.Ticks() < 5 {
		t.Errorf("only %d yields", loop.Ticks())
	}
}

func TestVariables(t *testing.T) {
	conf := testConfig()
	fx := newFixture(t, conf)
	ram := fx.ram
	reg := fx.c.Registry()

	heap, _ := ram.Malloc(16)
	for i := 0; i < 16; i++ {
		ram.PutUint8(heap+uint64(i), uint8(i+1))
	}

	ram.PutUint8(ram.Static(0), 200)
	reg.Register("setup", "b", ram.Static(0), 1)
	ram.PutUint16(ram.Static(2), 0xFFFE)
	reg.Register("setup", "w", ram.Static(2), 2)
	ram.PutUint32(ram.Static(4), 0x04030201)
	reg.Register("loop", "l", ram.Static(4), 4)
	reg.Register("loop", "big", ram.Static(16), 20)
	ram.PutUint16(ram.Static(8), uint16(heap))
	reg.Register("loop", "p", ram.Static(8), 2)

	buf := fx.begin("go\r")

	out := fx.session(buf, "variables\rgo\r")
	want := "(debug) variables\n" +
		"loop:p@0x0108=768 (0x300)\n" +
		"loop:big@0x0110[20]:\n" +
		"0x0110: 00 00 00 00 00 00 00 00 00 00 00 00 00 00 00 00\n" +
		"0x0120: 00 00 00 00\n" +
		"loop:l@0x0104[4]:0x0104: 01 02 03 04\n" +
		"setup:w@0x0102=-2 (0xFFFE)\n" +
		"setup:b@0x0100=200 (0xC8)\n" +
		"(debug) go\n"
	if out != want {
		t.Errorf("variables:\ngot  %q\nwant %q", out, want)
	}

	out = fx.session(buf, "@p\r@l\rgo\r")
	want = "(debug) @p\n" +
		"loop:p@0x0108=>0x0300: 01 02 03 04 05 06 07 08 09 0A 0B 0C 0D 0E 0F 10\n" +
		"(debug) @l\n" +
		"(debug) go\n"
	if out != want {
		t.Errorf("pointer lookup:\ngot  %q\nwant %q", out, want)
	}

	reg.Register("helper", "w", ram.Static(10), 2)
	out = fx.session(buf, "?w\rgo\r")
	if !strings.Contains(out, "helper:w@0x010A=0 (0x0)\nsetup:w@0x0102=-2 (0xFFFE)\n") {
		t.Errorf("duplicate names: %q", out)
	}
}

func TestMemoryCommands(t *testing.T) {
	fx := newFixture(t, nil)
	ram := fx.ram
	heap, _ := ram.Malloc(16)
	ram.PutUint8(heap, 0xAA)
	frame, _ := ram.Push(48)
	ram.PutUint8(frame, 0x55)
	ram.PutUint8(ram.Static(0), 0x11)
	fx.c.Registry().Register("setup", "a", ram.Static(0), 1)
	fx.c.Registry().Register("loop", "x", ram.Static(2), 2)
	fx.c.Registry().Register("loop", "y", ram.Static(4), 2)

	buf := fx.begin("go\r")

	out := fx.session(buf, "memory\rgo\r")
	if !strings.Contains(out, "data=512,heap=16,stack=48,free=1472\n") {
		t.Errorf("memory: %q", out)
	}

	out = fx.session(buf, "heap\rgo\r")
	if !strings.Contains(out, "(debug) heap\n0x0300: AA 00 00 00 00 00 00 00 00 00 00 00 00 00 00 00\n(debug) go") {
		t.Errorf("heap: %q", out)
	}

	out = fx.session(buf, "stack\rgo\r")
	if n := strings.Count(out, "\n0x"); n != 3 {
		t.Errorf("stack: %d dump lines in %q", n, out)
	}
	if !strings.Contains(out, "\n0x08D0: 55 00") || !strings.Contains(out, "\n0x08F0: ") {
		t.Errorf("stack: %q", out)
	}

	out = fx.session(buf, "data\rgo\r")
	if n := strings.Count(out, "\n0x"); n != dataSize/16 {
		t.Errorf("data: %d dump lines", n)
	}
	if !strings.Contains(out, "\n0x0100: 11 00") || !strings.Contains(out, "\n0x02F0: ") {
		t.Errorf("data: %q", out)
	}

	out = fx.session(buf, "backtrace\rgo\r")
	if !strings.Contains(out, "(debug) backtrace\n0x08D0:loop\n0x0100:setup\n(debug) go") {
		t.Errorf("backtrace: %q", out)
	}

	out = fx.session(buf, "w\rgo\r")
	if !strings.Contains(out, "(debug) w\nmain.go:20:loop\n") {
		t.Errorf("where: %q", out)
	}
}

func TestEmptyHeap(t *testing.T) {
	fx := newFixture(t, nil)
	buf := fx.begin("go\r")
	if out := fx.session(buf, "heap\rgo\r"); out != "(debug) heap\n(debug) go\n" {
		t.Errorf("got %q", out)
	}
}

func TestHelp(t *testing.T) {
	conf := testConfig()
	conf.DisableCommands = []string{"quit"}
	fx := newFixture(t, conf)
	buf := fx.begin("go\r")

	out := fx.session(buf, "help\rgo\r")
	for _, s := range []string{"?VARIABLE", "@VARIABLE", "backtrace", "commands (alias: help)", "-- Return to the program\n", "-- Print memory usage\n"} {
		if !strings.Contains(out, s) {
			t.Errorf("help lacks %q:\n%s", s, out)
		}
	}
	if strings.Contains(out, "quit") {
		t.Errorf("help lists a disabled command:\n%s", out)
	}

	out = fx.session(buf, "commands mem\rgo\r")
	if !strings.Contains(out, "Print memory usage.\n\n\tdata=D,heap=H,stack=S,free=F\n") {
		t.Errorf("help memory: %q", out)
	}
	out = fx.session(buf, "commands quit\rgo\r")
	if !strings.Contains(out, "quit: unknown command\n") {
		t.Errorf("help quit: %q", out)
	}
}

func TestObserveAndPrintf(t *testing.T) {
	fx := newFixture(t, nil)
	fx.c.ObserveAt(Location{Function: "loop", Line: 5}, "x")
	fx.c.Printf("%d\n", 1)

	buf := fx.begin("go\r")
	buf.Reset()
	fx.c.ObserveAt(Location{Function: "loop", Line: 5}, "x + 1")
	fx.c.Printf("%d\n", 11)
	if got := buf.String(); got != "observe:loop:5:x + 1=11\n" {
		t.Errorf("got %q", got)
	}
}

func TestBreakUnattached(t *testing.T) {
	fx := newFixture(t, nil)
	if exited, _ := exits(func() { fx.c.BreakAt(Location{}, "") }); exited {
		t.Fatal("breakpoint exited while unattached")
	}
}

func TestCheckStack(t *testing.T) {
	fx := newFixture(t, nil)
	fx.ram.Malloc(16)
	fx.ram.Push(48)
	// free is 1472 bytes
	tests := []struct {
		room int
		want bool
	}{
		{0, true},
		{128, true},
		{1471, true},
		{1472, false},
		{4096, false},
	}
	for _, tc := range tests {
		if got := fx.c.CheckStack(tc.room); got != tc.want {
			t.Errorf("CheckStack(%d) = %v", tc.room, got)
		}
	}
}

func TestCaller(t *testing.T) {
	loc := Here()
	if loc.Function != "TestCaller" || !strings.HasSuffix(loc.File, "console_test.go") || loc.Line == 0 {
		t.Errorf("got %+v", loc)
	}
	tests := map[string]string{
		"main.main":                         "main",
		"github.com/x/y.(*T).m":             "(*T).m",
		"github.com/x/y.f.func1":            "f.func1",
		"noPackage":                         "noPackage",
		"github.com/go-delve/tinydbg/pkg.F": "F",
	}
	for in, want := range tests {
		if got := shortFuncName(in); got != want {
			t.Errorf("shortFuncName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestInvalidConfig(t *testing.T) {
	conf := testConfig()
	conf.AmbiguousPrefix = "maybe"
	if _, err := New(memory.NewRAM(0, 64, 16), WithConfig(conf)); err == nil {
		t.Fatal("invalid configuration accepted")
	}
}
