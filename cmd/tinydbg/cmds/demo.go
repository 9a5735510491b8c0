package cmds

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/go-delve/tinydbg/pkg/config"
	"github.com/go-delve/tinydbg/pkg/console"
	"github.com/go-delve/tinydbg/pkg/console/dbg"
	"github.com/go-delve/tinydbg/pkg/memory"
	"github.com/go-delve/tinydbg/pkg/registry"
	"github.com/go-delve/tinydbg/pkg/sched"
	"github.com/go-delve/tinydbg/pkg/transport"
)

// Memory map of the simulated program.
const (
	demoRAMStart = 0x0100
	demoRAMSize  = 2048
	demoDataSize = 64

	counterOff   = 0
	heartbeatOff = 2
	bannerOff    = 4
	bufferOff    = 16

	banner    = "hello, world"
	bannerLen = len(banner)
	bufferLen = 24
	frameSize = 8
)

// demo is a simulated program monitored by a console. It owns a RAM
// platform, registers its variables and stops at breakpoints like a real
// instrumented program would.
type demo struct {
	conf *config.Config
	ram  *memory.RAM
	reg  *registry.Registry
	con  *console.Console
	loop *sched.Loop

	// iterations of the main loop, 0 runs forever
	iterations int
	// period between iterations
	period time.Duration
	// breakEvery stops at a breakpoint every breakEvery iterations
	breakEvery int

	globals *registry.Scope
}

func newDemo(conf *config.Config, exit func(int)) (*demo, error) {
	d := &demo{
		conf:       conf,
		ram:        memory.NewRAM(demoRAMStart, demoRAMSize, demoDataSize),
		reg:        registry.New(),
		loop:       sched.NewLoop(10 * time.Millisecond),
		period:     500 * time.Millisecond,
		breakEvery: 10,
	}
	con, err := console.New(d.ram,
		console.WithConfig(conf),
		console.WithRegistry(d.reg),
		console.WithScheduler(d.loop),
		console.WithExit(exit))
	if err != nil {
		return nil, err
	}
	d.con = con
	d.loop.Go(d.heartbeat)
	return d, nil
}

// heartbeat runs while the console waits for input, so that the
// "heartbeat" variable changes between two lookups.
func (d *demo) heartbeat() bool {
	addr := d.ram.Static(heartbeatOff)
	buf := make([]byte, 1)
	if _, err := d.ram.ReadMemory(buf, addr); err != nil {
		return false
	}
	return d.ram.PutUint8(addr, buf[0]+1) == nil
}

// demoMain is the simulated program.
func demoMain(d *demo, t transport.Transport) error {
	if err := dbg.Stream(d.con, t); err != nil {
		return err
	}
	if err := setup(d); err != nil {
		return err
	}
	defer d.globals.Close()
	for i := 0; d.iterations == 0 || i < d.iterations; i++ {
		if err := loop(d, i); err != nil {
			return err
		}
		if d.period > 0 {
			time.Sleep(d.period)
		}
	}
	err := d.con.End()
	if err == console.ErrNotAttached && !dbg.Enabled {
		// built without instrumentation, the console never attached
		return nil
	}
	return err
}

func setup(d *demo) error {
	d.globals = d.reg.Scope()
	dbg.Register(d.globals, "counter", d.ram.Static(counterOff), 2)
	dbg.Register(d.globals, "heartbeat", d.ram.Static(heartbeatOff), 1)

	if _, err := d.ram.WriteMemory(d.ram.Static(bannerOff), []byte(banner)); err != nil {
		return err
	}
	dbg.Register(d.globals, "banner", d.ram.Static(bannerOff), bannerLen)

	buf, err := d.ram.Malloc(bufferLen)
	if err != nil {
		return err
	}
	for i := 0; i < bufferLen; i++ {
		if err := d.ram.PutUint8(buf+uint64(i), uint8(i)); err != nil {
			return err
		}
	}
	ptr := make([]byte, 8)
	binary.LittleEndian.PutUint64(ptr, buf)
	if _, err := d.ram.WriteMemory(d.ram.Static(bufferOff), ptr[:d.conf.PointerSize]); err != nil {
		return err
	}
	dbg.Register(d.globals, "buffer", d.ram.Static(bufferOff), d.conf.PointerSize)

	dbg.Breakpoint(d.con)
	return nil
}

func loop(d *demo, i int) error {
	frame, err := d.ram.Push(frameSize)
	if err != nil {
		return err
	}
	defer d.ram.Pop()
	sc := d.reg.Scope()
	defer sc.Close()

	dbg.Register(sc, "i", frame, 2)
	dbg.Register(sc, "sum", frame+2, 2)
	if err := d.ram.PutUint16(frame, uint16(i)); err != nil {
		return err
	}

	counter, err := d.ram.Uint16(d.ram.Static(counterOff))
	if err != nil {
		return err
	}
	counter++
	if err := d.ram.PutUint16(d.ram.Static(counterOff), counter); err != nil {
		return err
	}
	if err := d.ram.PutUint16(frame+2, counter+uint16(i)); err != nil {
		return err
	}

	dbg.CheckStack(d.con, d.conf.StackRoom)
	dbg.Assert(d.con, counter != 0, "counter != 0")
	dbg.Observe(d.con, "counter", counter)
	dbg.BreakIf(d.con, d.breakEvery > 0 && int(counter)%d.breakEvery == 0, fmt.Sprintf("counter%%%d == 0", d.breakEvery))
	return nil
}
