package console

import (
	"encoding/binary"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/derekparker/trie"
	lru "github.com/hashicorp/golang-lru"

	"github.com/go-delve/tinydbg/pkg/config"
	"github.com/go-delve/tinydbg/pkg/memory"
	"github.com/go-delve/tinydbg/pkg/registry"
)

// lookupCmd is the name used in config.DisableCommands to disable the
// ?NAME and @NAME variable lookups.
const lookupCmd = "lookup"

const resolveCacheSize = 64

type callContext struct {
	Location Location
	// Marker is the stack marker at the time the command was typed.
	Marker uint64
}

type cmdfunc func(c *Console, ctx callContext, args string) error

type command struct {
	aliases []string
	group   commandGroup
	// takesArgs is false for commands that must be typed alone.
	takesArgs bool
	helpMsg   string
	cmdFn     cmdfunc
}

// Commands is the command table of a console.
type Commands struct {
	cmds   []command
	lookup bool
	policy string

	names *trie.Trie
	cache *lru.Cache
}

// DebugCommands returns the command table described by conf: every
// command not listed in conf.DisableCommands, with the aliases of
// conf.Aliases added.
func DebugCommands(conf *config.Config) (*Commands, error) {
	c := &Commands{
		lookup: !conf.Disabled(lookupCmd),
		policy: conf.AmbiguousPrefix,
	}

	// The order of this table is the order in which an ambiguous prefix
	// is resolved when conf.AmbiguousPrefix is "first".
	all := []command{
		{aliases: []string{"go"}, group: runCmds, cmdFn: resume, helpMsg: "Return to the program."},
		{aliases: []string{"backtrace"}, group: stackCmds, cmdFn: backtrace, helpMsg: `Print call stack.

Prints the stack marker and the current function, then one line for every
change of function along the registered variables, newest first.`},
		{aliases: []string{"data"}, group: memoryCmds, cmdFn: printData, helpMsg: "Print data."},
		{aliases: []string{"heap"}, group: memoryCmds, cmdFn: printHeap, helpMsg: "Print heap."},
		{aliases: []string{"memory"}, group: memoryCmds, cmdFn: memoryUsage, helpMsg: `Print memory usage.

	data=D,heap=H,stack=S,free=F

Sizes are in bytes, free is the space between the heap and the stack.`},
		{aliases: []string{"commands", "help"}, group: otherCmds, takesArgs: true, cmdFn: c.help, helpMsg: `Print commands.

	commands [command]

Type "commands" followed by the name of a command for more information about it.`},
		{aliases: []string{"stack"}, group: memoryCmds, cmdFn: printStack, helpMsg: "Print stack."},
		{aliases: []string{"variables"}, group: dataCmds, cmdFn: printVariables, helpMsg: "Print variables."},
		{aliases: []string{"quit"}, group: runCmds, cmdFn: quitCmd, helpMsg: "Exit program."},
		{aliases: []string{"where"}, group: stackCmds, cmdFn: where, helpMsg: `Location in source code.

	file:line:function`},
	}

	for _, cmd := range all {
		if conf.Disabled(cmd.aliases[0]) {
			continue
		}
		if aliases, ok := conf.Aliases[cmd.aliases[0]]; ok {
			cmd.aliases = append(cmd.aliases[:len(cmd.aliases):len(cmd.aliases)], aliases...)
		}
		c.cmds = append(c.cmds, cmd)
	}

	c.names = trie.New()
	for i, cmd := range c.cmds {
		for _, alias := range cmd.aliases {
			if _, ok := c.names.Find(alias); ok {
				return nil, fmt.Errorf("alias %q used by more than one command", alias)
			}
			c.names.Add(alias, i)
		}
	}

	var err error
	c.cache, err = lru.New(resolveCacheSize)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// resolution is the outcome of matching a typed command name.
type resolution struct {
	index     int // into cmds, -1 if nothing matched
	ambiguous bool
}

// Find returns the command whose name or alias starts with cmdstr. An
// exact match always wins; otherwise the prefix must select exactly one
// command, unless the ambiguity policy is config.AmbiguousFirst.
func (c *Commands) Find(cmdstr string) (cmd *command, ambiguous bool) {
	var r resolution
	if v, ok := c.cache.Get(cmdstr); ok {
		r = v.(resolution)
	} else {
		r = c.match(cmdstr)
		c.cache.Add(cmdstr, r)
	}
	if r.index < 0 {
		return nil, r.ambiguous
	}
	return &c.cmds[r.index], false
}

func (c *Commands) match(cmdstr string) resolution {
	if cmdstr == "" {
		return resolution{index: -1}
	}
	if n, ok := c.names.Find(cmdstr); ok {
		return resolution{index: n.Meta().(int)}
	}
	first, count := -1, 0
	seen := make(map[int]bool)
	for _, key := range c.names.PrefixSearch(cmdstr) {
		n, ok := c.names.Find(key)
		if !ok {
			continue
		}
		i := n.Meta().(int)
		if seen[i] {
			continue
		}
		seen[i] = true
		count++
		if first < 0 || i < first {
			first = i
		}
	}
	if count > 1 && c.policy != config.AmbiguousFirst {
		return resolution{index: -1, ambiguous: true}
	}
	return resolution{index: first}
}

// Names returns every command name and alias, sorted.
func (c *Commands) Names() []string {
	var r []string
	for _, cmd := range c.cmds {
		r = append(r, cmd.aliases...)
	}
	sort.Strings(r)
	return r
}

// Call parses and runs a command line. The whole line must match a
// command, only the help command takes an argument.
func (c *Commands) Call(con *Console, ctx callContext, cmdline string) error {
	cmdline = strings.TrimSpace(cmdline)
	if cmdline == "" {
		return nil
	}
	if c.lookup && (cmdline[0] == '?' || cmdline[0] == '@') {
		return lookup(con, strings.TrimSpace(cmdline[1:]), cmdline[0] == '@')
	}
	vals := strings.SplitN(cmdline, " ", 2)
	var args string
	if len(vals) > 1 {
		args = strings.TrimSpace(vals[1])
	}
	cmd, ambiguous := c.Find(vals[0])
	switch {
	case ambiguous:
		return fmt.Errorf("%s: ambiguous command", cmdline)
	case cmd == nil, args != "" && !cmd.takesArgs:
		return fmt.Errorf("%s: unknown command", cmdline)
	}
	return cmd.cmdFn(con, ctx, args)
}

func (c *Commands) help(con *Console, ctx callContext, args string) error {
	if args != "" {
		cmd, _ := c.Find(args)
		if cmd == nil {
			return fmt.Errorf("%s: unknown command", args)
		}
		fmt.Fprintln(con.out, cmd.helpMsg)
		return nil
	}

	sorted := make([]command, len(c.cmds))
	copy(sorted, c.cmds)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].aliases[0] < sorted[j].aliases[0] })

	w := tabwriter.NewWriter(con.out, 0, 8, 1, ' ', 0)
	if c.lookup {
		fmt.Fprintf(w, "?VARIABLE\t-- Print variable(s)\n")
		fmt.Fprintf(w, "@VARIABLE\t-- Print pointer variable(s)\n")
	}
	for _, cgd := range commandGroupDescriptions {
		for _, cmd := range sorted {
			if cmd.group != cgd.group {
				continue
			}
			h := cmd.helpMsg
			if idx := strings.Index(h, "\n"); idx >= 0 {
				h = h[:idx]
			}
			h = strings.TrimSuffix(h, ".")
			if len(cmd.aliases) > 1 {
				fmt.Fprintf(w, "%s (alias: %s)\t-- %s\n", cmd.aliases[0], strings.Join(cmd.aliases[1:], " | "), h)
			} else {
				fmt.Fprintf(w, "%s\t-- %s\n", cmd.aliases[0], h)
			}
		}
	}
	return w.Flush()
}

func resume(c *Console, ctx callContext, args string) error {
	return errResume
}

func quitCmd(c *Console, ctx callContext, args string) error {
	return errQuit
}

func where(c *Console, ctx callContext, args string) error {
	loc := ctx.Location
	fmt.Fprintf(c.out, "%s:%d:%s\n", loc.File, loc.Line, loc.Function)
	return nil
}

func backtrace(c *Console, ctx callContext, args string) error {
	fn := ctx.Location.Function
	fmt.Fprintf(c.out, "0x%04X:%s\n", ctx.Marker, fn)
	c.reg.Each(func(v registry.Variable) bool {
		if v.Function != fn {
			fn = v.Function
			fmt.Fprintf(c.out, "0x%04X:%s\n", v.Addr, fn)
		}
		return true
	})
	return nil
}

func printData(c *Console, ctx callContext, args string) error {
	return memory.Dump(c.out, c.platform, c.data)
}

func printHeap(c *Console, ctx callContext, args string) error {
	seg := memory.Boundaries(c.platform, ctx.Marker)
	return memory.Dump(c.out, c.platform, seg.Heap)
}

func printStack(c *Console, ctx callContext, args string) error {
	seg := memory.Boundaries(c.platform, ctx.Marker)
	return memory.Dump(c.out, c.platform, seg.Stack)
}

func memoryUsage(c *Console, ctx callContext, args string) error {
	seg := memory.Boundaries(c.platform, ctx.Marker)
	seg.Data = c.data
	fmt.Fprintln(c.out, memory.UsageOf(seg))
	return nil
}

func printVariables(c *Console, ctx callContext, args string) error {
	c.reg.Each(func(v registry.Variable) bool {
		c.printVariable(v, false)
		return true
	})
	return nil
}

func lookup(c *Console, name string, pointer bool) error {
	var (
		vs    []registry.Variable
		found bool
	)
	if pointer {
		vs, found = c.reg.FindPointers(name, c.conf.PointerSize)
	} else {
		vs = c.reg.Find(name)
		found = len(vs) > 0
	}
	if !found {
		return fmt.Errorf("%s: unknown variable", name)
	}
	for _, v := range vs {
		c.printVariable(v, pointer)
	}
	return nil
}

// printVariable prints
//
//	function:name@0xADDR=VALUE (0xHEX)	for 1 and 2 byte values
//	function:name@0xADDR[SIZE]:DUMP	for larger values
//	function:name@0xADDR=>DUMP		for pointers, dumping 16 bytes at the target
func (c *Console) printVariable(v registry.Variable, pointer bool) {
	fmt.Fprintf(c.out, "%s:%s@0x%04X", v.Function, v.Name, v.Addr)

	if pointer {
		buf := make([]byte, 8)
		if _, err := c.platform.ReadMemory(buf[:v.Size], v.Addr); err != nil {
			fmt.Fprintf(c.out, ": %v\n", err)
			return
		}
		target := binary.LittleEndian.Uint64(buf)
		fmt.Fprint(c.out, "=>")
		if err := memory.Dump(c.out, c.platform, memory.Region{Start: target, Len: memory.BytesPerLine}); err != nil {
			fmt.Fprintf(c.out, "%v\n", err)
		}
		return
	}

	switch v.Size {
	case 1, 2:
		buf := make([]byte, v.Size)
		if _, err := c.platform.ReadMemory(buf, v.Addr); err != nil {
			fmt.Fprintf(c.out, ": %v\n", err)
			return
		}
		if v.Size == 1 {
			fmt.Fprintf(c.out, "=%d (0x%X)\n", buf[0], buf[0])
		} else {
			u := binary.LittleEndian.Uint16(buf)
			fmt.Fprintf(c.out, "=%d (0x%X)\n", int16(u), u)
		}
	default:
		fmt.Fprintf(c.out, "[%d]:", v.Size)
		if v.Size > memory.BytesPerLine || v.Size <= 0 {
			fmt.Fprintln(c.out)
		}
		if err := memory.Dump(c.out, c.platform, memory.Region{Start: v.Addr, Len: v.Size}); err != nil {
			fmt.Fprintf(c.out, "%v\n", err)
		}
	}
}
