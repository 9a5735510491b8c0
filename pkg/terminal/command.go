package terminal

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/go-delve/tinydbg/pkg/config"
)

// metaPrefix starts the commands handled by the terminal itself instead
// of being sent to the console.
const metaPrefix = "!"

type cmdfunc func(t *Term, args string) error

type command struct {
	aliases []string
	helpMsg string
	cmdFn   cmdfunc
}

// Returns true if the command string matches one of the aliases for this command
func (c command) match(cmdstr string) bool {
	for _, v := range c.aliases {
		if v == cmdstr {
			return true
		}
	}
	return false
}

// Commands are the terminal's own commands, plus the aliases the user
// defined for console commands.
type Commands struct {
	cmds    []command
	aliases map[string]string
}

func metaCommands() *Commands {
	c := &Commands{aliases: make(map[string]string)}
	c.cmds = []command{
		{aliases: []string{"!help"}, cmdFn: c.help, helpMsg: "Prints the terminal commands."},
		{aliases: []string{"!exit", "!q"}, cmdFn: exitCommand, helpMsg: `Exit the terminal.

The program keeps running, send "quit" to terminate it.`},
		{aliases: []string{"!source"}, cmdFn: sourceCommand, helpMsg: `Sends the lines of a file to the console.

	!source <path>

Empty lines and lines starting with # are skipped.`},
		{aliases: []string{"!alias"}, cmdFn: aliasCommand, helpMsg: `Defines an alias for a console command.

	!alias <command> <alias>

Without arguments lists the aliases.`},
		{aliases: []string{"!config"}, cmdFn: configureCmd, helpMsg: `Changes configuration parameters.

	!config -list
	!config -save
	!config <parameter> <value>`},
	}
	return c
}

// Names returns the names of the terminal commands and of the aliases.
func (c *Commands) Names() []string {
	var r []string
	for _, cmd := range c.cmds {
		r = append(r, cmd.aliases...)
	}
	for alias := range c.aliases {
		r = append(r, alias)
	}
	sort.Strings(r)
	return r
}

// Call runs a terminal command.
func (c *Commands) Call(cmdstr string, t *Term) error {
	vals := strings.SplitN(strings.TrimSpace(cmdstr), " ", 2)
	cmdname := vals[0]
	var args string
	if len(vals) > 1 {
		args = strings.TrimSpace(vals[1])
	}
	for _, cmd := range c.cmds {
		if cmd.match(cmdname) {
			return cmd.cmdFn(t, args)
		}
	}
	return fmt.Errorf("command not available: %s", cmdname)
}

// expand replaces a user defined alias at the start of cmdstr with the
// command it stands for.
func (c *Commands) expand(cmdstr string) string {
	vals := strings.SplitN(cmdstr, " ", 2)
	if cmd, ok := c.aliases[vals[0]]; ok {
		vals[0] = cmd
	}
	return strings.Join(vals, " ")
}

func (c *Commands) help(t *Term, args string) error {
	if args != "" {
		for _, cmd := range c.cmds {
			if cmd.match(args) {
				fmt.Fprintln(t.stdout, cmd.helpMsg)
				return nil
			}
		}
		return fmt.Errorf("command not available: %s", args)
	}
	w := tabwriter.NewWriter(t.stdout, 0, 8, 1, ' ', 0)
	for _, cmd := range c.cmds {
		h := cmd.helpMsg
		if idx := strings.Index(h, "\n"); idx >= 0 {
			h = h[:idx]
		}
		if len(cmd.aliases) > 1 {
			fmt.Fprintf(w, "    %s (alias: %s)\t%s\n", cmd.aliases[0], strings.Join(cmd.aliases[1:], " | "), h)
		} else {
			fmt.Fprintf(w, "    %s\t%s\n", cmd.aliases[0], h)
		}
	}
	return w.Flush()
}

func exitCommand(t *Term, args string) error {
	return errExit
}

func sourceCommand(t *Term, args string) error {
	if args == "" {
		return fmt.Errorf("wrong number of arguments: source <filename>")
	}
	return t.source(args)
}

// source sends every command of path to the console, waiting for a
// prompt between commands.
func (t *Term) source(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	s := bufio.NewScanner(f)
	first := true
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !first && !t.waitPrompt() {
			return fmt.Errorf("connection closed while sourcing %s", path)
		}
		first = false
		fmt.Fprintf(t.stdout, "%s%s\n", t.conf.Prompt, line)
		if strings.HasPrefix(line, metaPrefix) {
			if err := t.cmds.Call(line, t); err != nil {
				return err
			}
			if err := t.send(""); err != nil {
				return err
			}
			continue
		}
		if err := t.send(t.cmds.expand(line)); err != nil {
			return err
		}
	}
	if err := s.Err(); err != nil {
		return err
	}
	if !first && !t.waitPrompt() {
		return fmt.Errorf("connection closed while sourcing %s", path)
	}
	// leave the console waiting for the caller's next line
	return nil
}

func aliasCommand(t *Term, args string) error {
	c := t.cmds
	v := config.SplitQuotedFields(args, '"')
	switch len(v) {
	case 0:
		names := make([]string, 0, len(c.aliases))
		for alias := range c.aliases {
			names = append(names, alias)
		}
		sort.Strings(names)
		for _, alias := range names {
			fmt.Fprintf(t.stdout, "%s = %s\n", alias, c.aliases[alias])
		}
		return nil
	case 2:
	default:
		return fmt.Errorf("wrong number of arguments: alias <command> <alias>")
	}
	cmd, alias := v[0], v[1]
	if strings.HasPrefix(alias, metaPrefix) {
		return fmt.Errorf("alias can not start with %q", metaPrefix)
	}
	c.aliases[alias] = cmd
	if t.conf.Aliases == nil {
		t.conf.Aliases = make(map[string][]string)
	}
	t.conf.Aliases[cmd] = append(t.conf.Aliases[cmd], alias)
	return nil
}
