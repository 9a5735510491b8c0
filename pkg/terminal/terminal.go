// Package terminal implements the host side of a debug console session:
// it reads command lines with line editing and history, sends them to the
// console and prints what the console answers.
package terminal

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-delve/liner"
	colorable "github.com/mattn/go-colorable"

	"github.com/go-delve/tinydbg/pkg/config"
	"github.com/go-delve/tinydbg/pkg/console"
	"github.com/go-delve/tinydbg/pkg/logflags"
)

const historyFile string = ".tinydbg_history"

// errExit is returned by the !exit command.
var errExit = errors.New("exit")

// prompter reads a line of input. *liner.State implements it.
type prompter interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

// Term is a terminal connected to a console.
type Term struct {
	conn   io.ReadWriter
	conf   *config.Config
	line   *liner.State
	input  prompter
	stdout io.Writer
	cmds   *Commands

	// console command names, for completion
	names []string

	in       chan []byte
	skipEcho bool
	// InitFile is sourced before the first prompt.
	InitFile string

	log logflags.Logger
}

// New returns a terminal talking to the console at the other end of conn.
func New(conn io.ReadWriter, conf *config.Config) *Term {
	if conf == nil {
		conf = config.Default()
	}
	var w io.Writer = os.Stdout
	if strings.ToLower(os.Getenv("TERM")) != "dumb" {
		w = colorable.NewColorableStdout()
	}
	line := liner.NewLiner()
	t := newTerm(conn, conf, line, w)
	t.line = line
	return t
}

func newTerm(conn io.ReadWriter, conf *config.Config, input prompter, stdout io.Writer) *Term {
	t := &Term{
		conn:   conn,
		conf:   conf,
		input:  input,
		stdout: stdout,
		cmds:   metaCommands(),
		in:     make(chan []byte, 16),
		log:    logflags.TerminalLogger(),
	}
	names, err := t.consoleNames()
	if err != nil {
		t.log.WithError(err).Warn("no command completion")
	}
	t.names = names
	return t
}

// consoleNames returns the console commands enabled by the configuration.
func (t *Term) consoleNames() ([]string, error) {
	cmds, err := console.DebugCommands(t.conf)
	if err != nil {
		return nil, err
	}
	return cmds.Names(), nil
}

// Close returns the terminal to its previous mode.
func (t *Term) Close() {
	if t.line != nil {
		t.line.Close()
	}
}

// Run reads console output until it prompts, then reads a line from the
// user and sends it, until the console goes away or the user exits.
func (t *Term) Run() (int, error) {
	defer t.Close()

	go t.pump()

	if t.line != nil {
		t.line.SetCompleter(t.complete)
		t.loadHistory()
		defer t.saveHistory()
	}

	initFile := t.InitFile
	for {
		if !t.waitPrompt() {
			fmt.Fprintln(t.stdout, "connection closed")
			return 0, nil
		}
		if initFile != "" {
			err := t.source(initFile)
			initFile = ""
			if err == errExit {
				return 0, nil
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error executing init file: %s\n", err)
			}
			t.send("")
			continue
		}
		cmdstr, err := t.promptForInput()
		if err != nil {
			if err == io.EOF {
				fmt.Fprintln(t.stdout, "exit")
				return 0, nil
			}
			return 1, fmt.Errorf("prompt for input failed: %v", err)
		}
		if err := t.handle(cmdstr); err != nil {
			if err == errExit {
				return 0, nil
			}
			fmt.Fprintf(os.Stderr, "Command failed: %s\n", err)
			// the console is still waiting for a line
			t.send("")
		}
	}
}

// handle runs a meta command or sends cmdstr to the console.
func (t *Term) handle(cmdstr string) error {
	if strings.HasPrefix(cmdstr, metaPrefix) {
		err := t.cmds.Call(cmdstr, t)
		if err != nil {
			return err
		}
		// meta commands do not talk to the console, ask for a new prompt
		return t.send("")
	}
	return t.send(t.cmds.expand(cmdstr))
}

// send writes a command line to the console. The console echoes the line
// back, the echo is dropped.
func (t *Term) send(cmdstr string) error {
	if logflags.Terminal() {
		t.log.Debugf("-> %q", cmdstr)
	}
	t.skipEcho = true
	_, err := io.WriteString(t.conn, cmdstr+"\r")
	return err
}

// pump copies console output to t.in.
func (t *Term) pump() {
	defer close(t.in)
	buf := make([]byte, 1024)
	for {
		n, err := t.conn.Read(buf)
		if n > 0 {
			t.in <- append([]byte(nil), buf[:n]...)
		}
		if err != nil {
			if err != io.EOF {
				t.log.WithError(err).Debug("read failed")
			}
			return
		}
	}
}

// waitPrompt prints console output until the console prints its prompt.
// It returns false if the connection closed first.
func (t *Term) waitPrompt() bool {
	prompt := []byte(t.conf.Prompt)
	var pending []byte
	for chunk := range t.in {
		pending = append(pending, chunk...)
		if t.skipEcho {
			i := bytes.IndexByte(pending, '\n')
			if i < 0 {
				continue
			}
			pending = pending[i+1:]
			t.skipEcho = false
		}
		if bytes.HasSuffix(pending, prompt) {
			t.stdout.Write(pending[:len(pending)-len(prompt)])
			return true
		}
		keep := partialSuffix(pending, prompt)
		t.stdout.Write(pending[:len(pending)-keep])
		pending = pending[len(pending)-keep:]
	}
	if !t.skipEcho {
		t.stdout.Write(pending)
	}
	return false
}

// partialSuffix returns the length of the longest proper prefix of prompt
// that b ends with.
func partialSuffix(b, prompt []byte) int {
	for k := len(prompt) - 1; k > 0; k-- {
		if bytes.HasSuffix(b, prompt[:k]) {
			return k
		}
	}
	return 0
}

func (t *Term) promptForInput() (string, error) {
	for {
		l, err := t.input.Prompt(t.conf.Prompt)
		if err == liner.ErrPromptAborted {
			continue
		}
		if err != nil {
			return "", err
		}
		l = strings.TrimSpace(strings.TrimSuffix(l, "\n"))
		if l != "" {
			t.input.AppendHistory(l)
		}
		return l, nil
	}
}

func (t *Term) complete(line string) (c []string) {
	for _, name := range t.names {
		if strings.HasPrefix(name, line) {
			c = append(c, name)
		}
	}
	for _, name := range t.cmds.Names() {
		if strings.HasPrefix(name, line) {
			c = append(c, name)
		}
	}
	return
}

func (t *Term) loadHistory() {
	fullHistoryFile, err := config.GetConfigFilePath(historyFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to load history file: %v.\n", err)
		return
	}
	f, err := os.Open(fullHistoryFile)
	if err != nil {
		return
	}
	defer f.Close()
	if _, err := t.line.ReadHistory(f); err != nil {
		t.log.WithError(err).Warn("reading history")
	}
}

func (t *Term) saveHistory() {
	fullHistoryFile, err := config.GetConfigFilePath(historyFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error saving history file:", err)
		return
	}
	var buf bytes.Buffer
	if _, err := t.line.WriteHistory(&buf); err != nil {
		fmt.Fprintln(os.Stderr, "readline history error:", err)
		return
	}
	f, err := os.Create(fullHistoryFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error saving history file:", err)
		return
	}
	defer f.Close()
	writeHistoryTail(f, &buf, t.conf.HistorySize)
}

// writeHistoryTail copies the last n lines of r to w.
func writeHistoryTail(w io.Writer, r io.Reader, n int) error {
	var lines []string
	s := bufio.NewScanner(r)
	for s.Scan() {
		lines = append(lines, s.Text())
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	bw := bufio.NewWriter(w)
	for _, l := range lines {
		fmt.Fprintln(bw, l)
	}
	return bw.Flush()
}
