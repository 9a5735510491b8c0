package cmds

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cosiner/argv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/go-delve/tinydbg/pkg/config"
	"github.com/go-delve/tinydbg/pkg/logflags"
	"github.com/go-delve/tinydbg/pkg/terminal"
	"github.com/go-delve/tinydbg/pkg/transport"
	"github.com/go-delve/tinydbg/pkg/version"
)

var (
	// log is whether to log debug statements.
	log bool
	// logOutput is a comma separated list of components that should produce debug output.
	logOutput string
	// logDest is the file path or file descriptor where logs should go.
	logDest string
	// configPath overrides the default configuration file.
	configPath string

	// initFile is the path to initialization file.
	initFile string
	// baud is the speed of serial devices.
	baud int
	// execLine is the command line of a program started under a pty.
	execLine string

	// transportKind selects the transport of the demo console.
	transportKind string
	// addr is the demo console listen address.
	addr string
	// iterations is the number of iterations of the demo main loop.
	iterations int
	// period is the time between two iterations of the demo main loop.
	period time.Duration

	// listConfig and saveConfig select the actions of the config command.
	listConfig bool
	saveConfig bool

	// rootCommand is the root of the command tree.
	rootCommand *cobra.Command

	conf *config.Config
)

const tinydbgCommandLongDesc = `tinydbg is a debug console embedded in the program it debugs.

An instrumented program stops at its breakpoints and failed assertions and
reads commands from a byte stream: its standard input, a serial line, a
pseudo terminal or a TCP connection. The commands print variables, memory
and the call stack, and resume or terminate the program.

Use 'tinydbg demo' to run a simulated program and 'tinydbg connect' to talk
to its console.`

// New returns an initialized command tree.
func New() *cobra.Command {
	// Main tinydbg root command.
	rootCommand = &cobra.Command{
		Use:   "tinydbg",
		Short: "tinydbg is an embedded debug console.",
		Long:  tinydbgCommandLongDesc,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig()
		},
		SilenceUsage: true,
	}

	addGlobalFlags(rootCommand.PersistentFlags())

	// 'demo' subcommand.
	demoCommand := &cobra.Command{
		Use:   "demo",
		Short: "Run a simulated program with a debug console.",
		Long: `Run a simulated program with a debug console.

The program registers a few variables, stops at a breakpoint after its setup
and then every ten iterations of its main loop. The console talks over the
selected transport:

	stdio	the terminal tinydbg runs in
	pty	a new pseudo terminal, its name is printed on standard error
	tcp	the first connection accepted on --listen`,
		Run: demoCmd,
	}
	demoCommand.Flags().StringVar(&transportKind, "transport", "stdio", "Console transport: stdio, pty or tcp.")
	demoCommand.Flags().StringVarP(&addr, "listen", "l", "127.0.0.1:0", "Listen address of the tcp transport.")
	demoCommand.Flags().IntVar(&iterations, "iterations", 0, "Iterations of the main loop, 0 runs forever.")
	demoCommand.Flags().DurationVar(&period, "period", 500*time.Millisecond, "Time between two iterations of the main loop.")
	rootCommand.AddCommand(demoCommand)

	// 'connect' subcommand.
	connectCommand := &cobra.Command{
		Use:   "connect [addr|device]",
		Short: "Connect to a debug console.",
		Long: `Connect to a debug console.

The console is reached through a TCP address (host:port), a serial device or
a pseudo terminal (a path), or the standard input and output of a program
started with --exec:

	tinydbg connect --exec "tinydbg demo"`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(); err != nil {
				return err
			}
			if len(args) == 0 && execLine == "" {
				return errors.New("you must provide an address or a device as the first argument, or --exec")
			}
			return nil
		},
		Run: connectCmd,
	}
	connectCommand.Flags().IntVar(&baud, "baud", 115200, "Speed of serial devices.")
	connectCommand.Flags().StringVar(&execLine, "exec", "", "Start a program under a pseudo terminal and connect to it.")
	connectCommand.Flags().StringVar(&initFile, "init", "", "Init file, executed by the terminal client.")
	rootCommand.AddCommand(connectCommand)

	// 'config' subcommand.
	configCommand := &cobra.Command{
		Use:   "config",
		Short: "Print or save the configuration.",
		Long: `Print or save the configuration.

With --list every option is printed with its value, with --save the
configuration is written to the configuration file.`,
		Run: configCmd,
	}
	configCommand.Flags().BoolVar(&listConfig, "list", true, "Print the configuration.")
	configCommand.Flags().BoolVar(&saveConfig, "save", false, "Write the configuration file.")
	rootCommand.AddCommand(configCommand)

	// 'version' subcommand.
	versionCommand := &cobra.Command{
		Use:   "version",
		Short: "Prints version.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tinydbg debugger\n%s\n", version.TinydbgVersion.Long())
		},
	}
	rootCommand.AddCommand(versionCommand)

	return rootCommand
}

func addGlobalFlags(fs *pflag.FlagSet) {
	fs.BoolVarP(&log, "log", "", false, "Enable debug logging.")
	fs.StringVarP(&logOutput, "log-output", "", "", `Comma separated list of components that should produce debug output (console, transport, registry, terminal).`)
	fs.StringVarP(&logDest, "log-dest", "", "", "Writes logs to the specified file or file descriptor.")
	fs.StringVar(&configPath, "config", "", "Configuration file, the default is config.yml in the tinydbg configuration directory.")
}

func loadConfig() error {
	var err error
	if configPath != "" {
		conf, err = config.LoadConfigFrom(configPath)
		return err
	}
	conf, err = config.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	return nil
}

func demoCmd(cmd *cobra.Command, args []string) {
	os.Exit(execute(func() int { return runDemo(conf) }))
}

func connectCmd(cmd *cobra.Command, args []string) {
	os.Exit(execute(func() int {
		var target string
		if len(args) > 0 {
			target = args[0]
		}
		return connect(target, conf)
	}))
}

func configCmd(cmd *cobra.Command, args []string) {
	if saveConfig {
		if err := config.SaveConfig(conf); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}
	if listConfig {
		if err := config.ConfigureList(cmd.OutOrStdout(), conf, "yaml"); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
}

// execute sets up logging around run.
func execute(run func() int) int {
	if err := logflags.Setup(log, logOutput, logDest); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer logflags.Close()
	return run()
}

func runDemo(conf *config.Config) int {
	t, cleanup, err := openDemoTransport()
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not open %s transport: %v\n", transportKind, err)
		return 1
	}
	defer cleanup()

	d, err := newDemo(conf, func(code int) {
		cleanup()
		logflags.Close()
		os.Exit(code)
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	d.iterations = iterations
	d.period = period
	if err := demoMain(d, t); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func openDemoTransport() (transport.Transport, func(), error) {
	switch transportKind {
	case "stdio":
		return transport.Stdio()
	case "pty":
		p, err := transport.OpenPty()
		if err != nil {
			return nil, nil, err
		}
		fmt.Fprintf(os.Stderr, "console on %s\n", p.TTYName())
		return p, func() { p.Close() }, nil
	case "tcp":
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		s, err := transport.Listen(ctx, addr, func(a net.Addr) {
			fmt.Fprintf(os.Stderr, "console listening at: %s\n", a)
		})
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown transport %q", transportKind)
}

// connect runs a terminal on the console reached through target.
func connect(target string, conf *config.Config) int {
	conn, wait, err := dial(target)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer conn.Close()

	term := terminal.New(conn, conf)
	term.InitFile = initFile
	status, err := term.Run()
	if err != nil {
		fmt.Println(err)
	}
	if wait != nil {
		// closing the pty hangs up the console of the program
		conn.Close()
		if err := wait(); err != nil {
			logflags.TerminalLogger().WithError(err).Debug("program exited")
		}
	}
	return status
}

// dial opens the connection to a console. When the console belongs to a
// program started by dial, wait waits for it to exit.
func dial(target string) (conn io.ReadWriteCloser, wait func() error, err error) {
	switch {
	case execLine != "":
		cmd, err := parseCommandLine(execLine)
		if err != nil {
			return nil, nil, err
		}
		ptmx, err := transport.StartPty(cmd)
		if err != nil {
			return nil, nil, fmt.Errorf("could not start %s: %v", cmd.Path, err)
		}
		return ptmx, cmd.Wait, nil
	case isDevice(target):
		conn, err := transport.OpenSerialPort(target, baud)
		if err != nil {
			return nil, nil, fmt.Errorf("could not open %s: %v", target, err)
		}
		return conn, nil, nil
	}
	c, err := net.Dial("tcp", target)
	if err != nil {
		return nil, nil, fmt.Errorf("could not connect to %s: %v", target, err)
	}
	return c, nil, nil
}

// isDevice returns true if target names a file rather than a TCP address.
func isDevice(target string) bool {
	if strings.HasPrefix(target, "/") || strings.HasPrefix(target, ".") {
		return true
	}
	fi, err := os.Stat(target)
	return err == nil && fi.Mode()&os.ModeDevice != 0
}

// parseCommandLine splits a command line into a command, like a shell
// would for a single pipeline without substitutions.
func parseCommandLine(cmdline string) (*exec.Cmd, error) {
	v, err := argv.Argv(cmdline,
		func(s string) (string, error) {
			return "", fmt.Errorf("Backtick not supported in '%s'", s)
		},
		nil)
	if err != nil {
		return nil, err
	}
	if len(v) != 1 || len(v[0]) == 0 {
		return nil, fmt.Errorf("illegal commandline '%s'", cmdline)
	}
	return exec.Command(v[0][0], v[0][1:]...), nil
}
