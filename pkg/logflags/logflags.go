package logflags

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

var console = false
var transport = false
var registry = false
var terminal = false

var logOut io.WriteCloser

var textFormatterInstance = &textFormatter{}

func makeLogger(level logrus.Level, fields Fields) Logger {
	if lf := loggerFactory; lf != nil {
		return lf(level, fields, logOut)
	}
	logger := logrus.New().WithFields(logrus.Fields(fields))
	logger.Logger.Formatter = textFormatterInstance
	if logOut != nil {
		logger.Logger.Out = logOut
	}
	logger.Logger.Level = level
	return &logrusLogger{logger}
}

func makeFlaggableLogger(flag bool, fields Fields) Logger {
	if !flag {
		return makeLogger(logrus.ErrorLevel, fields)
	}
	return makeLogger(logrus.DebugLevel, fields)
}

// Console returns true if the console package should log.
func Console() bool {
	return console
}

// ConsoleLogger returns a logger for the console session and entry points.
func ConsoleLogger() Logger {
	return makeFlaggableLogger(console, Fields{"layer": "console"})
}

// Transport returns true if the bytes exchanged with a transport should be
// logged.
func Transport() bool {
	return transport
}

// TransportLogger returns a logger for the transport implementations.
func TransportLogger() Logger {
	return makeFlaggableLogger(transport, Fields{"layer": "transport"})
}

// Registry returns true if variable registrations should be logged.
func Registry() bool {
	return registry
}

// RegistryLogger returns a logger for the variable registry.
func RegistryLogger() Logger {
	return makeFlaggableLogger(registry, Fields{"layer": "registry"})
}

// Terminal returns true if the host terminal client should log.
func Terminal() bool {
	return terminal
}

// TerminalLogger returns a logger for the host terminal client.
func TerminalLogger() Logger {
	return makeFlaggableLogger(terminal, Fields{"layer": "terminal"})
}

var errLogstrWithoutLog = errors.New("--log-output specified without --log")

// Setup sets debugger flags based on the contents of logstr.
// If logDest is not empty logs will be redirected to the file descriptor or
// file path specified by logDest.
func Setup(logFlag bool, logstr, logDest string) error {
	if logDest != "" {
		n, err := strconv.Atoi(logDest)
		if err == nil {
			logOut = os.NewFile(uintptr(n), "tinydbg-logs")
		} else {
			fh, err := os.Create(logDest)
			if err != nil {
				return fmt.Errorf("could not create log file: %v", err)
			}
			logOut = fh
		}
	}
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	if !logFlag {
		log.SetOutput(io.Discard)
		if logstr != "" {
			return errLogstrWithoutLog
		}
		return nil
	}
	if logstr == "" {
		logstr = "console"
	}
	v := strings.Split(logstr, ",")
	for _, logcmd := range v {
		switch logcmd {
		case "console":
			console = true
		case "transport":
			transport = true
		case "registry":
			registry = true
		case "terminal":
			terminal = true
		default:
			fmt.Fprintf(os.Stderr, "Warning: unknown log output value %q, run 'tinydbg help log' for usage.\n", logcmd)
		}
	}
	return nil
}

// Close closes the logger output.
func Close() {
	if logOut != nil {
		logOut.Close()
	}
}

// textFormatter is a simplified version of logrus.TextFormatter that
// doesn't make logs unreadable when they are output to a text file or to a
// terminal that doesn't support colors.
type textFormatter struct{}

func (f *textFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", entry.Time.Format("2006-01-02T15:04:05Z07:00"), entry.Level.String())
	if layer, ok := entry.Data["layer"]; ok {
		fmt.Fprintf(&b, " layer=%v", layer)
	}
	for k, v := range entry.Data {
		if k == "layer" {
			continue
		}
		fmt.Fprintf(&b, " %s=%v", k, v)
	}
	b.WriteString(" ")
	b.WriteString(entry.Message)
	b.WriteString("\n")
	return []byte(b.String()), nil
}
