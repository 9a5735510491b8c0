package config

import (
	"fmt"
	"io"
	"os"
	"os/user"
	"path"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	configDir  string = ".tinydbg"
	configFile string = "config.yml"
)

// Values for Config.AmbiguousPrefix.
const (
	// AmbiguousReject reports a prefix matching more than one command as
	// ambiguous and runs nothing.
	AmbiguousReject = "reject"
	// AmbiguousFirst runs the first command, in command table order, that
	// the prefix matches.
	AmbiguousFirst = "first"
)

const (
	DefaultPrompt        = "(debug) "
	DefaultMaxLineLength = 32
	DefaultPointerSize   = 2
	DefaultStackRoom     = 128
	DefaultEndDelay      = time.Second
	DefaultArch          = "sim"
)

// Config defines all configuration options available to be set through the config file.
type Config struct {
	// Prompt printed by the console before reading a command.
	Prompt string `yaml:"prompt"`

	// Commands aliases.
	Aliases map[string][]string `yaml:"aliases"`

	// DisableCommands lists console commands removed from the command
	// table. Lookup of variables is disabled with "lookup".
	DisableCommands []string `yaml:"disable-commands"`

	// AmbiguousPrefix selects what happens when a typed prefix matches
	// more than one command: "reject" (default) or "first".
	AmbiguousPrefix string `yaml:"ambiguous-prefix"`

	// MaxLineLength is the maximum number of bytes of a command line,
	// further input is dropped until the line terminator.
	MaxLineLength int `yaml:"max-line-length"`

	// Echo controls whether accepted input bytes are echoed back.
	Echo *bool `yaml:"echo,omitempty"`

	// PointerSize is the width in bytes of a pointer on the target. Only
	// variables of this size are candidates for pointer lookup.
	PointerSize int `yaml:"pointer-size"`

	// StackRoom is the default number of free bytes required by stack
	// checks.
	StackRoom int `yaml:"stack-room"`

	// EndDelay is how long the console waits for output to drain when
	// it detaches from the transport.
	EndDelay *time.Duration `yaml:"end-delay,omitempty"`

	// Arch is the architecture name printed in the console banner.
	Arch string `yaml:"arch"`

	// HistorySize is the number of lines the host terminal keeps in its
	// history file.
	HistorySize int `yaml:"history-size"`
}

// Default returns a configuration with every option set to its default
// value.
func Default() *Config {
	c := &Config{}
	c.fillDefaults()
	return c
}

func (c *Config) fillDefaults() {
	if c.Prompt == "" {
		c.Prompt = DefaultPrompt
	}
	if c.AmbiguousPrefix == "" {
		c.AmbiguousPrefix = AmbiguousReject
	}
	if c.MaxLineLength <= 0 {
		c.MaxLineLength = DefaultMaxLineLength
	}
	if c.Echo == nil {
		echo := true
		c.Echo = &echo
	}
	if c.PointerSize <= 0 {
		c.PointerSize = DefaultPointerSize
	}
	if c.StackRoom <= 0 {
		c.StackRoom = DefaultStackRoom
	}
	if c.EndDelay == nil {
		d := DefaultEndDelay
		c.EndDelay = &d
	}
	if c.Arch == "" {
		c.Arch = DefaultArch
	}
	if c.HistorySize <= 0 {
		c.HistorySize = 1000
	}
}

// Validate checks the values that can not be fixed by defaulting.
func (c *Config) Validate() error {
	switch c.AmbiguousPrefix {
	case AmbiguousReject, AmbiguousFirst:
	default:
		return fmt.Errorf("invalid ambiguous-prefix %q: must be %q or %q", c.AmbiguousPrefix, AmbiguousReject, AmbiguousFirst)
	}
	if c.PointerSize > 8 {
		return fmt.Errorf("invalid pointer-size %d: must be at most 8", c.PointerSize)
	}
	return nil
}

// Disabled returns true if the named command is listed in DisableCommands.
func (c *Config) Disabled(name string) bool {
	for _, d := range c.DisableCommands {
		if d == name {
			return true
		}
	}
	return false
}

// EchoEnabled returns the effective value of Echo.
func (c *Config) EchoEnabled() bool {
	return c.Echo == nil || *c.Echo
}

// Delay returns the effective value of EndDelay.
func (c *Config) Delay() time.Duration {
	if c.EndDelay == nil {
		return DefaultEndDelay
	}
	return *c.EndDelay
}

// LoadConfig attempts to populate a Config object from the config.yml file.
func LoadConfig() (*Config, error) {
	err := createConfigPath()
	if err != nil {
		return Default(), fmt.Errorf("could not create config directory: %v", err)
	}
	fullConfigFile, err := GetConfigFilePath(configFile)
	if err != nil {
		return Default(), fmt.Errorf("unable to get config file path: %v", err)
	}

	f, err := os.Open(fullConfigFile)
	if err != nil {
		f, err = createDefaultConfig(fullConfigFile)
		if err != nil {
			return Default(), fmt.Errorf("error creating default config file: %v", err)
		}
	}
	defer f.Close()

	return decode(f)
}

// LoadConfigFrom populates a Config object from the file at path.
func LoadConfigFrom(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decode(f)
}

// Parse populates a Config object from YAML data.
func Parse(data []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unable to decode config file: %v", err)
	}
	c.fillDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func decode(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("unable to read config data: %v", err)
	}
	return Parse(data)
}

// SaveConfig will marshal and save the config struct
// to disk.
func SaveConfig(conf *Config) error {
	fullConfigFile, err := GetConfigFilePath(configFile)
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(*conf)
	if err != nil {
		return err
	}

	f, err := os.Create(fullConfigFile)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(out)
	return err
}

// Write marshals conf as YAML to w.
func Write(w io.Writer, conf *Config) error {
	out, err := yaml.Marshal(*conf)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

func createDefaultConfig(path string) (*os.File, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("unable to create config file: %v", err)
	}
	err = writeDefaultConfig(f)
	if err != nil {
		return nil, fmt.Errorf("unable to write default configuration: %v", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return f, nil
}

func writeDefaultConfig(f *os.File) error {
	_, err := f.WriteString(
		`# Configuration file for the tinydbg console.

# This is the default configuration file. Available options are provided, but disabled.
# Delete the leading hash mark to enable an item.

# Prompt printed before each command.
# prompt: "(debug) "

# Provided aliases will be added to the default aliases for a given command.
aliases:
  # go: ["continue", "c"]

# Commands removed from the console. Use "lookup" to remove ?VARIABLE and @VARIABLE.
disable-commands: []

# What to do when a typed prefix matches more than one command:
# "reject" reports it as ambiguous, "first" runs the first match in table order.
# ambiguous-prefix: reject

# Maximum length of a command line.
# max-line-length: 32

# Width in bytes of a pointer on the target.
# pointer-size: 2

# Free bytes required between the heap and the stack by stack checks.
# stack-room: 128

# Time given to the transport to drain when the console detaches.
# end-delay: 1s
`)
	return err
}

// createConfigPath creates the directory structure at which all config files are saved.
func createConfigPath() error {
	path, err := GetConfigFilePath("")
	if err != nil {
		return err
	}
	return os.MkdirAll(path, 0700)
}

// GetConfigFilePath gets the full path to the given config file name.
func GetConfigFilePath(file string) (string, error) {
	userHomeDir := "."
	usr, err := user.Current()
	if err == nil {
		userHomeDir = usr.HomeDir
	}
	return path.Join(userHomeDir, configDir, file), nil
}
