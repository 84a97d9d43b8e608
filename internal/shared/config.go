package shared

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

const (
	DefaultServerName = "pizzaservice v0.1"
	DefaultDeadline   = 30 * time.Second
	DefaultStaticDir  = "static"
)

var ErrUsage = errors.New("usage")

type ServerConfig struct {
	Port       uint16
	DBPath     string
	PubKeyPath string
	// PrivKeyPath and PubKeyPath may be swapped on the command line;
	// LoadKeyMaterial sorts them by PEM label.
	PrivKeyPath string

	ServerName       string
	StaticDir        string
	Deadline         time.Duration
	AllowDebugBypass bool

	MetricsAddr string
	AcceptRate  float64
	AcceptBurst int

	LogLevel  string
	LogFormat string
}

// ServerUsage is printed when the positional arguments are wrong.
func ServerUsage(prog string) string {
	return fmt.Sprintf("usage: %s [flags] <port> <dbfile> <pub_key.pem> <priv_key.pem>", prog)
}

// ParseServerArgs parses the server command line (without the program
// name). It checks argument count, port syntax and that every input file
// exists; key contents are validated later by the auth package.
func ParseServerArgs(args []string) (*ServerConfig, error) {
	c := &ServerConfig{}
	fs := pflag.NewFlagSet("pizza-server", pflag.ContinueOnError)
	fs.StringVar(&c.ServerName, "server-name", DefaultServerName, "token issuer and Server header value")
	fs.StringVar(&c.StaticDir, "static-dir", DefaultStaticDir, "directory served for unmatched GET paths")
	fs.DurationVar(&c.Deadline, "deadline", DefaultDeadline, "hard limit on a connection's lifetime")
	fs.BoolVar(&c.AllowDebugBypass, "allow-debug-bypass", false, "honour debug=true on /receipt and skip token checks (insecure)")
	fs.StringVar(&c.MetricsAddr, "metrics-addr", "", "serve prometheus metrics on this address (disabled when empty)")
	fs.Float64Var(&c.AcceptRate, "accept-rate", 0, "max accepted connections per second (0 = unlimited)")
	fs.IntVar(&c.AcceptBurst, "accept-burst", 16, "burst size for --accept-rate")
	fs.StringVar(&c.LogLevel, "log-level", "info", "debug, info, warn or error")
	fs.StringVar(&c.LogFormat, "log-format", "console", "console or json")
	if err := fs.Parse(args); err != nil {
		return nil, errors.Wrap(ErrUsage, err.Error())
	}

	pos := fs.Args()
	if len(pos) != 4 {
		return nil, errors.Wrapf(ErrUsage, "expected 4 arguments, got %d", len(pos))
	}
	port, err := strconv.ParseUint(pos[0], 10, 16)
	if err != nil {
		return nil, errors.Wrapf(ErrUsage, "invalid port %q", pos[0])
	}
	c.Port = uint16(port)
	c.DBPath, c.PubKeyPath, c.PrivKeyPath = pos[1], pos[2], pos[3]

	if !exists(c.PubKeyPath) || !exists(c.PrivKeyPath) {
		return nil, errors.New("could not find provided key files")
	}
	if !exists(c.DBPath) {
		return nil, errors.New("could not find provided db")
	}
	if c.Deadline <= 0 {
		c.Deadline = DefaultDeadline
	}
	if c.AcceptBurst <= 0 {
		c.AcceptBurst = 1
	}
	return c, nil
}

func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("0.0.0.0:%d", c.Port)
}

type ClientConfig struct {
	Command  string // "order" or "receipt"
	Server   string
	Timeout  time.Duration
	Name     string
	Address  string
	PizzaIDs []int64
	Token    string
}

// ParseClientArgs parses "<order|receipt> [flags]".
func ParseClientArgs(args []string) (*ClientConfig, error) {
	if len(args) == 0 {
		return nil, errors.Wrap(ErrUsage, "missing command")
	}
	c := &ClientConfig{Command: args[0]}
	fs := pflag.NewFlagSet("pizza-client "+c.Command, pflag.ContinueOnError)
	fs.StringVar(&c.Server, "server", "http://127.0.0.1:7777", "base URL of the pizza service")
	fs.DurationVar(&c.Timeout, "timeout", 20*time.Second, "request timeout")

	switch c.Command {
	case "order":
		fs.StringVar(&c.Name, "name", "", "customer name")
		fs.StringVar(&c.Address, "address", "", "delivery address")
		fs.Int64SliceVar(&c.PizzaIDs, "pizza-id", nil, "pizza id, repeatable")
	case "receipt":
		fs.StringVar(&c.Token, "token", "", "token returned by the order command")
	default:
		return nil, errors.Wrapf(ErrUsage, "unknown command %q", c.Command)
	}
	if err := fs.Parse(args[1:]); err != nil {
		return nil, errors.Wrap(ErrUsage, err.Error())
	}

	switch {
	case c.Command == "order" && (c.Name == "" || c.Address == "" || len(c.PizzaIDs) == 0):
		return nil, errors.Wrap(ErrUsage, "order needs --name, --address and at least one --pizza-id")
	case c.Command == "receipt" && c.Token == "":
		return nil, errors.Wrap(ErrUsage, "receipt needs --token")
	}
	return c, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
