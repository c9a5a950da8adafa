package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	goMormot "github.com/MrEthical07/goMormot"
	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "0.1.0"

var (
	okFmt   = color.New(color.FgGreen).SprintFunc()
	warnFmt = color.New(color.FgYellow).SprintFunc()
	errFmt  = color.New(color.FgRed, color.Bold).SprintFunc()
	dimFmt  = color.New(color.Faint).SprintFunc()
)

type globalOptions struct {
	configPath string
	host       string
	port       int
	ssl        bool
	root       string
	salt       string
	redisAddr  string
	sessionKey string
	output     string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "mormotctl",
		Short: "mORMot signed-session client",
		Long: `mormotctl talks to a mORMot REST server with its challenge-response
authentication and per-request URL signatures.

Sessions established by 'login' are kept in Redis (MORMOT_REDIS_ADDR or
--redis-addr) so 'sign', 'call', 'status' and 'logout' can reuse them.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "Config file (yaml, json, toml or .env); MORMOT_* env applies on top")
	pf.StringVar(&opts.host, "host", "", "Server host (overrides config)")
	pf.IntVar(&opts.port, "port", 0, "Server port (overrides config)")
	pf.BoolVar(&opts.ssl, "ssl", false, "Use https")
	pf.StringVar(&opts.root, "root", "", "Root model name (overrides config)")
	pf.StringVar(&opts.salt, "salt", "", "Password salt (overrides config)")
	pf.StringVar(&opts.redisAddr, "redis-addr", "", "Redis address for session persistence (overrides config)")
	pf.StringVar(&opts.sessionKey, "session", "", "Name the session is persisted under (overrides config)")
	pf.StringVarP(&opts.output, "output", "o", "table", "Output format: table, json")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Log protocol steps to stderr")

	root.AddCommand(
		newHashCmd(opts),
		newLoginCmd(opts),
		newStatusCmd(opts),
		newSignCmd(opts),
		newCallCmd(opts),
		newLogoutCmd(opts),
		newVerifyCmd(opts),
		newEnvCmd(),
	)
	return root
}

// loadConfig applies flags over the loaded configuration.
func (o *globalOptions) loadConfig(cmd *cobra.Command) (goMormot.Config, error) {
	cfg, err := goMormot.LoadConfig(o.configPath)
	if err != nil {
		return goMormot.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Server.Host = o.host
	}
	if flags.Changed("port") {
		cfg.Server.Port = o.port
	}
	if flags.Changed("ssl") {
		cfg.Server.SSL = o.ssl
	}
	if flags.Changed("root") {
		cfg.RootModel = o.root
	}
	if flags.Changed("salt") {
		cfg.Salt = o.salt
	}
	if flags.Changed("redis-addr") {
		cfg.Session.RedisAddr = o.redisAddr
	}
	if flags.Changed("session") {
		cfg.Session.Key = o.sessionKey
	}
	if err := cfg.Validate(); err != nil {
		return goMormot.Config{}, err
	}
	return cfg, nil
}

// openClient builds a client that persists its session in Redis.
func (o *globalOptions) openClient(cmd *cobra.Command) (*goMormot.Client, error) {
	cfg, err := o.loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if cfg.Session.RedisAddr == "" {
		return nil, errors.New("session persistence needs a Redis address (--redis-addr or MORMOT_REDIS_ADDR)")
	}
	cfg.Session.Persist = true

	logger := logrus.New()
	logger.SetOutput(cmd.ErrOrStderr())
	logger.SetLevel(logrus.WarnLevel)
	if o.verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	return goMormot.New().WithConfig(cfg).WithLogger(logger).Build()
}

func (o *globalOptions) printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (o *globalOptions) jsonOutput() bool {
	return o.output == "json"
}

func printSession(w io.Writer, info goMormot.SessionInfo) {
	if !info.Active {
		fmt.Fprintf(w, "%s %s\n", warnFmt("●"), "logged out")
		return
	}
	fmt.Fprintf(w, "%s %s\n", okFmt("●"), info.Status)
	fmt.Fprintf(w, "  user:     %s\n", info.UserName)
	fmt.Fprintf(w, "  session:  %d %s\n", info.SessionID, dimFmt("("+info.SessionIDHex8+")"))
	fmt.Fprintf(w, "  started:  %s\n", info.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "  offset:   %d\n", info.ServerTimeOffset)
}
