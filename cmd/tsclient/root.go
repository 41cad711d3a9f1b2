package main

import (
	"fmt"
	"io"
	"time"

	"github.com/digitorus/tsclient"
	"github.com/digitorus/tsclient/internal/config"
	"github.com/digitorus/tsclient/log"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// globalOptions holds the persistent flags shared by all subcommands.
type globalOptions struct {
	configPath string
	url        string
	hash       string
	method     string
	policy     string
	proxy      string
	noCert     bool
	noNonce    bool
	timeout    time.Duration
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	cmd := &cobra.Command{
		Use:   "tsclient",
		Short: "RFC 3161 Time-Stamp Protocol client",
		Long: `tsclient requests time-stamp tokens from a Time-Stamping Authority and
checks them against the request that produced them.

Examples:
  # Timestamp two files, writing README.md.tst and go.mod.tst
  tsclient stamp --url http://timestamp.digicert.com README.md go.mod

  # Write a request for offline use
  tsclient request --data README.md -o README.md.tsq

  # Verify a stored token against the data and a trusted root
  tsclient verify README.md.tst --data README.md --ca roots.pem`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(opts.logLevel, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			cmd.SetContext(log.WithLogger(cmd.Context(), logger))
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "YAML configuration file")
	flags.StringVarP(&opts.url, "url", "u", "", "URL of the Time-Stamping Authority")
	flags.StringVar(&opts.hash, "hash", "sha256", "digest algorithm")
	flags.StringVar(&opts.method, "method", "POST", "HTTP method, POST or GET")
	flags.StringVar(&opts.policy, "policy", "", "requested TSA policy OID")
	flags.StringVar(&opts.proxy, "proxy", "", "HTTP proxy URL")
	flags.BoolVar(&opts.noCert, "no-cert", false, "do not ask the TSA to embed its certificate")
	flags.BoolVar(&opts.noNonce, "no-nonce", false, "do not send a nonce")
	flags.DurationVar(&opts.timeout, "timeout", 30*time.Second, "timeout of a single exchange")
	flags.StringVar(&opts.logLevel, "log-level", "warning", "log level (debug, info, warning, error)")

	cmd.AddCommand(
		newStampCmd(opts),
		newRequestCmd(opts),
		newInspectCmd(),
		newVerifyCmd(),
		newVersionCmd(),
	)
	return cmd
}

func newLogger(level string, out io.Writer) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(lvl)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	return logger, nil
}

// loadConfig reads the configuration file, if any, and applies the flags the
// user set explicitly on top of it.
func (o *globalOptions) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		var err error
		if cfg, err = config.Load(o.configPath); err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("url") {
		cfg.URL = o.url
	}
	if flags.Changed("hash") {
		cfg.Hash = o.hash
	}
	if flags.Changed("method") {
		cfg.Method = o.method
	}
	if flags.Changed("policy") {
		cfg.Policy = o.policy
	}
	if flags.Changed("proxy") {
		cfg.Proxy.URL = o.proxy
	}
	if flags.Changed("no-cert") {
		certReq := !o.noCert
		cfg.CertReq = &certReq
	}
	if flags.Changed("no-nonce") {
		nonce := !o.noNonce
		cfg.Nonce = &nonce
	}
	if flags.Changed("timeout") {
		cfg.Timeout = o.timeout
	}
	return cfg, nil
}

// newClient returns a client for the effective configuration together with
// the digest algorithm it was configured with.
func (o *globalOptions) newClient(cmd *cobra.Command) (*tsclient.Client, tsclient.DigestAlgorithm, error) {
	cfg, err := o.loadConfig(cmd)
	if err != nil {
		return nil, tsclient.UnknownDigestAlgorithm, err
	}
	cc, err := cfg.ClientConfig()
	if err != nil {
		return nil, tsclient.UnknownDigestAlgorithm, err
	}
	client, err := tsclient.NewClient(cc)
	if err != nil {
		return nil, tsclient.UnknownDigestAlgorithm, err
	}
	return client, cc.Hash, nil
}
