package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/digitorus/tsclient"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// stdinName stands for standard input on the command line.
const stdinName = "-"

type stampOptions struct {
	jobs   int
	outDir string
}

func newStampCmd(global *globalOptions) *cobra.Command {
	opts := &stampOptions{}
	cmd := &cobra.Command{
		Use:   "stamp [file...]",
		Short: "Timestamp files",
		Long: `Timestamp each file and store the token next to it as <file>.tst, or in
the directory given by --out-dir. Use - to read standard input, its token is
written to stdin.tst.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStamp(cmd, global, opts, args)
		},
	}
	cmd.Flags().IntVarP(&opts.jobs, "jobs", "j", 4, "number of concurrent requests")
	cmd.Flags().StringVarP(&opts.outDir, "out-dir", "o", "", "directory for the tokens")
	return cmd
}

func runStamp(cmd *cobra.Command, global *globalOptions, opts *stampOptions, args []string) error {
	if opts.jobs < 1 {
		return fmt.Errorf("--jobs must be at least 1, got %d", opts.jobs)
	}
	stdin := 0
	for _, name := range args {
		if name == stdinName {
			stdin++
		}
	}
	if stdin > 1 {
		return errors.New("standard input can only be timestamped once")
	}

	paths := make([]string, len(args))
	seen := make(map[string]string, len(args))
	for i, name := range args {
		paths[i] = tokenPath(name, opts.outDir)
		key := filepath.Clean(paths[i])
		if prev, ok := seen[key]; ok {
			return fmt.Errorf("%s and %s would both be written to %s", prev, name, paths[i])
		}
		seen[key] = name
	}

	client, hash, err := global.newClient(cmd)
	if err != nil {
		return err
	}

	tokens := make([]*tsclient.Token, len(args))
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(opts.jobs)
	for i, name := range args {
		i, name := i, name
		g.Go(func() error {
			token, err := stampFile(ctx, client, hash, name, cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			if err := os.WriteFile(paths[i], token.Raw, 0o644); err != nil {
				return fmt.Errorf("failed to write token: %w", err)
			}
			tokens[i] = token
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for i, token := range tokens {
		fmt.Fprintf(out, "%s\t%s\tserial %s", paths[i], token.Time.UTC().Format(time.RFC3339Nano), token.SerialNumber)
		if d, err := token.ContentDigest(); err == nil {
			fmt.Fprintf(out, "\t%s", d)
		}
		fmt.Fprintln(out)
	}
	return nil
}

func stampFile(ctx context.Context, client *tsclient.Client, hash tsclient.DigestAlgorithm, name string, stdin io.Reader) (*tsclient.Token, error) {
	r := stdin
	if name != stdinName {
		f, err := os.Open(name)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	hashedMessage, err := tsclient.DigestReader(r, hash)
	if err != nil {
		return nil, err
	}
	return client.TimestampDigest(ctx, hashedMessage)
}

func tokenPath(name, outDir string) string {
	base := name + ".tst"
	if name == stdinName {
		base = "stdin.tst"
	}
	if outDir == "" {
		return base
	}
	return filepath.Join(outDir, filepath.Base(base))
}
