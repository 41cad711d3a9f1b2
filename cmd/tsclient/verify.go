package main

import (
	"bytes"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	"github.com/digitorus/tsclient"
	"github.com/digitorus/tsclient/internal/config"
	"github.com/spf13/cobra"
)

type verifyOptions struct {
	dataPath string
	roots    []string
	certs    []string
}

func newVerifyCmd() *cobra.Command {
	opts := &verifyOptions{}
	cmd := &cobra.Command{
		Use:   "verify <token.tst>",
		Short: "Verify a stored token",
		Long: `Verify the signature of a stored time-stamp token and, with --data, that
it was issued for the given file. The certificate chain is only verified
when --ca is given. Use --cert to supply the TSA certificate of tokens
requested with --no-cert.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd, opts, args[0])
		},
	}
	cmd.Flags().StringVarP(&opts.dataPath, "data", "d", "", "file the token was requested for")
	cmd.Flags().StringSliceVar(&opts.roots, "ca", nil, "PEM file with trusted root certificates")
	cmd.Flags().StringSliceVar(&opts.certs, "cert", nil, "PEM file with additional certificates")
	return cmd
}

func runVerify(cmd *cobra.Command, opts *verifyOptions, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read token: %w", err)
	}
	token, err := tsclient.ParseToken(data)
	if err != nil {
		return err
	}

	verifier := &tsclient.PKCS7Verifier{}
	if len(opts.roots) > 0 {
		verifier.Roots = x509.NewCertPool()
		for _, p := range opts.roots {
			certs, err := config.LoadCertificates(p)
			if err != nil {
				return err
			}
			for _, cert := range certs {
				verifier.Roots.AddCert(cert)
			}
		}
	}
	for _, p := range opts.certs {
		certs, err := config.LoadCertificates(p)
		if err != nil {
			return err
		}
		verifier.Certificates = append(verifier.Certificates, certs...)
	}

	if err := verifier.VerifyToken(token); err != nil {
		return &tsclient.ValidationError{Kind: tsclient.ErrSignatureInvalid, Err: err}
	}

	if opts.dataPath != "" {
		f, err := os.Open(opts.dataPath)
		if err != nil {
			return err
		}
		defer f.Close()

		hashedMessage, err := tsclient.DigestReader(f, token.HashAlgorithm)
		if err != nil {
			return err
		}
		if !bytes.Equal(hashedMessage, token.HashedMessage) {
			return &tsclient.ValidationError{
				Kind: tsclient.ErrDigestMismatch,
				Msg:  fmt.Sprintf("%s has %s %x", opts.dataPath, token.HashAlgorithm, hashedMessage),
			}
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: OK, issued at %s serial %s\n", path, token.Time.UTC().Format(time.RFC3339Nano), token.SerialNumber)
	return nil
}
