package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/digitorus/tsclient"
	"github.com/spf13/cobra"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <token.tst|response.tsr>",
		Short: "Display the contents of a token or response",
		Long: `Print the fields of a stored time-stamp token. A complete Time-Stamp
response is accepted as well; its status is shown and a granted token is
printed. The signature is not checked, see verify.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read file: %w", err)
			}

			token, tokenErr := tsclient.ParseToken(data)
			if tokenErr != nil {
				resp, err := tsclient.ParseResponse(data)
				if err != nil {
					return fmt.Errorf("%s is neither a token nor a response: %w", args[0], tokenErr)
				}
				if err := resp.Err(); err != nil {
					return err
				}
				if resp.Token == nil {
					return fmt.Errorf("%s: %w", args[0], tsclient.ErrMissingToken)
				}
				token = resp.Token
			}
			printToken(cmd.OutOrStdout(), token)
			return nil
		},
	}
}

func printToken(out io.Writer, token *tsclient.Token) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "Status:\t%s\n", token.Status)
	fmt.Fprintf(w, "Serial number:\t%s\n", token.SerialNumber)
	fmt.Fprintf(w, "Time:\t%s\n", token.Time.UTC().Format(time.RFC3339Nano))
	if token.Accuracy > 0 {
		fmt.Fprintf(w, "Accuracy:\t%s\n", token.Accuracy)
	}
	fmt.Fprintf(w, "Policy:\t%s\n", token.Policy)
	fmt.Fprintf(w, "Ordering:\t%t\n", token.Ordering)
	if token.Nonce != nil {
		fmt.Fprintf(w, "Nonce:\t%x\n", token.Nonce)
	}

	if token.HashAlgorithm == tsclient.UnknownDigestAlgorithm {
		fmt.Fprintf(w, "Hash algorithm:\t%s\n", token.HashAlgorithmOID)
	} else {
		fmt.Fprintf(w, "Hash algorithm:\t%s\n", token.HashAlgorithm)
	}
	fmt.Fprintf(w, "Hashed message:\t%x\n", token.HashedMessage)
	if d, err := token.ContentDigest(); err == nil {
		fmt.Fprintf(w, "Digest:\t%s\n", d)
	}

	if signer := token.Signer(); signer != nil {
		fmt.Fprintf(w, "Signer:\t%s\n", signer.Subject)
	}
	fmt.Fprintf(w, "Certificates:\t%d\n", len(token.Certificates))
	for _, warning := range token.Warnings {
		fmt.Fprintf(w, "Warning:\t%s\n", warning)
	}
}
