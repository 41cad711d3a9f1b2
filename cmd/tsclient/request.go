package main

import (
	"fmt"
	"os"

	"github.com/digitorus/tsclient"
	"github.com/spf13/cobra"
)

func newRequestCmd(global *globalOptions) *cobra.Command {
	var dataPath, outPath string
	cmd := &cobra.Command{
		Use:   "request",
		Short: "Write a DER encoded Time-Stamp request",
		Long: `Create a Time-Stamp request for a file without contacting a TSA. The
request is written to <file>.tsq unless -o is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.loadConfig(cmd)
			if err != nil {
				return err
			}
			reqOpts, err := cfg.RequestOptions()
			if err != nil {
				return err
			}

			f, err := os.Open(dataPath)
			if err != nil {
				return err
			}
			defer f.Close()

			req, der, err := tsclient.CreateRequest(f, reqOpts)
			if err != nil {
				return err
			}
			if outPath == "" {
				outPath = dataPath + ".tsq"
			}
			if err := os.WriteFile(outPath, der, 0o644); err != nil {
				return fmt.Errorf("failed to write request: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\t%s %x\n", outPath, req.HashAlgorithm, req.HashedMessage)
			if req.Nonce != nil {
				fmt.Fprintf(out, "nonce\t%x\n", req.Nonce)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&dataPath, "data", "d", "", "file to create the request for")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}
