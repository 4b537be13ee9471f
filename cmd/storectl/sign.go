package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/imrishuroy/go-whatsapp-orderflow/internal/whatsapp"
)

func signCmd() *cobra.Command {
	var secret, file string
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign a webhook payload the way WhatsApp does",
		Long: `Prints the X-Hub-Signature-256 header value for a payload read from
--file or stdin, for replaying webhooks against a local server.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("WHATSAPP_APP_SECRET")
			}
			if secret == "" {
				return errors.New("--secret or WHATSAPP_APP_SECRET is required")
			}
			var (
				body []byte
				err  error
			)
			if file != "" {
				body, err = os.ReadFile(file)
			} else {
				body, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return fmt.Errorf("read payload: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), whatsapp.Sign(secret, body))
			return err
		},
	}
	cmd.Flags().StringVarP(&secret, "secret", "s", "", "App secret (default $WHATSAPP_APP_SECRET)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Payload file (default stdin)")
	return cmd
}
