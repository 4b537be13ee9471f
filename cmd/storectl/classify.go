package main

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/imrishuroy/go-whatsapp-orderflow/internal/intent"
)

func classifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify [text...]",
		Short: "Print the intent a customer message classifies as",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(intent.Classify(strings.Join(args, " ")))
		},
	}
}
