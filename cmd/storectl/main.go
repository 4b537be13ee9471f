package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "storectl",
		Short:        "Operator tools for the WhatsApp order flow",
		Version:      Version,
		SilenceUsage: true,
	}
	root.AddCommand(classifyCmd())
	root.AddCommand(signCmd())
	root.AddCommand(seedCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
