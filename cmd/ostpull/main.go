package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ostpull",
		Short: "Pull the closure of a remote's objects into a local content-addressed store",
	}
	cmd.AddCommand(newPullCmd())
	return cmd
}
