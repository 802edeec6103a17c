package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "imgbed",
		Short: "Imgbed serves an image bed backed by a generic-packages blob store",
	}

	cmd.Version = version
	cmd.AddCommand(newServeCmd())

	return cmd
}
