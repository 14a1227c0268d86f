package client

import (
	"github.com/spf13/cobra"
)

// NewRoot constructs a root Cobra command holding the client commands.
func NewRoot() *cobra.Command {
	root := &cobra.Command{
		Use:   "kas",
		Short: "KAS client commands",
	}
	root.AddCommand(NewQueueCommand())
	root.AddCommand(NewShutdownCommand())
	root.AddCommand(NewPasswdCommand())
	return root
}
