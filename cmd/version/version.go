package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/portmirror/portmirror/pkg/version"
)

// New creates a new `version` command.
func New() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of portmirror.",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("portmirror version: %s\n", version.Version)
		},
	}
}
