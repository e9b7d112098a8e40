package root

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// RootCmd is the top-level command every subcommand attaches to.
var RootCmd = &cobra.Command{
	Use:   "a11y",
	Short: "Accessibility monitor CLI",
	Long:  "Command line interface for managing recurring accessibility scan-and-report schedules.",
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// GetRoot returns the root command.
func GetRoot() *cobra.Command {
	return RootCmd
}
