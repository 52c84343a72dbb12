// mbs remake [build dir]
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mbs-build/mbs/internal/msg"
	"github.com/mbs-build/mbs/internal/runner"
)

var remakeCmd = &cobra.Command{
	Use:   "remake [build directory]",
	Short: "Print the invocation line of the previous run",
	Long:  `Print the invocation line recorded by the previous run. If no build directory is given, uses ".build"`,
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dir := ".build"
		if len(args) > 0 {
			dir = args[0]
		}
		line, err := runner.ReadInvocation(dir)
		if err != nil {
			msg.Fatal("%v", err)
		}
		fmt.Println(line)
	},
}

func init() {
	// mbs remake subcommand
	rootCmd.AddCommand(remakeCmd)
}
