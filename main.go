package main

import (
	"fmt"
	"os"

	"github.com/PolarWolf314/sealkeeper/cmd"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "sealkeeper",
	Short: "sealkeeper - Sealed Secrets master key lifecycle on AWS.",
	Long: `sealkeeper keeps the Sealed Secrets controller master key in AWS Secrets
Manager and backs it up to local files and S3.

Usage:
  sealkeeper <command> [flags]

Available Commands:
  key       Set up, back up, rotate and recover the master key
  config    Manage the sealkeeper config file

Run 'sealkeeper help <command>' for more details on a specific command.
`,
	SilenceErrors: true,
	SilenceUsage:  true,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Run 'sealkeeper --help' to see available commands.")
	},
}

func init() {
	rootCmd.AddCommand(cmd.KeyCmd)
	rootCmd.AddCommand(cmd.ConfigCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !cmd.IsReported(err) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
