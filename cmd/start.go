package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start <command> [-- args...]",
	Short: "Start a program on a pseudo-terminal",
	Long: `Start a program on a pseudo-terminal and print the new session id.

The command is resolved through PATH. Flags after the command are passed to it;
use -- to be explicit.

Examples:
  interactive start python3 -- -i -q
  interactive start --no-log node`,
	Args: cobra.MinimumNArgs(1),
	RunE: runStart,
}

var (
	startNoLogFlag bool
	startJsonFlag  bool
)

func init() {
	startCmd.Flags().SetInterspersed(false)
	startCmd.Flags().BoolVar(&startNoLogFlag, "no-log", false, "Do not mirror output to a log file")
	startCmd.Flags().BoolVar(&startJsonFlag, "json", false, "Output as JSON")
}

func runStart(cmd *cobra.Command, args []string) error {
	client, err := connect()
	if err != nil {
		return err
	}

	res, err := client.Start(args[0], args[1:], !startNoLogFlag)
	if err != nil {
		return err
	}

	if startJsonFlag {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal output: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Println(res.ID)
	if res.LogPath != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "pid %d, logging to %s\n", res.PID, res.LogPath)
	}
	return nil
}
