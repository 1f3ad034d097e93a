package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var exitCmd = &cobra.Command{
	Use:   "exit <id>",
	Short: "Terminate a session",
	Long: `Send SIGTERM to the session's program, kill its process group if it has not
exited within the grace period, and forget the session.`,
	Args: cobra.ExactArgs(1),
	RunE: runExit,
}

func runExit(cmd *cobra.Command, args []string) error {
	id, err := parseSessionID(args[0])
	if err != nil {
		return err
	}

	client, err := connect()
	if err != nil {
		return err
	}

	res, err := client.Exit(id)
	if err != nil {
		return err
	}

	fmt.Printf("Session %d terminated\n", id)
	if res.Note != "" {
		fmt.Fprintln(cmd.ErrOrStderr(), res.Note)
	}
	return nil
}
