package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/schovi/interactive/internal/escape"
)

var sendCmd = &cobra.Command{
	Use:   "send <id> <input>",
	Short: "Send input to a session",
	Long: `Send input to a session. A newline is appended and output that was never
waited for is discarded first, so the next wait sees only the reply.

With --raw, escape sequences are interpreted:
  \n \r \t     Newline, carriage return, tab
  \e           Escape (ASCII 27)
  \\           Literal backslash
  \xNN         Hex byte (e.g., \x03 for Ctrl+C)
  \^X          Control character in caret notation (e.g., \^C, \^D, \^[)

Examples:
  interactive send 1 "print('hi')"
  interactive send 1 --raw --no-newline '\^C'     # interrupt
  interactive send 1 --raw --no-newline '\x04'    # EOF`,
	Args: cobra.ExactArgs(2),
	RunE: runSend,
}

var (
	sendRawFlag        bool
	sendNoNewlineFlag  bool
	sendNoPreflushFlag bool
)

func init() {
	sendCmd.Flags().BoolVar(&sendRawFlag, "raw", false, "Interpret escape sequences")
	sendCmd.Flags().BoolVar(&sendNoNewlineFlag, "no-newline", false, "Do not append a newline")
	sendCmd.Flags().BoolVar(&sendNoPreflushFlag, "no-preflush", false, "Keep pending output for the next wait")
}

func runSend(cmd *cobra.Command, args []string) error {
	id, err := parseSessionID(args[0])
	if err != nil {
		return err
	}

	input := args[1]
	if sendRawFlag {
		input, err = escape.Decode(input)
		if err != nil {
			return fmt.Errorf("escape sequence error: %w", err)
		}
	}

	client, err := connect()
	if err != nil {
		return err
	}

	if err := client.Send(id, input, !sendNoNewlineFlag, !sendNoPreflushFlag); err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Sent to session %d (%d bytes)\n", id, len(input))
	return nil
}
