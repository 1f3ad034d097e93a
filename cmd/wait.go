package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/schovi/interactive/internal/daemon"
	"github.com/schovi/interactive/internal/engine"
)

var waitCmd = &cobra.Command{
	Use:   "wait <id> <prompt> [prompt...]",
	Short: "Wait for a prompt in new output",
	Long: `Wait until one of the prompts appears in output produced since the last wait,
then print the captured output. Prompts are literal strings, not patterns.

A timeout is reported on stderr and is not an error.

Examples:
  interactive wait 1 ">>> " "... "
  interactive wait 1 "(Pdb) " --timeout 30 --tail 20`,
	Args: cobra.MinimumNArgs(2),
	RunE: runWait,
}

var (
	waitTimeoutFlag        float64
	waitNoOutputFlag       bool
	waitKeepWhitespaceFlag bool
	waitHeadFlag           int
	waitTailFlag           int
	waitJsonFlag           bool
)

func init() {
	waitCmd.Flags().Float64Var(&waitTimeoutFlag, "timeout", engine.DefaultWaitTimeout.Seconds(), "Timeout in seconds")
	waitCmd.Flags().BoolVar(&waitNoOutputFlag, "no-output", false, "Do not return captured output")
	waitCmd.Flags().BoolVar(&waitKeepWhitespaceFlag, "keep-whitespace", false, "Leave whitespace after the prompt for the next wait")
	waitCmd.Flags().IntVar(&waitHeadFlag, "head", 0, "Print only the first N lines of output")
	waitCmd.Flags().IntVar(&waitTailFlag, "tail", 0, "Print only the last N lines of output")
	waitCmd.Flags().BoolVar(&waitJsonFlag, "json", false, "Output as JSON")
}

func runWait(cmd *cobra.Command, args []string) error {
	id, err := parseSessionID(args[0])
	if err != nil {
		return err
	}
	if waitTimeoutFlag <= 0 {
		return fmt.Errorf("--timeout must be positive")
	}
	if waitHeadFlag > 0 && waitTailFlag > 0 {
		return fmt.Errorf("--head and --tail are mutually exclusive")
	}

	client, err := connect()
	if err != nil {
		return err
	}

	res, err := client.Wait(id, daemon.WaitOptions{
		Prompts:           args[1:],
		Timeout:           time.Duration(waitTimeoutFlag * float64(time.Second)),
		ReturnOutput:      !waitNoOutputFlag,
		ConsumeWhitespace: !waitKeepWhitespaceFlag,
		HeadLines:         waitHeadFlag,
		TailLines:         waitTailFlag,
	})
	if res == nil {
		return err
	}

	if waitJsonFlag {
		data, merr := json.MarshalIndent(res, "", "  ")
		if merr != nil {
			return fmt.Errorf("marshal output: %w", merr)
		}
		fmt.Println(string(data))
		return err
	}

	fmt.Print(res.Output)
	if res.Status != engine.StatusPromptDetected {
		fmt.Fprintf(cmd.ErrOrStderr(), "\n[%s]\n", res.Status)
	}
	return err
}
