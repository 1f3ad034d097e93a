package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/schovi/interactive/internal/engine"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List active sessions",
	RunE:  runList,
}

var listJsonFlag bool

func init() {
	listCmd.Flags().BoolVar(&listJsonFlag, "json", false, "Output as JSON")
}

func runList(cmd *cobra.Command, args []string) error {
	client, err := connect()
	if err != nil {
		return err
	}

	if listJsonFlag {
		sessions, err := client.List()
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(sessions, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal output: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	infos, err := client.InfoAll()
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Println("No sessions")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPID\tSTATUS\tIDLE\tBUFFER\tCOMMAND")
	for _, info := range infos {
		fmt.Fprintln(w, formatListRow(info, time.Now()))
	}
	return w.Flush()
}

func formatListRow(info engine.SessionInfo, now time.Time) string {
	command := strings.TrimSpace(info.Command + " " + strings.Join(info.Args, " "))
	return fmt.Sprintf("%d\t%d\t%s\t%s\t%s\t%s",
		info.ID,
		info.PID,
		info.Status,
		humanize.RelTime(info.LastActivity, now, "ago", "from now"),
		humanize.IBytes(uint64(info.BytesBuffered)),
		command,
	)
}
