package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var infoJsonFlag bool

func init() {
	infoCmd.Flags().BoolVar(&infoJsonFlag, "json", false, "Output as JSON")
}

var infoCmd = &cobra.Command{
	Use:   "info <id>",
	Short: "Show detailed session information",
	Long:  `Display a session's process, log file, buffer size and read cursors. Does not count as activity.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	id, err := parseSessionID(args[0])
	if err != nil {
		return err
	}

	client, err := connect()
	if err != nil {
		return err
	}

	info, err := client.Info(id)
	if err != nil {
		return err
	}

	if infoJsonFlag {
		data, _ := json.MarshalIndent(info, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("Session:  %d\n", info.ID)
	fmt.Printf("Command:  %s\n", strings.TrimSpace(info.Command+" "+strings.Join(info.Args, " ")))
	fmt.Printf("Status:   %s\n", info.Status)
	fmt.Printf("PID:      %d (group %d)\n", info.PID, info.PGID)
	fmt.Printf("Started:  %s (%s)\n", info.StartedAt.Format(time.RFC3339), humanize.Time(info.StartedAt))
	fmt.Printf("Activity: %s\n", humanize.Time(info.LastActivity))
	if info.LogPath != "" {
		fmt.Printf("Log:      %s\n", info.LogPath)
	}
	fmt.Printf("Buffer:   %s (%d bytes)\n", humanize.IBytes(uint64(info.BytesBuffered)), info.BytesBuffered)
	fmt.Printf("Seek:     %d\n", info.SeekPosition)
	fmt.Printf("Search:   %d\n", info.SearchPosition)
	return nil
}
