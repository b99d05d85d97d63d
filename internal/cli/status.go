package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show connectivity state and pending queue depth",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	ctx := context.Background()

	c, err := buildClient(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize client", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = c.Close()
	}()

	status := c.NetworkStatus(ctx)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "FIELD\tVALUE")
	_, _ = fmt.Fprintf(w, "online\t%t\n", status.IsOnline)
	_, _ = fmt.Fprintf(w, "base_url\t%s\n", status.BaseURL)
	_, _ = fmt.Fprintf(w, "queue_depth\t%d\n", status.QueueDepth)
	_, _ = fmt.Fprintf(w, "consecutive_failures\t%d\n", status.ConsecutiveFailures)
	if !status.LastCheckedAt.IsZero() {
		_, _ = fmt.Fprintf(w, "last_checked\t%s\n", status.LastCheckedAt.Format("2006-01-02 15:04:05"))
	}
	_ = w.Flush()
}
