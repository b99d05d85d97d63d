package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "List buffered mutations in replay order",
	Run:   runQueue,
}

var drainCmd = &cobra.Command{
	Use:   "drain",
	Short: "Replay buffered mutations against the backend now",
	Run:   runDrain,
}

func init() {
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(drainCmd)
}

func runQueue(cmd *cobra.Command, args []string) {
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

	items, err := c.PendingMutations(ctx)
	if err != nil {
		slog.Error("Failed to read queue", "error", err)
		os.Exit(1)
	}

	if len(items) == 0 {
		fmt.Println("queue is empty")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "ID\tMETHOD\tENDPOINT\tQUEUED\tATTEMPTS\tLAST ERROR")
	for _, m := range items {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\n",
			m.ID, m.Method, m.Endpoint, m.EnqueuedAt.Format("2006-01-02 15:04:05"), m.Attempts, m.LastError)
	}
	_ = w.Flush()
}

func runDrain(cmd *cobra.Command, args []string) {
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

	before := c.NetworkStatus(ctx).QueueDepth
	if before == 0 {
		fmt.Println("queue is empty")
		return
	}

	if err := c.DrainQueue(ctx); err != nil {
		slog.Error("Drain failed", "error", err)
		os.Exit(1)
	}

	after := c.NetworkStatus(ctx).QueueDepth
	fmt.Printf("replayed %d, remaining %d\n", before-after, after)
}
