package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/zerodaysoftware/storekit/internal/infra/api"
	"github.com/zerodaysoftware/storekit/internal/infra/network"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Health-check the configured base URL once",
	Run:   runProbe,
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Probe all candidate endpoints and report the first responder",
	Run:   runDiscover,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(discoverCmd)
}

func runProbe(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	ctx := context.Background()

	exec := api.NewExecutor(cfg.API)
	if exec.Probe(ctx, cfg.Monitor.BaseURL) {
		fmt.Printf("ok: %s\n", cfg.Monitor.BaseURL)
		return
	}
	fmt.Printf("unreachable: %s\n", cfg.Monitor.BaseURL)
	os.Exit(1)
}

func runDiscover(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	ctx := context.Background()

	exec := api.NewExecutor(cfg.API)
	monitor := network.NewMonitor(exec, cfg.Monitor, slog.Default())

	adopted := monitor.DiscoverEndpoint(ctx)
	if monitor.Online() {
		fmt.Printf("adopted: %s\n", adopted)
		return
	}
	fmt.Println("no candidate responded")
	os.Exit(1)
}
