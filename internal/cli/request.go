package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zerodaysoftware/storekit/internal/core/domain"
)

var (
	requestData    string
	requestParams  []string
	requestOffline bool
)

var requestCmd = &cobra.Command{
	Use:   "request METHOD ENDPOINT",
	Short: "Run one coordinated request through the full resilience path",
	Long: `Run a request with caching, retries, endpoint failover and offline
queueing, exactly as an embedding application would. Example:

  storekit request GET /api/products --param limit=10
  storekit request POST /api/orders --data '{"productId": 42}'`,
	Args: cobra.ExactArgs(2),
	Run:  runRequest,
}

func init() {
	requestCmd.Flags().StringVar(&requestData, "data", "", "JSON request body")
	requestCmd.Flags().StringArrayVar(&requestParams, "param", nil, "query parameter key=value (repeatable)")
	requestCmd.Flags().BoolVar(&requestOffline, "offline", false, "force offline mode before the request")
	rootCmd.AddCommand(requestCmd)
}

func runRequest(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	ctx := context.Background()

	method := strings.ToUpper(args[0])
	endpoint := args[1]

	params := url.Values{}
	for _, p := range requestParams {
		k, v, ok := strings.Cut(p, "=")
		if !ok {
			slog.Error("Invalid --param, expected key=value", "param", p)
			os.Exit(1)
		}
		params.Add(k, v)
	}

	var body any
	if requestData != "" {
		if !json.Valid([]byte(requestData)) {
			slog.Error("Invalid JSON in --data")
			os.Exit(1)
		}
		body = json.RawMessage(requestData)
	}

	c, err := buildClient(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize client", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = c.Close()
	}()

	if requestOffline {
		c.ForceOffline()
	}

	result := c.Request(ctx, method, endpoint, params, body)

	switch result.Outcome {
	case domain.OutcomeSuccess:
		if result.FromCache {
			fmt.Fprintln(os.Stderr, "(served from cache)")
		}
		if len(result.Data) > 0 {
			var pretty any
			if err := json.Unmarshal(result.Data, &pretty); err == nil {
				out, _ := json.MarshalIndent(pretty, "", "  ")
				fmt.Println(string(out))
			} else {
				fmt.Println(string(result.Data))
			}
		} else if result.Message != "" {
			fmt.Println(result.Message)
		}
	case domain.OutcomeQueued:
		fmt.Printf("queued: %s %s (operation %s)\n",
			result.Mutation.Method, result.Mutation.Endpoint, result.Mutation.OperationID)
	case domain.OutcomeFailed:
		slog.Error("Request failed", "message", result.Message, "error", result.Err)
		os.Exit(1)
	}
}
