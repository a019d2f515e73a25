// Command finova-cli drives an admin's one-shot calls against a running
// finova-node's RPC surface: tripping or clearing an oracle feed's
// circuit breaker, and pausing/resuming/cancelling a bridge lock.
// Grounded on the teacher's validator-cli, narrowed from full validator
// key lifecycle management (key generation, delegation, staking) to the
// handful of emergency admin actions spec.md §6 actually exposes.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var rpcEndpoint string

var rootCmd = &cobra.Command{
	Use:   "finova-cli",
	Short: "Admin CLI for a finova-node instance",
}

func postRPC(path string, body interface{}) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(rpcEndpoint+path, "application/json", bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: %s: %s", path, resp.Status, string(data))
	}
	fmt.Println(string(data))
	return nil
}

func bridgeCmd() *cobra.Command {
	var lockID string
	pause := &cobra.Command{
		Use:   "pause",
		Short: "Emergency-pause a bridge lock",
		RunE: func(cmd *cobra.Command, args []string) error {
			return postRPC("/v1/bridge/emergency_pause", map[string]string{"lockId": lockID})
		},
	}
	resume := &cobra.Command{
		Use:   "resume",
		Short: "Resume a paused bridge lock",
		RunE: func(cmd *cobra.Command, args []string) error {
			return postRPC("/v1/bridge/resume", map[string]string{"lockId": lockID})
		},
	}
	cancel := &cobra.Command{
		Use:   "cancel",
		Short: "Cancel a bridge lock as its issuer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return postRPC("/v1/bridge/cancel", map[string]string{"lockId": lockID})
		},
	}
	bridge := &cobra.Command{Use: "bridge"}
	for _, c := range []*cobra.Command{pause, resume, cancel} {
		c.Flags().StringVar(&lockID, "lock-id", "", "hex-encoded lock id")
		c.MarkFlagRequired("lock-id")
		bridge.AddCommand(c)
	}
	return bridge
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rpcEndpoint, "rpc", "http://localhost:8645", "finova-node RPC endpoint")

	oracle := &cobra.Command{Use: "oracle"}
	var symbol string
	oracle.AddCommand(&cobra.Command{
		Use:   "activate-circuit-breaker",
		Short: "Manually halt a price feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return postRPC("/v1/oracle/activate_circuit_breaker", map[string]string{"symbol": symbol})
		},
	})
	oracle.AddCommand(&cobra.Command{
		Use:   "deactivate-circuit-breaker",
		Short: "Clear a halted price feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return postRPC("/v1/oracle/deactivate_circuit_breaker", map[string]string{"symbol": symbol})
		},
	})
	oracle.PersistentFlags().StringVar(&symbol, "symbol", "", "feed symbol, e.g. FIN/USD")

	rootCmd.AddCommand(oracle)
	rootCmd.AddCommand(bridgeCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
