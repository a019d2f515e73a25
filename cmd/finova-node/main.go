package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"finova-core/chain/node"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	Commit    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "finova-node",
	Short: "Finova core ledger node",
	Long:  "Serves the mining, staking, referral, card, bridge, and oracle instruction surface over HTTP and exposes Prometheus metrics.",
	Run:   runNode,
}

var (
	configFile  string
	dataDir     string
	rpcAddr     string
	metricsAddr string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "./data", "data directory")
	rootCmd.PersistentFlags().StringVar(&rpcAddr, "rpc-addr", ":8645", "RPC listen address")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", ":9464", "metrics listen address")

	viper.BindPFlags(rootCmd.PersistentFlags())
}

func runNode(cmd *cobra.Command, args []string) {
	log.Printf("finova-node %s (built %s, commit %s)", Version, BuildTime, Commit)

	config := node.DefaultConfig()
	config.DataDir = dataDir
	config.RPCListenAddr = rpcAddr
	config.MetricsAddr = metricsAddr

	n, err := node.New(config)
	if err != nil {
		log.Fatalf("failed to construct node: %v", err)
	}

	if err := n.Start(); err != nil {
		log.Fatalf("failed to start node: %v", err)
	}

	log.Printf("rpc listening on %s, metrics on %s, data dir %s", rpcAddr, metricsAddr, dataDir)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	log.Printf("shutting down")
	n.Stop()
	log.Printf("stopped")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
