// Package node wires the store, the six domain engines, governance,
// HSM key custody, the RPC transport, and monitoring into one process
// lifecycle, adapted from the teacher's Node: the Config/DefaultConfig
// shape and the context+waitgroup Start/Stop pattern survive, but the
// blockchain/txpool/p2p/consensus fields are gone since this core has
// no block producer — chain/rpc.Server is the sole externally facing
// surface.
package node

import (
	"context"
	"fmt"
	"log"
	"sync"

	"finova-core/chain/bridge"
	"finova-core/chain/emission"
	"finova-core/chain/fintypes"
	"finova-core/chain/governance"
	"finova-core/chain/monitoring"
	"finova-core/chain/oracle"
	"finova-core/chain/referral"
	"finova-core/chain/rpc"
	"finova-core/chain/security/hsm"
	"finova-core/chain/store"
)

// hsmProviderName is the HSMManagerConfig.DefaultProvider this node
// registers its one concrete HSM provider under at startup.
const hsmProviderName = "local"

// Config configures a Node's persistence directory and listen addresses.
type Config struct {
	DataDir       string
	RPCListenAddr string
	MetricsAddr   string

	Emission  emission.Config
	Referral  referral.Config
	Bridge    bridge.Config
	Oracle    oracle.Config
	Governance governance.Config
}

// DefaultConfig returns sensible defaults for local development.
func DefaultConfig() *Config {
	return &Config{
		DataDir:       "./data",
		RPCListenAddr: ":8645",
		MetricsAddr:   ":9464",
		Emission:      emission.DefaultConfig(),
		Referral:      referral.DefaultConfig(),
		Bridge:        bridge.DefaultConfig(),
		Oracle:        oracle.DefaultConfig(),
		Governance:    governance.DefaultConfig(),
	}
}

// Node owns every long-lived subsystem of a running core instance.
type Node struct {
	config *Config

	store      *store.Store
	handlers   *rpc.Handlers
	rpcServer  *rpc.Server
	metrics    *monitoring.MetricsServer
	governance *governance.Engine
	hsmManager *hsm.DefaultHSMManager

	mu      sync.Mutex
	running bool
}

// validatorSetPower adapts a *fintypes.ValidatorSet into
// governance.VotingPower: validator addresses are derived by hashing
// each entry's public key, since ValidatorSet (spec.md §3) tracks
// bridge/oracle signing keys, not a separate governance address.
type validatorSetPower struct {
	set *fintypes.ValidatorSet
}

func (p validatorSetPower) Power(addr fintypes.Address) (uint64, bool) {
	if p.set == nil {
		return 0, false
	}
	for i := 0; i < int(p.set.Count); i++ {
		entry := p.set.Validators[i]
		if !entry.Active {
			continue
		}
		if fintypes.BytesToAddress(fintypes.SHA3(entry.PublicKey[:]).Bytes()) == addr {
			return entry.Stake, true
		}
	}
	return 0, false
}

func (p validatorSetPower) TotalPower() uint64 {
	if p.set == nil {
		return 0
	}
	var total uint64
	for i := 0; i < int(p.set.Count); i++ {
		if p.set.Validators[i].Active {
			total += p.set.Validators[i].Stake
		}
	}
	return total
}

// provisionValidatorKeys sources a bridge-signing public key from the
// HSM for every validator entry that doesn't already carry one, the
// way a real validator's key custody is handled: the node never
// generates or holds the private key itself, only the handle's public
// half, returned once at startup and stored on the ValidatorEntry that
// chain/bridge later verifies submitted signatures against.
func provisionValidatorKeys(mgr *hsm.DefaultHSMManager, validators *fintypes.ValidatorSet) error {
	ctx := context.Background()
	for i := 0; i < int(validators.Count); i++ {
		entry := &validators.Validators[i]
		if entry.PublicKey != ([32]byte{}) {
			continue
		}
		handle, err := mgr.CreateValidatorKey(ctx, fmt.Sprintf("%d", i), hsmProviderName)
		if err != nil {
			return fmt.Errorf("validator %d: %w", i, err)
		}
		copy(entry.PublicKey[:], handle.PublicKey)
	}
	return nil
}

// New opens the store and wires every subsystem. Call Start to begin
// serving.
func New(config *Config) (*Node, error) {
	st, err := store.Open(config.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	validators, found, err := st.GetValidatorSet()
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("load validator set: %w", err)
	}
	if !found {
		validators = &fintypes.ValidatorSet{Version: 1}
	}

	metrics := monitoring.NewMetricsServer(monitoring.Config{
		ListenAddr:  config.MetricsAddr,
		MetricsPath: "/metrics",
		HealthPath:  "/health",
	})

	handlers := rpc.NewHandlers(st, config.Emission, config.Referral, config.Bridge, config.Oracle, metrics)
	rpcServer := rpc.NewServer(handlers, rpc.Config{ListenAddr: config.RPCListenAddr})

	hsmManager := hsm.NewHSMManager(hsm.HSMManagerConfig{
		DefaultProvider:    hsmProviderName,
		RequiredFIPSLevel:  0,
		AuditRetentionDays: 90,
		MaxFailedAttempts:  5,
	})
	hsmProvider := hsm.NewAWSCloudHSMProvider()
	if err := hsmManager.RegisterProvider(hsmProviderName, hsmProvider); err != nil {
		st.Close()
		return nil, fmt.Errorf("register hsm provider: %w", err)
	}
	if err := hsmProvider.Initialize(context.Background(), hsm.HSMConfig{
		Provider:  hsmProviderName,
		FIPSLevel: 3,
	}); err != nil {
		st.Close()
		return nil, fmt.Errorf("initialize hsm provider: %w", err)
	}
	if err := provisionValidatorKeys(hsmManager, validators); err != nil {
		st.Close()
		return nil, fmt.Errorf("provision validator keys: %w", err)
	}
	if err := st.PutValidatorSet(validators); err != nil {
		st.Close()
		return nil, fmt.Errorf("persist validator set: %w", err)
	}

	govEngine := governance.NewEngine(config.Governance, validatorSetPower{set: validators})

	return &Node{
		config:     config,
		store:      st,
		handlers:   handlers,
		rpcServer:  rpcServer,
		metrics:    metrics,
		governance: govEngine,
		hsmManager: hsmManager,
	}, nil
}

// Store exposes the persistence layer for admin tooling (cmd/finova-cli).
func (n *Node) Store() *store.Store { return n.store }

// Governance exposes the governance engine for admin tooling.
func (n *Node) Governance() *governance.Engine { return n.governance }

// Handlers exposes the instruction surface directly, for callers that
// want to invoke it in-process rather than over HTTP (tests, the CLI).
func (n *Node) Handlers() *rpc.Handlers { return n.handlers }

// Start launches the RPC transport and the metrics server.
func (n *Node) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.running {
		return fmt.Errorf("node already running")
	}

	log.Printf("node: starting, data dir %s", n.config.DataDir)

	if err := n.rpcServer.Start(); err != nil {
		return fmt.Errorf("start rpc server: %w", err)
	}
	if err := n.metrics.Start(); err != nil {
		n.rpcServer.Stop()
		return fmt.Errorf("start metrics server: %w", err)
	}

	n.running = true
	log.Printf("node: started, rpc on %s, metrics on %s", n.config.RPCListenAddr, n.config.MetricsAddr)
	return nil
}

// Stop shuts every subsystem down and closes the store.
func (n *Node) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.running {
		return
	}

	log.Printf("node: stopping")

	n.rpcServer.Stop()
	n.metrics.Stop()
	if err := n.store.Close(); err != nil {
		log.Printf("node: error closing store: %v", err)
	}

	n.running = false
	log.Printf("node: stopped")
}
