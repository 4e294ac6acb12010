// Command trinitynoded runs a full geometric-UTXO node: it opens (or
// creates) its on-disk chain state, joins the peer network, accepts and
// relays gossip, and continuously mines new blocks. Configuration is read
// entirely from the environment; see internal/config.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/trinity-chain/trinitynode/internal/chain"
	"github.com/trinity-chain/trinitynode/internal/clockshim"
	"github.com/trinity-chain/trinitynode/internal/config"
	klog "github.com/trinity-chain/trinitynode/internal/log"
	"github.com/trinity-chain/trinitynode/internal/mempool"
	"github.com/trinity-chain/trinitynode/internal/miner"
	"github.com/trinity-chain/trinitynode/internal/p2p"
	"github.com/trinity-chain/trinitynode/internal/rng"
	"github.com/trinity-chain/trinitynode/internal/storage"
	"github.com/trinity-chain/trinitynode/pkg/crypto"
)

// genesisOwner is the fixed, permanently unspendable owner string of the
// root triangle every chain traces back to.
const genesisOwner = "genesis_owner"

// genesisTimestamp and genesisDifficulty are the fixed protocol constants
// the genesis block is defined with.
const (
	genesisTimestamp  = 1704067200
	genesisDifficulty = 2
)

// mineInterval is how long the miner loop pauses after a failed block
// production attempt before trying again.
const mineInterval = 2 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "trinitynoded: config:", err)
		os.Exit(1)
	}

	if err := klog.Init(cfg.LogLevel, cfg.LogJSON, ""); err != nil {
		fmt.Fprintln(os.Stderr, "trinitynoded: logger:", err)
		os.Exit(1)
	}
	logger := klog.WithComponent("main")

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.DataDir).Msg("failed to create data directory")
	}

	db, err := storage.NewBadger(filepath.Join(cfg.DataDir, "chaindata"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open block store")
	}
	defer db.Close()

	store := storage.NewFileBlockStore(db)

	beneficiary, err := loadOrCreateMinerKey(cfg.DataDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load or create miner key")
	}
	beneficiaryAddr := crypto.Address(beneficiary.PublicKey())

	pool := mempool.New()

	ch, err := chain.New(store, pool, clockshim.Real{})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load chain")
	}
	if ch.Height() == 0 && ch.TipHash().IsZero() {
		if err := ch.InitGenesis(chain.GenesisConfig{
			Owner:             genesisOwner,
			Timestamp:         genesisTimestamp,
			InitialDifficulty: genesisDifficulty,
		}); err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize genesis")
		}
		logger.Info().Msg("initialized fresh chain at genesis")
	}

	p2pNode := p2p.New(p2p.Config{
		ListenAddr: cfg.ListenAddr(),
		Seeds:      cfg.SeedPeers,
		DB:         db,
	}, ch, pool)
	if err := p2pNode.Start(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start peer listener")
	}
	defer p2pNode.Stop()

	m := miner.New(ch, pool, chain.BlockReward, beneficiaryAddr, rng.System{}, clockshim.Real{})

	ctx, cancel := context.WithCancel(context.Background())
	go runMiner(ctx, m, ch, p2pNode, logger)

	logger.Info().
		Uint64("height", ch.Height()).
		Str("tip", hashPrefix(ch.TipHash().String())).
		Str("beneficiary", hashPrefix(beneficiaryAddr)).
		Str("listen", p2pNode.Addr()).
		Msg("node started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")

	cancel()
	logger.Info().Msg("goodbye")
}

// runMiner repeatedly produces, applies, and gossips candidate blocks until
// ctx is cancelled. A failed production attempt (stale tip raced by a peer,
// nonce space momentarily exhausted) is logged and retried after
// mineInterval rather than treated as fatal.
func runMiner(ctx context.Context, m *miner.Miner, ch *chain.Chain, node *p2p.Node, logger zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		blk, err := m.ProduceBlock(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn().Err(err).Msg("block production failed, retrying")
			time.Sleep(mineInterval)
			continue
		}

		if _, err := ch.ProcessBlock(blk); err != nil {
			logger.Warn().Err(err).Uint64("height", blk.Header.Height).Msg("mined block rejected by own chain, discarding")
			continue
		}

		logger.Info().
			Uint64("height", blk.Header.Height).
			Str("hash", hashPrefix(blk.Hash().String())).
			Float64("hashrate", m.Hashrate()).
			Msg("mined block")
		node.BroadcastBlock(blk)
	}
}

func hashPrefix(s string) string {
	if len(s) > 16 {
		return s[:16] + "..."
	}
	return s
}

// loadOrCreateMinerKey loads the node's mining keypair from dataDir,
// generating and persisting a fresh one on first run. The key is stored
// unencrypted; protecting it is an operational concern of the deployment,
// not this process.
func loadOrCreateMinerKey(dataDir string) (*crypto.PrivateKey, error) {
	path := filepath.Join(dataDir, "miner.key")

	if data, err := os.ReadFile(path); err == nil {
		return crypto.PrivateKeyFromBytes(data)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read miner key: %w", err)
	}

	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate miner key: %w", err)
	}
	if err := os.WriteFile(path, key.Serialize(), 0o600); err != nil {
		return nil, fmt.Errorf("write miner key: %w", err)
	}
	return key, nil
}
