package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/defilens/wallet_lens/internal/domain"
	"github.com/defilens/wallet_lens/internal/infrastructure/chain"
	"github.com/defilens/wallet_lens/internal/infrastructure/logger"
	"github.com/defilens/wallet_lens/internal/infrastructure/storage"
	"github.com/defilens/wallet_lens/internal/usecase"
	"github.com/defilens/wallet_lens/internal/web"
)

type Config struct {
	Chain struct {
		HTTPURL string `yaml:"http_url"`
		WSURL   string `yaml:"ws_url"`
	} `yaml:"chain"`
	Anchors    []domain.AnchorToken    `yaml:"anchors"`
	Protocols  []domain.ProtocolConfig `yaml:"protocols"`
	WatchPools []string                `yaml:"watch_pools"`
	Storage    struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
}

func loadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}
	for i := range cfg.Protocols {
		if err := cfg.Protocols[i].Validate(); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

func main() {
	// 1. Load Config
	cfg, err := loadConfig("config/config.yaml")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Init Logger
	log, err := logger.NewLogger(cfg.Logging.Level)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// 3. Init Storage
	dbPath := cfg.Storage.Path
	if dbPath == "" {
		dbPath = "walletlens.db"
	}
	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		log.Fatal("Failed to init sqlite", zap.Error(err))
	}
	defer store.Close()

	// 4. Init Chain Gateway + Pool Watcher
	client := chain.NewClient(cfg.Chain.HTTPURL, log)
	cache := chain.NewPoolStateCache()
	gateway := chain.NewGateway(client, cache, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Chain.WSURL != "" && len(cfg.WatchPools) > 0 {
		var pools []common.Address
		for _, p := range cfg.WatchPools {
			if common.IsHexAddress(p) {
				pools = append(pools, common.HexToAddress(p))
			}
		}
		watcher := chain.NewWatcher(cfg.Chain.WSURL, pools, cache, log)
		go func() {
			if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error("Pool watcher stopped", zap.Error(err))
			}
		}()
	}

	// 5. Resolve the protocol registry into readers
	anchors := domain.NewAnchorSet(cfg.Anchors)
	var readers []usecase.PositionReader
	probes := make(map[string]web.Prober)
	for _, p := range cfg.Protocols {
		switch p.Kind {
		case domain.KindERC4626:
			vr := usecase.NewVaultReader(gateway, p, anchors, log)
			readers = append(readers, vr)
			probes[p.Name] = vr
		case domain.KindUniV3:
			readers = append(readers, usecase.NewLPReader(gateway, p, anchors, log))
		}
	}

	detector := usecase.NewStrategyDetector(cfg.Protocols)
	portfolio := usecase.NewPortfolioService(readers, detector, log)

	// 6. Init Web Server
	port := cfg.Server.Port
	if port == 0 {
		port = 8080
	}
	server := web.NewServer(port, portfolio, store, probes, log)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	// 7. Wait for Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down...")
	cancel()
	server.Shutdown(context.Background())
}
