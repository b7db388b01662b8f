package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/defilens/wallet_lens/internal/domain"
	"github.com/defilens/wallet_lens/internal/infrastructure/chain"
	"github.com/defilens/wallet_lens/internal/infrastructure/logger"
	"github.com/defilens/wallet_lens/internal/infrastructure/storage"
	"github.com/defilens/wallet_lens/internal/usecase"
)

type Config struct {
	Chain struct {
		HTTPURL string `yaml:"http_url"`
	} `yaml:"chain"`
	Anchors   []domain.AnchorToken    `yaml:"anchors"`
	Protocols []domain.ProtocolConfig `yaml:"protocols"`
	Storage   struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`
	Scanner struct {
		MaxResults int    `yaml:"max_results"`
		LogPath    string `yaml:"log_path"`
	} `yaml:"scanner"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

func loadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
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
	configPath := flag.String("config", "config/config.yaml", "config file path")
	limit := flag.Int("limit", 0, "max loop wallets to keep (overrides config)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logPath := cfg.Scanner.LogPath
	if logPath == "" {
		logPath = "loopscan.log"
	}
	log, err := logger.NewFileLogger(logPath, cfg.Logging.Level)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	dbPath := cfg.Storage.Path
	if dbPath == "" {
		dbPath = "walletlens.db"
	}
	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		log.Fatal("Failed to init sqlite", zap.Error(err))
	}
	defer store.Close()

	client := chain.NewClient(cfg.Chain.HTTPURL, log)
	gateway := chain.NewGateway(client, nil, log)

	anchors := domain.NewAnchorSet(cfg.Anchors)
	var readers []usecase.PositionReader
	for _, p := range cfg.Protocols {
		switch p.Kind {
		case domain.KindERC4626:
			readers = append(readers, usecase.NewVaultReader(gateway, p, anchors, log))
		case domain.KindUniV3:
			readers = append(readers, usecase.NewLPReader(gateway, p, anchors, log))
		}
	}
	detector := usecase.NewStrategyDetector(cfg.Protocols)
	portfolio := usecase.NewPortfolioService(readers, detector, log)
	scanner := usecase.NewLoopScanner(gateway, portfolio, store, cfg.Protocols, log)

	n := cfg.Scanner.MaxResults
	if *limit > 0 {
		n = *limit
	}
	if n <= 0 {
		n = 20
	}

	loops := scanner.Scan(context.Background(), n)
	log.Info("Scan complete", zap.Int("loops", len(loops)))

	for _, l := range loops {
		fmt.Printf("%s  %-40s  APY %.2f%%  $%.2f  (%d steps)\n",
			l.Wallet, l.Strategy, l.TotalAPY, l.TotalValue, l.Steps)
	}
}
