package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/defilens/wallet_lens/internal/domain"
)

// PositionReader reads a wallet's positions on one protocol. Readers
// degrade to an empty slice on upstream failure; they never error out.
type PositionReader interface {
	Read(ctx context.Context, wallet common.Address) []domain.Position
}

// WalletSnapshot is one wallet's full dashboard view.
type WalletSnapshot struct {
	Wallet      string                   `json:"wallet"`
	Positions   []domain.Position        `json:"positions"`
	Strategy    *domain.DetectedStrategy `json:"strategy,omitempty"`
	Score       int                      `json:"score"`
	Tags        []string                 `json:"tags,omitempty"`
	GeneratedAt time.Time                `json:"generated_at"`
}

// PortfolioService aggregates positions across every registered protocol
// and derives the wallet's strategy, score and tags. Protocol reads are
// independent and fan out in parallel; a protocol whose gateway is down
// contributes nothing instead of failing the pass.
type PortfolioService struct {
	readers  []PositionReader
	detector *StrategyDetector
	logger   *zap.Logger
	timeNow  func() time.Time // for testing
}

func NewPortfolioService(readers []PositionReader, detector *StrategyDetector, logger *zap.Logger) *PortfolioService {
	return &PortfolioService{
		readers:  readers,
		detector: detector,
		logger:   logger,
		timeNow:  time.Now,
	}
}

// Snapshot values the wallet across all protocols. The output position
// order follows registry order, so equal inputs yield equal output.
func (s *PortfolioService) Snapshot(ctx context.Context, wallet common.Address) *WalletSnapshot {
	results := make([][]domain.Position, len(s.readers))

	var wg sync.WaitGroup
	for i, reader := range s.readers {
		wg.Add(1)
		go func(i int, reader PositionReader) {
			defer wg.Done()
			results[i] = reader.Read(ctx, wallet)
		}(i, reader)
	}
	wg.Wait()

	var positions []domain.Position
	for _, batch := range results {
		positions = append(positions, batch...)
	}

	now := s.timeNow()
	snapshot := &WalletSnapshot{
		Wallet:      wallet.Hex(),
		Positions:   positions,
		Score:       YieldScore(positions, now),
		Tags:        StrategyTags(positions, now),
		GeneratedAt: now,
	}
	if strategy := s.detector.Detect(positions); strategy != nil {
		strategy.Tags = snapshot.Tags
		snapshot.Strategy = strategy
	}

	s.logger.Debug("wallet snapshot built",
		zap.String("wallet", snapshot.Wallet),
		zap.Int("positions", len(positions)),
		zap.Int("score", snapshot.Score))
	return snapshot
}
