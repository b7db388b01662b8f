package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/defilens/wallet_lens/internal/domain"
)

const lpCheckWorkers = 8

// LoopScanner walks the vault's depositor history looking for wallets
// running a yield loop. Every failure mode degrades to a smaller or
// empty result; the scan never surfaces an error to its caller.
type LoopScanner struct {
	gateway   domain.ChainGateway
	portfolio *PortfolioService
	repo      domain.ScanRepository
	vault     domain.ProtocolConfig
	lpConfigs []domain.ProtocolConfig
	logger    *zap.Logger
	timeNow   func() time.Time // for testing
}

func NewLoopScanner(
	gateway domain.ChainGateway,
	portfolio *PortfolioService,
	repo domain.ScanRepository,
	protocols []domain.ProtocolConfig,
	logger *zap.Logger,
) *LoopScanner {
	s := &LoopScanner{
		gateway:   gateway,
		portfolio: portfolio,
		repo:      repo,
		logger:    logger,
		timeNow:   time.Now,
	}
	for _, p := range protocols {
		switch p.Kind {
		case domain.KindERC4626:
			if s.vault.Name == "" {
				s.vault = p
			}
		case domain.KindUniV3:
			s.lpConfigs = append(s.lpConfigs, p)
		}
	}
	return s
}

// Scan returns up to limit loop wallets ranked by total APY. The scan
// resumes from the persisted cursor and advances it to the chain head
// on success.
func (s *LoopScanner) Scan(ctx context.Context, limit int) []*domain.LoopWallet {
	if limit <= 0 || s.vault.Name == "" {
		return nil
	}
	started := s.timeNow()

	head, err := s.gateway.BlockNumber(ctx)
	if err != nil {
		s.logger.Warn("scan aborted: chain head unavailable", zap.Error(err))
		return nil
	}
	fromBlock := uint64(0)
	if s.repo != nil {
		if cur, err := s.repo.GetCursor(ctx, s.vault.Vault); err == nil {
			fromBlock = cur
		}
	}

	depositors, err := s.gateway.VaultDepositors(ctx, s.vault.VaultAddress(), fromBlock, head)
	if err != nil {
		s.logger.Warn("scan aborted: depositor query failed", zap.Error(err))
		return nil
	}

	candidates := s.filterLPHolders(ctx, depositors)
	// Bound the expensive per-wallet valuation at twice the requested
	// result size.
	if len(candidates) > 2*limit {
		candidates = candidates[:2*limit]
	}

	var loops []*domain.LoopWallet
	for _, wallet := range candidates {
		snapshot := s.portfolio.Snapshot(ctx, wallet)
		if snapshot.Strategy == nil || !snapshot.Strategy.IsLoop {
			continue
		}
		loops = append(loops, &domain.LoopWallet{
			Wallet:     snapshot.Wallet,
			Strategy:   snapshot.Strategy.Name,
			TotalAPY:   snapshot.Strategy.TotalAPY,
			TotalValue: snapshot.Strategy.TotalValue,
			Steps:      len(snapshot.Strategy.Steps),
			ScannedAt:  started,
		})
	}

	sort.SliceStable(loops, func(i, j int) bool {
		return loops[i].TotalAPY > loops[j].TotalAPY
	})
	if len(loops) > limit {
		loops = loops[:limit]
	}

	s.persist(ctx, loops, fromBlock, head, len(candidates), started)
	return loops
}

// filterLPHolders keeps depositors holding at least one LP NFT on any
// known LP protocol. A failed balance read counts as zero, it does not
// abort the scan.
func (s *LoopScanner) filterLPHolders(ctx context.Context, depositors []common.Address) []common.Address {
	keep := make([]bool, len(depositors))
	sem := make(chan struct{}, lpCheckWorkers)

	var wg sync.WaitGroup
	for i, wallet := range depositors {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, wallet common.Address) {
			defer wg.Done()
			defer func() { <-sem }()
			for _, lp := range s.lpConfigs {
				manager := common.HexToAddress(lp.PositionManager)
				count, err := s.gateway.PositionCount(ctx, manager, wallet)
				if err != nil {
					continue
				}
				if count > 0 {
					keep[i] = true
					return
				}
			}
		}(i, wallet)
	}
	wg.Wait()

	var out []common.Address
	for i, wallet := range depositors {
		if keep[i] {
			out = append(out, wallet)
		}
	}
	return out
}

func (s *LoopScanner) persist(ctx context.Context, loops []*domain.LoopWallet, fromBlock, toBlock uint64, candidates int, started time.Time) {
	if s.repo == nil {
		return
	}
	run := &domain.ScanRun{
		ID:         uuid.NewString(),
		StartedAt:  started,
		FinishedAt: s.timeNow(),
		Candidates: candidates,
		LoopsFound: len(loops),
		FromBlock:  fromBlock,
		ToBlock:    toBlock,
	}
	if err := s.repo.SaveScanRun(ctx, run); err != nil {
		s.logger.Error("failed to save scan run", zap.Error(err))
	}
	if len(loops) > 0 {
		if err := s.repo.SaveLoopWallets(ctx, loops); err != nil {
			s.logger.Error("failed to save loop wallets", zap.Error(err))
		}
	}
	if err := s.repo.SaveCursor(ctx, s.vault.Vault, toBlock); err != nil {
		s.logger.Error("failed to advance scan cursor", zap.Error(err))
	}
}
