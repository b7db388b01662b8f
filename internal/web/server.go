package web

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/defilens/wallet_lens/internal/domain"
	"github.com/defilens/wallet_lens/internal/usecase"
)

// Prober is a connectivity check against one protocol's contract.
type Prober interface {
	Probe(ctx context.Context) bool
}

type Server struct {
	router    *http.ServeMux
	server    *http.Server
	portfolio *usecase.PortfolioService
	scanRepo  domain.ScanRepository
	probes    map[string]Prober
	logger    *zap.Logger
}

func NewServer(
	port int,
	portfolio *usecase.PortfolioService,
	scanRepo domain.ScanRepository,
	probes map[string]Prober,
	logger *zap.Logger,
) *Server {
	s := &Server{
		router:    http.NewServeMux(),
		portfolio: portfolio,
		scanRepo:  scanRepo,
		probes:    probes,
		logger:    logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.router,
	}
	return s
}

func (s *Server) routes() {
	// Wallet dashboard data
	s.router.HandleFunc("GET /api/portfolio", s.handlePortfolio)
	s.router.HandleFunc("GET /api/strategy", s.handleStrategy)
	s.router.HandleFunc("GET /api/score", s.handleScore)

	// Loop leaderboard
	s.router.HandleFunc("GET /api/loops", s.handleLoops)
	s.router.HandleFunc("GET /api/scans", s.handleScans)

	// Status
	s.router.HandleFunc("GET /status", s.handleStatus)
}

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
