package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

const defaultListLimit = 50

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) walletParam(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	raw := r.URL.Query().Get("wallet")
	if !common.IsHexAddress(raw) {
		http.Error(w, "missing or invalid wallet parameter", http.StatusBadRequest)
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	wallet, ok := s.walletParam(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, s.portfolio.Snapshot(r.Context(), wallet))
}

func (s *Server) handleStrategy(w http.ResponseWriter, r *http.Request) {
	wallet, ok := s.walletParam(w, r)
	if !ok {
		return
	}
	snapshot := s.portfolio.Snapshot(r.Context(), wallet)
	s.writeJSON(w, map[string]interface{}{
		"wallet":   snapshot.Wallet,
		"strategy": snapshot.Strategy,
	})
}

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	wallet, ok := s.walletParam(w, r)
	if !ok {
		return
	}
	snapshot := s.portfolio.Snapshot(r.Context(), wallet)
	s.writeJSON(w, map[string]interface{}{
		"wallet": snapshot.Wallet,
		"score":  snapshot.Score,
		"tags":   snapshot.Tags,
	})
}

func (s *Server) handleLoops(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	wallets, err := s.scanRepo.ListLoopWallets(r.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to list loop wallets", zap.Error(err))
		http.Error(w, "Failed to list loop wallets", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, wallets)
}

func (s *Server) handleScans(w http.ResponseWriter, r *http.Request) {
	runs, err := s.scanRepo.ListScanRuns(r.Context(), defaultListLimit)
	if err != nil {
		s.logger.Error("Failed to list scan runs", zap.Error(err))
		http.Error(w, "Failed to list scan runs", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, runs)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := make(map[string]bool, len(s.probes))
	for name, probe := range s.probes {
		status[name] = probe.Probe(r.Context())
	}
	s.writeJSON(w, map[string]interface{}{
		"ok":        true,
		"protocols": status,
	})
}
