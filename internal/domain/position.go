package domain

import "time"

type PositionType string

const (
	PositionLending PositionType = "lending"
	PositionStaking PositionType = "staking"
	PositionLP      PositionType = "lp"
	PositionBond    PositionType = "bond"
)

// Position is a snapshot of one on-chain holding, valued in USD at read
// time. Positions are value objects: built fresh per valuation request
// and never retained across calls.
type Position struct {
	Protocol       string       `json:"protocol"`
	Asset          string       `json:"asset"`         // display label, e.g. "WETH/USDC 0.30%"
	AssetAddress   string       `json:"asset_address"` // pool or token address, lowercase
	DepositedRaw   string       `json:"deposited_raw"` // smallest-unit integer, decimal string
	DepositedUSD   float64      `json:"deposited_usd"`
	CurrentAPY     float64      `json:"current_apy"` // percent
	YieldEarned    float64      `json:"yield_earned"`
	PositionType   PositionType `json:"position_type"`
	EntryTimestamp int64        `json:"entry_timestamp"` // unix seconds, set once at creation

	// LP-only view. When present, TickLower/TickUpper/TickCurrent are set
	// together and InRange == (TickLower <= TickCurrent < TickUpper).
	LP *LPDetails `json:"lp,omitempty"`
}

// LPDetails carries the concentrated-liquidity view of an LP position.
type LPDetails struct {
	TickLower      int     `json:"tick_lower"`
	TickUpper      int     `json:"tick_upper"`
	TickCurrent    int     `json:"tick_current"`
	Token0Symbol   string  `json:"token0_symbol"`
	Token1Symbol   string  `json:"token1_symbol"`
	Token0Decimals int     `json:"token0_decimals"`
	Token1Decimals int     `json:"token1_decimals"`
	Token0Amount   float64 `json:"token0_amount"`
	Token1Amount   float64 `json:"token1_amount"`
	Token0PriceUSD float64 `json:"token0_price_usd"`
	Token1PriceUSD float64 `json:"token1_price_usd"`
	FeeToken0      float64 `json:"fee_token0"`
	FeeToken1      float64 `json:"fee_token1"`
	InRange        bool    `json:"in_range"`
}

// AgeDays returns how long the position has been open, never negative.
func (p *Position) AgeDays(now time.Time) float64 {
	age := float64(now.Unix()-p.EntryTimestamp) / 86400
	if age < 0 {
		return 0
	}
	return age
}

type Complexity string

const (
	ComplexitySimple       Complexity = "Simple"
	ComplexityIntermediate Complexity = "Intermediate"
	ComplexityAdvanced     Complexity = "Advanced"
)

// StrategyStep is one hop in a detected chain of positions.
type StrategyStep struct {
	StepNumber    int     `json:"step_number"` // 1-based, contiguous
	Protocol      string  `json:"protocol"`
	Action        string  `json:"action"`
	InputToken    string  `json:"input_token"`
	OutputToken   string  `json:"output_token"`
	APY           float64 `json:"apy"`
	PositionValue float64 `json:"position_value"` // USD
}

// DetectedStrategy is the classifier's view of a wallet's positions as
// an ordered chain of steps.
type DetectedStrategy struct {
	Name       string         `json:"name"`
	Steps      []StrategyStep `json:"steps"`
	BaseAPY    float64        `json:"base_apy"`  // step 1's APY
	BonusAPY   float64        `json:"bonus_apy"` // sum of steps 2..n
	TotalAPY   float64        `json:"total_apy"`
	TotalValue float64        `json:"total_value"`
	Complexity Complexity     `json:"complexity"`
	IsLoop     bool           `json:"is_loop"`
	Tags       []string       `json:"tags,omitempty"`
}

// LoopWallet is one leaderboard row produced by the batch scanner.
type LoopWallet struct {
	Wallet     string    `json:"wallet"`
	Strategy   string    `json:"strategy"`
	TotalAPY   float64   `json:"total_apy"`
	TotalValue float64   `json:"total_value"`
	Steps      int       `json:"steps"`
	ScannedAt  time.Time `json:"scanned_at"`
}

// ScanRun records one execution of the loop scanner.
type ScanRun struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Candidates int       `json:"candidates"`
	LoopsFound int       `json:"loops_found"`
	FromBlock  uint64    `json:"from_block"`
	ToBlock    uint64    `json:"to_block"`
}
