package usecase

import (
	"math"
	"time"

	"github.com/defilens/wallet_lens/internal/domain"
)

// Yield score weights. The four factors are independently clamped to
// [0,1] before weighting, so the sum stays in [0,100].
const (
	weightAPY            = 35.0
	weightDiversity      = 25.0
	weightConsistency    = 20.0
	weightEfficiency     = 20.0
	apyFullScale         = 25.0  // weighted APY at which the factor saturates
	diversityFullScale   = 5.0   // distinct protocols
	consistencyFullScale = 90.0  // mean age, days
	efficiencyFullScale  = 0.10  // lifetime yield / deposited
)

// YieldScore aggregates a wallet's valued positions into a 0-100 score.
// An empty set, or one with nothing deposited, scores 0.
func YieldScore(positions []domain.Position, now time.Time) int {
	factors := ScoreFactors(positions, now)
	raw := weightAPY*factors.APY +
		weightDiversity*factors.Diversification +
		weightConsistency*factors.Consistency +
		weightEfficiency*factors.CapitalEfficiency
	return int(math.Round(clamp01(raw/100) * 100))
}

// Factors holds the four normalized score components, each in [0,1].
type Factors struct {
	APY               float64
	Diversification   float64
	Consistency       float64
	CapitalEfficiency float64
}

// ScoreFactors computes the normalized components so each can be tested
// in isolation.
func ScoreFactors(positions []domain.Position, now time.Time) Factors {
	totalDeposited := 0.0
	totalYield := 0.0
	weightedAPY := 0.0
	ageSum := 0.0
	protocols := make(map[string]bool)

	for i := range positions {
		p := &positions[i]
		totalDeposited += p.DepositedUSD
		totalYield += p.YieldEarned
		weightedAPY += p.CurrentAPY * p.DepositedUSD
		ageSum += p.AgeDays(now)
		protocols[p.Protocol] = true
	}

	if totalDeposited == 0 || len(positions) == 0 {
		return Factors{}
	}
	weightedAPY /= totalDeposited
	meanAge := ageSum / float64(len(positions))

	return Factors{
		APY:               clamp01(weightedAPY / apyFullScale),
		Diversification:   clamp01(float64(len(protocols)) / diversityFullScale),
		Consistency:       clamp01(meanAge / consistencyFullScale),
		CapitalEfficiency: clamp01((totalYield / totalDeposited) / efficiencyFullScale),
	}
}

// Tag thresholds, checked in fixed priority order; at most four emitted.
const maxTags = 4

// StrategyTags labels a wallet's behavior from its position mix.
func StrategyTags(positions []domain.Position, now time.Time) []string {
	if len(positions) == 0 {
		return nil
	}

	protocols := make(map[string]bool)
	types := make(map[domain.PositionType]bool)
	apySum := 0.0
	ageSum := 0.0
	for i := range positions {
		p := &positions[i]
		protocols[p.Protocol] = true
		types[p.PositionType] = true
		apySum += p.CurrentAPY
		ageSum += p.AgeDays(now)
	}
	meanAPY := apySum / float64(len(positions))
	meanAge := ageSum / float64(len(positions))

	var tags []string
	add := func(tag string, when bool) {
		if when && len(tags) < maxTags {
			tags = append(tags, tag)
		}
	}

	add("Diversified", len(protocols) >= 3)
	add("Liquidity Provider", types[domain.PositionLP])
	add("Lender", types[domain.PositionLending])
	add("Staker", types[domain.PositionStaking])
	add("High Yield", meanAPY > 15)
	add("Conservative", meanAPY < 5)
	add("Long-term Holder", meanAge > 180)
	return tags
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
