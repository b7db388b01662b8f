package usecase

import (
	"fmt"
	"strings"

	"github.com/defilens/wallet_lens/internal/domain"
)

// StrategyDetector classifies a flat list of positions into an ordered
// chain of steps, recognizing the loop pattern where the vault's receipt
// token is re-deployed as one side of a liquidity pair.
//
// The classifier is deterministic and side-effect free: identical input
// always yields identical output, which lets the batch scanner use it as
// a filter predicate.
type StrategyDetector struct {
	vaultProtocol string
	receiptToken  string
	aliases       []string // lowercase receipt-token aliases
	lpProtocols   map[string]bool
}

// NewStrategyDetector builds a detector from the protocol registry. The
// first erc4626 entry is the designated vault protocol; univ3 entries
// are the LP protocols.
func NewStrategyDetector(protocols []domain.ProtocolConfig) *StrategyDetector {
	d := &StrategyDetector{lpProtocols: make(map[string]bool)}
	for _, p := range protocols {
		switch p.Kind {
		case domain.KindERC4626:
			if d.vaultProtocol == "" {
				d.vaultProtocol = p.Name
				d.receiptToken = p.ReceiptSymbol
				for _, a := range p.Aliases {
					d.aliases = append(d.aliases, strings.ToLower(a))
				}
			}
		case domain.KindUniV3:
			d.lpProtocols[p.Name] = true
		}
	}
	return d
}

// Detect returns the wallet's strategy, or nil when the input yields no
// steps.
func (d *StrategyDetector) Detect(positions []domain.Position) *domain.DetectedStrategy {
	if len(positions) == 0 {
		return nil
	}

	var vaultPos []domain.Position
	var loopLPs []domain.Position
	var otherLPs []domain.Position
	var rest []domain.Position

	for _, p := range positions {
		switch {
		case p.Protocol == d.vaultProtocol:
			vaultPos = append(vaultPos, p)
		case d.lpProtocols[p.Protocol] || p.PositionType == domain.PositionLP:
			if d.matchesReceipt(p.Asset) {
				loopLPs = append(loopLPs, p)
			} else {
				otherLPs = append(otherLPs, p)
			}
		default:
			rest = append(rest, p)
		}
	}

	isLoop := len(vaultPos) > 0 && len(loopLPs) > 0

	var steps []domain.StrategyStep
	for _, p := range vaultPos {
		steps = append(steps, domain.StrategyStep{
			Protocol:      p.Protocol,
			Action:        fmt.Sprintf("Deposit %s", p.Asset),
			InputToken:    p.Asset,
			OutputToken:   d.receiptToken,
			APY:           p.CurrentAPY,
			PositionValue: p.DepositedUSD,
		})
	}
	for _, p := range loopLPs {
		steps = append(steps, domain.StrategyStep{
			Protocol:      p.Protocol,
			Action:        fmt.Sprintf("Provide %s liquidity", p.Asset),
			InputToken:    d.receiptToken,
			OutputToken:   p.Asset,
			APY:           p.CurrentAPY,
			PositionValue: p.DepositedUSD,
		})
	}
	for _, p := range otherLPs {
		steps = append(steps, domain.StrategyStep{
			Protocol:      p.Protocol,
			Action:        fmt.Sprintf("Provide %s liquidity", p.Asset),
			InputToken:    p.Asset,
			OutputToken:   p.Asset,
			APY:           p.CurrentAPY,
			PositionValue: p.DepositedUSD,
		})
	}
	for _, p := range rest {
		steps = append(steps, domain.StrategyStep{
			Protocol:      p.Protocol,
			Action:        fmt.Sprintf("Hold %s", p.Asset),
			InputToken:    p.Asset,
			OutputToken:   p.Asset,
			APY:           p.CurrentAPY,
			PositionValue: p.DepositedUSD,
		})
	}
	if len(steps) == 0 {
		return nil
	}

	// Step numbers are reassigned contiguously regardless of source order.
	totalValue := 0.0
	bonusAPY := 0.0
	for i := range steps {
		steps[i].StepNumber = i + 1
		totalValue += steps[i].PositionValue
		if i > 0 {
			bonusAPY += steps[i].APY
		}
	}
	baseAPY := steps[0].APY

	return &domain.DetectedStrategy{
		Name:       d.name(steps, loopLPs, isLoop),
		Steps:      steps,
		BaseAPY:    baseAPY,
		BonusAPY:   bonusAPY,
		TotalAPY:   baseAPY + bonusAPY,
		TotalValue: totalValue,
		Complexity: complexityFor(len(steps)),
		IsLoop:     isLoop,
	}
}

func (d *StrategyDetector) matchesReceipt(asset string) bool {
	lower := strings.ToLower(asset)
	for _, alias := range d.aliases {
		if alias != "" && strings.Contains(lower, alias) {
			return true
		}
	}
	return false
}

func (d *StrategyDetector) name(steps []domain.StrategyStep, loopLPs []domain.Position, isLoop bool) string {
	if isLoop {
		chain := []string{d.vaultProtocol}
		seen := map[string]bool{d.vaultProtocol: true}
		for _, p := range loopLPs {
			if !seen[p.Protocol] {
				chain = append(chain, p.Protocol)
				seen[p.Protocol] = true
			}
		}
		return "Yield Loop: " + strings.Join(chain, " -> ")
	}
	if len(steps) > 1 {
		var names []string
		seen := map[string]bool{}
		for _, s := range steps {
			if !seen[s.Protocol] {
				names = append(names, s.Protocol)
				seen[s.Protocol] = true
			}
		}
		return "Multi-Protocol: " + strings.Join(names, ", ")
	}
	return steps[0].Protocol + " Vault"
}

func complexityFor(stepCount int) domain.Complexity {
	switch {
	case stepCount >= 3:
		return domain.ComplexityAdvanced
	case stepCount == 2:
		return domain.ComplexityIntermediate
	default:
		return domain.ComplexitySimple
	}
}
