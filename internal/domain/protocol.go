package domain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

type ProtocolKind string

const (
	KindERC4626 ProtocolKind = "erc4626"
	KindUniV3   ProtocolKind = "univ3"
)

// ProtocolConfig is the runtime protocol registry entry. It is a tagged
// union: Kind selects which field group is meaningful, and the config is
// resolved once at load time into the matching reader.
type ProtocolConfig struct {
	Name string       `yaml:"name"`
	Kind ProtocolKind `yaml:"kind"`

	// erc4626
	Vault         string   `yaml:"vault,omitempty"`
	Underlying    string   `yaml:"underlying,omitempty"`
	ReceiptSymbol string   `yaml:"receipt_symbol,omitempty"`
	Aliases       []string `yaml:"aliases,omitempty"` // receipt-token aliases for loop matching
	APYEstimate   float64  `yaml:"apy_estimate,omitempty"`

	// univ3
	PositionManager string             `yaml:"position_manager,omitempty"`
	Factory         string             `yaml:"factory,omitempty"`
	FeeAPY          map[uint32]float64 `yaml:"fee_apy,omitempty"` // fee tier -> APY percent
	DefaultAPY      float64            `yaml:"default_apy,omitempty"`
}

// Validate checks that the fields required by the entry's kind are set.
func (c *ProtocolConfig) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("protocol config: name is empty")
	}
	switch c.Kind {
	case KindERC4626:
		if !common.IsHexAddress(c.Vault) {
			return fmt.Errorf("protocol %s: vault address %q is invalid", c.Name, c.Vault)
		}
		if !common.IsHexAddress(c.Underlying) {
			return fmt.Errorf("protocol %s: underlying address %q is invalid", c.Name, c.Underlying)
		}
	case KindUniV3:
		if !common.IsHexAddress(c.PositionManager) {
			return fmt.Errorf("protocol %s: position_manager address %q is invalid", c.Name, c.PositionManager)
		}
		if !common.IsHexAddress(c.Factory) {
			return fmt.Errorf("protocol %s: factory address %q is invalid", c.Name, c.Factory)
		}
	default:
		return fmt.Errorf("protocol %s: unknown kind %q", c.Name, c.Kind)
	}
	return nil
}

// VaultAddress returns the parsed vault address for erc4626 entries.
func (c *ProtocolConfig) VaultAddress() common.Address {
	return common.HexToAddress(c.Vault)
}

// AnchorToken is a token whose USD price is known externally. USD prices
// for everything else are derived from an anchor through pool ratios;
// with no anchor in a pair, USD values stay 0 rather than being guessed.
type AnchorToken struct {
	Address  string  `yaml:"address"`
	Symbol   string  `yaml:"symbol"`
	PriceUSD float64 `yaml:"price_usd"`
}

// AnchorSet indexes anchors by lowercase token address.
type AnchorSet map[string]AnchorToken

// NewAnchorSet builds the address index, dropping invalid addresses.
func NewAnchorSet(anchors []AnchorToken) AnchorSet {
	set := make(AnchorSet, len(anchors))
	for _, a := range anchors {
		if !common.IsHexAddress(a.Address) {
			continue
		}
		set[strings.ToLower(common.HexToAddress(a.Address).Hex())] = a
	}
	return set
}

// Lookup returns the anchor for a token address, if registered.
func (s AnchorSet) Lookup(address common.Address) (AnchorToken, bool) {
	a, ok := s[strings.ToLower(address.Hex())]
	return a, ok
}
