// Package configs loads the non-secret YAML configuration shared by every
// vega process, following the teacher's LoadConfig pattern. Secrets and
// address-list file paths come from environment variables (spec.md §6),
// never from this file.
package configs

import (
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"github.com/vega-mev/liquidator/pkg/types"
)

// Config is the parsed shape of config.yml.
type Config struct {
	RPC        string                  `yaml:"rpc"`
	ForkRPCs   []string                `yaml:"forkRpcs"`
	Bus        BusYAMLData             `yaml:"bus"`
	Brain      BrainYAMLData           `yaml:"brain"`
	Liquidator LiquidatorYAMLData      `yaml:"liquidator"`
	Contracts  map[string]ContractYAML `yaml:"contracts"`
	Reserves   []ReserveYAML           `yaml:"reserves"`
}

// ContractYAML is one address+ABI-path pair, e.g. the Pool or Multicall3
// contract.
type ContractYAML struct {
	Address string `yaml:"address"`
	ABI     string `yaml:"abi"`
}

// ReserveYAML is the off-chain half of a reserve's static configuration:
// the bonus/threshold/fee/premium fields the Pool contract exposes only
// packed into a bitmap (DiscoverReserves reads the address list onchain;
// these stable, rarely-changing parameters are easier to hold in config
// than to unpack from getConfiguration's bitfield at every startup).
type ReserveYAML struct {
	Underlying            string `yaml:"underlying"`
	Symbol                string `yaml:"symbol"`
	Decimals              uint8  `yaml:"decimals"`
	LiquidationBonusBps   uint32 `yaml:"liquidationBonusBps"`
	LiquidationThreshold  uint32 `yaml:"liquidationThresholdBps"`
	LiquidationProtocolFeeBps uint32 `yaml:"liquidationProtocolFeeBps"`
	FlashLoanPremiumBps   uint32 `yaml:"flashLoanPremiumBps"`
}

// ReserveList converts the YAML reserve table into pkg/types.Reserve values.
func (c *Config) ReserveList() ([]types.Reserve, error) {
	out := make([]types.Reserve, 0, len(c.Reserves))
	for _, r := range c.Reserves {
		if !common.IsHexAddress(r.Underlying) {
			return nil, fmt.Errorf("configs: invalid reserve address %q", r.Underlying)
		}
		out = append(out, types.Reserve{
			Underlying:                common.HexToAddress(r.Underlying),
			Symbol:                    r.Symbol,
			Decimals:                  r.Decimals,
			LiquidationBonusBps:       r.LiquidationBonusBps,
			LiquidationThreshold:      r.LiquidationThreshold,
			LiquidationProtocolFeeBps: r.LiquidationProtocolFeeBps,
			FlashLoanPremiumBps:       r.FlashLoanPremiumBps,
		})
	}
	return out, nil
}

// BusYAMLData overrides the default ipc:// endpoints (pkg/bus.Default*).
type BusYAMLData struct {
	InboundEndpoint  string `yaml:"inboundEndpoint"`
	OutboundEndpoint string `yaml:"outboundEndpoint"`
	QueueDepth       int    `yaml:"queueDepth"`
}

// BrainYAMLData configures Brain's bucketing and simulation knobs.
type BrainYAMLData struct {
	Buckets             int     `yaml:"buckets"`
	SimulationTimeoutSec int    `yaml:"simulationTimeoutSec"`
	ForkAcquireTimeoutMs int    `yaml:"forkAcquireTimeoutMs"`
	DustThresholdBase    string `yaml:"dustThresholdBase"` // base units, scale 1e8
}

// LiquidatorYAMLData configures profitability and flash-loan preferences.
type LiquidatorYAMLData struct {
	MinProfitThresholdUSD float64  `yaml:"minProfitThresholdUsd"`
	CloseFactor           float64  `yaml:"closeFactor"`
	BribeRatio            float64  `yaml:"bribeRatio"`
	RelayURL              string   `yaml:"relayUrl"`
	FlashLoanPreference   []string `yaml:"flashLoanPreference"`
}

// LoadConfig reads and parses path into a Config.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("configs: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("configs: parse %s: %w", path, err)
	}
	return &cfg, nil
}

// SimulationTimeout returns the Brain simulation deadline as a
// time.Duration, defaulting to 2s when unset (spec.md §4.3.3).
func (c *Config) SimulationTimeout() time.Duration {
	if c.Brain.SimulationTimeoutSec <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.Brain.SimulationTimeoutSec) * time.Second
}

// ForkAcquireTimeout returns the fork-pool acquire deadline, defaulting to
// 200ms (spec.md §4.3.3).
func (c *Config) ForkAcquireTimeout() time.Duration {
	if c.Brain.ForkAcquireTimeoutMs <= 0 {
		return 200 * time.Millisecond
	}
	return time.Duration(c.Brain.ForkAcquireTimeoutMs) * time.Millisecond
}
