package brain

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/vega-mev/liquidator/pkg/contractclient"
	"github.com/vega-mev/liquidator/pkg/types"
)

// ChainlinkRoute is one row of the VEGA_CHAINLINK_ADDRESSES_FILE CSV table:
// reserve,aggregator,forwarder[,answerSlot]. answerSlot is the storage slot
// on Aggregator holding its packed latestAnswer, used by simulateBucket's
// state-override path (spec.md §4.3.5); it defaults to 0, the layout of a
// flat int256-answer aggregator, when the column is omitted.
type ChainlinkRoute struct {
	Reserve    common.Address
	Aggregator common.Address
	Forwarder  common.Address
	AnswerSlot uint64
}

// LoadAddressUniverse reads a newline-separated hex address file
// (VEGA_ADDRESSES_FILE), the seed user universe Brain hydrates positions
// for at startup.
func LoadAddressUniverse(path string) ([]common.Address, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("brain: open address universe %s: %w", path, err)
	}
	defer f.Close()

	var out []common.Address
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !common.IsHexAddress(line) {
			return nil, fmt.Errorf("brain: invalid address %q in %s", line, path)
		}
		out = append(out, common.HexToAddress(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("brain: scan address universe %s: %w", path, err)
	}
	return out, nil
}

// LoadChainlinkRoutes parses VEGA_CHAINLINK_ADDRESSES_FILE
// (reserve,aggregator,forwarder[,answerSlot] CSV, header optional) into the
// routes Brain, Listener and Liquidator use for forwarder->reserve mapping
// and aggregator reads. Scout reads the same file with LoadForwarderTable.
func LoadChainlinkRoutes(path string) ([]ChainlinkRoute, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("brain: open chainlink routes %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // 3 columns, or 4 with the optional answerSlot.
	r.TrimLeadingSpace = true

	var routes []ChainlinkRoute
	first := true
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("brain: parse chainlink routes %s: %w", path, err)
		}
		if first {
			first = false
			if !common.IsHexAddress(record[0]) {
				continue // header row ("reserve,aggregator,forwarder[,answerSlot]"); skip.
			}
		}
		if len(record) != 3 && len(record) != 4 {
			return nil, fmt.Errorf("brain: malformed chainlink route row %v in %s", record, path)
		}
		if !common.IsHexAddress(record[0]) || !common.IsHexAddress(record[1]) || !common.IsHexAddress(record[2]) {
			return nil, fmt.Errorf("brain: malformed chainlink route row %v in %s", record, path)
		}
		route := ChainlinkRoute{
			Reserve:    common.HexToAddress(record[0]),
			Aggregator: common.HexToAddress(record[1]),
			Forwarder:  common.HexToAddress(record[2]),
		}
		if len(record) == 4 && strings.TrimSpace(record[3]) != "" {
			slot, err := strconv.ParseUint(strings.TrimSpace(record[3]), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("brain: malformed answerSlot %q in %s: %w", record[3], path, err)
			}
			route.AnswerSlot = slot
		}
		routes = append(routes, route)
	}
	return routes, nil
}

// poolReservesABIJSON exposes the Pool contract's reserve-discovery call.
const poolReservesABIJSON = `[{"inputs":[],"name":"getReservesList","outputs":[{"internalType":"address[]","name":"","type":"address[]"}],"stateMutability":"view","type":"function"},{"inputs":[{"internalType":"address","name":"asset","type":"address"}],"name":"getConfiguration","outputs":[{"components":[{"internalType":"uint256","name":"data","type":"uint256"}],"internalType":"struct DataTypes.ReserveConfigurationMap","name":"","type":"tuple"}],"stateMutability":"view","type":"function"}]`

// DiscoverReserves calls Pool.getReservesList and returns the bare
// underlying-asset addresses; callers fill in symbol/decimals/bonus/
// threshold/fee fields from the off-chain reserve config (same source the
// teacher loaded contract metadata from: configs/config.go's contracts
// table), since those fields require either a second ABI decode per
// reserve or an external reference table and are stable for the process
// lifetime either way.
func DiscoverReserves(ctx context.Context, pool common.Address, rpc contractclient.RPC) ([]common.Address, error) {
	parsed, err := abi.JSON(strings.NewReader(poolReservesABIJSON))
	if err != nil {
		return nil, fmt.Errorf("brain: invalid embedded pool-reserves ABI: %w", err)
	}
	client := contractclient.New(rpc, pool, parsed)
	out, err := client.Call(nil, "getReservesList")
	if err != nil {
		return nil, fmt.Errorf("brain: getReservesList: %w", err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("brain: unexpected getReservesList output shape")
	}
	addrs, ok := out[0].([]common.Address)
	if !ok {
		return nil, fmt.Errorf("brain: unexpected getReservesList output type")
	}
	return addrs, nil
}

// Bootstrap wires a fresh Cache from the discovered reserve set and
// Chainlink routing table, then hydrates it with the initial
// multicall-batched position read for every user in the seed universe
// (spec.md §4.3.1). Reserves whose onchain multicall read fails stay out of
// the reverse index rather than aborting startup — they become priceable,
// positionless reserves until the first successful read.
func Bootstrap(
	ctx context.Context,
	log *zap.Logger,
	reserves []types.Reserve,
	routes []ChainlinkRoute,
	universe []common.Address,
	reader *PositionReader,
) (*Cache, error) {
	cache := NewCache(reserves)

	byForwarder := make(map[common.Address][]common.Address)
	for _, route := range routes {
		byForwarder[route.Forwarder] = append(byForwarder[route.Forwarder], route.Reserve)
	}
	for forwarder, resv := range byForwarder {
		cache.SetForwarderReserves(forwarder, resv)
	}
	for _, route := range routes {
		cache.SetAggregator(route.Reserve, route.Aggregator, route.AnswerSlot)
	}

	reserveAddrs := make([]common.Address, len(reserves))
	for i, r := range reserves {
		reserveAddrs[i] = r.Underlying
	}

	positions, err := reader.UserPositions(ctx, universe, reserveAddrs)
	if err != nil {
		return nil, fmt.Errorf("brain: initial position hydration: %w", err)
	}

	oracle := NewPriceOracle(routes, reader.mc)
	prices, err := oracle.Refresh(ctx)
	if err != nil {
		return nil, fmt.Errorf("brain: initial price read: %w", err)
	}
	cache.SetPrices(prices)

	indices, err := reader.ReserveIndices(ctx, reserveAddrs)
	if err != nil {
		return nil, fmt.Errorf("brain: initial reserve index read: %w", err)
	}

	reserveMap := make(map[common.Address]types.Reserve, len(reserves))
	for _, r := range reserves {
		reserveMap[r.Underlying] = r
	}

	byUser := make(map[common.Address][]types.UserPosition)
	for _, p := range positions {
		cache.Upsert(p)
		byUser[p.User] = append(byUser[p.User], p)
	}

	activeCount, dormantCount := 0, 0
	for _, user := range universe {
		snap, err := ComputeHealthFactor(byUser[user], reserveMap, indices, cache.PriceTable())
		if err != nil {
			continue
		}
		isActive := snap.TotalCollateralBase != nil && snap.TotalCollateralBase.Cmp(ReportableThresholdBase) >= 0
		cache.SetActive(user, isActive)
		if isActive {
			activeCount++
		} else {
			dormantCount++
		}
	}

	log.Info("brain cache bootstrapped",
		zap.Int("reserves", len(reserves)),
		zap.Int("forwarders", len(byForwarder)),
		zap.Int("universe_size", len(universe)),
		zap.Int("positions_loaded", len(positions)),
		zap.Int("active_users", activeCount),
		zap.Int("dormant_users", dormantCount),
		zap.Int("prices_loaded", len(prices)))
	return cache, nil
}
