// Package brain owns the user-position cache and reverse index, and drives
// the hot (PriceUpdate) and warm (PositionEvent) recompute paths described
// in spec.md §4.3.
package brain

import (
	"math/big"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"

	"github.com/vega-mev/liquidator/pkg/types"
)

// positionKey identifies one (user, reserve) position.
type positionKey struct {
	user    common.Address
	reserve common.Address
}

// Cache is the single source of truth for UserPosition + ReserveIndex. All
// mutation goes through the single-writer lane (Upsert); reads take a
// point-in-time Snapshot that is safe to share across concurrent bucket
// workers for the duration of one simulation trace (Design Note 9: "forks
// as ephemeral state").
type Cache struct {
	mu sync.RWMutex

	positions map[positionKey]types.UserPosition
	// reverse index: reserve -> set of users using it as collateral / debt.
	collateralUsers map[common.Address]mapset.Set[common.Address]
	debtUsers       map[common.Address]mapset.Set[common.Address]

	reserves map[common.Address]types.Reserve
	// forwarderReserves maps an oracle forwarder to the reserves whose price
	// it feeds; a single forwarder may serve an entire denominated family
	// (e.g. the ETH aggregator feeds WETH, wstETH, cbETH, rETH).
	forwarderReserves map[common.Address][]common.Address

	// aggregators maps a reserve to its Chainlink aggregator address and the
	// storage slot holding latestAnswer, used to splice the speculative
	// price directly into fork state when simulateBucket has no raw tx to
	// replay (spec.md §4.3.5).
	aggregators map[common.Address]aggregatorRoute

	// prices is the last-known canonical price per reserve, read from each
	// reserve's Chainlink aggregator by PriceOracle.Refresh and kept warm
	// between refreshes — the base table every PriceTable overlay reads
	// through (spec.md §4.3.1 step 4, §4.3.4).
	prices map[common.Address]*big.Int

	// active is the set of users whose total collateral was at or above
	// ReportableThresholdBase as of their last recompute; only active users
	// are included in AffectedUsers' hot slice (spec.md §4.3.1 step 4). A
	// user absent from active is dormant: still upserted on every
	// PositionEvent, just excluded from hot-path simulation until a warm-path
	// recompute promotes them back in.
	active mapset.Set[common.Address]
}

// aggregatorRoute is a reserve's Chainlink aggregator address and the
// storage slot its packed latestAnswer lives at.
type aggregatorRoute struct {
	aggregator common.Address
	slot       uint64
}

// ReportableThresholdBase is the minimum total collateral (spec.md §4.3.1
// step 4 / §4.3.2 step 6 default: "$10") a user needs to be worth tracking
// in the hot slice or emitting as an UnderwaterUser.
var ReportableThresholdBase = new(big.Int).Mul(big.NewInt(10), types.PriceScale)

// NewCache builds an empty cache seeded with the (stable) reserve set.
func NewCache(reserves []types.Reserve) *Cache {
	c := &Cache{
		positions:         make(map[positionKey]types.UserPosition),
		collateralUsers:   make(map[common.Address]mapset.Set[common.Address]),
		debtUsers:         make(map[common.Address]mapset.Set[common.Address]),
		reserves:          make(map[common.Address]types.Reserve, len(reserves)),
		forwarderReserves: make(map[common.Address][]common.Address),
		aggregators:       make(map[common.Address]aggregatorRoute),
		prices:            make(map[common.Address]*big.Int),
		active:            mapset.NewThreadUnsafeSet[common.Address](),
	}
	for _, r := range reserves {
		c.reserves[r.Underlying] = r
		c.collateralUsers[r.Underlying] = mapset.NewThreadUnsafeSet[common.Address]()
		c.debtUsers[r.Underlying] = mapset.NewThreadUnsafeSet[common.Address]()
	}
	return c
}

// SetForwarderReserves registers the reserve set that forwarder's oracle
// feeds, loaded once at startup from the forwarder/aggregator/reserve CSV
// table (spec.md §4.3.1 step "resolve forwarder/aggregator -> reserve set").
func (c *Cache) SetForwarderReserves(forwarder common.Address, reserves []common.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.forwarderReserves[forwarder] = reserves
}

// ReservesForForwarder returns the reserves forwarder feeds. A forwarder
// with no registered mapping returns nil, meaning the caller should treat
// the price update as touching nothing cached.
func (c *Cache) ReservesForForwarder(forwarder common.Address) []common.Address {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.forwarderReserves[forwarder]
}

// SetAggregator registers reserve's Chainlink aggregator address and
// latestAnswer storage slot, loaded once at startup from the chainlink
// routing table.
func (c *Cache) SetAggregator(reserve, aggregator common.Address, slot uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aggregators[reserve] = aggregatorRoute{aggregator: aggregator, slot: slot}
}

// Aggregator returns the Chainlink aggregator address and answer slot
// registered for reserve, if any.
func (c *Cache) Aggregator(reserve common.Address) (common.Address, uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	route, ok := c.aggregators[reserve]
	return route.aggregator, route.slot, ok
}

// SetPrices merges fresh reserve prices into the canonical table, read from
// PriceOracle.Refresh. A reserve PriceOracle couldn't read this round keeps
// its previous value rather than being cleared.
func (c *Cache) SetPrices(fresh map[common.Address]*big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for reserve, price := range fresh {
		c.prices[reserve] = price
	}
}

// PriceTable returns a read-through view of the cache's canonical prices,
// the base table both recompute paths overlay speculative/refreshed values
// on top of.
func (c *Cache) PriceTable() PriceTable {
	return cachePrices{c}
}

// cachePrices adapts Cache's locked price map to the PriceTable interface.
type cachePrices struct {
	c *Cache
}

func (p cachePrices) Price(reserve common.Address) (*big.Int, bool) {
	p.c.mu.RLock()
	defer p.c.mu.RUnlock()
	price, ok := p.c.prices[reserve]
	return price, ok
}

// Reserve looks up a reserve's static attributes.
func (c *Cache) Reserve(addr common.Address) (types.Reserve, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.reserves[addr]
	return r, ok
}

// Reserves returns every tracked reserve.
func (c *Cache) Reserves() []types.Reserve {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]types.Reserve, 0, len(c.reserves))
	for _, r := range c.reserves {
		out = append(out, r)
	}
	return out
}

// Upsert applies a single (user, reserve) position mutation transactionally:
// the position map and both reverse-index sets are updated together so
// invariant I1 (spec.md §3) never observes an intermediate state. Callers
// must go through the single-writer lane (see Lane in lane.go) during
// the warm path; the hot path only ever reads via Snapshot.
func (c *Cache) Upsert(p types.UserPosition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.positions[positionKey{p.User, p.Reserve}] = p

	if cu, ok := c.collateralUsers[p.Reserve]; ok {
		if p.HasCollateral() {
			cu.Add(p.User)
		} else {
			cu.Remove(p.User)
		}
	}
	if du, ok := c.debtUsers[p.Reserve]; ok {
		if p.HasDebt() {
			du.Add(p.User)
		} else {
			du.Remove(p.User)
		}
	}
}

// Position returns the current cached position for (user, reserve).
func (c *Cache) Position(user, reserve common.Address) (types.UserPosition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.positions[positionKey{user, reserve}]
	return p, ok
}

// UserPositions returns every position held by user, across all reserves.
func (c *Cache) UserPositions(user common.Address) []types.UserPosition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []types.UserPosition
	for k, p := range c.positions {
		if k.user == user {
			out = append(out, p)
		}
	}
	return out
}

// AffectedUsers returns the union of the collateral-user and debt-user sets
// of every reserve in reserves, restricted to users currently marked active
// — the "hot slice" of spec.md §4.3.2 step 2. Dormant users are still
// upserted on every PositionEvent; they simply don't cost a hot-path
// simulation slot until SetActive promotes them back in.
func (c *Cache) AffectedUsers(reserves []common.Address) []common.Address {
	c.mu.RLock()
	defer c.mu.RUnlock()

	union := mapset.NewThreadUnsafeSet[common.Address]()
	for _, r := range reserves {
		if cu, ok := c.collateralUsers[r]; ok {
			union = union.Union(cu)
		}
		if du, ok := c.debtUsers[r]; ok {
			union = union.Union(du)
		}
	}
	return union.Intersect(c.active).ToSlice()
}

// SetActive records whether user currently holds reportable collateral
// (spec.md §4.3.1 step 4's active/dormant partition). Bootstrap and the
// warm path call this after every health-factor computation (the hot path
// does not), so a dormant user's
// growing collateral lazily promotes them into the hot slice, and a user
// who withdraws below threshold drops back out.
func (c *Cache) SetActive(user common.Address, active bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if active {
		c.active.Add(user)
	} else {
		c.active.Remove(user)
	}
}

// Snapshot is an immutable, point-in-time copy of the positions relevant to
// a set of users, handed to bucket workers so a concurrent warm-path write
// never mutates state a running trace is reading (spec.md §4.3.2
// "concurrency contract").
type Snapshot struct {
	positions map[positionKey][]types.UserPosition
}

// SnapshotFor copies every position belonging to each user in users.
func (c *Cache) SnapshotFor(users []common.Address) *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	wanted := make(map[common.Address]struct{}, len(users))
	for _, u := range users {
		wanted[u] = struct{}{}
	}
	byUser := make(map[positionKey][]types.UserPosition)
	for k, p := range c.positions {
		if _, ok := wanted[k.user]; ok {
			byUser[positionKey{user: k.user}] = append(byUser[positionKey{user: k.user}], p)
		}
	}
	return &Snapshot{positions: byUser}
}

// Positions returns the positions belonging to user captured in the
// snapshot.
func (s *Snapshot) Positions(user common.Address) []types.UserPosition {
	return s.positions[positionKey{user: user}]
}
