// Package scout implements the mempool/relay price-preemption pipeline:
// filter pending transactions against a tracked-forwarder set, decode the
// nested Chainlink report, dedup, and emit a PriceUpdate (spec.md §4.1).
package scout

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
)

// ForwarderTable is the process-wide immutable (forwarder -> aggregator)
// mapping loaded once at startup from VEGA_CHAINLINK_ADDRESSES_FILE, backed
// by a set for O(1) "is this `to` address tracked" membership checks on
// every pending transaction.
type ForwarderTable struct {
	forwarders mapset.Set[common.Address]
	aggregator map[common.Address]common.Address // forwarder -> aggregator
}

// LoadForwarderTable parses the reserve,aggregator,forwarder[,answerSlot]
// CSV file; the optional answerSlot column is not used here.
func LoadForwarderTable(path string) (*ForwarderTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("scout: open forwarder table %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // 3 columns, or 4 with the optional answerSlot.
	r.TrimLeadingSpace = true

	t := &ForwarderTable{
		forwarders: mapset.NewThreadUnsafeSet[common.Address](),
		aggregator: make(map[common.Address]common.Address),
	}
	first := true
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("scout: parse forwarder table %s: %w", path, err)
		}
		if len(record) != 3 && len(record) != 4 {
			return nil, fmt.Errorf("scout: malformed forwarder row %v in %s", record, path)
		}
		if first {
			first = false
			if !common.IsHexAddress(record[2]) {
				continue // header row
			}
		}
		if !common.IsHexAddress(record[1]) || !common.IsHexAddress(record[2]) {
			return nil, fmt.Errorf("scout: malformed forwarder row %v in %s", record, path)
		}
		forwarder := common.HexToAddress(record[2])
		t.forwarders.Add(forwarder)
		t.aggregator[forwarder] = common.HexToAddress(record[1])
	}
	return t, nil
}

// Tracked reports whether forwarder is a known forwarder origin.
func (t *ForwarderTable) Tracked(forwarder common.Address) bool {
	return t.forwarders.Contains(forwarder)
}

// Aggregator returns the aggregator a forwarder reports to.
func (t *ForwarderTable) Aggregator(forwarder common.Address) (common.Address, bool) {
	a, ok := t.aggregator[forwarder]
	return a, ok
}

// Size reports how many forwarders are tracked.
func (t *ForwarderTable) Size() int {
	return t.forwarders.Cardinality()
}
