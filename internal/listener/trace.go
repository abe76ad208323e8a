package listener

import (
	"crypto/rand"

	"github.com/vega-mev/liquidator/pkg/types"
)

// newTraceID mints a fresh correlation id for a PositionEvent. Kept local
// rather than shared with scout's identical helper: pulling in a
// cross-package dependency for six lines of crypto/rand wasn't judged worth
// the coupling.
func newTraceID() (types.TraceID, error) {
	var t types.TraceID
	_, err := rand.Read(t[:])
	return t, err
}
