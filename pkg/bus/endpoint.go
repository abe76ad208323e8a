// Package bus implements the point-to-point, at-most-once message transport
// vega's four processes use to hand off PriceUpdate, PositionEvent and
// UnderwaterUser envelopes (spec.md §4.5). Each endpoint is a Unix domain
// socket: one publisher, any number of frames in flight, non-blocking send
// with drop-newest-on-high-water-mark so a slow or absent consumer never
// backs up the hot path.
package bus

import (
	"fmt"
	"strings"
)

// ParseEndpoint turns an "ipc://..." URI (as used in VEGA's default
// endpoints, e.g. "ipc:///tmp/vega_inbound") into a filesystem path for
// net.Dial/net.Listen with the "unix" network.
func ParseEndpoint(uri string) (string, error) {
	const prefix = "ipc://"
	if !strings.HasPrefix(uri, prefix) {
		return "", fmt.Errorf("bus: unsupported endpoint scheme in %q, want ipc://", uri)
	}
	path := strings.TrimPrefix(uri, prefix)
	if path == "" {
		return "", fmt.Errorf("bus: empty path in endpoint %q", uri)
	}
	return path, nil
}

// Default bus endpoints, overridable via configs.Config.
const (
	DefaultInboundEndpoint  = "ipc:///tmp/vega_inbound"   // Scout, Listener -> Brain
	DefaultOutboundEndpoint = "ipc:///tmp/profito_inbound" // Brain -> Liquidator
)
