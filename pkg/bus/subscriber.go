package bus

import (
	"errors"
	"io"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/vega-mev/liquidator/pkg/types"
)

// ReconnectDelay is the fixed backoff between dial attempts (spec.md §4.1:
// "Reconnection is automatic with a fixed 2-second delay; infinite retry").
const ReconnectDelay = 2 * time.Second

// Subscriber is the read side of one bus endpoint. It reconnects forever on
// disconnect and delivers decoded envelopes on Envelopes().
type Subscriber struct {
	path string
	log  *zap.Logger
	out  chan types.Envelope
	done chan struct{}
}

// NewSubscriber dials endpoint (an "ipc://" URI), retrying until it
// connects, and starts delivering decoded envelopes.
func NewSubscriber(endpoint string, log *zap.Logger) (*Subscriber, error) {
	path, err := ParseEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	s := &Subscriber{
		path: path,
		log:  log,
		out:  make(chan types.Envelope, DefaultHighWaterMark),
		done: make(chan struct{}),
	}
	go s.run()
	return s, nil
}

// Envelopes returns the channel decoded envelopes are delivered on.
func (s *Subscriber) Envelopes() <-chan types.Envelope { return s.out }

func (s *Subscriber) run() {
	for {
		select {
		case <-s.done:
			return
		default:
		}
		conn, err := net.Dial("unix", s.path)
		if err != nil {
			s.log.Debug("bus: dial failed, retrying", zap.String("path", s.path), zap.Error(err))
			time.Sleep(ReconnectDelay)
			continue
		}
		s.readLoop(conn)
		time.Sleep(ReconnectDelay)
	}
}

func (s *Subscriber) readLoop(conn net.Conn) {
	defer conn.Close()
	for {
		select {
		case <-s.done:
			return
		default:
		}
		env, err := types.DecodeEnvelope(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.log.Warn("bus: decode failed", zap.Error(err))
			}
			return
		}
		select {
		case s.out <- env:
		default:
			// consumer too slow: drop oldest, never block the socket read.
			select {
			case <-s.out:
			default:
			}
			select {
			case s.out <- env:
			default:
			}
		}
	}
}

// Close stops the subscriber and releases its connection.
func (s *Subscriber) Close() error {
	close(s.done)
	return nil
}
