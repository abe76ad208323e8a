package bus

import (
	"net"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vega-mev/liquidator/pkg/types"
)

// DefaultHighWaterMark is the default bound on a Publisher's outbound queue.
const DefaultHighWaterMark = 1024

// Publisher is the write side of one bus endpoint. It accepts at most one
// live subscriber connection at a time; Publish never blocks the caller —
// once the internal queue is full the newly published envelope is dropped.
type Publisher struct {
	log      *zap.Logger
	listener net.Listener
	queue    chan types.Envelope
	dropped  atomicCounter

	mu   sync.Mutex
	conn net.Conn

	closeOnce sync.Once
	done      chan struct{}
}

// NewPublisher binds endpoint (an "ipc://" URI) and starts accepting a
// subscriber in the background.
func NewPublisher(endpoint string, hwm int, log *zap.Logger) (*Publisher, error) {
	path, err := ParseEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	_ = os.Remove(path) // stale socket from a prior crash

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	if hwm <= 0 {
		hwm = DefaultHighWaterMark
	}
	p := &Publisher{
		log:      log,
		listener: ln,
		queue:    make(chan types.Envelope, hwm),
		done:     make(chan struct{}),
	}
	go p.acceptLoop()
	go p.sendLoop()
	return p, nil
}

func (p *Publisher) acceptLoop() {
	for {
		conn, err := p.listener.Accept()
		if err != nil {
			select {
			case <-p.done:
				return
			default:
			}
			p.log.Warn("bus: accept failed", zap.Error(err))
			time.Sleep(2 * time.Second)
			continue
		}
		p.mu.Lock()
		if p.conn != nil {
			_ = p.conn.Close()
		}
		p.conn = conn
		p.mu.Unlock()
		p.log.Info("bus: subscriber connected", zap.String("addr", conn.RemoteAddr().String()))
	}
}

func (p *Publisher) sendLoop() {
	for {
		select {
		case env := <-p.queue:
			p.mu.Lock()
			conn := p.conn
			p.mu.Unlock()
			if conn == nil {
				continue // no subscriber yet: at-most-once delivery, drop silently
			}
			_ = conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
			if _, err := conn.Write(env.Encode()); err != nil {
				p.log.Warn("bus: write failed, dropping subscriber", zap.Error(err))
				p.mu.Lock()
				if p.conn == conn {
					_ = conn.Close()
					p.conn = nil
				}
				p.mu.Unlock()
			}
		case <-p.done:
			return
		}
	}
}

// Publish enqueues env without blocking. If the queue is at its high-water
// mark, env itself (the newest envelope) is dropped and the drop counter
// increments; envelopes already queued are kept.
func (p *Publisher) Publish(env types.Envelope) {
	select {
	case p.queue <- env:
	default:
		p.dropped.Add(1)
	}
}

// Dropped returns the number of envelopes dropped so far due to a full
// queue.
func (p *Publisher) Dropped() uint64 { return p.dropped.Load() }

// Close stops accepting connections and releases the socket file.
func (p *Publisher) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)
		err = p.listener.Close()
		p.mu.Lock()
		if p.conn != nil {
			_ = p.conn.Close()
		}
		p.mu.Unlock()
	})
	return err
}
