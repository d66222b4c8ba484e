package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/varwatch/varwatch/internal/metrics"
	"github.com/varwatch/varwatch/pkg/types"
)

// State is the process-wide transport state.
type State int32

const (
	Disconnected State = iota
	Connected
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// DefaultHealthInterval is the period between handshake probes while
// connected.
const DefaultHealthInterval = 5 * time.Second

// Publisher is the wire-level message-queue client abstraction.
// Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(topic string, body []byte) error
	Stop()
}

// Options configures a Manager.
type Options struct {
	// Topic receives report payloads.
	Topic string

	// ShakeTopic and ShakeMsg define the liveness handshake probe.
	ShakeTopic string
	ShakeMsg   string

	// WrongLimit is the consecutive healthcheck failures tolerated
	// before the state drops to Disconnected.
	WrongLimit int

	// PublishTimeout bounds the wait for an outbound slot.
	PublishTimeout time.Duration

	// HealthInterval is the handshake probe period; zero means
	// DefaultHealthInterval.
	HealthInterval time.Duration

	// NewPublisher opens the wire client. Nil disables the network sink
	// entirely (file-only operation).
	NewPublisher func() (Publisher, error)

	// File is the fallback sink. Nil disables it; reports that cannot be
	// published are then dropped with a logged error.
	File *FileSink
}

// Manager routes reports to the network or file sink according to the
// connection state, and runs the healthcheck/reconnect loop.
type Manager struct {
	opts  Options
	state atomic.Int32

	mu  sync.Mutex // guards pub
	pub Publisher

	// slot serializes outbound publishes; acquiring it is the bounded
	// wait that implements delivery backpressure.
	slot chan struct{}

	// wake nudges the run loop when the delivery path detects a failure.
	wake chan struct{}
}

// NewManager creates a Manager in the Disconnected state.
func NewManager(opts Options) *Manager {
	if opts.HealthInterval <= 0 {
		opts.HealthInterval = DefaultHealthInterval
	}
	m := &Manager{
		opts: opts,
		slot: make(chan struct{}, 1),
		wake: make(chan struct{}, 1),
	}
	m.setState(Disconnected)
	return m
}

// State returns the current transport state.
func (m *Manager) State() State {
	return State(m.state.Load())
}

func (m *Manager) setState(s State) {
	m.state.Store(int32(s))
	metrics.TransportState.Set(float64(s))
}

// Run is the healthcheck and reconnect authority. It blocks until ctx is
// cancelled. Exactly one Run goroutine may exist per Manager.
func (m *Manager) Run(ctx context.Context) {
	defer m.closePublisher()

	if m.opts.NewPublisher == nil {
		// File-only operation: stay Disconnected so Deliver always
		// routes to the file sink.
		<-ctx.Done()
		return
	}

	bo := newBackoff()
	wrong := 0

	for {
		if ctx.Err() != nil {
			return
		}

		if m.State() != Connected {
			m.setState(Reconnecting)
			if err := m.connect(); err != nil {
				m.setState(Disconnected)
				wait := bo.next()
				slog.Warn("transport: handshake failed, will retry",
					"err", err, "retry_in", wait)
				select {
				case <-ctx.Done():
					return
				case <-time.After(wait):
				}
				continue
			}
			bo.reset()
			wrong = 0
			m.setState(Connected)
			metrics.Reconnects.Inc()
			slog.Info("transport: connected", "topic", m.opts.Topic)
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-m.wake:
			// Delivery path saw a publish failure and already demoted
			// the state; loop around into reconnect.
		case <-time.After(m.opts.HealthInterval):
			if err := m.handshake(); err != nil {
				wrong++
				slog.Warn("transport: healthcheck failed",
					"consecutive", wrong, "limit", m.opts.WrongLimit, "err", err)
				if wrong >= m.opts.WrongLimit {
					m.setState(Disconnected)
				}
			} else {
				wrong = 0
			}
		}
	}
}

// connect ensures a publisher exists and performs the handshake exchange.
func (m *Manager) connect() error {
	m.mu.Lock()
	if m.pub == nil {
		pub, err := m.opts.NewPublisher()
		if err != nil {
			m.mu.Unlock()
			return err
		}
		m.pub = pub
	}
	m.mu.Unlock()
	return m.handshake()
}

// handshake publishes the probe message and treats acceptance as liveness.
func (m *Manager) handshake() error {
	return m.publish(m.opts.ShakeTopic, []byte(m.opts.ShakeMsg))
}

func (m *Manager) publish(topic string, body []byte) error {
	m.mu.Lock()
	pub := m.pub
	m.mu.Unlock()
	if pub == nil {
		return errNoPublisher
	}
	return pub.Publish(topic, body)
}

func (m *Manager) closePublisher() {
	m.mu.Lock()
	if m.pub != nil {
		m.pub.Stop()
		m.pub = nil
	}
	m.mu.Unlock()
}

// Deliver routes one report to a sink. It never returns an error to the
// pipeline: failures demote the transport state and fall back to the
// file sink, or are logged and counted when no sink remains.
func (m *Manager) Deliver(rep types.Report) {
	body, err := json.Marshal(rep)
	if err != nil {
		metrics.ReportsDiscarded.Inc()
		slog.Error("transport: report marshal failed", "index", rep.Index, "err", err)
		return
	}

	if m.State() == Connected {
		select {
		case m.slot <- struct{}{}:
			err := m.publish(m.opts.Topic, body)
			<-m.slot
			if err == nil {
				metrics.ReportsPublished.Inc()
				slog.Debug("transport: report published",
					"index", rep.Index, "records", len(rep.Records), "bytes", len(body))
				return
			}
			slog.Warn("transport: publish failed, falling back",
				"index", rep.Index, "err", err)
			m.setState(Disconnected)
			m.nudge()

		case <-time.After(m.opts.PublishTimeout):
			slog.Warn("transport: outbound saturated, routing to file",
				"index", rep.Index, "waited", m.opts.PublishTimeout)
		}
	}

	m.toFile(rep, body)
}

// toFile appends the serialized report to the fallback sink, or drops it
// with a logged error when file mode is off.
func (m *Manager) toFile(rep types.Report, body []byte) {
	if m.opts.File == nil {
		metrics.ReportsDiscarded.Inc()
		slog.Error("transport: no sink available, report dropped",
			"index", rep.Index, "records", len(rep.Records))
		return
	}
	if err := m.opts.File.Append(body); err != nil {
		metrics.ReportsDiscarded.Inc()
		slog.Error("transport: file sink append failed",
			"index", rep.Index, "err", err)
		return
	}
	metrics.ReportsFiled.Inc()
	slog.Debug("transport: report filed",
		"index", rep.Index, "records", len(rep.Records))
}

func (m *Manager) nudge() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}
