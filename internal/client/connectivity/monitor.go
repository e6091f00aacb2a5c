// Package connectivity tracks whether the server is reachable by pinging
// it on a fixed interval.
package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/draftkeeper/internal/logging"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Monitor struct {
	pinger   Pinger
	interval time.Duration
	timeout  time.Duration
	logger   logging.Logger

	mu     sync.Mutex
	online bool
	subs   map[int]chan bool
	nextID int
}

func NewMonitor(p Pinger, interval time.Duration, logger logging.Logger) *Monitor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Monitor{
		pinger:   p,
		interval: interval,
		timeout:  3 * time.Second,
		logger:   logger.With("module", "connectivity"),
		subs:     make(map[int]chan bool),
	}
}

// Run probes once immediately and then on every tick until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	m.Check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Check(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Check pings the server once and publishes a transition if the status
// changed.
func (m *Monitor) Check(ctx context.Context) bool {
	pctx, cancel := context.WithTimeout(ctx, m.timeout)
	err := m.pinger.Ping(pctx)
	cancel()

	m.set(ctx, err == nil)
	return err == nil
}

func (m *Monitor) set(ctx context.Context, online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.online == online {
		return
	}
	m.online = online
	if online {
		m.logger.Info(ctx, "switched to online mode")
	} else {
		m.logger.Info(ctx, "switched to offline mode")
	}
	for _, ch := range m.subs {
		select {
		case ch <- online:
		default:
			// a slow subscriber only needs the latest state
			select {
			case <-ch:
			default:
			}
			ch <- online
		}
	}
}

func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Subscribe returns a channel receiving every online/offline transition.
func (m *Monitor) Subscribe() (<-chan bool, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	ch := make(chan bool, 1)
	m.subs[id] = ch
	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}
