package clock

import (
	"sync"
	"time"
)

// Mock is a Clock implementation for testing. Time only moves when the test
// calls Advance or Set; tickers created from the mock fire as simulated time
// passes their deadlines.
type Mock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*mockTicker
}

// NewMock creates a Mock clock starting at the given time.
func NewMock(start time.Time) *Mock {
	return &Mock{now: start}
}

// Now implements Clock.
func (m *Mock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// NewTicker implements Clock. Ticks are delivered during Advance.
func (m *Mock) NewTicker(d time.Duration) Ticker {
	m.mu.Lock()
	defer m.mu.Unlock()

	mt := &mockTicker{
		// Buffered so that Advance never blocks when nobody is draining.
		ch:       make(chan time.Time, 64),
		interval: d,
		next:     m.now.Add(d),
		clk:      m,
	}
	m.tickers = append(m.tickers, mt)
	return mt
}

// Advance moves the simulated time forward by d, delivering any ticks that
// become due along the way, in order.
func (m *Mock) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()
	m.Set(target)
}

// Set jumps the simulated time to t. Moving backwards only shifts Now; no
// ticks are rewound.
func (m *Mock) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for {
		var earliest *mockTicker
		for _, mt := range m.tickers {
			if mt.stopped {
				continue
			}
			if !mt.next.After(t) && (earliest == nil || mt.next.Before(earliest.next)) {
				earliest = mt
			}
		}
		if earliest == nil {
			break
		}

		m.now = earliest.next
		earliest.next = earliest.next.Add(earliest.interval)
		select {
		case earliest.ch <- m.now:
		default:
		}
	}

	m.now = t
}

type mockTicker struct {
	ch       chan time.Time
	interval time.Duration
	next     time.Time
	stopped  bool
	clk      *Mock
}

func (mt *mockTicker) C() <-chan time.Time {
	return mt.ch
}

func (mt *mockTicker) Reset(d time.Duration) {
	mt.clk.mu.Lock()
	defer mt.clk.mu.Unlock()
	mt.interval = d
	mt.next = mt.clk.now.Add(d)
	mt.stopped = false
}

func (mt *mockTicker) Stop() {
	mt.clk.mu.Lock()
	defer mt.clk.mu.Unlock()
	mt.stopped = true
}

// Ensure Mock implements Clock at compile time.
var _ Clock = (*Mock)(nil)
