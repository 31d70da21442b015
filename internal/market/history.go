// Package market implements the per-commodity history and signal streams
// the Auction House publishes after each tick's resolution (spec §4.4).
//
// Each stream is a bounded ring of timestamped samples, in the spirit of the
// rolling fill window a market maker uses to detect toxic flow: append on
// the hot path, evict stale entries lazily, and answer both count-windowed
// and time-windowed queries without rescanning the whole history.
package market

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// maxSamples bounds every stream's ring regardless of window size in use;
// ticks are not uniform in wall time; so a long-running house still
// needs this backstop to avoid growing streams without end.
const maxSamples = 10_000

// sample is one timestamped observation in a series.
type sample struct {
	at    time.Time
	value decimal.Decimal
}

// series is a single bounded, timestamped stream for one commodity.
type series struct {
	mu      sync.RWMutex
	samples []sample
}

func newSeries() *series {
	return &series{samples: make([]sample, 0, 128)}
}

// add appends a sample with the current wall-clock timestamp, evicting the
// oldest entry once the ring is full.
func (s *series) add(value decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.samples = append(s.samples, sample{at: time.Now(), value: value})
	if len(s.samples) > maxSamples {
		s.samples = s.samples[len(s.samples)-maxSamples:]
	}
}

// mostRecent returns the last sample, or zero if empty.
func (s *series) mostRecent() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.samples) == 0 {
		return decimal.Zero
	}
	return s.samples[len(s.samples)-1].value
}

// average returns the mean of the last n samples, or the last sample if
// n == 1. n <= 0 is treated as "all samples".
func (s *series) average(n int) decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.samples) == 0 {
		return decimal.Zero
	}
	if n <= 0 || n > len(s.samples) {
		n = len(s.samples)
	}
	window := s.samples[len(s.samples)-n:]
	return meanOf(window)
}

// tAverage returns the mean of all samples with timestamp >= now - window.
func (s *series) tAverage(window time.Duration) decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := time.Now().Add(-window)
	var matched []sample
	for i := len(s.samples) - 1; i >= 0; i-- {
		if s.samples[i].at.Before(cutoff) {
			break
		}
		matched = append(matched, s.samples[i])
	}
	if len(matched) == 0 {
		return decimal.Zero
	}
	return meanOf(matched)
}

// tTotal returns the sum of all samples with timestamp >= now - window.
func (s *series) tTotal(window time.Duration) decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := time.Now().Add(-window)
	total := decimal.Zero
	for i := len(s.samples) - 1; i >= 0; i-- {
		if s.samples[i].at.Before(cutoff) {
			break
		}
		total = total.Add(s.samples[i].value)
	}
	return total
}

func meanOf(samples []sample) decimal.Decimal {
	if len(samples) == 0 {
		return decimal.Zero
	}
	total := decimal.Zero
	for _, s := range samples {
		total = total.Add(s.value)
	}
	return total.Div(decimal.NewFromInt(int64(len(samples))))
}

// commoditySeries bundles the six parallel streams spec §3 requires for a
// single commodity.
type commoditySeries struct {
	prices     *series // volume-weighted clearing price per tick
	buyPrices  *series // volume-weighted bid price per tick
	bids       *series // demand accumulated per tick
	asks       *series // supply accumulated per tick
	trades     *series // trades_count per tick
	netSupply  *series // supply - demand per tick
}

func newCommoditySeries() *commoditySeries {
	return &commoditySeries{
		prices:    newSeries(),
		buyPrices: newSeries(),
		bids:      newSeries(),
		asks:      newSeries(),
		trades:    newSeries(),
		netSupply: newSeries(),
	}
}

// History owns every commodity's series. It is the sole appender (the
// house's tick thread); reads may come from any goroutine.
type History struct {
	mu     sync.RWMutex
	series map[string]*commoditySeries
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{series: make(map[string]*commoditySeries)}
}

// Initialise creates empty streams for a commodity if not already present.
func (h *History) Initialise(commodity string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.series[commodity]; !ok {
		h.series[commodity] = newCommoditySeries()
	}
}

// Exists reports whether a commodity's streams have been initialised.
func (h *History) Exists(commodity string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, ok := h.series[commodity]
	return ok
}

func (h *History) get(commodity string) *commoditySeries {
	h.mu.RLock()
	cs, ok := h.series[commodity]
	h.mu.RUnlock()
	if ok {
		return cs
	}

	h.Initialise(commodity)
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.series[commodity]
}

// AppendTick records one resolution's worth of samples for a commodity
// (spec §4.1 step 5). When unitsTraded is zero the price series repeat
// their previous value; otherwise the given averages are appended.
func (h *History) AppendTick(commodity string, supply, demand decimal.Decimal, tradesCount int, unitsTraded int, avgClearingPrice, avgBuyPrice decimal.Decimal) {
	cs := h.get(commodity)

	cs.asks.add(supply)
	cs.bids.add(demand)
	cs.netSupply.add(supply.Sub(demand))
	cs.trades.add(decimal.NewFromInt(int64(tradesCount)))

	if unitsTraded > 0 {
		cs.buyPrices.add(avgBuyPrice)
		cs.prices.add(avgClearingPrice)
	} else {
		cs.buyPrices.add(cs.buyPrices.mostRecent())
		cs.prices.add(cs.prices.mostRecent())
	}
}

// PriceMostRecent, TNetSupply, etc. expose the read surface the
// matcher and trader agent consume. n/t prefixes match spec §4.4 naming.

func (h *History) NPrice(commodity string, n int) decimal.Decimal { return h.get(commodity).prices.average(n) }
func (h *History) PriceMostRecent(commodity string) decimal.Decimal {
	return h.get(commodity).prices.mostRecent()
}
func (h *History) NBuyPrice(commodity string, n int) decimal.Decimal {
	return h.get(commodity).buyPrices.average(n)
}
func (h *History) NNetSupply(commodity string, n int) decimal.Decimal {
	return h.get(commodity).netSupply.average(n)
}
func (h *History) TNetSupply(commodity string, window time.Duration) decimal.Decimal {
	return h.get(commodity).netSupply.tAverage(window)
}
func (h *History) TTradeVolume(commodity string, window time.Duration) decimal.Decimal {
	return h.get(commodity).trades.tTotal(window)
}

// CountSamples reports how many price samples exist for a commodity — used
// by property tests (P7, history contiguity) to assert one sample per tick.
func (h *History) CountSamples(commodity string) int {
	cs := h.get(commodity)
	cs.prices.mu.RLock()
	defer cs.prices.mu.RUnlock()
	return len(cs.prices.samples)
}
