package auctionhouse

import (
	"sync"

	"auctionhouse/pkg/types"
)

// Demographics aggregates population counts and lifetime statistics across
// every registered trader, adapted from the teacher's risk.Manager
// (internal/risk/manager.go): there, a single mutex-guarded struct
// accumulates running counters fed by fill events; here the same shape
// accumulates role counts fed by registration and shutdown events instead of
// PnL fed by fills.
type Demographics struct {
	mu            sync.RWMutex
	roleCounts    map[types.Role]int
	totalDeaths   int
	totalAgeTicks int64
}

// NewDemographics creates an empty aggregator.
func NewDemographics() *Demographics {
	return &Demographics{roleCounts: make(map[types.Role]int)}
}

// recordBirth increments the count for a newly assigned role.
func (d *Demographics) recordBirth(role types.Role) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.roleCounts[role]++
}

// recordDeath decrements the role count, increments total_deaths, and adds
// the trader's final age to total_age_ticks (spec §4.5 shutdown protocol).
func (d *Demographics) recordDeath(role types.Role, ageTicks int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.roleCounts[role] > 0 {
		d.roleCounts[role]--
	}
	d.totalDeaths++
	d.totalAgeTicks += ageTicks
}

// Snapshot returns a defensive copy for reporting/dashboarding.
func (d *Demographics) Snapshot() types.Demographics {
	d.mu.RLock()
	defer d.mu.RUnlock()

	counts := make(map[types.Role]int, len(d.roleCounts))
	for r, c := range d.roleCounts {
		counts[r] = c
	}
	return types.Demographics{
		RoleCounts:    counts,
		TotalDeaths:   d.totalDeaths,
		TotalAgeTicks: d.totalAgeTicks,
	}
}

// CountOf reports the live population for one role.
func (d *Demographics) CountOf(role types.Role) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.roleCounts[role]
}
