package auctionhouse

import (
	"log/slog"
	"testing"
	"time"

	"auctionhouse/internal/config"
	"auctionhouse/internal/fabric/inmemory"
	"auctionhouse/pkg/types"
)

func newTestHouse(t *testing.T) (*House, *inmemory.Fabric) {
	t.Helper()
	fab := inmemory.New()
	cfg := &config.Config{
		Market: config.MarketConfig{
			TickPeriod: 100 * time.Millisecond,
			SalesTax:   0.08,
			BrokerFee:  0.03,
			MinPrice:   0.10,
			NLookback:  50,
		},
		Traders: config.TradersConfig{
			Gamma:                    -0.02,
			Alpha:                    0.2,
			MinCost:                  10,
			InternalLookback:         50,
			RegistrationStageTimeout: 500 * time.Millisecond,
		},
	}
	logger := slog.Default()
	h := NewHouse(cfg, fab, fab, logger)
	return h, fab
}

func TestChooseRoleWeightedNoCommoditiesReturnsNone(t *testing.T) {
	t.Parallel()
	h, _ := newTestHouse(t)

	if got := h.chooseRoleWeighted(); got != types.RoleNone {
		t.Fatalf("role = %v, want RoleNone", got)
	}
}

func TestChooseRoleWeightedPicksARegisteredProducer(t *testing.T) {
	t.Parallel()
	h, _ := newTestHouse(t)

	h.RegisterCommodity(types.Commodity{Name: "food", Producer: types.RoleFarmer})
	h.RegisterCommodity(types.Commodity{Name: "wood", Producer: types.RoleWoodcutter})

	role := h.chooseRoleWeighted()
	if role != types.RoleFarmer && role != types.RoleWoodcutter {
		t.Fatalf("role = %v, want one of farmer/woodcutter", role)
	}
}
