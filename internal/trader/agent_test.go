package trader_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"auctionhouse/internal/auctionhouse"
	"auctionhouse/internal/config"
	"auctionhouse/internal/fabric/inmemory"
	"auctionhouse/internal/trader"
	"auctionhouse/pkg/types"
)

func newHarness(t *testing.T) (*auctionhouse.House, *inmemory.Fabric, config.TradersConfig) {
	t.Helper()
	fab := inmemory.New()
	tc := config.TradersConfig{
		Gamma:                    -0.02,
		Alpha:                    0.2,
		MinCost:                  10,
		InternalLookback:         50,
		RegistrationStageTimeout: 500 * time.Millisecond,
	}
	cfg := &config.Config{
		Market: config.MarketConfig{
			TickPeriod: 100 * time.Millisecond,
			SalesTax:   0.08,
			BrokerFee:  0.03,
			MinPrice:   0.10,
			NLookback:  50,
		},
		Traders: tc,
	}
	house := auctionhouse.NewHouse(cfg, fab, fab, slog.Default())
	for _, c := range trader.DefaultCommodities() {
		house.RegisterCommodity(c)
	}
	return house, fab, tc
}

func TestAgentRegisterAssignsRoleAndSeedsBeliefs(t *testing.T) {
	t.Parallel()
	house, fab, tc := newHarness(t)

	agent := trader.NewAgent(fab, 0, fab, house, tc, decimal.NewFromFloat(0.10), 100*time.Millisecond, slog.Default())
	if err := agent.Register(context.Background(), types.RoleFarmer); err != nil {
		t.Fatalf("register: %v", err)
	}
}

func TestAgentRequestProductionUpdatesBeliefsWithoutBankruptcy(t *testing.T) {
	t.Parallel()
	house, fab, tc := newHarness(t)

	agent := trader.NewAgent(fab, 0, fab, house, tc, decimal.NewFromFloat(0.10), 100*time.Millisecond, slog.Default())
	if err := agent.Register(context.Background(), types.RoleWoodcutter); err != nil {
		t.Fatalf("register: %v", err)
	}

	// A woodcutter's default inventory already holds the food+tools its
	// first recipe needs, so one production tick should succeed without
	// shutting the agent down.
	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		done <- agent.Run(ctx)
	}()

	select {
	case err := <-done:
		if err != nil && err != context.DeadlineExceeded {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("agent run did not return in time")
	}
}

func TestAgentSyncInventoryAndPriceFeedQueries(t *testing.T) {
	t.Parallel()
	house, fab, tc := newHarness(t)

	agent := trader.NewAgent(fab, 0, fab, house, tc, decimal.NewFromFloat(0.10), 100*time.Millisecond, slog.Default())
	if err := agent.Register(context.Background(), types.RoleFarmer); err != nil {
		t.Fatalf("register: %v", err)
	}

	agent.SyncInventory(types.Inventory{
		Capacity: decimal.NewFromInt(500),
		Cash:     decimal.NewFromInt(100),
		Items: map[string]types.InventoryItem{
			"food": {Quantity: 20, UnitSize: decimal.NewFromInt(1)},
		},
	})
	agent.SyncPrice(types.PriceInfo{Commodity: "food", RecentPrice: decimal.NewFromInt(3)})

	// generateOffers is unexported; exercise it indirectly through a tick
	// via Run, relying on Register's belief-seeding so "food" has an ideal.
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	_ = agent.Run(ctx)
}
