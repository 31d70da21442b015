// Package httpfabric implements fabric.Fabric and fabric.InventoryStore
// against a real replication/RPC gateway over REST, with inbound commands
// delivered over a WebSocket feed (events.go). It is the network-facing
// twin of inmemory.Fabric, grounded in the teacher's resty-based REST
// client and gorilla/websocket feed.
package httpfabric

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"auctionhouse/internal/fabric"
	"auctionhouse/pkg/types"
)

var (
	_ fabric.Fabric         = (*Client)(nil)
	_ fabric.InventoryStore = (*Client)(nil)
)

// Client talks to a Fabric gateway's REST surface for entity lifecycle and
// component reads/writes, and to its WebSocket surface (see events.go) for
// inbound commands.
type Client struct {
	http   *resty.Client
	wsURL  string
	rl     *RateLimiter
	dryRun bool
	logger *slog.Logger

	events *eventStream // created by OnCommand or RunEvents, started by RunEvents
}

// NewClient creates a Fabric REST client with rate limiting and retry.
// wsURL points at the gateway's inbound command stream (see events.go).
func NewClient(baseURL, wsURL string, dryRun bool, logger *slog.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(250 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:   httpClient,
		wsURL:  wsURL,
		rl:     NewRateLimiter(),
		dryRun: dryRun,
		logger: logger,
	}
}

// RunEvents starts the inbound command stream and blocks until ctx is
// cancelled. Must be called once handlers are registered via OnCommand.
func (c *Client) RunEvents(ctx context.Context) error {
	if c.events == nil {
		c.events = newEventStream(c.logger)
	}
	c.events.url = c.wsURL
	return c.events.Run(ctx)
}

// ———————————————————————————————————————————————————————————————
// fabric.Fabric
// ———————————————————————————————————————————————————————————————

func (c *Client) ReserveEntityIDs(ctx context.Context, n int) ([]fabric.EntityID, error) {
	if err := c.rl.Reserve.Wait(ctx); err != nil {
		return nil, err
	}
	if c.dryRun {
		ids := make([]fabric.EntityID, n)
		for i := range ids {
			ids[i] = -(i + 1)
		}
		return ids, nil
	}

	var result struct {
		IDs []fabric.EntityID `json:"ids"`
	}
	resp, err := c.http.R().SetContext(ctx).
		SetBody(map[string]int{"n": n}).
		SetResult(&result).
		Post("/entities/reserve")
	if err != nil {
		return nil, fmt.Errorf("reserve entity ids: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("reserve entity ids: status %d: %s", resp.StatusCode(), resp.String())
	}
	return result.IDs, nil
}

func (c *Client) CreateEntity(ctx context.Context, id fabric.EntityID, components map[string]any) error {
	if err := c.rl.Reserve.Wait(ctx); err != nil {
		return err
	}
	if c.dryRun {
		c.logger.Info("DRY-RUN: would create entity", "id", id)
		return nil
	}

	resp, err := c.http.R().SetContext(ctx).
		SetBody(components).
		Post(fmt.Sprintf("/entities/%d", id))
	if err != nil {
		return fmt.Errorf("create entity %d: %w", id, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("create entity %d: status %d: %s", id, resp.StatusCode(), resp.String())
	}
	return nil
}

func (c *Client) DeleteEntity(ctx context.Context, id fabric.EntityID) error {
	if err := c.rl.Reserve.Wait(ctx); err != nil {
		return err
	}
	if c.dryRun {
		c.logger.Info("DRY-RUN: would delete entity", "id", id)
		return nil
	}

	resp, err := c.http.R().SetContext(ctx).Delete(fmt.Sprintf("/entities/%d", id))
	if err != nil {
		return fmt.Errorf("delete entity %d: %w", id, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("delete entity %d: status %d: %s", id, resp.StatusCode(), resp.String())
	}
	return nil
}

func (c *Client) SendComponentUpdate(ctx context.Context, id fabric.EntityID, component string, update any) error {
	if err := c.rl.Update.Wait(ctx); err != nil {
		return err
	}
	if c.dryRun {
		return nil
	}

	resp, err := c.http.R().SetContext(ctx).
		SetBody(update).
		Patch(fmt.Sprintf("/entities/%d/components/%s", id, component))
	if err != nil {
		return fmt.Errorf("component update %s for %d: %w", component, id, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("component update %s for %d: status %d: %s", component, id, resp.StatusCode(), resp.String())
	}
	return nil
}

func (c *Client) SendCommand(ctx context.Context, target fabric.EntityID, command string, payload any, timeout time.Duration) (any, error) {
	if err := c.rl.Command.Wait(ctx); err != nil {
		return nil, err
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if c.dryRun {
		return map[string]any{"accepted": true}, nil
	}

	var result json.RawMessage
	resp, err := c.http.R().SetContext(cctx).
		SetBody(map[string]any{"command": command, "payload": payload}).
		SetResult(&result).
		Post(fmt.Sprintf("/commands/%d", target))
	if err != nil {
		return nil, fmt.Errorf("send command %s to %d: %w", command, target, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("send command %s to %d: status %d: %s", command, target, resp.StatusCode(), resp.String())
	}
	return result, nil
}

// OnCommand registers a handler for inbound commands, delegating to the
// WebSocket event stream (created on first registration; RunEvents starts it).
func (c *Client) OnCommand(command string, handler fabric.CommandHandler) {
	if c.events == nil {
		c.events = newEventStream(c.logger)
	}
	c.events.onCommand(command, handler)
}

// Worker returns c itself: a real deployment gives every trader its own
// process and its own Client connected over its own WebSocket, so
// OnCommand registrations are already scoped by that process boundary —
// unlike inmemory.Fabric, there's no shared-instance handler collision to
// guard against here.
func (c *Client) Worker(id fabric.EntityID) fabric.Fabric {
	return c
}

func (c *Client) AssignPartition(ctx context.Context, workerID fabric.EntityID, partitionID string) error {
	if err := c.rl.Reserve.Wait(ctx); err != nil {
		return err
	}
	if c.dryRun {
		return nil
	}

	resp, err := c.http.R().SetContext(ctx).
		SetBody(map[string]string{"partition_id": partitionID}).
		Post(fmt.Sprintf("/partitions/%d", workerID))
	if err != nil {
		return fmt.Errorf("assign partition to worker %d: %w", workerID, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("assign partition to worker %d: status %d: %s", workerID, resp.StatusCode(), resp.String())
	}
	return nil
}

// ———————————————————————————————————————————————————————————————
// fabric.InventoryStore
// ———————————————————————————————————————————————————————————————

func (c *Client) GetInventory(ctx context.Context, traderID fabric.EntityID) (types.Inventory, error) {
	if err := c.rl.Update.Wait(ctx); err != nil {
		return types.Inventory{}, err
	}
	var inv types.Inventory
	resp, err := c.http.R().SetContext(ctx).SetResult(&inv).
		Get(fmt.Sprintf("/entities/%d/components/inventory", traderID))
	if err != nil {
		return types.Inventory{}, fmt.Errorf("get inventory %d: %w", traderID, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return types.Inventory{}, fmt.Errorf("get inventory %d: status %d: %s", traderID, resp.StatusCode(), resp.String())
	}
	return inv, nil
}

func (c *Client) GetBuildings(ctx context.Context, traderID fabric.EntityID) (types.Buildings, error) {
	if err := c.rl.Update.Wait(ctx); err != nil {
		return types.Buildings{}, err
	}
	var bld types.Buildings
	resp, err := c.http.R().SetContext(ctx).SetResult(&bld).
		Get(fmt.Sprintf("/entities/%d/components/buildings", traderID))
	if err != nil {
		return types.Buildings{}, fmt.Errorf("get buildings %d: %w", traderID, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return types.Buildings{}, fmt.Errorf("get buildings %d: status %d: %s", traderID, resp.StatusCode(), resp.String())
	}
	return bld, nil
}

func (c *Client) SetInventory(ctx context.Context, traderID fabric.EntityID, inv types.Inventory) error {
	return c.SendComponentUpdate(ctx, traderID, "inventory", inv)
}

// TryTakeCommodity, TryAddCommodity, TryTakeMoney, ForceTakeMoney, and
// AddMoney are implemented as read-modify-write over GetInventory/SetInventory.
// A real gateway would expose these as atomic server-side RPCs; this client
// approximates the same contract for a single caller (the house is the only
// writer of any given trader's inventory within a tick, per spec §5).

func (c *Client) TryTakeCommodity(ctx context.Context, traderID fabric.EntityID, commodity string, quantity int, atomic bool) (int, error) {
	inv, err := c.GetInventory(ctx, traderID)
	if err != nil {
		return 0, err
	}
	item := inv.Items[commodity]
	var taken int
	if atomic {
		if item.Quantity < quantity {
			return 0, nil
		}
		taken = quantity
	} else {
		taken = item.Quantity
		if taken > quantity {
			taken = quantity
		}
	}
	item.Quantity -= taken
	inv.Items[commodity] = item
	if err := c.SetInventory(ctx, traderID, inv); err != nil {
		return 0, err
	}
	return taken, nil
}

func (c *Client) TryAddCommodity(ctx context.Context, traderID fabric.EntityID, commodity string, quantity int, unitPrice decimal.Decimal) (int, error) {
	inv, err := c.GetInventory(ctx, traderID)
	if err != nil {
		return 0, err
	}
	used := decimal.Zero
	for _, it := range inv.Items {
		size := it.UnitSize
		if size.IsZero() {
			size = decimal.NewFromInt(1)
		}
		used = used.Add(size.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	item := inv.Items[commodity]
	unitSize := item.UnitSize
	if unitSize.IsZero() {
		unitSize = decimal.NewFromInt(1)
	}
	free := inv.Capacity.Sub(used)
	maxUnits := 0
	if unitSize.GreaterThan(decimal.Zero) && free.GreaterThan(decimal.Zero) {
		maxUnits = int(free.Div(unitSize).IntPart())
	}
	added := quantity
	if added > maxUnits {
		added = maxUnits
	}
	if added < 0 {
		added = 0
	}
	item.Quantity += added
	item.UnitSize = unitSize
	inv.Items[commodity] = item
	if err := c.SetInventory(ctx, traderID, inv); err != nil {
		return 0, err
	}
	return added, nil
}

func (c *Client) TryTakeMoney(ctx context.Context, traderID fabric.EntityID, quantity decimal.Decimal, atomic bool) (decimal.Decimal, error) {
	inv, err := c.GetInventory(ctx, traderID)
	if err != nil {
		return decimal.Zero, err
	}
	var taken decimal.Decimal
	if atomic {
		if inv.Cash.LessThan(quantity) {
			return decimal.Zero, nil
		}
		taken = quantity
	} else {
		taken = inv.Cash
		if taken.GreaterThan(quantity) {
			taken = quantity
		}
	}
	inv.Cash = inv.Cash.Sub(taken)
	if err := c.SetInventory(ctx, traderID, inv); err != nil {
		return decimal.Zero, err
	}
	return taken, nil
}

func (c *Client) ForceTakeMoney(ctx context.Context, traderID fabric.EntityID, quantity decimal.Decimal) error {
	inv, err := c.GetInventory(ctx, traderID)
	if err != nil {
		return err
	}
	inv.Cash = inv.Cash.Sub(quantity)
	return c.SetInventory(ctx, traderID, inv)
}

func (c *Client) AddMoney(ctx context.Context, traderID fabric.EntityID, quantity decimal.Decimal) error {
	inv, err := c.GetInventory(ctx, traderID)
	if err != nil {
		return err
	}
	inv.Cash = inv.Cash.Add(quantity)
	return c.SetInventory(ctx, traderID, inv)
}
