// Package inmemory implements fabric.Fabric and fabric.InventoryStore as a
// single-process fake replication layer. It exists for the bundled demo
// fleet and for tests that need a real Fabric without a network hop — the
// same role the teacher's dry-run mode plays for exchange.Client, except
// here every call actually mutates state rather than faking a response.
package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"auctionhouse/internal/fabric"
	"auctionhouse/pkg/types"
)

// entity holds the component data for one registered trader.
type entity struct {
	mu         sync.Mutex
	inventory  types.Inventory
	buildings  types.Buildings
	components map[string]any
}

var (
	_ fabric.Fabric         = (*Fabric)(nil)
	_ fabric.InventoryStore = (*Fabric)(nil)
	_ fabric.Fabric         = (*Worker)(nil)
)

// Fabric is an in-memory replication substrate. Safe for concurrent use.
//
// handlers is keyed by command name and then by the entity id the handler
// was registered for via Worker — OnCommand itself registers under entity
// id 0, the house's conventional target, since a single process only ever
// runs one House. SendCommand dispatches to handlers[command][target], so
// many trader agents sharing this one Fabric instance each keep their own
// ReportBidOffer/ReportAskOffer handler instead of the last registrant
// silently overwriting every other agent's.
type Fabric struct {
	mu       sync.Mutex
	nextID   int
	entities map[fabric.EntityID]*entity
	handlers map[string]map[fabric.EntityID]fabric.CommandHandler
}

// New creates an empty in-memory Fabric.
func New() *Fabric {
	return &Fabric{
		entities: make(map[fabric.EntityID]*entity),
		handlers: make(map[string]map[fabric.EntityID]fabric.CommandHandler),
	}
}

// Worker returns a handle scoped to entity id: its OnCommand registers a
// handler reachable only when SendCommand targets id, leaving every other
// entity's handlers for the same command name untouched.
type Worker struct {
	*Fabric
	id fabric.EntityID
}

func (f *Fabric) Worker(id fabric.EntityID) fabric.Fabric {
	return &Worker{Fabric: f, id: id}
}

func (w *Worker) OnCommand(command string, handler fabric.CommandHandler) {
	w.registerHandler(w.id, command, handler)
}

// ReserveEntityIDs hands out the next n sequential ids.
func (f *Fabric) ReserveEntityIDs(ctx context.Context, n int) ([]fabric.EntityID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ids := make([]fabric.EntityID, n)
	for i := 0; i < n; i++ {
		f.nextID++
		ids[i] = f.nextID
	}
	return ids, nil
}

// CreateEntity materializes an entity from its initial components. Expected
// keys: "inventory" (types.Inventory), "buildings" (types.Buildings).
func (f *Fabric) CreateEntity(ctx context.Context, id fabric.EntityID, components map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	e := &entity{}
	if inv, ok := components["inventory"].(types.Inventory); ok {
		e.inventory = inv
	}
	if bld, ok := components["buildings"].(types.Buildings); ok {
		e.buildings = bld
	}
	if e.inventory.Items == nil {
		e.inventory.Items = make(map[string]types.InventoryItem)
	}
	e.components = make(map[string]any)
	f.entities[id] = e
	return nil
}

// DeleteEntity removes an entity.
func (f *Fabric) DeleteEntity(ctx context.Context, id fabric.EntityID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.entities, id)
	return nil
}

// SendComponentUpdate applies a targeted component mutation. "inventory"
// gets its own typed field (full replace); any other component name — the
// per-commodity "market_snapshot_*" updates publishSnapshot sends, for
// instance — is stashed verbatim in a generic bucket, readable back via
// Component, rather than rejected as unknown.
func (f *Fabric) SendComponentUpdate(ctx context.Context, id fabric.EntityID, component string, update any) error {
	e, err := f.lookup(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	switch component {
	case "inventory":
		inv, ok := update.(types.Inventory)
		if !ok {
			return fmt.Errorf("inmemory: bad inventory update payload for entity %d", id)
		}
		e.inventory = inv
	default:
		if e.components == nil {
			e.components = make(map[string]any)
		}
		e.components[component] = update
	}
	return nil
}

// Component returns the most recent generic component update stashed for
// id, as SendComponentUpdate stores it for anything but "inventory".
func (f *Fabric) Component(id fabric.EntityID, component string) (any, bool) {
	e, err := f.lookup(id)
	if err != nil {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.components[component]
	return v, ok
}

// SendCommand dispatches to a registered handler synchronously. The timeout
// is honored via the passed context rather than a real network round trip.
func (f *Fabric) SendCommand(ctx context.Context, target fabric.EntityID, command string, payload any, timeout time.Duration) (any, error) {
	f.mu.Lock()
	handler, ok := f.handlers[command][target]
	f.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("inmemory: no handler registered for command %q targeting entity %d", command, target)
	}

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		resp any
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		resp, err := handler(cctx, target, payload)
		ch <- result{resp, err}
	}()

	select {
	case r := <-ch:
		return r.resp, r.err
	case <-cctx.Done():
		return nil, cctx.Err()
	}
}

// OnCommand registers a handler for inbound commands of the given type,
// reachable when SendCommand targets entity id 0 — the house's
// conventional target, since exactly one House runs per process. Agents
// that need their own per-entity handler (ReportBidOffer, ReportAskOffer)
// must register through Worker instead.
func (f *Fabric) OnCommand(command string, handler fabric.CommandHandler) {
	f.registerHandler(0, command, handler)
}

func (f *Fabric) registerHandler(id fabric.EntityID, command string, handler fabric.CommandHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handlers[command] == nil {
		f.handlers[command] = make(map[fabric.EntityID]fabric.CommandHandler)
	}
	f.handlers[command][id] = handler
}

// AssignPartition is a no-op acknowledgement in a single-process Fabric.
func (f *Fabric) AssignPartition(ctx context.Context, workerID fabric.EntityID, partitionID string) error {
	return nil
}

func (f *Fabric) lookup(id fabric.EntityID) (*entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	e, ok := f.entities[id]
	if !ok {
		return nil, fmt.Errorf("inmemory: unknown entity %d", id)
	}
	return e, nil
}

// ———————————————————————————————————————————————————————————————
// fabric.InventoryStore
// ———————————————————————————————————————————————————————————————

func (f *Fabric) GetInventory(ctx context.Context, traderID fabric.EntityID) (types.Inventory, error) {
	e, err := f.lookup(traderID)
	if err != nil {
		return types.Inventory{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneInventory(e.inventory), nil
}

func (f *Fabric) GetBuildings(ctx context.Context, traderID fabric.EntityID) (types.Buildings, error) {
	e, err := f.lookup(traderID)
	if err != nil {
		return types.Buildings{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.buildings, nil
}

func (f *Fabric) SetInventory(ctx context.Context, traderID fabric.EntityID, inv types.Inventory) error {
	e, err := f.lookup(traderID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inventory = cloneInventory(inv)
	return nil
}

func (f *Fabric) TryTakeCommodity(ctx context.Context, traderID fabric.EntityID, commodity string, quantity int, atomic bool) (int, error) {
	e, err := f.lookup(traderID)
	if err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	item := e.inventory.Items[commodity]
	if atomic {
		if item.Quantity < quantity {
			return 0, nil
		}
		item.Quantity -= quantity
		e.inventory.Items[commodity] = item
		return quantity, nil
	}
	taken := item.Quantity
	if taken > quantity {
		taken = quantity
	}
	item.Quantity -= taken
	e.inventory.Items[commodity] = item
	return taken, nil
}

func (f *Fabric) TryAddCommodity(ctx context.Context, traderID fabric.EntityID, commodity string, quantity int, unitPrice decimal.Decimal) (int, error) {
	e, err := f.lookup(traderID)
	if err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	used := decimal.Zero
	for name, it := range e.inventory.Items {
		size := it.UnitSize
		if size.IsZero() {
			size = decimal.NewFromInt(1)
		}
		_ = name
		used = used.Add(size.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	item := e.inventory.Items[commodity]
	unitSize := item.UnitSize
	if unitSize.IsZero() {
		unitSize = decimal.NewFromInt(1)
	}
	free := e.inventory.Capacity.Sub(used)
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
	e.inventory.Items[commodity] = item
	return added, nil
}

func (f *Fabric) TryTakeMoney(ctx context.Context, traderID fabric.EntityID, quantity decimal.Decimal, atomic bool) (decimal.Decimal, error) {
	e, err := f.lookup(traderID)
	if err != nil {
		return decimal.Zero, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if atomic {
		if e.inventory.Cash.LessThan(quantity) {
			return decimal.Zero, nil
		}
		e.inventory.Cash = e.inventory.Cash.Sub(quantity)
		return quantity, nil
	}
	taken := e.inventory.Cash
	if taken.GreaterThan(quantity) {
		taken = quantity
	}
	e.inventory.Cash = e.inventory.Cash.Sub(taken)
	return taken, nil
}

func (f *Fabric) ForceTakeMoney(ctx context.Context, traderID fabric.EntityID, quantity decimal.Decimal) error {
	e, err := f.lookup(traderID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inventory.Cash = e.inventory.Cash.Sub(quantity)
	return nil
}

func (f *Fabric) AddMoney(ctx context.Context, traderID fabric.EntityID, quantity decimal.Decimal) error {
	e, err := f.lookup(traderID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inventory.Cash = e.inventory.Cash.Add(quantity)
	return nil
}

func cloneInventory(inv types.Inventory) types.Inventory {
	out := types.Inventory{Capacity: inv.Capacity, Cash: inv.Cash, Items: make(map[string]types.InventoryItem, len(inv.Items))}
	for k, v := range inv.Items {
		out.Items[k] = v
	}
	return out
}
