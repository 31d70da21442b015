// Package fabric defines the abstract replication/RPC substrate the
// Auction House and Trader agents are built against (spec §6). It stands in
// for the distributed entity/component replication layer that is explicitly
// out of scope for this module (spec §1): entity creation, component
// updates, and commands are all that either side consumes, never shared
// memory or direct struct access.
//
// Two concrete implementations live alongside it: inmemory (a single-process
// fake used by tests and the bundled demo fleet) and httpfabric (a REST +
// WebSocket client for a real replication service, grounded in the teacher's
// exchange package).
package fabric

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"auctionhouse/pkg/types"
)

// EntityID identifies an entity (trader, auction house, monitor) in the Fabric.
type EntityID = int

// CommandHandler processes an inbound command and returns a response.
type CommandHandler func(ctx context.Context, senderID EntityID, payload any) (any, error)

// Fabric is the minimal entity/component/command surface the core consumes.
type Fabric interface {
	// ReserveEntityIDs reserves n fresh entity ids.
	ReserveEntityIDs(ctx context.Context, n int) ([]EntityID, error)
	// CreateEntity creates an entity with the given reserved id and initial components.
	CreateEntity(ctx context.Context, id EntityID, components map[string]any) error
	// DeleteEntity removes an entity.
	DeleteEntity(ctx context.Context, id EntityID) error
	// SendComponentUpdate pushes a partial or full component update for an entity.
	SendComponentUpdate(ctx context.Context, id EntityID, component string, update any) error
	// SendCommand issues an RPC-like command to a target entity, waiting up to timeout.
	SendCommand(ctx context.Context, target EntityID, command string, payload any, timeout time.Duration) (any, error)
	// OnCommand registers a handler for an inbound command type.
	OnCommand(command string, handler CommandHandler)
	// Worker returns a Fabric handle whose OnCommand registrations are only
	// reachable by commands addressed to id. A real deployment gives every
	// trader its own process and its own Client, so OnCommand is already
	// scoped by the OS process boundary; inmemory.Fabric has no such
	// boundary (one shared instance backs an entire demo fleet), so it uses
	// Worker to key handlers per entity instead of overwriting them by
	// command name alone.
	Worker(id EntityID) Fabric
	// AssignPartition delegates write authority over an entity to a worker.
	AssignPartition(ctx context.Context, workerID EntityID, partitionID string) error
}

// InventoryStore is the narrower, typed surface settlement and production
// use for atomic read-modify-write access to Fabric-held trader inventories
// and buildings. It is implemented in terms of Fabric component
// reads/updates by both concrete adapters, but callers depend on this
// interface directly rather than assembling raw component calls themselves —
// the same role auction_house.h's TryTakeCommodity/TryAddCommodity/
// TryTakeMoney/AddMoney helpers play against a Trader in the original.
type InventoryStore interface {
	GetInventory(ctx context.Context, traderID EntityID) (types.Inventory, error)
	GetBuildings(ctx context.Context, traderID EntityID) (types.Buildings, error)
	// SetInventory writes back a full inventory snapshot in one batched update.
	SetInventory(ctx context.Context, traderID EntityID, inv types.Inventory) error

	// TryTakeCommodity removes up to quantity units of commodity. If atomic,
	// it fails (amountTaken=0) unless the full quantity is available.
	// Otherwise it takes min(available, quantity).
	TryTakeCommodity(ctx context.Context, traderID EntityID, commodity string, quantity int, atomic bool) (amountTaken int, err error)
	// TryAddCommodity adds up to quantity units, capped by remaining
	// capacity; overflow is silently dropped (spec §4.2 step 3).
	TryAddCommodity(ctx context.Context, traderID EntityID, commodity string, quantity int, unitPrice decimal.Decimal) (amountAdded int, err error)

	// TryTakeMoney removes up to quantity cash. If atomic, it fails
	// (amountTaken=0) unless the full quantity is available. Otherwise it
	// takes min(available, quantity).
	TryTakeMoney(ctx context.Context, traderID EntityID, quantity decimal.Decimal, atomic bool) (amountTaken decimal.Decimal, err error)
	// ForceTakeMoney unconditionally subtracts quantity, permitting cash to
	// go negative. The production engine's idle tax does not call it; it
	// writes the reduced cash back through SetInventory.
	ForceTakeMoney(ctx context.Context, traderID EntityID, quantity decimal.Decimal) error
	// AddMoney credits cash.
	AddMoney(ctx context.Context, traderID EntityID, quantity decimal.Decimal) error
}
