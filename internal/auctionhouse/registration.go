package auctionhouse

import (
	"context"
	"fmt"
	"sync"

	"auctionhouse/internal/fabric"
	"auctionhouse/internal/trader"
	"auctionhouse/pkg/types"
)

// registrationStage is one node of the explicit registration handshake
// (spec §9's design note): a fresh attempt starts at stageNone and
// advances one stage per completed Fabric round trip. A failed or
// abandoned attempt simply never reaches the next stage.
type registrationStage int

const (
	stageNone registrationStage = iota
	stageReservedID
	stageCreatedEntity
	stageAssignedPartition
)

func (s registrationStage) String() string {
	switch s {
	case stageReservedID:
		return "RESERVED_ID"
	case stageCreatedEntity:
		return "CREATED_ENTITY"
	case stageAssignedPartition:
		return "ASSIGNED_PARTITION"
	default:
		return "NONE"
	}
}

// registrationState counts how many registration attempts have reached
// each stage of the handshake, for observability: handleRegister calls
// advance once per completed Fabric round trip, so a stage's count lags
// the previous stage's by exactly the attempts that failed in between.
type registrationState struct {
	mu     sync.Mutex
	counts [stageAssignedPartition + 1]int64
}

func newRegistrationState() *registrationState {
	return &registrationState{}
}

func (r *registrationState) advance(stage registrationStage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[stage]++
}

// Snapshot returns the attempt count reached at each stage, keyed by stage
// name.
func (r *registrationState) Snapshot() map[string]int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int64, len(r.counts))
	for stage, n := range r.counts {
		out[registrationStage(stage).String()] = n
	}
	return out
}

// registerHandlers wires every inbound command the Auction House exposes
// (spec §6) to the Fabric's command dispatch.
func (h *House) registerHandlers() {
	h.fab.OnCommand("Register", h.handleRegister)
	h.fab.OnCommand("MakeBidOffer", h.handleMakeBidOffer)
	h.fab.OnCommand("MakeAskOffer", h.handleMakeAskOffer)
	h.fab.OnCommand("RequestProduction", h.handleRequestProduction)
	h.fab.OnCommand("RequestShutdown", h.handleRequestShutdown)
}

type registerRequest struct {
	AgentType     types.AgentType `json:"agent_type"`
	RequestedRole types.Role      `json:"requested_role"`
}

type registerResponse struct {
	EntityID         fabric.EntityID `json:"entity_id"`
	AssignedRole     types.Role      `json:"assigned_role"`
	ListedCommodities []string       `json:"listed_commodities"`
}

// handleRegister drives the multi-stage registration handshake (spec §4.5):
// reserve id -> create entity -> assign partition -> reply. Each Fabric call
// is already bounded by the stage timeout internally (the same
// per-stage-timeout shape as the original's RegisterNewAgent, collapsed from
// a polling do/while loop into sequential blocking calls since Go's
// goroutine-per-registration model has no event-loop to re-enter).
func (h *House) handleRegister(ctx context.Context, senderID fabric.EntityID, payload any) (any, error) {
	req, err := decodeRegisterRequest(payload)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	stageCtx, cancel := context.WithTimeout(ctx, h.cfg.StageTimeout)
	ids, err := h.fab.ReserveEntityIDs(stageCtx, 1)
	cancel()
	if err != nil || len(ids) == 0 {
		return nil, fmt.Errorf("register: reserve entity id: %w", err)
	}
	entityID := ids[0]
	h.registrySM.advance(stageReservedID)

	var assignedRole types.Role
	var components map[string]any

	switch req.AgentType {
	case types.AgentAITrader:
		assignedRole = req.RequestedRole
		if assignedRole == types.RoleNone || assignedRole == "" {
			assignedRole = h.chooseRoleWeighted()
		}
		if assignedRole == types.RoleNone {
			return nil, fmt.Errorf("register: no role available to assign")
		}
		components = map[string]any{
			"inventory": trader.DefaultInventory(assignedRole),
			"buildings": trader.DefaultBuildings(assignedRole),
			"role":      assignedRole,
		}
	case types.AgentMonitor:
		assignedRole = types.RoleNone
		components = map[string]any{"kind": "monitor"}
	case types.AgentHumanTrader:
		assignedRole = req.RequestedRole
		components = map[string]any{
			"inventory": trader.DefaultInventory(assignedRole),
			"buildings": trader.DefaultBuildings(assignedRole),
			"role":      assignedRole,
		}
	default:
		return nil, fmt.Errorf("register: unknown agent type %q", req.AgentType)
	}

	stageCtx, cancel = context.WithTimeout(ctx, h.cfg.StageTimeout)
	err = h.fab.CreateEntity(stageCtx, entityID, components)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("register: create entity: %w", err)
	}
	h.registrySM.advance(stageCreatedEntity)

	stageCtx, cancel = context.WithTimeout(ctx, h.cfg.StageTimeout)
	err = h.fab.AssignPartition(stageCtx, senderID, fmt.Sprintf("trader-%d", entityID))
	cancel()
	if err != nil {
		return nil, fmt.Errorf("register: assign partition: %w", err)
	}
	h.registrySM.advance(stageAssignedPartition)

	if req.AgentType == types.AgentAITrader || req.AgentType == types.AgentHumanTrader {
		h.demo.recordBirth(assignedRole)
	}

	return registerResponse{
		EntityID:          entityID,
		AssignedRole:      assignedRole,
		ListedCommodities: h.listedCommodityNames(),
	}, nil
}

func (h *House) listedCommodityNames() []string {
	commodities := h.commodities()
	names := make([]string, 0, len(commodities))
	for _, c := range commodities {
		names = append(names, c.Name)
	}
	return names
}

// handleRequestShutdown implements the shutdown protocol (spec §4.5):
// decrement demographics, emit delete-entity, acknowledge.
func (h *House) handleRequestShutdown(ctx context.Context, senderID fabric.EntityID, payload any) (any, error) {
	req, err := decodeShutdownRequest(payload)
	if err != nil {
		return nil, fmt.Errorf("shutdown: %w", err)
	}

	h.demo.recordDeath(req.Role, req.AgeTicks)

	stageCtx, cancel := context.WithTimeout(ctx, h.cfg.StageTimeout)
	defer cancel()
	if err := h.fab.DeleteEntity(stageCtx, req.EntityID); err != nil {
		return nil, fmt.Errorf("shutdown: delete entity: %w", err)
	}

	return map[string]bool{"ack": true}, nil
}

type shutdownRequest struct {
	EntityID fabric.EntityID `json:"entity_id"`
	Role     types.Role      `json:"role"`
	AgeTicks int64           `json:"age_ticks"`
}

func decodeRegisterRequest(payload any) (registerRequest, error) {
	m, ok := payload.(map[string]any)
	if !ok {
		return registerRequest{}, fmt.Errorf("expected object payload")
	}
	req := registerRequest{
		AgentType:     types.AgentType(asString(m["agent_type"])),
		RequestedRole: types.Role(asString(m["requested_role"])),
	}
	return req, nil
}

func decodeShutdownRequest(payload any) (shutdownRequest, error) {
	m, ok := payload.(map[string]any)
	if !ok {
		return shutdownRequest{}, fmt.Errorf("expected object payload")
	}
	return shutdownRequest{
		EntityID: int(asFloat(m["entity_id"])),
		Role:     types.Role(asString(m["role"])),
		AgeTicks: int64(asFloat(m["age_ticks"])),
	}, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}
