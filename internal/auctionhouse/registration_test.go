package auctionhouse

import (
	"context"
	"testing"

	"auctionhouse/pkg/types"
)

func TestHandleRegisterAssignsRequestedRole(t *testing.T) {
	t.Parallel()
	h, _ := newTestHouse(t)
	h.RegisterCommodity(types.Commodity{Name: "wood", Producer: types.RoleWoodcutter})

	resp, err := h.handleRegister(context.Background(), 1, map[string]any{
		"agent_type":     string(types.AgentAITrader),
		"requested_role": string(types.RoleWoodcutter),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, ok := resp.(registerResponse)
	if !ok {
		t.Fatalf("response type = %T, want registerResponse", resp)
	}
	if got.AssignedRole != types.RoleWoodcutter {
		t.Fatalf("assigned role = %v, want woodcutter", got.AssignedRole)
	}
	if len(got.ListedCommodities) != 1 || got.ListedCommodities[0] != "wood" {
		t.Fatalf("listed commodities = %v, want [wood]", got.ListedCommodities)
	}

	if got := h.demo.CountOf(types.RoleWoodcutter); got != 1 {
		t.Fatalf("demographics count = %d, want 1 after registration", got)
	}

	stages := h.RegistrationStageCounts()
	for _, stage := range []string{"RESERVED_ID", "CREATED_ENTITY", "ASSIGNED_PARTITION"} {
		if stages[stage] != 1 {
			t.Fatalf("stage %s count = %d, want 1 after one successful registration", stage, stages[stage])
		}
	}
}

func TestHandleRegisterPicksWeightedRoleWhenUnspecified(t *testing.T) {
	t.Parallel()
	h, _ := newTestHouse(t)
	h.RegisterCommodity(types.Commodity{Name: "food", Producer: types.RoleFarmer})

	resp, err := h.handleRegister(context.Background(), 1, map[string]any{
		"agent_type": string(types.AgentAITrader),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := resp.(registerResponse)
	if got.AssignedRole != types.RoleFarmer {
		t.Fatalf("assigned role = %v, want farmer (only registered producer)", got.AssignedRole)
	}
}

func TestHandleRegisterMonitorSkipsRoleAssignment(t *testing.T) {
	t.Parallel()
	h, _ := newTestHouse(t)

	resp, err := h.handleRegister(context.Background(), 1, map[string]any{
		"agent_type": string(types.AgentMonitor),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := resp.(registerResponse)
	if got.AssignedRole != types.RoleNone {
		t.Fatalf("assigned role = %v, want RoleNone for a monitor", got.AssignedRole)
	}
}

func TestHandleRequestShutdownRecordsDeathAndDeletesEntity(t *testing.T) {
	t.Parallel()
	h, fab := newTestHouse(t)
	h.demo.recordBirth(types.RoleFarmer)

	ids, err := fab.ReserveEntityIDs(context.Background(), 1)
	if err != nil {
		t.Fatalf("reserve id: %v", err)
	}
	id := ids[0]
	if err := fab.CreateEntity(context.Background(), id, map[string]any{}); err != nil {
		t.Fatalf("create entity: %v", err)
	}

	resp, err := h.handleRequestShutdown(context.Background(), id, map[string]any{
		"entity_id": float64(id),
		"role":      string(types.RoleFarmer),
		"age_ticks": float64(42),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ack, ok := resp.(map[string]bool)
	if !ok || !ack["ack"] {
		t.Fatalf("response = %+v, want ack true", resp)
	}

	if got := h.demo.CountOf(types.RoleFarmer); got != 0 {
		t.Fatalf("farmer count = %d, want 0 after shutdown", got)
	}
	snap := h.demo.Snapshot()
	if snap.TotalAgeTicks != 42 {
		t.Fatalf("total age ticks = %d, want 42", snap.TotalAgeTicks)
	}
}
