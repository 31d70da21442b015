package trader

import (
	"testing"

	"auctionhouse/pkg/types"
)

func TestDefaultCommoditiesEachHaveExactlyOneProducer(t *testing.T) {
	t.Parallel()
	seen := map[types.Role]bool{}
	for _, c := range DefaultCommodities() {
		if seen[c.Producer] {
			t.Fatalf("role %v produces more than one commodity", c.Producer)
		}
		seen[c.Producer] = true
		if c.Name == "" {
			t.Fatal("commodity with empty name")
		}
	}
	if len(seen) != 6 {
		t.Fatalf("got %d distinct producer roles, want 6", len(seen))
	}
}

func TestDefaultBuildingsRecipesAreSortedByPriority(t *testing.T) {
	t.Parallel()
	for _, role := range []types.Role{
		types.RoleFarmer, types.RoleWoodcutter, types.RoleComposter,
		types.RoleMiner, types.RoleRefiner, types.RoleBlacksmith,
	} {
		b := DefaultBuildings(role)
		for i := 1; i < len(b.Recipes); i++ {
			if b.Recipes[i].Priority < b.Recipes[i-1].Priority {
				t.Fatalf("role %v: recipe %d has lower priority than the one before it", role, i)
			}
		}
		if b.IdleTax.IsZero() {
			t.Fatalf("role %v: expected a nonzero idle tax", role)
		}
	}
}

func TestDefaultInventoryStartingCashIsPositive(t *testing.T) {
	t.Parallel()
	for _, role := range []types.Role{types.RoleFarmer, types.RoleMiner, types.RoleBlacksmith} {
		inv := DefaultInventory(role)
		if !inv.Cash.IsPositive() {
			t.Fatalf("role %v: starting cash = %s, want positive", role, inv.Cash)
		}
		if inv.Capacity.IsZero() {
			t.Fatalf("role %v: expected nonzero capacity", role)
		}
	}
}

func TestDefaultBuildingsUnknownRoleHasNoRecipes(t *testing.T) {
	t.Parallel()
	b := DefaultBuildings(types.RoleNone)
	if len(b.Recipes) != 0 {
		t.Fatalf("expected no recipes for RoleNone, got %d", len(b.Recipes))
	}
}
