// Package trader implements the Trader Agent side of the simulation: the
// per-tick offer-generation/belief-update loop (spec §4.6) and the canonical
// per-role starting buildings and inventories the Auction House hands a
// newly registered trader (spec §4.5, GLOSSARY).
package trader

import (
	"github.com/shopspring/decimal"

	"auctionhouse/pkg/types"
)

// defaultCapacity and defaultIdleTax match every role in the original
// (auction_house.h's AddXComponents functions all use 500/20).
var (
	defaultCapacity = decimal.NewFromInt(500)
	defaultIdleTax  = decimal.NewFromInt(20)
)

func item(qty int) types.InventoryItem {
	return types.InventoryItem{Quantity: qty, UnitSize: decimal.NewFromInt(1)}
}

func req(commodity string, qty int, chance float64) types.RecipeItem {
	return types.RecipeItem{Commodity: commodity, Quantity: qty, Chance: chance}
}

// DefaultBuildings returns the canonical recipe list and idle tax for a role,
// grounded in auction_house.h's AddFarmerComponents/.../AddBlacksmithComponents.
func DefaultBuildings(role types.Role) types.Buildings {
	var recipes []types.Recipe

	switch role {
	case types.RoleFarmer:
		recipes = []types.Recipe{
			{Name: "AIFarm1", Priority: 1, Repeatable: false,
				Requires: []types.RecipeItem{req("fertilizer", 1, 1.0), req("tools", 1, 0.1), req("wood", 1, 1.0)},
				Produces: []types.RecipeItem{req("food", 6, 1.0)}},
			{Name: "AIFarm2", Priority: 2, Repeatable: false,
				Requires: []types.RecipeItem{req("fertilizer", 1, 1.0), req("wood", 1, 1.0)},
				Produces: []types.RecipeItem{req("food", 3, 1.0)}},
			{Name: "AIFarm3", Priority: 3, Repeatable: false,
				Requires: []types.RecipeItem{req("fertilizer", 1, 1.0)},
				Produces: []types.RecipeItem{req("food", 1, 1.0)}},
		}
	case types.RoleWoodcutter:
		recipes = []types.Recipe{
			{Name: "AILumberyard1", Priority: 1, Repeatable: false,
				Requires: []types.RecipeItem{req("tools", 1, 0.1), req("food", 1, 1.0)},
				Produces: []types.RecipeItem{req("wood", 2, 1.0)}},
			{Name: "AILumberyard2", Priority: 2, Repeatable: false,
				Requires: []types.RecipeItem{req("food", 1, 1.0)},
				Produces: []types.RecipeItem{req("wood", 1, 1.0)}},
		}
	case types.RoleComposter:
		recipes = []types.Recipe{
			{Name: "AIComposter1", Priority: 1, Repeatable: false,
				Requires: []types.RecipeItem{req("food", 1, 1.0)},
				Produces: []types.RecipeItem{req("fertilizer", 1, 0.5)}},
		}
	case types.RoleMiner:
		recipes = []types.Recipe{
			{Name: "AIMine1", Priority: 1, Repeatable: false,
				Requires: []types.RecipeItem{req("food", 1, 1.0), req("tools", 1, 0.1)},
				Produces: []types.RecipeItem{req("ore", 4, 1.0)}},
			{Name: "AIMine2", Priority: 2, Repeatable: false,
				Requires: []types.RecipeItem{req("food", 1, 1.0)},
				Produces: []types.RecipeItem{req("ore", 2, 1.0)}},
		}
	case types.RoleRefiner:
		recipes = []types.Recipe{
			{Name: "AISmelter1", Priority: 1, Repeatable: true,
				Requires: []types.RecipeItem{req("food", 1, 1.0), req("ore", 1, 1.0), req("tools", 1, 0.1)},
				Produces: []types.RecipeItem{req("metal", 1, 1.0)}},
			{Name: "AISmelter2", Priority: 2, Repeatable: false,
				Requires: []types.RecipeItem{req("food", 1, 1.0), req("ore", 2, 1.0)},
				Produces: []types.RecipeItem{req("metal", 2, 1.0)}},
			{Name: "AISmelter3", Priority: 3, Repeatable: false,
				Requires: []types.RecipeItem{req("food", 1, 1.0), req("ore", 1, 1.0)},
				Produces: []types.RecipeItem{req("metal", 1, 1.0)}},
		}
	case types.RoleBlacksmith:
		recipes = []types.Recipe{
			{Name: "AIForge1", Priority: 1, Repeatable: true,
				Requires: []types.RecipeItem{req("food", 1, 1.0), req("metal", 1, 1.0)},
				Produces: []types.RecipeItem{req("tools", 1, 1.0)}},
		}
	}

	return types.Buildings{Recipes: recipes, IdleTax: defaultIdleTax}
}

// DefaultInventory returns the starting inventory for a role.
func DefaultInventory(role types.Role) types.Inventory {
	items := map[string]types.InventoryItem{}

	switch role {
	case types.RoleFarmer:
		items = map[string]types.InventoryItem{
			"food": item(0), "tools": item(1), "wood": item(1), "fertilizer": item(1),
		}
	case types.RoleWoodcutter:
		items = map[string]types.InventoryItem{
			"food": item(1), "tools": item(1), "wood": item(0),
		}
	case types.RoleComposter:
		items = map[string]types.InventoryItem{
			"food": item(1), "fertilizer": item(0),
		}
	case types.RoleMiner:
		items = map[string]types.InventoryItem{
			"food": item(1), "tools": item(1), "ore": item(0),
		}
	case types.RoleRefiner:
		items = map[string]types.InventoryItem{
			"food": item(1), "tools": item(1), "ore": item(1), "metal": item(0),
		}
	case types.RoleBlacksmith:
		items = map[string]types.InventoryItem{
			"food": item(1), "tools": item(0), "metal": item(1),
		}
	}

	return types.Inventory{Capacity: defaultCapacity, Cash: decimal.NewFromInt(100), Items: items}
}

// DefaultCommodities is the canonical commodity registry (spec GLOSSARY):
// six commodities, each produced by exactly one role.
func DefaultCommodities() []types.Commodity {
	one := decimal.NewFromInt(1)
	return []types.Commodity{
		{Name: "food", UnitSize: one, MarketID: 1, Producer: types.RoleFarmer},
		{Name: "fertilizer", UnitSize: one, MarketID: 2, Producer: types.RoleComposter},
		{Name: "wood", UnitSize: one, MarketID: 3, Producer: types.RoleWoodcutter},
		{Name: "ore", UnitSize: one, MarketID: 4, Producer: types.RoleMiner},
		{Name: "metal", UnitSize: one, MarketID: 5, Producer: types.RoleRefiner},
		{Name: "tools", UnitSize: one, MarketID: 6, Producer: types.RoleBlacksmith},
	}
}
