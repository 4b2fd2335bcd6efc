package game

import (
	"time"

	"go.uber.org/zap"

	"mmo-avatar/internal/content"
)

// CraftStatus is the crafting sub-state.
type CraftStatus uint8

const (
	CraftNone CraftStatus = iota
	CraftInProgress
	CraftSuccess
	CraftFailed
)

func (s CraftStatus) String() string {
	switch s {
	case CraftNone:
		return "none"
	case CraftInProgress:
		return "in_progress"
	case CraftSuccess:
		return "success"
	case CraftFailed:
		return "failed"
	}
	return "unknown"
}

// Crafting is the craft currently running or last finished.
type Crafting struct {
	Status  CraftStatus
	Recipe  string
	Indices []int
	End     time.Duration
}

// ingredients collects the items referenced by indices. Returns false on
// any invalid, duplicate or empty reference, or if none is set.
func ingredients(w *World, a *Avatar, indices []int) ([]content.ItemAmount, bool) {
	var out []content.ItemAmount
	seen := make(map[int]bool, len(indices))
	for _, idx := range indices {
		if idx == -1 {
			continue
		}
		if !a.validInventoryIndex(idx) || seen[idx] || a.Inventory[idx].Empty() {
			return nil, false
		}
		seen[idx] = true
		def, err := w.Catalog.Item(a.Inventory[idx].Hash)
		if err != nil {
			return nil, false
		}
		out = append(out, content.ItemAmount{Item: def.Name, Amount: a.Inventory[idx].Amount})
	}
	return out, len(out) > 0
}

// Craft starts crafting Recipe from the inventory slots in Indices. The
// stacks referenced must add up to the recipe's ingredients exactly; -1
// marks an unused slot.
type Craft struct {
	Recipe  string
	Indices []int
}

func (Craft) Name() string { return "craft" }
func (Craft) allowed() stateSet { return freeStates }
func (c Craft) execute(w *World, a *Avatar) Reason {
	if len(c.Indices) != w.Rules.RecipeSize {
		return ReasonIndex
	}
	for _, idx := range c.Indices {
		if idx < -1 || idx >= len(a.Inventory) {
			return ReasonIndex
		}
	}
	ings, ok := ingredients(w, a, c.Indices)
	if !ok {
		return ReasonIndex
	}
	recipe, err := w.Catalog.MatchRecipe(ings)
	if err != nil || recipe.Name != c.Recipe {
		return ReasonContent
	}
	result, err := w.Catalog.ItemByName(recipe.Result)
	if err != nil {
		return ReasonContent
	}
	if !a.CanAdd(result.Hash, 1) {
		return ReasonResources
	}
	a.Craft = Crafting{
		Status:  CraftInProgress,
		Recipe:  recipe.Name,
		Indices: append([]int(nil), c.Indices...),
		End:     w.Now() + content.Seconds(recipe.CraftingTime),
	}
	a.Flags.Raise(FlagCraftingStarted)
	return ReasonOK
}

// resolveCraft finishes the running craft: ingredients are used up and the
// result is added with the recipe's probability.
func resolveCraft(w *World, a *Avatar) {
	if a.Craft.Status != CraftInProgress {
		return
	}
	recipe, err := w.Catalog.Recipe(a.Craft.Recipe)
	ings, ok := ingredients(w, a, a.Craft.Indices)
	if err == nil && ok {
		var matched *content.RecipeDefinition
		matched, err = w.Catalog.MatchRecipe(ings)
		ok = err == nil && matched.Name == recipe.Name
	}
	if err != nil || !ok {
		a.Craft.Status = CraftFailed
		a.notify("craft", a.Craft.Status.String())
		w.Log.Warn("craft ingredients changed", zap.String("avatar", a.name), zap.String("recipe", a.Craft.Recipe))
		return
	}
	for _, idx := range a.Craft.Indices {
		if idx >= 0 {
			a.Inventory[idx] = ItemStack{}
		}
	}
	if w.Rand.Float64() < recipe.Probability {
		a.InventoryAdd(content.StableHash(recipe.Result), 1)
		a.Craft.Status = CraftSuccess
	} else {
		a.Craft.Status = CraftFailed
	}
	w.record(EventTypeCraft, a.name, CraftPayload{Recipe: recipe.Name, Success: a.Craft.Status == CraftSuccess})
	a.notify("craft", a.Craft.Status.String())
}

// abortCraft drops a running craft without touching the ingredients.
func abortCraft(a *Avatar) {
	if a.Craft.Status == CraftInProgress {
		a.Craft.Status = CraftNone
	}
}
