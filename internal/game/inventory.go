package game

// maxStack is the stack limit of an item, 1 for unknown items.
func (a *Avatar) maxStack(hash uint64) int {
	def, err := a.world.Catalog.Item(hash)
	if err != nil || def.MaxStack < 1 {
		return 1
	}
	return def.MaxStack
}

// SlotsFree counts empty inventory slots.
func (a *Avatar) SlotsFree() int {
	n := 0
	for _, s := range a.Inventory {
		if s.Empty() {
			n++
		}
	}
	return n
}

// Count sums the amount of an item over all inventory slots.
func (a *Avatar) Count(hash uint64) int {
	n := 0
	for _, s := range a.Inventory {
		if !s.Empty() && s.Hash == hash {
			n += s.Amount
		}
	}
	return n
}

// CanAdd reports whether amount of an item fits, topping up existing stacks
// first.
func (a *Avatar) CanAdd(hash uint64, amount int) bool {
	limit := a.maxStack(hash)
	for _, s := range a.Inventory {
		if s.Empty() {
			amount -= limit
		} else if s.Hash == hash {
			amount -= limit - s.Amount
		}
		if amount <= 0 {
			return true
		}
	}
	return amount <= 0
}

// InventoryAdd stores amount of an item, or nothing if it does not fit.
func (a *Avatar) InventoryAdd(hash uint64, amount int) bool {
	if amount <= 0 || !a.CanAdd(hash, amount) {
		return false
	}
	limit := a.maxStack(hash)
	for i := range a.Inventory {
		s := &a.Inventory[i]
		if s.Empty() || s.Hash != hash || s.Amount >= limit {
			continue
		}
		put := min(limit-s.Amount, amount)
		s.Amount += put
		amount -= put
		if amount == 0 {
			return true
		}
	}
	for i := range a.Inventory {
		s := &a.Inventory[i]
		if !s.Empty() {
			continue
		}
		put := min(limit, amount)
		*s = ItemStack{Hash: hash, Amount: put}
		amount -= put
		if amount == 0 {
			return true
		}
	}
	return amount == 0
}

// InventoryRemove takes amount of an item, or nothing if there is not
// enough.
func (a *Avatar) InventoryRemove(hash uint64, amount int) bool {
	if amount <= 0 || a.Count(hash) < amount {
		return false
	}
	for i := range a.Inventory {
		s := &a.Inventory[i]
		if s.Empty() || s.Hash != hash {
			continue
		}
		take := min(s.Amount, amount)
		s.Amount -= take
		amount -= take
		if s.Amount == 0 {
			*s = ItemStack{}
		}
		if amount == 0 {
			break
		}
	}
	return true
}

func (a *Avatar) validInventoryIndex(i int) bool { return i >= 0 && i < len(a.Inventory) }
func (a *Avatar) validEquipmentIndex(i int) bool { return i >= 0 && i < len(a.Equipment) }
