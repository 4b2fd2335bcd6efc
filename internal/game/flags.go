package game

// Flag is a one-shot command request raised by the gate and consumed by the
// state machine.
type Flag uint8

const (
	FlagCancelAction Flag = 1 << iota
	FlagRespawn
	FlagCraftingStarted
)

func (f Flag) String() string {
	switch f {
	case FlagCancelAction:
		return "cancel_action"
	case FlagRespawn:
		return "respawn"
	case FlagCraftingStarted:
		return "crafting_started"
	default:
		return "unknown"
	}
}

// Flags holds pending one-shot requests. Raising a flag twice before it is
// read still yields a single consumption.
type Flags struct {
	set Flag
}

// Raise marks f pending.
func (fs *Flags) Raise(f Flag) { fs.set |= f }

// Take reports whether f was pending and clears it.
func (fs *Flags) Take(f Flag) bool {
	ok := fs.set&f != 0
	fs.set &^= f
	return ok
}

// Pending reports whether f is raised without consuming it.
func (fs *Flags) Pending(f Flag) bool { return fs.set&f != 0 }

// Clear drops every pending flag.
func (fs *Flags) Clear() { fs.set = 0 }
