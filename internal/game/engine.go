package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"mmo-avatar/internal/clock"
	"mmo-avatar/internal/content"
	"mmo-avatar/internal/game/spatial"
	"mmo-avatar/internal/movement"
	"mmo-avatar/internal/world"
)

var (
	ErrEngineFull    = errors.New("game: engine full")
	ErrEngineStopped = errors.New("game: engine stopped")
	ErrInvalidName   = errors.New("game: invalid avatar name")
)

// Store persists avatars between sessions. found is false for a name that
// was never saved.
type Store interface {
	Load(ctx context.Context, name string) (snap AvatarSnapshot, found bool, err error)
	Save(ctx context.Context, snap AvatarSnapshot) error
}

// Outbox delivers per-avatar traffic. It is called on the tick goroutine
// and must not block; msgs is only valid during the call.
type Outbox interface {
	Deliver(avatar string, msgs []movement.Message, notices []Notice)
}

// Metrics receives simulation measurements.
type Metrics interface {
	Tick(d time.Duration)
	Online(n int)
	Transition(from, to State)
	Command(name string, r Reason)
	Sync(teleports, resets, corrections uint64)
	InboxDropped(n uint64)
	PersistError(op string)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) Tick(time.Duration) {}
func (NopMetrics) Online(int) {}
func (NopMetrics) Transition(_, _ State) {}
func (NopMetrics) Command(string, Reason) {}
func (NopMetrics) Sync(_, _, _ uint64) {}
func (NopMetrics) InboxDropped(uint64) {}
func (NopMetrics) PersistError(string) {}

// ResourceLimits defines hard caps to prevent DoS attacks
type ResourceLimits struct {
	MaxAvatars int // avatars online at once
	InboxSize  int // queued commands across all avatars
	MaxName    int // avatar name length
}

// DefaultLimits provides production-safe default limits
var DefaultLimits = ResourceLimits{
	MaxAvatars: 1000,
	InboxSize:  4096,
	MaxName:    32,
}

// Config tunes an engine.
type Config struct {
	Rules            Rules
	Limits           ResourceLimits
	AutosaveInterval time.Duration // 0 disables autosave
	SaveTimeout      time.Duration
	Seed             int64 // 0 seeds from the wall clock
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Rules:            DefaultRules(),
		Limits:           DefaultLimits,
		AutosaveInterval: 5 * time.Minute,
		SaveTimeout:      5 * time.Second,
	}
}

// Deps are the collaborators an engine runs with. Store, Outbox, Metrics,
// Clock and Journal are optional.
type Deps struct {
	Zone    *world.Zone
	Catalog *content.Catalog
	Store   Store
	Outbox  Outbox
	Metrics Metrics
	Clock   clock.Clock
	Journal *Journal
	Log     *zap.Logger
}

type joinResult struct {
	id  EntityID
	err error
}

type joinRequest struct {
	name  string
	snap  AvatarSnapshot
	found bool
	reply chan joinResult
}

// Engine owns the zone and runs the tick loop. All simulation state is
// mutated on the tick goroutine only; other goroutines talk to it through
// Join, Leave, Submit and the published WorldView.
type Engine struct {
	cfg     Config
	world   *World
	zone    *world.Zone
	machine *Machine
	gate    *Gate
	caster  *Caster
	inbox   *Inbox
	parties *PartyManager
	store   Store
	outbox  Outbox
	metrics Metrics
	log     *zap.Logger
	clock   *clock.Frozen

	grid *spatial.Grid

	joins  chan joinRequest
	leaves chan string

	view     atomic.Pointer[WorldView]
	sequence uint64

	tickCount uint64
	nextSync  time.Duration
	nextSave  time.Duration
	dropped   uint64

	// per tick scratch
	msgs    []movement.Message
	batches map[EntityID][]movement.Message
	notices map[EntityID][]Notice

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	doneChan chan struct{}
	saves    sync.WaitGroup
}

// NewEngine creates an engine with the map's monsters spawned. Background
// work starts only with Start.
func NewEngine(cfg Config, deps Deps) (*Engine, error) {
	if deps.Zone == nil || deps.Catalog == nil {
		return nil, fmt.Errorf("game: engine needs a zone and a catalog")
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = clock.NewMonotonic()
	}
	if deps.Metrics == nil {
		deps.Metrics = NopMetrics{}
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	if cfg.SaveTimeout <= 0 {
		cfg.SaveTimeout = 5 * time.Second
	}
	if r := deps.Zone.ObserverRange(); r > 0 {
		cfg.Rules.ObserverRange = r
	}

	log := deps.Log.Named("engine")
	parties := NewPartyManager()
	frozen := clock.NewFrozen(deps.Clock)
	w := &World{
		Registry: NewRegistry(),
		Catalog:  deps.Catalog,
		Clock:    frozen,
		Terrain:  deps.Zone,
		Parties:  parties,
		Rules:    cfg.Rules,
		Rand:     rand.New(rand.NewSource(cfg.Seed)),
		Log:      log,
		Journal:  deps.Journal,
	}
	caster := NewCaster(w)
	m := deps.Zone.Map()
	e := &Engine{
		cfg:      cfg,
		world:    w,
		zone:     deps.Zone,
		machine:  NewMachine(w, caster, deps.Metrics),
		gate:     NewGate(w, deps.Metrics),
		caster:   caster,
		inbox:    NewInbox(cfg.Limits.InboxSize, log),
		parties:  parties,
		store:    deps.Store,
		outbox:   deps.Outbox,
		metrics:  deps.Metrics,
		log:      log,
		clock:    frozen,
		grid:     spatial.NewGrid(m.Width, m.Height, cfg.Rules.ObserverRange),
		joins:    make(chan joinRequest),
		leaves:   make(chan string, 256),
		batches:  make(map[EntityID][]movement.Message),
		notices:  make(map[EntityID][]Notice),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
	for _, ms := range m.Monsters {
		def, err := deps.Catalog.Monster(ms.Monster)
		if err != nil {
			return nil, fmt.Errorf("spawn monster: %w", err)
		}
		w.Registry.AddMonster(NewMonster(w.Registry.NextID(), def, movement.Vec2{X: ms.X, Y: ms.Y}))
	}
	for _, ns := range m.Npcs {
		def, err := deps.Catalog.Npc(ns.Npc)
		if err != nil {
			return nil, fmt.Errorf("spawn npc: %w", err)
		}
		n := NewNpc(w.Registry.NextID(), def, movement.Vec2{X: ns.X, Y: ns.Y})
		if ns.TeleportTo != "" {
			dest, ok := deps.Zone.SpawnPoint(ns.TeleportTo)
			if !ok {
				return nil, fmt.Errorf("spawn npc %q: unknown teleport destination %q", ns.Npc, ns.TeleportTo)
			}
			n.SetTeleport(dest)
		}
		w.Registry.AddNpc(n)
	}
	e.nextSave = w.Now() + cfg.AutosaveInterval
	e.publish()
	return e, nil
}

// World exposes the simulation state for tests and tools running on the
// tick goroutine.
func (e *Engine) World() *World { return e.world }

// Parties exposes party membership for concurrent readers.
func (e *Engine) Parties() *PartyManager { return e.parties }

// Journal returns the event journal, possibly nil.
func (e *Engine) Journal() *Journal { return e.world.Journal }

// Zone returns the map the engine runs on.
func (e *Engine) Zone() *world.Zone { return e.zone }

// View returns the latest published world view.
func (e *Engine) View() *WorldView { return e.view.Load() }

// Start begins the tick loop.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return
	}
	e.running = true
	go e.loop()
	e.log.Info("engine started", zap.Duration("tick", e.cfg.Rules.TickInterval))
}

// Stop ends the tick loop, saves every online avatar and waits for saves in
// flight.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	close(e.stopChan)
	e.mu.Unlock()

	<-e.doneChan
	e.saves.Wait()
	e.log.Info("engine stopped", zap.Uint64("ticks", e.tickCount))
}

func (e *Engine) loop() {
	defer close(e.doneChan)
	ticker := time.NewTicker(e.cfg.Rules.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			e.tick()
		case <-e.stopChan:
			e.clock.Freeze()
			for _, a := range e.world.Registry.Avatars() {
				e.remove(a)
			}
			return
		}
	}
}

// Join loads and admits an avatar, returning its entity id. The snapshot is
// loaded off the tick; admission happens at the start of the next tick.
func (e *Engine) Join(ctx context.Context, name string) (EntityID, error) {
	if name == "" || len(name) > e.cfg.Limits.MaxName {
		return 0, ErrInvalidName
	}
	req := joinRequest{name: name, reply: make(chan joinResult, 1)}
	if e.store != nil {
		snap, found, err := e.store.Load(ctx, name)
		if err != nil {
			e.metrics.PersistError("load")
			return 0, fmt.Errorf("load avatar %q: %w", name, err)
		}
		req.snap, req.found = snap, found
	}
	select {
	case e.joins <- req:
	case <-e.stopChan:
		return 0, ErrEngineStopped
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case res := <-req.reply:
		return res.id, res.err
	case <-ctx.Done():
		// the avatar may still be admitted; the caller's Leave cleans up
		return 0, ctx.Err()
	}
}

// Leave saves and removes the named avatar at the next tick.
func (e *Engine) Leave(name string) {
	select {
	case e.leaves <- name:
	case <-e.stopChan:
	}
}

// Submit queues a command for the next tick. Returns false if dropped.
func (e *Engine) Submit(name string, cmd Command) bool {
	return e.inbox.Enqueue(Envelope{Avatar: name, Cmd: cmd})
}

// admit adds an avatar to the registry.
func (e *Engine) admit(name string, snap AvatarSnapshot, found bool) (EntityID, error) {
	w := e.world
	if _, taken := w.Registry.AvatarByName(name); taken {
		return 0, ErrNameTaken
	}
	if w.Registry.Len() >= e.cfg.Limits.MaxAvatars {
		e.log.Warn("avatar limit reached", zap.Int("limit", e.cfg.Limits.MaxAvatars), zap.String("avatar", name))
		return 0, ErrEngineFull
	}
	id := w.Registry.NextID()
	var a *Avatar
	if found {
		a = RestoreAvatar(w, id, snap)
	} else {
		spawn, err := w.Terrain.NearestSpawn(movement.Vec2{})
		if err != nil {
			return 0, err
		}
		a = NewAvatar(w, id, name, spawn)
	}
	if err := w.Registry.AddAvatar(a); err != nil {
		return 0, err
	}
	w.record(EventTypeLogin, name, SessionPayload{Entity: uint32(id), Level: a.Level})
	e.log.Info("avatar joined", zap.String("avatar", name), zap.Uint32("id", uint32(id)), zap.Bool("restored", found))
	return id, nil
}

// remove takes an avatar out of the world and saves it.
func (e *Engine) remove(a *Avatar) {
	w := e.world
	if a.State == StateTrading {
		cleanupTrade(w, a)
	}
	_ = e.parties.Leave(a.name)
	snap := Snapshot(w, a)
	w.Registry.Remove(a.id)
	w.record(EventTypeLogout, a.name, SessionPayload{Entity: uint32(a.id), Level: a.Level})
	e.log.Info("avatar left", zap.String("avatar", a.name))
	e.save(snap)
}

// save writes a snapshot off the tick goroutine.
func (e *Engine) save(snap AvatarSnapshot) {
	if e.store == nil {
		return
	}
	e.saves.Add(1)
	go func() {
		defer e.saves.Done()
		ctx, cancel := context.WithTimeout(context.Background(), e.cfg.SaveTimeout)
		defer cancel()
		if err := e.store.Save(ctx, snap); err != nil {
			e.metrics.PersistError("save")
			e.log.Error("save failed", zap.String("avatar", snap.Name), zap.Error(err))
		}
	}()
}

// lifecycle processes leaves and then admits pending joins without blocking.
// Leaves go first so a quick reconnect finds its old avatar gone.
func (e *Engine) lifecycle() {
	for drained := false; !drained; {
		select {
		case name := <-e.leaves:
			if a, ok := e.world.Registry.AvatarByName(name); ok {
				e.remove(a)
			}
		default:
			drained = true
		}
	}
	for {
		select {
		case req := <-e.joins:
			id, err := e.admit(req.name, req.snap, req.found)
			req.reply <- joinResult{id: id, err: err}
		default:
			return
		}
	}
}

// tick advances the simulation by one fixed step.
func (e *Engine) tick() {
	start := time.Now()
	w := e.world
	e.clock.Freeze()
	e.tickCount++
	if w.Journal != nil {
		w.Journal.SetTick(e.tickCount)
	}

	e.lifecycle()
	e.inbox.Drain(func(env Envelope) {
		if a, ok := w.Registry.AvatarByName(env.Avatar); ok {
			e.gate.Execute(a, env.Cmd)
		}
	})

	dt := w.Rules.TickInterval.Seconds()
	for _, a := range w.Registry.Avatars() {
		a.agent.Step(dt)
		a.sync.ServerUpdate()
		a.expireBuffs(w.Clock)
		e.machine.Tick(a)
	}
	for _, m := range w.Registry.Monsters() {
		m.update(w)
	}

	e.grid.Clear()
	for _, a := range w.Registry.Avatars() {
		p := a.Position()
		e.grid.Insert(uint32(a.id), p.X, p.Y)
	}

	periodic := clock.Elapsed(w.Clock, e.nextSync)
	if periodic {
		e.nextSync = w.Now() + w.Rules.SyncInterval
	}
	e.deliver(periodic)
	if periodic {
		e.publish()
	}

	if e.cfg.AutosaveInterval > 0 && clock.Elapsed(w.Clock, e.nextSave) {
		e.nextSave = w.Now() + e.cfg.AutosaveInterval
		for _, a := range w.Registry.Avatars() {
			e.save(Snapshot(w, a))
		}
		e.log.Debug("autosave", zap.Int("avatars", w.Registry.Len()))
	}

	if d := e.inbox.Stats().Dropped; d > e.dropped {
		e.metrics.InboxDropped(d - e.dropped)
		e.dropped = d
	}
	e.metrics.Online(w.Registry.Len())
	e.metrics.Tick(time.Since(start))
}

// deliver routes movement messages and notices. Owner messages go to the
// owner; observer messages go to every avatar within observer range.
func (e *Engine) deliver(periodic bool) {
	w := e.world
	for id := range e.batches {
		e.batches[id] = e.batches[id][:0]
	}
	clear(e.notices)

	rangeSq := w.Rules.ObserverRange * w.Rules.ObserverRange
	for _, a := range w.Registry.Avatars() {
		e.countSync(a)
		e.msgs = a.sync.Flush(e.msgs[:0], periodic)
		if n := a.TakeNotices(); len(n) > 0 {
			e.notices[a.id] = n
		}
		if len(e.msgs) == 0 {
			continue
		}
		pos := a.Position()
		for _, msg := range e.msgs {
			if msg.Audience == movement.ToOwner {
				e.batches[a.id] = append(e.batches[a.id], msg)
				continue
			}
			for _, id := range e.grid.QueryRadius(pos.X, pos.Y, w.Rules.ObserverRange) {
				o, ok := w.Registry.Avatar(EntityID(id))
				if !ok {
					continue
				}
				d := o.Position().Sub(pos)
				if d.Dot(d) <= rangeSq {
					e.batches[o.id] = append(e.batches[o.id], msg)
				}
			}
		}
	}
	if e.outbox == nil {
		return
	}
	for _, a := range w.Registry.Avatars() {
		msgs, notices := e.batches[a.id], e.notices[a.id]
		if len(msgs) == 0 && len(notices) == 0 {
			continue
		}
		e.outbox.Deliver(a.name, msgs, notices)
	}
	for id := range e.batches {
		if _, ok := w.Registry.Avatar(id); !ok {
			delete(e.batches, id)
		}
	}
}

// countSync reports synchronizer counters accumulated since the last tick
// and journals server detected teleports.
func (e *Engine) countSync(a *Avatar) {
	st := a.sync.Stats()
	seen := a.syncSeen
	a.syncSeen = st
	teleports, resets, corrections := st.Teleports-seen.Teleports, st.Resets-seen.Resets, st.Corrections-seen.Corrections
	if teleports == 0 && resets == 0 && corrections == 0 {
		return
	}
	e.metrics.Sync(teleports, resets, corrections)
	if teleports > 0 {
		p := a.Position()
		e.world.record(EventTypeTeleport, a.name, TeleportPayload{Entity: uint32(a.id), X: p.X, Y: p.Y})
		e.log.Warn("teleport detected", zap.String("avatar", a.name), zap.Float64("x", p.X), zap.Float64("y", p.Y))
	}
}

// publish builds and swaps in a fresh world view.
func (e *Engine) publish() {
	w := e.world
	e.sequence++
	v := &WorldView{
		Sequence:  e.sequence,
		Timestamp: time.Now(),
		Tick:      e.tickCount,
		Grid:      e.grid.Stats(),
		Inbox:     e.inbox.Stats(),
	}
	avatars := w.Registry.Avatars()
	v.Avatars = make([]AvatarView, 0, len(avatars))
	for _, a := range avatars {
		v.Avatars = append(v.Avatars, viewAvatar(w, a))
	}
	monsters := w.Registry.Monsters()
	v.Monsters = make([]MonsterView, 0, len(monsters))
	for _, m := range monsters {
		v.Monsters = append(v.Monsters, viewMonster(m))
	}
	npcs := w.Registry.Npcs()
	v.Npcs = make([]NpcView, 0, len(npcs))
	for _, n := range npcs {
		v.Npcs = append(v.Npcs, viewNpc(n))
	}
	e.view.Store(v)
}
