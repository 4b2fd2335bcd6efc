package game

import (
	"encoding/json"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// EventType classifies journal entries.
type EventType uint8

const (
	EventTypeUnknown EventType = iota
	EventTypeStateChange
	EventTypeDamage
	EventTypeDeath
	EventTypeRespawn
	EventTypeTrade
	EventTypeCraft
	EventTypeLogin
	EventTypeLogout
	EventTypeTeleport
)

// JournalVersion is bumped when entry payloads change shape.
const JournalVersion uint8 = 1

const (
	JournalBufferSize   = 1024                   // entries kept in memory
	MaxEntriesPerSec    = 10000                  // global rate limit
	MaxEntriesPerActor  = 100                    // per-actor rate limit per second
	JournalFlushSize    = 64                     // entries per batch write
	JournalFlushEvery   = 100 * time.Millisecond // how often to flush
	ActorLimiterCleanup = 5 * time.Minute        // cleanup interval for actor limiters
)

func (t EventType) String() string {
	switch t {
	case EventTypeStateChange:
		return "state_change"
	case EventTypeDamage:
		return "damage"
	case EventTypeDeath:
		return "death"
	case EventTypeRespawn:
		return "respawn"
	case EventTypeTrade:
		return "trade"
	case EventTypeCraft:
		return "craft"
	case EventTypeLogin:
		return "login"
	case EventTypeLogout:
		return "logout"
	case EventTypeTeleport:
		return "teleport"
	default:
		return "unknown"
	}
}

func (t EventType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// JournalEntry is one recorded gameplay event.
type JournalEntry struct {
	Version   uint8           `json:"version"`
	Type      EventType       `json:"type"`
	Timestamp int64           `json:"timestamp"` // unix nano
	Sequence  uint64          `json:"sequence"`
	Tick      uint64          `json:"tick"`
	Actor     string          `json:"actor"`
	Payload   json.RawMessage `json:"payload"`
}

// Typed payloads

type StateChangePayload struct {
	Entity uint32 `json:"entity"`
	From   string `json:"from"`
	To     string `json:"to"`
	Event  string `json:"event"`
}

type DamagePayload struct {
	Attacker uint32 `json:"attacker"`
	Victim   uint32 `json:"victim"`
	Amount   int    `json:"amount"`
	Stunned  bool   `json:"stunned"`
	Killed   bool   `json:"killed"`
}

type DeathPayload struct {
	Entity         uint32 `json:"entity"`
	ExperienceLost int64  `json:"experienceLost"`
}

type RespawnPayload struct {
	Entity uint32  `json:"entity"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

type TradePayload struct {
	A      string `json:"a"`
	B      string `json:"b"`
	ItemsA int    `json:"itemsA"`
	ItemsB int    `json:"itemsB"`
	GoldA  int64  `json:"goldA"`
	GoldB  int64  `json:"goldB"`
}

type CraftPayload struct {
	Recipe  string `json:"recipe"`
	Success bool   `json:"success"`
}

type SessionPayload struct {
	Entity uint32 `json:"entity"`
	Level  int    `json:"level"`
}

type TeleportPayload struct {
	Entity uint32  `json:"entity"`
	Npc    string  `json:"npc,omitempty"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// Journal is a bounded, rate-limited gameplay event log. Recent entries
// stay in a ring buffer for the API; with a file configured they are also
// appended as newline-delimited JSON by a background writer.
type Journal struct {
	mu      sync.Mutex
	ring    [JournalBufferSize]JournalEntry
	seq     uint64 // entries ever accepted
	flushed uint64 // sequence written to the file

	tick atomic.Uint64

	// rate limiting
	globalLimiter *rate.Limiter
	actorLimiters sync.Map // map[string]*actorLimiterEntry

	// async writer
	writerWg sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
	running  atomic.Bool
	file     *os.File
	log      *zap.Logger

	dropped atomic.Uint64
}

type actorLimiterEntry struct {
	limiter  *rate.Limiter
	lastUsed atomic.Int64
}

// NewJournal creates a journal.
func NewJournal(log *zap.Logger) *Journal {
	if log == nil {
		log = zap.NewNop()
	}
	return &Journal{
		globalLimiter: rate.NewLimiter(MaxEntriesPerSec, MaxEntriesPerSec/10),
		stopChan:      make(chan struct{}),
		log:           log,
	}
}

// Start begins the background writer. An empty path keeps the journal in
// memory only.
func (j *Journal) Start(path string) error {
	if j.running.Load() {
		return nil
	}
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		j.file = f
	}
	j.running.Store(true)
	j.writerWg.Add(2)
	go j.writerLoop()
	go j.cleanupLoop()
	return nil
}

// Stop flushes and closes the journal.
func (j *Journal) Stop() {
	j.stopOnce.Do(func() {
		close(j.stopChan)
		if j.running.Load() {
			j.writerWg.Wait()
		}
		j.running.Store(false)
		if j.file != nil {
			j.file.Close()
		}
	})
}

// SetTick stamps subsequent entries with the simulation tick.
func (j *Journal) SetTick(n uint64) { j.tick.Store(n) }

// Emit records an event. Returns false when rate limited.
func (j *Journal) Emit(t EventType, actor string, payload any) bool {
	if !j.globalLimiter.Allow() {
		j.dropped.Add(1)
		return false
	}
	if actor != "" && !j.actorLimiter(actor).Allow() {
		j.dropped.Add(1)
		return false
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		j.log.Warn("journal payload not encodable", zap.Stringer("type", t), zap.Error(err))
		return false
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	j.seq++
	if j.seq-j.flushed > JournalBufferSize {
		// the writer fell behind; the oldest unwritten entry is overwritten
		j.flushed = j.seq - JournalBufferSize
		j.dropped.Add(1)
	}
	j.ring[j.seq%JournalBufferSize] = JournalEntry{
		Version:   JournalVersion,
		Type:      t,
		Timestamp: time.Now().UnixNano(),
		Sequence:  j.seq,
		Tick:      j.tick.Load(),
		Actor:     actor,
		Payload:   raw,
	}
	if j.file == nil {
		j.flushed = j.seq
	}
	return true
}

// Recent returns up to n of the newest entries, oldest first.
func (j *Journal) Recent(n int) []JournalEntry {
	if n <= 0 {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if n > JournalBufferSize {
		n = JournalBufferSize
	}
	if uint64(n) > j.seq {
		n = int(j.seq)
	}
	out := make([]JournalEntry, 0, n)
	for s := j.seq - uint64(n) + 1; s <= j.seq; s++ {
		out = append(out, j.ring[s%JournalBufferSize])
	}
	return out
}

// Dropped is the number of entries lost to rate limits or overflow.
func (j *Journal) Dropped() uint64 { return j.dropped.Load() }

// Total is the number of entries accepted.
func (j *Journal) Total() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.seq
}

func (j *Journal) actorLimiter(actor string) *rate.Limiter {
	now := time.Now().UnixNano()
	if v, ok := j.actorLimiters.Load(actor); ok {
		e := v.(*actorLimiterEntry)
		e.lastUsed.Store(now)
		return e.limiter
	}
	e := &actorLimiterEntry{limiter: rate.NewLimiter(MaxEntriesPerActor, MaxEntriesPerActor/10)}
	e.lastUsed.Store(now)
	v, _ := j.actorLimiters.LoadOrStore(actor, e)
	return v.(*actorLimiterEntry).limiter
}

// writerLoop batches entries to disk.
func (j *Journal) writerLoop() {
	defer j.writerWg.Done()

	ticker := time.NewTicker(JournalFlushEvery)
	defer ticker.Stop()

	batch := make([]JournalEntry, 0, JournalFlushSize)
	for {
		select {
		case <-j.stopChan:
			for {
				batch = j.collect(batch[:0])
				if len(batch) == 0 {
					return
				}
				j.write(batch)
			}
		case <-ticker.C:
			batch = j.collect(batch[:0])
			if len(batch) > 0 {
				j.write(batch)
			}
		}
	}
}

// cleanupLoop removes idle actor limiters.
func (j *Journal) cleanupLoop() {
	defer j.writerWg.Done()

	ticker := time.NewTicker(ActorLimiterCleanup)
	defer ticker.Stop()

	for {
		select {
		case <-j.stopChan:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-ActorLimiterCleanup).UnixNano()
			j.actorLimiters.Range(func(key, value any) bool {
				if value.(*actorLimiterEntry).lastUsed.Load() < cutoff {
					j.actorLimiters.Delete(key)
				}
				return true
			})
		}
	}
}

func (j *Journal) collect(batch []JournalEntry) []JournalEntry {
	j.mu.Lock()
	defer j.mu.Unlock()
	for j.flushed < j.seq && len(batch) < JournalFlushSize {
		j.flushed++
		batch = append(batch, j.ring[j.flushed%JournalBufferSize])
	}
	return batch
}

// write appends entries as newline-delimited JSON.
func (j *Journal) write(batch []JournalEntry) {
	if j.file == nil {
		return
	}
	for _, e := range batch {
		data, err := json.Marshal(e)
		if err != nil {
			continue
		}
		data = append(data, '\n')
		if _, err := j.file.Write(data); err != nil {
			j.log.Error("journal write failed", zap.Error(err))
			return
		}
	}
}
