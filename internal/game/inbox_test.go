package game

import (
	"testing"

	"go.uber.org/zap"
)

// TestInboxDrainOrder tests that commands come out in arrival order.
func TestInboxDrainOrder(t *testing.T) {
	q := NewInbox(8, zap.NewNop())
	q.Enqueue(Envelope{Avatar: "alice", Cmd: CancelAction{}})
	q.Enqueue(Envelope{Avatar: "bob", Cmd: SetTarget{Entity: 3}})
	q.Enqueue(Envelope{Avatar: "alice", Cmd: Respawn{}})

	var names []string
	if n := q.Drain(func(env Envelope) { names = append(names, env.Avatar+":"+env.Cmd.Name()) }); n != 3 {
		t.Errorf("Expected 3 drained, got %d", n)
	}
	want := []string{"alice:cancel_action", "bob:set_target", "alice:respawn"}
	for i := range want {
		if i >= len(names) || names[i] != want[i] {
			t.Fatalf("Expected %v, got %v", want, names)
		}
	}
	if n := q.Drain(func(Envelope) {}); n != 0 {
		t.Errorf("Expected an empty inbox, got %d", n)
	}
}

// TestInboxFull verifies commands are dropped once the buffer is full.
func TestInboxFull(t *testing.T) {
	q := NewInbox(2, zap.NewNop())
	for i := 0; i < 2; i++ {
		if !q.Enqueue(Envelope{Avatar: "alice", Cmd: CancelAction{}}) {
			t.Fatalf("Expected command %d queued", i)
		}
	}
	if q.Enqueue(Envelope{Avatar: "alice", Cmd: CancelAction{}}) {
		t.Error("Expected the third command dropped")
	}
	s := q.Stats()
	if s.Enqueued != 2 || s.Dropped != 1 || s.Pending != 2 || s.BufferSize != 2 {
		t.Errorf("Unexpected stats %+v", s)
	}
	if s.BufferUsagePct != 100 {
		t.Errorf("Expected 100%% usage, got %v", s.BufferUsagePct)
	}
}

// TestDrainDefersLateCommands verifies commands enqueued during a drain wait
// for the next one.
func TestDrainDefersLateCommands(t *testing.T) {
	q := NewInbox(8, zap.NewNop())
	q.Enqueue(Envelope{Avatar: "alice", Cmd: CancelAction{}})
	n := q.Drain(func(Envelope) {
		q.Enqueue(Envelope{Avatar: "alice", Cmd: CancelAction{}})
	})
	if n != 1 || q.Stats().Pending != 1 {
		t.Errorf("Expected 1 drained and 1 pending, got %d and %d", n, q.Stats().Pending)
	}
}
