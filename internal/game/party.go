package game

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InviteDuration is how long party invites last
const InviteDuration = 60 * time.Second

// MaxPartySize limits party membership
const MaxPartySize = 8

var (
	ErrPartyFull      = errors.New("party is full")
	ErrAlreadyInParty = errors.New("already in a party")
	ErrNotInParty     = errors.New("not in a party")
	ErrNotLeader      = errors.New("only the party leader can do that")
	ErrNoInvite       = errors.New("no valid invite")
)

// Party is a group of avatars sharing experience and gold.
type Party struct {
	ID      string   `json:"id"`
	Leader  string   `json:"leader"`
	Members []string `json:"members"` // leader first

	ShareExperience bool `json:"shareExperience"`
	ShareGold       bool `json:"shareGold"`

	// Pending invites (avatar name -> expiry on the simulation clock)
	invites map[string]time.Duration
}

// Contains reports whether name is a member.
func (p *Party) Contains(name string) bool {
	for _, m := range p.Members {
		if m == name {
			return true
		}
	}
	return false
}

// PartyDirectory is the party bookkeeping the simulation consults and the
// party commands drive.
type PartyDirectory interface {
	PartyOf(name string) (Party, bool)
	Invite(inviter, target string, now time.Duration) error
	Accept(name, leader string, now time.Duration) (Party, error)
	Decline(name, leader string) error
	Leave(name string) error
	Kick(leader, member string) error
	Dismiss(leader string) error
	SetExperienceShare(leader string, on bool) error
	SetGoldShare(leader string, on bool) error
}

func sameParty(d PartyDirectory, a, b string) bool {
	if d == nil || a == b {
		return false
	}
	p, ok := d.PartyOf(a)
	return ok && p.Contains(b)
}

// PartyManager handles party operations. Mutations happen on the tick;
// the lock lets the API read parties concurrently.
type PartyManager struct {
	mu       sync.RWMutex
	parties  map[string]*Party // party ID -> party
	byMember map[string]string // avatar name -> party ID
}

var _ PartyDirectory = (*PartyManager)(nil)

// NewPartyManager creates a new party manager
func NewPartyManager() *PartyManager {
	return &PartyManager{
		parties:  make(map[string]*Party),
		byMember: make(map[string]string),
	}
}

// PartyOf returns a copy of the party name belongs to.
func (pm *PartyManager) PartyOf(name string) (Party, bool) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	p, ok := pm.parties[pm.byMember[name]]
	if !ok {
		return Party{}, false
	}
	cp := *p
	cp.Members = append([]string(nil), p.Members...)
	cp.invites = nil
	return cp, true
}

// Invite records an invite from inviter to target, forming a party with
// inviter as leader if needed.
func (pm *PartyManager) Invite(inviter, target string, now time.Duration) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if _, ok := pm.byMember[target]; ok {
		return ErrAlreadyInParty
	}
	party, ok := pm.parties[pm.byMember[inviter]]
	if !ok {
		party = &Party{
			ID:              uuid.NewString(),
			Leader:          inviter,
			Members:         []string{inviter},
			ShareExperience: true,
			ShareGold:       true,
			invites:         make(map[string]time.Duration),
		}
		pm.parties[party.ID] = party
		pm.byMember[inviter] = party.ID
	}
	if party.Leader != inviter {
		return ErrNotLeader
	}
	if len(party.Members) >= MaxPartySize {
		return ErrPartyFull
	}

	// Clean expired invites
	for name, expiry := range party.invites {
		if now >= expiry {
			delete(party.invites, name)
		}
	}
	party.invites[target] = now + InviteDuration
	return nil
}

// Accept joins name to the party led by leader.
func (pm *PartyManager) Accept(name, leader string, now time.Duration) (Party, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if _, ok := pm.byMember[name]; ok {
		return Party{}, ErrAlreadyInParty
	}
	party, ok := pm.parties[pm.byMember[leader]]
	if !ok || party.Leader != leader {
		return Party{}, ErrNoInvite
	}
	expiry, invited := party.invites[name]
	if !invited || now >= expiry {
		return Party{}, ErrNoInvite
	}
	if len(party.Members) >= MaxPartySize {
		return Party{}, ErrPartyFull
	}

	delete(party.invites, name)
	party.Members = append(party.Members, name)
	pm.byMember[name] = party.ID
	cp := *party
	cp.Members = append([]string(nil), party.Members...)
	cp.invites = nil
	return cp, nil
}

// Decline drops the invite name holds from leader's party.
func (pm *PartyManager) Decline(name, leader string) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	party, ok := pm.parties[pm.byMember[leader]]
	if !ok || party.Leader != leader {
		return ErrNoInvite
	}
	if _, invited := party.invites[name]; !invited {
		return ErrNoInvite
	}
	delete(party.invites, name)
	return nil
}

// Leave removes name from its party. A party left with one member is
// disbanded; a departing leader hands over to the next member.
func (pm *PartyManager) Leave(name string) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if _, ok := pm.byMember[name]; !ok {
		return ErrNotInParty
	}
	pm.remove(name)
	return nil
}

// Kick removes member from the party led by leader.
func (pm *PartyManager) Kick(leader, member string) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	party, err := pm.ledBy(leader)
	if err != nil {
		return err
	}
	if member == leader || !party.Contains(member) {
		return ErrNotInParty
	}
	pm.remove(member)
	return nil
}

// Dismiss disbands the party led by leader.
func (pm *PartyManager) Dismiss(leader string) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	party, err := pm.ledBy(leader)
	if err != nil {
		return err
	}
	for _, m := range party.Members {
		delete(pm.byMember, m)
	}
	delete(pm.parties, party.ID)
	return nil
}

// SetExperienceShare turns experience sharing on or off.
func (pm *PartyManager) SetExperienceShare(leader string, on bool) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	party, err := pm.ledBy(leader)
	if err != nil {
		return err
	}
	party.ShareExperience = on
	return nil
}

// SetGoldShare turns gold sharing on or off.
func (pm *PartyManager) SetGoldShare(leader string, on bool) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	party, err := pm.ledBy(leader)
	if err != nil {
		return err
	}
	party.ShareGold = on
	return nil
}

// ledBy must be called with the lock held.
func (pm *PartyManager) ledBy(leader string) (*Party, error) {
	party, ok := pm.parties[pm.byMember[leader]]
	if !ok {
		return nil, ErrNotInParty
	}
	if party.Leader != leader {
		return nil, ErrNotLeader
	}
	return party, nil
}

// remove must be called with the lock held and name in a party.
func (pm *PartyManager) remove(name string) {
	id := pm.byMember[name]
	party := pm.parties[id]
	delete(pm.byMember, name)
	for i, m := range party.Members {
		if m == name {
			party.Members = append(party.Members[:i], party.Members[i+1:]...)
			break
		}
	}
	if len(party.Members) <= 1 {
		for _, m := range party.Members {
			delete(pm.byMember, m)
		}
		delete(pm.parties, id)
		return
	}
	if party.Leader == name {
		party.Leader = party.Members[0]
	}
}

// All returns copies of every party, ordered by leader name.
func (pm *PartyManager) All() []Party {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	out := make([]Party, 0, len(pm.parties))
	for _, p := range pm.parties {
		cp := *p
		cp.Members = append([]string(nil), p.Members...)
		cp.invites = nil
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Leader < out[j].Leader })
	return out
}
