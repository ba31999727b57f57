package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"watchparty/domain/entities"

	log "github.com/sirupsen/logrus"
)

// PartyScheduler drives auto watch parties. The registry owns its lifecycle.
type PartyScheduler interface {
	Start() error
	Stop() error
	ForceUpdate(ctx context.Context) error
	ForceUpdateReport(ctx context.Context) (string, error)
}

// WatchPartyRegistry holds every watch party by case-insensitive name
type WatchPartyRegistry struct {
	mu        sync.RWMutex
	parties   map[string]*WatchParty
	deps      PartyDependencies
	scheduler PartyScheduler
}

// NewWatchPartyRegistry creates an empty registry. All parties share deps, including the ledger.
func NewWatchPartyRegistry(deps PartyDependencies) *WatchPartyRegistry {
	return &WatchPartyRegistry{
		parties: make(map[string]*WatchParty),
		deps:    deps.withDefaults(),
	}
}

func registryKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Ledger returns the ledger shared by all parties
func (r *WatchPartyRegistry) Ledger() *Ledger {
	return r.deps.Ledger
}

// Now returns the registry clock's current time
func (r *WatchPartyRegistry) Now() time.Time {
	return r.deps.Clock()
}

// IsAdmin checks the shared admin capability
func (r *WatchPartyRegistry) IsAdmin(discordID int64) bool {
	return r.deps.Admins.IsAdmin(discordID)
}

// Create adds an auto watch party following a team or tournament
func (r *WatchPartyRegistry) Create(name string, autoType entities.AutoType, target string, isPublic bool) (*WatchParty, error) {
	party, err := NewAutoWatchParty(name, autoType, target, isPublic, r.deps)
	if err != nil {
		return nil, err
	}
	if err := r.add(party); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"watchParty": party.Name(),
		"autoType":   autoType,
		"target":     target,
		"isPublic":   isPublic,
	}).Info("Auto watch party created")
	return party, nil
}

// CreateManual adds a manually managed watch party. creator may be nil.
func (r *WatchPartyRegistry) CreateManual(name string, date time.Time, game string, isPublic bool, creator *int64) (*WatchParty, error) {
	party, err := NewManualWatchParty(name, date, game, isPublic, creator, r.deps)
	if err != nil {
		return nil, err
	}
	if err := r.add(party); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"watchParty": party.Name(),
		"game":       game,
		"isPublic":   isPublic,
	}).Info("Manual watch party created")
	return party, nil
}

func (r *WatchPartyRegistry) add(party *WatchParty) error {
	key := registryKey(party.Name())

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.parties[key]; exists {
		return entities.NewStateConflictError("watch party %s already exists", party.Name())
	}
	r.parties[key] = party
	return nil
}

// Get returns the party with the given name
func (r *WatchPartyRegistry) Get(name string) (*WatchParty, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	party, ok := r.parties[registryKey(name)]
	if !ok {
		return nil, entities.NewNotFoundError("watch party %s not found", name)
	}
	return party, nil
}

// ListAll returns every party sorted by name
func (r *WatchPartyRegistry) ListAll() []*WatchParty {
	r.mu.RLock()
	parties := make([]*WatchParty, 0, len(r.parties))
	for _, p := range r.parties {
		parties = append(parties, p)
	}
	r.mu.RUnlock()

	sort.Slice(parties, func(i, j int) bool {
		return registryKey(parties[i].Name()) < registryKey(parties[j].Name())
	})
	return parties
}

// AutoParties returns the parties driven by the match feed, sorted by name
func (r *WatchPartyRegistry) AutoParties() []*WatchParty {
	var auto []*WatchParty
	for _, p := range r.ListAll() {
		if p.IsAuto() {
			auto = append(auto, p)
		}
	}
	return auto
}

// Summaries returns a snapshot of every party
func (r *WatchPartyRegistry) Summaries() []entities.WatchPartySummary {
	parties := r.ListAll()
	summaries := make([]entities.WatchPartySummary, 0, len(parties))
	for _, p := range parties {
		summaries = append(summaries, p.Snapshot())
	}
	return summaries
}

// Remove deletes a party. Its active wager is canceled and all stakes refunded.
func (r *WatchPartyRegistry) Remove(name string) error {
	key := registryKey(name)

	r.mu.Lock()
	party, ok := r.parties[key]
	if ok {
		delete(r.parties, key)
	}
	r.mu.Unlock()

	if !ok {
		return entities.NewNotFoundError("watch party %s not found", name)
	}

	fields := log.Fields{"watchParty": party.Name()}
	if w := party.ActiveWager(); w != nil {
		refunded, err := w.Cancel()
		if err != nil {
			log.WithError(err).WithFields(fields).Warn("Failed to cancel wager of removed watch party")
		} else {
			fields["wagerID"] = w.ID()
			fields["refunded"] = refunded
		}
	}
	log.WithFields(fields).Info("Watch party removed")
	return nil
}

// AttachScheduler sets the scheduler started and stopped by the registry
func (r *WatchPartyRegistry) AttachScheduler(s PartyScheduler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scheduler = s
}

func (r *WatchPartyRegistry) currentScheduler() (PartyScheduler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.scheduler == nil {
		return nil, entities.NewStateConflictError("no match scheduler attached")
	}
	return r.scheduler, nil
}

// Start starts the attached scheduler
func (r *WatchPartyRegistry) Start() error {
	s, err := r.currentScheduler()
	if err != nil {
		return err
	}
	return s.Start()
}

// Shutdown stops the attached scheduler, if any
func (r *WatchPartyRegistry) Shutdown() error {
	r.mu.RLock()
	s := r.scheduler
	r.mu.RUnlock()
	if s == nil {
		return nil
	}
	return s.Stop()
}

// ForceUpdate runs one scheduler cycle synchronously
func (r *WatchPartyRegistry) ForceUpdate(ctx context.Context) error {
	s, err := r.currentScheduler()
	if err != nil {
		return err
	}
	return s.ForceUpdate(ctx)
}

// ForceUpdateReport runs one scheduler cycle and returns a per-party summary
func (r *WatchPartyRegistry) ForceUpdateReport(ctx context.Context) (string, error) {
	s, err := r.currentScheduler()
	if err != nil {
		return "", err
	}
	return s.ForceUpdateReport(ctx)
}
