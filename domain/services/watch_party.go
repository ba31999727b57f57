package services

import (
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"watchparty/domain/entities"
	"watchparty/domain/events"
	"watchparty/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

const (
	// DefaultJoinBonus is credited once per user per watch party
	DefaultJoinBonus int64 = 500

	// DefaultOpenWindow is how long before a match an auto watch party opens
	DefaultOpenWindow = 30 * time.Minute
)

// PartyDependencies are the collaborators shared by every watch party of a registry
type PartyDependencies struct {
	Ledger     *Ledger
	Admins     interfaces.AdminChecker
	Random     interfaces.RandomSource
	Publisher  interfaces.EventPublisher
	Metrics    interfaces.MetricsRecorder
	Clock      func() time.Time
	JoinBonus  int64
	OpenWindow time.Duration
}

func (d PartyDependencies) withDefaults() PartyDependencies {
	if d.Ledger == nil {
		d.Ledger = NewLedger(nil, d.Publisher)
	}
	if d.Admins == nil {
		d.Admins = NewStaticAdminChecker(nil)
	}
	if d.Random == nil {
		d.Random = NewLockedRandom(time.Now().UnixNano())
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.JoinBonus <= 0 {
		d.JoinBonus = DefaultJoinBonus
	}
	if d.OpenWindow <= 0 {
		d.OpenWindow = DefaultOpenWindow
	}
	return d
}

// WatchParty is a group watching a match together. It owns at most one active wager
// and serializes all mutations, including those of its wager, behind one lock.
type WatchParty struct {
	mu sync.Mutex

	name     string
	isPublic bool
	isAuto   bool
	creator  *int64

	date         time.Time
	game         string
	status       entities.WatchPartyStatus
	matchState   entities.MatchState
	participants map[int64]struct{}
	bonusClaimed map[int64]bool
	tickets      map[int64]map[entities.TicketType]struct{}
	activeWager  Wager
	autoConfig   *entities.AutoConfig

	ledger     *Ledger
	admins     interfaces.AdminChecker
	random     interfaces.RandomSource
	publisher  interfaces.EventPublisher
	metrics    interfaces.MetricsRecorder
	now        func() time.Time
	joinBonus  int64
	openWindow time.Duration

	outbox []events.Event
}

func newWatchParty(name string, isPublic bool, deps PartyDependencies) *WatchParty {
	deps = deps.withDefaults()
	return &WatchParty{
		name:         name,
		isPublic:     isPublic,
		matchState:   entities.MatchStatePreMatch,
		participants: make(map[int64]struct{}),
		bonusClaimed: make(map[int64]bool),
		tickets:      make(map[int64]map[entities.TicketType]struct{}),
		ledger:       deps.Ledger,
		admins:       deps.Admins,
		random:       deps.Random,
		publisher:    deps.Publisher,
		metrics:      deps.Metrics,
		now:          deps.Clock,
		joinBonus:    deps.JoinBonus,
		openWindow:   deps.OpenWindow,
	}
}

// NewAutoWatchParty creates a party driven by the match feed. It starts waiting.
func NewAutoWatchParty(name string, autoType entities.AutoType, target string, isPublic bool, deps PartyDependencies) (*WatchParty, error) {
	name = strings.TrimSpace(name)
	target = strings.TrimSpace(target)
	if name == "" {
		return nil, entities.NewValidationError("watch party name cannot be empty")
	}
	if !autoType.IsValid() {
		return nil, entities.NewValidationError("invalid auto type %q, must be team or tournament", autoType)
	}
	if target == "" {
		return nil, entities.NewValidationError("auto watch party needs a %s to follow", autoType)
	}

	p := newWatchParty(name, isPublic, deps)
	p.isAuto = true
	p.status = entities.WatchPartyStatusWaiting
	p.game = target
	p.autoConfig = &entities.AutoConfig{Type: autoType, Target: target}
	return p, nil
}

// NewManualWatchParty creates a party managed by hand. It starts open.
func NewManualWatchParty(name string, date time.Time, game string, isPublic bool, creator *int64, deps PartyDependencies) (*WatchParty, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, entities.NewValidationError("watch party name cannot be empty")
	}

	p := newWatchParty(name, isPublic, deps)
	p.status = entities.WatchPartyStatusOpen
	p.date = date
	p.game = strings.TrimSpace(game)
	if creator != nil {
		id := *creator
		p.creator = &id
		p.participants[id] = struct{}{}
	}
	return p, nil
}

// Name returns the party name
func (p *WatchParty) Name() string { return p.name }

// IsPublic reports whether the party uses the public ledger scope
func (p *WatchParty) IsPublic() bool { return p.isPublic }

// IsAuto reports whether the party is driven by the match feed
func (p *WatchParty) IsAuto() bool { return p.isAuto }

// Scope returns the ledger scope of the party
func (p *WatchParty) Scope() entities.LedgerScope {
	return entities.ScopeFor(p.isPublic, p.name)
}

// Status returns the current status
func (p *WatchParty) Status() entities.WatchPartyStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// MatchState returns the current match state
func (p *WatchParty) MatchState() entities.MatchState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.matchState
}

// IsParticipant checks if a user has joined
func (p *WatchParty) IsParticipant(discordID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.participants[discordID]
	return ok
}

// Participants returns the participant ids in ascending order
func (p *WatchParty) Participants() []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.participantsLocked()
}

func (p *WatchParty) participantsLocked() []int64 {
	ids := make([]int64, 0, len(p.participants))
	for id := range p.participants {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// AutoConfig returns a copy of the auto configuration, nil for manual parties
func (p *WatchParty) AutoConfig() *entities.AutoConfig {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.autoConfigLocked()
}

func (p *WatchParty) autoConfigLocked() *entities.AutoConfig {
	if p.autoConfig == nil {
		return nil
	}
	c := *p.autoConfig
	c.CurrentMatch = p.autoConfig.CurrentMatch.Clone()
	if p.autoConfig.LastChecked != nil {
		t := *p.autoConfig.LastChecked
		c.LastChecked = &t
	}
	return &c
}

// MarkChecked records when the scheduler last looked at this party
func (p *WatchParty) MarkChecked(at time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.autoConfig != nil {
		p.autoConfig.LastChecked = &at
	}
}

// UpdateStatus applies the next match found by the scheduler. next may be nil.
func (p *WatchParty) UpdateStatus(next *entities.Match) {
	p.mu.Lock()
	defer p.unlockAndFlush()

	if p.autoConfig == nil {
		log.WithField("watchParty", p.name).Warn("Ignoring status update for manual watch party")
		return
	}

	now := p.now()
	switch {
	case next == nil:
		if p.status == entities.WatchPartyStatusOpen {
			p.closeLocked("")
		}
	case next.IsPast(now):
		p.autoConfig.CurrentMatch = nil
		if p.status != entities.WatchPartyStatusClosed {
			p.closeLocked(next.ID)
		}
	default:
		match := next.Clone()
		p.autoConfig.CurrentMatch = match
		p.date = match.ScheduledTime
		// a manual pause survives while the feed still reports the match live
		if !(p.matchState == entities.MatchStatePaused && match.IsLive()) {
			p.matchState = entities.MatchStateFor(match.Status)
		}

		if match.IsStartingSoon(now, p.openWindow) && p.status != entities.WatchPartyStatusOpen {
			p.setStatusLocked(entities.WatchPartyStatusOpen, match.ID, nil)
		}
		if match.IsFinished() && p.status == entities.WatchPartyStatusOpen {
			p.closeLocked(match.ID)
		}
	}
}

// closeLocked closes the party, removes everyone but the creator and clears all tickets
func (p *WatchParty) closeLocked(matchID string) {
	var removed []int64
	for id := range p.participants {
		if p.creator != nil && id == *p.creator {
			continue
		}
		removed = append(removed, id)
		delete(p.participants, id)
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i] < removed[j] })
	p.tickets = make(map[int64]map[entities.TicketType]struct{})
	p.setStatusLocked(entities.WatchPartyStatusClosed, matchID, removed)
}

func (p *WatchParty) setStatusLocked(next entities.WatchPartyStatus, matchID string, removed []int64) {
	old := p.status
	p.status = next

	log.WithFields(log.Fields{
		"watchParty": p.name,
		"oldStatus":  old,
		"newStatus":  next,
		"matchID":    matchID,
		"removed":    len(removed),
	}).Info("Watch party status changed")

	if p.metrics != nil {
		p.metrics.RecordPartyStatusChange(next)
	}
	p.emit(events.WatchPartyStatusChangeEvent{
		WatchPartyName: p.name,
		OldStatus:      old,
		NewStatus:      next,
		MatchID:        matchID,
		Removed:        removed,
	})
}

// Join adds a user to the party and returns the join bonus credited, zero if it was already claimed.
// Auto parties only accept joins while open.
func (p *WatchParty) Join(discordID int64) (int64, error) {
	p.mu.Lock()
	defer p.unlockAndFlush()

	if p.isAuto && p.status != entities.WatchPartyStatusOpen {
		return 0, entities.NewStateConflictError("watch party %s is not open (status: %s)", p.name, p.status)
	}
	if _, ok := p.participants[discordID]; ok {
		return 0, entities.NewStateConflictError("you are already in watch party %s", p.name)
	}
	p.participants[discordID] = struct{}{}

	if p.bonusClaimed[discordID] {
		return 0, nil
	}
	p.bonusClaimed[discordID] = true
	p.ledger.credit(discordID, p.Scope(), p.joinBonus, Reason{
		Type:      entities.TransactionTypeJoinBonus,
		RelatedID: p.name,
		Metadata:  map[string]any{"watch_party": p.name},
	}, p.emit)

	log.WithFields(log.Fields{
		"watchParty": p.name,
		"userID":     discordID,
		"bonus":      p.joinBonus,
	}).Info("User joined watch party")
	return p.joinBonus, nil
}

// Leave removes a user and reports whether they were a participant
func (p *WatchParty) Leave(discordID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.participants[discordID]; !ok {
		return false
	}
	delete(p.participants, discordID)
	return true
}

// CreateWager installs w as the active wager
func (p *WatchParty) CreateWager(w Wager) error {
	p.mu.Lock()
	defer p.unlockAndFlush()

	if w == nil {
		return entities.NewValidationError("wager cannot be nil")
	}
	base := w.core()
	if base.party != p {
		return entities.NewValidationError("wager belongs to watch party %s", base.partyName)
	}
	if p.hasActiveWagerLocked() {
		return entities.NewStateConflictError("watch party %s already has an active wager", p.name)
	}
	if !p.admins.IsAdmin(base.creator) {
		return entities.NewUnauthorizedError("only admins can create wagers")
	}
	if base.state != entities.WagerStateVoting {
		return entities.NewStateConflictError("only a wager that is still voting can be started (state: %s)", base.state)
	}

	p.activeWager = w
	base.installed = true
	log.WithFields(log.Fields{
		"watchParty": p.name,
		"wagerID":    base.id,
		"kind":       base.kind,
		"creator":    base.creator,
	}).Info("Wager created")
	p.emit(events.WagerStateChangeEvent{
		WagerID:        base.id,
		WatchPartyName: p.name,
		Kind:           base.kind,
		NewState:       entities.WagerStateVoting,
	})
	return nil
}

// ActiveWager returns the voting or pending wager, nil if there is none
func (p *WatchParty) ActiveWager() Wager {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.hasActiveWagerLocked() {
		return nil
	}
	return p.activeWager
}

// HasActiveWager checks if a wager is voting or pending
func (p *WatchParty) HasActiveWager() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasActiveWagerLocked()
}

func (p *WatchParty) hasActiveWagerLocked() bool {
	return p.activeWager != nil && p.activeWager.core().state.IsActive()
}

// releaseWagerLocked drops the active wager reference once it reaches a terminal state
func (p *WatchParty) releaseWagerLocked(w *baseWager) {
	if p.activeWager != nil && p.activeWager.core() == w {
		p.activeWager = nil
	}
}

// GrantTicket gives a user a ticket of the given type
func (p *WatchParty) GrantTicket(discordID int64, ticket entities.TicketType) {
	p.mu.Lock()
	defer p.unlockAndFlush()
	p.grantTicketLocked(discordID, ticket)
}

func (p *WatchParty) grantTicketLocked(discordID int64, ticket entities.TicketType) {
	owned, ok := p.tickets[discordID]
	if !ok {
		owned = make(map[entities.TicketType]struct{})
		p.tickets[discordID] = owned
	}
	owned[ticket] = struct{}{}
	p.emit(events.TicketGrantedEvent{
		WatchPartyName: p.name,
		UserID:         discordID,
		TicketType:     ticket,
	})
}

// HasTicket checks if a user holds a ticket of the given type
func (p *WatchParty) HasTicket(discordID int64, ticket entities.TicketType) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.tickets[discordID][ticket]
	return ok
}

// ConsumeTicket removes a ticket and reports whether the user held it
func (p *WatchParty) ConsumeTicket(discordID int64, ticket entities.TicketType) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	owned, ok := p.tickets[discordID]
	if !ok {
		return false
	}
	if _, ok := owned[ticket]; !ok {
		return false
	}
	delete(owned, ticket)
	if len(owned) == 0 {
		delete(p.tickets, discordID)
	}
	return true
}

// Tickets returns the ticket types a user holds, sorted
func (p *WatchParty) Tickets(discordID int64) []entities.TicketType {
	p.mu.Lock()
	defer p.mu.Unlock()

	owned := make([]entities.TicketType, 0, len(p.tickets[discordID]))
	for t := range p.tickets[discordID] {
		owned = append(owned, t)
	}
	sort.Slice(owned, func(i, j int) bool { return owned[i] < owned[j] })
	return owned
}

// SetMatchState lets an admin override the match state, for example to mark a pause
func (p *WatchParty) SetMatchState(actor int64, state entities.MatchState) error {
	if !p.admins.IsAdmin(actor) {
		return entities.NewUnauthorizedError("only admins can change the match state")
	}
	switch state {
	case entities.MatchStatePreMatch, entities.MatchStatePaused, entities.MatchStateInProgress, entities.MatchStateFinished:
	default:
		return entities.NewValidationError("invalid match state %q", state)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.matchState = state
	return nil
}

// Snapshot returns a read-only view of the party
func (p *WatchParty) Snapshot() entities.WatchPartySummary {
	p.mu.Lock()
	defer p.mu.Unlock()

	summary := entities.WatchPartySummary{
		Name:         p.name,
		Date:         p.date,
		Game:         p.game,
		IsPublic:     p.isPublic,
		IsAuto:       p.isAuto,
		Status:       p.status,
		MatchState:   p.matchState,
		Participants: p.participantsLocked(),
	}
	if p.creator != nil {
		id := *p.creator
		summary.Creator = &id
	}
	if cfg := p.autoConfigLocked(); cfg != nil {
		summary.AutoType = cfg.Type
		summary.AutoTarget = cfg.Target
		summary.CurrentMatch = cfg.CurrentMatch
		summary.LastChecked = cfg.LastChecked
	}
	if p.hasActiveWagerLocked() {
		w := p.activeWager.summaryLocked()
		summary.ActiveWager = &w
	}
	for _, owned := range p.tickets {
		summary.TicketCount += len(owned)
	}
	return summary
}

// emit queues an event for publication once the lock is released
func (p *WatchParty) emit(event events.Event) {
	p.outbox = append(p.outbox, event)
}

// unlockAndFlush releases the lock and publishes queued events
func (p *WatchParty) unlockAndFlush() {
	pending := p.outbox
	p.outbox = nil
	p.mu.Unlock()

	if p.publisher == nil {
		return
	}
	for _, event := range pending {
		if err := p.publisher.Publish(event); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"watchParty": p.name,
				"eventType":  event.Type(),
			}).Error("Failed to publish event")
		}
	}
}

// lockedRandom makes a *rand.Rand safe for concurrent use
type lockedRandom struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewLockedRandom creates a goroutine-safe random source
func NewLockedRandom(seed int64) interfaces.RandomSource {
	return &lockedRandom{rnd: rand.New(rand.NewSource(seed))}
}

func (r *lockedRandom) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rnd.Float64()
}
