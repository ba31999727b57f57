package services

import (
	"strings"
	"time"

	"watchparty/domain/entities"
	"watchparty/domain/events"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	// WinnerFractionPercent is the share of participants paid out by distance-based settlement
	WinnerFractionPercent = 30

	// BonusTicketChance is the probability of an extra in-or-out ticket per winner
	BonusTicketChance = 0.10

	// ExactMatchTolerance is the maximum difference for a numeric prediction to count as exact
	ExactMatchTolerance = 1e-4
)

// Wager is the voting and settlement protocol shared by every wager kind.
// All methods are safe for concurrent use; a wager shares the lock of its watch party.
type Wager interface {
	ID() string
	Kind() entities.WagerKind
	Question() string
	Creator() int64
	WatchPartyName() string
	State() entities.WagerState
	VotingEndsAt() time.Time
	TotalPot() int64
	StakeOf(discordID int64) (int64, bool)

	// Vote stakes points on a value. Each user may vote once per wager.
	Vote(discordID int64, value string, points int64) error

	// EndVoting closes the voting window early and moves the wager to pending
	EndVoting() error

	// Resolve settles a pending wager against the correct value
	Resolve(correct string) (*entities.SettlementResult, error)

	// Cancel refunds every stake and returns the number of refunded voters
	Cancel() (int, error)

	// Snapshot returns a read-only view of the wager
	Snapshot() entities.WagerSummary

	core() *baseWager
	summaryLocked() entities.WagerSummary
}

// wagerVariant is implemented by each wager kind and called with the party lock held
type wagerVariant interface {
	parseVote(value string) (any, error)
	recordVote(discordID int64, parsed any)
	voteValue(discordID int64) string
	options() []string
	settle(correct string) (*entities.SettlementResult, error)
}

// baseWager holds the fields and state machine shared by every wager kind
type baseWager struct {
	id           string
	kind         entities.WagerKind
	question     string
	creator      int64
	party        *WatchParty
	partyName    string
	isPublic     bool
	offersTicket bool
	installed    bool // set once the party accepts the wager as its active one
	state        entities.WagerState
	votingEndsAt time.Time
	stakes       map[int64]int64
	voteOrder    []int64
}

func newBaseWager(party *WatchParty, kind entities.WagerKind, creator int64, question string, votingWindow time.Duration, offersTicket bool) (baseWager, error) {
	if party == nil {
		return baseWager{}, entities.NewValidationError("wager must belong to a watch party")
	}
	if !party.admins.IsAdmin(creator) {
		return baseWager{}, entities.NewUnauthorizedError("only admins can create wagers")
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return baseWager{}, entities.NewValidationError("question cannot be empty")
	}
	if votingWindow <= 0 {
		return baseWager{}, entities.NewValidationError("voting window must be positive")
	}

	return baseWager{
		id:           uuid.New().String(),
		kind:         kind,
		question:     question,
		creator:      creator,
		party:        party,
		partyName:    party.name,
		isPublic:     party.isPublic,
		offersTicket: offersTicket,
		state:        entities.WagerStateVoting,
		votingEndsAt: party.now().Add(votingWindow),
		stakes:       make(map[int64]int64),
	}, nil
}

func (w *baseWager) core() *baseWager { return w }

// ID returns the wager id
func (w *baseWager) ID() string { return w.id }

// Kind returns the settlement kind
func (w *baseWager) Kind() entities.WagerKind { return w.kind }

// Question returns the wager question
func (w *baseWager) Question() string { return w.question }

// Creator returns the admin who created the wager
func (w *baseWager) Creator() int64 { return w.creator }

// WatchPartyName returns the owning party's name
func (w *baseWager) WatchPartyName() string { return w.partyName }

// VotingEndsAt returns the end of the voting window
func (w *baseWager) VotingEndsAt() time.Time { return w.votingEndsAt }

// State returns the current state
func (w *baseWager) State() entities.WagerState {
	w.party.mu.Lock()
	defer w.party.mu.Unlock()
	return w.state
}

// TotalPot returns the sum of all stakes
func (w *baseWager) TotalPot() int64 {
	w.party.mu.Lock()
	defer w.party.mu.Unlock()
	return w.totalPotLocked()
}

func (w *baseWager) totalPotLocked() int64 {
	var total int64
	for _, points := range w.stakes {
		total += points
	}
	return total
}

// StakeOf returns the points a user staked, if any
func (w *baseWager) StakeOf(discordID int64) (int64, bool) {
	w.party.mu.Lock()
	defer w.party.mu.Unlock()
	points, ok := w.stakes[discordID]
	return points, ok
}

func (w *baseWager) scope() entities.LedgerScope {
	return entities.ScopeFor(w.isPublic, w.partyName)
}

func (w *baseWager) vote(v wagerVariant, discordID int64, value string, points int64) error {
	p := w.party
	p.mu.Lock()
	defer p.unlockAndFlush()

	if w.state != entities.WagerStateVoting {
		return entities.NewStateConflictError("voting is closed for this wager (state: %s)", w.state)
	}
	if !w.installed {
		return entities.NewStateConflictError("wager has not been started in watch party %s", w.partyName)
	}
	if p.now().After(w.votingEndsAt) {
		return entities.NewStateConflictError("voting period has ended")
	}
	if points <= 0 {
		return entities.NewValidationError("points must be positive")
	}
	if _, voted := w.stakes[discordID]; voted {
		return entities.NewStateConflictError("you have already voted on this wager")
	}

	parsed, err := v.parseVote(value)
	if err != nil {
		return err
	}

	reason := Reason{
		Type:      entities.TransactionTypeWagerStake,
		RelatedID: w.id,
		Metadata: map[string]any{
			"watch_party": w.partyName,
			"wager_kind":  string(w.kind),
			"value":       value,
		},
	}
	if !p.ledger.debit(discordID, w.scope(), points, reason, p.emit) {
		return entities.NewValidationError("insufficient balance: have %d, need %d", p.ledger.Balance(discordID, w.scope()), points)
	}

	v.recordVote(discordID, parsed)
	w.stakes[discordID] = points
	w.voteOrder = append(w.voteOrder, discordID)

	log.WithFields(log.Fields{
		"wagerID":    w.id,
		"watchParty": w.partyName,
		"userID":     discordID,
		"points":     points,
	}).Debug("Vote recorded")
	return nil
}

// EndVoting moves a voting wager to pending
func (w *baseWager) EndVoting() error {
	w.party.mu.Lock()
	defer w.party.unlockAndFlush()
	return w.endVotingLocked()
}

func (w *baseWager) endVotingLocked() error {
	if w.state != entities.WagerStateVoting {
		return entities.NewStateConflictError("voting can only be closed while the wager is voting (state: %s)", w.state)
	}
	if !w.installed {
		return entities.NewStateConflictError("wager has not been started in watch party %s", w.partyName)
	}
	w.transitionLocked(entities.WagerStatePending)
	return nil
}

// Cancel refunds every stake and moves the wager to canceled
func (w *baseWager) Cancel() (int, error) {
	w.party.mu.Lock()
	defer w.party.unlockAndFlush()
	return w.cancelLocked()
}

func (w *baseWager) cancelLocked() (int, error) {
	if w.state.IsTerminal() {
		return 0, entities.NewStateConflictError("wager is already %s", w.state)
	}

	scope := w.scope()
	for _, discordID := range w.voteOrder {
		w.party.ledger.credit(discordID, scope, w.stakes[discordID], Reason{
			Type:      entities.TransactionTypeWagerRefund,
			RelatedID: w.id,
			Metadata:  map[string]any{"watch_party": w.partyName},
		}, w.party.emit)
	}
	w.transitionLocked(entities.WagerStateCanceled)

	log.WithFields(log.Fields{
		"wagerID":    w.id,
		"watchParty": w.partyName,
		"refunded":   len(w.voteOrder),
	}).Info("Wager canceled")
	return len(w.voteOrder), nil
}

func (w *baseWager) resolve(v wagerVariant, correct string) (*entities.SettlementResult, error) {
	w.party.mu.Lock()
	defer w.party.unlockAndFlush()

	if w.state != entities.WagerStatePending {
		return nil, entities.NewStateConflictError("wager can only be resolved after voting has ended (state: %s)", w.state)
	}

	result, err := v.settle(correct)
	if err != nil {
		return nil, err
	}
	result.WagerID = w.id
	result.Kind = w.kind

	w.transitionLocked(entities.WagerStateResolved)
	w.party.emit(events.WagerSettledEvent{
		WagerID:        w.id,
		WatchPartyName: w.partyName,
		Result:         *result,
	})

	entry := log.WithFields(log.Fields{
		"wagerID":    w.id,
		"watchParty": w.partyName,
		"method":     result.Method,
		"pot":        result.TotalPot,
		"paid":       result.TotalPaid(),
		"winners":    len(result.Payouts),
	})
	if result.Forfeited {
		entry.Warn("Wager resolved with no winners, pot forfeited")
	} else {
		entry.Info("Wager resolved")
	}
	return result, nil
}

func (w *baseWager) transitionLocked(next entities.WagerState) {
	old := w.state
	w.state = next
	if next.IsTerminal() {
		w.party.releaseWagerLocked(w)
	}
	w.party.emit(events.WagerStateChangeEvent{
		WagerID:        w.id,
		WatchPartyName: w.partyName,
		Kind:           w.kind,
		OldState:       old,
		NewState:       next,
	})
}

// payWinner credits a winner, records the win and grants tickets
func (w *baseWager) payWinner(discordID int64, amount int64, ticket entities.TicketType, distance float64) entities.Payout {
	scope := w.scope()
	if amount > 0 {
		w.party.ledger.credit(discordID, scope, amount, Reason{
			Type:      entities.TransactionTypeWagerPayout,
			RelatedID: w.id,
			Metadata: map[string]any{
				"watch_party": w.partyName,
				"stake":       w.stakes[discordID],
			},
		}, w.party.emit)
	}
	w.party.ledger.RecordWin(discordID, scope)

	payout := entities.Payout{DiscordID: discordID, Amount: amount, Distance: distance}
	if w.offersTicket && ticket != "" {
		w.party.grantTicketLocked(discordID, ticket)
		payout.Tickets = append(payout.Tickets, ticket)
		if w.party.random.Float64() < BonusTicketChance {
			w.party.grantTicketLocked(discordID, entities.TicketTypeInOrOut)
			payout.Tickets = append(payout.Tickets, entities.TicketTypeInOrOut)
		}
	}
	return payout
}

// payEqualSplit divides the pot evenly. The remainder of the integer division is not paid out.
func (w *baseWager) payEqualSplit(winners []int64, ticket entities.TicketType) []entities.Payout {
	if len(winners) == 0 {
		return nil
	}
	reward := w.totalPotLocked() / int64(len(winners))
	payouts := make([]entities.Payout, 0, len(winners))
	for _, discordID := range winners {
		payouts = append(payouts, w.payWinner(discordID, reward, ticket, 0))
	}
	return payouts
}

// payByDistance runs the weighted settlement shared by numeric and ranking wagers
func (w *baseWager) payByDistance(distances []voterDistance, maxDistance float64, ticket entities.TicketType) []entities.Payout {
	winners := closestVoters(distances)
	rewards := weightedRewards(winners, maxDistance, w.totalPotLocked())
	payouts := make([]entities.Payout, 0, len(winners))
	for i, winner := range winners {
		payouts = append(payouts, w.payWinner(winner.discordID, rewards[i], ticket, winner.distance))
	}
	return payouts
}

func (w *baseWager) summary(v wagerVariant) entities.WagerSummary {
	stakes := make([]entities.Stake, 0, len(w.voteOrder))
	for _, discordID := range w.voteOrder {
		stakes = append(stakes, entities.Stake{
			DiscordID: discordID,
			Points:    w.stakes[discordID],
			Value:     v.voteValue(discordID),
		})
	}
	return entities.WagerSummary{
		ID:             w.id,
		Kind:           w.kind,
		Question:       w.question,
		Creator:        w.creator,
		WatchPartyName: w.partyName,
		IsPublic:       w.isPublic,
		State:          w.state,
		VotingEndsAt:   w.votingEndsAt,
		OffersTicket:   w.offersTicket,
		Options:        v.options(),
		Stakes:         stakes,
		TotalPot:       w.totalPotLocked(),
	}
}
