package services

import (
	"context"
	"time"

	"watchparty/domain/entities"
	"watchparty/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

// DefaultVotingWindow is used when a wager request does not set one
const DefaultVotingWindow = 10 * time.Minute

// WagerRequest holds the fields shared by every wager kind
type WagerRequest struct {
	WatchParty   string
	Creator      int64
	Question     string
	VotingWindow time.Duration
	OffersTicket bool
}

func (r WagerRequest) votingWindow() time.Duration {
	if r.VotingWindow == 0 {
		return DefaultVotingWindow
	}
	return r.VotingWindow
}

// WagerService is the entry point for wager operations addressed by watch party name
type WagerService struct {
	registry *WatchPartyRegistry
	metrics  interfaces.MetricsRecorder
}

// NewWagerService creates a new wager service. metrics may be nil.
func NewWagerService(registry *WatchPartyRegistry, metrics interfaces.MetricsRecorder) *WagerService {
	return &WagerService{
		registry: registry,
		metrics:  metrics,
	}
}

// CreateDiscrete creates a discrete choice wager and installs it in the party
func (s *WagerService) CreateDiscrete(req WagerRequest, choices []string) (*DiscreteChoiceWager, error) {
	party, err := s.registry.Get(req.WatchParty)
	if err != nil {
		return nil, err
	}
	w, err := NewDiscreteChoiceWager(party, req.Creator, req.Question, req.votingWindow(), choices, req.OffersTicket)
	if err != nil {
		return nil, err
	}
	if err := party.CreateWager(w); err != nil {
		return nil, err
	}
	return w, nil
}

// CreateNumeric creates a numeric value wager and installs it in the party
func (s *WagerService) CreateNumeric(req WagerRequest, bounds NumericBounds) (*NumericValueWager, error) {
	party, err := s.registry.Get(req.WatchParty)
	if err != nil {
		return nil, err
	}
	w, err := NewNumericValueWager(party, req.Creator, req.Question, req.votingWindow(), bounds)
	if err != nil {
		return nil, err
	}
	if err := party.CreateWager(w); err != nil {
		return nil, err
	}
	return w, nil
}

// CreateRanking creates an ordered ranking wager and installs it in the party
func (s *WagerService) CreateRanking(req WagerRequest, items []string) (*OrderedRankingWager, error) {
	party, err := s.registry.Get(req.WatchParty)
	if err != nil {
		return nil, err
	}
	w, err := NewOrderedRankingWager(party, req.Creator, req.Question, req.votingWindow(), items, req.OffersTicket)
	if err != nil {
		return nil, err
	}
	if err := party.CreateWager(w); err != nil {
		return nil, err
	}
	return w, nil
}

// ActiveWager returns the voting or pending wager of a party
func (s *WagerService) ActiveWager(partyName string) (Wager, error) {
	party, err := s.registry.Get(partyName)
	if err != nil {
		return nil, err
	}
	w := party.ActiveWager()
	if w == nil {
		return nil, entities.NewNotFoundError("watch party %s has no active wager", party.Name())
	}
	return w, nil
}

// Vote stakes points on the party's active wager
func (s *WagerService) Vote(partyName string, discordID int64, value string, points int64) error {
	w, err := s.ActiveWager(partyName)
	if err != nil {
		return err
	}
	if err := w.Vote(discordID, value, points); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.RecordVote(w.Kind())
	}
	return nil
}

// EndVoting closes voting on the party's active wager
func (s *WagerService) EndVoting(partyName string, actor int64) error {
	if err := s.requireAdmin(actor, "close voting"); err != nil {
		return err
	}
	w, err := s.ActiveWager(partyName)
	if err != nil {
		return err
	}
	return w.EndVoting()
}

// Resolve settles the party's active wager against the correct value
func (s *WagerService) Resolve(partyName string, actor int64, correct string) (*entities.SettlementResult, error) {
	if err := s.requireAdmin(actor, "resolve wagers"); err != nil {
		return nil, err
	}
	w, err := s.ActiveWager(partyName)
	if err != nil {
		return nil, err
	}
	result, err := w.Resolve(correct)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordSettlement(result.Kind, result.Method, result.TotalPaid())
	}
	return result, nil
}

// Cancel cancels the party's active wager and returns the number of refunded voters
func (s *WagerService) Cancel(partyName string, actor int64) (int, error) {
	if err := s.requireAdmin(actor, "cancel wagers"); err != nil {
		return 0, err
	}
	w, err := s.ActiveWager(partyName)
	if err != nil {
		return 0, err
	}
	return w.Cancel()
}

func (s *WagerService) requireAdmin(actor int64, action string) error {
	if !s.registry.IsAdmin(actor) {
		return entities.NewUnauthorizedError("only admins can %s", action)
	}
	return nil
}

// TransitionExpiredWagers moves voting wagers whose window has elapsed to pending
func (s *WagerService) TransitionExpiredWagers(ctx context.Context) (int, error) {
	now := s.registry.Now()
	transitioned := 0

	for _, party := range s.registry.ListAll() {
		if err := ctx.Err(); err != nil {
			return transitioned, err
		}

		w := party.ActiveWager()
		if w == nil || w.State() != entities.WagerStateVoting || !now.After(w.VotingEndsAt()) {
			continue
		}

		if err := w.EndVoting(); err != nil {
			// resolved or canceled concurrently
			log.WithError(err).WithFields(log.Fields{
				"watchParty": party.Name(),
				"wagerID":    w.ID(),
			}).Debug("Skipping expired wager")
			continue
		}
		transitioned++

		log.WithFields(log.Fields{
			"watchParty":   party.Name(),
			"wagerID":      w.ID(),
			"votingEndsAt": w.VotingEndsAt(),
		}).Info("Voting window elapsed, wager pending resolution")
	}

	return transitioned, nil
}
