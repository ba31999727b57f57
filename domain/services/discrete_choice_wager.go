package services

import (
	"strings"
	"time"

	"watchparty/domain/entities"
)

const (
	MinDiscreteChoices = 2
	MaxDiscreteChoices = 4
)

// DiscreteChoiceWager pays the pot equally to everyone who picked the correct choice
type DiscreteChoiceWager struct {
	baseWager
	choices       []string
	userChoice    map[int64]string
	correctChoice *string
}

// NewDiscreteChoiceWager creates a wager on one of 2-4 fixed choices
func NewDiscreteChoiceWager(party *WatchParty, creator int64, question string, votingWindow time.Duration, choices []string, offersTicket bool) (*DiscreteChoiceWager, error) {
	cleaned, err := validateDiscreteChoices(choices)
	if err != nil {
		return nil, err
	}

	base, err := newBaseWager(party, entities.WagerKindDiscreteChoice, creator, question, votingWindow, offersTicket)
	if err != nil {
		return nil, err
	}

	return &DiscreteChoiceWager{
		baseWager:  base,
		choices:    cleaned,
		userChoice: make(map[int64]string),
	}, nil
}

func validateDiscreteChoices(choices []string) ([]string, error) {
	if len(choices) < MinDiscreteChoices || len(choices) > MaxDiscreteChoices {
		return nil, entities.NewValidationError("wager must have between %d and %d choices", MinDiscreteChoices, MaxDiscreteChoices)
	}

	seen := make(map[string]bool, len(choices))
	cleaned := make([]string, 0, len(choices))
	for _, choice := range choices {
		choice = strings.TrimSpace(choice)
		if choice == "" {
			return nil, entities.NewValidationError("choices cannot be empty")
		}
		key := strings.ToLower(choice)
		if seen[key] {
			return nil, entities.NewValidationError("duplicate choice: %s", choice)
		}
		seen[key] = true
		cleaned = append(cleaned, choice)
	}
	return cleaned, nil
}

// Choices returns a copy of the choices
func (w *DiscreteChoiceWager) Choices() []string {
	return append([]string(nil), w.choices...)
}

// Vote stakes points on one of the choices
func (w *DiscreteChoiceWager) Vote(discordID int64, value string, points int64) error {
	return w.vote(w, discordID, value, points)
}

// Resolve pays the pot to the voters of the correct choice
func (w *DiscreteChoiceWager) Resolve(correct string) (*entities.SettlementResult, error) {
	return w.resolve(w, correct)
}

// Snapshot returns a read-only view of the wager
func (w *DiscreteChoiceWager) Snapshot() entities.WagerSummary {
	w.party.mu.Lock()
	defer w.party.mu.Unlock()
	return w.summaryLocked()
}

func (w *DiscreteChoiceWager) summaryLocked() entities.WagerSummary {
	return w.summary(w)
}

// matchChoice returns the canonical spelling of value, matched case-insensitively
func (w *DiscreteChoiceWager) matchChoice(value string) (string, bool) {
	value = strings.TrimSpace(value)
	for _, choice := range w.choices {
		if strings.EqualFold(choice, value) {
			return choice, true
		}
	}
	return "", false
}

func (w *DiscreteChoiceWager) parseVote(value string) (any, error) {
	choice, ok := w.matchChoice(value)
	if !ok {
		return nil, entities.NewValidationError("invalid choice %q, must be one of: %s", value, strings.Join(w.choices, ", "))
	}
	return choice, nil
}

func (w *DiscreteChoiceWager) recordVote(discordID int64, parsed any) {
	w.userChoice[discordID] = parsed.(string)
}

func (w *DiscreteChoiceWager) voteValue(discordID int64) string {
	return w.userChoice[discordID]
}

func (w *DiscreteChoiceWager) options() []string {
	return w.Choices()
}

func (w *DiscreteChoiceWager) settle(correct string) (*entities.SettlementResult, error) {
	choice, ok := w.matchChoice(correct)
	if !ok {
		return nil, entities.NewValidationError("invalid winning choice %q, must be one of: %s", correct, strings.Join(w.choices, ", "))
	}
	w.correctChoice = &choice

	var winners []int64
	for _, discordID := range w.voteOrder {
		if w.userChoice[discordID] == choice {
			winners = append(winners, discordID)
		}
	}

	result := &entities.SettlementResult{
		Correct:  choice,
		TotalPot: w.totalPotLocked(),
	}
	if len(winners) == 0 {
		result.Method = entities.SettlementMethodForfeit
		result.Forfeited = true
		return result, nil
	}

	result.Method = entities.SettlementMethodEqualSplit
	result.Payouts = w.payEqualSplit(winners, entities.TicketTypeDiscreteChoice)
	return result, nil
}
