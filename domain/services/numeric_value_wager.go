package services

import (
	"math"
	"strconv"
	"strings"
	"time"

	"watchparty/domain/entities"
)

// NumericBounds configures a numeric wager. Min and Max are inclusive and optional.
type NumericBounds struct {
	IsInteger bool
	Min       *float64
	Max       *float64
}

// NumericValueWager pays exact predictions equally, otherwise the closest predictions by proximity
type NumericValueWager struct {
	baseWager
	bounds       NumericBounds
	userValue    map[int64]float64
	correctValue *float64
}

// NewNumericValueWager creates a wager on a numeric outcome. Numeric wagers never grant tickets.
func NewNumericValueWager(party *WatchParty, creator int64, question string, votingWindow time.Duration, bounds NumericBounds) (*NumericValueWager, error) {
	if bounds.Min != nil && bounds.Max != nil && *bounds.Min > *bounds.Max {
		return nil, entities.NewValidationError("minimum %s is greater than maximum %s", formatNumber(*bounds.Min), formatNumber(*bounds.Max))
	}

	base, err := newBaseWager(party, entities.WagerKindNumericValue, creator, question, votingWindow, false)
	if err != nil {
		return nil, err
	}

	return &NumericValueWager{
		baseWager: base,
		bounds:    bounds,
		userValue: make(map[int64]float64),
	}, nil
}

// Bounds returns the value constraints
func (w *NumericValueWager) Bounds() NumericBounds {
	return w.bounds
}

// Vote stakes points on a numeric prediction
func (w *NumericValueWager) Vote(discordID int64, value string, points int64) error {
	return w.vote(w, discordID, value, points)
}

// Resolve settles against the correct number
func (w *NumericValueWager) Resolve(correct string) (*entities.SettlementResult, error) {
	return w.resolve(w, correct)
}

// Snapshot returns a read-only view of the wager
func (w *NumericValueWager) Snapshot() entities.WagerSummary {
	w.party.mu.Lock()
	defer w.party.mu.Unlock()
	return w.summaryLocked()
}

func (w *NumericValueWager) summaryLocked() entities.WagerSummary {
	return w.summary(w)
}

func parseNumber(value string) (float64, bool) {
	n, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

func (w *NumericValueWager) parseVote(value string) (any, error) {
	n, ok := parseNumber(value)
	if !ok {
		return nil, entities.NewValidationError("%q is not a valid number", value)
	}
	if w.bounds.IsInteger && n != math.Trunc(n) {
		return nil, entities.NewValidationError("value must be a whole number")
	}
	if w.bounds.Min != nil && n < *w.bounds.Min {
		return nil, entities.NewValidationError("value must be at least %s", formatNumber(*w.bounds.Min))
	}
	if w.bounds.Max != nil && n > *w.bounds.Max {
		return nil, entities.NewValidationError("value must be at most %s", formatNumber(*w.bounds.Max))
	}
	return n, nil
}

func (w *NumericValueWager) recordVote(discordID int64, parsed any) {
	w.userValue[discordID] = parsed.(float64)
}

func (w *NumericValueWager) voteValue(discordID int64) string {
	return formatNumber(w.userValue[discordID])
}

func (w *NumericValueWager) options() []string {
	var opts []string
	if w.bounds.IsInteger {
		opts = append(opts, "integer")
	}
	if w.bounds.Min != nil {
		opts = append(opts, "min="+formatNumber(*w.bounds.Min))
	}
	if w.bounds.Max != nil {
		opts = append(opts, "max="+formatNumber(*w.bounds.Max))
	}
	return opts
}

func (w *NumericValueWager) settle(correct string) (*entities.SettlementResult, error) {
	target, ok := parseNumber(correct)
	if !ok {
		return nil, entities.NewValidationError("%q is not a valid number", correct)
	}
	w.correctValue = &target

	result := &entities.SettlementResult{
		Correct:  formatNumber(target),
		TotalPot: w.totalPotLocked(),
	}

	var exact []int64
	distances := make([]voterDistance, 0, len(w.voteOrder))
	for _, discordID := range w.voteOrder {
		d := math.Abs(w.userValue[discordID] - target)
		if d < ExactMatchTolerance {
			exact = append(exact, discordID)
		}
		distances = append(distances, voterDistance{discordID: discordID, distance: d})
	}

	switch {
	case len(exact) > 0:
		result.Method = entities.SettlementMethodEqualSplit
		result.Payouts = w.payEqualSplit(exact, "")
	case len(distances) == 0:
		result.Method = entities.SettlementMethodForfeit
		result.Forfeited = true
	default:
		result.Method = entities.SettlementMethodProximity
		result.Payouts = w.payByDistance(distances, maxObservedDistance(distances), "")
	}
	return result, nil
}
