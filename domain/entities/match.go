package entities

import (
	"fmt"
	"strings"
	"time"
)

// MatchStatus represents the status of an esports match as reported by the match feed
type MatchStatus string

const (
	MatchStatusScheduled MatchStatus = "scheduled"
	MatchStatusLive      MatchStatus = "live"
	MatchStatusFinished  MatchStatus = "finished"
)

// ParseMatchStatus normalizes feed status strings. Unknown values map to scheduled.
func ParseMatchStatus(s string) MatchStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "live", "in_progress", "in progress", "running", "ongoing":
		return MatchStatusLive
	case "finished", "completed", "ended", "final":
		return MatchStatusFinished
	default:
		return MatchStatusScheduled
	}
}

// Match represents a scheduled esports match
type Match struct {
	ID            string      `json:"id"`
	Team1         string      `json:"team1"`
	Team2         string      `json:"team2"`
	ScheduledTime time.Time   `json:"scheduled_time"`
	Tournament    string      `json:"tournament"`
	StreamURL     string      `json:"stream_url"`
	BestOf        int         `json:"best_of"`
	Status        MatchStatus `json:"status"`
}

// EstimatedDuration returns the expected length of the match based on its series format
func (m *Match) EstimatedDuration() time.Duration {
	switch m.BestOf {
	case 1:
		return 1 * time.Hour
	case 3:
		return 2 * time.Hour
	case 5:
		return 4 * time.Hour
	default:
		return 2 * time.Hour
	}
}

// ExpectedEnd returns the scheduled time plus the estimated duration
func (m *Match) ExpectedEnd() time.Time {
	return m.ScheduledTime.Add(m.EstimatedDuration())
}

// IsPast checks if the match should be over by now, independent of the reported status
func (m *Match) IsPast(now time.Time) bool {
	return now.After(m.ExpectedEnd())
}

// IsStartingSoon checks if the match starts within the given window or has already started.
// Finished matches are never starting soon.
func (m *Match) IsStartingSoon(now time.Time, within time.Duration) bool {
	if m.IsFinished() {
		return false
	}
	return !now.Before(m.ScheduledTime.Add(-within))
}

// IsLive checks if the match is in progress
func (m *Match) IsLive() bool {
	return m.Status == MatchStatusLive
}

// IsFinished checks if the match has finished
func (m *Match) IsFinished() bool {
	return m.Status == MatchStatusFinished
}

// RefreshStatus derives the status from the schedule. A reported finished status is never reverted.
func (m *Match) RefreshStatus(now time.Time) {
	if m.IsFinished() {
		return
	}
	switch {
	case now.Before(m.ScheduledTime):
		m.Status = MatchStatusScheduled
	case now.Before(m.ExpectedEnd()):
		m.Status = MatchStatusLive
	default:
		m.Status = MatchStatusFinished
	}
}

// Involves checks if the given team plays in this match (case-insensitive)
func (m *Match) Involves(team string) bool {
	return strings.EqualFold(m.Team1, team) || strings.EqualFold(m.Team2, team)
}

// Title returns a short "Team1 vs Team2" label
func (m *Match) Title() string {
	return fmt.Sprintf("%s vs %s", m.Team1, m.Team2)
}

// Clone returns a copy of the match
func (m *Match) Clone() *Match {
	if m == nil {
		return nil
	}
	c := *m
	return &c
}
