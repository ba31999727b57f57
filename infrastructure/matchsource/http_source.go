package matchsource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"watchparty/domain/entities"
	"watchparty/domain/interfaces"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	DefaultTimeout = 10 * time.Second

	userAgent = "watchparty/1.0"
)

// ErrMatchNotFound is returned when the feed does not know a match id
var ErrMatchNotFound = errors.New("match not found")

// feedMatch is the wire format of a match in the feed
type feedMatch struct {
	ID            string    `json:"id"`
	Team1         string    `json:"team1"`
	Team2         string    `json:"team2"`
	ScheduledTime time.Time `json:"scheduled_time"`
	Tournament    string    `json:"tournament"`
	StreamURL     string    `json:"stream_url"`
	BestOf        int       `json:"best_of"`
	Status        string    `json:"status"`
}

func (f feedMatch) toEntity() *entities.Match {
	return &entities.Match{
		ID:            f.ID,
		Team1:         f.Team1,
		Team2:         f.Team2,
		ScheduledTime: f.ScheduledTime.UTC(),
		Tournament:    f.Tournament,
		StreamURL:     f.StreamURL,
		BestOf:        f.BestOf,
		Status:        entities.ParseMatchStatus(f.Status),
	}
}

// HTTPSource reads the esports schedule from the match feed API.
//
//	GET {base}/matches?team={team}
//	GET {base}/matches?tournament={tournament}
//	GET {base}/matches/{id}
type HTTPSource struct {
	baseURL    string
	httpClient *http.Client
	now        func() time.Time
}

// NewHTTPSource creates a new feed client. Requests are traced through otelhttp.
func NewHTTPSource(baseURL string, timeout time.Duration) *HTTPSource {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		now: time.Now,
	}
}

// NextMatchForTeam returns the earliest unfinished match of a team
func (s *HTTPSource) NextMatchForTeam(ctx context.Context, team string) (*entities.Match, error) {
	matches, err := s.UpcomingMatchesForTeam(ctx, team)
	if err != nil {
		return nil, err
	}
	return first(matches), nil
}

// NextMatchForTournament returns the earliest unfinished match of a tournament
func (s *HTTPSource) NextMatchForTournament(ctx context.Context, tournament string) (*entities.Match, error) {
	matches, err := s.UpcomingMatchesForTournament(ctx, tournament)
	if err != nil {
		return nil, err
	}
	return first(matches), nil
}

// UpcomingMatchesForTeam returns the unfinished matches of a team ordered by time
func (s *HTTPSource) UpcomingMatchesForTeam(ctx context.Context, team string) ([]*entities.Match, error) {
	matches, err := s.list(ctx, url.Values{"team": {team}})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch matches for team %s: %w", team, err)
	}

	// the feed matches teams loosely, keep only the ones actually playing
	filtered := matches[:0]
	for _, m := range matches {
		if m.Involves(team) {
			filtered = append(filtered, m)
		}
	}
	return filtered, nil
}

// UpcomingMatchesForTournament returns the unfinished matches of a tournament ordered by time
func (s *HTTPSource) UpcomingMatchesForTournament(ctx context.Context, tournament string) ([]*entities.Match, error) {
	matches, err := s.list(ctx, url.Values{"tournament": {tournament}})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch matches for tournament %s: %w", tournament, err)
	}
	return matches, nil
}

// RefreshStatus updates the status of a match from the feed. When the feed no longer
// knows the match the status is derived from its schedule.
func (s *HTTPSource) RefreshStatus(ctx context.Context, match *entities.Match) error {
	var fm feedMatch
	err := s.get(ctx, "/matches/"+url.PathEscape(match.ID), nil, &fm)
	if errors.Is(err, ErrMatchNotFound) {
		match.RefreshStatus(s.now())
		log.WithFields(log.Fields{
			"matchID": match.ID,
			"status":  match.Status,
		}).Debug("Match missing from feed, status derived from schedule")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to refresh match %s: %w", match.ID, err)
	}

	// a finished match never goes back to live
	if !match.IsFinished() {
		match.Status = entities.ParseMatchStatus(fm.Status)
	}
	if !fm.ScheduledTime.IsZero() {
		match.ScheduledTime = fm.ScheduledTime.UTC()
	}
	return nil
}

func (s *HTTPSource) list(ctx context.Context, query url.Values) ([]*entities.Match, error) {
	var payload []feedMatch
	err := s.get(ctx, "/matches", query, &payload)
	if errors.Is(err, ErrMatchNotFound) {
		return []*entities.Match{}, nil
	}
	if err != nil {
		return nil, err
	}

	matches := make([]*entities.Match, 0, len(payload))
	for _, fm := range payload {
		m := fm.toEntity()
		if m.ID == "" || m.IsFinished() {
			continue
		}
		matches = append(matches, m)
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].ScheduledTime.Before(matches[j].ScheduledTime)
	})
	return matches, nil
}

// get makes an HTTP GET request and decodes the JSON body into out
func (s *HTTPSource) get(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := s.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrMatchNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("match feed error: status=%d, body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func first(matches []*entities.Match) *entities.Match {
	if len(matches) == 0 {
		return nil
	}
	return matches[0]
}

var _ interfaces.MatchDataSource = (*HTTPSource)(nil)
