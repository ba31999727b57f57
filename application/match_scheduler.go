package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"watchparty/domain/entities"
	"watchparty/domain/interfaces"
	"watchparty/domain/services"

	"github.com/go-co-op/gocron/v2"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultSchedulerInterval = 5 * time.Minute
	DefaultPartyTimeout      = 20 * time.Second
	DefaultShutdownGrace     = 10 * time.Second

	// wagerExpiryInterval is how often elapsed voting windows are closed
	wagerExpiryInterval = time.Minute

	// reportMatchLimit is the number of upcoming matches listed per party in a report
	reportMatchLimit = 3
)

// AutoPartyProvider lists the watch parties driven by the match feed
type AutoPartyProvider interface {
	AutoParties() []*services.WatchParty
}

// WagerExpirer closes voting on wagers whose window has elapsed
type WagerExpirer interface {
	TransitionExpiredWagers(ctx context.Context) (int, error)
}

// SchedulerConfig holds the timing settings of the match scheduler
type SchedulerConfig struct {
	Interval      time.Duration
	PartyTimeout  time.Duration
	ShutdownGrace time.Duration
	Clock         func() time.Time
}

// MatchScheduler periodically polls the match feed and updates every auto watch party
type MatchScheduler struct {
	parties AutoPartyProvider
	source  interfaces.MatchDataSource
	expirer WagerExpirer
	metrics interfaces.MetricsRecorder
	config  SchedulerConfig

	// cycleMu serializes scheduled and forced cycles
	cycleMu sync.Mutex

	mu        sync.Mutex
	scheduler gocron.Scheduler
}

// NewMatchScheduler creates a new match scheduler. expirer and metrics may be nil.
func NewMatchScheduler(parties AutoPartyProvider, source interfaces.MatchDataSource, expirer WagerExpirer, metrics interfaces.MetricsRecorder, config SchedulerConfig) *MatchScheduler {
	if config.Interval <= 0 {
		config.Interval = DefaultSchedulerInterval
	}
	if config.PartyTimeout <= 0 {
		config.PartyTimeout = DefaultPartyTimeout
	}
	if config.ShutdownGrace <= 0 {
		config.ShutdownGrace = DefaultShutdownGrace
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}

	return &MatchScheduler{
		parties: parties,
		source:  source,
		expirer: expirer,
		metrics: metrics,
		config:  config,
	}
}

// Start schedules the periodic cycle. The first cycle runs immediately.
func (s *MatchScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scheduler != nil {
		return errors.New("match scheduler already started")
	}

	scheduler, err := gocron.NewScheduler(gocron.WithStopTimeout(s.config.ShutdownGrace))
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(s.config.Interval),
		gocron.NewTask(func(ctx context.Context) {
			s.runCycle(ctx)
		}),
		gocron.WithName("match-sync"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule match sync job: %w", err)
	}

	if s.expirer != nil {
		_, err = scheduler.NewJob(
			gocron.DurationJob(wagerExpiryInterval),
			gocron.NewTask(func(ctx context.Context) {
				s.expireWagers(ctx)
			}),
			gocron.WithName("wager-expiry"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return fmt.Errorf("failed to schedule wager expiry job: %w", err)
		}
	}

	scheduler.Start()
	s.scheduler = scheduler

	log.WithFields(log.Fields{
		"interval":     s.config.Interval,
		"partyTimeout": s.config.PartyTimeout,
	}).Info("Match scheduler started")
	return nil
}

// Stop waits up to the shutdown grace period for running cycles, then cancels them.
// No cycles are scheduled after Stop returns.
func (s *MatchScheduler) Stop() error {
	s.mu.Lock()
	scheduler := s.scheduler
	s.scheduler = nil
	s.mu.Unlock()

	if scheduler == nil {
		return nil
	}

	log.Info("Match scheduler shutting down...")
	if !s.waitForCycle(s.config.ShutdownGrace) {
		log.WithField("grace", s.config.ShutdownGrace).Warn("Match scheduler cycle still running, canceling it")
	}
	if err := scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop match scheduler: %w", err)
	}
	return nil
}

// waitForCycle blocks until no cycle is running or grace elapses
func (s *MatchScheduler) waitForCycle(grace time.Duration) bool {
	idle := make(chan struct{})
	go func() {
		s.cycleMu.Lock()
		close(idle)
		s.cycleMu.Unlock()
	}()

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-idle:
		return true
	case <-timer.C:
		return false
	}
}

// ForceUpdate runs one full cycle synchronously
func (s *MatchScheduler) ForceUpdate(ctx context.Context) error {
	result := s.runCycle(ctx)
	if result.failures > 0 {
		return fmt.Errorf("%d of %d watch parties failed to update", result.failures, result.parties)
	}
	return nil
}

// ForceUpdateReport runs one full cycle and describes the upcoming matches of every auto party
func (s *MatchScheduler) ForceUpdateReport(ctx context.Context) (string, error) {
	s.runCycle(ctx)

	parties := s.parties.AutoParties()
	if len(parties) == 0 {
		return "No auto watch parties", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Checked %d auto watch parties\n", len(parties))
	for _, party := range parties {
		cfg := party.AutoConfig()
		fmt.Fprintf(&b, "- %s [%s] %s %s: ", party.Name(), party.Status(), cfg.Type, cfg.Target)

		matches, err := s.upcomingMatches(ctx, cfg)
		switch {
		case err != nil:
			fmt.Fprintf(&b, "error: %v\n", err)
		case len(matches) == 0:
			b.WriteString("no match\n")
		default:
			if len(matches) > reportMatchLimit {
				matches = matches[:reportMatchLimit]
			}
			descriptions := make([]string, 0, len(matches))
			for _, m := range matches {
				descriptions = append(descriptions, describeMatch(m))
			}
			b.WriteString(strings.Join(descriptions, "; "))
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func describeMatch(m *entities.Match) string {
	return fmt.Sprintf("%s at %s (BO%d, %s)", m.Title(), m.ScheduledTime.UTC().Format("2006-01-02 15:04 MST"), m.BestOf, m.Status)
}

type cycleResult struct {
	parties  int
	failures int
}

// runCycle updates every auto party. Failures are logged per party and never stop the batch.
func (s *MatchScheduler) runCycle(ctx context.Context) cycleResult {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	start := time.Now()
	parties := s.parties.AutoParties()
	result := cycleResult{parties: len(parties)}

	for _, party := range parties {
		if ctx.Err() != nil {
			log.WithError(ctx.Err()).Warn("Match scheduler cycle canceled")
			break
		}

		if err := s.updateParty(ctx, party); err != nil {
			result.failures++
			log.WithError(err).WithField("watchParty", party.Name()).Error("Failed to update watch party")
			if s.metrics != nil {
				s.metrics.RecordPartyUpdateFailure(party.Name())
			}
		}
	}

	duration := time.Since(start)
	if s.metrics != nil {
		s.metrics.RecordSchedulerCycle(result.parties, result.failures, duration)
	}
	log.WithFields(log.Fields{
		"parties":  result.parties,
		"failures": result.failures,
		"duration": duration,
	}).Info("Match scheduler cycle completed")
	return result
}

func (s *MatchScheduler) updateParty(ctx context.Context, party *services.WatchParty) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.PartyTimeout)
	defer cancel()

	cfg := party.AutoConfig()
	if cfg == nil {
		return fmt.Errorf("watch party %s is not an auto watch party", party.Name())
	}

	now := s.config.Clock()
	candidate, err := s.bestCandidate(ctx, party, cfg, now)
	if err != nil {
		return err
	}

	party.UpdateStatus(candidate)
	party.MarkChecked(now)

	fields := log.Fields{
		"watchParty": party.Name(),
		"status":     party.Status(),
	}
	if candidate != nil {
		fields["matchID"] = candidate.ID
		fields["match"] = candidate.Title()
	}
	log.WithFields(fields).Debug("Watch party updated")
	return nil
}

// bestCandidate picks the match that drives the party this cycle: the stored match while it
// is still upcoming or live, a finished stored match while the party is still open so it
// can close, otherwise the next match from the feed.
func (s *MatchScheduler) bestCandidate(ctx context.Context, party *services.WatchParty, cfg *entities.AutoConfig, now time.Time) (*entities.Match, error) {
	if current := cfg.CurrentMatch; current != nil {
		if err := s.source.RefreshStatus(ctx, current); err != nil {
			return nil, fmt.Errorf("failed to refresh match %s: %w", current.ID, err)
		}
		if !current.IsFinished() && !current.IsPast(now) {
			return current, nil
		}
		if current.IsFinished() && party.Status() == entities.WatchPartyStatusOpen {
			return current, nil
		}
	}

	return s.nextMatch(ctx, cfg)
}

func (s *MatchScheduler) nextMatch(ctx context.Context, cfg *entities.AutoConfig) (*entities.Match, error) {
	var (
		match *entities.Match
		err   error
	)
	switch cfg.Type {
	case entities.AutoTypeTeam:
		match, err = s.source.NextMatchForTeam(ctx, cfg.Target)
	case entities.AutoTypeTournament:
		match, err = s.source.NextMatchForTournament(ctx, cfg.Target)
	default:
		return nil, fmt.Errorf("unknown auto type %q", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch next match for %s %s: %w", cfg.Type, cfg.Target, err)
	}
	return match, nil
}

func (s *MatchScheduler) upcomingMatches(ctx context.Context, cfg *entities.AutoConfig) ([]*entities.Match, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.PartyTimeout)
	defer cancel()

	switch cfg.Type {
	case entities.AutoTypeTeam:
		return s.source.UpcomingMatchesForTeam(ctx, cfg.Target)
	case entities.AutoTypeTournament:
		return s.source.UpcomingMatchesForTournament(ctx, cfg.Target)
	default:
		return nil, fmt.Errorf("unknown auto type %q", cfg.Type)
	}
}

func (s *MatchScheduler) expireWagers(ctx context.Context) {
	count, err := s.expirer.TransitionExpiredWagers(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to transition expired wagers")
		return
	}
	if count > 0 {
		log.WithField("count", count).Info("Closed voting on expired wagers")
	}
}

var _ services.PartyScheduler = (*MatchScheduler)(nil)
