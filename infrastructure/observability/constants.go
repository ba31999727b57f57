package observability

// Metric name prefixes
const (
	MetricPrefix = "watchparty"
)

// Metric names
const (
	// Scheduler metrics
	SchedulerCyclesTotal        = MetricPrefix + ".scheduler.cycles_total"
	SchedulerCycleDuration      = MetricPrefix + ".scheduler.cycle_duration"
	SchedulerPartyFailuresTotal = MetricPrefix + ".scheduler.party_failures_total"

	// Wager metrics
	WagerVotesTotal       = MetricPrefix + ".wagers.votes_total"
	WagerSettlementsTotal = MetricPrefix + ".wagers.settlements_total"
	WagerPointsPaidTotal  = MetricPrefix + ".wagers.points_paid_total"

	// Watch party metrics
	PartyStatusChangesTotal = MetricPrefix + ".watch_parties.status_changes_total"

	// HTTP client metrics
	MatchSourceCacheTotal = MetricPrefix + ".match_source.cache_total"
)

// Label keys
const (
	LabelWagerKind  = "wager_kind"
	LabelMethod     = "method"
	LabelStatus     = "status"
	LabelWatchParty = "watch_party"
	LabelResult     = "result"
)

// Cache lookup results
const (
	CacheResultHit  = "hit"
	CacheResultMiss = "miss"
)

// Exporter types
const (
	ExporterConsole    = "console"
	ExporterOTLP       = "otlp"
	ExporterPrometheus = "prometheus"
	ExporterNone       = "none"
)
