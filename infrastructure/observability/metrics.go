package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"watchparty/config"
	"watchparty/domain/entities"
	"watchparty/domain/interfaces"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	otelprometheus "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
)

// MetricsProvider manages OpenTelemetry metrics for the watch party service
type MetricsProvider struct {
	config        *config.Config
	registerer    prometheus.Registerer
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	initialized   bool
	enabled       bool
	mu            sync.RWMutex

	// Metric instruments
	schedulerCyclesCounter  metric.Int64Counter
	schedulerCycleHist      metric.Float64Histogram
	partyFailuresCounter    metric.Int64Counter
	votesCounter            metric.Int64Counter
	settlementsCounter      metric.Int64Counter
	pointsPaidCounter       metric.Int64Counter
	statusChangesCounter    metric.Int64Counter
	matchSourceCacheCounter metric.Int64Counter
}

// NewMetricsProvider creates a new metrics provider. The Prometheus exporter
// registers with registerer, or with the default registry when it is nil.
func NewMetricsProvider(cfg *config.Config, registerer prometheus.Registerer) *MetricsProvider {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	return &MetricsProvider{
		config:     cfg,
		registerer: registerer,
	}
}

// Initialize sets up the OpenTelemetry meter provider and instruments
func (mp *MetricsProvider) Initialize(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.initialized {
		log.Debug("Metrics provider already initialized")
		return nil
	}

	if !mp.config.OTelEnabled || mp.config.OTelExporterType == ExporterNone {
		log.Info("OpenTelemetry metrics disabled")
		mp.initialized = true
		return nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(mp.config.OTelServiceName),
			attribute.String("environment", mp.config.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	reader, err := mp.newReader(ctx)
	if err != nil {
		return err
	}

	mp.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(mp.meterProvider)
	mp.meter = mp.meterProvider.Meter("watchparty")

	if err := mp.createInstruments(); err != nil {
		return fmt.Errorf("failed to create instruments: %w", err)
	}

	mp.initialized = true
	mp.enabled = true
	log.WithField("exporter", mp.config.OTelExporterType).Info("Metrics provider initialized successfully")
	return nil
}

func (mp *MetricsProvider) newReader(ctx context.Context) (sdkmetric.Reader, error) {
	interval := time.Duration(mp.config.OTelExportIntervalMillis) * time.Millisecond

	switch mp.config.OTelExporterType {
	case ExporterConsole:
		exporter, err := stdoutmetric.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create console exporter: %w", err)
		}
		return sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval)), nil

	case ExporterOTLP:
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		exporter, err := otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(mp.config.OTelOTLPEndpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		log.WithField("endpoint", mp.config.OTelOTLPEndpoint).Info("Using OTLP metric exporter")
		return sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval)), nil

	case ExporterPrometheus:
		// Pull based, served by the admin API at /metrics
		exporter, err := otelprometheus.New(otelprometheus.WithRegisterer(mp.registerer))
		if err != nil {
			return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
		}
		return exporter, nil

	default:
		return nil, fmt.Errorf("unknown exporter type: %s", mp.config.OTelExporterType)
	}
}

// createInstruments creates all metric instruments
func (mp *MetricsProvider) createInstruments() error {
	var err error

	mp.schedulerCyclesCounter, err = mp.meter.Int64Counter(
		SchedulerCyclesTotal,
		metric.WithDescription("Total number of match scheduler cycles"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create scheduler cycles counter: %w", err)
	}

	mp.schedulerCycleHist, err = mp.meter.Float64Histogram(
		SchedulerCycleDuration,
		metric.WithDescription("Duration of match scheduler cycles in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60),
	)
	if err != nil {
		return fmt.Errorf("failed to create scheduler cycle histogram: %w", err)
	}

	mp.partyFailuresCounter, err = mp.meter.Int64Counter(
		SchedulerPartyFailuresTotal,
		metric.WithDescription("Total number of failed watch party updates"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create party failures counter: %w", err)
	}

	mp.votesCounter, err = mp.meter.Int64Counter(
		WagerVotesTotal,
		metric.WithDescription("Total number of accepted wager votes"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create votes counter: %w", err)
	}

	mp.settlementsCounter, err = mp.meter.Int64Counter(
		WagerSettlementsTotal,
		metric.WithDescription("Total number of settled wagers"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create settlements counter: %w", err)
	}

	mp.pointsPaidCounter, err = mp.meter.Int64Counter(
		WagerPointsPaidTotal,
		metric.WithDescription("Total number of points paid out by wagers"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create points paid counter: %w", err)
	}

	mp.statusChangesCounter, err = mp.meter.Int64Counter(
		PartyStatusChangesTotal,
		metric.WithDescription("Total number of watch party status changes"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create status changes counter: %w", err)
	}

	mp.matchSourceCacheCounter, err = mp.meter.Int64Counter(
		MatchSourceCacheTotal,
		metric.WithDescription("Total number of match cache lookups"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create match cache counter: %w", err)
	}

	return nil
}

// Shutdown flushes and shuts down the meter provider
func (mp *MetricsProvider) Shutdown(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.meterProvider != nil {
		return mp.meterProvider.Shutdown(ctx)
	}
	return nil
}

// RecordSchedulerCycle records one completed scheduler cycle
func (mp *MetricsProvider) RecordSchedulerCycle(parties, failures int, duration time.Duration) {
	if !mp.isEnabled() {
		return
	}

	ctx := context.Background()
	mp.schedulerCyclesCounter.Add(ctx, 1)
	mp.schedulerCycleHist.Record(ctx, duration.Seconds())
}

// RecordPartyUpdateFailure records a watch party that failed to update
func (mp *MetricsProvider) RecordPartyUpdateFailure(partyName string) {
	if !mp.isEnabled() {
		return
	}

	mp.partyFailuresCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String(LabelWatchParty, partyName),
		),
	)
}

// RecordVote records an accepted vote
func (mp *MetricsProvider) RecordVote(kind entities.WagerKind) {
	if !mp.isEnabled() {
		return
	}

	mp.votesCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String(LabelWagerKind, string(kind)),
		),
	)
}

// RecordSettlement records a resolved wager and the points it paid
func (mp *MetricsProvider) RecordSettlement(kind entities.WagerKind, method entities.SettlementMethod, paid int64) {
	if !mp.isEnabled() {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(LabelWagerKind, string(kind)),
		attribute.String(LabelMethod, string(method)),
	)
	mp.settlementsCounter.Add(context.Background(), 1, attrs)
	if paid > 0 {
		mp.pointsPaidCounter.Add(context.Background(), paid, attrs)
	}
}

// RecordPartyStatusChange records a watch party entering a status
func (mp *MetricsProvider) RecordPartyStatusChange(status entities.WatchPartyStatus) {
	if !mp.isEnabled() {
		return
	}

	mp.statusChangesCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String(LabelStatus, string(status)),
		),
	)
}

// RecordMatchCacheLookup records a match cache hit or miss
func (mp *MetricsProvider) RecordMatchCacheLookup(hit bool) {
	if !mp.isEnabled() {
		return
	}

	result := CacheResultMiss
	if hit {
		result = CacheResultHit
	}
	mp.matchSourceCacheCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String(LabelResult, result),
		),
	)
}

// isEnabled checks if metrics are enabled and initialized
func (mp *MetricsProvider) isEnabled() bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return mp.initialized && mp.enabled
}

var _ interfaces.MetricsRecorder = (*MetricsProvider)(nil)
