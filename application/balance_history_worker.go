package application

import (
	"context"
	"sync"
	"time"

	"watchparty/domain/entities"
	"watchparty/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

const (
	DefaultHistoryBufferSize = 1000

	// historyWriteTimeout bounds a single repository write
	historyWriteTimeout = 5 * time.Second
)

// BalanceHistoryWorker persists ledger mutations off the hot path.
// Entries are queued in a bounded buffer and written by a single goroutine.
type BalanceHistoryWorker struct {
	repo    interfaces.BalanceHistoryRepository
	entries chan *entities.BalanceHistory

	mu      sync.Mutex
	dropped int64
}

// NewBalanceHistoryWorker creates a new balance history worker
func NewBalanceHistoryWorker(repo interfaces.BalanceHistoryRepository, bufferSize int) *BalanceHistoryWorker {
	if bufferSize <= 0 {
		bufferSize = DefaultHistoryBufferSize
	}
	return &BalanceHistoryWorker{
		repo:    repo,
		entries: make(chan *entities.BalanceHistory, bufferSize),
	}
}

// RecordAsync queues an entry. When the buffer is full the entry is dropped.
func (w *BalanceHistoryWorker) RecordAsync(history *entities.BalanceHistory) {
	select {
	case w.entries <- history:
	default:
		w.mu.Lock()
		w.dropped++
		dropped := w.dropped
		w.mu.Unlock()

		log.WithFields(log.Fields{
			"discordID":       history.DiscordID,
			"scope":           history.Scope,
			"transactionType": history.TransactionType,
			"dropped":         dropped,
		}).Warn("Balance history buffer full, dropping entry")
	}
}

// Dropped returns the number of entries discarded because the buffer was full
func (w *BalanceHistoryWorker) Dropped() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dropped
}

// Start begins writing queued entries. The returned function stops the worker
// after the queued entries are written and waits for it to finish.
func (w *BalanceHistoryWorker) Start(ctx context.Context) func() {
	stopChan := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		log.Info("Balance history worker started")

		for {
			select {
			case <-ctx.Done():
				log.Info("Balance history worker shutting down (context cancelled)...")
				w.drain(context.Background())
				return
			case <-stopChan:
				log.Info("Balance history worker shutting down (stop requested)...")
				w.drain(context.Background())
				return
			case entry := <-w.entries:
				w.write(ctx, entry)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stopChan)
			<-done
		})
	}
}

func (w *BalanceHistoryWorker) drain(ctx context.Context) {
	written := 0
	for {
		select {
		case entry := <-w.entries:
			w.write(ctx, entry)
			written++
		default:
			if written > 0 {
				log.WithField("entries", written).Info("Flushed balance history buffer")
			}
			return
		}
	}
}

func (w *BalanceHistoryWorker) write(ctx context.Context, entry *entities.BalanceHistory) {
	ctx, cancel := context.WithTimeout(ctx, historyWriteTimeout)
	defer cancel()

	if err := w.repo.Record(ctx, entry); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"discordID":       entry.DiscordID,
			"scope":           entry.Scope,
			"transactionType": entry.TransactionType,
			"changeAmount":    entry.ChangeAmount,
		}).Error("Failed to record balance history")
	}
}

var _ interfaces.BalanceHistoryRecorder = (*BalanceHistoryWorker)(nil)
