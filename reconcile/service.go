package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/receive-engine/fifo"
)

// Service exposes the reconciliation operations. Every write takes the
// logistic-number lock, then runs in one store transaction.
type Service struct {
	store  TxStore
	locker Locker
	ledger *fifo.Writer
	logger *zap.Logger

	now    func() time.Time
	newUID func() string
}

func NewService(store TxStore, locker Locker, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:  store,
		locker: locker,
		ledger: fifo.NewWriter(logger.Named("fifo")),
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		newUID: func() string { return uuid.NewString() },
	}
}

// withLock holds exclusive intent on logisticNum while fn runs.
func (s *Service) withLock(ctx context.Context, logisticNum string, fn func() error) error {
	release, err := s.locker.Acquire(ctx, LockKey(logisticNum))
	if err != nil {
		return fmt.Errorf("acquire lock for %s: %w", logisticNum, err)
	}
	defer release()
	return fn()
}

// LockKey is the Locker key guarding one logistic shipment.
func LockKey(logisticNum string) string {
	return "receive-abnormal:" + logisticNum
}

// DateOnly truncates t to its calendar day in UTC.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sameDay(a, b time.Time) bool {
	return DateOnly(a).Equal(DateOnly(b))
}
