package auth

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const DefaultResetSweepInterval = 10 * time.Minute

// ResetTokenJanitor periodically clears reset tokens whose expiry has passed,
// token and expiry together.
type ResetTokenJanitor struct {
	repository Repository
	interval   time.Duration
	logger     *zap.Logger
	now        func() time.Time

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewResetTokenJanitor(repo Repository, interval time.Duration, logger *zap.Logger) *ResetTokenJanitor {
	if interval <= 0 {
		interval = DefaultResetSweepInterval
	}
	return &ResetTokenJanitor{
		repository: repo,
		interval:   interval,
		logger:     logger,
		now:        time.Now,
		stopChan:   make(chan struct{}),
	}
}

func (j *ResetTokenJanitor) Start() {
	j.wg.Add(1)
	go j.loop()
}

// Stop blocks until the background loop has exited. Later calls are no-ops.
func (j *ResetTokenJanitor) Stop() {
	j.stopOnce.Do(func() { close(j.stopChan) })
	j.wg.Wait()
}

func (j *ResetTokenJanitor) RunOnce(ctx context.Context) (int64, error) {
	cleared, err := j.repository.ClearExpiredResetTokens(ctx, j.now())
	if err != nil {
		j.logger.Error("failed to clear expired reset tokens", zap.Error(err))
		return 0, err
	}
	if cleared > 0 {
		j.logger.Info("cleared expired reset tokens", zap.Int64("count", cleared))
	}
	return cleared, nil
}

func (j *ResetTokenJanitor) loop() {
	defer j.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.stopChan:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), j.interval)
			_, _ = j.RunOnce(ctx)
			cancel()
		}
	}
}
