package research

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/reseich/reseich-api/internal/logger"
	"github.com/robfig/cron/v3"
)

// Expirer is the part of Service the expiry job needs.
type Expirer interface {
	ExpireStale(ctx context.Context) (int, error)
}

// ExpiryJob periodically fails research items the workflow engine never finished.
type ExpiryJob struct {
	cron    *cron.Cron
	expirer Expirer
	timeout time.Duration
	logger  *logger.Logger
}

// NewExpiryJob schedules expirer on spec, a standard 5-field cron expression
// or a descriptor such as "@every 5m".
func NewExpiryJob(spec string, expirer Expirer, logger *logger.Logger) (*ExpiryJob, error) {
	j := &ExpiryJob{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		expirer: expirer,
		timeout: time.Minute,
		logger:  logger.WithComponent("research-expiry"),
	}
	if _, err := j.cron.AddFunc(spec, j.Run); err != nil {
		return nil, fmt.Errorf("invalid research expiry schedule %q: %w", spec, err)
	}
	return j, nil
}

// Run performs a single expiry sweep.
func (j *ExpiryJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	n, err := j.expirer.ExpireStale(logger.WithOperation(ctx, "research_expiry"))
	if err != nil {
		j.logger.LogError(ctx, err, "research expiry sweep failed")
		return
	}
	if n > 0 {
		j.logger.Info("expired stale research items", slog.Int("count", n))
	}
}

func (j *ExpiryJob) Start() {
	j.cron.Start()
}

// Stop halts scheduling and waits for a running sweep to finish or ctx to expire.
func (j *ExpiryJob) Stop(ctx context.Context) {
	select {
	case <-j.cron.Stop().Done():
	case <-ctx.Done():
		j.logger.Warn("research expiry stop timed out")
	}
}
