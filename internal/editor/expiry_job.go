package editor

import (
	"context"
	"sync"
	"time"
)

// ExpiryJob periodically closes abandoned editor sessions
type ExpiryJob struct {
	manager  *Manager
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewExpiryJob creates a job sweeping manager every interval
func NewExpiryJob(manager *Manager, interval time.Duration) *ExpiryJob {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ExpiryJob{
		manager:  manager,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start runs the job until Stop is called or ctx is done
func (j *ExpiryJob) Start(ctx context.Context) {
	j.manager.logger.Info("Editor session expiry job started")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.manager.Expire()
		case <-j.stopCh:
			j.manager.logger.Info("Editor session expiry job stopped")
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop signals the job to stop
func (j *ExpiryJob) Stop() {
	j.stopOnce.Do(func() { close(j.stopCh) })
}
