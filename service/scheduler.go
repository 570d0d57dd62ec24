package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"argus/correlate"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrScanThrottled is returned when on-demand scans exceed their rate limit.
var ErrScanThrottled = errors.New("on-demand scan rate limit exceeded")

// ErrScanInProgress is returned when another scan already holds the lock.
var ErrScanInProgress = errors.New("scan already in progress")

// Scanner runs one clustering pass.
type Scanner interface {
	ScanForCampaigns(ctx context.Context) (*correlate.ScanSummary, error)
}

// ScanScheduler runs clustering scans on a fixed interval and on demand.
// Overlapping execution is prevented by the Locker; concurrent scans over
// the same store would double-assign events.
type ScanScheduler struct {
	scanner  Scanner
	locker   Locker
	logger   *zap.SugaredLogger
	interval time.Duration
	limiter  *rate.Limiter

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScanScheduler creates a scheduler. onDemandPerMinute bounds manually
// triggered scans; scheduled scans are not rate limited.
func NewScanScheduler(scanner Scanner, locker Locker, interval time.Duration, onDemandPerMinute int, logger *zap.SugaredLogger) *ScanScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &ScanScheduler{
		scanner:  scanner,
		locker:   locker,
		logger:   logger,
		interval: interval,
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(onDemandPerMinute)), onDemandPerMinute),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the scan loop.
func (s *ScanScheduler) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				if err := s.runScan(s.ctx); err != nil && !errors.Is(err, ErrScanInProgress) {
					s.logger.Errorw("Scheduled scan failed", "error", err)
				}
			}
		}
	}()
	s.logger.Infow("Scan scheduler started", "interval", s.interval)
}

// Stop shuts the scheduler down and waits for an in-flight scan to finish.
func (s *ScanScheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

// TriggerScan runs a scan immediately, subject to the on-demand rate limit.
func (s *ScanScheduler) TriggerScan(ctx context.Context) (*correlate.ScanSummary, error) {
	if !s.limiter.Allow() {
		return nil, ErrScanThrottled
	}
	summary, err := s.runScanWithSummary(ctx)
	if err != nil {
		return nil, err
	}
	return summary, nil
}

func (s *ScanScheduler) runScan(ctx context.Context) error {
	_, err := s.runScanWithSummary(ctx)
	return err
}

func (s *ScanScheduler) runScanWithSummary(ctx context.Context) (*correlate.ScanSummary, error) {
	acquired, err := s.locker.TryLock(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire scan lock: %w", err)
	}
	if !acquired {
		s.logger.Debugw("Skipping scan, another scan holds the lock")
		return nil, ErrScanInProgress
	}
	defer func() {
		if err := s.locker.Unlock(ctx); err != nil {
			s.logger.Warnw("Failed to release scan lock", "error", err)
		}
	}()

	return s.scanner.ScanForCampaigns(ctx)
}
