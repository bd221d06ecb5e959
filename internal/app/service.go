// Package service wires the rating engines, the OPR job queue and the worker
// pool into the dependency set required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	eventqueue "github.com/okian/scoutstat/internal/adapters/mq/queue"
	workerpool "github.com/okian/scoutstat/internal/adapters/mq/worker"
	"github.com/okian/scoutstat/internal/domain/epa"
	"github.com/okian/scoutstat/internal/domain/match"
	"github.com/okian/scoutstat/internal/domain/model"
	"github.com/okian/scoutstat/internal/domain/opr"
	"github.com/okian/scoutstat/internal/domain/types"
	"github.com/okian/scoutstat/pkg/logger"
	"github.com/okian/scoutstat/pkg/metrics"
)

// Service implements the API dependencies for OPR and EPA ratings.
type Service struct {
	mu sync.RWMutex

	repo match.Repository

	// Core components
	opr   *opr.Engine
	queue *eventqueue.InMemoryQueue
	pool  *workerpool.Pool

	// epa is published once replay completes and never mutated afterwards.
	epa       atomic.Pointer[epa.Engine]
	replayErr error
	replayed  int
	runID     string
	ready     chan struct{}

	// Configuration
	workerCount int
	queueSize   int
	season      int
	oprTimeout  time.Duration
	epaOptions  []epa.Option

	// State
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of OPR worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of pending OPR jobs.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithSeason sets the season replayed for EPA.
func WithSeason(season int) Option {
	return func(s *Service) {
		if season > 0 {
			s.season = season
		}
	}
}

// WithOPRTimeout bounds how long a caller waits for an OPR result.
func WithOPRTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.oprTimeout = d
		}
	}
}

// WithEPAOptions passes extra options to the EPA engine.
func WithEPAOptions(opts ...epa.Option) Option {
	return func(s *Service) {
		s.epaOptions = append(s.epaOptions, opts...)
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service reading match data from repo.
func New(repo match.Repository, opts ...Option) (*Service, error) {
	if repo == nil {
		return nil, ErrNilRepo
	}
	s := &Service{
		repo:        repo,
		workerCount: runtime.NumCPU(),
		queueSize:   1024,
		season:      match.Season2024,
		oprTimeout:  10 * time.Second,
		ready:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start launches the OPR workers and replays the EPA season in the
// background. Use WaitReady to block until ratings are published.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	oprEngine, err := opr.New(s.repo, opr.WithLogger(s.logger.Named("opr")))
	if err != nil {
		return fmt.Errorf("create opr engine: %w", err)
	}

	// Components outlive the Start call; only Stop ends them.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	s.opr = oprEngine
	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	// Workers give up only after the caller has stopped waiting.
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s.opr,
		workerpool.WithJobTimeout(2*s.oprTimeout))
	s.pool.Start(runCtx)

	s.cancel = cancel
	s.ready = make(chan struct{})
	// A restart replays from scratch; ratings of an earlier run are not served.
	s.epa.Store(nil)
	s.replayErr = nil
	s.replayed = 0
	s.runID = uuid.NewString()
	s.started = true

	s.wg.Add(1)
	go s.replay(runCtx, s.runID, s.ready)

	s.logger.Info(ctx, "rating service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("season", s.season),
		logger.String("run", s.runID))
	return nil
}

// replay builds a fresh EPA engine and publishes it when the season has
// been applied.
func (s *Service) replay(ctx context.Context, runID string, ready chan struct{}) {
	defer s.wg.Done()
	defer close(ready)

	start := time.Now()
	log := s.logger.Named("epa")
	opts := append([]epa.Option{epa.WithLogger(log), epa.WithSeason(s.season)}, s.epaOptions...)

	n, err := func() (int, error) {
		engine, err := epa.New(s.repo, opts...)
		if err != nil {
			return 0, err
		}
		if err := engine.Init(ctx); err != nil {
			return 0, err
		}
		n, err := engine.ReplaySeason(ctx)
		if err != nil {
			return n, err
		}
		s.epa.Store(engine)
		return n, nil
	}()

	s.mu.Lock()
	s.replayErr = err
	s.replayed = n
	s.mu.Unlock()

	if err != nil {
		metrics.RecordErrorByComponent("service", "epa_replay")
		s.logger.Error(ctx, "epa replay failed",
			logger.String("run", runID),
			logger.Int("applied", n),
			logger.Error(err))
		return
	}
	s.logger.Info(ctx, "epa ratings published",
		logger.String("run", runID),
		logger.Int("matches", n),
		logger.Duration("took", time.Since(start)))
}

// WaitReady blocks until the replay started by Start has finished and
// returns its error.
func (s *Service) WaitReady(ctx context.Context) error {
	s.mu.RLock()
	if !s.started {
		s.mu.RUnlock()
		return ErrNotStarted
	}
	ready := s.ready
	s.mu.RUnlock()

	select {
	case <-ready:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.replayErr
}

// Ready reports whether EPA ratings have been published.
func (s *Service) Ready() bool {
	return s.epa.Load() != nil
}

// Stop shuts down workers, the queue and any running replay.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.logger.Info(context.Background(), "stopping rating service...")

	s.cancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.pool.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn(shutdownCtx, "worker pool shutdown", logger.Error(err))
	}
	_ = s.queue.Close()
	s.started = false
	s.mu.Unlock()

	// replay takes the lock to record its result.
	s.wg.Wait()
	s.logger.Info(context.Background(), "rating service stopped")
}

// CalcSingleStatOPR queues an OPR computation and waits for its result.
// Invalid seasons and statistics are rejected before queuing.
func (s *Service) CalcSingleStatOPR(ctx context.Context, eventCode, statistic string, season int) (map[int]float64, error) {
	s.mu.RLock()
	started, queue, timeout := s.started, s.queue, s.oprTimeout
	s.mu.RUnlock()
	if !started {
		return nil, ErrNotStarted
	}
	if err := match.ValidateStatistic(season, statistic); err != nil {
		return nil, err
	}

	reply := make(chan model.Result, 1)
	job := model.Job{
		ID:        uuid.NewString(),
		EventCode: eventCode,
		Season:    season,
		Statistic: statistic,
		Enqueued:  time.Now(),
		Reply:     reply,
	}
	if !queue.Enqueue(ctx, job) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, ErrBackpressure
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case r := <-reply:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Ratings, nil
	case <-timer.C:
		metrics.RecordErrorByComponent("service", "opr_timeout")
		return nil, ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Service) engine() (*epa.Engine, error) {
	if e := s.epa.Load(); e != nil {
		return e, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	if s.replayErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotReady, s.replayErr)
	}
	return nil, fmt.Errorf("%w: %w", ErrNotReady, epa.ErrNotInitialized)
}

// GetEPA returns the current EPA of team, or the EPA it held at time at
// (epoch seconds) when at is set.
func (s *Service) GetEPA(_ context.Context, team int, at *int64) (float64, error) {
	e, err := s.engine()
	if err != nil {
		return 0, err
	}
	if at != nil {
		return e.RatingAt(team, *at)
	}
	return e.Rating(team)
}

// GetAllEPAs returns team's EPA history keyed by match start time.
func (s *Service) GetAllEPAs(_ context.Context, team int) (map[int64]float64, error) {
	e, err := s.engine()
	if err != nil {
		return nil, err
	}
	return e.History(team)
}

// GetRanks returns the standing of every rated team.
func (s *Service) GetRanks(_ context.Context) (map[int]epa.Rank, error) {
	e, err := s.engine()
	if err != nil {
		return nil, err
	}
	return e.Ranks()
}

// Rank returns a single team's leaderboard entry.
func (s *Service) Rank(_ context.Context, team int) (types.Entry, error) {
	e, err := s.engine()
	if err != nil {
		return types.Entry{}, err
	}
	r, err := e.RankOf(team)
	if err != nil {
		return types.Entry{}, err
	}
	return types.Entry{Rank: r.Rank, Team: team, Rating: r.Rating}, nil
}

// TopN returns the n best rated teams.
func (s *Service) TopN(_ context.Context, n int) ([]types.Entry, error) {
	e, err := s.engine()
	if err != nil {
		return nil, err
	}
	return e.Top(n)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":     s.started,
		"ready":       s.epa.Load() != nil,
		"season":      s.season,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
	}
	if !s.started {
		return stats
	}

	stats["queueLength"] = s.queue.Len(context.Background())
	stats["run"] = s.runID
	stats["replayedMatches"] = s.replayed
	if s.replayErr != nil {
		stats["replayError"] = s.replayErr.Error()
	}
	if e := s.epa.Load(); e != nil {
		stats["teams"] = e.TeamCount()
		if b, err := e.Bootstrap(); err == nil {
			stats["bootstrap"] = b
		}
	}
	return stats
}
