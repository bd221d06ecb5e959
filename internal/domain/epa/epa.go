// Package epa maintains Elo-style expected points added ratings. Ratings are
// seeded from a bootstrap window and updated match by match in start time
// order, keeping a full history for point-in-time lookups.
package epa

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/okian/scoutstat/internal/domain/match"
	"github.com/okian/scoutstat/internal/domain/types"
	"github.com/okian/scoutstat/pkg/logger"
	"github.com/okian/scoutstat/pkg/metrics"
	"gonum.org/v1/gonum/stat"
)

// LearningRate scales the margin error applied to each alliance.
const LearningRate = 36.0 / 250.0

// Default bootstrap window, January 2025 in epoch seconds, inclusive.
const (
	BootstrapStart int64 = 1735707600
	BootstrapEnd   int64 = 1738299600
)

// teamsPerAlliance divides the bootstrap average into a per-team default.
const teamsPerAlliance = 3

// Point is one history entry: the rating a team held after a match.
type Point struct {
	Key    match.Key
	Rating float64
}

// Rank is a team's position in the standings.
type Rank struct {
	Rank   int     `json:"rank"`
	Rating float64 `json:"rating"`
}

// Bootstrap summarises the alliance scores inside the bootstrap window.
type Bootstrap struct {
	Matches int     `json:"matches"`
	Mean    float64 `json:"mean"`
	StdDev  float64 `json:"stddev"`
	Default float64 `json:"default"`
}

// Engine holds per-team rating state for one season. Mutation happens via
// Init, ReplaySeason and ApplyUpdate; queries are safe for concurrent use.
type Engine struct {
	mu sync.RWMutex

	repo        match.Repository
	season      int
	windowStart int64
	windowEnd   int64
	logger      logger.Logger

	ready    bool
	replayed bool
	teams    match.TeamMatches
	scores   match.ScoreMatches
	boot     Bootstrap
	current  map[int]float64
	history  map[int][]Point
	ranks    *rankTree
}

// New creates an uninitialized Engine.
func New(repo match.Repository, opts ...Option) (*Engine, error) {
	if repo == nil {
		return nil, ErrNilRepository
	}
	e := &Engine{
		repo:        repo,
		season:      match.Season2024,
		windowStart: BootstrapStart,
		windowEnd:   BootstrapEnd,
		logger:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Init loads every match of the season and computes the default rating from
// the bootstrap window. Any previous rating state is discarded.
func (e *Engine) Init(ctx context.Context) error {
	teams, err := e.repo.MatchTeams(ctx, "", e.season)
	if err != nil {
		return fmt.Errorf("epa: load teams: %w", err)
	}
	scores, err := e.repo.MatchScores(ctx, "", e.season)
	if err != nil {
		return fmt.Errorf("epa: load scores: %w", err)
	}

	var totals []float64
	for _, k := range teams.Keys() {
		if k.StartTime < e.windowStart || k.StartTime > e.windowEnd {
			continue
		}
		total, ok := scores[k.ID].Total()
		if !ok {
			return &MissingCounterpartError{Key: k, Record: "score"}
		}
		totals = append(totals, total)
	}
	if len(totals) == 0 {
		return fmt.Errorf("%w: [%d, %d]", ErrEmptyBootstrapWindow, e.windowStart, e.windowEnd)
	}

	mean, std := stat.PopMeanStdDev(totals, nil)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.teams = teams
	e.scores = scores
	e.boot = Bootstrap{
		Matches: len(totals),
		Mean:    mean,
		StdDev:  std,
		Default: mean / teamsPerAlliance,
	}
	e.current = make(map[int]float64)
	e.history = make(map[int][]Point)
	e.ranks = newRankTree()
	e.ready = true
	e.replayed = false

	metrics.UpdateEPABootstrapAverage(mean)
	e.logger.Info(ctx, "epa bootstrap computed",
		logger.Int("season", e.season),
		logger.Int("alliances", len(totals)),
		logger.Float64("mean", mean),
		logger.Float64("stddev", std),
		logger.Float64("default", e.boot.Default))
	return nil
}

// ReplaySeason applies every loaded match once, in start time order, and
// returns the number applied. A blue alliance without a red counterpart
// aborts before anything is applied; otherwise the first failing match aborts
// the replay.
func (e *Engine) ReplaySeason(ctx context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.ready {
		return 0, ErrNotInitialized
	}
	if e.replayed {
		return 0, ErrAlreadyReplayed
	}

	for _, k := range e.teams.Chronological(match.Blue) {
		if _, ok := e.teams[k.ID.WithAlliance(match.Red)]; !ok {
			metrics.RecordEPAReplayFailure()
			err := &MissingCounterpartError{Key: k.WithAlliance(match.Red), Record: "participation"}
			e.logger.Error(ctx, "epa replay aborted",
				logger.String("key", k.String()),
				logger.Error(err))
			return 0, err
		}
	}

	start := time.Now()
	keys := e.teams.Chronological(match.Red)
	e.logger.Info(ctx, "epa replay started", logger.Int("matches", len(keys)))

	applied := 0
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			metrics.RecordEPAReplayFailure()
			return applied, err
		}
		if err := e.apply(k); err != nil {
			metrics.RecordEPAReplayFailure()
			e.logger.Error(ctx, "epa replay aborted",
				logger.String("key", k.String()),
				logger.Int("applied", applied),
				logger.Error(err))
			return applied, err
		}
		applied++
	}
	e.replayed = true

	took := time.Since(start)
	metrics.RecordEPAReplay(float64(took.Milliseconds()), e.ranks.len())
	e.logger.Info(ctx, "epa replay finished",
		logger.Int("matches", applied),
		logger.Int("teams", e.ranks.len()),
		logger.Duration("took", took))
	return applied, nil
}

// ApplyUpdate applies one match, addressed by either alliance key. On error
// no rating changes.
func (e *Engine) ApplyUpdate(key match.Key) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.ready {
		return ErrNotInitialized
	}
	return e.apply(key)
}

func (e *Engine) apply(key match.Key) error {
	red, ok := e.teams[key.ID.WithAlliance(match.Red)]
	if !ok {
		return &MissingCounterpartError{Key: key.WithAlliance(match.Red), Record: "participation"}
	}
	blue, ok := e.teams[key.ID.WithAlliance(match.Blue)]
	if !ok {
		return &MissingCounterpartError{Key: key.WithAlliance(match.Blue), Record: "participation"}
	}
	redTotal, ok := e.scores[red.Key.ID].Total()
	if !ok {
		return &MissingCounterpartError{Key: red.Key, Record: "score"}
	}
	blueTotal, ok := e.scores[blue.Key.ID].Total()
	if !ok {
		return &MissingCounterpartError{Key: blue.Key, Record: "score"}
	}

	at := red.Key
	redTeams := red.Teams.OnField()
	blueTeams := blue.Teams.OnField()
	for _, team := range append(append([]int(nil), redTeams...), blueTeams...) {
		if h := e.history[team]; len(h) > 0 && h[len(h)-1].Key.StartTime > at.StartTime {
			return fmt.Errorf("%w: team %d at %s", ErrOutOfOrder, team, at)
		}
	}

	predicted := e.sum(redTeams) - e.sum(blueTeams)
	actual := redTotal - blueTotal
	delta := LearningRate * (actual - predicted)

	for _, team := range redTeams {
		e.set(team, e.ratingOf(team)+delta, at)
	}
	for _, team := range blueTeams {
		e.set(team, e.ratingOf(team)-delta, at)
	}
	metrics.RecordEPAMatchReplayed()
	return nil
}

// ratingOf returns the current rating or the default, without storing it.
func (e *Engine) ratingOf(team int) float64 {
	if r, ok := e.current[team]; ok {
		return r
	}
	return e.boot.Default
}

func (e *Engine) sum(teams []int) float64 {
	var s float64
	for _, team := range teams {
		s += e.ratingOf(team)
	}
	return s
}

func (e *Engine) set(team int, rating float64, at match.Key) {
	e.current[team] = rating
	e.history[team] = append(e.history[team], Point{Key: at, Rating: rating})
	e.ranks.upsert(team, rating)
}

// Rating returns the current rating of team, or the default if it never
// played.
func (e *Engine) Rating(team int) (float64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.ready {
		return 0, ErrNotInitialized
	}
	return e.ratingOf(team), nil
}

// RatingAt returns the rating team held after its last match starting at or
// before t. A team with no such match rates 0.
func (e *Engine) RatingAt(team int, t int64) (float64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.ready {
		return 0, ErrNotInitialized
	}
	h := e.history[team]
	i := sort.Search(len(h), func(i int) bool { return h[i].Key.StartTime > t })
	if i == 0 {
		return 0, nil
	}
	return h[i-1].Rating, nil
}

// History returns team's ratings keyed by match start time. Matches sharing
// a start time keep the later rating.
func (e *Engine) History(team int) (map[int64]float64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.ready {
		return nil, ErrNotInitialized
	}
	out := make(map[int64]float64, len(e.history[team]))
	for _, p := range e.history[team] {
		out[p.Key.StartTime] = p.Rating
	}
	return out, nil
}

// Points returns a copy of team's raw history in processing order.
func (e *Engine) Points(team int) ([]Point, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.ready {
		return nil, ErrNotInitialized
	}
	return append([]Point(nil), e.history[team]...), nil
}

// Ranks returns the standing of every rated team: rating descending, ties
// broken by ascending team number.
func (e *Engine) Ranks() (map[int]Rank, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.ready {
		return nil, ErrNotInitialized
	}
	out := make(map[int]Rank, e.ranks.len())
	e.ranks.walk(func(rank, team int, rating float64) bool {
		out[team] = Rank{Rank: rank, Rating: rating}
		return true
	})
	return out, nil
}

// RankOf returns a single team's standing.
func (e *Engine) RankOf(team int) (Rank, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.ready {
		return Rank{}, ErrNotInitialized
	}
	pos := e.ranks.rankOf(team)
	if pos == 0 {
		return Rank{}, fmt.Errorf("%w: %d", ErrUnrankedTeam, team)
	}
	return Rank{Rank: pos, Rating: e.current[team]}, nil
}

// Top returns the n best rated teams.
func (e *Engine) Top(n int) ([]types.Entry, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.ready {
		return nil, ErrNotInitialized
	}
	if n <= 0 {
		return []types.Entry{}, nil
	}
	out := make([]types.Entry, 0, min(n, e.ranks.len()))
	e.ranks.walk(func(rank, team int, rating float64) bool {
		out = append(out, types.Entry{Rank: rank, Team: team, Rating: rating})
		return len(out) < n
	})
	return out, nil
}

// Bootstrap returns the bootstrap window summary.
func (e *Engine) Bootstrap() (Bootstrap, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.ready {
		return Bootstrap{}, ErrNotInitialized
	}
	return e.boot, nil
}

// Ready reports whether Init has succeeded.
func (e *Engine) Ready() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ready
}

// Replayed reports whether ReplaySeason completed.
func (e *Engine) Replayed() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.replayed
}

// TeamCount returns the number of rated teams.
func (e *Engine) TeamCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.ranks == nil {
		return 0
	}
	return e.ranks.len()
}
