// Package opr computes offensive power ratings by least-squares regression of
// alliance scores onto alliance compositions.
package opr

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/scoutstat/internal/domain/match"
	"github.com/okian/scoutstat/pkg/logger"
	"github.com/okian/scoutstat/pkg/metrics"
	"gonum.org/v1/gonum/mat"
)

// Selector extracts the regressed value from an alliance score record.
type Selector func(match.Scores) float64

// Statistic selects a single named score field. Missing fields read as zero.
func Statistic(name string) Selector {
	return func(s match.Scores) float64 { return s[name] }
}

// Engine computes OPR for one event at a time. It holds no rating state.
type Engine struct {
	repo   match.Repository
	logger logger.Logger
}

// New creates an Engine reading from repo.
func New(repo match.Repository, opts ...Option) (*Engine, error) {
	if repo == nil {
		return nil, ErrNilRepository
	}
	e := &Engine{
		repo:   repo,
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// System is the linear system A·x = b for one event.
// Columns of A follow Teams, rows follow Rows.
type System struct {
	Teams []int
	Rows  []match.Key
	A     *mat.Dense
	B     *mat.VecDense
}

// Build assembles the system from participation and scores. It returns
// false when any participation key lacks a score record. Score records
// without participation are ignored.
func Build(teams match.TeamMatches, scores match.ScoreMatches, sel Selector) (*System, bool) {
	universe := teams.Universe()
	rows := teams.Keys()
	sys := &System{Teams: universe, Rows: rows}
	if len(rows) == 0 || len(universe) == 0 {
		return sys, true
	}

	col := make(map[int]int, len(universe))
	for i, team := range universe {
		col[team] = i
	}

	a := mat.NewDense(len(rows), len(universe), nil)
	b := mat.NewVecDense(len(rows), nil)
	for r, k := range rows {
		s, ok := scores[k.ID]
		if !ok {
			return nil, false
		}
		for _, team := range teams[k.ID].Teams.OnField() {
			a.Set(r, col[team], 1)
		}
		b.SetVec(r, sel(s))
	}
	sys.A = a
	sys.B = b
	return sys, true
}

// Solve returns the least-norm least-squares solution x = pinv(A)·b.
func (s *System) Solve() (*mat.VecDense, error) {
	p, err := PseudoInverse(s.A)
	if err != nil {
		return nil, err
	}
	x := mat.NewVecDense(len(s.Teams), nil)
	x.MulVec(p, s.B)
	return x, nil
}

// Calculate returns the OPR of every on-field team at the event for the
// value chosen by sel. Inconsistent data yields an empty map and no error.
func (e *Engine) Calculate(ctx context.Context, eventCode string, season int, sel Selector) (map[int]float64, error) {
	start := time.Now()

	teams, err := e.repo.MatchTeams(ctx, eventCode, season)
	if err != nil {
		metrics.RecordOPRError()
		return nil, fmt.Errorf("opr: load teams for %s: %w", eventCode, err)
	}
	scores, err := e.repo.MatchScores(ctx, eventCode, season)
	if err != nil {
		metrics.RecordOPRError()
		return nil, fmt.Errorf("opr: load scores for %s: %w", eventCode, err)
	}

	sys, ok := Build(teams, scores, sel)
	if !ok {
		e.logger.Warn(ctx, "participation without scores, returning empty OPR",
			logger.String("event", eventCode),
			logger.Int("season", season))
		metrics.RecordOPREmptyResult()
		return map[int]float64{}, nil
	}
	if sys.A == nil {
		metrics.RecordOPREmptyResult()
		return map[int]float64{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	x, err := sys.Solve()
	if err != nil {
		metrics.RecordOPRError()
		return nil, fmt.Errorf("opr: solve %s: %w", eventCode, err)
	}

	out := make(map[int]float64, len(sys.Teams))
	for i, team := range sys.Teams {
		out[team] = x.AtVec(i)
	}

	took := time.Since(start)
	metrics.RecordOPRComputation(float64(took.Microseconds()) / 1000)
	e.logger.Debug(ctx, "opr computed",
		logger.String("event", eventCode),
		logger.Int("rows", len(sys.Rows)),
		logger.Int("teams", len(sys.Teams)),
		logger.Duration("took", took))
	return out, nil
}

// CalcSingleStatOPR computes OPR for one score field of the season.
func (e *Engine) CalcSingleStatOPR(ctx context.Context, eventCode, statistic string, season int) (map[int]float64, error) {
	if err := match.ValidateStatistic(season, statistic); err != nil {
		return nil, err
	}
	return e.Calculate(ctx, eventCode, season, Statistic(statistic))
}
