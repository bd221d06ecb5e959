package main

import (
	"context"

	"github.com/okian/scoutstat/internal/domain/match"
)

type emptyRepo struct{}

func (emptyRepo) MatchTeams(context.Context, string, int) (match.TeamMatches, error) {
	return match.TeamMatches{}, nil
}

func (emptyRepo) MatchScores(context.Context, string, int) (match.ScoreMatches, error) {
	return match.ScoreMatches{}, nil
}
