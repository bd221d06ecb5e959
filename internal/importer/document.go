package importer

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/okian/scoutstat/internal/adapters/repository"
	"github.com/okian/scoutstat/internal/domain/match"
)

// matchesDocument is the FTC Event API response for /{season}/matches/{event}.
type matchesDocument struct {
	Matches []struct {
		ActualStartTime string `json:"actualStartTime"`
		TournamentLevel string `json:"tournamentLevel"`
		Series          int    `json:"series"`
		MatchNumber     int    `json:"matchNumber"`
		Teams           []struct {
			TeamNumber int    `json:"teamNumber"`
			Station    string `json:"station"`
			OnField    bool   `json:"onField"`
		} `json:"teams"`
	} `json:"matches"`
}

// scoresDocument is the FTC Event API response for /{season}/scores/{event}/{level}.
type scoresDocument struct {
	MatchScores []struct {
		MatchLevel  string                       `json:"matchLevel"`
		MatchSeries int                          `json:"matchSeries"`
		MatchNumber int                          `json:"matchNumber"`
		Alliances   []map[string]json.RawMessage `json:"alliances"`
	} `json:"matchScores"`
}

// stationAlliance maps "Red1", "Blue2" and similar to an alliance.
func stationAlliance(station string) (match.Alliance, bool) {
	switch {
	case strings.HasPrefix(station, string(match.Red)):
		return match.Red, true
	case strings.HasPrefix(station, string(match.Blue)):
		return match.Blue, true
	default:
		return "", false
	}
}

func normalizeLevel(level string) match.Level {
	l := strings.ToUpper(strings.TrimSpace(level))
	switch l {
	case "QUAL":
		return match.Qualification
	case "PLAYOFFS", "ELIM", "ELIMINATION":
		return match.Playoff
	}
	return match.Level(l)
}

func decodeMatches(data []byte, season int, event string) ([]repository.MatchRow, error) {
	var doc matchesDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	out := make([]repository.MatchRow, 0, len(doc.Matches))
	for _, m := range doc.Matches {
		if _, err := match.ParseStartTime(m.ActualStartTime, time.UTC); err != nil {
			return nil, fmt.Errorf("%w: match %d: %w", ErrDecode, m.MatchNumber, err)
		}
		row := repository.MatchRow{
			Season:    season,
			EventCode: event,
			Level:     normalizeLevel(m.TournamentLevel),
			Series:    m.Series,
			Number:    m.MatchNumber,
			StartTime: m.ActualStartTime,
			Teams:     make([]repository.TeamRow, 0, len(m.Teams)),
		}
		for _, t := range m.Teams {
			a, ok := stationAlliance(t.Station)
			if !ok || t.TeamNumber <= 0 {
				continue
			}
			row.Teams = append(row.Teams, repository.TeamRow{
				Team:     t.TeamNumber,
				Alliance: a,
				Station:  t.Station,
				OnField:  t.OnField,
			})
		}
		out = append(out, row)
	}
	return out, nil
}

// ScoreRecord is one decoded alliance score breakdown.
type ScoreRecord struct {
	ID     match.ID
	Scores match.Scores
}

func decodeScores(data []byte, season int, event string) ([]ScoreRecord, error) {
	var doc scoresDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	var out []ScoreRecord
	for _, ms := range doc.MatchScores {
		for _, raw := range ms.Alliances {
			var name string
			if err := json.Unmarshal(raw["alliance"], &name); err != nil {
				return nil, fmt.Errorf("%w: alliance name in match %d: %w", ErrDecode, ms.MatchNumber, err)
			}
			a := match.Alliance(name)
			if a != match.Red && a != match.Blue {
				return nil, fmt.Errorf("%w: alliance %q in match %d", ErrDecode, name, ms.MatchNumber)
			}
			scores := make(match.Scores, len(raw))
			for field, v := range raw {
				var f float64
				if err := json.Unmarshal(v, &f); err == nil {
					scores[field] = f
				}
			}
			if _, ok := scores.Total(); !ok {
				return nil, fmt.Errorf("%w: match %d %s has no %s", ErrDecode, ms.MatchNumber, a, match.TotalPoints)
			}
			delete(scores, "team")
			out = append(out, ScoreRecord{
				ID: match.ID{
					EventCode: event,
					Level:     normalizeLevel(ms.MatchLevel),
					Series:    ms.MatchSeries,
					Number:    ms.MatchNumber,
					Alliance:  a,
					Season:    season,
				},
				Scores: scores,
			})
		}
	}
	return out, nil
}
