// Package match holds the match-keyed data model shared by the rating engines
// and the storage adapters.
package match

import (
	"context"
	"fmt"
	"sort"
)

// Alliance is one side of a match.
type Alliance string

// Alliances present in every match.
const (
	Red  Alliance = "Red"
	Blue Alliance = "Blue"
)

// Opponent returns the other alliance.
func (a Alliance) Opponent() Alliance {
	if a == Red {
		return Blue
	}
	return Red
}

// Level is the tournament level a match was played at.
type Level string

// Known tournament levels.
const (
	Qualification Level = "QUALIFICATION"
	Playoff       Level = "PLAYOFF"
)

// TotalPoints is the statistic every score record carries.
const TotalPoints = "totalPoints"

// ID is the identity part of a Key. It is comparable and used as a map key.
type ID struct {
	EventCode string
	Level     Level
	Series    int
	Number    int
	Alliance  Alliance
	Season    int
}

// Less orders identities field by field.
func (id ID) Less(o ID) bool {
	switch {
	case id.Season != o.Season:
		return id.Season < o.Season
	case id.EventCode != o.EventCode:
		return id.EventCode < o.EventCode
	case id.Level != o.Level:
		return id.Level < o.Level
	case id.Series != o.Series:
		return id.Series < o.Series
	case id.Number != o.Number:
		return id.Number < o.Number
	default:
		return id.Alliance < o.Alliance
	}
}

// WithAlliance returns the identity of the given side of the same match.
func (id ID) WithAlliance(a Alliance) ID {
	id.Alliance = a
	return id
}

func (id ID) String() string {
	return fmt.Sprintf("%d/%s/%s-%d-%d/%s", id.Season, id.EventCode, id.Level, id.Series, id.Number, id.Alliance)
}

// Key addresses one alliance of one match. StartTime is epoch seconds and is
// not part of identity; zero means unknown.
type Key struct {
	ID
	StartTime int64
}

// Equal reports whether two keys have the same identity.
func (k Key) Equal(o Key) bool {
	return k.ID == o.ID
}

// WithAlliance returns the key for the given side, keeping StartTime.
func (k Key) WithAlliance(a Alliance) Key {
	k.ID = k.ID.WithAlliance(a)
	return k
}

func (k Key) String() string {
	return fmt.Sprintf("%s@%d", k.ID, k.StartTime)
}

// Slot is a team's participation record for one alliance.
type Slot struct {
	Station string
	OnField bool
}

// Teams maps team number to its slot.
type Teams map[int]Slot

// OnField returns the teams that actually played, ascending.
func (t Teams) OnField() []int {
	out := make([]int, 0, len(t))
	for team, s := range t {
		if s.OnField {
			out = append(out, team)
		}
	}
	sort.Ints(out)
	return out
}

// Match is one alliance's participation in a match.
type Match struct {
	Key   Key
	Teams Teams
}

// TeamMatches is the participation table keyed by identity.
type TeamMatches map[ID]Match

// Keys returns all keys sorted by identity.
func (tm TeamMatches) Keys() []Key {
	keys := make([]Key, 0, len(tm))
	for _, m := range tm {
		keys = append(keys, m.Key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].ID.Less(keys[j].ID) })
	return keys
}

// Chronological returns the keys of the given alliance ordered by StartTime,
// ties broken by identity.
func (tm TeamMatches) Chronological(a Alliance) []Key {
	keys := make([]Key, 0, len(tm)/2+1)
	for id, m := range tm {
		if id.Alliance == a {
			keys = append(keys, m.Key)
		}
	}
	sort.SliceStable(keys, func(i, j int) bool {
		if keys[i].StartTime != keys[j].StartTime {
			return keys[i].StartTime < keys[j].StartTime
		}
		return keys[i].ID.Less(keys[j].ID)
	})
	return keys
}

// Universe returns every team that was on-field at least once, ascending.
func (tm TeamMatches) Universe() []int {
	seen := make(map[int]struct{})
	for _, m := range tm {
		for team, s := range m.Teams {
			if s.OnField {
				seen[team] = struct{}{}
			}
		}
	}
	out := make([]int, 0, len(seen))
	for team := range seen {
		out = append(out, team)
	}
	sort.Ints(out)
	return out
}

// Scores is one alliance's scoring breakdown.
type Scores map[string]float64

// Total returns totalPoints and whether it was present.
func (s Scores) Total() (float64, bool) {
	v, ok := s[TotalPoints]
	return v, ok
}

// ScoreMatches is the score table keyed by identity.
type ScoreMatches map[ID]Scores

// Repository provides read access to imported match data. An empty
// eventCode selects every event of the season.
type Repository interface {
	MatchTeams(ctx context.Context, eventCode string, season int) (TeamMatches, error)
	MatchScores(ctx context.Context, eventCode string, season int) (ScoreMatches, error)
}
