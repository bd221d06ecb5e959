package match

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Season2024 is the only season whose score format is understood.
const Season2024 = 2024

const maxSuggestions = 3

// fields2024 lists the numeric alliance score fields of the 2024 season.
var fields2024 = []string{ //nolint:gochecknoglobals // fixed season catalogue
	"autoSampleNet",
	"autoSampleLow",
	"autoSampleHigh",
	"autoSpecimenLow",
	"autoSpecimenHigh",
	"teleopSampleNet",
	"teleopSampleLow",
	"teleopSampleHigh",
	"teleopSpecimenLow",
	"teleopSpecimenHigh",
	"autoSamplePoints",
	"autoSpecimenPoints",
	"teleopSamplePoints",
	"teleopSpecimenPoints",
	"autoParkPoints",
	"teleopParkPoints",
	"teleopAscentPoints",
	"autoPoints",
	"teleopPoints",
	"foulPointsCommitted",
	"preFoulTotal",
	TotalPoints,
	"minorFouls",
	"majorFouls",
}

var fieldSet2024 = func() map[string]struct{} { //nolint:gochecknoglobals // derived from fields2024
	m := make(map[string]struct{}, len(fields2024))
	for _, f := range fields2024 {
		m[f] = struct{}{}
	}
	return m
}()

// Fields returns the score fields of a season.
func Fields(season int) ([]string, error) {
	if err := SupportedSeason(season); err != nil {
		return nil, err
	}
	out := make([]string, len(fields2024))
	copy(out, fields2024)
	return out, nil
}

// IsField reports whether name is a score field of the season.
func IsField(season int, name string) bool {
	if season != Season2024 {
		return false
	}
	_, ok := fieldSet2024[name]
	return ok
}

// SupportedSeason returns ErrUnsupportedSeason for any season but 2024.
func SupportedSeason(season int) error {
	if season != Season2024 {
		return fmt.Errorf("%w: %d", ErrUnsupportedSeason, season)
	}
	return nil
}

// UnknownStatisticError names a rejected statistic and nearby matches.
type UnknownStatisticError struct {
	Statistic   string
	Suggestions []string
}

func (e *UnknownStatisticError) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("%s: %q", ErrUnknownStatistic, e.Statistic)
	}
	return fmt.Sprintf("%s: %q (did you mean %s?)", ErrUnknownStatistic, e.Statistic, strings.Join(e.Suggestions, ", "))
}

func (e *UnknownStatisticError) Unwrap() error { return ErrUnknownStatistic }

// ValidateStatistic checks name against the season's score fields.
func ValidateStatistic(season int, name string) error {
	if err := SupportedSeason(season); err != nil {
		return err
	}
	if IsField(season, name) {
		return nil
	}
	return &UnknownStatisticError{Statistic: name, Suggestions: Suggest(name)}
}

// Suggest returns up to three 2024 field names resembling name. Fuzzy
// subsequence matches come first, then near misses by edit distance.
func Suggest(name string) []string {
	if name == "" {
		return nil
	}
	ranks := fuzzy.RankFindFold(name, fields2024)
	sort.Sort(ranks)

	out := make([]string, 0, maxSuggestions)
	seen := make(map[string]struct{})
	for _, r := range ranks {
		if len(out) == maxSuggestions {
			return out
		}
		out = append(out, r.Target)
		seen[r.Target] = struct{}{}
	}

	type near struct {
		field string
		dist  int
	}
	var nearby []near
	lower := strings.ToLower(name)
	for _, f := range fields2024 {
		if _, ok := seen[f]; ok {
			continue
		}
		if d := fuzzy.LevenshteinDistance(lower, strings.ToLower(f)); d <= maxSuggestions {
			nearby = append(nearby, near{field: f, dist: d})
		}
	}
	sort.SliceStable(nearby, func(i, j int) bool { return nearby[i].dist < nearby[j].dist })
	for _, n := range nearby {
		if len(out) == maxSuggestions {
			break
		}
		out = append(out, n.field)
	}
	return out
}
