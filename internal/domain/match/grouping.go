package match

// Grouper folds flat rows into TeamMatches and ScoreMatches. Each row is
// visited once and inserts or updates the inner map of its key.
type Grouper struct {
	teams  TeamMatches
	scores ScoreMatches
}

// NewGrouper returns an empty Grouper.
func NewGrouper() *Grouper {
	return &Grouper{
		teams:  make(TeamMatches),
		scores: make(ScoreMatches),
	}
}

// AddTeam records one participation row.
func (g *Grouper) AddTeam(key Key, team int, slot Slot) {
	m, ok := g.teams[key.ID]
	if !ok {
		m = Match{Key: key, Teams: make(Teams)}
	}
	if m.Key.StartTime == 0 && key.StartTime != 0 {
		m.Key.StartTime = key.StartTime
	}
	m.Teams[team] = slot
	g.teams[key.ID] = m
}

// AddScore records one statistic of an alliance score record.
func (g *Grouper) AddScore(key Key, statistic string, value float64) {
	s, ok := g.scores[key.ID]
	if !ok {
		s = make(Scores)
		g.scores[key.ID] = s
	}
	s[statistic] = value
}

// AddScores records a whole score record.
func (g *Grouper) AddScores(key Key, scores Scores) {
	for name, v := range scores {
		g.AddScore(key, name, v)
	}
}

// TeamMatches returns the participation table built so far.
func (g *Grouper) TeamMatches() TeamMatches { return g.teams }

// ScoreMatches returns the score table built so far.
func (g *Grouper) ScoreMatches() ScoreMatches { return g.scores }
