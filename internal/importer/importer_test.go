package importer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/okian/scoutstat/internal/adapters/repository"
	"github.com/okian/scoutstat/internal/domain/match"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const matchesJSON = `{
  "matches": [
    {
      "actualStartTime": "2025-01-11T09:30:00.12",
      "tournamentLevel": "QUALIFICATION",
      "series": 0,
      "matchNumber": 1,
      "teams": [
        {"teamNumber": 100, "station": "Red1", "onField": true},
        {"teamNumber": 200, "station": "Red2", "onField": true},
        {"teamNumber": 300, "station": "Blue1", "onField": true},
        {"teamNumber": 400, "station": "Blue2", "onField": false}
      ]
    }
  ]
}`

const scoresJSON = `{
  "matchScores": [
    {
      "matchLevel": "QUALIFICATION",
      "matchSeries": 0,
      "matchNumber": 1,
      "alliances": [
        {"alliance": "Red", "team": 0, "totalPoints": 52, "autoPoints": 12, "robot1Auto": "NONE"},
        {"alliance": "Blue", "team": 0, "totalPoints": 40, "autoPoints": 8}
      ]
    }
  ]
}`

func newStore(t *testing.T) *repository.Store {
	t.Helper()
	s, err := repository.Open(context.Background(), repository.MemoryPath,
		repository.WithAutoMigrate(true), repository.WithLocation(time.UTC))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestParseFileName(t *testing.T) {
	season, event, kind, err := ParseFileName("/data/2024-USTXHOU-matches.json")
	require.NoError(t, err)
	assert.Equal(t, 2024, season)
	assert.Equal(t, "USTXHOU", event)
	assert.Equal(t, KindMatches, kind)

	season, event, kind, err = ParseFileName("2024-US-TX-HOU-Scores.json")
	require.NoError(t, err)
	assert.Equal(t, 2024, season)
	assert.Equal(t, "US-TX-HOU", event)
	assert.Equal(t, KindScores, kind)

	for _, bad := range []string{
		"2024-USTXHOU.json",
		"abcd-USTXHOU-matches.json",
		"2024-USTXHOU-rankings.json",
		"2024-USTXHOU-matches.txt",
		"2024--matches.json",
	} {
		_, _, _, err := ParseFileName(bad)
		assert.ErrorIs(t, err, ErrFileName, bad)
	}
}

func TestNewRequiresWriter(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrNilWriter)
}

func TestImportFile(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	im, err := New(store)
	require.NoError(t, err)

	dir := t.TempDir()
	mp := writeFile(t, dir, "2024-USTXHOU-matches.json", matchesJSON)
	sp := writeFile(t, dir, "2024-USTXHOU-scores.json", scoresJSON)

	sum, err := im.ImportFile(ctx, mp)
	require.NoError(t, err)
	assert.Equal(t, Summary{Files: 1, Matches: 1}, sum)

	sum, err = im.ImportFile(ctx, sp)
	require.NoError(t, err)
	assert.Equal(t, Summary{Files: 1, Scores: 2}, sum)

	teams, err := store.MatchTeams(ctx, "USTXHOU", 2024)
	require.NoError(t, err)
	red := match.ID{EventCode: "USTXHOU", Level: match.Qualification, Number: 1, Alliance: match.Red, Season: 2024}
	blue := red.WithAlliance(match.Blue)
	require.Contains(t, teams, red)
	require.Contains(t, teams, blue)
	assert.Equal(t, []int{100, 200}, teams[red].Teams.OnField())
	assert.Equal(t, []int{300}, teams[blue].Teams.OnField())
	assert.Equal(t, time.Date(2025, 1, 11, 9, 30, 0, 0, time.UTC).Unix(), teams[red].Key.StartTime)

	scores, err := store.MatchScores(ctx, "USTXHOU", 2024)
	require.NoError(t, err)
	require.Contains(t, scores, red)
	assert.Equal(t, 52.0, scores[red][match.TotalPoints])
	assert.Equal(t, 12.0, scores[red]["autoPoints"])
	assert.NotContains(t, scores[red], "team")
	assert.NotContains(t, scores[red], "robot1Auto")
	assert.Equal(t, 40.0, scores[blue][match.TotalPoints])

	t.Run("same content is skipped", func(t *testing.T) {
		sum, err := im.ImportFile(ctx, mp)
		require.NoError(t, err)
		assert.Equal(t, Summary{Files: 1, Skipped: 1}, sum)
	})
}

func TestImportFileMalformed(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	im, err := New(store)
	require.NoError(t, err)

	dir := t.TempDir()
	p := writeFile(t, dir, "2024-USTXHOU-scores.json",
		`{"matchScores":[{"matchLevel":"QUALIFICATION","matchNumber":1,"alliances":[{"alliance":"Red","autoPoints":3}]}]}`)

	_, err = im.ImportFile(ctx, p)
	assert.ErrorIs(t, err, ErrDecode)

	// A failed import is not remembered, so a fixed file is applied.
	p = writeFile(t, dir, "2024-USTXHOU-scores.json", scoresJSON)
	sum, err := im.ImportFile(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Scores)

	_, err = im.ImportFile(ctx, writeFile(t, dir, "2024-USTXHOU-matches.json", `{"matches":`))
	assert.ErrorIs(t, err, ErrDecode)
}

func TestImportFileStartTimes(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	im, err := New(store)
	require.NoError(t, err)
	dir := t.TempDir()

	bad := strings.Replace(matchesJSON, "2025-01-11T09:30:00.12", "next tuesday", 1)
	_, err = im.ImportFile(ctx, writeFile(t, dir, "2024-USTXHOU-matches.json", bad))
	assert.ErrorIs(t, err, ErrDecode)
	assert.ErrorIs(t, err, match.ErrInvalidStartTime)

	matches, _, err := store.Counts(ctx, 2024)
	require.NoError(t, err)
	assert.Zero(t, matches)

	// Zoned timestamps are stored and read back as absolute instants.
	zoned := strings.Replace(matchesJSON, "2025-01-11T09:30:00.12", "2025-01-11T03:30:00-06:00", 1)
	_, err = im.ImportFile(ctx, writeFile(t, dir, "2024-USTXHOU-matches.json", zoned))
	require.NoError(t, err)

	teams, err := store.MatchTeams(ctx, "", 2024)
	require.NoError(t, err)
	red := match.ID{EventCode: "USTXHOU", Level: match.Qualification, Number: 1, Alliance: match.Red, Season: 2024}
	require.Contains(t, teams, red)
	assert.Equal(t, int64(1736587800), teams[red].Key.StartTime)
}

func TestImportDir(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	im, err := New(store)
	require.NoError(t, err)

	dir := t.TempDir()
	writeFile(t, dir, "2024-USTXHOU-matches.json", matchesJSON)
	writeFile(t, dir, "2024-USTXHOU-scores.json", scoresJSON)
	writeFile(t, dir, "notes.json", `{}`)
	writeFile(t, dir, "README.txt", "ignored")

	sum, err := im.ImportDir(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, Summary{Files: 2, Matches: 1, Scores: 2}, sum)

	matches, scores, err := store.Counts(ctx, 2024)
	require.NoError(t, err)
	assert.Equal(t, 1, matches)
	assert.Equal(t, 2, scores)

	_, err = im.ImportDir(ctx, filepath.Join(dir, "2024-USTXHOU-matches.json"))
	assert.ErrorIs(t, err, ErrNotDirectory)
}

func TestWatch(t *testing.T) {
	store := newStore(t)
	im, err := New(store, WithSettleDelay(20*time.Millisecond))
	require.NoError(t, err)

	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- im.Watch(ctx, dir) }()

	// Give the watcher time to register before the file appears.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, dir, "2024-USTXHOU-matches.json", matchesJSON)

	require.Eventually(t, func() bool {
		teams, err := store.MatchTeams(context.Background(), "USTXHOU", 2024)
		return err == nil && len(teams) == 2
	}, 5*time.Second, 25*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
}
