package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/scoutstat/internal/adapters/repository"
	"github.com/okian/scoutstat/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

const scoresDoc = `{"matchScores":[{"matchLevel":"QUALIFICATION","matchSeries":0,"matchNumber":1,
"alliances":[{"alliance":"Red","totalPoints":52},{"alliance":"Blue","totalPoints":40}]}]}`

func TestRunImportsFilesAndDirectories(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	db := filepath.Join(t.TempDir(), "scout.db")

	file := filepath.Join(dir, "2024-EVT-scores.json")
	require.NoError(t, os.WriteFile(file, []byte(scoresDoc), 0o600))

	require.NoError(t, run(ctx, options{dbPath: db, tz: "UTC", files: []string{file}}))
	require.NoError(t, run(ctx, options{dbPath: db, tz: "UTC", dir: dir}))

	store, err := repository.Open(ctx, db)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	_, scores, err := store.Counts(ctx, 2024)
	require.NoError(t, err)
	assert.Equal(t, 2, scores)
}

func TestRunRejectsMissingInput(t *testing.T) {
	ctx := context.Background()

	assert.Error(t, run(ctx, options{}))
	assert.Error(t, run(ctx, options{watch: true, files: []string{"2024-EVT-matches.json"}}))
	assert.Error(t, run(ctx, options{dbPath: repository.MemoryPath, tz: "Nowhere/Atlantis", dir: t.TempDir()}))
}
