package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"discount-harvester/config"
	"discount-harvester/storage"
	"discount-harvester/utils"
)

func TestRunDay(t *testing.T) {
	day, err := runDay("20250409")
	require.NoError(t, err)
	assert.Equal(t, time.April, day.Month())
	assert.Equal(t, 9, day.Day())

	today, err := runDay("")
	require.NoError(t, err)
	assert.Equal(t, 0, today.Hour())

	_, err = runDay("2025-04-09")
	assert.Error(t, err)
}

func TestSubcommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"harvest", "listing", "reconcile", "run", "serve"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestNewEnvPicksStore(t *testing.T) {
	dir := t.TempDir()

	e := newEnv(&config.Config{DataDir: dir, DataFormat: "csv"}, utils.NewNopLogger())
	assert.Nil(t, e.mirror)
	assert.IsType(t, &storage.CSVStore{}, e.store)
	assert.Equal(t, ".csv", fileExt(e.cfg))

	e = newEnv(&config.Config{DataDir: dir, DataFormat: "xlsx"}, utils.NewNopLogger())
	assert.IsType(t, &storage.XLSXStore{}, e.store)
	assert.Equal(t, ".xlsx", fileExt(e.cfg))
}
