package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UnderhillForge/PiTrader/config"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Store.Path = filepath.Join(dir, "engine.db")
	cfg.Engine.ParkFlagPath = filepath.Join(dir, "parked.flag")

	e, err := New(cfg, zerolog.Nop(), Options{BaseEquity: 10000})
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func TestNewAssemblesEngine(t *testing.T) {
	e := testEngine(t)
	assert.NotNil(t, e.Ledger)
	assert.NotNil(t, e.Router)
	assert.Equal(t, 10000.0, e.Book.Equity())

	parked, _ := e.ParkedState()
	assert.False(t, parked)
}

func TestParkSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Store.Path = filepath.Join(dir, "engine.db")
	cfg.Engine.ParkFlagPath = filepath.Join(dir, "parked.flag")

	e, err := New(cfg, zerolog.Nop(), Options{BaseEquity: 10000})
	require.NoError(t, err)
	require.NoError(t, e.Park("drawdown_daily"))
	parked, reason := e.ParkedState()
	assert.True(t, parked)
	assert.Equal(t, "drawdown_daily", reason)
	require.NoError(t, e.Close())

	// A fresh engine sees the flag file and stays parked.
	e2, err := New(cfg, zerolog.Nop(), Options{BaseEquity: 10000})
	require.NoError(t, err)
	defer e2.Close()
	parked, reason = e2.ParkedState()
	assert.True(t, parked)
	assert.Equal(t, "park_flag_present", reason)

	require.NoError(t, e2.Unpark())
	parked, _ = e2.ParkedState()
	assert.False(t, parked)
}

func TestForceCloseAllWithNoTrades(t *testing.T) {
	e := testEngine(t)
	assert.Equal(t, 0, e.ForceCloseAll(context.Background(), "outage_flatten"))
}

func TestRecoverOnEmptyStore(t *testing.T) {
	e := testEngine(t)
	assert.NoError(t, e.Recover(context.Background()))
}
