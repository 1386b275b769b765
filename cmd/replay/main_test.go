package main

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/combatplay/internal/combatlog"
	"github.com/udisondev/combatplay/internal/testutil"
)

func writeLog(t *testing.T, dir, name string, l *combatlog.CombatLog) string {
	t.Helper()
	data, err := combatlog.Encode(l)
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestRun_ReplaysEveryFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("COMBATPLAY_CONFIG", filepath.Join(dir, "absent.yaml"))

	files := []string{
		writeLog(t, dir, "kill.json", testutil.SimpleKillLog()),
		writeLog(t, dir, "poison.json", testutil.PoisonLog()),
	}

	for _, skip := range []bool{false, true} {
		var out bytes.Buffer
		err := run(context.Background(), options{instant: true, skip: skip, speed: 3, files: files}, &out)
		require.NoError(t, err)

		got := map[string]result{}
		sc := bufio.NewScanner(&out)
		for sc.Scan() {
			var r result
			require.NoError(t, json.Unmarshal(sc.Bytes(), &r))
			got[filepath.Base(r.File)] = r
		}
		require.Len(t, got, 2)

		assert.Equal(t, combatlog.OutcomeVictory, got["kill.json"].Outcome)
		assert.Equal(t, combatlog.Rewards{Gold: 50, XP: 10}, got["kill.json"].Rewards)
		assert.Equal(t, 67, got["poison.json"].FinalHealth["p1"])
		assert.Equal(t, skip, got["poison.json"].Skipped)
	}
}

func TestRun_Errors(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("COMBATPLAY_CONFIG", filepath.Join(dir, "absent.yaml"))

	bad := testutil.SimpleKillLog()
	bad.Rounds[0].EndFrames = bad.Rounds[0].EndFrames[:1]
	path := writeLog(t, dir, "bad.json", bad)

	var out bytes.Buffer
	err := run(context.Background(), options{instant: true, files: []string{path}}, &out)
	assert.ErrorIs(t, err, combatlog.ErrMalformedLog)

	err = run(context.Background(), options{speed: 5, files: []string{path}}, &out)
	assert.Error(t, err)

	err = run(context.Background(), options{files: []string{filepath.Join(dir, "missing.json")}}, &out)
	assert.Error(t, err)
}
