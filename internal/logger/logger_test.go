package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readLines(t *testing.T, path string) []map[string]interface{} {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestSetupJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, Setup(LogConfig{Level: "debug", Format: "json", Output: path}))
	t.Cleanup(func() { _ = Setup(DefaultConfig()) })

	componentLog := WithComponent("pipeline")
	componentLog.Info().Msg("started")
	reportLog := WithReportID("worker", "r1")
	reportLog.Debug().Msg("picked up")
	fieldsLog := WithFields(map[string]interface{}{"queue": "reports"})
	fieldsLog.Warn().Msg("slow")
	log := GetLogger()
	log.Trace().Msg("dropped")

	entries := readLines(t, path)
	require.Len(t, entries, 3)
	assert.Equal(t, "pipeline", entries[0]["component"])
	assert.Equal(t, "r1", entries[1]["report_id"])
	assert.Equal(t, "worker", entries[1]["component"])
	assert.Equal(t, "reports", entries[2]["queue"])
	assert.Equal(t, "warn", entries[2]["level"])
}

func TestSetupInvalidLevel(t *testing.T) {
	assert.Error(t, Setup(LogConfig{Level: "loud"}))
}
