package scenario

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const checkout = `
state:
  items: 1
  express: false
watches:
  - name: total
    expression: items * 5
    topics: [items]
  - name: rush
    engine: cel
    expression: express && items > 2
    topics: [items, express]
  - name: big
    expression: items
    when: items >= 3
    topics: [items]
steps:
  - items: 2
  - items: 3
    express: true
  - express: true
`

func TestRunRecordsWatchChanges(t *testing.T) {
	s, err := Parse([]byte(checkout))
	require.NoError(t, err)

	report, err := Run(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, uint64(3), report.Revision)
	assert.Equal(t, map[string]any{"items": 3, "express": true}, report.Final)

	assert.Equal(t, []Change{
		{Watch: "total", Value: 5},
		{Watch: "rush", Value: false},
		{Watch: "big", Value: nil},
		{Step: 1, Watch: "total", Value: 10, Revision: 1},
		{Step: 2, Watch: "rush", Value: true, Revision: 2},
		{Step: 2, Watch: "total", Value: 15, Revision: 2},
		{Step: 2, Watch: "big", Value: 3, Revision: 2},
	}, report.Changes)
}

func TestParseDefaultsAndValidation(t *testing.T) {
	s, err := Parse([]byte("watches:\n  - expression: a\n"))
	require.NoError(t, err)
	assert.Equal(t, EngineExpr, s.Watches[0].Engine)
	assert.Equal(t, "watch-1", s.Watches[0].Name)

	_, err = Parse([]byte("state: {a: 1}\n"))
	require.ErrorIs(t, err, ErrNoWatches)

	_, err = Parse([]byte("watches:\n  - expression: a\n    engine: lua\n"))
	require.ErrorIs(t, err, ErrUnknownEngine)

	_, err = Parse([]byte("watches:\n  - name: empty\n"))
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "Expression")

	_, err = Parse([]byte("watches:\n  - expression: a\n    topics: [\"\"]\n"))
	require.ErrorIs(t, err, ErrInvalid)
}

func TestRunStopsAtFailingStep(t *testing.T) {
	s, err := Parse([]byte(`
state: {a: 1}
watches:
  - expression: a + 1
    when: a > 0
steps:
  - a: 2
  - a: "two"
  - a: 3
`))
	require.NoError(t, err)

	report, err := Run(context.Background(), s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step 2")
	assert.Equal(t, uint64(2), report.Revision)
}

func TestRunRejectsNonBooleanGuard(t *testing.T) {
	s, err := Parse([]byte("state: {a: 1}\nwatches:\n  - expression: a\n    when: a\n"))
	require.NoError(t, err)

	_, err = Run(context.Background(), s)
	require.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(checkout), 0o600))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, s.Steps, 3)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
