package sim

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/tickgraph/pkg/tickgraph/config"
)

func parse(t *testing.T, doc string) (*Scenario, error) {
	t.Helper()
	cfg, err := config.FromYAML([]byte(doc))
	require.NoError(t, err)
	return ParseScenario(cfg)
}

func mustParse(t *testing.T, doc string) *Scenario {
	t.Helper()
	sc, err := parse(t, doc)
	require.NoError(t, err)
	return sc
}

func TestParseScenario(t *testing.T) {
	sc := mustParse(t, `
name: game
duration: 2s
timers: [world]
behaviors:
  - name: input
  - name: physics
    after: [input]
    settle: 0.5
  - name: hud
    before: [physics]
    disabled: true
  - name: crash
    fail: true
events:
  - name: frame
    behaviors: [physics, input, hud, crash]
queues:
  - event: frame
    timer: world
    min_gap: 100ms
    recurring: 0.25
    dedupe: true
requests:
  - event: frame
    arg: tick
    in: 0.5
    allow_earlier: true
  - event: frame
    issue: 1
    at: 1.5
    dedupe: true
pauses:
  - timer: world
    at: 0.75
    resume: 1.25
`)

	assert.Equal(t, "game", sc.Name)
	assert.Equal(t, 2.0, sc.Duration)
	assert.Equal(t, []string{"world"}, sc.Timers)

	require.Len(t, sc.Behaviors, 4)
	assert.Equal(t, []string{"input"}, sc.Behaviors[1].After)
	assert.Equal(t, 0.5, sc.Behaviors[1].Settle)
	assert.Equal(t, []string{"physics"}, sc.Behaviors[2].Before)
	assert.True(t, sc.Behaviors[2].Disabled)
	assert.True(t, sc.Behaviors[3].Fail)

	require.Len(t, sc.Events, 1)
	assert.Equal(t, []string{"physics", "input", "hud", "crash"}, sc.Events[0].Behaviors)

	require.Len(t, sc.Queues, 1)
	q := sc.Queues[0]
	assert.Equal(t, "world", q.Timer)
	assert.InDelta(t, 0.1, q.Policy.MinGap, 1e-9)
	assert.Equal(t, 0.25, q.Policy.Recurring)
	assert.True(t, q.Policy.Dedupe)

	require.Len(t, sc.Requests, 2)
	assert.Equal(t, "tick", sc.Requests[0].Arg)
	assert.False(t, sc.Requests[0].HasAt)
	assert.Equal(t, 0.5, sc.Requests[0].In)
	assert.True(t, sc.Requests[0].AllowEarlier)
	assert.True(t, sc.Requests[1].HasAt)
	assert.Equal(t, 1.5, sc.Requests[1].At)
	assert.Equal(t, 1.0, sc.Requests[1].Issue)
	assert.True(t, sc.Requests[1].Dedupe)

	require.Len(t, sc.Pauses, 1)
	assert.Equal(t, PauseSpec{Timer: "world", At: 0.75, Resume: 1.25}, sc.Pauses[0])
}

func TestParseScenario_Defaults(t *testing.T) {
	sc := mustParse(t, `
duration: 1
behaviors: [{name: b}]
events: [{name: e, behaviors: [b]}]
queues: [{event: e}]
`)
	assert.Equal(t, "scenario", sc.Name)
	assert.Equal(t, "default", sc.Queues[0].Timer)
	assert.Zero(t, sc.Queues[0].Policy.Recurring)
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "missing duration",
			doc:  `name: x`,
			want: "duration must be a positive number of seconds",
		},
		{
			name: "duplicate behavior",
			doc: `
duration: 1
behaviors: [{name: a}, {name: a}]`,
			want: `duplicate behavior "a"`,
		},
		{
			name: "unnamed behavior",
			doc: `
duration: 1
behaviors: [{after: [a]}]`,
			want: "behavior without a name",
		},
		{
			name: "unknown dependency",
			doc: `
duration: 1
behaviors: [{name: a, after: [ghost]}]`,
			want: `behavior "a" depends on unknown behavior "ghost"`,
		},
		{
			name: "unknown member",
			doc: `
duration: 1
events: [{name: e, behaviors: [ghost]}]`,
			want: `event "e" lists unknown behavior "ghost"`,
		},
		{
			name: "duplicate event",
			doc: `
duration: 1
events: [{name: e}, {name: e}]`,
			want: `duplicate event "e"`,
		},
		{
			name: "queue for unknown event",
			doc: `
duration: 1
queues: [{event: e}]`,
			want: `queue for unknown event "e"`,
		},
		{
			name: "second queue",
			doc: `
duration: 1
events: [{name: e}]
queues: [{event: e}, {event: e}]`,
			want: `second queue for event "e"`,
		},
		{
			name: "unknown timer",
			doc: `
duration: 1
events: [{name: e}]
queues: [{event: e, timer: world}]`,
			want: `queue "e" uses unknown timer "world"`,
		},
		{
			name: "duplicate timer",
			doc: `
duration: 1
timers: [default]`,
			want: `duplicate timer "default"`,
		},
		{
			name: "request without queue",
			doc: `
duration: 1
events: [{name: e}]
requests: [{event: e}]`,
			want: `request 0 targets event "e" without a queue`,
		},
		{
			name: "pause of unknown timer",
			doc: `
duration: 1
pauses: [{timer: world, at: 0.5}]`,
			want: `pause of unknown timer "world"`,
		},
		{
			name: "resume before pause",
			doc: `
duration: 1
pauses: [{timer: default, at: 0.5, resume: 0.25}]`,
			want: `timer "default" resumes at 0.250 before pausing at 0.500`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parse(t, tt.doc)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidScenario)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

// TestParseScenario_JoinsErrors tests that every problem is reported at once.
func TestParseScenario_JoinsErrors(t *testing.T) {
	_, err := parse(t, `
behaviors: [{name: a, after: [ghost]}]
queues: [{event: e}]`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duration")
	assert.Contains(t, err.Error(), "ghost")
	assert.Contains(t, err.Error(), `unknown event "e"`)
}

func TestLoadScenario(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: file\nduration: 1\n"), 0o600))
	sc, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "file", sc.Name)

	jsonPath := filepath.Join(dir, "s.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"name": "json", "duration": 0.5}`), 0o600))
	sc, err = LoadScenario(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "json", sc.Name)
	assert.Equal(t, 0.5, sc.Duration)

	_, err = LoadScenario(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestReadScenario(t *testing.T) {
	sc, err := ReadScenario(strings.NewReader(`{"name": "piped", "duration": 2}`))
	require.NoError(t, err)
	assert.Equal(t, "piped", sc.Name)
	assert.Equal(t, 2.0, sc.Duration)

	_, err = ReadScenario(strings.NewReader("name: [broken"))
	assert.ErrorContains(t, err, "read scenario")
}
