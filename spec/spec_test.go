package spec

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeStack(t *testing.T) {
	data := []byte(`{
		"name": "demo",
		"services": {
			"db": {
				"runtime": "container",
				"config": {"image": "postgres:16-alpine"},
				"healthcheck": {"type": "cmd", "cmd": ["pg_isready"], "interval": "2s", "retries": 5},
				"environment": {"POSTGRES_PASSWORD": "secret"}
			},
			"web": {
				"depends_on": ["db"],
				"environment": {"DATABASE_URL": "postgres://db:5432/app"}
			}
		}
	}`)

	st, err := DecodeStack(data)
	require.NoError(t, err)
	assert.Equal(t, "demo", st.Name)
	require.Len(t, st.Services, 2)

	db := st.Services["db"]
	require.NotNil(t, db.Health)
	assert.Equal(t, "cmd", db.Health.Type)
	assert.Equal(t, []string{"pg_isready"}, db.Health.Cmd)
	assert.Equal(t, 2*time.Second, db.Health.Interval.Duration)
	assert.Equal(t, 5, db.Health.Retries)

	web := st.Services["web"]
	assert.Equal(t, []string{"db"}, web.DependsOn)
	assert.Nil(t, web.Health)
}

func TestDecodeStack_DuplicateServiceName(t *testing.T) {
	data := []byte(`{
		"name": "dup",
		"services": {
			"db": {"runtime": "container"},
			"db": {"runtime": "process"}
		}
	}`)

	_, err := DecodeStack(data)
	require.Error(t, err)

	var dup *DuplicateKeyError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "services", dup.Scope)
	assert.Equal(t, "db", dup.Key)
}

func TestDecodeStack_DuplicateEnvironmentKey(t *testing.T) {
	data := []byte(`{
		"name": "dup-env",
		"services": {
			"web": {"environment": {"A": "1", "A": "2"}}
		}
	}`)

	_, err := DecodeStack(data)
	var dup *DuplicateKeyError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "environment", dup.Scope)
}

// Opaque fields must survive parse → re-serialize unchanged.
func TestStack_ConfigRoundTrip(t *testing.T) {
	data := []byte(`{
		"name": "rt",
		"services": {
			"web": {
				"config": {"image": "app:1", "extra": {"nested": [1, 2, 3]}},
				"environment": {"KEY": "value with spaces", "EMPTY": ""}
			}
		}
	}`)

	st, err := DecodeStack(data)
	require.NoError(t, err)

	out, err := json.Marshal(st)
	require.NoError(t, err)

	again, err := DecodeStack(out)
	require.NoError(t, err)
	assert.JSONEq(t, string(st.Services["web"].Config), string(again.Services["web"].Config))
	assert.Equal(t, st.Services["web"].Environment, again.Services["web"].Environment)
}

func TestDuration_JSON(t *testing.T) {
	var h HealthSpec
	require.NoError(t, json.Unmarshal([]byte(`{"type":"tcp","interval":"250ms"}`), &h))
	assert.Equal(t, 250*time.Millisecond, h.Interval.Duration)

	out, err := json.Marshal(h)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"interval":"250ms"`)

	// Zero durations are dropped entirely: the fields are tagged omitzero,
	// which consults Duration.IsZero (omitempty never omits struct values).
	out, err = json.Marshal(HealthSpec{Type: "tcp"})
	require.NoError(t, err)
	assert.NotContains(t, string(out), "interval")
	assert.NotContains(t, string(out), "timeout")
	assert.True(t, Duration{}.IsZero())
	assert.False(t, Duration{time.Second}.IsZero())
}

func TestHealthSpec_Defaults(t *testing.T) {
	h := &HealthSpec{Type: "tcp"}
	assert.Equal(t, DefaultHealthInterval, h.PollInterval())
	assert.Equal(t, DefaultHealthTimeout, h.PollTimeout())
	assert.Equal(t, DefaultHealthRetries, h.PollRetries())

	h = &HealthSpec{Type: "tcp", Interval: Duration{100 * time.Millisecond}, Timeout: Duration{time.Second}, Retries: 10}
	assert.Equal(t, 100*time.Millisecond, h.PollInterval())
	assert.Equal(t, time.Second, h.PollTimeout())
	assert.Equal(t, 10, h.PollRetries())
}

func TestExpand(t *testing.T) {
	lookup := func(name string) (string, bool) {
		vals := map[string]string{"USER": "alice", "EMPTY": ""}
		v, ok := vals[name]
		return v, ok
	}

	got, missing := Expand("${USER}@${HOST:-localhost}", lookup)
	assert.Equal(t, "alice@localhost", got)
	assert.Empty(t, missing)

	// Set-but-empty does not take the default path for plain references.
	got, missing = Expand("[$EMPTY]", lookup)
	assert.Equal(t, "[]", got)
	assert.Empty(t, missing)

	// ${VAR:-def} treats empty as unset, matching shell semantics.
	got, _ = Expand("${EMPTY:-fallback}", lookup)
	assert.Equal(t, "fallback", got)

	got, missing = Expand("${USER}:${UNSET}", lookup)
	assert.Equal(t, "alice:", got)
	assert.Equal(t, []string{"UNSET"}, missing)
}

func TestExpandEnvironment(t *testing.T) {
	lookup := func(name string) (string, bool) { return "", false }

	env := map[string]string{
		"A": "${ONE}",
		"B": "${TWO}/${ONE}",
		"C": "literal",
	}
	out, missing := ExpandEnvironment(env, lookup)
	assert.Equal(t, []string{"ONE", "TWO"}, missing)
	assert.Equal(t, "literal", out["C"])

	// Input map untouched.
	assert.Equal(t, "${ONE}", env["A"])
}

func TestStatus_Terminal(t *testing.T) {
	for _, s := range []Status{StatusReady, StatusFailed, StatusTimedOut, StatusDependencyFailed, StatusCancelled, StatusStopped, StatusStopFailed} {
		assert.True(t, s.Terminal(), "status %s", s)
	}
	for _, s := range []Status{StatusPending, StatusStarting, StatusHealthChecking} {
		assert.False(t, s.Terminal(), "status %s", s)
	}
}
