package runtime

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frievoe97/stackup/spec"
)

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	reg.Register("container", Docker{})
	reg.Register("process", Process{})

	a, err := reg.Get("container")
	require.NoError(t, err)
	assert.IsType(t, Docker{}, a)

	_, err = reg.Get("kubernetes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"kubernetes"`)
}

func TestContainerName(t *testing.T) {
	assert.Equal(t, "stackup-demo-db", ContainerName("demo", "db"))
}

func TestDecodeContainerConfig(t *testing.T) {
	svc := spec.Service{Config: json.RawMessage(`{
		"image": "grafana/grafana:10.2.0",
		"ports": ["3000:3000"],
		"binds": ["/data/grafana:/var/lib/grafana"],
		"env": {"GF_SECURITY_ADMIN_PASSWORD": "admin"}
	}`)}

	cfg, err := decodeContainerConfig("grafana", svc)
	require.NoError(t, err)
	assert.Equal(t, "grafana/grafana:10.2.0", cfg.Image)
	assert.Equal(t, []string{"3000:3000"}, cfg.Ports)
	assert.Equal(t, []string{"/data/grafana:/var/lib/grafana"}, cfg.Binds)

	_, err = decodeContainerConfig("x", spec.Service{})
	assert.ErrorContains(t, err, "missing container config")

	_, err = decodeContainerConfig("x", spec.Service{Config: json.RawMessage(`{}`)})
	assert.ErrorContains(t, err, `"image"`)
}

func TestEnvMapToSlice(t *testing.T) {
	got := envMapToSlice(map[string]string{"B": "2", "A": "1"})
	sort.Strings(got)
	assert.Equal(t, []string{"A=1", "B=2"}, got)
}

func TestReadPidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "svc.pid")

	_, err := readPidFile(path)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, os.WriteFile(path, []byte("1234\n"), 0o644))
	pid, err := readPidFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1234, pid)

	require.NoError(t, os.WriteFile(path, []byte("not-a-pid"), 0o644))
	_, err = readPidFile(path)
	assert.ErrorContains(t, err, "malformed pidfile")
}

func TestProcessAlive(t *testing.T) {
	// Our own pid is certainly alive.
	assert.True(t, processAlive(os.Getpid()))
}
