package multiserver

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadYAML(t *testing.T) {
	doc := `Addr: ":8000"
Nodes:
  - Type: "336"
    Endpoint: cryostat/336
    Addr: 192.168.0.12
  - Type: teslameter
    Endpoint: magnet/f71
    Port: /dev/ttyACM0
    TimeoutSec: 5
`
	path := filepath.Join(t.TempDir(), "lakeshore.yml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := LoadYAML(path)
	require.NoError(t, err)
	assert.Equal(t, ":8000", cfg.Addr)
	require.Len(t, cfg.Nodes, 2)
	assert.Equal(t, "336", cfg.Nodes[0].Type)
	assert.Equal(t, "192.168.0.12", cfg.Nodes[0].Addr)
	assert.Equal(t, "/dev/ttyACM0", cfg.Nodes[1].Port)
}

func TestCommConfigDefaults(t *testing.T) {
	cfg := Node{Addr: "192.168.0.12"}.commConfig()
	assert.Equal(t, 2*time.Second, cfg.Timeout)

	cfg = Node{TimeoutSec: 5}.commConfig()
	assert.Equal(t, 5*time.Second, cfg.Timeout)
}

func TestSanitizeStem(t *testing.T) {
	assert.Equal(t, "/cryostat/336", sanitizeStem("cryostat/336"))
	assert.Equal(t, "/cryostat/336", sanitizeStem("/cryostat/336/"))
	assert.Equal(t, "/x", sanitizeStem("x"))
}

func TestBuildMuxRejectsUnknownType(t *testing.T) {
	cfg := Config{Nodes: []Node{{Type: "frobnicator", Endpoint: "x"}}}
	_, err := cfg.BuildMux()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not understood")
}
