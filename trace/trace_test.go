package trace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	assert.IsType(t, &NoTracer{}, New("", "trace.csv"))
	assert.IsType(t, &NoTracer{}, New("demod", ""))
	assert.IsType(t, &FileTracer{}, New("demod", "trace.csv"))
	assert.IsType(t, &UDPTracer{}, New("demod", "udp://localhost:5555"))
}

func TestFileTracer_OnlyTracesItsContext(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "trace.csv")
	tracer := NewFileTracer("demod", filename)

	tracer.Trace("demod", "before start\n")
	tracer.Start()
	tracer.Trace("demod", "%d;%d\n", 1, 2)
	tracer.Trace("decode", "%d;%d\n", 3, 4)
	tracer.Stop()
	tracer.Trace("demod", "after stop\n")

	content, err := os.ReadFile(filename)
	require.NoError(t, err)
	assert.Equal(t, "1;2\n", string(content))
}
