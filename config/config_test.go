package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRead(t *testing.T) {
	tt := []struct {
		desc     string
		input    string
		expected Config
		invalid  bool
	}{
		{
			desc:     "empty",
			input:    "",
			expected: Default(),
		},
		{
			desc: "full",
			input: `
outputs:
  telnet: ":7300"
  websocket: ":7301"
  serial: /dev/ttyUSB0
  serial_baud: 19200
  silence_period: 30s
trace:
  context: demod
  destination: udp://localhost:3333
scope:
  enabled: true
  address: ":1234"
`,
			expected: Config{
				Outputs: Outputs{
					Telnet:        ":7300",
					Websocket:     ":7301",
					Serial:        "/dev/ttyUSB0",
					SerialBaud:    19200,
					SilencePeriod: 30 * time.Second,
				},
				Trace: Trace{Context: "demod", Destination: "udp://localhost:3333"},
				Scope: Scope{Enabled: true, Address: ":1234"},
			},
		},
		{
			desc: "partial keeps defaults",
			input: `
outputs:
  telnet: ":7300"
`,
			expected: Config{
				Outputs: Outputs{
					Telnet:        ":7300",
					SerialBaud:    DefaultSerialBaud,
					SilencePeriod: DefaultSilencePeriod,
				},
				Scope: Scope{Address: DefaultScopeAddress},
			},
		},
		{desc: "unknown field", input: "outputs:\n  telnett: \":7300\"\n", invalid: true},
		{desc: "invalid baud rate", input: "outputs:\n  serial_baud: 0\n", invalid: true},
		{desc: "scope without address", input: "scope:\n  enabled: true\n  address: \"\"\n", invalid: true},
		{desc: "no yaml", input: "[", invalid: true},
	}
	for _, tc := range tt {
		t.Run(tc.desc, func(t *testing.T) {
			actual, err := Read(strings.NewReader(tc.input))
			if tc.invalid {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, actual)
		})
	}
}

func TestLoad(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "dcf39.yaml")
	require.NoError(t, os.WriteFile(filename, []byte("outputs:\n  serial: /dev/ttyS0\n"), 0o644))

	actual, err := Load(filename)

	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyS0", actual.Outputs.Serial)
	assert.Equal(t, DefaultSerialBaud, actual.Outputs.SerialBaud)
}

func TestLoad_NoFilename(t *testing.T) {
	actual, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, Default(), actual)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))

	assert.Error(t, err)
}
