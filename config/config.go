// Package config reads the optional YAML configuration file.
//
// Example:
//
//	outputs:
//	  telnet: ":7300"
//	  websocket: ":7301"
//	  serial: /dev/ttyUSB0
//	  serial_baud: 9600
//	  silence_period: 1m
//	trace:
//	  context: demod
//	  destination: udp://localhost:3333
//	scope:
//	  enabled: true
//	  address: ":35369"
package config

import (
	"bytes"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	DefaultScopeAddress  = ":35369"
	DefaultSerialBaud    = 9600
	DefaultSilencePeriod = time.Minute
)

type Config struct {
	Outputs Outputs `yaml:"outputs"`
	Trace   Trace   `yaml:"trace"`
	Scope   Scope   `yaml:"scope"`
}

type Outputs struct {
	Telnet        string        `yaml:"telnet"`
	Websocket     string        `yaml:"websocket"`
	Serial        string        `yaml:"serial"`
	SerialBaud    int           `yaml:"serial_baud"`
	SilencePeriod time.Duration `yaml:"silence_period"`
}

type Trace struct {
	Context     string `yaml:"context"`
	Destination string `yaml:"destination"`
}

type Scope struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

func Default() Config {
	return Config{
		Outputs: Outputs{
			SerialBaud:    DefaultSerialBaud,
			SilencePeriod: DefaultSilencePeriod,
		},
		Scope: Scope{
			Address: DefaultScopeAddress,
		},
	}
}

// Load reads the configuration from the given file. An empty filename yields the default configuration.
func Load(filename string) (Config, error) {
	if filename == "" {
		return Default(), nil
	}
	file, err := os.Open(filename)
	if err != nil {
		return Config{}, errors.Wrapf(err, "cannot open configuration file %s", filename)
	}
	defer file.Close()

	result, err := Read(file)
	if err != nil {
		return Config{}, errors.Wrapf(err, "invalid configuration file %s", filename)
	}
	return result, nil
}

// Read reads the configuration from the given reader. Values missing in the input keep their defaults.
func Read(r io.Reader) (Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Config{}, errors.Wrap(err, "cannot read configuration")
	}

	result := Default()
	if len(bytes.TrimSpace(data)) == 0 {
		return result, nil
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	err = decoder.Decode(&result)
	if err != nil {
		return Config{}, errors.Wrap(err, "cannot parse configuration")
	}

	if err := result.validate(); err != nil {
		return Config{}, err
	}
	return result, nil
}

func (c Config) validate() error {
	switch {
	case c.Outputs.SerialBaud <= 0:
		return errors.Errorf("invalid serial baud rate: %d", c.Outputs.SerialBaud)
	case c.Outputs.SilencePeriod < 0:
		return errors.Errorf("invalid silence period: %v", c.Outputs.SilencePeriod)
	case c.Scope.Enabled && c.Scope.Address == "":
		return errors.New("the scope is enabled, but has no address")
	}
	return nil
}
