package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	ErrTemplateExists      = errors.New("config: config already exists")
	ErrUnknownTemplateKind = errors.New("config: unknown config kind")
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "client":
		return clientTemplate, nil
	case "station":
		return stationTemplate, nil
	case "instruments":
		return instrumentsTemplate, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownTemplateKind, kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrTemplateExists, path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const clientTemplate = `host = "localhost"
port = 5555
timeout_ms = 5000
raise_on_error = true
`

const stationTemplate = `name = "station.local"
listen_addr = "127.0.0.1:5555"
monitor_addr = "127.0.0.1:8555"
idle_timeout_ms = 300000
max_payload_bytes = 8388608
param_store_path = ""
cors_origins = ["http://localhost:3000"]
`

const instrumentsTemplate = `instruments:
  parameter_store:
    type: parameter_store
    initialize: true
  flux_source:
    type: source
    initialize: false
    level: 0.0
    gui:
      type: generic
      kwargs:
        rows: 4
`
