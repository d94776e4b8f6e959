package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"
)

// LoadDestinations reads the destination → recipient mapping. JSON is the
// canonical format; files ending in .yaml or .yml are decoded as YAML.
// A missing or empty mapping is a bootstrap error.
func LoadDestinations(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading destinations file %s: %w", path, err)
	}

	out := map[string]string{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &out)
	default:
		err = json.Unmarshal(data, &out)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing destinations file %s: %w", path, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("destinations file %s defines no destinations", path)
	}
	slog.Info("destinations loaded", "file", path, "count", len(out))
	return out, nil
}

// LoadChannelSettings reads the per-channel parameter document
// {"Email": {"mail_sender": "..."}, ...}. A missing file yields an empty
// mapping; scalar values of any JSON type are kept as their string form.
func LoadChannelSettings(path string) (map[string]map[string]string, error) {
	out := map[string]map[string]string{}
	if path == "" {
		return out, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("channel config file not found", "file", path)
			return out, nil
		}
		return nil, fmt.Errorf("reading channel config %s: %w", path, err)
	}

	var raw map[string]map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing channel config %s: %w", path, err)
	}
	for channel, kv := range raw {
		settings := make(map[string]string, len(kv))
		for k, v := range kv {
			switch tv := v.(type) {
			case string:
				settings[k] = tv
			case nil:
				settings[k] = ""
			default:
				settings[k] = fmt.Sprint(tv)
			}
		}
		out[channel] = settings
	}
	slog.Info("channel config loaded", "file", path, "channels", len(out))
	return out, nil
}
