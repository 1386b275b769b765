package combatlog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Decode parses a JSON combat log. Decoding does not validate; see Validate.
// Any parse failure is reported as a MalformedLogError.
func Decode(data []byte) (*CombatLog, error) {
	var l CombatLog
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, asMalformed(err)
	}
	return &l, nil
}

// DecodeYAML parses a YAML combat log (used for hand-written fixtures).
func DecodeYAML(data []byte) (*CombatLog, error) {
	var l CombatLog
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, asMalformed(err)
	}
	return &l, nil
}

// Encode writes l as JSON.
func Encode(l *CombatLog) ([]byte, error) {
	data, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("encoding combat log: %w", err)
	}
	return data, nil
}

// Load reads a combat log file. Files ending in .yaml or .yml are decoded as
// YAML, anything else as JSON.
func Load(path string) (*CombatLog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading combat log %s: %w", path, err)
	}

	var l *CombatLog
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		l, err = DecodeYAML(data)
	default:
		l, err = Decode(data)
	}
	if err != nil {
		return nil, fmt.Errorf("loading combat log %s: %w", path, err)
	}
	return l, nil
}

func asMalformed(err error) error {
	var me *MalformedLogError
	if errors.As(err, &me) {
		return err
	}
	return &MalformedLogError{Reason: "cannot decode payload", Err: err}
}
