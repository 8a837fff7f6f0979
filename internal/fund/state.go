package fund

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"FundLetter/internal/model"
)

// LoadConfig reads the static fund definition.
func LoadConfig(filePath string) (*model.FundConfig, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read fund config: %w", err)
	}
	var cfg model.FundConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse fund config %s: %w", filePath, err)
	}
	if cfg.Holdings == nil {
		cfg.Holdings = make(map[string]model.Category)
	}
	return &cfg, nil
}

// LoadState reads the fund state from a JSON file. Returns an empty state if the file doesn't exist.
func LoadState(filePath string) (*model.FundState, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return model.NewFundState(nil), nil
		}
		return nil, fmt.Errorf("read fund state: %w", err)
	}
	var state model.FundState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse fund state %s: %w", filePath, err)
	}
	if state.Holdings == nil {
		state.Holdings = make(map[string]model.HoldingResult)
	}
	return &state, nil
}

// SaveState overwrites the fund state file with the given state.
// The document is written to a sibling temp file first and renamed into place.
func SaveState(filePath string, state *model.FundState) error {
	state.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode fund state: %w", err)
	}
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".fund_state-*.json")
	if err != nil {
		return fmt.Errorf("create temp state: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write fund state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close fund state: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod fund state: %w", err)
	}
	if err := os.Rename(tmp.Name(), filePath); err != nil {
		return fmt.Errorf("replace fund state: %w", err)
	}
	return nil
}
