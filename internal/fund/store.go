package fund

import (
	"sync"

	"FundLetter/internal/model"
)

// Store gives access to the two fund documents: the static fund.json and
// the fund_state.json rewritten after every analysis run.
type Store struct {
	mu         sync.Mutex
	configPath string
	statePath  string
}

// NewStore creates a Store over the given document paths.
func NewStore(configPath, statePath string) *Store {
	return &Store{configPath: configPath, statePath: statePath}
}

// Config loads the fund definition.
func (s *Store) Config() (*model.FundConfig, error) {
	return LoadConfig(s.configPath)
}

// State loads the latest fund state.
func (s *Store) State() (*model.FundState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return LoadState(s.statePath)
}

// Replace overwrites the fund state with exactly the given results.
// Tickers missing from results are dropped from the state.
func (s *Store) Replace(results map[string]model.HoldingResult) (*model.FundState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := model.NewFundState(results)
	if err := SaveState(s.statePath, state); err != nil {
		return nil, err
	}
	return state, nil
}

// StatePath returns the path of the state document.
func (s *Store) StatePath() string {
	return s.statePath
}
