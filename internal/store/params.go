// Package store keeps the tunable strategy parameters on disk so operator
// changes survive a restart.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"YieldRouter/internal/model"

	"github.com/ethereum/go-ethereum/common"
)

// Tunable is the setter surface parameters are restored through.
type Tunable interface {
	SetMinExpectedSwapPercentage(caller common.Address, bps uint64) error
	SetMaxLoss(caller common.Address, bps uint64) error
}

// ParamStore guards a JSON parameter file.
type ParamStore struct {
	mu       sync.Mutex
	filePath string
	params   *model.StrategyParams
}

// NewParamStore loads filePath. A missing file leaves the store empty.
func NewParamStore(filePath string) (*ParamStore, error) {
	p, err := LoadParams(filePath)
	if err != nil {
		return nil, fmt.Errorf("load params: %w", err)
	}
	return &ParamStore{filePath: filePath, params: p}, nil
}

// Get returns a copy of the stored parameters and whether any were saved.
func (s *ParamStore) Get() (model.StrategyParams, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.params == nil {
		return model.StrategyParams{}, false
	}
	return *s.params, true
}

// Save persists p.
func (s *ParamStore) Save(p model.StrategyParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := SaveParams(s.filePath, &p); err != nil {
		return err
	}
	s.params = &p
	return nil
}

// Restore applies the stored parameters through t's setters. It reports
// false when nothing was stored.
func (s *ParamStore) Restore(t Tunable, caller common.Address) (bool, error) {
	p, ok := s.Get()
	if !ok {
		return false, nil
	}
	if err := t.SetMinExpectedSwapPercentage(caller, p.MinExpectedSwapBps); err != nil {
		return false, fmt.Errorf("restore min expected swap: %w", err)
	}
	if err := t.SetMaxLoss(caller, p.MaxLossBps); err != nil {
		return false, fmt.Errorf("restore max loss: %w", err)
	}
	return true, nil
}

// LoadParams reads parameters from a JSON file. Returns nil if the file doesn't exist.
func LoadParams(filePath string) (*model.StrategyParams, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var p model.StrategyParams
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// SaveParams writes parameters to a JSON file, creating its directory.
func SaveParams(filePath string, p *model.StrategyParams) error {
	p.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(filePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(filePath, data, 0644)
}
