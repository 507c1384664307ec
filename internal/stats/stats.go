package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dooshek/polyvoice/internal/logger"
)

// BackendStats holds counters for one generation backend
type BackendStats struct {
	Count      int     `json:"count"`
	Failures   int     `json:"failures"`
	TotalMs    float64 `json:"total_ms"`
	LastUsedAt string  `json:"last_used_at,omitempty"`
}

// Stats holds all generation statistics keyed by backend name
type Stats struct {
	Backends map[string]*BackendStats `json:"backends"`
}

// StatsManager manages generation statistics persistence
type StatsManager struct {
	stats    Stats
	filePath string
	mu       sync.Mutex
	now      func() time.Time
}

// NewStatsManager creates a stats manager backed by filePath and loads
// whatever is already there
func NewStatsManager(filePath string) *StatsManager {
	sm := &StatsManager{
		filePath: filePath,
		stats: Stats{
			Backends: make(map[string]*BackendStats),
		},
		now: time.Now,
	}

	if err := sm.load(); err != nil {
		logger.Debugf("Could not load stats (will start fresh): %v", err)
	}

	return sm
}

// Record adds one generation attempt and persists immediately
func (sm *StatsManager) Record(backend string, elapsed time.Duration, success bool) {
	if backend == "" {
		backend = "unknown"
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.stats.Backends == nil {
		sm.stats.Backends = make(map[string]*BackendStats)
	}

	bs, ok := sm.stats.Backends[backend]
	if !ok {
		bs = &BackendStats{}
		sm.stats.Backends[backend] = bs
	}

	bs.Count++
	if !success {
		bs.Failures++
	}
	bs.TotalMs += float64(elapsed.Microseconds()) / 1000
	bs.LastUsedAt = sm.now().UTC().Format(time.RFC3339)

	if err := sm.save(); err != nil {
		logger.Error("Failed to save stats after recording generation", err)
	}
}

// Snapshot returns a deep copy of current statistics
func (sm *StatsManager) Snapshot() Stats {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	statsCopy := Stats{
		Backends: make(map[string]*BackendStats, len(sm.stats.Backends)),
	}
	for name, bs := range sm.stats.Backends {
		c := *bs
		statsCopy.Backends[name] = &c
	}

	return statsCopy
}

// JSON returns statistics as a JSON document
func (sm *StatsManager) JSON() ([]byte, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	data, err := json.Marshal(sm.stats)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal stats to JSON: %w", err)
	}

	return data, nil
}

// Reset clears all statistics and persists empty state
func (sm *StatsManager) Reset() error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.stats = Stats{
		Backends: make(map[string]*BackendStats),
	}

	if err := sm.save(); err != nil {
		return fmt.Errorf("failed to save reset stats: %w", err)
	}

	return nil
}

func (sm *StatsManager) load() error {
	data, err := os.ReadFile(sm.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Debugf("Stats file not found, starting fresh: %s", sm.filePath)
			return nil
		}
		return fmt.Errorf("failed to read stats file: %w", err)
	}

	if err := json.Unmarshal(data, &sm.stats); err != nil {
		return fmt.Errorf("failed to unmarshal stats: %w", err)
	}

	if sm.stats.Backends == nil {
		sm.stats.Backends = make(map[string]*BackendStats)
	}

	logger.Debugf("Loaded stats from %s", sm.filePath)
	return nil
}

// save writes statistics to disk; callers hold mu
func (sm *StatsManager) save() error {
	dir := filepath.Dir(sm.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create stats directory: %w", err)
	}

	data, err := json.MarshalIndent(sm.stats, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}

	// Write to a temp file and rename so readers never see a partial file
	tempFile := sm.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp stats file: %w", err)
	}

	if err := os.Rename(tempFile, sm.filePath); err != nil {
		return fmt.Errorf("failed to rename temp stats file: %w", err)
	}

	return nil
}
