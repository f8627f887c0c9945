package realtime

import "sync"

// State is the process-wide connection flag shown in the UI.
type State struct {
	mu        sync.RWMutex
	connected bool
}

// Set records the connection flag and reports whether it changed.
func (s *State) Set(connected bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := s.connected != connected
	s.connected = connected
	if changed {
		connectedGauge.Set(boolGauge(connected))
	}
	return changed
}

// Connected reports the last recorded flag.
func (s *State) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// Reset returns the flag to disconnected.
func (s *State) Reset() { s.Set(false) }

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
