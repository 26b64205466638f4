package analysis

import (
	"github.com/tjfontaine/workflow-lens/internal/domain"
	"github.com/tjfontaine/workflow-lens/internal/tools"
)

// State is the lifecycle of one mode's result slot.
type State string

const (
	StateEmpty   State = "empty"
	StatePending State = "pending"
	StateCached  State = "cached"
)

// Phase is the step a pending run is in.
type Phase string

const (
	PhaseUploading  Phase = "uploading"
	PhaseExtracting Phase = "extracting_frames"
	PhaseGenerating Phase = "waiting_for_provider"
)

// ModeState is the observable state of one mode under the active provider.
type ModeState struct {
	Mode   tools.Mode         `json:"mode"`
	State  State              `json:"state"`
	Phase  Phase              `json:"phase,omitempty"`
	Result *domain.ModeResult `json:"result,omitempty"`
}

// State returns the state of mode under the active provider and model.
func (s *Session) State(modeID string) (ModeState, error) {
	mode, err := tools.ModeByID(modeID)
	if err != nil {
		return ModeState{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked(mode), nil
}

// States returns the state of every mode in catalogue order.
func (s *Session) States() []ModeState {
	s.mu.Lock()
	defer s.mu.Unlock()

	modes := tools.Modes()
	out := make([]ModeState, 0, len(modes))
	for _, m := range modes {
		out = append(out, s.stateLocked(m))
	}
	return out
}

func (s *Session) stateLocked(mode tools.Mode) ModeState {
	key := s.key(s.cfg, mode.ID)
	if p, ok := s.pending[key]; ok {
		return ModeState{Mode: mode, State: StatePending, Phase: p.phase}
	}
	if r, ok := s.cache.Get(key); ok {
		return ModeState{Mode: mode, State: StateCached, Result: r}
	}
	return ModeState{Mode: mode, State: StateEmpty}
}
