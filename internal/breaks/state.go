package breaks

import "github.com/sysu-ecnc-dev/shift-attendance/backend/internal/domain"

// scheduled -> active -> completed
// scheduled -> cancelled
var transitions = map[domain.BreakStatus][]domain.BreakStatus{
	domain.BreakScheduled: {domain.BreakActive, domain.BreakCancelled},
	domain.BreakActive:    {domain.BreakCompleted},
}

func CanTransition(from, to domain.BreakStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func checkTransition(from, to domain.BreakStatus) error {
	if !CanTransition(from, to) {
		return &TransitionError{From: from, To: to}
	}
	return nil
}
