package hub

import "livequiz-service/internal/domain"

// Canvas history lives with the session so late joiners can be synced without
// a second registry. History is capped; callers choose the sync limit.
const maxStrokeHistory = 1000

// AddStroke appends a stroke to the event's canvas history.
func (h *Hub) AddStroke(eventID string, stroke domain.Stroke) {
	s := h.getOrCreateSession(eventID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.strokes = append(s.strokes, stroke)
	if len(s.strokes) > maxStrokeHistory {
		s.strokes = s.strokes[len(s.strokes)-maxStrokeHistory:]
	}
}

// ClearStrokes wipes the event's canvas history.
func (h *Hub) ClearStrokes(eventID string) {
	s, ok := h.get(eventID)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.strokes = nil
}

// StrokeHistory returns up to limit most recent strokes, oldest first.
func (h *Hub) StrokeHistory(eventID string, limit int) []domain.Stroke {
	s, ok := h.get(eventID)
	if !ok {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	strokes := s.strokes
	if limit > 0 && len(strokes) > limit {
		strokes = strokes[len(strokes)-limit:]
	}
	out := make([]domain.Stroke, len(strokes))
	copy(out, strokes)
	return out
}
