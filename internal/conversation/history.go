package conversation

import "github.com/normanking/cortexstream/internal/voice"

// HistoryEntry is one role-tagged message persisted outside the turn
// itself: a user prompt, an assistant response, or a system marker (e.g.
// the barge-in interrupt notice).
type HistoryEntry struct {
	Role string // "user", "ai", or "system"
	Text string
}

// HistoryRecorder persists conversation turns. Chat-history storage is an
// external collaborator per spec — this interface is the seam, with
// ManagerRecorder below as the in-memory default grounded on
// internal/voice.ConversationManager.
type HistoryRecorder interface {
	Record(entries ...HistoryEntry)
}

// ContextProvider is an optional capability a HistoryRecorder can implement
// to hand the controller recent conversation context to prepend to the next
// turn's model input. Recorders that don't track enough structure to form
// context (e.g. NoopRecorder) simply don't implement it.
type ContextProvider interface {
	// RelevantContext returns recent conversation history formatted for
	// inclusion in a model prompt, but only when prompt itself reads as a
	// follow-up (a pronoun or reference word pointing back at something
	// already said) — a fresh topic change gets no context prepended.
	RelevantContext(prompt string) string
}

// ManagerRecorder adapts a voice.ConversationManager (which only tracks
// user/assistant pairs) to HistoryRecorder: a "user" entry is held until
// the paired "ai" entry arrives, and a "system" marker (interrupt notices)
// is recorded as its own pair with no user half.
type ManagerRecorder struct {
	manager     *voice.ConversationManager
	pendingUser string
}

// NewManagerRecorder wraps an existing conversation manager.
func NewManagerRecorder(manager *voice.ConversationManager) *ManagerRecorder {
	return &ManagerRecorder{manager: manager}
}

func (r *ManagerRecorder) Record(entries ...HistoryEntry) {
	for _, e := range entries {
		switch e.Role {
		case "user":
			r.pendingUser = e.Text
		case "ai":
			r.manager.AddExchange(r.pendingUser, e.Text)
			r.pendingUser = ""
		case "system":
			r.manager.AddExchange("", e.Text)
		}
	}
}

// RelevantContext implements ContextProvider. It only returns context when
// the manager's own follow-up heuristic (pronouns, "what about", "and then",
// etc., checked against the held exchange history) flags prompt as
// referencing something already said; otherwise the model sees the prompt
// on its own, unpadded.
func (r *ManagerRecorder) RelevantContext(prompt string) string {
	if !r.manager.IsFollowUp(prompt) {
		return ""
	}
	return r.manager.GetRecentContext(3)
}

// NoopRecorder discards everything; useful when history persistence is
// handled entirely by an external service reachable some other way.
type NoopRecorder struct{}

func (NoopRecorder) Record(entries ...HistoryEntry) {}
