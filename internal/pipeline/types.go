// Package pipeline holds the shared data model that flows through the
// sentence divider, transformer chain, and TTS orchestrator: fragments in,
// audio payloads out.
package pipeline

// TextFragment is one item of a token stream: either a chunk of model text
// or an out-of-band control record, never both. A struct with two optional
// fields reads better here than an interface: callers switch on which field
// is non-nil rather than type-asserting.
type TextFragment struct {
	Text   *string
	Record map[string]any
}

// NewTextFragment wraps a text chunk.
func NewTextFragment(text string) TextFragment {
	return TextFragment{Text: &text}
}

// NewRecordFragment wraps an out-of-band control record.
func NewRecordFragment(record map[string]any) TextFragment {
	return TextFragment{Record: record}
}

// IsRecord reports whether this fragment carries a control record rather
// than text.
func (f TextFragment) IsRecord() bool {
	return f.Record != nil
}

// TagState is the position of a recognized tag boundary within the stream.
type TagState string

const (
	TagStart        TagState = "start"
	TagInside       TagState = "inside"
	TagEnd          TagState = "end"
	TagSelfClosing  TagState = "self"
	TagNone         TagState = "none"
)

// TagInfo names a recognized tag and its boundary state. Name is empty iff
// State is TagNone.
type TagInfo struct {
	Name  string
	State TagState
}

// String renders the tag as "name:state", or "none" when untagged.
func (t TagInfo) String() string {
	if t.State == TagNone {
		return "none"
	}
	return t.Name + ":" + string(t.State)
}

// SentenceUnit is one segmented unit of output text carrying the tag
// context it was emitted under. TTSText is set only when produced by a
// dual-stream <show>/<say> pair; otherwise the transformer chain derives
// TTS text from Text itself.
type SentenceUnit struct {
	Text    string
	Tags    []TagInfo
	TTSText *string
}

// HasTag reports whether any tag in the unit's context has the given name.
func (s SentenceUnit) HasTag(name string) bool {
	for _, t := range s.Tags {
		if t.Name == name {
			return true
		}
	}
	return false
}

// IsDualStream reports whether this unit was produced by a <show>/<say> pair.
func (s SentenceUnit) IsDualStream() bool {
	return s.TTSText != nil
}

// DisplayText is the UI-facing rendering of a sentence: UTF-8, Markdown and
// LaTeX preserved verbatim.
type DisplayText struct {
	Text   string
	Name   string
	Avatar string
}

// Actions are avatar cues extracted from a sentence's bracketed emotion
// tokens, e.g. "[happy]".
type Actions struct {
	Expressions []string
}

// SentenceOutput is the transformer chain's terminal triplet for one
// sentence. An empty TTSText means the orchestrator should emit a silent
// (display-only) payload.
type SentenceOutput struct {
	DisplayText DisplayText
	TTSText     string
	Actions     Actions
}

// MergeInfo describes a sentence's place within a merged (batched) synthesis
// call, present only on payloads produced by a merge-mode flush.
type MergeInfo struct {
	IsMerged          bool
	TotalSentences    int
	SentenceIndex     int
	SentenceDurationMs int
	TotalDurationMs    int
	DelayBeforeShowMs  *int
}

// AudioPayload is the client-bound message for one sentence. Audio is nil
// for a silent payload (display text with nothing to play) and for
// continuation payloads within a merge round (they carry only their volume
// slice).
type AudioPayload struct {
	Audio         []byte
	Volumes       []float64
	SliceLengthMs int
	DisplayText   DisplayText
	Actions       *Actions
	MergeInfo     *MergeInfo
}

// IsSilent reports whether this payload carries no audio to play.
func (p AudioPayload) IsSilent() bool {
	return len(p.Audio) == 0 && len(p.Volumes) == 0
}

// ConversationTurn is the lifecycle handle for one user-input →
// assistant-response cycle. A client has at most one active turn.
type ConversationTurn struct {
	ID         string
	HistoryUID string
	Emoji      string

	// cancel stops the turn's streaming task (cooperative, see the
	// conversation controller's shielded-cancel sequence).
	cancel func()
}

// NewConversationTurn creates a turn bound to the given cancel function.
func NewConversationTurn(id, historyUID string, cancel func()) *ConversationTurn {
	return &ConversationTurn{ID: id, HistoryUID: historyUID, cancel: cancel}
}

// Cancel stops the turn's in-flight task. Safe to call more than once.
func (t *ConversationTurn) Cancel() {
	if t.cancel != nil {
		t.cancel()
	}
}

// MergeItem is one sentence pending a batched synthesis call.
type MergeItem struct {
	TTSText     string
	DisplayText DisplayText
	Actions     Actions
}

// MergeBuffer accumulates sentences for the orchestrator's progressive
// merge policy (see internal/orchestrator). CurrentRoundMax is locked when a
// round begins (buffer empty) and the round flushes once len(Items) reaches
// it.
type MergeBuffer struct {
	Items           []MergeItem
	CurrentRoundMax int
}

// Add appends a sentence to the buffer.
func (b *MergeBuffer) Add(item MergeItem) {
	b.Items = append(b.Items, item)
}

// ReadyToFlush reports whether the buffer has reached its round's cap.
func (b *MergeBuffer) ReadyToFlush() bool {
	return b.CurrentRoundMax > 0 && len(b.Items) >= b.CurrentRoundMax
}

// Empty reports whether the buffer holds no pending sentences.
func (b *MergeBuffer) Empty() bool {
	return len(b.Items) == 0
}

// Clear drops all pending sentences, e.g. on barge-in.
func (b *MergeBuffer) Clear() {
	b.Items = nil
	b.CurrentRoundMax = 0
}
