// Package transport implements the websocket wire protocol between the
// browser client and one client's conversation controller.
package transport

import (
	"github.com/normanking/cortexstream/internal/pipeline"
)

// WordTriggerWire is the wake_word_config / stop_word_config shape carried
// on inbound messages, matching the JSON on the wire exactly.
type WordTriggerWire struct {
	Enabled              bool     `json:"enabled"`
	Words                []string `json:"words"`
	FuzzyPinyin          bool     `json:"fuzzy_pinyin,omitempty"`
	VoicePromptInjection bool     `json:"voice_prompt_injection,omitempty"`
}

// ImageWire is one image attachment on a text-input message.
type ImageWire struct {
	Source   string `json:"source"`
	Data     string `json:"data"`
	MimeType string `json:"mime_type,omitempty"`
}

// InboundMessage is the union of every client->server message shape. Only
// the fields relevant to Type are populated; callers switch on Type.
type InboundMessage struct {
	Type string `json:"type"`

	// text-input
	Text             string           `json:"text,omitempty"`
	Images           []ImageWire      `json:"images,omitempty"`
	WakeWordConfig   *WordTriggerWire `json:"wake_word_config,omitempty"`
	StopWordConfig   *WordTriggerWire `json:"stop_word_config,omitempty"`

	// mic-audio-end: base64 PCM, decoded by the caller before reaching the
	// controller (ASR input is raw bytes, not JSON).
	Data string `json:"data,omitempty"`
}

// DisplayTextWire mirrors pipeline.DisplayText for JSON output.
type DisplayTextWire struct {
	Text   string `json:"text"`
	Name   string `json:"name,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

// ActionsWire mirrors pipeline.Actions for JSON output.
type ActionsWire struct {
	Expressions []string `json:"expressions,omitempty"`
}

// MergeInfoWire mirrors pipeline.MergeInfo for JSON output.
type MergeInfoWire struct {
	IsMerged           bool `json:"is_merged"`
	TotalSentences     int  `json:"total_sentences"`
	SentenceIndex      int  `json:"sentence_index"`
	SentenceDurationMs int  `json:"sentence_duration_ms"`
	TotalDurationMs    int  `json:"total_duration_ms"`
	DelayBeforeShowMs  *int `json:"delay_before_show_ms,omitempty"`
}

// OutboundMessage is the union of every server->client message shape.
type OutboundMessage struct {
	Type string `json:"type"`

	// control
	Text string `json:"text,omitempty"`

	// user-input-transcription
	OriginalText string `json:"original_text,omitempty"`
	IsStopWord   *bool  `json:"is_stop_word,omitempty"`

	// audio
	Audio         string           `json:"audio,omitempty"` // base64, absent for silent payloads
	Volumes       []float64        `json:"volumes,omitempty"`
	SliceLength   int              `json:"slice_length,omitempty"`
	DisplayText   *DisplayTextWire `json:"display_text,omitempty"`
	Actions       *ActionsWire     `json:"actions,omitempty"`
	Forwarded     bool             `json:"forwarded"`
	MergeInfo     *MergeInfoWire   `json:"merge_info,omitempty"`

	// error
	Message string `json:"message,omitempty"`
}

func displayTextWire(d pipeline.DisplayText) *DisplayTextWire {
	return &DisplayTextWire{Text: d.Text, Name: d.Name, Avatar: d.Avatar}
}

func actionsWire(a *pipeline.Actions) *ActionsWire {
	if a == nil {
		return nil
	}
	return &ActionsWire{Expressions: a.Expressions}
}

func mergeInfoWire(m *pipeline.MergeInfo) *MergeInfoWire {
	if m == nil {
		return nil
	}
	return &MergeInfoWire{
		IsMerged:           m.IsMerged,
		TotalSentences:     m.TotalSentences,
		SentenceIndex:      m.SentenceIndex,
		SentenceDurationMs: m.SentenceDurationMs,
		TotalDurationMs:    m.TotalDurationMs,
		DelayBeforeShowMs:  m.DelayBeforeShowMs,
	}
}
