// Package vosk adapts Vosk speech recognizers to transcriber.Engine. The
// default engine talks to a vosk-server over WebSocket; building with the
// vosk tag adds a native engine on top of libvosk.
package vosk

import (
	"encoding/json"
	"fmt"
)

// message is the JSON shape of every Vosk result. Final results carry Text,
// partial ones carry Partial.
type message struct {
	Text    *string `json:"text"`
	Partial *string `json:"partial"`
}

func decode(raw []byte) (message, error) {
	var m message
	if err := json.Unmarshal(raw, &m); err != nil {
		return message{}, fmt.Errorf("decode vosk result: %w", err)
	}
	return m, nil
}

func (m message) isFinal() bool { return m.Text != nil }

func (m message) text() string {
	if m.Text == nil {
		return ""
	}
	return *m.Text
}

func (m message) partial() string {
	if m.Partial == nil {
		return ""
	}
	return *m.Partial
}
