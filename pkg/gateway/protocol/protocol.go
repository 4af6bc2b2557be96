// Package protocol defines the JSON frames exchanged over a live chat
// websocket. Clients send intents; the server streams session events back.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

const ProtocolVersion1 = "1"

// DecodeError reports a malformed or unsupported client frame.
type DecodeError struct {
	Code    string
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Param) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

func badRequest(message, param string) *DecodeError {
	return &DecodeError{Code: "bad_request", Message: message, Param: param}
}

func unsupported(message, param string) *DecodeError {
	return &DecodeError{Code: "unsupported", Message: message, Param: param}
}

// Client frames.

type ClientHello struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ClientName      string `json:"client_name,omitempty"`
	ClientVersion   string `json:"client_version,omitempty"`
}

type ClientStartRecording struct {
	Type string `json:"type"`
}

type ClientStopRecording struct {
	Type string `json:"type"`
}

type ClientSubmitText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type ClientSetDraft struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type ClientPlay struct {
	Type   string `json:"type"`
	TurnID string `json:"turn_id"`
}

type ClientAudioChunk struct {
	Type    string `json:"type"`
	DataB64 string `json:"data_b64"`
}

type ClientCloneSample struct {
	Type      string `json:"type"`
	SampleB64 string `json:"sample_b64"`
}

// DecodeClientMessage parses one client frame. Unknown or malformed frames
// return a *DecodeError.
func DecodeClientMessage(data []byte) (any, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, badRequest("invalid json frame", "")
	}
	typ := strings.TrimSpace(envelope.Type)
	if typ == "" {
		return nil, badRequest("missing type", "type")
	}

	switch typ {
	case "hello":
		var msg ClientHello
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid hello frame", "")
		}
		if strings.TrimSpace(msg.ProtocolVersion) == "" {
			return nil, badRequest("hello.protocol_version is required", "protocol_version")
		}
		if msg.ProtocolVersion != ProtocolVersion1 {
			return nil, unsupported("unsupported protocol version", "protocol_version")
		}
		return msg, nil
	case "start_recording":
		var msg ClientStartRecording
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid start_recording frame", "")
		}
		return msg, nil
	case "stop_recording":
		var msg ClientStopRecording
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid stop_recording frame", "")
		}
		return msg, nil
	case "submit_text":
		var msg ClientSubmitText
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid submit_text frame", "")
		}
		if strings.TrimSpace(msg.Text) == "" {
			return nil, badRequest("submit_text.text is required", "text")
		}
		return msg, nil
	case "set_draft":
		var msg ClientSetDraft
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid set_draft frame", "")
		}
		return msg, nil
	case "play":
		var msg ClientPlay
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid play frame", "")
		}
		if strings.TrimSpace(msg.TurnID) == "" {
			return nil, badRequest("play.turn_id is required", "turn_id")
		}
		return msg, nil
	case "audio_chunk":
		var msg ClientAudioChunk
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid audio_chunk frame", "")
		}
		if strings.TrimSpace(msg.DataB64) == "" {
			return nil, badRequest("audio_chunk.data_b64 is required", "data_b64")
		}
		return msg, nil
	case "clone_sample":
		var msg ClientCloneSample
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid clone_sample frame", "")
		}
		if strings.TrimSpace(msg.SampleB64) == "" {
			return nil, badRequest("clone_sample.sample_b64 is required", "sample_b64")
		}
		return msg, nil
	default:
		return nil, badRequest("unsupported message type", "type")
	}
}

// Server frames.

// Turn is the wire shape of one transcript entry. Audio is delivered
// separately via ServerTurnAudio frames.
type Turn struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Text      string `json:"text"`
	CreatedAt int64  `json:"created_at_ms"`
	HasAudio  bool   `json:"has_audio"`
}

type SessionState struct {
	InputState    string `json:"input_state"`
	Playing       bool   `json:"playing"`
	PlayingTurnID string `json:"playing_turn_id,omitempty"`
}

type ServerHelloAck struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	SessionID       string       `json:"session_id"`
	Turns           []Turn       `json:"turns"`
	State           SessionState `json:"state"`
	VoiceToken      string       `json:"voice_token,omitempty"`
}

type ServerTurnAdded struct {
	Type string `json:"type"`
	Turn Turn   `json:"turn"`
}

type ServerTurnAudio struct {
	Type     string `json:"type"`
	TurnID   string `json:"turn_id"`
	AudioB64 string `json:"audio_b64"`
}

type ServerState struct {
	Type  string       `json:"type"`
	State SessionState `json:"state"`
}

type ServerNotice struct {
	Type    string `json:"type"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type ServerCloneState struct {
	Type       string `json:"type"`
	State      string `json:"state"`
	VoiceToken string `json:"voice_token,omitempty"`
}

type ServerVoiceChanged struct {
	Type       string `json:"type"`
	VoiceToken string `json:"voice_token"`
}

type ServerError struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Param   string `json:"param,omitempty"`
	Close   bool   `json:"close,omitempty"`
}

// ErrorFrame converts a decode failure into its wire shape.
func ErrorFrame(err error, close bool) ServerError {
	if de, ok := err.(*DecodeError); ok {
		return ServerError{Type: "error", Code: de.Code, Message: de.Message, Param: de.Param, Close: close}
	}
	return ServerError{Type: "error", Code: "internal", Message: err.Error(), Close: close}
}
