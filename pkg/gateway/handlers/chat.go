package handlers

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/replitone/replitone/pkg/core/capture"
	"github.com/replitone/replitone/pkg/core/engine"
	"github.com/replitone/replitone/pkg/core/identity"
	"github.com/replitone/replitone/pkg/core/types"
	"github.com/replitone/replitone/pkg/gateway/config"
	"github.com/replitone/replitone/pkg/gateway/metrics"
	"github.com/replitone/replitone/pkg/gateway/protocol"
)

// EngineFactory builds a per-session conversation engine around the
// connection's capture device and playback pacer.
type EngineFactory func(dev capture.Device, player engine.Player) *engine.Engine

// ChatHandler handles /v1/chat websocket sessions. Each connection gets its
// own engine; the handler bridges client frames to engine intents and engine
// events back to server frames.
type ChatHandler struct {
	Config    config.Config
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	Registry  *identity.Registry
	NewEngine EngineFactory
}

func (h ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	upgrader := websocket.Upgrader{
		HandshakeTimeout: h.Config.WSHandshakeTimeout,
		CheckOrigin: func(r *http.Request) bool {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			return origin == "" || h.Config.OriginAllowed(origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if h.Config.WSMaxMessageBytes > 0 {
		conn.SetReadLimit(h.Config.WSMaxMessageBytes)
	}

	handshakeTimeout := h.Config.WSHandshakeTimeout
	if handshakeTimeout <= 0 {
		handshakeTimeout = 5 * time.Second
	}
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	messageType, firstFrame, err := conn.ReadMessage()
	if err != nil {
		h.writeWSError(conn, "bad_request", "failed to read hello", true)
		return
	}
	if messageType != websocket.TextMessage {
		h.writeWSError(conn, "bad_request", "first frame must be hello", true)
		return
	}
	decoded, err := protocol.DecodeClientMessage(firstFrame)
	if err != nil {
		h.writeWSError(conn, "bad_request", "invalid hello frame", true)
		return
	}
	if _, ok := decoded.(protocol.ClientHello); !ok {
		h.writeWSError(conn, "bad_request", "first frame must be hello", true)
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	sessionID := "s_" + randHex(8)
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("session_id", sessionID)

	ctx := r.Context()
	var cancel context.CancelFunc
	if h.Config.WSMaxSessionTime > 0 {
		ctx, cancel = context.WithTimeout(ctx, h.Config.WSMaxSessionTime)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	dev := &streamDevice{}
	eng := h.NewEngine(dev, newTimedPlayer(h.Config.SynthSampleRate))
	go eng.Run(ctx)

	if h.Metrics != nil {
		h.Metrics.SessionOpened()
		defer h.Metrics.SessionClosed()
	}
	logger.Info("chat session started")
	defer logger.Info("chat session ended")

	snap := eng.Snapshot()
	ack := protocol.ServerHelloAck{
		Type:            "hello_ack",
		ProtocolVersion: protocol.ProtocolVersion1,
		SessionID:       sessionID,
		Turns:           wireTurns(snap.Turns),
		State: protocol.SessionState{
			InputState:    string(snap.InputState),
			Playing:       snap.OutputState.Playing,
			PlayingTurnID: snap.OutputState.TurnID,
		},
		VoiceToken: snap.Voice.Token,
	}
	if err := conn.WriteJSON(ack); err != nil {
		return
	}

	outbound := make(chan any, 64)
	send := func(frame any) {
		select {
		case outbound <- frame:
		case <-ctx.Done():
		}
	}

	go h.writeLoop(ctx, cancel, conn, outbound)
	go h.readLoop(ctx, cancel, conn, eng, dev, send, logger)

	state := protocol.SessionState{InputState: string(snap.InputState)}
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-eng.Events():
			switch ev.Kind {
			case engine.EventTurnAdded:
				send(protocol.ServerTurnAdded{Type: "turn_added", Turn: wireTurn(*ev.Turn)})
				if ev.Turn.HasAudio() {
					send(turnAudioFrame(ev.Turn))
				}
				if h.Metrics != nil {
					h.Metrics.TurnAppended(string(ev.Turn.Role))
				}
			case engine.EventTurnAudio:
				if ev.Turn != nil && ev.Turn.HasAudio() {
					send(turnAudioFrame(ev.Turn))
				}
			case engine.EventInputState:
				state.InputState = string(ev.InputState)
				send(protocol.ServerState{Type: "state", State: state})
			case engine.EventOutputState:
				state.Playing = ev.OutputState.Playing
				state.PlayingTurnID = ev.OutputState.TurnID
				send(protocol.ServerState{Type: "state", State: state})
			case engine.EventNotice:
				send(protocol.ServerNotice{Type: "notice", Kind: string(ev.FaultKind), Message: ev.Notice})
				if h.Metrics != nil {
					h.Metrics.FaultReported(string(ev.FaultKind))
				}
			case engine.EventVoiceChanged:
				send(protocol.ServerVoiceChanged{Type: "voice_changed", VoiceToken: ev.Voice.Token})
			}
		}
	}
}

func (h ChatHandler) writeLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, outbound <-chan any) {
	pingInterval := h.Config.WSPingInterval
	if pingInterval <= 0 {
		pingInterval = 20 * time.Second
	}
	writeTimeout := h.Config.WSWriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-outbound:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(frame); err != nil {
				cancel()
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				cancel()
				return
			}
		}
	}
}

func (h ChatHandler) readLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, eng *engine.Engine, dev *streamDevice, send func(any), logger *slog.Logger) {
	defer cancel()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		decoded, err := protocol.DecodeClientMessage(data)
		if err != nil {
			send(protocol.ErrorFrame(err, false))
			continue
		}

		switch msg := decoded.(type) {
		case protocol.ClientStartRecording:
			eng.StartRecording()
		case protocol.ClientStopRecording:
			eng.StopRecording()
		case protocol.ClientSubmitText:
			eng.SubmitText(msg.Text)
		case protocol.ClientSetDraft:
			eng.SetDraft(msg.Text)
		case protocol.ClientPlay:
			eng.Play(msg.TurnID)
		case protocol.ClientAudioChunk:
			chunk, err := base64.StdEncoding.DecodeString(msg.DataB64)
			if err != nil {
				send(protocol.ServerError{Type: "error", Code: "bad_request", Message: "invalid audio_chunk base64", Param: "data_b64"})
				continue
			}
			dev.Push(chunk)
		case protocol.ClientCloneSample:
			sample, err := base64.StdEncoding.DecodeString(msg.SampleB64)
			if err != nil {
				send(protocol.ServerError{Type: "error", Code: "bad_request", Message: "invalid clone_sample base64", Param: "sample_b64"})
				continue
			}
			go h.runClone(ctx, eng, sample, send, logger)
		case protocol.ClientHello:
			send(protocol.ServerError{Type: "error", Code: "bad_request", Message: "hello already received"})
		}
	}
}

// runClone registers a voice sample off the read loop so cloning's simulated
// delay never stalls other intents.
func (h ChatHandler) runClone(ctx context.Context, eng *engine.Engine, sample []byte, send func(any), logger *slog.Logger) {
	if h.Registry == nil {
		send(protocol.ServerNotice{Type: "notice", Kind: string(types.FaultEmptySample), Message: "voice cloning is not available"})
		return
	}
	if h.Metrics != nil {
		h.Metrics.ClonesStarted.Inc()
	}
	send(protocol.ServerCloneState{Type: "clone_state", State: string(identity.StateCloning)})

	id, err := h.Registry.Clone(ctx, types.AudioPayload{Kind: types.AudioCaptured, Data: sample})
	if err != nil {
		logger.Warn("voice clone failed", "error", err)
		send(protocol.ServerNotice{Type: "notice", Kind: string(types.FaultKindOf(err)), Message: "could not clone the voice sample"})
		send(protocol.ServerCloneState{Type: "clone_state", State: string(identity.StateIdle)})
		return
	}

	eng.SetVoice(id)
	send(protocol.ServerCloneState{Type: "clone_state", State: string(identity.StateCloned), VoiceToken: id.Token})
	if h.Metrics != nil {
		h.Metrics.ClonesCompleted.Inc()
	}
}

func (h ChatHandler) writeWSError(conn *websocket.Conn, code, message string, close bool) {
	_ = conn.WriteJSON(protocol.ServerError{Type: "error", Code: code, Message: message, Close: close})
	if close {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, message), time.Now().Add(2*time.Second))
	}
}

func wireTurn(t types.Turn) protocol.Turn {
	return protocol.Turn{
		ID:        t.ID,
		Role:      string(t.Role),
		Text:      t.Text,
		CreatedAt: t.CreatedAt.UnixMilli(),
		HasAudio:  t.HasAudio(),
	}
}

func wireTurns(turns []types.Turn) []protocol.Turn {
	out := make([]protocol.Turn, len(turns))
	for i, t := range turns {
		out[i] = wireTurn(t)
	}
	return out
}

func turnAudioFrame(t *types.Turn) protocol.ServerTurnAudio {
	return protocol.ServerTurnAudio{
		Type:     "turn_audio",
		TurnID:   t.ID,
		AudioB64: base64.StdEncoding.EncodeToString(t.Audio.Data),
	}
}

func randHex(nbytes int) string {
	b := make([]byte, nbytes)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}
