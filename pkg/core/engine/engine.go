// Package engine drives the conversation session: turn-taking between
// recording, recognition, reply generation, synthesis, and playback.
//
// All session state is owned by a single run loop. Intents and capability
// completions arrive as events on the loop's channels, so no mutation races
// another. Capability calls run in spawned goroutines; their completions are
// tagged with a monotonic episode sequence and stale completions are
// discarded, so a finished episode can never clobber a newer one.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/replitone/replitone/pkg/core/capture"
	"github.com/replitone/replitone/pkg/core/responder"
	"github.com/replitone/replitone/pkg/core/types"
)

// Recognizer converts a finalized capture payload into text.
type Recognizer interface {
	Recognize(ctx context.Context, payload types.AudioPayload) (string, error)
}

// Synthesizer converts assistant text plus a voice identity into audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, identity types.VoiceIdentity) (types.AudioPayload, error)
}

// CaptureController owns the recording device lifecycle.
type CaptureController interface {
	Begin(ctx context.Context) (*capture.Handle, error)
	End(h *capture.Handle) (types.AudioPayload, error)
}

// Config tunes engine behavior.
type Config struct {
	// AutoPlayDelay postpones auto-play of a fresh assistant turn. Zero plays
	// immediately on append.
	AutoPlayDelay time.Duration
	// EventBuffer sizes the outbound event channel.
	EventBuffer int
	// IntentBuffer sizes the inbound intent channel.
	IntentBuffer int
}

// Dependencies wires the engine's collaborators.
type Dependencies struct {
	Logger      *slog.Logger
	Capture     CaptureController
	Recognizer  Recognizer
	Synthesizer Synthesizer
	Responder   responder.Capability
	Player      Player
	TurnIDs     *TurnIDSource
	Now         func() time.Time
	// Voice is the initial voice identity, usually unset until cloning.
	Voice types.VoiceIdentity
}

type intentKind int

const (
	intentStartRecording intentKind = iota
	intentStopRecording
	intentSubmitText
	intentPlay
	intentSetDraft
	intentSetVoice
)

type intent struct {
	kind   intentKind
	text   string
	turnID string
	voice  types.VoiceIdentity
}

type faultNotice struct {
	kind    types.FaultKind
	message string
}

type beginDone struct {
	gen    uint64
	handle *capture.Handle
	err    error
}

type recognitionDone struct {
	seq     uint64
	text    string
	notices []faultNotice
}

type replyDone struct {
	seq     uint64
	text    string
	notices []faultNotice
}

type synthesisDone struct {
	turnID  string
	payload types.AudioPayload
	notices []faultNotice
}

type playbackDone struct {
	gen    uint64
	turnID string
	err    error
}

// Engine is the conversation session coordinator.
type Engine struct {
	cfg       Config
	logger    *slog.Logger
	capture   CaptureController
	recognize Recognizer
	synth     Synthesizer
	responder responder.Capability
	turnIDs   *TurnIDSource
	now       func() time.Time

	intents     chan intent
	completions chan any
	events      chan Event
	closed      chan struct{}

	// Loop-owned state. Only the run loop touches these.
	turns       []*types.Turn
	history     *historyLog
	input       InputState
	output      OutputState
	pb          *playback
	voice       types.VoiceIdentity
	draft       string
	episodeSeq  uint64
	recGen      uint64
	recHandle   *capture.Handle
	pendingStop bool

	snapMu       sync.RWMutex
	snap         Session
	histSnapshot []types.Message
}

// New creates an engine seeded with the welcome turn and the system preamble.
// Call Run to start processing intents.
func New(cfg Config, deps Dependencies) *Engine {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.TurnIDs == nil {
		deps.TurnIDs = NewTurnIDSource(deps.Now().UnixNano(), deps.Now)
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 64
	}
	if cfg.IntentBuffer <= 0 {
		cfg.IntentBuffer = 16
	}

	e := &Engine{
		cfg:         cfg,
		logger:      deps.Logger,
		capture:     deps.Capture,
		recognize:   deps.Recognizer,
		synth:       deps.Synthesizer,
		responder:   deps.Responder,
		turnIDs:     deps.TurnIDs,
		now:         deps.Now,
		intents:     make(chan intent, cfg.IntentBuffer),
		completions: make(chan any, cfg.IntentBuffer),
		events:      make(chan Event, cfg.EventBuffer),
		closed:      make(chan struct{}),
		history:     newHistoryLog(responder.InitialHistory()),
		input:       InputIdle,
		pb:          newPlayback(deps.Player),
		voice:       deps.Voice,
	}

	welcome := &types.Turn{
		ID:        "welcome",
		Role:      types.RoleAssistant,
		Text:      responder.WelcomeText,
		CreatedAt: e.now(),
	}
	e.turns = append(e.turns, welcome)
	e.publishSnapshot()
	return e
}

// Events returns the engine's outbound event stream. Events are dropped, not
// blocked on, when the consumer falls behind.
func (e *Engine) Events() <-chan Event {
	return e.events
}

// StartRecording asks the engine to begin a capture. No-op unless idle.
func (e *Engine) StartRecording() { e.dispatch(intent{kind: intentStartRecording}) }

// StopRecording finalizes the capture and starts a Processing episode.
func (e *Engine) StopRecording() { e.dispatch(intent{kind: intentStopRecording}) }

// SubmitText starts a Processing episode from typed input. Empty or
// whitespace-only text, or a session that is not idle, makes this a no-op.
func (e *Engine) SubmitText(text string) { e.dispatch(intent{kind: intentSubmitText, text: text}) }

// Play requests playback of the given turn's audio.
func (e *Engine) Play(turnID string) { e.dispatch(intent{kind: intentPlay, turnID: turnID}) }

// SetDraft updates the pending text draft in the session snapshot.
func (e *Engine) SetDraft(text string) { e.dispatch(intent{kind: intentSetDraft, text: text}) }

// SetVoice switches the session's voice identity for subsequent synthesis.
func (e *Engine) SetVoice(v types.VoiceIdentity) { e.dispatch(intent{kind: intentSetVoice, voice: v}) }

// Snapshot returns a copy of the observable session state.
func (e *Engine) Snapshot() Session {
	e.snapMu.RLock()
	defer e.snapMu.RUnlock()
	s := e.snap
	turns := make([]types.Turn, len(s.Turns))
	copy(turns, s.Turns)
	s.Turns = turns
	return s
}

func (e *Engine) dispatch(in intent) {
	select {
	case e.intents <- in:
	case <-e.closed:
	}
}

func (e *Engine) postCompletion(ctx context.Context, ev any) {
	select {
	case e.completions <- ev:
	case <-ctx.Done():
	}
}

// Run processes intents and completions until ctx is canceled. It owns all
// session state for its lifetime.
func (e *Engine) Run(ctx context.Context) {
	defer close(e.closed)
	defer e.cleanup()

	for {
		select {
		case <-ctx.Done():
			return
		case in := <-e.intents:
			e.handleIntent(ctx, in)
		case ev := <-e.completions:
			e.handleCompletion(ctx, ev)
		}
	}
}

func (e *Engine) cleanup() {
	e.pb.stop()
	if e.recHandle != nil {
		if _, err := e.capture.End(e.recHandle); err != nil {
			e.logger.Debug("end capture on shutdown", "error", err)
		}
		e.recHandle = nil
	}
}

func (e *Engine) handleIntent(ctx context.Context, in intent) {
	switch in.kind {
	case intentStartRecording:
		e.startRecording(ctx)
	case intentStopRecording:
		e.stopRecording(ctx)
	case intentSubmitText:
		e.submitText(ctx, in.text)
	case intentPlay:
		e.playTurn(ctx, in.turnID)
	case intentSetDraft:
		e.draft = in.text
		e.publishSnapshot()
	case intentSetVoice:
		e.voice = in.voice
		e.emit(Event{Kind: EventVoiceChanged, Voice: in.voice})
		e.publishSnapshot()
	}
}

func (e *Engine) handleCompletion(ctx context.Context, ev any) {
	switch c := ev.(type) {
	case beginDone:
		e.onBeginDone(ctx, c)
	case recognitionDone:
		e.onRecognitionDone(ctx, c)
	case replyDone:
		e.onReplyDone(ctx, c)
	case synthesisDone:
		e.onSynthesisDone(ctx, c)
	case playbackDone:
		e.onPlaybackDone(c)
	default:
		e.logger.Warn("unknown completion", "type", fmt.Sprintf("%T", ev))
	}
}

func (e *Engine) startRecording(ctx context.Context) {
	if e.input != InputIdle {
		e.logger.Debug("startRecording ignored", "input_state", e.input)
		return
	}
	if e.capture == nil {
		e.notice(types.FaultDeviceUnavailable, "no capture device configured")
		return
	}

	e.setInput(InputRecording)
	e.recGen++
	e.pendingStop = false
	gen := e.recGen

	go func() {
		h, err := e.capture.Begin(ctx)
		e.postCompletion(ctx, beginDone{gen: gen, handle: h, err: err})
	}()
}

func (e *Engine) onBeginDone(ctx context.Context, c beginDone) {
	if c.gen != e.recGen || e.input != InputRecording {
		// A newer recording superseded this one; release the orphan capture.
		if c.err == nil && c.handle != nil {
			go func() { _, _ = e.capture.End(c.handle) }()
		}
		return
	}
	if c.err != nil {
		e.notice(types.FaultDeviceUnavailable, "microphone unavailable: allow microphone access to record audio")
		e.setInput(InputIdle)
		return
	}
	e.recHandle = c.handle
	if e.pendingStop {
		e.pendingStop = false
		e.finalizeRecording(ctx)
	}
}

func (e *Engine) stopRecording(ctx context.Context) {
	if e.input != InputRecording {
		e.logger.Debug("stopRecording ignored", "input_state", e.input)
		return
	}
	if e.recHandle == nil {
		// Device acquisition is still in flight; finalize as soon as it lands.
		e.pendingStop = true
		return
	}
	e.finalizeRecording(ctx)
}

func (e *Engine) finalizeRecording(ctx context.Context) {
	h := e.recHandle
	e.recHandle = nil
	e.setInput(InputProcessing)
	e.episodeSeq++
	seq := e.episodeSeq

	go func() {
		var notices []faultNotice

		payload, err := e.capture.End(h)
		if err != nil {
			notices = append(notices, faultNotice{types.FaultDeviceUnavailable, "could not finalize the recording"})
		}

		text := ""
		if e.recognize != nil {
			t, rerr := e.recognize.Recognize(ctx, payload)
			switch {
			case rerr == nil:
				text = t
			case types.IsFault(rerr, types.FaultRecognitionUnavailable):
				// Degrade to an empty-string turn; the responder reacts to
				// emptiness.
				notices = append(notices, faultNotice{types.FaultRecognitionUnavailable, "no speech detected"})
			default:
				notices = append(notices, faultNotice{types.FaultProcessingError, "could not process your voice"})
			}
		} else {
			notices = append(notices, faultNotice{types.FaultRecognitionUnavailable, "no recognizer configured"})
		}

		e.postCompletion(ctx, recognitionDone{seq: seq, text: text, notices: notices})
	}()
}

func (e *Engine) onRecognitionDone(ctx context.Context, c recognitionDone) {
	if c.seq != e.episodeSeq || e.input != InputProcessing {
		e.logger.Debug("stale recognition completion discarded", "seq", c.seq)
		return
	}
	for _, n := range c.notices {
		e.notice(n.kind, n.message)
	}

	// The user turn is always appended, even when recognition degraded to an
	// apology or empty text: the transcript never silently drops a user action.
	e.appendUserTurn(c.text)
	e.startGeneration(ctx, c.seq)
}

func (e *Engine) submitText(ctx context.Context, text string) {
	if e.input != InputIdle {
		e.logger.Debug("submitText ignored", "input_state", e.input)
		return
	}
	if strings.TrimSpace(text) == "" {
		return
	}

	e.draft = ""
	e.appendUserTurn(text)
	e.setInput(InputProcessing)
	e.episodeSeq++
	e.startGeneration(ctx, e.episodeSeq)
}

// startGeneration runs the responder phase of the current episode off-loop.
// Every failure still posts a completion so the episode terminates. The reply
// text is appended before any audio is requested; synthesis follows post-hoc.
func (e *Engine) startGeneration(ctx context.Context, seq uint64) {
	hist := e.history.snapshot()

	go func() {
		var notices []faultNotice
		text := ""

		func() {
			defer func() {
				if r := recover(); r != nil {
					text = responder.Apology
					notices = append(notices, faultNotice{types.FaultProcessingError, fmt.Sprintf("responder panic: %v", r)})
				}
			}()
			t, err := e.responder.Generate(ctx, hist)
			if err != nil {
				text = responder.Apology
				notices = append(notices, faultNotice{types.FaultResponderError, "could not generate a reply"})
				e.logger.Warn("responder failed", "error", err)
				return
			}
			text = t
		}()

		e.postCompletion(ctx, replyDone{seq: seq, text: text, notices: notices})
	}()
}

func (e *Engine) onReplyDone(ctx context.Context, c replyDone) {
	if c.seq != e.episodeSeq || e.input != InputProcessing {
		e.logger.Debug("stale reply completion discarded", "seq", c.seq)
		return
	}

	turn := &types.Turn{
		ID:        e.turnIDs.Next(types.RoleAssistant),
		Role:      types.RoleAssistant,
		Text:      c.text,
		CreatedAt: e.now(),
	}
	e.turns = append(e.turns, turn)
	e.history.appendAssistant(c.text)
	e.emitTurn(EventTurnAdded, turn)

	for _, n := range c.notices {
		e.notice(n.kind, n.message)
	}

	// The episode terminates exactly once; audio attaches post-hoc, so a
	// stalled synthesis never keeps the session in Processing.
	e.setInput(InputIdle)
	e.startSynthesis(ctx, turn.ID, c.text)
}

// startSynthesis renders audio for an already-appended turn off-loop. The
// text-only turn stays valid if synthesis fails or never completes.
func (e *Engine) startSynthesis(ctx context.Context, turnID, text string) {
	if e.synth == nil {
		return
	}
	voice := e.voice

	go func() {
		var notices []faultNotice
		var payload types.AudioPayload

		func() {
			defer func() {
				if r := recover(); r != nil {
					payload = types.AudioPayload{}
					notices = append(notices, faultNotice{types.FaultProcessingError, fmt.Sprintf("synthesis panic: %v", r)})
				}
			}()
			p, err := e.synth.Synthesize(ctx, text, voice)
			if err != nil {
				notices = append(notices, faultNotice{types.FaultSynthesisUnavailable, "voice synthesis unavailable, continuing text-only"})
				e.logger.Warn("synthesis failed", "error", err)
				return
			}
			payload = p
		}()

		e.postCompletion(ctx, synthesisDone{turnID: turnID, payload: payload, notices: notices})
	}()
}

func (e *Engine) onSynthesisDone(ctx context.Context, c synthesisDone) {
	for _, n := range c.notices {
		e.notice(n.kind, n.message)
	}
	if c.payload.Empty() {
		return
	}

	turn := e.findTurn(c.turnID)
	if turn == nil {
		return
	}
	p := c.payload
	turn.Audio = &p
	e.pb.attach(turn.ID, p)
	e.emitTurn(EventTurnAudio, turn)
	e.publishSnapshot()

	if e.cfg.AutoPlayDelay > 0 {
		id := turn.ID
		time.AfterFunc(e.cfg.AutoPlayDelay, func() { e.Play(id) })
	} else {
		e.playTurn(ctx, turn.ID)
	}
}

func (e *Engine) findTurn(id string) *types.Turn {
	for _, t := range e.turns {
		if t.ID == id {
			return t
		}
	}
	return nil
}

func (e *Engine) playTurn(ctx context.Context, turnID string) {
	done, gen, started, err := e.pb.start(turnID)
	if err != nil {
		e.notice(types.FaultPlaybackError, "could not play audio")
		e.setOutput(OutputState{})
		return
	}
	if !started {
		// The turn has no audio; the current output, if any, keeps sounding.
		return
	}

	e.setOutput(OutputState{Playing: true, TurnID: turnID})

	go func() {
		perr, ok := <-done
		if !ok {
			perr = nil
		}
		e.postCompletion(ctx, playbackDone{gen: gen, turnID: turnID, err: perr})
	}()
}

func (e *Engine) onPlaybackDone(c playbackDone) {
	if !e.pb.finish(c.gen) {
		return
	}
	if c.err != nil {
		e.notice(types.FaultPlaybackError, "audio playback failed")
		e.logger.Warn("playback failed", "turn_id", c.turnID, "error", c.err)
	}
	e.setOutput(OutputState{})
}

func (e *Engine) appendUserTurn(text string) {
	turn := &types.Turn{
		ID:        e.turnIDs.Next(types.RoleUser),
		Role:      types.RoleUser,
		Text:      text,
		CreatedAt: e.now(),
	}
	e.turns = append(e.turns, turn)
	e.history.appendUser(text)
	e.emitTurn(EventTurnAdded, turn)
	e.publishSnapshot()
}

// emitTurn sends a copy of the turn so consumers never observe the loop
// attaching audio to the original after the event is queued.
func (e *Engine) emitTurn(kind EventKind, t *types.Turn) {
	c := *t
	e.emit(Event{Kind: kind, Turn: &c})
}

func (e *Engine) setInput(s InputState) {
	if e.input == s {
		return
	}
	e.input = s
	e.emit(Event{Kind: EventInputState, InputState: s})
	e.publishSnapshot()
}

func (e *Engine) setOutput(s OutputState) {
	if e.output == s {
		return
	}
	e.output = s
	e.emit(Event{Kind: EventOutputState, OutputState: s})
	e.publishSnapshot()
}

func (e *Engine) notice(kind types.FaultKind, message string) {
	e.emit(Event{Kind: EventNotice, FaultKind: kind, Notice: message})
}

func (e *Engine) emit(ev Event) {
	select {
	case e.events <- ev:
	default:
		e.logger.Warn("event dropped, consumer too slow", "kind", ev.Kind)
	}
}

func (e *Engine) publishSnapshot() {
	turns := make([]types.Turn, len(e.turns))
	for i, t := range e.turns {
		turns[i] = *t
	}
	e.snapMu.Lock()
	e.snap = Session{
		Turns:       turns,
		InputState:  e.input,
		OutputState: e.output,
		Draft:       e.draft,
		Voice:       e.voice,
	}
	e.histSnapshot = e.history.snapshot()
	e.snapMu.Unlock()
}

// History returns a copy of the conversation history (for tests and the
// presentation boundary).
func (e *Engine) History() []types.Message {
	e.snapMu.RLock()
	defer e.snapMu.RUnlock()
	out := make([]types.Message, len(e.histSnapshot))
	copy(out, e.histSnapshot)
	return out
}
