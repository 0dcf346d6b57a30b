package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Turn is one re-assembled model response: every streamed delta of a
// single response, stitched back into a finished message.
type Turn struct {
	// ResponseID and ItemID identify the response and its message item.
	ResponseID string
	ItemID     string

	// Role of the message item, normally "assistant".
	Role string

	// Text is the concatenated text deltas.
	Text string

	// Transcript is the concatenated audio transcript deltas.
	Transcript string

	// Audio is the decoded output audio (24kHz 16-bit mono PCM).
	Audio []byte

	// FunctionCalls the model issued during this turn, in order.
	FunctionCalls []FunctionCall

	// Citations collected from annotations on the output items.
	Citations []Citation

	// Usage is the token accounting reported in response.done.
	Usage *Usage

	// Status is the terminal response status: completed, cancelled,
	// incomplete or failed.
	Status string

	// Err is set when the response failed and the payload carried an
	// error.
	Err error
}

// Reply returns the assistant's text, falling back to the audio
// transcript for audio-only responses.
func (t *Turn) Reply() string {
	if t.Text != "" {
		return t.Text
	}
	return t.Transcript
}

// HasFunctionCalls reports whether the model asked for tool invocations.
func (t *Turn) HasFunctionCalls() bool {
	return len(t.FunctionCalls) > 0
}

// FunctionCall is one complete tool invocation request.
type FunctionCall struct {
	CallID    string
	Name      string
	Arguments string
}

// Citation is a source reference attached to the response text.
type Citation struct {
	Title      string
	URL        string
	StartIndex int
	EndIndex   int
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// Connect selects the model. nil uses the defaults.
	Connect *ConnectConfig

	// Session is applied after every (re)connect, once session.created
	// has been observed. Set TurnDetectionDisabled for manual turns.
	Session *SessionConfig

	// Response is passed to every response.create the manager issues.
	Response *ResponseOptions

	// AutoRespond makes SubmitToolOutputs issue the follow-up
	// response.create itself, after the last output lands.
	AutoRespond bool

	// CommitPeriod enables a local auto-commit ticker: every period,
	// audio appended since the last commit is committed and a response
	// requested. For endpoints without server VAD. 0 disables.
	CommitPeriod time.Duration

	// MaxReconnects bounds Resume's dial attempts. Default 3.
	MaxReconnects int

	// Logger for session lifecycle and dispatch traffic. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

// Manager owns one Session and runs its dispatch loop, so synchronous
// callers can drive the asynchronous protocol with blocking round-trips.
// It assembles deltas into Turns, signals turn completion, interleaves
// tool output, and reconnects after socket drops.
type Manager struct {
	cfg  ManagerConfig
	log  *slog.Logger
	dial func(ctx context.Context) (Session, error)

	// turnMu serializes manual round-trips: one in-flight turn at a
	// time.
	turnMu sync.Mutex

	mu        sync.Mutex
	sess      Session
	sessionID string
	asm       *turnAssembler
	tap       func(*ServerEvent)
	awaiting  bool
	appended  bool

	turns     chan turnResult
	closed    chan struct{}
	closeOnce sync.Once
}

type turnResult struct {
	turn *Turn
	err  error
}

// NewManager creates a manager that dials WebSocket sessions through
// client.
func NewManager(client *Client, cfg ManagerConfig) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		cfg:    cfg,
		log:    logger,
		turns:  make(chan turnResult, 16),
		closed: make(chan struct{}),
	}
	m.dial = func(ctx context.Context) (Session, error) {
		return client.ConnectWebSocket(ctx, cfg.Connect)
	}
	return m
}

// OnEvent installs an observer that sees every server event before the
// manager dispatches it. Used for verbose/trace output.
func (m *Manager) OnEvent(fn func(*ServerEvent)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tap = fn
}

// Start dials the session, waits for session.created, applies the
// session configuration and spawns the dispatch loop.
func (m *Manager) Start(ctx context.Context) error {
	if err := m.connect(ctx); err != nil {
		return err
	}
	if m.cfg.CommitPeriod > 0 {
		go m.commitLoop()
	}
	return nil
}

// connect dials one session and brings it to the configured state.
func (m *Manager) connect(ctx context.Context) error {
	sess, err := m.dial(ctx)
	if err != nil {
		return err
	}

	ready := make(chan struct{})
	m.mu.Lock()
	m.sess = sess
	m.mu.Unlock()

	go m.loop(sess, ready)

	select {
	case <-ready:
	case <-ctx.Done():
		sess.Close()
		return ctx.Err()
	case <-m.closed:
		sess.Close()
		return ErrSessionClosed
	}

	if m.cfg.Session != nil {
		if err := sess.UpdateSession(m.cfg.Session); err != nil {
			sess.Close()
			return err
		}
	}
	return nil
}

// loop dispatches server events for one session. It exits when the
// session's event stream ends; the pending turn, if any, fails with the
// stream's terminal error.
func (m *Manager) loop(sess Session, ready chan struct{}) {
	readyClosed := false
	signalReady := func() {
		if !readyClosed {
			close(ready)
			readyClosed = true
		}
	}
	defer signalReady()

	for event, err := range sess.Events() {
		if err != nil {
			m.log.Warn("realtime: session read failed", "error", err)
			m.failPendingFrom(sess, err)
			return
		}
		m.dispatch(event, signalReady)
	}
	m.failPendingFrom(sess, ErrSessionClosed)
}

func (m *Manager) dispatch(event *ServerEvent, signalReady func()) {
	m.mu.Lock()
	tap := m.tap
	m.mu.Unlock()
	if tap != nil {
		tap(event)
	}

	switch event.Type {
	case EventSessionCreated:
		if event.Session != nil {
			m.mu.Lock()
			m.sessionID = event.Session.ID
			m.mu.Unlock()
			m.log.Info("realtime: session created", "session_id", event.Session.ID)
		}
		signalReady()

	case EventResponseCreated:
		responseID := ""
		if event.Response != nil {
			responseID = event.Response.ID
		}
		m.mu.Lock()
		m.asm = newTurnAssembler(responseID)
		m.mu.Unlock()

	case EventResponseOutputItemAdded:
		m.withAssembler(func(a *turnAssembler) { a.addItem(event.Item) })

	case EventResponseTextDelta:
		m.withAssembler(func(a *turnAssembler) { a.text.WriteString(event.Delta) })

	case EventResponseAudioTranscriptDelta:
		m.withAssembler(func(a *turnAssembler) { a.transcript.WriteString(event.Delta) })

	case EventResponseAudioDelta:
		m.withAssembler(func(a *turnAssembler) { a.audio = append(a.audio, event.Audio...) })

	case EventResponseFunctionCallArgumentsDelta:
		m.withAssembler(func(a *turnAssembler) { a.argumentsDelta(event.CallID, event.Name, event.Delta) })

	case EventResponseFunctionCallArgumentsDone:
		m.withAssembler(func(a *turnAssembler) { a.argumentsDone(event.CallID, event.Name, event.Arguments) })

	case EventResponseDone:
		m.mu.Lock()
		asm := m.asm
		m.asm = nil
		m.mu.Unlock()
		if asm == nil {
			m.log.Debug("realtime: response.done without an active turn")
			return
		}
		m.complete(asm.finish(event.Response))

	case EventError:
		err := event.Err()
		m.mu.Lock()
		active := m.asm != nil || m.awaiting
		m.asm = nil
		m.mu.Unlock()
		if active {
			m.failPending(err)
			return
		}
		m.log.Warn("realtime: server error", "error", err)

	case EventInputAudioBufferSpeechStarted:
		m.log.Debug("realtime: speech started", "audio_start_ms", event.AudioStartMs)

	case EventInputAudioBufferSpeechStopped:
		m.log.Debug("realtime: speech stopped", "audio_end_ms", event.AudioEndMs)

	case EventConversationItemTranscriptDone:
		m.log.Debug("realtime: input transcribed", "item_id", event.ItemID, "transcript", event.Transcript)

	case EventConversationItemTranscriptFailed:
		m.log.Warn("realtime: input transcription failed", "item_id", event.ItemID, "error", event.Error)
	}
}

func (m *Manager) withAssembler(fn func(*turnAssembler)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.asm != nil {
		fn(m.asm)
	}
}

// complete hands a finished turn to the waiter. The channel is buffered;
// turns completed with nobody ever waiting are eventually dropped.
func (m *Manager) complete(t *Turn) {
	select {
	case m.turns <- turnResult{turn: t}:
	default:
		m.log.Warn("realtime: completed turn dropped", "response_id", t.ResponseID)
	}
}

// failPending fails the waiter, if any, with err.
func (m *Manager) failPending(err error) {
	m.mu.Lock()
	m.asm = nil
	m.mu.Unlock()
	select {
	case m.turns <- turnResult{err: err}:
	default:
	}
}

// failPendingFrom is failPending for session loops: a loop whose session
// has already been replaced must not fail turns of its successor.
func (m *Manager) failPendingFrom(sess Session, err error) {
	m.mu.Lock()
	current := m.sess == sess
	if current {
		m.asm = nil
	}
	m.mu.Unlock()
	if !current {
		return
	}
	select {
	case m.turns <- turnResult{err: err}:
	default:
	}
}

// session returns the current session.
func (m *Manager) session() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess
}

// SessionID returns the server-assigned ID of the current session.
func (m *Manager) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID
}

// SendText runs one blocking text round-trip: create the user item,
// request a response and wait for the completed turn.
func (m *Manager) SendText(ctx context.Context, text string) (*Turn, error) {
	return m.roundTrip(ctx, func(sess Session) error {
		if err := sess.AddUserText(text); err != nil {
			return err
		}
		return sess.CreateResponse(m.cfg.Response)
	})
}

// CommitTurn runs one blocking manual audio turn: commit the buffered
// input, request a response and wait for the completed turn.
func (m *Manager) CommitTurn(ctx context.Context) (*Turn, error) {
	m.mu.Lock()
	m.appended = false
	m.mu.Unlock()
	return m.roundTrip(ctx, func(sess Session) error {
		if err := sess.CommitInput(); err != nil {
			return err
		}
		return sess.CreateResponse(m.cfg.Response)
	})
}

func (m *Manager) roundTrip(ctx context.Context, send func(Session) error) (*Turn, error) {
	m.turnMu.Lock()
	defer m.turnMu.Unlock()

	sess := m.session()
	if sess == nil {
		return nil, errors.New("realtime: manager not started")
	}

	m.drainStale()

	m.mu.Lock()
	m.awaiting = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.awaiting = false
		m.mu.Unlock()
	}()

	if err := send(sess); err != nil {
		return nil, err
	}
	return m.WaitTurn(ctx)
}

// drainStale discards results left over from failed or unawaited turns,
// so a fresh round-trip cannot observe them. Callers hold turnMu.
func (m *Manager) drainStale() {
	for {
		select {
		case res := <-m.turns:
			if res.err != nil {
				m.log.Debug("realtime: discarding stale turn failure", "error", res.err)
			} else {
				m.log.Debug("realtime: discarding stale turn", "response_id", res.turn.ResponseID)
			}
		default:
			return
		}
	}
}

// AppendAudio buffers microphone audio into the input buffer. In manual
// mode it is held until CommitTurn; with server VAD the server segments
// it into turns on its own.
func (m *Manager) AppendAudio(pcm []byte) error {
	sess := m.session()
	if sess == nil {
		return errors.New("realtime: manager not started")
	}
	if err := sess.AppendAudio(pcm); err != nil {
		return err
	}
	m.mu.Lock()
	m.appended = true
	m.mu.Unlock()
	return nil
}

// WaitTurn blocks until the next turn completes. This is the wait path
// for auto-turn mode, where the server decides when a turn ends. The
// returned turn's Status and Err describe how it ended; the error return
// is reserved for session-level failures.
func (m *Manager) WaitTurn(ctx context.Context) (*Turn, error) {
	select {
	case res := <-m.turns:
		return res.turn, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.closed:
		return nil, ErrSessionClosed
	}
}

// ToolOutput pairs a function call with its result.
type ToolOutput struct {
	CallID string
	Output string
}

// SubmitToolOutput reports a single function call result back to the
// conversation. With AutoRespond the manager requests the follow-up
// response immediately; the resulting turn arrives via WaitTurn (or the
// next round-trip). For a turn with parallel function calls use
// SubmitToolOutputs, which requests only one follow-up.
func (m *Manager) SubmitToolOutput(ctx context.Context, callID, output string) error {
	return m.SubmitToolOutputs(ctx, []ToolOutput{{CallID: callID, Output: output}})
}

// SubmitToolOutputs reports several function call results at once. All
// outputs are added to the conversation first; with AutoRespond a
// single response.create follows the last one. One response per output
// would make the server reject the extras while the first follow-up is
// still active.
func (m *Manager) SubmitToolOutputs(ctx context.Context, outputs []ToolOutput) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sess := m.session()
	if sess == nil {
		return errors.New("realtime: manager not started")
	}
	for _, out := range outputs {
		if err := sess.AddFunctionCallOutput(out.CallID, out.Output); err != nil {
			return err
		}
	}
	if m.cfg.AutoRespond && len(outputs) > 0 {
		return sess.CreateResponse(m.cfg.Response)
	}
	return nil
}

// Interrupt cancels the in-flight response and clears buffered input.
// The cancelled response still completes its turn with status
// "cancelled".
func (m *Manager) Interrupt(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sess := m.session()
	if sess == nil {
		return errors.New("realtime: manager not started")
	}
	if err := sess.CancelResponse(); err != nil {
		return err
	}
	return sess.ClearInput()
}

// Resume re-dials after a socket drop with capped exponential backoff
// and reapplies the session configuration. Server-side conversation
// state cannot be resumed; the previous session ID is logged for
// correlation.
func (m *Manager) Resume(ctx context.Context) error {
	m.turnMu.Lock()
	defer m.turnMu.Unlock()

	m.mu.Lock()
	old := m.sess
	oldID := m.sessionID
	// Detach before closing so the old loop cannot fail turns of the
	// replacement session.
	m.sess = nil
	m.mu.Unlock()
	if old != nil {
		old.Close()
	}

	attempts := m.cfg.MaxReconnects
	if attempts <= 0 {
		attempts = 3
	}

	var lastErr error
	delay := 500 * time.Millisecond
	for i := 0; i < attempts; i++ {
		select {
		case <-m.closed:
			return ErrSessionClosed
		default:
		}

		if err := m.connect(ctx); err != nil {
			lastErr = err
			m.log.Warn("realtime: reconnect failed", "attempt", i+1, "error", err)
			if i+1 < attempts {
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return ctx.Err()
				case <-m.closed:
					return ErrSessionClosed
				}
				delay = min(delay*2, 10*time.Second)
			}
			continue
		}

		m.drainStale()
		m.log.Info("realtime: session resumed",
			"previous_session_id", oldID,
			"session_id", m.SessionID())
		return nil
	}
	return fmt.Errorf("realtime: resume failed after %d attempts: %w", attempts, lastErr)
}

// commitLoop periodically commits appended audio and requests a
// response. Active only when CommitPeriod is set.
func (m *Manager) commitLoop() {
	ticker := time.NewTicker(m.cfg.CommitPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-m.closed:
			return
		case <-ticker.C:
			m.mu.Lock()
			appended := m.appended
			m.appended = false
			sess := m.sess
			m.mu.Unlock()

			if !appended || sess == nil {
				continue
			}
			if err := sess.CommitInput(); err != nil {
				m.log.Warn("realtime: auto-commit failed", "error", err)
				continue
			}
			if err := sess.CreateResponse(m.cfg.Response); err != nil {
				m.log.Warn("realtime: auto-commit response failed", "error", err)
			}
		}
	}
}

// Close shuts the manager down. All blocked waiters return
// ErrSessionClosed. Idempotent.
func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		close(m.closed)
		if sess := m.session(); sess != nil {
			err = sess.Close()
		}
	})
	return err
}

// turnAssembler accumulates streamed deltas for one response.
type turnAssembler struct {
	responseID string
	itemID     string
	role       string
	text       strings.Builder
	transcript strings.Builder
	audio      []byte
	calls      []FunctionCall
	callIndex  map[string]int
}

func newTurnAssembler(responseID string) *turnAssembler {
	return &turnAssembler{
		responseID: responseID,
		callIndex:  make(map[string]int),
	}
}

// addItem records metadata from response.output_item.added.
func (a *turnAssembler) addItem(item *ConversationItem) {
	if item == nil {
		return
	}
	switch item.Type {
	case ItemTypeMessage:
		a.itemID = item.ID
		a.role = item.Role
	case ItemTypeFunctionCall:
		a.call(item.CallID).Name = item.Name
	}
}

// call returns the accumulating function call for callID, creating it on
// first sight.
func (a *turnAssembler) call(callID string) *FunctionCall {
	if i, ok := a.callIndex[callID]; ok {
		return &a.calls[i]
	}
	a.calls = append(a.calls, FunctionCall{CallID: callID})
	a.callIndex[callID] = len(a.calls) - 1
	return &a.calls[len(a.calls)-1]
}

func (a *turnAssembler) argumentsDelta(callID, name, delta string) {
	c := a.call(callID)
	if c.Name == "" {
		c.Name = name
	}
	c.Arguments += delta
}

// argumentsDone replaces accumulated deltas with the authoritative full
// arguments.
func (a *turnAssembler) argumentsDone(callID, name, arguments string) {
	c := a.call(callID)
	if c.Name == "" {
		c.Name = name
	}
	if arguments != "" {
		c.Arguments = arguments
	}
}

// finish folds the response.done payload into the accumulated deltas.
// The payload is authoritative for status, usage and anything the delta
// stream missed.
func (a *turnAssembler) finish(resp *Response) *Turn {
	t := &Turn{
		ResponseID:    a.responseID,
		ItemID:        a.itemID,
		Role:          a.role,
		Text:          a.text.String(),
		Transcript:    a.transcript.String(),
		Audio:         a.audio,
		FunctionCalls: a.calls,
		Status:        StatusCompleted,
	}
	if t.Role == "" {
		t.Role = RoleAssistant
	}
	if resp == nil {
		return t
	}

	if resp.ID != "" {
		t.ResponseID = resp.ID
	}
	if resp.Status != "" {
		t.Status = resp.Status
	}
	t.Usage = resp.Usage

	for _, item := range resp.Output {
		switch item.Type {
		case ItemTypeMessage:
			if t.ItemID == "" {
				t.ItemID = item.ID
			}
			for _, part := range item.Content {
				if t.Text == "" && part.Type == PartText {
					t.Text = part.Text
				}
				if t.Transcript == "" && part.Type == PartAudio {
					t.Transcript = part.Transcript
				}
				for _, ann := range part.Annotations {
					t.Citations = append(t.Citations, Citation{
						Title:      ann.Title,
						URL:        ann.URL,
						StartIndex: ann.StartIndex,
						EndIndex:   ann.EndIndex,
					})
				}
			}
		case ItemTypeFunctionCall:
			if _, seen := a.callIndex[item.CallID]; !seen {
				t.FunctionCalls = append(t.FunctionCalls, FunctionCall{
					CallID:    item.CallID,
					Name:      item.Name,
					Arguments: item.Arguments,
				})
			}
		}
	}

	if resp.StatusDetails != nil && resp.StatusDetails.Error != nil {
		t.Err = resp.StatusDetails.Error
	} else if t.Status == StatusFailed {
		t.Err = errors.New("realtime: response failed")
	}
	return t
}
