package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/pion/webrtc/v3"

	"github.com/parleyhq/parley/pkg/audio"
)

// WebRTCSession is the WebRTC transport. Events travel over the
// "oai-events" data channel; audio travels as RTP media. The remote
// track is exposed for depacketizing, the local track for sending
// microphone audio.
type WebRTCSession struct {
	eventSender

	pc        *webrtc.PeerConnection
	dc        *webrtc.DataChannel
	logger    *slog.Logger
	closeCh   chan struct{}
	eventsCh  chan eventOrError
	closeOnce sync.Once

	mu          sync.Mutex
	sessionID   string
	remoteTrack *webrtc.TrackRemote
	localTrack  *webrtc.TrackLocalStaticSample
}

// ephemeralToken is the response of POST /v1/realtime/sessions.
type ephemeralToken struct {
	ID           string `json:"id"`
	Model        string `json:"model"`
	ExpiresAt    int64  `json:"expires_at"`
	ClientSecret struct {
		Value     string `json:"value"`
		ExpiresAt int64  `json:"expires_at"`
	} `json:"client_secret"`
}

func (c *Client) connectWebRTC(ctx context.Context, config *ConnectConfig) (*WebRTCSession, error) {
	if config == nil {
		config = &ConnectConfig{}
	}
	model := config.Model
	if model == "" {
		model = ModelGPT4oRealtimePreview
	}

	token, err := c.mintEphemeralToken(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("realtime: mint token: %w", err)
	}

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("realtime: peer connection: %w", err)
	}

	s := &WebRTCSession{
		pc:       pc,
		logger:   c.config.logger,
		closeCh:  make(chan struct{}),
		eventsCh: make(chan eventOrError, 100),
	}
	s.eventSender = eventSender{write: s.writeEvent}

	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		pc.Close()
		return nil, fmt.Errorf("realtime: audio transceiver: %w", err)
	}

	dc, err := pc.CreateDataChannel("oai-events", nil)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("realtime: data channel: %w", err)
	}
	s.dc = dc

	dc.OnOpen(func() {
		s.logger.Debug("realtime: data channel open")
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		s.deliver(msg.Data)
	})
	dc.OnClose(func() {
		s.logger.Debug("realtime: data channel closed")
		s.Close()
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		s.logger.Debug("realtime: remote track", "kind", track.Kind().String(), "codec", track.Codec().MimeType)
		if track.Kind() == webrtc.RTPCodecTypeAudio {
			s.mu.Lock()
			s.remoteTrack = track
			s.mu.Unlock()
		}
	})

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("realtime: create offer: %w", err)
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		pc.Close()
		return nil, fmt.Errorf("realtime: local description: %w", err)
	}
	<-webrtc.GatheringCompletePromise(pc)

	answer, err := c.exchangeSDP(ctx, token, model, pc.LocalDescription().SDP)
	if err != nil {
		pc.Close()
		return nil, err
	}
	if err := pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  answer,
	}); err != nil {
		pc.Close()
		return nil, fmt.Errorf("realtime: remote description: %w", err)
	}

	return s, nil
}

// mintEphemeralToken creates a short-lived client secret for the SDP
// exchange.
func (c *Client) mintEphemeralToken(ctx context.Context, config *ConnectConfig) (string, error) {
	body := *config
	if body.Model == "" {
		body.Model = ModelGPT4oRealtimePreview
	}
	if body.Voice == "" {
		body.Voice = VoiceAlloy
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.httpURL+"/sessions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.config.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if c.config.organization != "" {
		req.Header.Set("OpenAI-Organization", c.config.organization)
	}
	if c.config.project != "" {
		req.Header.Set("OpenAI-Project", c.config.project)
	}

	resp, err := c.config.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return "", &Error{
			Code:       "session_creation_failed",
			Message:    string(raw),
			HTTPStatus: resp.StatusCode,
		}
	}

	var token ephemeralToken
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", err
	}
	return token.ClientSecret.Value, nil
}

// exchangeSDP posts the local offer and returns the remote answer.
func (c *Client) exchangeSDP(ctx context.Context, token, model, sdp string) (string, error) {
	url := fmt.Sprintf("%s?model=%s", c.config.httpURL, model)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader([]byte(sdp)))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/sdp")

	resp, err := c.config.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return "", &Error{
			Code:       "sdp_exchange_failed",
			Message:    string(raw),
			HTTPStatus: resp.StatusCode,
		}
	}

	answer, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(answer), nil
}

// deliver parses one data channel message and feeds the event channel.
func (s *WebRTCSession) deliver(message []byte) {
	if s.logger.Enabled(context.Background(), slog.LevelDebug) {
		s.logger.Debug("realtime: recv", "len", len(message), "event", truncateForLog(message, 1000))
	}

	event, err := parseServerEvent(message)
	if err != nil {
		select {
		case <-s.closeCh:
		case s.eventsCh <- eventOrError{err: err}:
		}
		return
	}

	if event.Type == EventSessionCreated && event.Session != nil {
		s.mu.Lock()
		s.sessionID = event.Session.ID
		s.mu.Unlock()
	}

	select {
	case <-s.closeCh:
	case s.eventsCh <- eventOrError{event: event}:
	}
}

// writeEvent sends one client event over the data channel.
func (s *WebRTCSession) writeEvent(event any) error {
	select {
	case <-s.closeCh:
		return ErrSessionClosed
	default:
	}
	if s.dc == nil || s.dc.ReadyState() != webrtc.DataChannelStateOpen {
		return fmt.Errorf("realtime: data channel not open")
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if s.logger.Enabled(context.Background(), slog.LevelDebug) {
		s.logger.Debug("realtime: send", "event", truncateForLog(payload, 500))
	}
	return s.dc.Send(payload)
}

// Events yields server events until the session closes.
func (s *WebRTCSession) Events() iter.Seq2[*ServerEvent, error] {
	return func(yield func(*ServerEvent, error) bool) {
		for {
			select {
			case <-s.closeCh:
				return
			case item := <-s.eventsCh:
				if !yield(item.event, item.err) {
					return
				}
				if item.err != nil {
					return
				}
			}
		}
	}
}

// SessionID returns the ID observed in session.created.
func (s *WebRTCSession) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// Close tears down the data channel and peer connection. Idempotent.
func (s *WebRTCSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closeCh)
		if s.dc != nil {
			s.dc.Close()
		}
		if s.pc != nil {
			err = s.pc.Close()
		}
	})
	return err
}

// AudioTrack returns the remote audio track, or nil before the first
// media packet arrives. Feed it to an RTP depacketizer to recover the
// audio stream.
func (s *WebRTCSession) AudioTrack() *webrtc.TrackRemote {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remoteTrack
}

// StreamAudio reads RTP from the remote track and yields payloads in
// timestamp order. It blocks until the remote track appears, then runs
// until the context is cancelled or the track ends.
func (s *WebRTCSession) StreamAudio(ctx context.Context) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		var track *webrtc.TrackRemote
		for track == nil {
			select {
			case <-ctx.Done():
				yield(nil, ctx.Err())
				return
			case <-s.closeCh:
				return
			case <-time.After(20 * time.Millisecond):
			}
			track = s.AudioTrack()
		}

		d := audio.NewDepacketizer(64)
		for {
			select {
			case <-ctx.Done():
				yield(nil, ctx.Err())
				return
			case <-s.closeCh:
				return
			default:
			}
			pkt, _, err := track.ReadRTP()
			if err != nil {
				if err != io.EOF {
					yield(nil, err)
				}
				return
			}
			for _, payload := range d.Push(pkt) {
				if !yield(payload, nil) {
					return
				}
			}
		}
	}
}

// AddAudioTrack attaches a local track for sending audio. Only one local
// track is supported.
func (s *WebRTCSession) AddAudioTrack(track *webrtc.TrackLocalStaticSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.localTrack != nil {
		return fmt.Errorf("realtime: local audio track already added")
	}
	if _, err := s.pc.AddTrack(track); err != nil {
		return err
	}
	s.localTrack = track
	return nil
}

// DataChannel exposes the event data channel.
func (s *WebRTCSession) DataChannel() *webrtc.DataChannel {
	return s.dc
}

// PeerConnection exposes the underlying peer connection.
func (s *WebRTCSession) PeerConnection() *webrtc.PeerConnection {
	return s.pc
}

var _ Session = (*WebRTCSession)(nil)
