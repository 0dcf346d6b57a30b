// Package realtime implements a session manager for the OpenAI Realtime
// API over WebSocket, with a WebRTC alternate transport.
//
// A Session is one live connection. It exposes the raw protocol: typed
// client events in, a server event iterator out. A Manager sits on top
// and turns the event stream into blocking request/response "turns".
//
// # Sessions
//
//	client := realtime.NewClient(apiKey)
//	sess, err := client.ConnectWebSocket(ctx, &realtime.ConnectConfig{
//	    Model: realtime.ModelGPT4oRealtimePreview,
//	})
//	if err != nil {
//	    return err
//	}
//	defer sess.Close()
//
//	for event, err := range sess.Events() {
//	    if err != nil {
//	        return err
//	    }
//	    switch event.Type {
//	    case realtime.EventResponseAudioDelta:
//	        play(event.Audio)
//	    case realtime.EventResponseTextDelta:
//	        fmt.Print(event.Delta)
//	    }
//	}
//
// # Turns
//
// The Manager runs the dispatch loop in a background goroutine and
// re-assembles streamed deltas (text, audio, transcripts, function-call
// arguments, citations, usage) into finished Turn values, so synchronous
// callers can drive the conversation with blocking round-trips:
//
//	mgr := realtime.NewManager(client, realtime.ManagerConfig{
//	    Session: &realtime.SessionConfig{
//	        Instructions:          "You are a helpful assistant.",
//	        TurnDetectionDisabled: true,
//	    },
//	})
//	if err := mgr.Start(ctx); err != nil {
//	    return err
//	}
//	defer mgr.Close()
//
//	turn, err := mgr.SendText(ctx, "Hello!")
//
// In manual mode the caller commits audio explicitly (CommitTurn); with
// server VAD the server segments speech and WaitTurn yields each
// completed turn.
package realtime
