package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/parleyhq/parley/pkg/audio"
	"github.com/parleyhq/parley/pkg/catalog"
	"github.com/parleyhq/parley/pkg/chat"
	"github.com/parleyhq/parley/pkg/cli"
	"github.com/parleyhq/parley/pkg/realtime"
)

var (
	talkProfile string
	talkText    string
	talkIn      string
	talkOut     string
	talkAuto    bool
)

// realtimeFormat is the session's wire format: 24 kHz 16-bit mono PCM.
var realtimeFormat = audio.Realtime24k

var talkCmd = &cobra.Command{
	Use:   "talk --realtime <name>",
	Short: "Run a realtime session turn",
	Long: `Open a realtime session described by a stored realtime document,
send one turn of text or audio, and print the reply. Result audio is
written as a WAV file when --out is set.

With --auto the session relies on server-side turn detection: appended
audio is not committed manually and the reply is awaited.

Examples:
  parley talk --realtime assistant --text "what's the weather?"
  parley talk --realtime assistant --in question.wav --out replies/
  parley talk --realtime assistant --in question.wav --auto`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if talkProfile == "" {
			return fmt.Errorf("talk: --realtime <name> is required")
		}
		if talkText == "" && talkIn == "" {
			return fmt.Errorf("talk: one of --text or --in is required")
		}
		ctx := cmd.Context()

		c, cleanup, err := openCatalog(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		doc, err := c.Get(ctx, "realtime/"+talkProfile)
		if err != nil {
			return err
		}
		cred, err := c.ResolveCred(ctx, doc.GetString("cred"))
		if err != nil {
			return err
		}

		plugins, err := buildPlugins(ctx, c)
		if err != nil {
			return err
		}
		tools, err := plugins.Tools(doc.GetStrings("tools")...)
		if err != nil {
			return err
		}

		mgr, err := startSession(ctx, cred.GetString("api_key"), doc, tools)
		if err != nil {
			return err
		}
		defer mgr.Close()

		turn, err := sendTurn(ctx, mgr)
		if err != nil {
			return err
		}

		turn, err = resolveToolCalls(ctx, mgr, tools, turn)
		if err != nil {
			return err
		}

		return printTurn(turn)
	},
}

func startSession(ctx context.Context, apiKey string, doc *catalog.Document, tools []*chat.FuncTool) (*realtime.Manager, error) {
	session := &realtime.SessionConfig{
		Instructions: doc.GetString("instructions"),
		Voice:        doc.GetString("voice"),
	}
	switch td := doc.GetString("turn_detection"); td {
	case "", "none":
		session.TurnDetectionDisabled = true
	default:
		session.TurnDetection = &realtime.TurnDetection{Type: td}
	}
	if doc.GetBool("transcribe") {
		session.InputAudioTranscription = &realtime.TranscriptionConfig{}
	}
	for _, tool := range tools {
		rt, err := convTool(tool)
		if err != nil {
			return nil, err
		}
		session.Tools = append(session.Tools, rt)
	}

	cfg := realtime.ManagerConfig{
		Connect: &realtime.ConnectConfig{
			Model: doc.GetString("model"),
			Voice: doc.GetString("voice"),
		},
		Session:     session,
		AutoRespond: true,
	}
	if ms := doc.GetInt("commit_period_ms"); ms > 0 {
		cfg.CommitPeriod = time.Duration(ms) * time.Millisecond
	}

	mgr := realtime.NewManager(realtime.NewClient(apiKey), cfg)
	if err := mgr.Start(ctx); err != nil {
		return nil, err
	}
	return mgr, nil
}

func sendTurn(ctx context.Context, mgr *realtime.Manager) (*realtime.Turn, error) {
	if talkText != "" {
		return mgr.SendText(ctx, talkText)
	}

	f, err := os.Open(talkIn)
	if err != nil {
		return nil, err
	}
	pcm, format, err := audio.DecodeWAV(f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("talk: read %s: %w", talkIn, err)
	}
	if format.Channels == 2 {
		pcm = audio.DownmixStereo(pcm)
		format.Channels = 1
	}
	if format != realtimeFormat {
		pcm, err = audio.Resample(pcm, format, realtimeFormat)
		if err != nil {
			return nil, err
		}
	}
	if err := mgr.AppendAudio(pcm); err != nil {
		return nil, err
	}

	if talkAuto {
		// Server VAD decides when the turn ends.
		return mgr.WaitTurn(ctx)
	}
	return mgr.CommitTurn(ctx)
}

// resolveToolCalls runs the tool loop: invoke each requested function,
// feed the outputs back, and wait for the follow-up response.
func resolveToolCalls(ctx context.Context, mgr *realtime.Manager, tools []*chat.FuncTool, turn *realtime.Turn) (*realtime.Turn, error) {
	for turn.HasFunctionCalls() {
		outputs := make([]realtime.ToolOutput, 0, len(turn.FunctionCalls))
		for _, call := range turn.FunctionCalls {
			printVerbose("tool call: %s(%s)", call.Name, call.Arguments)
			outputs = append(outputs, realtime.ToolOutput{
				CallID: call.CallID,
				Output: invokeRealtimeTool(ctx, tools, call),
			})
		}
		// One batch submit: all outputs land before the single
		// follow-up response is requested.
		if err := mgr.SubmitToolOutputs(ctx, outputs); err != nil {
			return nil, err
		}
		next, err := mgr.WaitTurn(ctx)
		if err != nil {
			return nil, err
		}
		turn = next
	}
	return turn, nil
}

func invokeRealtimeTool(ctx context.Context, tools []*chat.FuncTool, call realtime.FunctionCall) string {
	var tool *chat.FuncTool
	for _, t := range tools {
		if t.Name == call.Name {
			tool = t
			break
		}
	}
	if tool == nil {
		return fmt.Sprintf(`{"error": %q}`, "unknown tool: "+call.Name)
	}
	result, err := tool.NewFuncCall(call.Arguments).Invoke(ctx)
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, err.Error())
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, err.Error())
	}
	return string(data)
}

// convTool maps a chat tool onto the realtime wire declaration.
func convTool(tool *chat.FuncTool) (realtime.Tool, error) {
	rt := realtime.Tool{
		Type:        "function",
		Name:        tool.Name,
		Description: tool.Description,
	}
	if tool.Argument != nil {
		data, err := json.Marshal(tool.Argument)
		if err != nil {
			return rt, fmt.Errorf("tool %s: %w", tool.Name, err)
		}
		var params map[string]any
		if err := json.Unmarshal(data, &params); err != nil {
			return rt, fmt.Errorf("tool %s: %w", tool.Name, err)
		}
		rt.Parameters = params
	}
	return rt, nil
}

func printTurn(turn *realtime.Turn) error {
	audioFile := ""
	if talkOut != "" && len(turn.Audio) > 0 {
		if err := os.MkdirAll(talkOut, 0755); err != nil {
			return err
		}
		audioFile = filepath.Join(talkOut, fmt.Sprintf("reply-%d.wav", time.Now().Unix()))
		f, err := os.Create(audioFile)
		if err != nil {
			return err
		}
		err = audio.EncodeWAV(f, turn.Audio, realtimeFormat)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
	}

	if structuredOutput() {
		out := map[string]any{
			"status":     turn.Status,
			"text":       turn.Reply(),
			"audio_file": audioFile,
		}
		if turn.Usage != nil {
			out["usage"] = turn.Usage
		}
		return printResult(out)
	}

	styles := cli.DefaultStyles
	lines := strings.Split(turn.Reply(), "\n")
	if audioFile != "" {
		lines = append(lines, styles.Dim.Render(
			fmt.Sprintf("wrote %s (%s of audio)", audioFile, cli.FormatBytesInt(len(turn.Audio)))))
	}
	for _, cite := range turn.Citations {
		lines = append(lines, styles.Dim.Render(fmt.Sprintf("[%s] %s", cite.Title, cite.URL)))
	}
	frame := cli.Frame{Styles: styles, Title: "assistant", Status: turn.Status}
	fmt.Println(frame.Render(72, lines))
	return turn.Err
}

func init() {
	talkCmd.Flags().StringVar(&talkProfile, "realtime", "", "realtime document to open the session with")
	talkCmd.Flags().StringVar(&talkText, "text", "", "send one text turn")
	talkCmd.Flags().StringVar(&talkIn, "in", "", "send one audio turn from a WAV file")
	talkCmd.Flags().StringVar(&talkOut, "out", "", "directory for reply audio WAV files")
	talkCmd.Flags().BoolVar(&talkAuto, "auto", false, "rely on server-side turn detection")

	rootCmd.AddCommand(talkCmd)
}
