package plugin

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/parleyhq/parley/pkg/chat"
)

const (
	defaultCodeTimeout   = 30 * time.Second
	defaultMaxCodeOutput = 64 << 10
)

// Code exposes code_execute: it runs a snippet through an allowlisted
// interpreter inside the workdir, with a wall-clock timeout and capped
// stdout/stderr. Anything not on the allowlist is refused.
type Code struct {
	workdir      string
	timeout      time.Duration
	maxOutput    int64
	interpreters map[string][]string
}

var _ Plugin = (*Code)(nil)

// NewCode creates the code plugin running in workdir. Default
// interpreters: python (python3 -c) and sh (sh -c).
func NewCode(workdir string) *Code {
	return &Code{
		workdir:   workdir,
		timeout:   defaultCodeTimeout,
		maxOutput: defaultMaxCodeOutput,
		interpreters: map[string][]string{
			"python": {"python3", "-c"},
			"sh":     {"sh", "-c"},
		},
	}
}

// Name implements Plugin.
func (p *Code) Name() string { return "code" }

// Configure implements Plugin. Options: timeout_seconds,
// max_output_bytes, interpreters (language -> argv, snippet appended).
func (p *Code) Configure(options map[string]any) error {
	var cfg struct {
		TimeoutSeconds int                 `json:"timeout_seconds"`
		MaxOutputBytes int64               `json:"max_output_bytes"`
		Interpreters   map[string][]string `json:"interpreters"`
	}
	if err := decodeOptions(options, &cfg); err != nil {
		return fmt.Errorf("plugin: code options: %w", err)
	}
	if cfg.TimeoutSeconds > 0 {
		p.timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	if cfg.MaxOutputBytes > 0 {
		p.maxOutput = cfg.MaxOutputBytes
	}
	if len(cfg.Interpreters) > 0 {
		for lang, argv := range cfg.Interpreters {
			if len(argv) == 0 {
				return fmt.Errorf("plugin: code interpreter %s: empty command", lang)
			}
		}
		p.interpreters = cfg.Interpreters
	}
	return nil
}

type codeExecuteArg struct {
	Language string `json:"language"`
	Code     string `json:"code"`
}

// Tools implements Plugin.
func (p *Code) Tools() []*chat.FuncTool {
	return []*chat.FuncTool{
		chat.MustNewFuncTool[codeExecuteArg]("code_execute",
			"Run a code snippet with an allowlisted interpreter (for example python or sh) and return its output.",
			chat.InvokeFunc[codeExecuteArg](p.execute)),
	}
}

func (p *Code) languages() []string {
	langs := make([]string, 0, len(p.interpreters))
	for lang := range p.interpreters {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

func (p *Code) execute(ctx context.Context, _ *chat.FuncCall, arg codeExecuteArg) (any, error) {
	argv, ok := p.interpreters[arg.Language]
	if !ok {
		return nil, fmt.Errorf("language %q is not allowed (have: %s)",
			arg.Language, strings.Join(p.languages(), ", "))
	}
	if strings.TrimSpace(arg.Code) == "" {
		return nil, errors.New("code is required")
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	args := append(append([]string(nil), argv[1:]...), arg.Code)
	cmd := exec.CommandContext(ctx, argv[0], args...)
	cmd.Dir = p.workdir

	stdout := &cappedBuffer{limit: p.maxOutput}
	stderr := &cappedBuffer{limit: p.maxOutput}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	result := map[string]any{
		"stdout":      stdout.String(),
		"stderr":      stderr.String(),
		"exit_code":   0,
		"duration_ms": elapsed.Milliseconds(),
	}
	if stdout.truncated || stderr.truncated {
		result["output_truncated"] = true
	}
	if ctx.Err() == context.DeadlineExceeded {
		result["timed_out"] = true
		result["exit_code"] = -1
		return result, nil
	}
	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			// Runtime failure goes back to the model as output, not as
			// a tool error, so it can read stderr and retry.
			result["exit_code"] = ee.ExitCode()
			return result, nil
		}
		return nil, fmt.Errorf("run %s: %w", argv[0], err)
	}
	return result, nil
}

// cappedBuffer keeps the first limit bytes and drops the rest.
type cappedBuffer struct {
	limit     int64
	buf       strings.Builder
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	n := len(p)
	room := b.limit - int64(b.buf.Len())
	if room <= 0 {
		b.truncated = true
		return n, nil
	}
	if int64(n) > room {
		p = p[:room]
		b.truncated = true
	}
	b.buf.Write(p)
	return n, nil
}

func (b *cappedBuffer) String() string {
	if b.truncated {
		return b.buf.String() + "\n[output truncated]"
	}
	return b.buf.String()
}
