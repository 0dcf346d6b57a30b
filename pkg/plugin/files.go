package plugin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/parleyhq/parley/pkg/chat"
	"github.com/parleyhq/parley/pkg/storage"
)

// Default cap on file_read content, in bytes.
const defaultMaxReadBytes = 512 << 10

// Files exposes sandboxed file tools over a [storage.FileStore].
// Paths are relative to the store root; escapes are rejected by the
// store itself.
type Files struct {
	store   storage.FileStore
	maxRead int64
}

var _ Plugin = (*Files)(nil)

// NewFiles creates the files plugin over store.
func NewFiles(store storage.FileStore) *Files {
	return &Files{store: store, maxRead: defaultMaxReadBytes}
}

// Name implements Plugin.
func (p *Files) Name() string { return "files" }

// Configure implements Plugin. Options: max_read_bytes.
func (p *Files) Configure(options map[string]any) error {
	var cfg struct {
		MaxReadBytes int64 `json:"max_read_bytes"`
	}
	if err := decodeOptions(options, &cfg); err != nil {
		return fmt.Errorf("plugin: files options: %w", err)
	}
	if cfg.MaxReadBytes > 0 {
		p.maxRead = cfg.MaxReadBytes
	}
	return nil
}

type filePathArg struct {
	Path string `json:"path"`
}

type fileWriteArg struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

type fileListArg struct {
	Prefix string `json:"prefix,omitempty"`
}

type fileEntry struct {
	Path    string `json:"path"`
	Size    int64  `json:"size"`
	ModTime string `json:"mod_time,omitempty"`
	IsDir   bool   `json:"is_dir,omitempty"`
}

func toFileEntry(fi storage.FileInfo) fileEntry {
	e := fileEntry{Path: fi.Path, Size: fi.Size, IsDir: fi.IsDir}
	if !fi.ModTime.IsZero() {
		e.ModTime = fi.ModTime.Format(time.RFC3339)
	}
	return e
}

// Tools implements Plugin.
func (p *Files) Tools() []*chat.FuncTool {
	return []*chat.FuncTool{
		chat.MustNewFuncTool[filePathArg]("file_read",
			"Read a text file from the workdir. Content is capped; a truncated flag marks cut-off reads.",
			chat.InvokeFunc[filePathArg](p.read)),
		chat.MustNewFuncTool[fileWriteArg]("file_write",
			"Create or overwrite a file in the workdir with the given content.",
			chat.InvokeFunc[fileWriteArg](p.write)),
		chat.MustNewFuncTool[fileWriteArg]("file_append",
			"Append content to a file in the workdir, creating it if missing.",
			chat.InvokeFunc[fileWriteArg](p.append)),
		chat.MustNewFuncTool[filePathArg]("file_delete",
			"Delete a file from the workdir.",
			chat.InvokeFunc[filePathArg](p.delete)),
		chat.MustNewFuncTool[fileListArg]("file_list",
			"List files in the workdir, optionally under a path prefix.",
			chat.InvokeFunc[fileListArg](p.list)),
		chat.MustNewFuncTool[filePathArg]("file_info",
			"Return size and modification time for a file in the workdir.",
			chat.InvokeFunc[filePathArg](p.info)),
		chat.MustNewFuncTool[filePathArg]("make_dir",
			"Create a directory (and parents) in the workdir.",
			chat.InvokeFunc[filePathArg](p.makeDir)),
	}
}

func (p *Files) read(ctx context.Context, _ *chat.FuncCall, arg filePathArg) (any, error) {
	rc, err := p.store.Read(ctx, arg.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("file %s does not exist", arg.Path)
		}
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, p.maxRead+1))
	if err != nil {
		return nil, err
	}
	truncated := int64(len(data)) > p.maxRead
	if truncated {
		data = data[:p.maxRead]
	}
	return map[string]any{
		"path":      arg.Path,
		"content":   string(data),
		"truncated": truncated,
	}, nil
}

func (p *Files) write(ctx context.Context, _ *chat.FuncCall, arg fileWriteArg) (any, error) {
	wc, err := p.store.Write(ctx, arg.Path)
	if err != nil {
		return nil, err
	}
	if _, err := io.WriteString(wc, arg.Content); err != nil {
		wc.Close()
		return nil, err
	}
	if err := wc.Close(); err != nil {
		return nil, err
	}
	return map[string]any{"path": arg.Path, "bytes": len(arg.Content)}, nil
}

// append reads the current content and rewrites the file. FileStore has
// no append primitive because object backends have none either.
func (p *Files) append(ctx context.Context, call *chat.FuncCall, arg fileWriteArg) (any, error) {
	var existing []byte
	rc, err := p.store.Read(ctx, arg.Path)
	switch {
	case err == nil:
		existing, err = io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}
	return p.write(ctx, call, fileWriteArg{
		Path:    arg.Path,
		Content: string(existing) + arg.Content,
	})
}

func (p *Files) delete(ctx context.Context, _ *chat.FuncCall, arg filePathArg) (any, error) {
	if err := p.store.Delete(ctx, arg.Path); err != nil {
		return nil, err
	}
	return map[string]any{"path": arg.Path, "deleted": true}, nil
}

func (p *Files) list(ctx context.Context, _ *chat.FuncCall, arg fileListArg) (any, error) {
	infos, err := p.store.List(ctx, arg.Prefix)
	if err != nil {
		return nil, err
	}
	entries := make([]fileEntry, len(infos))
	for i, fi := range infos {
		entries[i] = toFileEntry(fi)
	}
	return map[string]any{"files": entries, "count": len(entries)}, nil
}

func (p *Files) info(ctx context.Context, _ *chat.FuncCall, arg filePathArg) (any, error) {
	fi, err := p.store.Stat(ctx, arg.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("file %s does not exist", arg.Path)
		}
		return nil, err
	}
	return toFileEntry(fi), nil
}

func (p *Files) makeDir(_ context.Context, _ *chat.FuncCall, arg filePathArg) (any, error) {
	dm, ok := p.store.(interface{ MkdirAll(path string) error })
	if !ok {
		return nil, errors.New("storage backend does not support directories")
	}
	if err := dm.MkdirAll(arg.Path); err != nil {
		return nil, err
	}
	return map[string]any{"path": arg.Path, "created": true}, nil
}
