package voice

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestStream_Next(t *testing.T) {
	s := newStream(4)
	s.put([]byte{1, 2})
	s.put([]byte{3, 4})
	s.closeWrite()

	frame, err := s.Next()
	if err != nil {
		t.Fatalf("Next error: %v", err)
	}
	if !bytes.Equal(frame, []byte{1, 2}) {
		t.Errorf("frame = %v; want [1 2]", frame)
	}
	frame, err = s.Next()
	if err != nil {
		t.Fatalf("Next error: %v", err)
	}
	if !bytes.Equal(frame, []byte{3, 4}) {
		t.Errorf("frame = %v; want [3 4]", frame)
	}
	if _, err := s.Next(); err != io.EOF {
		t.Errorf("Next after close = %v; want io.EOF", err)
	}
}

func TestStream_Read(t *testing.T) {
	s := newStream(4)
	s.put([]byte("hello "))
	s.put([]byte("world"))
	s.closeWrite()

	data, err := io.ReadAll(s)
	if err != nil {
		t.Fatalf("ReadAll error: %v", err)
	}
	if string(data) != "hello world" {
		t.Errorf("ReadAll = %q; want %q", data, "hello world")
	}
}

func TestStream_Fail(t *testing.T) {
	boom := errors.New("boom")

	s := newStream(4)
	s.put([]byte{1})
	s.fail(boom)

	frame, err := s.Next()
	if err != nil {
		t.Fatalf("Next error: %v", err)
	}
	if !bytes.Equal(frame, []byte{1}) {
		t.Errorf("frame = %v; want [1]", frame)
	}
	if _, err := s.Next(); !errors.Is(err, boom) {
		t.Errorf("Next after fail = %v; want %v", err, boom)
	}
}

func TestStream_Close(t *testing.T) {
	s := newStream(4)
	s.Close()

	if _, err := s.Next(); !errors.Is(err, io.ErrClosedPipe) {
		t.Errorf("Next after Close = %v; want io.ErrClosedPipe", err)
	}
	if err := s.put([]byte{1}); !errors.Is(err, io.ErrClosedPipe) {
		t.Errorf("put after Close = %v; want io.ErrClosedPipe", err)
	}
}

func TestCollect(t *testing.T) {
	s := newStream(4)
	s.put([]byte{1, 2})
	s.put([]byte{3})
	s.closeWrite()

	audio, err := Collect(s)
	if err != nil {
		t.Fatalf("Collect error: %v", err)
	}
	if !bytes.Equal(audio, []byte{1, 2, 3}) {
		t.Errorf("Collect = %v; want [1 2 3]", audio)
	}
}

func TestCollect_Error(t *testing.T) {
	boom := errors.New("boom")

	s := newStream(4)
	s.put([]byte{1, 2})
	s.fail(boom)

	audio, err := Collect(s)
	if !errors.Is(err, boom) {
		t.Errorf("Collect error = %v; want %v", err, boom)
	}
	if !bytes.Equal(audio, []byte{1, 2}) {
		t.Errorf("Collect partial audio = %v; want [1 2]", audio)
	}
}

func TestStreamFromReader(t *testing.T) {
	want := bytes.Repeat([]byte{0xAB}, 20000)

	s := streamFromReader(io.NopCloser(bytes.NewReader(want)))
	audio, err := Collect(s)
	if err != nil {
		t.Fatalf("Collect error: %v", err)
	}
	if !bytes.Equal(audio, want) {
		t.Errorf("audio length = %d; want %d", len(audio), len(want))
	}
}

// failReader yields some data and then a read error.
type failReader struct {
	data []byte
	err  error
	pos  int
}

func (r *failReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, r.err
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}

func (r *failReader) Close() error { return nil }

func TestStreamFromReader_Error(t *testing.T) {
	boom := errors.New("boom")

	s := streamFromReader(&failReader{data: []byte{1, 2, 3}, err: boom})
	audio, err := Collect(s)
	if !errors.Is(err, boom) {
		t.Errorf("Collect error = %v; want %v", err, boom)
	}
	if !bytes.Equal(audio, []byte{1, 2, 3}) {
		t.Errorf("Collect partial audio = %v; want [1 2 3]", audio)
	}
}
