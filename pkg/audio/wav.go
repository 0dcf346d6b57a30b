package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrNotWAV reports input that is not a RIFF/WAVE stream.
var ErrNotWAV = errors.New("audio: not a wav stream")

// EncodeWAV writes pcm as a PCM16LE WAV file.
func EncodeWAV(w io.Writer, pcm []byte, f Format) error {
	if f.Rate <= 0 || f.Channels <= 0 {
		return fmt.Errorf("audio: bad wav format %+v", f)
	}
	var hdr [44]byte
	copy(hdr[0:], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:], uint32(36+len(pcm)))
	copy(hdr[8:], "WAVE")
	copy(hdr[12:], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:], 16)
	binary.LittleEndian.PutUint16(hdr[20:], 1) // PCM
	binary.LittleEndian.PutUint16(hdr[22:], uint16(f.Channels))
	binary.LittleEndian.PutUint32(hdr[24:], uint32(f.Rate))
	binary.LittleEndian.PutUint32(hdr[28:], uint32(f.Rate*f.FrameBytes()))
	binary.LittleEndian.PutUint16(hdr[32:], uint16(f.FrameBytes()))
	binary.LittleEndian.PutUint16(hdr[34:], 16) // bits per sample
	copy(hdr[36:], "data")
	binary.LittleEndian.PutUint32(hdr[40:], uint32(len(pcm)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(pcm)
	return err
}

// DecodeWAV reads a PCM16LE WAV stream, returning the raw samples and their
// format. Chunks other than fmt and data are skipped.
func DecodeWAV(r io.Reader) ([]byte, Format, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return nil, Format{}, fmt.Errorf("%w: %v", ErrNotWAV, err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return nil, Format{}, ErrNotWAV
	}

	var f Format
	var data []byte
	sawFmt, sawData := false, false
	for {
		var ch [8]byte
		if _, err := io.ReadFull(r, ch[:]); err != nil {
			if err == io.EOF && sawFmt && sawData {
				break
			}
			return nil, Format{}, fmt.Errorf("audio: wav chunk header: %w", err)
		}
		id := string(ch[0:4])
		size := binary.LittleEndian.Uint32(ch[4:8])
		switch id {
		case "fmt ":
			body := make([]byte, size)
			if _, err := io.ReadFull(r, body); err != nil {
				return nil, Format{}, fmt.Errorf("audio: wav fmt chunk: %w", err)
			}
			if len(body) < 16 {
				return nil, Format{}, ErrNotWAV
			}
			codec := binary.LittleEndian.Uint16(body[0:2])
			bits := binary.LittleEndian.Uint16(body[14:16])
			if codec != 1 || bits != 16 {
				return nil, Format{}, fmt.Errorf("audio: wav codec %d/%d-bit unsupported", codec, bits)
			}
			f.Channels = int(binary.LittleEndian.Uint16(body[2:4]))
			f.Rate = int(binary.LittleEndian.Uint32(body[4:8]))
			sawFmt = true
		case "data":
			data = make([]byte, size)
			if _, err := io.ReadFull(r, data); err != nil {
				return nil, Format{}, fmt.Errorf("audio: wav data chunk: %w", err)
			}
			sawData = true
		default:
			if _, err := io.CopyN(io.Discard, r, int64(size)); err != nil {
				return nil, Format{}, fmt.Errorf("audio: wav skip %q: %w", id, err)
			}
		}
		// Chunks are word aligned.
		if size%2 == 1 {
			io.CopyN(io.Discard, r, 1)
		}
		if sawFmt && sawData {
			break
		}
	}
	if !sawFmt || !sawData {
		return nil, Format{}, ErrNotWAV
	}
	return data, f, nil
}
