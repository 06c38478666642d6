package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

const (
	defaultSampleRate = 16000
	pcmChannels       = 1
	pcmBitDepth       = 16
)

var ErrClosed = errors.New("recording closed")

// Recording captures the linear16 audio of one interview session and
// converts it to a WAV file on Close.
type Recording struct {
	dir        string
	sessionID  string
	sampleRate int

	mu      sync.Mutex
	rawPath string
	rawFile *os.File
	closed  bool
}

func NewRecording(dir, sessionID string, sampleRate int) (*Recording, error) {
	if dir == "" {
		dir = filepath.Join("data", "audio")
	}
	if sampleRate <= 0 {
		sampleRate = defaultSampleRate
	}
	sessionID = filepath.Base(sessionID)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audio directory: %w", err)
	}

	rawPath := filepath.Join(dir, sessionID+".pcm")
	rawFile, err := os.OpenFile(rawPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open raw pcm file: %w", err)
	}

	return &Recording{
		dir:        dir,
		sessionID:  sessionID,
		sampleRate: sampleRate,
		rawPath:    rawPath,
		rawFile:    rawFile,
	}, nil
}

// Writer returns a writer that sends audio to dst and records what dst
// accepted.
func (r *Recording) Writer(dst io.Writer) io.Writer {
	return &teeWriter{recording: r, dst: dst}
}

func (r *Recording) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, ErrClosed
	}
	n, err := r.rawFile.Write(p)
	if err != nil {
		return n, fmt.Errorf("write raw pcm bytes: %w", err)
	}
	return n, nil
}

// Close finishes the recording and returns the WAV path. Later calls return
// an empty path.
func (r *Recording) Close() (string, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return "", nil
	}
	r.closed = true
	rawFile := r.rawFile
	rawPath := r.rawPath
	r.mu.Unlock()

	if err := rawFile.Close(); err != nil {
		return "", fmt.Errorf("close raw pcm file: %w", err)
	}

	wavPath := filepath.Join(r.dir, r.sessionID+".wav")
	if err := pcmToWav(rawPath, wavPath, r.sampleRate); err != nil {
		return "", fmt.Errorf("encode wav: %w", err)
	}

	_ = os.Remove(rawPath)
	return wavPath, nil
}

func pcmToWav(rawPath, wavPath string, sampleRate int) error {
	pcmData, err := os.ReadFile(rawPath)
	if err != nil {
		return fmt.Errorf("read raw pcm data: %w", err)
	}

	out, err := os.OpenFile(wavPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open wav output: %w", err)
	}
	defer out.Close()

	header, err := wavHeader(len(pcmData), sampleRate, pcmChannels, pcmBitDepth)
	if err != nil {
		return fmt.Errorf("build wav header: %w", err)
	}

	if _, err := out.Write(header); err != nil {
		return fmt.Errorf("write wav header: %w", err)
	}
	if _, err := out.Write(pcmData); err != nil {
		return fmt.Errorf("write wav payload: %w", err)
	}

	return nil
}

func wavHeader(dataSize, sampleRate, channels, bitDepth int) ([]byte, error) {
	byteRate := sampleRate * channels * bitDepth / 8
	blockAlign := channels * bitDepth / 8

	buf := bytes.NewBuffer(make([]byte, 0, 44))
	fields := []any{
		[4]byte{'R', 'I', 'F', 'F'},
		uint32(36 + dataSize),
		[4]byte{'W', 'A', 'V', 'E'},
		[4]byte{'f', 'm', 't', ' '},
		uint32(16),
		uint16(1),
		uint16(channels),
		uint32(sampleRate),
		uint32(byteRate),
		uint16(blockAlign),
		uint16(bitDepth),
		[4]byte{'d', 'a', 't', 'a'},
		uint32(dataSize),
	}
	for _, f := range fields {
		if err := binary.Write(buf, binary.LittleEndian, f); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

type teeWriter struct {
	recording *Recording
	dst       io.Writer
}

func (w *teeWriter) Write(p []byte) (int, error) {
	n, err := w.dst.Write(p)
	if err != nil {
		return n, err
	}

	if _, err := w.recording.Write(p[:n]); err != nil {
		return n, err
	}

	return n, nil
}
