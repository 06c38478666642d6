package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"

	"github.com/sjawhar/interview-coach/internal/audio"
	"github.com/sjawhar/interview-coach/internal/transcript"
)

type DeepgramOptions struct {
	APIKey      string
	Model       string
	Language    string
	SampleRate  int
	IdleTimeout time.Duration
	// RecordDir keeps a WAV copy of the candidate audio per session when set.
	RecordDir string
	SessionID string
}

type audioStream interface {
	io.Writer
	Stop()
}

type dialFunc func(ctx context.Context, opts DeepgramOptions, cb *deepgramCallback) (audioStream, error)

var initDeepgram sync.Once

// DeepgramTransport transcribes candidate audio streamed from the browser.
// Words are buffered until Deepgram marks the utterance final, and the call
// ends after IdleTimeout without speech.
type DeepgramTransport struct {
	opts DeepgramOptions
	dial dialFunc

	mu       sync.Mutex
	stream   audioStream
	events   chan<- Event
	done     chan struct{}
	stopped  bool
	buffer   *UtteranceBuffer
	detector *Detector
	intro    string
	sink     io.Writer
	record   *audio.Recording
}

func NewDeepgramTransport(opts DeepgramOptions) *DeepgramTransport {
	if opts.Model == "" {
		opts.Model = "nova-2"
	}
	if opts.Language == "" {
		opts.Language = "en-US"
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = 16000
	}
	return &DeepgramTransport{
		opts:   opts,
		dial:   dialDeepgram,
		done:   make(chan struct{}),
		buffer: NewUtteranceBuffer(),
	}
}

func (t *DeepgramTransport) Start(ctx context.Context, cfg StartConfig, events chan<- Event) error {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return ErrTransportStopped
	}
	t.events = events
	t.intro = cfg.VariableValues["questions"]
	t.detector = NewDetector(t.opts.IdleTimeout)
	t.detector.OnSessionEnd(func() {
		t.emit(Event{Type: EventCallEnd})
	})
	t.mu.Unlock()

	stream, err := t.dial(ctx, t.opts, &deepgramCallback{t: t})
	if err != nil {
		return err
	}

	var rec *audio.Recording
	if t.opts.RecordDir != "" {
		rec, err = audio.NewRecording(t.opts.RecordDir, t.opts.SessionID, t.opts.SampleRate)
		if err != nil {
			slog.Warn("session: audio recording disabled", "session_id", t.opts.SessionID, "error", err)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		stream.Stop()
		if rec != nil {
			_, _ = rec.Close()
		}
		return ErrTransportStopped
	}
	t.stream = stream
	t.sink = stream
	if rec != nil {
		t.record = rec
		t.sink = rec.Writer(stream)
	}
	return nil
}

func (t *DeepgramTransport) Stop() error {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return nil
	}
	t.stopped = true
	close(t.done)
	stream := t.stream
	detector := t.detector
	rec := t.record
	t.mu.Unlock()

	if detector != nil {
		detector.Stop()
	}
	if stream != nil {
		stream.Stop()
	}
	if rec != nil {
		path, err := rec.Close()
		if err != nil {
			return fmt.Errorf("finish audio recording: %w", err)
		}
		slog.Info("session: audio recorded", "session_id", t.opts.SessionID, "path", path)
	}
	return nil
}

// HandleFrame writes one chunk of linear16 audio to Deepgram.
func (t *DeepgramTransport) HandleFrame(binary bool, data []byte) error {
	if !binary {
		return errors.New("deepgram transport accepts binary audio frames only")
	}

	t.mu.Lock()
	w := t.sink
	stopped := t.stopped
	t.mu.Unlock()

	if stopped {
		return ErrTransportStopped
	}
	if w == nil {
		return ErrTransportNotActive
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write audio: %w", err)
	}
	return nil
}

func (t *DeepgramTransport) emit(ev Event) {
	t.mu.Lock()
	events := t.events
	t.mu.Unlock()

	if events == nil {
		return
	}
	select {
	case events <- ev:
	case <-t.done:
	}
}

func (t *DeepgramTransport) emitUtterance(role transcript.Role, text, kind string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	t.emit(Event{Type: EventMessage, Message: &Message{
		Type:           MessageTypeTranscript,
		TranscriptType: kind,
		Role:           role,
		Transcript:     text,
	}})
}

func (t *DeepgramTransport) flush() {
	t.mu.Lock()
	words := t.buffer.Flush()
	t.mu.Unlock()

	t.emitUtterance(transcript.RoleUser, JoinWords(words), TranscriptFinal)
}

func (t *DeepgramTransport) idle() *Detector {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.detector
}

// deepgramCallback maps Deepgram live transcription callbacks onto session
// events.
type deepgramCallback struct {
	t *DeepgramTransport
}

func (c *deepgramCallback) Open(*api.OpenResponse) error {
	c.t.emit(Event{Type: EventCallStart})

	c.t.mu.Lock()
	intro := c.t.intro
	c.t.mu.Unlock()
	if intro != "" {
		c.t.emitUtterance(transcript.RoleAssistant, "Interview questions:\n"+intro, TranscriptFinal)
	}

	c.t.idle().OnUtteranceEnd()
	return nil
}

func (c *deepgramCallback) Message(mr *api.MessageResponse) error {
	if len(mr.Channel.Alternatives) == 0 {
		return nil
	}

	alt := mr.Channel.Alternatives[0]
	sentence := strings.TrimSpace(alt.Transcript)
	if sentence == "" {
		return nil
	}

	if !mr.IsFinal {
		c.t.emitUtterance(transcript.RoleUser, sentence, TranscriptPartial)
		return nil
	}

	words := make([]Word, 0, len(alt.Words))
	for _, w := range alt.Words {
		words = append(words, Word{PunctuatedWord: w.PunctuatedWord})
	}
	if len(words) == 0 {
		words = append(words, Word{PunctuatedWord: sentence})
	}

	c.t.mu.Lock()
	c.t.buffer.AddWords(words)
	c.t.mu.Unlock()
	c.t.idle().OnSpeech()

	if mr.SpeechFinal {
		c.t.flush()
	}
	return nil
}

func (c *deepgramCallback) Metadata(*api.MetadataResponse) error { return nil }

func (c *deepgramCallback) SpeechStarted(*api.SpeechStartedResponse) error {
	c.t.idle().OnSpeech()
	c.t.emit(Event{Type: EventSpeechStart})
	return nil
}

func (c *deepgramCallback) UtteranceEnd(*api.UtteranceEndResponse) error {
	c.t.flush()
	c.t.emit(Event{Type: EventSpeechEnd})
	c.t.idle().OnUtteranceEnd()
	return nil
}

func (c *deepgramCallback) Close(*api.CloseResponse) error {
	c.t.flush()
	c.t.emit(Event{Type: EventCallEnd})
	return nil
}

func (c *deepgramCallback) Error(er *api.ErrorResponse) error {
	slog.Warn("deepgram error", "code", er.ErrCode, "description", er.Description)
	c.t.emit(Event{Type: EventError, Error: fmt.Sprintf("deepgram %s: %s", er.ErrCode, er.Description)})
	return nil
}

func (c *deepgramCallback) UnhandledEvent([]byte) error { return nil }

func dialDeepgram(ctx context.Context, opts DeepgramOptions, cb *deepgramCallback) (audioStream, error) {
	initDeepgram.Do(func() {
		client.Init(client.InitLib{LogLevel: client.LogLevelDefault})
	})

	cOptions := &interfaces.ClientOptions{EnableKeepAlive: true}
	tOptions := &interfaces.LiveTranscriptionOptions{
		Model:          opts.Model,
		Language:       opts.Language,
		Punctuate:      true,
		SmartFormat:    true,
		InterimResults: true,
		UtteranceEndMs: "1000",
		VadEvents:      true,
		Encoding:       "linear16",
		SampleRate:     opts.SampleRate,
		Channels:       1,
	}

	dgClient, err := client.NewWSUsingCallback(ctx, opts.APIKey, cOptions, tOptions, cb)
	if err != nil {
		return nil, fmt.Errorf("create deepgram client: %w", err)
	}
	if ok := dgClient.Connect(); !ok {
		return nil, errors.New("deepgram connect failed")
	}
	return dgClient, nil
}
