package session

import "strings"

// Word is one recognized word from a speech-to-text result.
type Word struct {
	PunctuatedWord string
}

// UtteranceBuffer accumulates words from multiple is_final Deepgram messages
// until speech_final signals the utterance is complete.
type UtteranceBuffer struct {
	words []Word
}

// NewUtteranceBuffer creates an empty utterance buffer.
func NewUtteranceBuffer() *UtteranceBuffer {
	return &UtteranceBuffer{}
}

// AddWords appends words from an is_final message to the buffer.
func (b *UtteranceBuffer) AddWords(words []Word) {
	b.words = append(b.words, words...)
}

// Flush returns all accumulated words and resets the buffer.
// Returns nil if the buffer is empty.
func (b *UtteranceBuffer) Flush() []Word {
	if len(b.words) == 0 {
		return nil
	}
	out := b.words
	b.words = nil
	return out
}

// Len returns the number of words currently in the buffer.
func (b *UtteranceBuffer) Len() int {
	return len(b.words)
}

// JoinWords renders words as a single utterance.
func JoinWords(words []Word) string {
	parts := make([]string, 0, len(words))
	for _, w := range words {
		if s := strings.TrimSpace(w.PunctuatedWord); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}
