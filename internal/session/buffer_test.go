package session

import "testing"

func wordList(ws ...string) []Word {
	out := make([]Word, 0, len(ws))
	for _, w := range ws {
		out = append(out, Word{PunctuatedWord: w})
	}
	return out
}

func TestUtteranceBufferAccumulatesAcrossFinals(t *testing.T) {
	buf := NewUtteranceBuffer()
	buf.AddWords(wordList("I", "have"))
	buf.AddWords(wordList("five", "years."))
	if buf.Len() != 4 {
		t.Fatalf("expected 4 buffered words, got %d", buf.Len())
	}

	flushed := buf.Flush()
	if got := JoinWords(flushed); got != "I have five years." {
		t.Fatalf("expected one utterance, got %q", got)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected buffer empty after flush, got %d", buf.Len())
	}
}

func TestUtteranceBufferFlushEmpty(t *testing.T) {
	buf := NewUtteranceBuffer()
	if flushed := buf.Flush(); flushed != nil {
		t.Fatalf("expected nil from empty buffer flush, got %v", flushed)
	}
}

func TestJoinWords(t *testing.T) {
	if got := JoinWords(wordList("I", " ", "build", "APIs.")); got != "I build APIs." {
		t.Fatalf("expected joined utterance, got %q", got)
	}
	if got := JoinWords(nil); got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
}
