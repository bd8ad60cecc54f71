package store

import (
	"strings"
	"testing"
)

func TestSplitSentences(t *testing.T) {
	got := SplitSentences("First sentence. Second one! Third? No trailing punct")
	want := []string{"First sentence.", "Second one!", "Third?", "No trailing punct"}
	if len(got) != len(want) {
		t.Fatalf("got %d sentences: %q", len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sentence %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSplitSentences_EllipsisAndAbbrev(t *testing.T) {
	got := SplitSentences("Wait... done. v2.0 shipped")
	// "..." splits only after the final dot; "v2.0" has no whitespace after the dot.
	want := []string{"Wait...", "done.", "v2.0 shipped"}
	if len(got) != len(want) {
		t.Fatalf("got %q", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sentence %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestChunkPage_Empty(t *testing.T) {
	if got := ChunkPage("", 400); got != nil {
		t.Errorf("empty text should yield no chunks, got %v", got)
	}
	if got := ChunkPage("  \n\t ", 400); got != nil {
		t.Errorf("whitespace text should yield no chunks, got %v", got)
	}
}

func TestChunkPage_SingleLongSentence(t *testing.T) {
	sent := strings.Repeat("word ", 500) + "end."
	chunks := ChunkPage(sent, 10)
	if len(chunks) != 1 {
		t.Fatalf("a single sentence must never be split, got %d chunks", len(chunks))
	}
}

func TestChunkPage_Accumulates(t *testing.T) {
	// Each sentence is 20 chars; budget is 10*4=40 chars, so two sentences per chunk.
	var b strings.Builder
	for i := 0; i < 6; i++ {
		b.WriteString("aaaaaaaaaaaaaaaaaaa. ")
	}
	chunks := ChunkPage(b.String(), 10)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d: %q", len(chunks), chunks)
	}
	for i, c := range chunks {
		if len(c) == 0 {
			t.Errorf("chunk %d is empty", i)
		}
	}
}

func TestChunkPage_TrailingBuffer(t *testing.T) {
	chunks := ChunkPage("Tiny tail.", 400)
	if len(chunks) != 1 || chunks[0] != "Tiny tail." {
		t.Errorf("trailing buffer should be emitted, got %q", chunks)
	}
}
