package indexer

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
)

func TestSplit_ShortTextSingleChunk(t *testing.T) {
	tests := []struct {
		name string
		text string
		size int
	}{
		{"short", "Short note.", 800},
		{"exact size", strings.Repeat("a", 50), 50},
		{"untrimmed", "  padded text.  ", 800},
		{"empty", "", 10},
		{"multibyte at limit", strings.Repeat("é", 20), 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Split(tt.text, tt.size, 5)
			if len(got) != 1 || got[0] != tt.text {
				t.Errorf("Split() = %q, want [%q]", got, tt.text)
			}
		})
	}
}

func TestSplit_SentenceAccumulation(t *testing.T) {
	text := "One two three. Four five six! Seven eight nine? Ten eleven."
	got := Split(text, 30, 0)
	want := []string{"One two three. Four five six!", "Seven eight nine? Ten eleven."}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Split() = %q, want %q", got, want)
	}
}

func TestSplit_OverlapSeedsNextChunk(t *testing.T) {
	text := "Alpha beta gamma. Delta epsilon zeta. Eta theta iota."
	got := Split(text, 20, 6)
	want := []string{"Alpha beta gamma.", "gamma. Delta epsilon zeta.", "zeta. Eta theta iota."}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Split() = %q, want %q", got, want)
	}
}

func TestSplit_SeededChunkMaximumLength(t *testing.T) {
	const size, overlap = 20, 6
	sentence := "Abcdefghij klmnopqr."
	if runeLen(sentence) != size {
		t.Fatalf("sentence has %d characters, want %d", runeLen(sentence), size)
	}
	got := Split("Alpha beta gamma. "+sentence, size, overlap)
	want := []string{"Alpha beta gamma.", "gamma. " + sentence}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Split() = %q, want %q", got, want)
	}
	if n := runeLen(got[1]); n != overlap+1+size {
		t.Errorf("seeded chunk has %d characters, want %d", n, overlap+1+size)
	}
}

func TestSplit_NoOverlapWhenChunkShorterThanOverlap(t *testing.T) {
	text := "Hi there. Bye now."
	got := Split(text, 10, 50)
	want := []string{"Hi there.", "Bye now."}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Split() = %q, want %q", got, want)
	}
}

func TestSplit_LongSentenceWordFallback(t *testing.T) {
	text := "aaaa bbbb cccc dddd eeee ffff gggg"
	got := Split(text, 10, 3)
	want := []string{"aaaa bbbb", "cccc dddd", "eeee ffff", "gggg"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Split() = %q, want %q", got, want)
	}
	for _, ch := range got {
		if runeLen(ch) > 10 {
			t.Errorf("chunk %q exceeds size", ch)
		}
	}
}

func TestSplit_LongSentenceAfterShortOne(t *testing.T) {
	text := "Tiny. aaaa bbbb cccc dddd eeee"
	got := Split(text, 10, 2)
	want := []string{"Tiny.", "aaaa bbbb", "cccc dddd", "eeee"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Split() = %q, want %q", got, want)
	}
}

func TestSplit_UnsplittableWordKeptWhole(t *testing.T) {
	long := strings.Repeat("x", 25)
	got := Split("ab "+long+" cd", 10, 0)
	want := []string{"ab", long, "cd"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Split() = %q, want %q", got, want)
	}
}

func TestSplit_NoEmptyChunks(t *testing.T) {
	text := "First sentence here.   \n\n  Second sentence here.  \t Third one here. "
	for _, ch := range Split(text, 25, 5) {
		if strings.TrimSpace(ch) == "" {
			t.Fatalf("empty chunk in %q", Split(text, 25, 5))
		}
	}
}

func longDocument(n int) string {
	var b strings.Builder
	for i := 0; b.Len() < n; i++ {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "Sentence %03d talks about retrieval and chunking.", i)
	}
	return b.String()[:n]
}

func TestSplit_ThreeThousandCharacterDocument(t *testing.T) {
	text := longDocument(3000)
	chunks := Split(text, 800, 100)
	if len(chunks) < 4 {
		t.Fatalf("expected at least 4 chunks, got %d", len(chunks))
	}
	for i, ch := range chunks {
		if runeLen(ch) > 900 {
			t.Errorf("chunk %d has %d characters", i, runeLen(ch))
		}
	}
	for i := 1; i < len(chunks); i++ {
		seed := strings.TrimLeft(lastRunes(chunks[i-1], 100), " ")
		if !strings.HasPrefix(chunks[i], seed) {
			t.Errorf("chunk %d does not start with the tail of chunk %d", i, i-1)
		}
	}
}

func TestSplit_CoversEverySentence(t *testing.T) {
	text := longDocument(2500)
	chunks := Split(text, 300, 40)
	joined := strings.Join(chunks, "\n")
	for _, s := range splitSentences(text) {
		if !strings.Contains(joined, strings.TrimSpace(s)) {
			t.Errorf("sentence %q missing from chunks", s)
		}
	}
}

func TestSplit_Deterministic(t *testing.T) {
	text := longDocument(2000)
	a := Split(text, 200, 30)
	b := Split(text, 200, 30)
	if !reflect.DeepEqual(a, b) {
		t.Error("Split is not deterministic")
	}
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"One. Two! Three? Four", []string{"One.", "Two!", "Three?", "Four"}},
		{"No break.here", []string{"No break.here"}},
		{"Trailing.  ", []string{"Trailing.", ""}},
		{"Line one.\n\nLine two.", []string{"Line one.", "Line two."}},
		{"Wait... what?", []string{"Wait...", "what?"}},
	}
	for _, tt := range tests {
		if got := splitSentences(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitSentences(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLastRunes(t *testing.T) {
	if got := lastRunes("héllo", 3); got != "llo" {
		t.Errorf("lastRunes = %q", got)
	}
	if got := lastRunes("日本語テキスト", 4); got != "テキスト" {
		t.Errorf("lastRunes = %q", got)
	}
	if got := lastRunes("ab", 5); got != "ab" {
		t.Errorf("lastRunes = %q", got)
	}
}
