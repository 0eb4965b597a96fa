// Package indexer provides document chunking and the document store.
package indexer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Chunker splits text into bounded, overlapping chunks at sentence and word boundaries.
// Sizes are counted in characters (Unicode code points).
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap (in characters).
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// Split splits text using the chunker's size and overlap.
func (c *Chunker) Split(text string) []string {
	return Split(text, c.chunkSize, c.chunkOverlap)
}

// Split breaks text into ordered chunks of at most chunkSize characters.
//
// Text that fits is returned unchanged as a single chunk. Otherwise sentences
// (ending in '.', '!' or '?' followed by whitespace) are accumulated greedily.
// When a sentence does not fit, the current chunk is emitted and the next one is
// seeded with the last chunkOverlap characters of it. A sentence longer than
// chunkSize on its own is split on whitespace without overlap.
func Split(text string, chunkSize, chunkOverlap int) []string {
	if chunkSize <= 0 || runeLen(text) <= chunkSize {
		return []string{text}
	}

	var chunks []string
	current := ""
	for _, sentence := range splitSentences(text) {
		if runeLen(current)+runeLen(sentence)+1 <= chunkSize {
			current = joinSpace(current, sentence)
			continue
		}
		if current != "" {
			chunks = append(chunks, strings.TrimSpace(current))
			switch {
			case runeLen(sentence) > chunkSize:
				chunks, current = splitWords(chunks, sentence, chunkSize)
			case chunkOverlap > 0 && runeLen(current) > chunkOverlap:
				current = lastRunes(current, chunkOverlap) + " " + sentence
			default:
				current = sentence
			}
			continue
		}
		if runeLen(sentence) > chunkSize {
			chunks, current = splitWords(chunks, sentence, chunkSize)
		} else {
			current = sentence
		}
	}
	if current != "" {
		chunks = append(chunks, strings.TrimSpace(current))
	}

	out := chunks[:0]
	for _, ch := range chunks {
		if strings.TrimSpace(ch) != "" {
			out = append(out, ch)
		}
	}
	return out
}

// splitWords accumulates the words of an oversized sentence into chunks of at most
// chunkSize characters. Full chunks are appended; the unfinished tail is returned
// so following sentences can continue filling it.
func splitWords(chunks []string, sentence string, chunkSize int) ([]string, string) {
	current := ""
	for _, word := range strings.Fields(sentence) {
		if runeLen(current)+runeLen(word)+1 <= chunkSize {
			current = joinSpace(current, word)
			continue
		}
		if current != "" {
			chunks = append(chunks, strings.TrimSpace(current))
		}
		current = word
	}
	return chunks, current
}

// splitSentences splits on whitespace runs that directly follow '.', '!' or '?'.
// The punctuation stays with the preceding sentence.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	var prev rune
	for i := 0; i < len(text); {
		r, w := utf8.DecodeRuneInString(text[i:])
		if unicode.IsSpace(r) && isTerminator(prev) {
			end := i
			for end < len(text) {
				r2, w2 := utf8.DecodeRuneInString(text[end:])
				if !unicode.IsSpace(r2) {
					break
				}
				end += w2
			}
			sentences = append(sentences, text[start:i])
			start = end
			i = end
			prev = r
			continue
		}
		prev = r
		i += w
	}
	return append(sentences, text[start:])
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func joinSpace(current, next string) string {
	if current == "" {
		return next
	}
	return current + " " + next
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// lastRunes returns the last n characters of s.
func lastRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := len(s); i > 0; {
		_, w := utf8.DecodeLastRuneInString(s[:i])
		i -= w
		count++
		if count == n {
			return s[i:]
		}
	}
	return s
}
