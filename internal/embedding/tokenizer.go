package embedding

import "hash/fnv"

// BERT special token ids and the start of the range used for word ids.
const (
	tokenCLS      = 101
	tokenSEP      = 102
	firstWordID   = 1000
	wordIDBuckets = 29000
)

// Tokenizer produces fixed-length model inputs (input_ids, attention_mask, token_type_ids).
type Tokenizer interface {
	Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64)
}

// SimpleTokenizer maps each word to a hashed vocabulary id. Words are split the
// same way as for HashEmbedder, so punctuation never becomes part of a token.
type SimpleTokenizer struct{}

// Tokenize returns [CLS] words... [SEP] padded with zeros to maxTokens. Words
// that do not fit are dropped; [SEP] always follows the last kept word.
func (t *SimpleTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	if maxTokens < 2 {
		maxTokens = 256
	}
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)

	words := terms(text)
	if room := maxTokens - 2; len(words) > room {
		words = words[:room]
	}
	inputIDs[0] = tokenCLS
	for i, w := range words {
		inputIDs[i+1] = wordID(w)
	}
	inputIDs[len(words)+1] = tokenSEP
	for i := 0; i < len(words)+2; i++ {
		attentionMask[i] = 1
	}
	return inputIDs, attentionMask, tokenTypeIDs
}

// wordID hashes w into the word id range, clear of the special tokens.
func wordID(w string) int64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(w))
	return firstWordID + int64(h.Sum32()%wordIDBuckets)
}
