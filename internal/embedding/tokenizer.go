package embedding

import (
	"hash/fnv"

	"github.com/hyperjump/codelens/pkg/utils"
)

// BERT special token IDs and the hashed vocabulary range.
const (
	clsTokenID     = 101
	sepTokenID     = 102
	vocabOffset    = 1000
	vocabSize      = 30000
	defaultMaxToks = 256
)

// Encoding is the fixed-length model input for one text.
type Encoding struct {
	InputIDs      []int64
	AttentionMask []int64
	TokenTypeIDs  []int64
	// Pieces is the number of word pieces that fit between [CLS] and [SEP].
	Pieces    int
	Truncated bool
}

// Tokenizer encodes text for BERT-style models.
type Tokenizer interface {
	Encode(text string, maxTokens int) Encoding
}

// CodeTokenizer splits source text into lower-case word pieces. Identifiers are
// broken on camelCase, digits and underscores, so "parseHTTPConfig_v2" yields
// parse, http, config, v, 2. Piece IDs are hashed into the vocabulary range.
type CodeTokenizer struct{}

// Encode returns [CLS] pieces... [SEP] padded to maxTokens. Pieces that do not
// fit are dropped and the encoding is marked truncated.
func (t *CodeTokenizer) Encode(text string, maxTokens int) Encoding {
	if maxTokens < 2 {
		maxTokens = defaultMaxToks
	}
	enc := Encoding{
		InputIDs:      make([]int64, maxTokens),
		AttentionMask: make([]int64, maxTokens),
		TokenTypeIDs:  make([]int64, maxTokens),
	}
	enc.InputIDs[0] = clsTokenID
	enc.AttentionMask[0] = 1

	pieces := t.Split(text)
	room := maxTokens - 2
	if len(pieces) > room {
		pieces = pieces[:room]
		enc.Truncated = true
	}
	for i, piece := range pieces {
		enc.InputIDs[i+1] = TokenID(piece)
		enc.AttentionMask[i+1] = 1
	}
	enc.Pieces = len(pieces)
	enc.InputIDs[enc.Pieces+1] = sepTokenID
	enc.AttentionMask[enc.Pieces+1] = 1
	return enc
}

// Split returns the word pieces of text in order.
func (t *CodeTokenizer) Split(text string) []string {
	return utils.SplitIdentifiers(text)
}

// TokenID maps a word piece into the hashed vocabulary.
func TokenID(piece string) int64 {
	return int64(pieceHash(piece)%vocabSize) + vocabOffset
}

func pieceHash(piece string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(piece))
	return h.Sum32()
}
