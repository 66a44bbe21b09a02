package embedding

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

const (
	DefaultHashDimensions = 384

	hashBias = 0.5
)

// HashModel is an offline bag-of-words model: each lower-cased alphanumeric
// token is hashed into one of Dim buckets with a hash-derived sign. It needs
// no weights, so it is used for tests and air-gapped deployments.
type HashModel struct {
	Dim int
}

func NewHashModel(dim int) *HashModel {
	if dim <= 0 {
		dim = DefaultHashDimensions
	}
	return &HashModel{Dim: dim}
}

func (h *HashModel) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, h.Dim)
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		tokens = []string{"<empty>"}
	}
	for _, tok := range tokens {
		f := fnv.New32a()
		_, _ = f.Write([]byte(tok))
		sum := f.Sum32()
		bucket := int(sum % uint32(h.Dim))
		if sum&(1<<31) != 0 {
			vec[bucket]--
		} else {
			vec[bucket]++
		}
	}
	// Bucket counts are integers, so the bias keeps vec[0] non-zero even when
	// every token cancels out.
	vec[0] += hashBias
	return vec, nil
}

// Tokenize splits text into lower-cased runs of letters and digits.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
