package text

import (
	"errors"
	"fmt"
)

// DefaultSeparators is the split hierarchy used when none is configured:
// paragraph break, line break, word break, then single characters.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

var ErrInvalidSize = errors.New("invalid chunk size")

// Chunk is one window of a source text. Offset and Overlap are counted in
// runes: Content starts at rune Offset of the source, and its first Overlap
// runes repeat the tail of the previous chunk.
type Chunk struct {
	Content string
	Offset  int
	Overlap int
}

// Body returns the part of the chunk that is not shared with its predecessor.
func (c Chunk) Body() string {
	return string([]rune(c.Content)[c.Overlap:])
}

// Splitter breaks text into windows of at most MaxSize runes using a
// prioritized separator list. Separators stay attached to the piece they
// terminate, so the bodies of consecutive chunks concatenate back to the
// input.
type Splitter struct {
	MaxSize    int
	Overlap    int
	Separators []string
}

func NewSplitter(maxSize, overlap int) (*Splitter, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("%w: max size must be positive, got %d", ErrInvalidSize, maxSize)
	}
	if overlap < 0 || overlap >= maxSize {
		return nil, fmt.Errorf("%w: overlap %d must be in [0, %d)", ErrInvalidSize, overlap, maxSize)
	}
	return &Splitter{MaxSize: maxSize, Overlap: overlap, Separators: DefaultSeparators}, nil
}

type span struct{ start, end int }

func (s span) len() int { return s.end - s.start }

// Split is deterministic: the same text and settings always yield the same
// chunks. Text that fits in MaxSize comes back as a single chunk.
func (s *Splitter) Split(text string) []Chunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= s.MaxSize {
		return []Chunk{{Content: text}}
	}

	seps := s.Separators
	if len(seps) == 0 {
		seps = DefaultSeparators
	}

	// Every chunk after the first carries an overlap prefix, so atomic units
	// must fit in the smaller of the two body budgets.
	unitLimit := s.MaxSize - s.Overlap
	units := splitSpan(runes, span{0, len(runes)}, seps, unitLimit)

	var chunks []Chunk
	prevStart := 0
	emit := func(bodyStart, bodyEnd int) {
		ov := 0
		if len(chunks) > 0 {
			ov = min(s.Overlap, bodyStart-prevStart)
		}
		start := bodyStart - ov
		chunks = append(chunks, Chunk{
			Content: string(runes[start:bodyEnd]),
			Offset:  start,
			Overlap: ov,
		})
		prevStart = start
	}

	bodyStart, bodyEnd := 0, 0
	budget := s.MaxSize
	for _, u := range units {
		if bodyEnd > bodyStart && bodyEnd-bodyStart+u.len() > budget {
			emit(bodyStart, bodyEnd)
			bodyStart = bodyEnd
			budget = s.MaxSize - s.Overlap
		}
		bodyEnd = u.end
	}
	if bodyEnd > bodyStart {
		emit(bodyStart, bodyEnd)
	}
	return chunks
}

// splitSpan cuts sp into contiguous units no longer than limit, trying each
// separator in order and falling back to fixed-width character cuts.
func splitSpan(runes []rune, sp span, seps []string, limit int) []span {
	if sp.len() <= limit {
		return []span{sp}
	}
	if len(seps) == 0 || seps[0] == "" {
		var out []span
		for i := sp.start; i < sp.end; i += limit {
			out = append(out, span{i, min(i+limit, sp.end)})
		}
		return out
	}

	sep := []rune(seps[0])
	pieces := cutAfter(runes, sp, sep)
	if len(pieces) == 1 {
		return splitSpan(runes, sp, seps[1:], limit)
	}

	var out []span
	for _, p := range pieces {
		if p.len() <= limit {
			out = append(out, p)
			continue
		}
		out = append(out, splitSpan(runes, p, seps[1:], limit)...)
	}
	return out
}

// cutAfter splits sp after every occurrence of sep, keeping sep at the end
// of the piece it closes.
func cutAfter(runes []rune, sp span, sep []rune) []span {
	var out []span
	start := sp.start
	for i := sp.start; i+len(sep) <= sp.end; {
		if hasPrefix(runes[i:sp.end], sep) {
			i += len(sep)
			out = append(out, span{start, i})
			start = i
			continue
		}
		i++
	}
	if start < sp.end {
		out = append(out, span{start, sp.end})
	}
	return out
}

func hasPrefix(r, prefix []rune) bool {
	if len(r) < len(prefix) {
		return false
	}
	for i := range prefix {
		if r[i] != prefix[i] {
			return false
		}
	}
	return true
}
