// Package splitter segments document text into overlapping token-bounded
// chunks, preferring paragraph and sentence boundaries over hard cuts.
package splitter

import (
	"regexp"
	"strings"
)

const (
	defaultChunkSize    = 300 // tokens
	defaultChunkOverlap = 20  // tokens
)

var (
	paragraphRegex = regexp.MustCompile(`\n\s*\n`)
	sentenceRegex  = regexp.MustCompile(`[^.!?;]+[.!?;]?`)
)

// Splitter produces ordered chunks of at most chunkSize tokens, with
// consecutive chunks sharing roughly chunkOverlap tokens of boundary context.
type Splitter struct {
	tok          Tokenizer
	chunkSize    int
	chunkOverlap int
}

// New creates a Splitter. Out-of-range sizes fall back to the reference
// 300/20 token policy.
func New(tok Tokenizer, chunkSize, chunkOverlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = defaultChunkOverlap
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 2
	}
	return &Splitter{tok: tok, chunkSize: chunkSize, chunkOverlap: chunkOverlap}
}

// Split segments text into chunks. Empty or whitespace-only input yields nil.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	units := s.sentenceUnits(text)
	if len(units) == 0 {
		return nil
	}

	var chunks []string
	var current []unit
	currentTokens := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		parts := make([]string, len(current))
		for i, u := range current {
			parts[i] = u.text
		}
		chunks = append(chunks, strings.Join(parts, " "))

		// Seed the next chunk with trailing units up to the overlap budget so
		// retrieval across the seam keeps boundary context.
		var carry []unit
		carryTokens := 0
		for i := len(current) - 1; i > 0 && carryTokens < s.chunkOverlap; i-- {
			carry = append([]unit{current[i]}, carry...)
			carryTokens += current[i].tokens
		}
		current = carry
		currentTokens = carryTokens
	}

	for _, u := range units {
		if currentTokens+u.tokens > s.chunkSize && len(current) > 0 {
			flush()
			// Overlap alone may still not leave room for the next unit.
			for currentTokens+u.tokens > s.chunkSize && len(current) > 0 {
				currentTokens -= current[0].tokens
				current = current[1:]
			}
		}
		current = append(current, u)
		currentTokens += u.tokens
	}
	if len(current) > 0 {
		parts := make([]string, len(current))
		for i, u := range current {
			parts[i] = u.text
		}
		chunks = append(chunks, strings.Join(parts, " "))
	}

	return chunks
}

type unit struct {
	text   string
	tokens int
}

// sentenceUnits breaks text at paragraph boundaries, then sentence-ending
// punctuation. Any single unit still longer than chunkSize is hard-cut by
// token windows so no chunk can exceed the bound.
func (s *Splitter) sentenceUnits(text string) []unit {
	var units []unit
	for _, para := range paragraphRegex.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		for _, sent := range sentenceRegex.FindAllString(para, -1) {
			sent = strings.TrimSpace(sent)
			if sent == "" {
				continue
			}
			tokens := s.tok.Encode(sent)
			if len(tokens) <= s.chunkSize {
				units = append(units, unit{text: sent, tokens: len(tokens)})
				continue
			}
			units = append(units, s.hardCut(tokens)...)
		}
	}
	return units
}

// hardCut windows an oversized token sequence into chunkSize pieces with
// chunkOverlap carried between windows.
func (s *Splitter) hardCut(tokens []int) []unit {
	step := s.chunkSize - s.chunkOverlap
	var units []unit
	for start := 0; start < len(tokens); start += step {
		end := start + s.chunkSize
		if end > len(tokens) {
			end = len(tokens)
		}
		window := tokens[start:end]
		text := strings.TrimSpace(s.tok.Decode(window))
		if text != "" {
			units = append(units, unit{text: text, tokens: len(window)})
		}
		if end == len(tokens) {
			break
		}
	}
	return units
}
