package service

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default_lexicon.yaml
var defaultLexiconYAML []byte

// Lexicon is the word data the analyzer scores against. Entries may be
// single words or multi-word phrases; matching is case-insensitive.
type Lexicon struct {
	Positive   []string `yaml:"positive" json:"positive"`
	Negative   []string `yaml:"negative" json:"negative"`
	Hedges     []string `yaml:"hedges" json:"hedges"` // contrast markers
	Modals     []string `yaml:"modals" json:"modals"`
	Assertives []string `yaml:"assertives" json:"assertives"`
	Stopwords  []string `yaml:"stopwords" json:"stopwords"`
}

// DefaultLexicon returns the embedded lexicon
func DefaultLexicon() *Lexicon {
	lex, err := ParseLexicon(defaultLexiconYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded lexicon: %v", err))
	}
	return lex
}

// LoadLexicon reads a YAML lexicon that replaces the default one
func LoadLexicon(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lexicon: %w", err)
	}
	return ParseLexicon(data)
}

// ParseLexicon decodes a YAML lexicon
func ParseLexicon(data []byte) (*Lexicon, error) {
	var lex Lexicon
	if err := yaml.Unmarshal(data, &lex); err != nil {
		return nil, fmt.Errorf("failed to parse lexicon: %w", err)
	}
	if len(lex.Positive) == 0 || len(lex.Negative) == 0 {
		return nil, fmt.Errorf("lexicon needs positive and negative terms")
	}
	return &lex, nil
}

type termClass int

const (
	termPositive termClass = iota
	termNegative
	termHedge
	termModal
	termAssertive
)

type lexEntry struct {
	tokens []string
	class  termClass
}

// phraseIndex finds the longest lexicon entry starting at a token
type phraseIndex struct {
	byFirst map[string][]lexEntry
}

func newPhraseIndex(lex *Lexicon) *phraseIndex {
	idx := &phraseIndex{byFirst: make(map[string][]lexEntry)}
	add := func(terms []string, class termClass) {
		for _, term := range terms {
			toks := strings.Fields(strings.ToLower(term))
			if len(toks) == 0 {
				continue
			}
			idx.byFirst[toks[0]] = append(idx.byFirst[toks[0]], lexEntry{tokens: toks, class: class})
		}
	}
	// earlier classes win when a term is listed twice with the same length
	add(lex.Hedges, termHedge)
	add(lex.Positive, termPositive)
	add(lex.Negative, termNegative)
	add(lex.Modals, termModal)
	add(lex.Assertives, termAssertive)
	return idx
}

// match returns the longest entry starting at tokens[i] that does not
// cross a sentence break
func (p *phraseIndex) match(tokens []token, i int) (lexEntry, bool) {
	var best lexEntry
	found := false
	for _, e := range p.byFirst[tokens[i].text] {
		if len(e.tokens) <= len(best.tokens) || i+len(e.tokens) > len(tokens) {
			continue
		}
		ok := true
		for j, want := range e.tokens {
			if tokens[i+j].brk || tokens[i+j].text != want {
				ok = false
				break
			}
		}
		if ok {
			best = e
			found = true
		}
	}
	return best, found
}
