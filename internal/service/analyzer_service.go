package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"driftwatch/internal/model"
)

// ErrEmptyResponse is returned when there is no text to analyze
var ErrEmptyResponse = errors.New("empty response")

// AnalysisError wraps a failure to analyze a model response
type AnalysisError struct {
	Err error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis failed: %v", e.Err)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// Analyzer turns free-form text into structured scores
type Analyzer interface {
	Analyze(raw string) (*model.Analysis, error)
}

// AnalyzerService scores responses with lexicon heuristics. It holds no
// mutable state and is safe for concurrent use.
type AnalyzerService struct {
	index     *phraseIndex
	stopwords map[string]bool
	topN      int
}

// NewAnalyzerService creates an analyzer over the given lexicon
func NewAnalyzerService(lex *Lexicon, topN int) *AnalyzerService {
	if lex == nil {
		lex = DefaultLexicon()
	}
	if topN <= 0 {
		topN = 5
	}
	stop := make(map[string]bool, len(lex.Stopwords))
	for _, w := range lex.Stopwords {
		stop[strings.ToLower(w)] = true
	}
	return &AnalyzerService{
		index:     newPhraseIndex(lex),
		stopwords: stop,
		topN:      topN,
	}
}

type token struct {
	text string
	brk  bool // sentence boundary
}

// tally holds lexicon hit counts for a response
type tally struct {
	positive   int
	negative   int
	hedges     int
	modals     int
	assertives int
	words      int
	segments   []segment
}

type segment struct {
	positive int
	negative int
}

// Analyze scores raw model output
func (s *AnalyzerService) Analyze(raw string) (*model.Analysis, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, &AnalysisError{Err: ErrEmptyResponse}
	}

	tokens := tokenize(raw)
	t := s.count(tokens)

	sentiment := sentimentScore(t.positive, t.negative)
	stance := stanceFor(sentiment)
	if t.conflicted() {
		stance = model.StanceConflicted
	}

	return &model.Analysis{
		Stance:         stance,
		SentimentScore: sentiment,
		CertaintyScore: certaintyScore(t),
		Keywords:       s.keywords(tokens),
	}, nil
}

func (s *AnalyzerService) count(tokens []token) tally {
	t := tally{segments: []segment{{}}}
	cur := func() *segment { return &t.segments[len(t.segments)-1] }
	split := func() {
		if *cur() != (segment{}) {
			t.segments = append(t.segments, segment{})
		}
	}

	for _, tok := range tokens {
		if !tok.brk {
			t.words++
		}
	}

	for i := 0; i < len(tokens); {
		if tokens[i].brk {
			split()
			i++
			continue
		}
		entry, ok := s.index.match(tokens, i)
		if !ok {
			i++
			continue
		}
		switch entry.class {
		case termPositive:
			t.positive++
			cur().positive++
		case termNegative:
			t.negative++
			cur().negative++
		case termHedge:
			t.hedges++
			split()
		case termModal:
			t.modals++
		case termAssertive:
			t.assertives++
		}
		i += len(entry.tokens)
	}
	return t
}

// conflicted reports a contrast marker separating segments of opposite
// net polarity
func (t tally) conflicted() bool {
	if t.hedges == 0 {
		return false
	}
	var pos, neg bool
	for _, seg := range t.segments {
		switch {
		case seg.positive > seg.negative:
			pos = true
		case seg.negative > seg.positive:
			neg = true
		}
	}
	return pos && neg
}

func sentimentScore(pos, neg int) float64 {
	total := pos + neg
	if total == 0 {
		return 0
	}
	return clamp(float64(pos-neg)/float64(total), -1, 1)
}

// stanceFor maps sentiment onto the five point scale. ±0.5 fall in the
// milder band, ±0.15 fall outside neutral.
func stanceFor(sentiment float64) model.Stance {
	switch {
	case sentiment > 0.5:
		return model.StanceStronglySupportive
	case sentiment >= 0.15:
		return model.StanceSupportive
	case sentiment > -0.15:
		return model.StanceNeutral
	case sentiment >= -0.5:
		return model.StanceOpposed
	default:
		return model.StanceStronglyOpposed
	}
}

func certaintyScore(t tally) float64 {
	if t.words == 0 {
		return 0.5
	}
	density := func(n int) float64 {
		return min(1, 10*float64(n)/float64(t.words))
	}
	c := 0.5 + 0.5*density(t.assertives) - 0.5*density(t.modals+t.hedges)
	return clamp(c, 0, 1)
}

func (s *AnalyzerService) keywords(tokens []token) []string {
	type kw struct {
		word  string
		count int
		first int
	}
	seen := make(map[string]*kw)
	var order []*kw
	for i, tok := range tokens {
		if tok.brk || utf8.RuneCountInString(tok.text) < 3 || s.stopwords[tok.text] || isNumeric(tok.text) {
			continue
		}
		if k, ok := seen[tok.text]; ok {
			k.count++
			continue
		}
		k := &kw{word: tok.text, count: 1, first: i}
		seen[tok.text] = k
		order = append(order, k)
	}

	sort.SliceStable(order, func(i, j int) bool {
		if order[i].count != order[j].count {
			return order[i].count > order[j].count
		}
		return order[i].first < order[j].first
	})

	n := min(s.topN, len(order))
	out := make([]string, 0, n)
	for _, k := range order[:n] {
		out = append(out, k.word)
	}
	return out
}

// tokenize lower-cases text into word tokens and sentence-break tokens
func tokenize(raw string) []token {
	var tokens []token
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			w := strings.Trim(b.String(), "'")
			if w != "" {
				tokens = append(tokens, token{text: w})
			}
			b.Reset()
		}
	}
	for _, r := range strings.ToLower(raw) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' || r == '’':
			if r == '’' {
				r = '\''
			}
			b.WriteRune(r)
		case r == '.' || r == '!' || r == '?' || r == ';' || r == ':' || r == '\n':
			flush()
			if n := len(tokens); n > 0 && !tokens[n-1].brk {
				tokens = append(tokens, token{brk: true})
			}
		default:
			flush()
		}
	}
	flush()
	return tokens
}

func isNumeric(w string) bool {
	for _, r := range w {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}
