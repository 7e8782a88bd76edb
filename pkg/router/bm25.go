package router

import (
	"math"
	"strings"
	"unicode"

	"github.com/zen-systems/intentgate/pkg/catalog"
)

// bm25Index scores messages against agent keyword sets.
//
// Each agent's keyword list is treated as a one-term-per-token document, with
// the enabled agent count as the corpus size. Document frequency for a term
// is the number of agents whose keyword set contains it, so idf reflects how
// discriminating a keyword is within this closed, small domain rather than in
// any external corpus. The idf variant is the non-negative
// ln(1 + (N - df + 0.5)/(df + 0.5)) form.
type bm25Index struct {
	k1 float64
	b  float64

	docs   []bm25Doc
	df     map[string]int
	avgLen float64
}

type bm25Doc struct {
	agent string
	tf    map[string]int
	len   int
}

func newBM25Index(agents []*catalog.Agent, k1, b float64) *bm25Index {
	idx := &bm25Index{
		k1: k1,
		b:  b,
		df: make(map[string]int),
	}

	totalLen := 0
	for _, agent := range agents {
		keywords := agent.NormalizedKeywords()
		doc := bm25Doc{agent: agent.Name, tf: make(map[string]int, len(keywords))}
		for _, kw := range keywords {
			for _, term := range tokenize(kw) {
				doc.tf[term]++
				doc.len++
			}
		}
		for term := range doc.tf {
			idx.df[term]++
		}
		totalLen += doc.len
		idx.docs = append(idx.docs, doc)
	}

	if len(idx.docs) > 0 {
		idx.avgLen = float64(totalLen) / float64(len(idx.docs))
	}
	return idx
}

// Score computes raw BM25 scores for the message against every agent.
// Scores are non-negative; an agent with no matching terms scores zero.
func (idx *bm25Index) Score(message string) map[string]float64 {
	terms := tokenize(message)
	scores := make(map[string]float64, len(idx.docs))
	n := float64(len(idx.docs))

	for _, doc := range idx.docs {
		score := 0.0
		for _, term := range terms {
			tf := float64(doc.tf[term])
			if tf == 0 {
				continue
			}
			df := float64(idx.df[term])
			idf := math.Log(1 + (n-df+0.5)/(df+0.5))
			norm := 1 - idx.b + idx.b*float64(doc.len)/idx.avgLen
			score += idf * tf * (idx.k1 + 1) / (tf + idx.k1*norm)
		}
		scores[doc.agent] = score
	}
	return scores
}

// normalizeScores rescales a score map to [0,1] by dividing by the maximum.
// An all-zero map is returned unchanged.
func normalizeScores(scores map[string]float64) map[string]float64 {
	max := 0.0
	for _, s := range scores {
		if s > max {
			max = s
		}
	}
	if max == 0 {
		return scores
	}
	normalized := make(map[string]float64, len(scores))
	for agent, s := range scores {
		normalized[agent] = s / max
	}
	return normalized
}

// tokenize lowercases and splits on non-alphanumeric boundaries.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
