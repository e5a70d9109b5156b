package scoring

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/ziadkadry99/mailmatch/internal/embeddings"
)

// Profile holds the weights combining the individual signals into a final
// score. Weights must sum to 1 so the final score stays in [0,1].
type Profile struct {
	Similarity float64
	Subject    float64
	Length     float64
}

// ThreadProfile weights similarity searches between whole documents, where
// substantive content should be rewarded.
var ThreadProfile = Profile{Similarity: 0.6, Subject: 0.3, Length: 0.1}

// SearchProfile weights free-text searches, where the length of the hit
// carries no signal.
var SearchProfile = Profile{Similarity: 0.6, Subject: 0.4}

// Input is one raw retrieval hit to be scored.
type Input struct {
	ID       string
	GroupKey string
	Subject  string
	Content  string
	// Distance is the cosine distance reported by the vector index,
	// bounded in [0,2].
	Distance float64
}

// Candidate is a scored retrieval hit.
type Candidate struct {
	Input
	Similarity        float64
	SubjectSimilarity float64
	LengthTerm        float64
	FinalScore        float64
	Rationale         string
}

// lengthTermCap is the word count at which the length term saturates.
const lengthTermCap = 100

// Engine combines retrieval distance with subject similarity and a length
// term into one ranking score. It holds no mutable state; the only side
// effect of scoring is the per-candidate subject embedding call.
type Engine struct {
	embedder    embeddings.Embedder
	concurrency int
}

// NewEngine creates a scoring engine. concurrency caps the number of
// simultaneous subject-embedding calls.
func NewEngine(embedder embeddings.Embedder, concurrency int) *Engine {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Engine{embedder: embedder, concurrency: concurrency}
}

// Exclude removes inputs sharing the query's identity-group key. It runs
// before scoring so excluded candidates cost no embedding calls.
func Exclude(inputs []Input, groupKey string) []Input {
	if groupKey == "" {
		return inputs
	}
	kept := make([]Input, 0, len(inputs))
	for _, in := range inputs {
		if in.GroupKey == groupKey {
			continue
		}
		kept = append(kept, in)
	}
	return kept
}

// Score ranks the inputs against the query embedding and subject. The result
// is sorted by final score descending, ties broken by document id ascending.
func (e *Engine) Score(ctx context.Context, queryEmbedding []float32, inputs []Input, profile Profile) ([]Candidate, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	candidates := make([]Candidate, len(inputs))
	sem := make(chan struct{}, e.concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for i, in := range inputs {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(i int, in Input) {
			defer wg.Done()
			defer func() { <-sem }()

			subjectSim, err := e.subjectSimilarity(ctx, queryEmbedding, in.Subject)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("embedding subject %q: %w", in.Subject, err)
				}
				mu.Unlock()
				return
			}

			similarity := clamp01(1 - in.Distance)
			lengthTerm := math.Min(float64(wordCount(in.Content))/lengthTermCap, 1.0)

			candidates[i] = Candidate{
				Input:             in,
				Similarity:        similarity,
				SubjectSimilarity: subjectSim,
				LengthTerm:        lengthTerm,
				FinalScore: profile.Similarity*similarity +
					profile.Subject*subjectSim +
					profile.Length*lengthTerm,
			}
		}(i, in)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}

	SortCandidates(candidates)
	return candidates, nil
}

// SortCandidates orders candidates by final score descending, then by
// document id ascending so equal scores rank deterministically.
func SortCandidates(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].FinalScore != candidates[j].FinalScore {
			return candidates[i].FinalScore > candidates[j].FinalScore
		}
		return candidates[i].ID < candidates[j].ID
	})
}

// subjectSimilarity embeds the candidate subject and compares it with the
// query embedding. Each call costs one embedding request; results are not
// cached across queries.
func (e *Engine) subjectSimilarity(ctx context.Context, queryEmbedding []float32, subject string) (float64, error) {
	if strings.TrimSpace(subject) == "" {
		return 0, nil
	}
	subjectEmbedding, err := e.embedder.EmbedOne(ctx, subject)
	if err != nil {
		return 0, err
	}
	sim, err := Cosine(queryEmbedding, subjectEmbedding)
	if err != nil {
		return 0, err
	}
	return clamp01(sim), nil
}

// Cosine computes the cosine similarity between two vectors.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("cosine similarity dimension mismatch: %d vs %d", len(a), len(b))
	}
	if len(a) == 0 {
		return 0, fmt.Errorf("cosine similarity on empty vectors")
	}
	var dot, na2, nb2 float64
	for i := range a {
		va := float64(a[i])
		vb := float64(b[i])
		dot += va * vb
		na2 += va * va
		nb2 += vb * vb
	}
	if na2 == 0 || nb2 == 0 {
		return 0, fmt.Errorf("cosine similarity with zero-magnitude vector")
	}
	return dot / (math.Sqrt(na2) * math.Sqrt(nb2)), nil
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
