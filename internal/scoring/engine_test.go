package scoring

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"
)

// fixedEmbedder returns a canned vector per text, so subject similarity is
// fully controlled by the test.
type fixedEmbedder struct {
	vectors map[string][]float32
	calls   int
}

func (f *fixedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.EmbedOne(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fixedEmbedder) EmbedOne(_ context.Context, text string) ([]float32, error) {
	f.calls++
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 1, 0}, nil
}

func (f *fixedEmbedder) Dimensions() int { return 3 }
func (f *fixedEmbedder) Name() string    { return "fixed" }

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, fmt.Errorf("embedding service unreachable")
}
func (failingEmbedder) EmbedOne(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("embedding service unreachable")
}
func (failingEmbedder) Dimensions() int { return 3 }
func (failingEmbedder) Name() string    { return "failing" }

func TestExcludeOwnGroup(t *testing.T) {
	inputs := []Input{
		{ID: "a", GroupKey: "T1"},
		{ID: "b", GroupKey: "T2"},
		{ID: "c", GroupKey: "T1"},
	}

	kept := Exclude(inputs, "T1")
	if len(kept) != 1 || kept[0].ID != "b" {
		t.Fatalf("expected only b to survive, got %+v", kept)
	}

	// Empty group key keeps everything.
	if got := Exclude(inputs, ""); len(got) != 3 {
		t.Errorf("expected no exclusion for empty key, got %d", len(got))
	}
}

func TestScoreRankingScenario(t *testing.T) {
	// Query "delayed shipment status"; same-group candidate excluded;
	// the distance-0.1 document must rank first.
	query := []float32{1, 0, 0}
	embedder := &fixedEmbedder{vectors: map[string][]float32{
		"Shipment update": {1, 0, 0},
		"Invoice":         {1, 0, 0},
	}}
	engine := NewEngine(embedder, 2)

	inputs := Exclude([]Input{
		{ID: "same", GroupKey: "T1", Subject: "Re: delayed shipment", Distance: 0.0},
		{ID: "near", GroupKey: "T2", Subject: "Shipment update", Content: strings.Repeat("word ", 100), Distance: 0.1},
		{ID: "far", GroupKey: "T3", Subject: "Invoice", Content: strings.Repeat("word ", 100), Distance: 0.4},
	}, "T1")

	candidates, err := engine.Score(context.Background(), query, inputs, ThreadProfile)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}
	if candidates[0].ID != "near" {
		t.Errorf("expected near first, got %s", candidates[0].ID)
	}
	if math.Abs(candidates[0].Similarity-0.9) > 1e-9 {
		t.Errorf("expected similarity 0.9, got %v", candidates[0].Similarity)
	}
	if math.Abs(candidates[1].Similarity-0.6) > 1e-9 {
		t.Errorf("expected similarity 0.6, got %v", candidates[1].Similarity)
	}
}

func TestScoreBounds(t *testing.T) {
	query := []float32{1, 0, 0}
	embedder := &fixedEmbedder{vectors: map[string][]float32{
		// Opposite direction: raw cosine is -1, must clamp to 0.
		"opposite": {-1, 0, 0},
	}}
	engine := NewEngine(embedder, 1)

	inputs := []Input{
		{ID: "a", Subject: "opposite", Content: strings.Repeat("x ", 500), Distance: 0},
		{ID: "b", Subject: "opposite", Content: "", Distance: 2},
	}

	candidates, err := engine.Score(context.Background(), query, inputs, ThreadProfile)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	for _, c := range candidates {
		if c.FinalScore < 0 || c.FinalScore > 1 {
			t.Errorf("final score %v for %s outside [0,1]", c.FinalScore, c.ID)
		}
		if c.SubjectSimilarity != 0 {
			t.Errorf("expected clamped subject similarity 0, got %v", c.SubjectSimilarity)
		}
	}
	// Very long content saturates the length term at 1.
	if candidates[0].LengthTerm != 1.0 {
		t.Errorf("expected saturated length term, got %v", candidates[0].LengthTerm)
	}
}

func TestScoreDeterministicOrder(t *testing.T) {
	query := []float32{1, 0, 0}
	embedder := &fixedEmbedder{vectors: map[string][]float32{}}
	engine := NewEngine(embedder, 4)

	// Identical signals: the tie must break on id ascending.
	inputs := []Input{
		{ID: "zeta", Subject: "s", Distance: 0.3},
		{ID: "alpha", Subject: "s", Distance: 0.3},
		{ID: "mid", Subject: "s", Distance: 0.3},
	}

	for run := 0; run < 5; run++ {
		candidates, err := engine.Score(context.Background(), query, inputs, SearchProfile)
		if err != nil {
			t.Fatalf("Score: %v", err)
		}
		var ids []string
		for _, c := range candidates {
			ids = append(ids, c.ID)
		}
		got := strings.Join(ids, ",")
		if got != "alpha,mid,zeta" {
			t.Fatalf("run %d: expected alpha,mid,zeta, got %s", run, got)
		}
	}
}

func TestSearchProfileIgnoresLength(t *testing.T) {
	query := []float32{1, 0, 0}
	embedder := &fixedEmbedder{vectors: map[string][]float32{"s": {1, 0, 0}}}
	engine := NewEngine(embedder, 1)

	long := Input{ID: "long", Subject: "s", Content: strings.Repeat("w ", 500), Distance: 0.2}
	short := Input{ID: "short", Subject: "s", Content: "w", Distance: 0.2}

	candidates, err := engine.Score(context.Background(), query, []Input{long, short}, SearchProfile)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if candidates[0].FinalScore != candidates[1].FinalScore {
		t.Errorf("search profile must not weight length: %v vs %v",
			candidates[0].FinalScore, candidates[1].FinalScore)
	}
	want := 0.6*0.8 + 0.4*1.0
	if math.Abs(candidates[0].FinalScore-want) > 1e-9 {
		t.Errorf("expected final score %v, got %v", want, candidates[0].FinalScore)
	}
}

func TestScoreEmbeddingFailureAborts(t *testing.T) {
	engine := NewEngine(failingEmbedder{}, 2)
	_, err := engine.Score(context.Background(), []float32{1, 0, 0},
		[]Input{{ID: "a", Subject: "s", Distance: 0.1}}, ThreadProfile)
	if err == nil {
		t.Fatal("expected error when subject embedding fails")
	}
}

func TestEmptySubjectSkipsEmbeddingCall(t *testing.T) {
	embedder := &fixedEmbedder{vectors: map[string][]float32{}}
	engine := NewEngine(embedder, 1)

	_, err := engine.Score(context.Background(), []float32{1, 0, 0},
		[]Input{{ID: "a", Subject: "   ", Distance: 0.1}}, ThreadProfile)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if embedder.calls != 0 {
		t.Errorf("expected no embedding calls for blank subject, got %d", embedder.calls)
	}
}

func TestCosine(t *testing.T) {
	sim, err := Cosine([]float32{1, 0}, []float32{1, 0})
	if err != nil {
		t.Fatalf("Cosine: %v", err)
	}
	if math.Abs(sim-1.0) > 1e-9 {
		t.Errorf("expected 1.0, got %v", sim)
	}

	if _, err := Cosine([]float32{1}, []float32{1, 2}); err == nil {
		t.Error("expected dimension mismatch error")
	}
	if _, err := Cosine([]float32{0, 0}, []float32{1, 0}); err == nil {
		t.Error("expected zero-magnitude error")
	}
}
