package grading

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/example/vocastar/pkg/models"
)

type fakeJudge struct {
	calls  int32
	result bool
	err    error
}

func (f *fakeJudge) JudgeSemanticMatch(ctx context.Context, reference, candidate string) (bool, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.result, f.err
}

func TestNormalize(t *testing.T) {
	inputs := []string{"It's raining cats & dogs!", "  Break The Ice!  ", "naïve café", "", "123 Go"}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent for %q: %q vs %q", in, once, twice)
		}
	}
	if Normalize("It's raining cats & dogs!") != Normalize("its raining cats dogs") {
		t.Fatalf("expected punctuation-insensitive match, got %q and %q",
			Normalize("It's raining cats & dogs!"), Normalize("its raining cats dogs"))
	}
}

func TestGradeDictation(t *testing.T) {
	tests := []struct {
		answer string
		want   bool
	}{
		{"Break The Ice!", true},
		{"break the ice", true},
		{"break ice", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := GradeDictation("break the ice", tt.answer); got != tt.want {
			t.Errorf("GradeDictation(%q) = %v, want %v", tt.answer, got, tt.want)
		}
	}
}

func TestMeaningEmptyAnswerSkipsJudge(t *testing.T) {
	judge := &fakeJudge{result: true}
	g := NewMeaningGrader(judge)

	for _, answer := range []string{"", "   ", "\t\n"} {
		if g.Grade(context.Background(), "서로 더 친해지다", answer) {
			t.Fatalf("blank answer %q graded correct", answer)
		}
	}
	if judge.calls != 0 {
		t.Fatalf("judge called %d times for blank answers", judge.calls)
	}
}

func TestMeaningUsesJudgeVerdict(t *testing.T) {
	judge := &fakeJudge{result: false}
	g := NewMeaningGrader(judge)
	// the fallback would accept this, the judge does not
	if g.Grade(context.Background(), "친해지다", "친해지다") {
		t.Fatalf("expected judge verdict to win")
	}
	if judge.calls != 1 {
		t.Fatalf("expected one judge call, got %d", judge.calls)
	}
}

func TestMeaningFallbackOnJudgeError(t *testing.T) {
	g := NewMeaningGrader(&fakeJudge{err: errors.New("timeout")})
	tests := []struct {
		reference, answer string
		want              bool
	}{
		{"서로 더 친해지다", "친해지다", true},
		{"친해지다", "서로 더 친해지다", true},
		{"서로 더 친해지다", "멀어지다", false},
		{"Hello", "hello", false},
	}
	for _, tt := range tests {
		if got := g.Grade(context.Background(), tt.reference, tt.answer); got != tt.want {
			t.Errorf("Grade(%q, %q) = %v, want %v", tt.reference, tt.answer, got, tt.want)
		}
	}
}

func TestGradeBatchKeepsOrder(t *testing.T) {
	judge := &fakeJudge{result: true}
	g := NewMeaningGrader(judge)
	idioms := []models.IdiomEntry{
		{ID: "a", Meaning: "하나"},
		{ID: "b", Meaning: "둘"},
		{ID: "c", Meaning: "셋"},
	}
	verdicts := g.GradeBatch(context.Background(), idioms, map[string]string{"a": "x", "c": "y"})
	if len(verdicts) != 3 {
		t.Fatalf("expected 3 verdicts, got %d", len(verdicts))
	}
	for i, id := range []string{"a", "b", "c"} {
		if verdicts[i].ID != id {
			t.Fatalf("verdict %d has id %s", i, verdicts[i].ID)
		}
	}
	if !verdicts[0].IsCorrect || verdicts[1].IsCorrect || !verdicts[2].IsCorrect {
		t.Fatalf("unexpected verdicts %+v", verdicts)
	}
	if judge.calls != 2 {
		t.Fatalf("expected 2 judge calls, got %d", judge.calls)
	}
	if r := verdicts[1].Result(); !r.Attempted || r.IsCorrect {
		t.Fatalf("unexpected stored result %+v", r)
	}
}
