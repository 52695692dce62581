package services

import (
	"sort"
	"testing"

	"github.com/icupa/giomessaging/model"
	"github.com/icupa/giomessaging/shared"
)

func TestParseGeneratedQuestion(t *testing.T) {
	text := "```json\n{\"question\": \"What is the boiling point of water at sea level?\", \"options\": [\"100°C\", \"90°C\", \"110°C\", \"120°C\"], \"explanation\": \"Water boils at 100°C at standard pressure.\"}\n```"

	q, err := ParseGeneratedQuestion(text, shared.DifficultyEasy, "Chemistry")
	if err != nil {
		t.Fatal(err)
	}
	if q.Question != "What is the boiling point of water at sea level?" {
		t.Fatalf("unexpected question: %s", q.Question)
	}
	if len(q.Options) != 4 {
		t.Fatalf("expected 4 options, got %d", len(q.Options))
	}
	// The first option of the raw payload is the correct one; the index must
	// track it through the shuffle.
	if q.Options[q.CorrectAnswerIndex] != "100°C" {
		t.Fatalf("correct answer index points at %q", q.Options[q.CorrectAnswerIndex])
	}
	if q.Difficulty != shared.DifficultyEasy || q.Subtopic != "Chemistry" {
		t.Fatalf("metadata not carried: %s/%s", q.Difficulty, q.Subtopic)
	}
}

func TestParseGeneratedQuestionWithoutFences(t *testing.T) {
	text := `{"question": "Q", "options": ["a", "b", "c"], "explanation": "e"}`
	q, err := ParseGeneratedQuestion(text, shared.DifficultyMedium, "Physics")
	if err != nil {
		t.Fatal(err)
	}
	if q.Options[q.CorrectAnswerIndex] != "a" {
		t.Fatalf("correct answer index points at %q", q.Options[q.CorrectAnswerIndex])
	}
}

func TestParseGeneratedQuestionRejectsBadPayloads(t *testing.T) {
	cases := map[string]string{
		"not json":        "the model rambled instead of emitting JSON",
		"missing text":    `{"options": ["a", "b", "c"]}`,
		"too few options": `{"question": "Q", "options": ["a", "b"]}`,
	}
	for name, text := range cases {
		if _, err := ParseGeneratedQuestion(text, shared.DifficultyEasy, "Physics"); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}

func TestDifficultyRamp(t *testing.T) {
	counts := map[string]int{}
	for i := 0; i < 10; i++ {
		counts[difficultyForIndex(i, 10)]++
	}
	if counts[shared.DifficultyEasy] != 3 || counts[shared.DifficultyMedium] != 4 || counts[shared.DifficultyHard] != 3 {
		t.Fatalf("unexpected ramp over 10 questions: %+v", counts)
	}

	if difficultyForIndex(0, 5) != shared.DifficultyEasy {
		t.Fatal("first question should be easy")
	}
	if difficultyForIndex(4, 5) != shared.DifficultyHard {
		t.Fatal("last question should be hard")
	}
}

func TestPickSubtopicExhaustsBeforeRepeating(t *testing.T) {
	areas := []string{"Physics", "Chemistry", "Biology"}
	used := map[string]bool{}

	seen := map[string]bool{}
	for i := 0; i < len(areas); i++ {
		pick := pickSubtopic(areas, used)
		if seen[pick] {
			t.Fatalf("subtopic %q repeated before the pool was exhausted", pick)
		}
		seen[pick] = true
	}

	// Pool exhausted; the next pick resets and draws from the full list again.
	pick := pickSubtopic(areas, used)
	if !seen[pick] {
		t.Fatalf("reset pick %q not from the original pool", pick)
	}
}

func TestShuffleStringsKeepsElements(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}
	shuffled := append([]string(nil), items...)
	ShuffleStrings(shuffled)

	sort.Strings(shuffled)
	for i, item := range items {
		if shuffled[i] != item {
			t.Fatalf("shuffle changed the element set: %v", shuffled)
		}
	}
}

func TestShuffleQuestionsKeepsElements(t *testing.T) {
	questions := []model.Question{
		{Question: "q1"}, {Question: "q2"}, {Question: "q3"}, {Question: "q4"},
	}
	shuffled := append([]model.Question(nil), questions...)
	ShuffleQuestions(shuffled)

	seen := map[string]bool{}
	for _, q := range shuffled {
		seen[q.Question] = true
	}
	if len(seen) != len(questions) {
		t.Fatalf("shuffle lost questions: %v", seen)
	}
}
