package routeback

import (
	"errors"
	"testing"
)

func TestEvaluate_Continue(t *testing.T) {
	scores := Scores{Clarity: 0.9, AudienceFit: 0.8, ExecutionQuality: 0.7}

	v := Evaluate(scores, true, DefaultThreshold)

	if v.Action != ActionContinue {
		t.Errorf("expected continue, got %s", v.Action)
	}
}

func TestEvaluate_RedoPicksLowestDimension(t *testing.T) {
	tests := []struct {
		name   string
		scores Scores
		want   Dimension
	}{
		{
			name:   "audience_fit lowest",
			scores: Scores{Clarity: 0.8, AudienceFit: 0.2, ExecutionQuality: 0.6},
			want:   DimensionAudienceFit,
		},
		{
			name:   "clarity lowest",
			scores: Scores{Clarity: 0.1, AudienceFit: 0.4, ExecutionQuality: 0.9},
			want:   DimensionClarity,
		},
		{
			name:   "execution_quality lowest",
			scores: Scores{Clarity: 0.7, AudienceFit: 0.6, ExecutionQuality: 0.3},
			want:   DimensionExecutionQuality,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Evaluate(tt.scores, true, DefaultThreshold)

			if v.Action != ActionRedo {
				t.Fatalf("expected redo, got %s", v.Action)
			}
			if v.Dimension != tt.want {
				t.Errorf("expected dimension %s, got %s", tt.want, v.Dimension)
			}
		})
	}
}

func TestEvaluate_ScoreAtThresholdIsNotFailing(t *testing.T) {
	// Порог не включается: оценка ровно 0.5 проходит
	scores := Scores{Clarity: 0.5, AudienceFit: 0.5, ExecutionQuality: 0.5}

	v := Evaluate(scores, true, DefaultThreshold)

	if v.Action != ActionContinue {
		t.Errorf("expected continue at threshold, got %s", v.Action)
	}
}

func TestEvaluate_NoActionable(t *testing.T) {
	// Все оценки выше порога, но overall неуспешен:
	// причина вне стадий, переделывать нечего
	scores := Scores{Clarity: 0.9, AudienceFit: 0.8, ExecutionQuality: 0.7}

	v := Evaluate(scores, false, DefaultThreshold)

	if v.Action != ActionNoActionable {
		t.Errorf("expected no_actionable, got %s", v.Action)
	}
}

func TestParseOutput_Valid(t *testing.T) {
	output := map[string]any{
		"scores": map[string]any{
			"clarity":           0.8,
			"audience_fit":      0.4,
			"execution_quality": 0.9,
		},
		"successful": true,
	}

	scores, successful, err := ParseOutput(output)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if scores.Clarity != 0.8 || scores.AudienceFit != 0.4 || scores.ExecutionQuality != 0.9 {
		t.Errorf("unexpected scores: %+v", scores)
	}
	if !successful {
		t.Error("expected successful=true")
	}
}

func TestParseOutput_MissingScores(t *testing.T) {
	_, _, err := ParseOutput(map[string]any{"successful": true})

	if !errors.Is(err, ErrMissingScores) {
		t.Errorf("expected ErrMissingScores, got %v", err)
	}
}

func TestParseOutput_ScoreOutOfRange(t *testing.T) {
	output := map[string]any{
		"scores": map[string]any{
			"clarity":           1.5,
			"audience_fit":      0.4,
			"execution_quality": 0.9,
		},
	}

	_, _, err := ParseOutput(output)

	if !errors.Is(err, ErrScoreOutOfRange) {
		t.Errorf("expected ErrScoreOutOfRange, got %v", err)
	}
}

func TestParseOutput_MissingDimension(t *testing.T) {
	// Отсутствующее измерение — дефект output, а не провальная оценка:
	// вердикт не выносится, движок продолжает вперёд
	output := map[string]any{
		"scores": map[string]any{
			"clarity": 0.9,
		},
	}

	_, _, err := ParseOutput(output)
	if !errors.Is(err, ErrMissingScore) {
		t.Errorf("expected ErrMissingScore, got %v", err)
	}
}

func TestParseOutput_NonNumericDimension(t *testing.T) {
	output := map[string]any{
		"scores": map[string]any{
			"clarity":           0.9,
			"audience_fit":      "high",
			"execution_quality": 0.7,
		},
	}

	_, _, err := ParseOutput(output)
	if !errors.Is(err, ErrMissingScore) {
		t.Errorf("expected ErrMissingScore for non-numeric score, got %v", err)
	}
}
