package routeback

import "fmt"

// DefaultThreshold — порог, ниже которого оценка считается провальной.
const DefaultThreshold = 0.5

// Dimension — измерение качества, оцениваемое decision-стадией.
type Dimension string

const (
	// DimensionClarity — ясность позиционирования/сообщения.
	DimensionClarity Dimension = "clarity"

	// DimensionAudienceFit — попадание в целевую аудиторию.
	DimensionAudienceFit Dimension = "audience_fit"

	// DimensionExecutionQuality — качество исполнения контента.
	DimensionExecutionQuality Dimension = "execution_quality"
)

// Scores — оценки decision-стадии, каждая в диапазоне 0.0–1.0.
type Scores struct {
	Clarity          float64 `json:"clarity"`
	AudienceFit      float64 `json:"audience_fit"`
	ExecutionQuality float64 `json:"execution_quality"`
}

// Map возвращает оценки как map (для персистентной записи решения).
func (s Scores) Map() map[string]float64 {
	return map[string]float64{
		string(DimensionClarity):          s.Clarity,
		string(DimensionAudienceFit):      s.AudienceFit,
		string(DimensionExecutionQuality): s.ExecutionQuality,
	}
}

// Validate проверяет, что все оценки в диапазоне [0, 1].
func (s Scores) Validate() error {
	for dim, v := range s.Map() {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: %s=%v", ErrScoreOutOfRange, dim, v)
		}
	}
	return nil
}

// Action — что делать по вердикту.
type Action int

const (
	// ActionContinue — продолжить вперёд, route-back не нужен.
	ActionContinue Action = iota

	// ActionRedo — вернуться к стадии, отвечающей за провальное измерение.
	ActionRedo

	// ActionNoActionable — результат неуспешен, но причина не в стадиях
	// (внешний/временной фактор); продолжить вперёд.
	ActionNoActionable
)

// String возвращает строковое представление Action.
func (a Action) String() string {
	switch a {
	case ActionRedo:
		return "redo"
	case ActionNoActionable:
		return "no_actionable"
	default:
		return "continue"
	}
}

// Verdict — структурированный вердикт оценки.
type Verdict struct {
	// Action — решение.
	Action Action

	// Dimension — провальное измерение (только для ActionRedo).
	Dimension Dimension

	// Scores — оценки, на основе которых принято решение.
	Scores Scores
}

// Evaluate вычисляет вердикт по оценкам decision-стадии.
//
// Правила (порог threshold, обычно DefaultThreshold):
//   - какая-то оценка ниже порога → redo; цель определяет измерение
//     с МИНИМАЛЬНОЙ оценкой
//   - все оценки на/выше порога, overall successful → continue
//   - все оценки на/выше порога, но overall неуспешен → no actionable
//     route-back (стадии не виноваты, переделывать нечего)
//
// Функция чистая: не трогает состояние run; применение вердикта —
// ответственность движка.
func Evaluate(scores Scores, successful bool, threshold float64) Verdict {
	worst := DimensionClarity
	worstScore := scores.Clarity

	if scores.AudienceFit < worstScore {
		worst = DimensionAudienceFit
		worstScore = scores.AudienceFit
	}
	if scores.ExecutionQuality < worstScore {
		worst = DimensionExecutionQuality
		worstScore = scores.ExecutionQuality
	}

	if worstScore < threshold {
		return Verdict{Action: ActionRedo, Dimension: worst, Scores: scores}
	}

	if !successful {
		return Verdict{Action: ActionNoActionable, Scores: scores}
	}

	return Verdict{Action: ActionContinue, Scores: scores}
}

// ParseOutput извлекает Scores и признак успеха из output decision-стадии.
//
// Ожидаемая форма output:
//
//	{
//	    "scores": {"clarity": 0.8, "audience_fit": 0.4, "execution_quality": 0.9},
//	    "successful": false
//	}
func ParseOutput(output map[string]any) (Scores, bool, error) {
	var scores Scores

	raw, ok := output["scores"].(map[string]any)
	if !ok {
		return scores, false, ErrMissingScores
	}

	// Отсутствие оценки измерения — такой же дефект output, как и
	// отсутствие scores целиком: вердикт по нему не выносится.
	var err error
	if scores.Clarity, err = floatValue(raw, DimensionClarity); err != nil {
		return scores, false, err
	}
	if scores.AudienceFit, err = floatValue(raw, DimensionAudienceFit); err != nil {
		return scores, false, err
	}
	if scores.ExecutionQuality, err = floatValue(raw, DimensionExecutionQuality); err != nil {
		return scores, false, err
	}

	if err := scores.Validate(); err != nil {
		return scores, false, err
	}

	successful, _ := output["successful"].(bool)
	return scores, successful, nil
}

// floatValue извлекает число из map (JSON числа приходят как float64).
func floatValue(m map[string]any, dim Dimension) (float64, error) {
	switch v := m[string(dim)].(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrMissingScore, dim)
	}
}
