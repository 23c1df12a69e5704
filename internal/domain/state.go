package domain

import "encoding/json"

// State — накопленное состояние run: стадия → её последний output.
//
// Семантика append-only: стадия записывает свой output ровно один раз
// за проход (при route-back output стадии перезаписывается последним
// результатом), а outputs более ранних стадий доступны только на чтение.
// Порядок вставки сохраняется — он совпадает с порядком выполнения стадий.
type State struct {
	order   []string
	outputs map[string]map[string]any
}

// NewState создаёт пустое состояние.
func NewState() *State {
	return &State{
		outputs: make(map[string]map[string]any),
	}
}

// Set записывает output стадии. Повторная запись той же стадии
// (route-back redo) заменяет output, не меняя позицию в порядке.
func (s *State) Set(stage string, output map[string]any) {
	if _, exists := s.outputs[stage]; !exists {
		s.order = append(s.order, stage)
	}
	s.outputs[stage] = output
}

// Get возвращает output стадии и признак его наличия.
func (s *State) Get(stage string) (map[string]any, bool) {
	out, ok := s.outputs[stage]
	return out, ok
}

// Stages возвращает имена стадий в порядке записи.
func (s *State) Stages() []string {
	stages := make([]string, len(s.order))
	copy(stages, s.order)
	return stages
}

// Len возвращает количество записанных стадий.
func (s *State) Len() int {
	return len(s.order)
}

// Snapshot возвращает копию состояния как обычный map.
// Используется как input шага и как payload события complete:
// получатель не может повлиять на внутреннее состояние run.
func (s *State) Snapshot() map[string]map[string]any {
	snap := make(map[string]map[string]any, len(s.outputs))
	for stage, out := range s.outputs {
		outCopy := make(map[string]any, len(out))
		for k, v := range out {
			outCopy[k] = v
		}
		snap[stage] = outCopy
	}
	return snap
}

// Clone возвращает глубокую копию состояния (для snapshot'ов run).
func (s *State) Clone() *State {
	clone := NewState()
	for _, stage := range s.order {
		out := s.outputs[stage]
		outCopy := make(map[string]any, len(out))
		for k, v := range out {
			outCopy[k] = v
		}
		clone.Set(stage, outCopy)
	}
	return clone
}

// MarshalJSON сериализует состояние как объект stage → output.
func (s *State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.outputs)
}

// UnmarshalJSON восстанавливает состояние из объекта stage → output.
// Порядок вставки при этом не восстанавливается — после десериализации
// State используется только для чтения (summary завершённого run).
func (s *State) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &s.outputs); err != nil {
		return err
	}
	if s.outputs == nil {
		s.outputs = make(map[string]map[string]any)
	}
	s.order = s.order[:0]
	for stage := range s.outputs {
		s.order = append(s.order, stage)
	}
	return nil
}
