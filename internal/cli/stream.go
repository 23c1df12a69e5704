package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// StreamEvent — одно SSE-событие из стрима движка.
type StreamEvent struct {
	// Kind — вид события (snapshot, progress, error, complete).
	Kind string

	// Data — JSON-payload события.
	Data json.RawMessage
}

// StreamRun подключается к SSE-стриму движка и вызывает handler
// для каждого события. Возвращается, когда стрим закрыт сервером,
// handler вернул ошибку или ctx отменён.
//
// Стрим живёт в процессе движка, не API — поэтому отдельный engineURL.
func StreamRun(ctx context.Context, engineURL, runID string, handler func(StreamEvent) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		engineURL+"/v1/runs/"+runID+"/stream", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	// Без Timeout: стрим живёт до завершения run
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var er errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
			return fmt.Errorf("stream error: HTTP %d", resp.StatusCode)
		}
		return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var event StreamEvent
	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, "event: "):
			event.Kind = strings.TrimPrefix(line, "event: ")

		case strings.HasPrefix(line, "data: "):
			event.Data = json.RawMessage(strings.TrimPrefix(line, "data: "))

		case line == "":
			// Пустая строка завершает событие
			if event.Kind != "" || len(event.Data) > 0 {
				if err := handler(event); err != nil {
					return err
				}
				event = StreamEvent{}
			}
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("stream read: %w", err)
	}
	return nil
}
