package step

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	r.Register("research", Func(func(_ context.Context, _ string, _ map[string]map[string]any) (*Result, error) {
		return &Result{Output: map[string]any{"ok": true}}, nil
	}))

	st, err := r.Get("research")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res, err := st.Invoke(context.Background(), "research", nil)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if res.Output["ok"] != true {
		t.Errorf("unexpected output: %v", res.Output)
	}
}

func TestRegistry_UnknownStage(t *testing.T) {
	r := NewRegistry()

	_, err := r.Get("ghost")
	if !errors.Is(err, ErrUnknownStage) {
		t.Errorf("expected ErrUnknownStage, got %v", err)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"fatal", Fatal(errors.New("bad input")), KindFatal},
		{"recoverable", Recoverable(errors.New("timeout")), KindRecoverable},
		{"deadline", context.DeadlineExceeded, KindRecoverable},
		{"plain error defaults to recoverable", errors.New("something"), KindRecoverable},
		{"wrapped fatal", Recoverable(Fatal(errors.New("inner"))), KindFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestHTTPStep_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/stages/research" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"output": {"summary": "done"}, "cost_units": 2.5}`))
	}))
	defer srv.Close()

	st := NewHTTPStep(srv.URL)

	res, err := st.Invoke(context.Background(), "research", map[string]map[string]any{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Output["summary"] != "done" {
		t.Errorf("unexpected output: %v", res.Output)
	}
	if res.CostUnits != 2.5 {
		t.Errorf("expected cost 2.5, got %v", res.CostUnits)
	}
}

func TestHTTPStep_ServerErrorIsRecoverable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	st := NewHTTPStep(srv.URL)

	_, err := st.Invoke(context.Background(), "research", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if Classify(err) != KindRecoverable {
		t.Errorf("5xx must be recoverable, got %v", err)
	}
}

func TestHTTPStep_ClientErrorIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	st := NewHTTPStep(srv.URL)

	_, err := st.Invoke(context.Background(), "research", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if Classify(err) != KindFatal {
		t.Errorf("4xx must be fatal, got %v", err)
	}
}

func TestHTTPStep_ConnectionRefusedIsRecoverable(t *testing.T) {
	st := NewHTTPStep("http://127.0.0.1:1")

	_, err := st.Invoke(context.Background(), "research", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if Classify(err) != KindRecoverable {
		t.Errorf("network error must be recoverable, got %v", err)
	}
}
