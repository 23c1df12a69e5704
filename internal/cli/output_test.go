package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"testing"
)

func TestOutput_Table(t *testing.T) {
	var buf bytes.Buffer
	o := &Output{data: &buf, msg: io.Discard}

	o.Table(
		[]string{"id", "status"},
		[][]string{
			{"r1", "COMPLETED"},
			{"r2", "RUNNING"},
		},
	)

	got := buf.String()
	lines := strings.Split(strings.TrimRight(got, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got %d lines:\n%s", len(lines), got)
	}
	if !strings.HasPrefix(lines[0], "ID") || !strings.Contains(lines[0], "STATUS") {
		t.Errorf("expected uppercase headers, got %q", lines[0])
	}
	if !strings.Contains(lines[2], "RUNNING") {
		t.Errorf("expected row data in output, got %q", lines[2])
	}
}

func TestOutput_PrintJSONMode(t *testing.T) {
	var buf bytes.Buffer
	o := &Output{json: true, data: &buf, msg: io.Discard}

	o.Print([]string{"id"}, [][]string{{"r1"}}, map[string]string{"id": "r1"})

	var decoded map[string]string
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded["id"] != "r1" {
		t.Errorf("expected id r1, got %q", decoded["id"])
	}
}

func TestOutput_ErrorGoesToStderr(t *testing.T) {
	var data, msg bytes.Buffer
	o := &Output{data: &data, msg: &msg}

	o.Error("schedule not found")

	if data.Len() != 0 {
		t.Errorf("expected no data output, got %q", data.String())
	}
	if got := msg.String(); got != "Error: schedule not found\n" {
		t.Errorf("unexpected stderr output: %q", got)
	}
}
