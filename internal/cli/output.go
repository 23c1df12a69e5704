package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
)

// Output форматирует результаты команд marketmind.
//
// Данные (таблицы runs, schedules, JSON) идут в stdout и пригодны для
// пайпа; служебные сообщения — в stderr.
type Output struct {
	json bool
	data io.Writer
	msg  io.Writer
}

// NewOutput создаёт Output. При json=true все данные выводятся в JSON.
func NewOutput(jsonMode bool) *Output {
	return &Output{
		json: jsonMode,
		data: os.Stdout,
		msg:  os.Stderr,
	}
}

// Print выводит данные таблицей либо JSON-представлением jsonData.
func (o *Output) Print(headers []string, rows [][]string, jsonData any) {
	if o.json {
		o.JSON(jsonData)
		return
	}
	o.Table(headers, rows)
}

// Table печатает выровненную таблицу с заголовками в верхнем регистре.
func (o *Output) Table(headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(o.data, 0, 0, 3, ' ', 0)

	upper := make([]string, len(headers))
	for i, h := range headers {
		upper[i] = strings.ToUpper(h)
	}
	fmt.Fprintln(tw, strings.Join(upper, "\t"))

	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	tw.Flush()
}

// JSON печатает значение с отступами.
func (o *Output) JSON(v any) {
	enc := json.NewEncoder(o.data)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintln(o.msg, "Error: "+err.Error())
	}
}

// Success печатает сообщение об успехе в stderr.
func (o *Output) Success(msg string) {
	fmt.Fprintln(o.msg, msg)
}

// Error печатает сообщение об ошибке в stderr.
func (o *Output) Error(msg string) {
	fmt.Fprintln(o.msg, "Error: "+msg)
}
