package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/divviup/divviup-console/internal/config"
	"github.com/divviup/divviup-console/internal/validation"
)

// print writes v in the configured output format. text renders the text
// form.
func (a *app) print(v any, text func(w io.Writer) error) error {
	switch a.cfg.Output {
	case config.OutputYAML:
		data, err := toYAML(v)
		if err != nil {
			return err
		}
		_, err = a.out.Write(data)
		return err
	case config.OutputText:
		return text(a.out)
	default:
		encoder := json.NewEncoder(a.out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(v)
	}
}

// deleted reports a deletion.
func (a *app) deleted(kind, id string) error {
	return a.print(map[string]string{"deleted": id}, func(w io.Writer) error {
		return done(w, "Deleted %s %s", kind, id)
	})
}

// toYAML renders v with its JSON field names by going through JSON first.
func toYAML(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var generic any
	if err := decoder.Decode(&generic); err != nil {
		return nil, err
	}
	return yaml.Marshal(plainNumbers(generic))
}

// plainNumbers replaces json.Number so YAML prints integers as integers
// rather than quoted strings or exponents.
func plainNumbers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, inner := range t {
			t[k] = plainNumbers(inner)
		}
	case []any:
		for i, inner := range t {
			t[i] = plainNumbers(inner)
		}
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	}
	return v
}

// printFormErrors prints normalized validation messages, one field per
// line, in field order.
func printFormErrors(w io.Writer, errs validation.FormErrors) error {
	flat := errs.Flatten()
	fields := make([]string, 0, len(flat))
	for field := range flat {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	if _, err := fmt.Fprintln(w, "Validation failed:"); err != nil {
		return err
	}
	for _, field := range fields {
		if _, err := fmt.Fprintf(w, "  %s: %s\n", field, flat[field]); err != nil {
			return err
		}
	}
	return nil
}

// table writes rows under headers with aligned columns.
func table(w io.Writer, headers []string, rows [][]string) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No results.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// fields writes label/value pairs of a single resource.
func fields(w io.Writer, pairs ...string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for i := 0; i+1 < len(pairs); i += 2 {
		fmt.Fprintf(tw, "%s:\t%s\n", pairs[i], pairs[i+1])
	}
	return tw.Flush()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return formatTime(*t)
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}
