// Package render provides output rendering for the modality-dlt CLI.
//
// Format selection:
//   - If stdout is a TTY, default to table
//   - Otherwise default to json
//   - --format always overrides the default
//
// --no-color affects table output only. TUI mode uses its own styling.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/auxoncorp/modality-dlt-plugin/cli/tui"
)

// Format represents an output format.
type Format string

// Supported formats.
const (
	FormatJSON  Format = "json"
	FormatTable Format = "table"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses a format string, returning an error for invalid formats.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON, nil
	case "table":
		return FormatTable, nil
	case "yaml":
		return FormatYAML, nil
	case "":
		return "", nil // caller decides the default
	default:
		return "", fmt.Errorf("invalid format: %q (must be json, table, or yaml)", s)
	}
}

// Renderer handles output formatting.
type Renderer struct {
	format  Format
	noColor bool
	out     io.Writer
	styles  styles
}

// NewRenderer creates a renderer from the --format and --no-color flags.
func NewRenderer(c *cli.Context) (*Renderer, error) {
	format, err := ParseFormat(c.String("format"))
	if err != nil {
		return nil, err
	}
	if format == "" {
		if isTTY(os.Stdout) {
			format = FormatTable
		} else {
			format = FormatJSON
		}
	}
	return NewRendererWithWriter(format, c.Bool("no-color"), os.Stdout), nil
}

// NewRendererWithWriter creates a renderer with a custom writer.
func NewRendererWithWriter(format Format, noColor bool, out io.Writer) *Renderer {
	return &Renderer{
		format:  format,
		noColor: noColor,
		out:     out,
		styles:  newStyles(out),
	}
}

// Format returns the selected output format.
func (r *Renderer) Format() Format {
	return r.format
}

// Render outputs the data in the configured format.
func (r *Renderer) Render(data any) error {
	switch r.format {
	case FormatJSON:
		enc := json.NewEncoder(r.out)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case FormatYAML:
		enc := yaml.NewEncoder(r.out)
		enc.SetIndent(2)
		if err := enc.Encode(data); err != nil {
			return err
		}
		return enc.Close()
	case FormatTable:
		return r.renderTable(data)
	default:
		return fmt.Errorf("unknown format: %s", r.format)
	}
}

// RenderTUI starts the interactive viewer for the view type.
// TUI is opt-in and read-only.
func (r *Renderer) RenderTUI(viewType string, data any) error {
	if !tui.IsTUISupported(viewType) {
		return fmt.Errorf("--tui is not supported for %s", viewType)
	}
	return tui.Run(viewType, data)
}

func (r *Renderer) renderTable(data any) error {
	v := reflect.ValueOf(data)
	if v.Kind() == reflect.Ptr && !v.IsNil() {
		v = v.Elem()
	}
	if v.Kind() == reflect.Slice {
		return r.renderSliceTable(v)
	}
	return r.renderStructTable(v)
}

func (r *Renderer) renderSliceTable(v reflect.Value) error {
	if v.Len() == 0 {
		_, err := fmt.Fprintln(r.out, "(no results)")
		return err
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	headers := columnHeaders(v.Index(0))
	fmt.Fprintln(w, strings.Join(headers, "\t"))
	for i := range v.Len() {
		fmt.Fprintln(w, strings.Join(rowValues(v.Index(i), headers), "\t"))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	// Style after alignment: escape sequences would skew tabwriter widths.
	header, rest, _ := strings.Cut(buf.String(), "\n")
	if !r.noColor {
		header = r.styles.header.Render(header)
	}
	_, err := fmt.Fprintf(r.out, "%s\n%s", header, rest)
	return err
}

func (r *Renderer) renderStructTable(v reflect.Value) error {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	var keys []string
	switch v.Kind() {
	case reflect.Struct:
		t := v.Type()
		for i := range v.NumField() {
			if !t.Field(i).IsExported() {
				continue
			}
			name := fieldName(t.Field(i))
			keys = append(keys, name)
			fmt.Fprintf(w, "%s:\t%s\n", name, formatValue(v.Field(i)))
		}
	case reflect.Map:
		for _, k := range sortedKeys(v) {
			key := fmt.Sprint(k.Interface())
			keys = append(keys, key)
			fmt.Fprintf(w, "%s:\t%s\n", key, formatValue(v.MapIndex(k)))
		}
	default:
		fmt.Fprintf(w, "%v\n", v)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	lines := strings.SplitAfter(buf.String(), "\n")
	for i, line := range lines {
		if !r.noColor && i < len(keys) {
			label, value, _ := strings.Cut(strings.TrimSuffix(line, "\n"), ":")
			line = r.styles.label.Render(label+":") + r.styles.value(keys[i], value) + "\n"
		}
		if _, err := io.WriteString(r.out, line); err != nil {
			return err
		}
	}
	return nil
}

func columnHeaders(v reflect.Value) []string {
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	var headers []string
	switch v.Kind() {
	case reflect.Struct:
		t := v.Type()
		for i := range t.NumField() {
			if t.Field(i).IsExported() {
				headers = append(headers, fieldName(t.Field(i)))
			}
		}
	case reflect.Map:
		for _, k := range sortedKeys(v) {
			headers = append(headers, fmt.Sprint(k.Interface()))
		}
	default:
		headers = []string{"value"}
	}
	return headers
}

func rowValues(v reflect.Value, headers []string) []string {
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	var values []string
	switch v.Kind() {
	case reflect.Struct:
		t := v.Type()
		for i := range v.NumField() {
			if t.Field(i).IsExported() {
				values = append(values, formatValue(v.Field(i)))
			}
		}
	case reflect.Map:
		for _, h := range headers {
			values = append(values, formatValue(v.MapIndex(reflect.ValueOf(h))))
		}
	default:
		values = []string{formatValue(v)}
	}
	return values
}

func sortedKeys(v reflect.Value) []reflect.Value {
	keys := v.MapKeys()
	slices.SortFunc(keys, func(a, b reflect.Value) int {
		return strings.Compare(fmt.Sprint(a.Interface()), fmt.Sprint(b.Interface()))
	})
	return keys
}

func fieldName(f reflect.StructField) string {
	if tag := f.Tag.Get("json"); tag != "" {
		name, _, _ := strings.Cut(tag, ",")
		if name != "" && name != "-" {
			return name
		}
	}
	return strings.ToLower(f.Name)
}

func formatValue(v reflect.Value) string {
	if !v.IsValid() {
		return ""
	}
	if v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return ""
		}
		v = v.Elem()
	}

	if s, ok := v.Interface().(fmt.Stringer); ok {
		return s.String()
	}
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if v.Len() == 0 {
			return "[]"
		}
		return fmt.Sprintf("[%d items]", v.Len())
	case reflect.Map:
		if v.Len() == 0 {
			return "{}"
		}
		return fmt.Sprintf("{%d keys}", v.Len())
	case reflect.Struct:
		return "{...}"
	default:
		return fmt.Sprintf("%v", v.Interface())
	}
}

// isTTY returns true if f is a terminal.
func isTTY(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
