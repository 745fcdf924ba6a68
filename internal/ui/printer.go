package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"sigs.k8s.io/yaml"
)

// Output formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// Printer writes command results in the selected format.
type Printer struct {
	Out    io.Writer
	Err    io.Writer
	Format string
	Styles Styles
}

// NewPrinter returns a Printer writing to out and err.
func NewPrinter(out, errOut io.Writer, format string, color bool) *Printer {
	if format == "" {
		format = FormatTable
	}
	return &Printer{Out: out, Err: errOut, Format: format, Styles: NewStyles(out, color)}
}

// Structured reports whether output is machine readable.
func (p *Printer) Structured() bool {
	return p.Format == FormatJSON || p.Format == FormatYAML
}

// Emit prints v as JSON or YAML when a structured format is selected, and
// otherwise calls human.
func (p *Printer) Emit(v any, human func() error) error {
	switch p.Format {
	case FormatJSON:
		return p.JSON(v)
	case FormatYAML:
		return p.YAML(v)
	}
	return human()
}

// JSON writes v as indented JSON.
func (p *Printer) JSON(v any) error {
	enc := json.NewEncoder(p.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// YAML writes v as YAML, honouring json struct tags.
func (p *Printer) YAML(v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	_, err = p.Out.Write(data)
	return err
}

// Table writes a table, or a muted note when there are no rows.
func (p *Printer) Table(headers []string, rows [][]string, empty string) {
	if len(rows) == 0 {
		fmt.Fprintln(p.Out, p.Styles.Muted.Render(empty))
		return
	}
	fmt.Fprintln(p.Out, Table(p.Styles, headers, rows))
}

// Fields writes an aligned label/value block.
func (p *Printer) Fields(pairs [][2]string) {
	fmt.Fprintln(p.Out, KeyValues(p.Styles, pairs))
}

// Title writes a bold heading line.
func (p *Printer) Title(format string, args ...any) {
	fmt.Fprintln(p.Out, p.Styles.Title.Render(fmt.Sprintf(format, args...)))
}

// Line writes plain text.
func (p *Printer) Line(format string, args ...any) {
	fmt.Fprintf(p.Out, format+"\n", args...)
}

// Success writes a green confirmation line.
func (p *Printer) Success(format string, args ...any) {
	fmt.Fprintln(p.Out, p.Styles.Success.Render("✔ "+fmt.Sprintf(format, args...)))
}

// Warn writes a yellow note to the error stream.
func (p *Printer) Warn(format string, args ...any) {
	fmt.Fprintln(p.Err, p.Styles.Warning.Render("! "+fmt.Sprintf(format, args...)))
}

// Dash renders an empty value as "-".
func Dash(v string) string {
	if strings.TrimSpace(v) == "" {
		return "-"
	}
	return v
}

// Deref renders a nil string pointer as "-".
func Deref(v *string) string {
	if v == nil {
		return "-"
	}
	return Dash(*v)
}
