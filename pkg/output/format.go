package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// Format represents the output format type
type Format string

const (
	// FormatText is the default human-readable format
	FormatText Format = "text"
	// FormatJSON prints the raw API objects
	FormatJSON Format = "json"
)

// Formatter writes command results in the selected format
type Formatter struct {
	format Format
	writer io.Writer
}

// New creates a Formatter writing to stdout
func New(format Format) *Formatter {
	return &Formatter{
		format: format,
		writer: os.Stdout,
	}
}

// SetWriter redirects output, mostly for tests
func (f *Formatter) SetWriter(w io.Writer) {
	f.writer = w
}

// Writer returns the destination of this formatter
func (f *Formatter) Writer() io.Writer {
	return f.writer
}

// Output writes data as JSON, or with %v for text. Commands that have a
// table or key/value rendering call Table or Fields for text instead.
func (f *Formatter) Output(data interface{}) error {
	switch f.format {
	case FormatJSON:
		return f.outputJSON(data)
	case FormatText:
		_, err := fmt.Fprintf(f.writer, "%v\n", data)
		return err
	default:
		return fmt.Errorf("unsupported output format: %s", f.format)
	}
}

// Render prints data as JSON in json mode and calls text otherwise
func (f *Formatter) Render(data interface{}, text func(*Formatter) error) error {
	if f.IsJSON() {
		return f.outputJSON(data)
	}
	return text(f)
}

func (f *Formatter) outputJSON(data interface{}) error {
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// Table renders rows under a header line
func (f *Formatter) Table(headers []string, rows [][]string) error {
	cells := make([]any, len(headers))
	for i, h := range headers {
		cells[i] = h
	}

	table := tablewriter.NewWriter(f.writer)
	table.Header(cells...)
	if err := table.Bulk(rows); err != nil {
		return fmt.Errorf("render table: %w", err)
	}
	return table.Render()
}

// Field is one labelled value of a detail view
type Field struct {
	Label string
	Value string
}

// Fields renders a two-column detail view with aligned labels
func (f *Formatter) Fields(fields ...Field) error {
	width := 0
	for _, field := range fields {
		if len(field.Label) > width {
			width = len(field.Label)
		}
	}
	for _, field := range fields {
		if _, err := fmt.Fprintf(f.writer, "%-*s  %s\n", width+1, field.Label+":", field.Value); err != nil {
			return err
		}
	}
	return nil
}

// Printf writes a free-form line in text mode and nothing in json mode
func (f *Formatter) Printf(format string, args ...interface{}) {
	if f.IsText() {
		fmt.Fprintf(f.writer, format, args...)
	}
}

// IsJSON returns true if the format is JSON
func (f *Formatter) IsJSON() bool {
	return f.format == FormatJSON
}

// IsText returns true if the format is text
func (f *Formatter) IsText() bool {
	return f.format == FormatText
}

// AddFormatFlag adds the --output flag to a command
func AddFormatFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", "text", "Output format (text|json)")
}

// GetFormatFromCmd extracts the output format from a command's flags
func GetFormatFromCmd(cmd *cobra.Command) (Format, error) {
	formatStr, err := cmd.Flags().GetString("output")
	if err != nil {
		return FormatText, err
	}

	format := Format(formatStr)
	switch format {
	case FormatText, FormatJSON:
		return format, nil
	default:
		return FormatText, fmt.Errorf("invalid output format: %s (must be 'text' or 'json')", formatStr)
	}
}

// FromCmd builds a Formatter for the command's --output flag writing to its stdout
func FromCmd(cmd *cobra.Command) (*Formatter, error) {
	format, err := GetFormatFromCmd(cmd)
	if err != nil {
		return nil, err
	}
	f := New(format)
	f.SetWriter(cmd.OutOrStdout())
	return f, nil
}
