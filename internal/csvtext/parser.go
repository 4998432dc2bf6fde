// Package csvtext parses delimited text files as they arrive from the field:
// semicolon- or comma-separated, optionally quoted, with inconsistent line
// endings and stray blank lines.
//
// The parser deliberately does not use encoding/csv. Source files routinely
// mix quoting styles within a single file, and encoding/csv aborts the whole
// read on the first malformed record. Here every line is tokenized
// independently, so one bad row cannot take down the rest of the file.
package csvtext

import (
	"fmt"
	"strings"
)

// PreviewRows is how many data rows are kept verbatim for client display.
const PreviewRows = 5

// ParseErrorKind classifies fatal parse failures.
type ParseErrorKind int

const (
	// EmptyOrHeaderOnly means fewer than two non-blank lines remained after
	// filtering: there is no header/data pair to work with.
	EmptyOrHeaderOnly ParseErrorKind = iota
)

// ParseError is a fatal, file-level parse failure. Row-level problems are
// never ParseErrors; they surface later as mapping issues.
type ParseError struct {
	Kind ParseErrorKind
}

func (e *ParseError) Error() string {
	switch e.Kind {
	case EmptyOrHeaderOnly:
		return "file is empty or contains only a header row"
	default:
		return fmt.Sprintf("parse error (kind %d)", int(e.Kind))
	}
}

// RawTable is the tokenized form of a delimited text file.
// It is ephemeral: produced by Parse, consumed by the row mappers, never
// persisted.
type RawTable struct {
	Headers   []string
	Rows      [][]string
	Delimiter rune

	// Preview holds the first PreviewRows data lines verbatim, for client
	// display before an import is committed.
	Preview []string
}

// Parse tokenizes raw text into a header row plus data rows.
//
// Lines are split on CRLF or LF and blank lines are discarded. The delimiter
// is auto-detected: semicolon if the text contains one anywhere, comma
// otherwise (the dominant source locale exports semicolon-delimited CSV with
// comma decimals, so semicolon wins when both appear). The first surviving
// line is the header; every following line is tokenized independently.
func Parse(rawText string) (*RawTable, error) {
	lines := splitLines(rawText)
	if len(lines) < 2 {
		return nil, &ParseError{Kind: EmptyOrHeaderOnly}
	}

	delim := DetectDelimiter(rawText)

	table := &RawTable{
		Headers:   tokenize(lines[0], delim),
		Rows:      make([][]string, 0, len(lines)-1),
		Delimiter: delim,
	}

	for _, line := range lines[1:] {
		table.Rows = append(table.Rows, tokenize(line, delim))
		if len(table.Preview) < PreviewRows {
			table.Preview = append(table.Preview, line)
		}
	}

	return table, nil
}

// DetectDelimiter picks the field delimiter for rawText.
func DetectDelimiter(rawText string) rune {
	if strings.ContainsRune(rawText, ';') {
		return ';'
	}
	return ','
}

// splitLines splits on CRLF/LF and drops blank (whitespace-only) lines.
func splitLines(rawText string) []string {
	rawText = strings.ReplaceAll(rawText, "\r\n", "\n")
	rawText = strings.ReplaceAll(rawText, "\r", "\n")

	var lines []string
	for _, line := range strings.Split(rawText, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// tokenize splits one line into trimmed fields with a quote-aware state
// machine. A double quote toggles the "inside quoted field" flag; the
// delimiter only splits when outside quotes. Doubled quotes are NOT
// unescaped: each quote character flips the flag. A line with an unbalanced
// quote still tokenizes (the trailing field simply absorbs the rest), which
// is the best-effort split the mapping stage then reports against.
func tokenize(line string, delim rune) []string {
	var (
		fields   []string
		field    strings.Builder
		inQuotes bool
	)

	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == delim && !inQuotes:
			fields = append(fields, strings.TrimSpace(field.String()))
			field.Reset()
		default:
			field.WriteRune(r)
		}
	}
	fields = append(fields, strings.TrimSpace(field.String()))

	return fields
}
