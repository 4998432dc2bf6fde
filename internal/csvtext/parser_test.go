package csvtext

import (
	"errors"
	"strings"
	"testing"
)

func TestParse_Basic(t *testing.T) {
	table, err := Parse("name;city\nAcme;Berlin\nBolt;Hamburg\n")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if got := len(table.Headers); got != 2 {
		t.Fatalf("headers = %d, want 2", got)
	}
	if table.Headers[0] != "name" || table.Headers[1] != "city" {
		t.Errorf("headers = %v, want [name city]", table.Headers)
	}
	if got := len(table.Rows); got != 2 {
		t.Fatalf("rows = %d, want 2", got)
	}
	if table.Rows[1][1] != "Hamburg" {
		t.Errorf("rows[1][1] = %q, want %q", table.Rows[1][1], "Hamburg")
	}
	if table.Delimiter != ';' {
		t.Errorf("delimiter = %q, want ';'", table.Delimiter)
	}
}

func TestParse_EmptyOrHeaderOnly(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"blank lines only", "\n\n   \n"},
		{"header only", "name;city\n"},
		{"header and blank lines", "name;city\n\n  \n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.in)
			if err == nil {
				t.Fatal("Parse() expected error")
			}
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("error type = %T, want *ParseError", err)
			}
			if pe.Kind != EmptyOrHeaderOnly {
				t.Errorf("kind = %d, want EmptyOrHeaderOnly", pe.Kind)
			}
		})
	}
}

func TestParse_BlankLinesDropped(t *testing.T) {
	table, err := Parse("a,b\n\n1,2\n   \n3,4\n")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := len(table.Rows); got != 2 {
		t.Errorf("rows = %d, want 2 (blank lines must not count)", got)
	}
}

func TestParse_CRLF(t *testing.T) {
	table, err := Parse("a;b\r\n1;2\r\n3;4\r\n")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := len(table.Rows); got != 2 {
		t.Fatalf("rows = %d, want 2", got)
	}
	if table.Rows[0][1] != "2" {
		t.Errorf("rows[0][1] = %q, want %q (no stray CR)", table.Rows[0][1], "2")
	}
}

func TestDetectDelimiter(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want rune
	}{
		{"semicolon only", "a;b\n1;2", ';'},
		{"comma only", "a,b\n1,2", ','},
		{"both prefers semicolon", "a;b\n1,50;2,75", ';'},
		{"neither defaults to comma", "a\n1", ','},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectDelimiter(tt.in); got != tt.want {
				t.Errorf("DetectDelimiter(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTokenize_QuotedDelimiter(t *testing.T) {
	table, err := Parse("name;street\n\"Acme; Inc\";\"Main St; 5\"\n")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	row := table.Rows[0]
	if len(row) != 2 {
		t.Fatalf("fields = %d, want 2 (quoted delimiter must not split)", len(row))
	}
	if row[0] != "Acme; Inc" {
		t.Errorf("field[0] = %q, want %q", row[0], "Acme; Inc")
	}
	if row[1] != "Main St; 5" {
		t.Errorf("field[1] = %q, want %q", row[1], "Main St; 5")
	}
}

func TestTokenize_FieldsTrimmed(t *testing.T) {
	table, err := Parse("a;b\n  spaced  ; tabbed\t\n")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	row := table.Rows[0]
	if row[0] != "spaced" || row[1] != "tabbed" {
		t.Errorf("row = %v, want trimmed fields", row)
	}
}

func TestTokenize_UnbalancedQuoteBestEffort(t *testing.T) {
	// A dangling quote absorbs the rest of the line instead of failing.
	table, err := Parse("a;b\n\"broken;field\n1;2\n")
	if err != nil {
		t.Fatalf("Parse() error = %v (one bad row must not abort the file)", err)
	}
	if got := len(table.Rows); got != 2 {
		t.Fatalf("rows = %d, want 2", got)
	}
	if got := len(table.Rows[0]); got != 1 {
		t.Errorf("bad row fields = %d, want 1 (quote absorbs delimiter)", got)
	}
	if got := len(table.Rows[1]); got != 2 {
		t.Errorf("following row fields = %d, want 2", got)
	}
}

func TestParse_Preview(t *testing.T) {
	var b strings.Builder
	b.WriteString("name;city\n")
	for i := 0; i < 8; i++ {
		b.WriteString("Acme;Berlin\n")
	}

	table, err := Parse(b.String())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := len(table.Preview); got != PreviewRows {
		t.Fatalf("preview = %d lines, want %d", got, PreviewRows)
	}
	// Preview holds the raw line, not tokenized fields.
	if table.Preview[0] != "Acme;Berlin" {
		t.Errorf("preview[0] = %q, want verbatim line", table.Preview[0])
	}
}

func TestParse_PreviewShortFile(t *testing.T) {
	table, err := Parse("a;b\n1;2\n3;4\n")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := len(table.Preview); got != 2 {
		t.Errorf("preview = %d lines, want 2", got)
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"valid passthrough", "Grüße, Müller", "Grüße, Müller"},
		{"invalid byte replaced", "Acme\xff GmbH", "Acme� GmbH"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.in); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
