package connector

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestReplacePlaceholders(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		count int
	}{
		{
			name:  "basic case",
			input: "SELECT * FROM Table WHERE ID = ?",
			want:  "SELECT * FROM Table WHERE ID = $1",
			count: 1,
		},
		{
			name:  "multiple variables",
			input: "SELECT * FROM Table WHERE ID = ? AND Name = ?",
			want:  "SELECT * FROM Table WHERE ID = $1 AND Name = $2",
			count: 2,
		},
		{
			name:  "question mark inside literal",
			input: "SELECT * FROM Table WHERE ID = ? AND Name = ? AND Content = '<p>What is love?</p>'",
			want:  "SELECT * FROM Table WHERE ID = $1 AND Name = $2 AND Content = '<p>What is love?</p>'",
			count: 2,
		},
		{
			name:  "backslash escaped quote",
			input: `SELECT * FROM Table WHERE ID = ? AND Title = '\'' AND Content = '<p>What is love?</p>' AND Name = ?`,
			want:  `SELECT * FROM Table WHERE ID = $1 AND Title = '\'' AND Content = '<p>What is love?</p>' AND Name = $2`,
			count: 2,
		},
		{
			name:  "doubled quote escape",
			input: "SELECT * FROM Table WHERE ID = ? AND Title = '''' AND Content = '<p>What is love?</p>' AND Name = ?",
			want:  "SELECT * FROM Table WHERE ID = $1 AND Title = '''' AND Content = '<p>What is love?</p>' AND Name = $2",
			count: 2,
		},
		{
			name:  "doubled quote next to question mark",
			input: "SELECT ? WHERE a = 'it''s ?' AND b = ?",
			want:  "SELECT $1 WHERE a = 'it''s ?' AND b = $2",
			count: 2,
		},
		{
			name:  "escaped backslash closes literal",
			input: `SELECT 'a\\' , ?`,
			want:  `SELECT 'a\\' , $1`,
			count: 1,
		},
		{
			name:  "backslash before placeholder",
			input: `SELECT * FROM t WHERE b = \? AND c = ?`,
			want:  `SELECT * FROM t WHERE b = \$1 AND c = $2`,
			count: 2,
		},
		{
			name:  "backslash inside literal before question mark",
			input: `SELECT 'a\?b', ?`,
			want:  `SELECT 'a\?b', $1`,
			count: 1,
		},
		{
			name:  "adjacent literals",
			input: "SELECT 'x?''y?' || '?', ?",
			want:  "SELECT 'x?''y?' || '?', $1",
			count: 1,
		},
		{
			name:  "no placeholders",
			input: "SELECT 1",
			want:  "SELECT 1",
			count: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, count := ReplacePlaceholders(tt.input)
			if got != tt.want {
				t.Errorf("ReplacePlaceholders() = %q; want %q", got, tt.want)
			}
			if count != tt.count {
				t.Errorf("ReplacePlaceholders() count = %d; want %d", count, tt.count)
			}
		})
	}
}

func TestTranslate(t *testing.T) {
	sql, params, err := Translate("SELECT * FROM t WHERE a = ? AND b = 'contains a ? mark'", []any{1})
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if want := "SELECT * FROM t WHERE a = $1 AND b = 'contains a ? mark'"; sql != want {
		t.Errorf("Translate() sql = %q; want %q", sql, want)
	}
	if diff := cmp.Diff([]any{1}, params); diff != "" {
		t.Errorf("Translate() params mismatch (-want +got):\n%s", diff)
	}
}

func TestTranslateTypedParams(t *testing.T) {
	_, params, err := Translate("SELECT ?, ?", []any{Param{Type: "text", Value: "a"}, &Param{Type: "int", Value: 2}})
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if diff := cmp.Diff([]any{"a", 2}, params); diff != "" {
		t.Errorf("Translate() params mismatch (-want +got):\n%s", diff)
	}
}

func TestTranslateCountMismatch(t *testing.T) {
	if _, _, err := Translate("SELECT ? WHERE x = '?'", []any{1, 2}); err == nil {
		t.Error("Translate() expected error for mismatched parameter count")
	}
}

func TestTogglesLiteral(t *testing.T) {
	tests := []struct {
		fragment string
		want     bool
	}{
		{"SELECT * FROM Table WHERE ID = ", false},
		{" AND Content = '<p>What is love", true},
		{`</p>' AND Title = '\'' AND x = `, true},
		{" AND Title = '''' AND y = ", false},
		{`'a\\'`, false},
	}

	for _, tt := range tests {
		if got := TogglesLiteral(tt.fragment); got != tt.want {
			t.Errorf("TogglesLiteral(%q) = %v; want %v", tt.fragment, got, tt.want)
		}
	}
}

func TestScannerAgreesWithSegmentRule(t *testing.T) {
	inputs := []string{
		"SELECT * FROM Table WHERE ID = ? AND Name = ? AND Content = '<p>What is love?</p>'",
		`SELECT * FROM Table WHERE ID = ? AND Title = '\'' AND Content = '<p>What is love?</p>' AND Name = ?`,
		"SELECT * FROM Table WHERE ID = ? AND Title = '''' AND Content = '<p>What is love?</p>' AND Name = ?",
	}
	for _, input := range inputs {
		_, count := ReplacePlaceholders(input)
		if want := segmentCount(input); count != want {
			t.Errorf("ReplacePlaceholders(%q) count = %d; segment rule gives %d", input, count, want)
		}
	}
}

// segmentCount applies TogglesLiteral to each ?-separated segment.
func segmentCount(sql string) int {
	inString := false
	n := 0
	start := 0
	for i := 0; i < len(sql); i++ {
		if sql[i] != '?' {
			continue
		}
		if TogglesLiteral(sql[start:i]) {
			inString = !inString
		}
		if !inString {
			n++
		}
		start = i + 1
	}
	return n
}
