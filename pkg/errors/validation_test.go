package errors

import (
	"strings"
	"testing"
)

func TestValidators(t *testing.T) {
	tests := []struct {
		name  string
		fn    func(string) error
		code  Code
		valid []string
		bad   []string
	}{
		{
			name:  "label",
			fn:    ValidateLabel,
			code:  ErrCodeInvalidLabel,
			valid: []string{"pattern", "tree 1", "graph.v2", "If_0"},
			bad:   []string{"", strings.Repeat("a", 201), "a/b", "..", "a\\b", "a\nb"},
		},
		{
			name:  "path",
			fn:    ValidatePath,
			code:  ErrCodeInvalidPath,
			valid: []string{"src/main.py", "/home/me/pattern.pyt", "code.py"},
			bad:   []string{"", strings.Repeat("p", 501), "../../etc/passwd", "foo\x00bar", "foo\\bar", "foo\nbar"},
		},
		{
			name:  "url",
			fn:    ValidateURL,
			code:  ErrCodeInvalidInput,
			valid: []string{"http://localhost:5000", "https://matcher.example.com"},
			bad:   []string{"", "ftp://x", "localhost:5000"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, in := range tt.valid {
				if err := tt.fn(in); err != nil {
					t.Errorf("%q: unexpected error %v", in, err)
				}
			}
			for _, in := range tt.bad {
				err := tt.fn(in)
				if !Is(err, tt.code) {
					t.Errorf("%q: error = %v, want %s", in, err, tt.code)
				}
			}
		})
	}
}
