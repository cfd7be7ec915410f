package idlist

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []int64
		wantErr bool
	}{
		{
			name:  "simple list",
			input: "100\n200\n300\n",
			want:  []int64{100, 200, 300},
		},
		{
			name:  "order preserved",
			input: "300\n100\n200\n",
			want:  []int64{300, 100, 200},
		},
		{
			name:  "duplicates collapse to first occurrence",
			input: "100\n200\n100\n300\n200\n",
			want:  []int64{100, 200, 300},
		},
		{
			name:  "blank lines and whitespace",
			input: "  100  \n\n\t200\n",
			want:  []int64{100, 200},
		},
		{
			name:  "missing trailing newline",
			input: "100\n200",
			want:  []int64{100, 200},
		},
		{
			name:  "empty input",
			input: "",
			want:  nil,
		},
		{
			name:    "non-numeric line",
			input:   "100\nabc\n",
			wantErr: true,
		},
		{
			name:    "negative id",
			input:   "-5\n",
			wantErr: true,
		},
		{
			name:    "float id",
			input:   "1.5\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(strings.NewReader(tt.input))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Parse() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseErrorNamesLine(t *testing.T) {
	_, err := Parse(strings.NewReader("1\n2\noops\n"))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "line 3") {
		t.Errorf("error should name line 3: %v", err)
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relations.txt")
	if err := os.WriteFile(path, []byte("42\n7\n"), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := ParseFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got, []int64{42, 7}) {
		t.Errorf("ParseFile() = %v, want [42 7]", got)
	}

	if _, err := ParseFile(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}
