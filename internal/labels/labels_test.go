package labels

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestResolve_Static(t *testing.T) {
	r := NewStaticResolver([]string{"V", "A"})

	tests := []struct {
		index int
		want  string
	}{
		{0, "В"},
		{1, "А"},
		{5, "5"},
		{-1, "-1"},
	}

	for _, tt := range tests {
		if got := r.Resolve(tt.index); got != tt.want {
			t.Errorf("Resolve(%d) = %q, want %q", tt.index, got, tt.want)
		}
	}
}

func TestTransliterate(t *testing.T) {
	tests := []struct {
		label string
		want  string
	}{
		{"V", "В"},
		{"ya", "Я"},
		{"Sh", "Ш"},
		{"CH", "Ч"},
		{"YU", "Ю"},
		{"U", "И"},
		{"I", "І"},
		{"Q", "Q"},
		{"space", "space"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Transliterate(tt.label); got != tt.want {
			t.Errorf("Transliterate(%q) = %q, want %q", tt.label, got, tt.want)
		}
	}
}

func TestResolve_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.csv")
	content := "\ufeffA\r\nB\r\n\r\n  YA  \nQ\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write labels: %v", err)
	}

	r := NewResolver(path, nil)

	if diff := cmp.Diff([]string{"A", "B", "YA", "Q"}, r.Labels()); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}

	got := []string{r.Resolve(0), r.Resolve(1), r.Resolve(2), r.Resolve(3), r.Resolve(4)}
	if diff := cmp.Diff([]string{"А", "Б", "Я", "Q", "4"}, got); diff != "" {
		t.Errorf("resolved mismatch (-want +got):\n%s", diff)
	}
	if r.Err() != nil {
		t.Errorf("unexpected error: %v", r.Err())
	}
}

func TestResolve_LoadedOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.csv")
	if err := os.WriteFile(path, []byte("V\n"), 0644); err != nil {
		t.Fatalf("failed to write labels: %v", err)
	}

	r := NewResolver(path, nil)
	if got := r.Resolve(0); got != "В" {
		t.Fatalf("Resolve(0) = %q, want В", got)
	}

	if err := os.WriteFile(path, []byte("A\n"), 0644); err != nil {
		t.Fatalf("failed to rewrite labels: %v", err)
	}
	if got := r.Resolve(0); got != "В" {
		t.Errorf("table should be cached, got %q", got)
	}
}

func TestResolve_MissingFile(t *testing.T) {
	r := NewResolver(filepath.Join(t.TempDir(), "none.csv"), nil)

	if got := r.Resolve(0); got != "0" {
		t.Errorf("Resolve(0) = %q, want 0", got)
	}
	if got := r.Resolve(12); got != "12" {
		t.Errorf("Resolve(12) = %q, want 12", got)
	}
	if !errors.Is(r.Err(), ErrLabelsMissing) {
		t.Errorf("expected ErrLabelsMissing, got %v", r.Err())
	}
}

func TestParse(t *testing.T) {
	got, err := Parse(strings.NewReader("A\n\nB\n   \nC"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if diff := cmp.Diff([]string{"A", "B", "C"}, got); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}

	got, err = Parse(strings.NewReader(""))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no labels, got %v", got)
	}
}
