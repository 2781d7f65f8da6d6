// Package labels maps classifier output indices to display letters.
package labels

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
)

// ErrLabelsMissing is logged when the label table cannot be read.
var ErrLabelsMissing = errors.New("label table missing")

// translit maps Latin model labels to the Cyrillic letters they stand for.
var translit = map[string]string{
	"V":  "В",
	"Y":  "У",
	"R":  "Р",
	"A":  "А",
	"YA": "Я",
	"N":  "Н",
	"I":  "І",
	"T":  "Т",
	"U":  "И",
	"P":  "П",
	"G":  "Г",
	"E":  "Е",
	"Z":  "Ж",
	"L":  "Л",
	"M":  "М",
	"O":  "О",
	"C":  "С",
	"F":  "Ф",
	"SH": "Ш",
	"YU": "Ю",
	"X":  "Х",
	"CH": "Ч",
	"B":  "Б",
}

// Transliterate upper-cases a model label and returns its letter. Labels
// without a mapping are returned unchanged.
func Transliterate(label string) string {
	if letter, ok := translit[strings.ToUpper(label)]; ok {
		return letter
	}
	return label
}

// Resolver turns class indices into letters. The table is read once, on the
// first Resolve, and kept for the resolver's lifetime.
type Resolver struct {
	path   string
	logger *slog.Logger

	once   sync.Once
	labels []string
	err    error
}

// NewResolver creates a resolver backed by a label file. Nothing is read until
// the first Resolve.
func NewResolver(path string, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{path: path, logger: logger.With("component", "labels")}
}

// NewStaticResolver creates a resolver over an in-memory table.
func NewStaticResolver(labels []string) *Resolver {
	r := &Resolver{labels: labels, logger: slog.Default()}
	r.once.Do(func() {})
	return r
}

// Resolve returns the letter for a class index. An index outside the table,
// or any index when the table could not be read, resolves to its decimal form.
func (r *Resolver) Resolve(classIndex int) string {
	r.once.Do(r.load)

	if classIndex < 0 || classIndex >= len(r.labels) {
		return strconv.Itoa(classIndex)
	}
	return Transliterate(r.labels[classIndex])
}

// Labels returns the loaded table.
func (r *Resolver) Labels() []string {
	r.once.Do(r.load)
	return r.labels
}

// Err reports why the table could not be loaded, if it could not.
func (r *Resolver) Err() error {
	r.once.Do(r.load)
	return r.err
}

func (r *Resolver) load() {
	f, err := os.Open(r.path)
	if err != nil {
		r.err = fmt.Errorf("%w: %v", ErrLabelsMissing, err)
		r.logger.Warn("labels unavailable, using class indices", "path", r.path, "error", err)
		return
	}
	defer f.Close()

	labels, err := Parse(f)
	if err != nil {
		r.err = fmt.Errorf("%w: %v", ErrLabelsMissing, err)
		r.logger.Warn("labels unreadable, using class indices", "path", r.path, "error", err)
		return
	}

	r.labels = labels
	r.logger.Debug("labels loaded", "path", r.path, "count", len(labels))
}

// Parse reads one label per line. Lines are trimmed, blank lines are dropped
// and a leading UTF-8 byte order mark is removed.
func Parse(rd io.Reader) ([]string, error) {
	var labels []string

	sc := bufio.NewScanner(rd)
	first := true
	for sc.Scan() {
		line := sc.Text()
		if first {
			line = strings.TrimPrefix(line, "\ufeff")
			first = false
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		labels = append(labels, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return labels, nil
}
