package classifier

import (
	"errors"
	"fmt"
)

// Kind tags which variant of Output is populated.
type Kind int

const (
	// KindError means the strategy failed; Err is set.
	KindError Kind = iota
	// KindSequence means the strategy produced a numeric sequence read out of a tensor.
	KindSequence
	// KindBuffer means the strategy produced a typed float32 buffer.
	KindBuffer
)

func (k Kind) String() string {
	switch k {
	case KindSequence:
		return "sequence"
	case KindBuffer:
		return "buffer"
	default:
		return "error"
	}
}

// Output is the result of one strategy invocation. Exactly one of Sequence,
// Buffer or Err is meaningful, as selected by Kind.
type Output struct {
	Kind     Kind
	Sequence []float64
	Buffer   []float32
	Err      error
}

// SequenceOutput wraps a numeric sequence.
func SequenceOutput(v []float64) Output {
	return Output{Kind: KindSequence, Sequence: v}
}

// BufferOutput wraps a typed buffer.
func BufferOutput(b []float32) Output {
	return Output{Kind: KindBuffer, Buffer: b}
}

// Failed wraps a strategy error.
func Failed(err error) Output {
	if err == nil {
		err = errors.New("unknown failure")
	}
	return Output{Kind: KindError, Err: err}
}

// Scores converts the output to a score vector.
func (o Output) Scores() (Scores, error) {
	var s Scores
	switch o.Kind {
	case KindSequence:
		s = append(Scores(nil), o.Sequence...)
	case KindBuffer:
		s = make(Scores, len(o.Buffer))
		for i, x := range o.Buffer {
			s[i] = float64(x)
		}
	default:
		return nil, o.Err
	}

	if len(s) == 0 {
		return nil, fmt.Errorf("empty %s output", o.Kind)
	}
	return s, nil
}
