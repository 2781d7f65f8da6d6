package classifier

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// RunnerScriptName is the interpreter helper looked up by sidecar.FindScript.
const RunnerScriptName = "tflite_runner.py"

// Caller sends one framed request and returns one reply line.
// *sidecar.Process satisfies it.
type Caller interface {
	Call(payload []byte) ([]byte, error)
	Close() error
}

// ServiceRunner serves the run convention through an interpreter helper process.
// The request is the input as little-endian float32 bytes. The reply is a JSON
// array, or a JSON object keyed by output tensor name whose first key is used.
type ServiceRunner struct {
	proc Caller
}

// NewServiceRunner wraps a helper process.
func NewServiceRunner(proc Caller) *ServiceRunner {
	return &ServiceRunner{proc: proc}
}

// Run sends one input buffer and decodes the reply.
func (r *ServiceRunner) Run(ctx context.Context, input []float32) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reply, err := r.proc.Call(encodeFloat32(input))
	if err != nil {
		return nil, fmt.Errorf("runner call: %w", err)
	}
	return decodeRunReply(reply)
}

// Close stops the helper process.
func (r *ServiceRunner) Close() error {
	return r.proc.Close()
}

func encodeFloat32(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

// decodeRunReply resolves the reply shape once: a bare array is used as is,
// an object yields its first field in document order. A leading "error" field
// is reported as a failure.
func decodeRunReply(line []byte) ([]float32, error) {
	dec := json.NewDecoder(bytes.NewReader(line))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("decode runner reply: %w", err)
	}

	switch tok {
	case json.Delim('['):
		return decodeTensor(line)

	case json.Delim('{'):
		if !dec.More() {
			return nil, errors.New("runner reply has no outputs")
		}
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decode runner reply: %w", err)
		}
		key, _ := keyTok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode output %q: %w", key, err)
		}

		if key == "error" {
			var msg string
			if err := json.Unmarshal(raw, &msg); err != nil {
				msg = string(raw)
			}
			return nil, fmt.Errorf("runner: %s", msg)
		}
		return decodeTensor(raw)

	default:
		return nil, fmt.Errorf("unexpected runner reply %q", line)
	}
}

// decodeTensor accepts a flat array, a batch of one or a lone number for a
// single-class output.
func decodeTensor(raw []byte) ([]float32, error) {
	var flat []float32
	if err := json.Unmarshal(raw, &flat); err == nil {
		return flat, nil
	}

	var single float32
	if err := json.Unmarshal(raw, &single); err == nil {
		return []float32{single}, nil
	}

	var batch [][]float32
	if err := json.Unmarshal(raw, &batch); err != nil {
		return nil, fmt.Errorf("decode output tensor: %w", err)
	}
	if len(batch) == 0 {
		return nil, errors.New("empty output batch")
	}
	return batch[0], nil
}
