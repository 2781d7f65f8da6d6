package classifier

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// NetModel serves the predict convention from an OpenCV DNN network.
// OpenCV picks the importer from the file extension (.tflite, .onnx, .pb).
type NetModel struct {
	mu  sync.Mutex
	net gocv.Net
}

// OpenNet reads a network from disk.
func OpenNet(path string) (*NetModel, error) {
	net := gocv.ReadNet(path, "")
	if net.Empty() {
		net.Close()
		return nil, fmt.Errorf("opencv dnn cannot read %s", path)
	}
	return &NetModel{net: net}, nil
}

// Predict runs a forward pass. The caller owns and must close the returned Mat.
func (m *NetModel) Predict(input gocv.Mat) (*gocv.Mat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.net.SetInput(input, "")
	out := m.net.Forward("")
	if out.Empty() {
		out.Close()
		return nil, fmt.Errorf("forward pass produced no output")
	}
	return &out, nil
}

// Close releases the network.
func (m *NetModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.net.Close()
}
