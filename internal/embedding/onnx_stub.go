//go:build !onnx

package embedding

import (
	"context"
	"errors"
)

// ONNXAvailable reports whether the binary was built with ONNX support.
const ONNXAvailable = false

var errONNXUnavailable = errors.New("ONNX embedder requires building with -tags onnx and the onnxruntime library")

// ONNXEmbedder is unavailable without the onnx build tag (see onnx.go).
type ONNXEmbedder struct{}

// NewONNXEmbedder always fails without the onnx build tag.
func NewONNXEmbedder(_ string, _, _ int) (*ONNXEmbedder, error) {
	return nil, errONNXUnavailable
}

func (e *ONNXEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errONNXUnavailable
}

func (e *ONNXEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, errONNXUnavailable
}

func (e *ONNXEmbedder) Dimensions() int { return 0 }

func (e *ONNXEmbedder) Close() error { return nil }
