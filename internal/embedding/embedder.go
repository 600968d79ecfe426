package embedding

import (
	"context"

	"go.uber.org/zap"

	"cleanrag/internal/logging"
)

// Embedder converts free text into a numeric vector representation using a
// remote embedding service.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Vector is the result of a fail-soft embedding call. An empty vector means
// retrieval is unavailable for this request.
type Vector struct {
	Values []float32
}

// Available reports whether the embedding call produced a usable vector.
func (v Vector) Available() bool { return len(v.Values) > 0 }

// Adapter wraps an Embedder and absorbs its failures. It never retries.
type Adapter struct {
	impl   Embedder
	logger *zap.Logger
}

func NewAdapter(impl Embedder, logger *zap.Logger) *Adapter {
	return &Adapter{impl: impl, logger: logging.OrNop(logger)}
}

// Embed returns the embedding for text, or an empty Vector if the provider
// fails for any reason.
func (a *Adapter) Embed(ctx context.Context, text string) Vector {
	if a == nil || a.impl == nil {
		return Vector{}
	}
	values, err := a.impl.Embed(ctx, text)
	if err != nil {
		a.logger.Warn("embedding unavailable, skipping vector search",
			zap.String("embedder", a.impl.Name()),
			zap.Error(err),
		)
		return Vector{}
	}
	if len(values) == 0 {
		a.logger.Warn("embedding provider returned an empty vector", zap.String("embedder", a.impl.Name()))
		return Vector{}
	}
	return Vector{Values: values}
}
