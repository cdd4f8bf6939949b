package invoker

import (
	"context"

	"github.com/oriys/lambdaburst/internal/domain"
)

// Invoker abstracts a single remote function call so the batch driver can
// run against Lambda or against an in-process fake.
type Invoker interface {
	Invoke(ctx context.Context, req *domain.InvokeRequest) (*domain.InvokeResult, error)
}

// Func adapts an ordinary function to the Invoker interface.
type Func func(ctx context.Context, req *domain.InvokeRequest) (*domain.InvokeResult, error)

// Invoke calls f(ctx, req).
func (f Func) Invoke(ctx context.Context, req *domain.InvokeRequest) (*domain.InvokeResult, error) {
	return f(ctx, req)
}
