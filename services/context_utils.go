package services

import "context"

// persistentContext keeps the values of ctx but drops its cancellation, for
// cleanup that must finish after the request is gone.
func persistentContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return context.WithoutCancel(ctx)
}
