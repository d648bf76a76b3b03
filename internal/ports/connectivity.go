package ports

import "context"

// ConnectivityGate answers whether a network path is currently available.
// It is consulted before every drain, never owned by the engine.
type ConnectivityGate interface {
	HasInternet(ctx context.Context) bool
}
