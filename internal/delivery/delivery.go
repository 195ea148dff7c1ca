// Package delivery holds the long-running entry points of a process.
package delivery

import "context"

// Delivery is a server started by the fx application. Serve blocks until the
// server stops.
type Delivery interface {
	Serve(ctx context.Context) error
}
