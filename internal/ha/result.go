package ha

import "context"

// Result is the outcome of a Home Assistant service call. Protocol-level
// failures (rejected calls, auth problems) are folded into Result rather than
// returned as errors; the bridge only reads Success and the error fields.
type Result struct {
	// Success reports whether Home Assistant accepted the call.
	Success bool
	// ErrorCode is the machine-readable failure code, empty on success.
	ErrorCode string
	// ErrorMessage is the human-readable failure description, empty on success.
	ErrorMessage string
}

// AddProductRequest describes one product addition.
type AddProductRequest struct {
	// ProductID is the store product identifier, e.g. "s1018231".
	ProductID string
	// Amount is the quantity to add.
	Amount int
	// ConfigEntryID selects the account for multi-account setups, optional.
	ConfigEntryID string
}

// Dispatcher is the outbound action surface consumed by the dispatch loop.
// Client implements it against the Home Assistant websocket API; tests and
// the --test mode substitute fakes.
type Dispatcher interface {
	// AddProduct adds a product to the shopping basket.
	AddProduct(ctx context.Context, req AddProductRequest) *Result
	// Announce speaks a message on an assist satellite device.
	// An empty deviceID leaves the target up to Home Assistant.
	Announce(ctx context.Context, message, deviceID string, preannounce bool) *Result
}
