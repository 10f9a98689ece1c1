package bridge

import (
	"context"

	"github.com/pianohome/keynote-bridge/internal/ha"
	"github.com/pianohome/keynote-bridge/internal/logger"
)

// LogDispatcher is the test-mode stand-in for the Home Assistant client: it
// logs every would-be service call and reports success, so the full gate
// pipeline can be rehearsed on a real keyboard without spending money.
type LogDispatcher struct{}

// AddProduct logs the would-be picnic.add_product call.
func (LogDispatcher) AddProduct(ctx context.Context, req ha.AddProductRequest) *ha.Result {
	logger.InfoKV(ctx, "[test mode] picnic.add_product",
		"product_id", req.ProductID, "amount", req.Amount, "config_entry_id", req.ConfigEntryID)

	return &ha.Result{Success: true}
}

// Announce logs the would-be assist_satellite.announce call.
func (LogDispatcher) Announce(ctx context.Context, message, deviceID string, preannounce bool) *ha.Result {
	logger.InfoKV(ctx, "[test mode] assist_satellite.announce",
		"message", message, "device_id", deviceID, "preannounce", preannounce)

	return &ha.Result{Success: true}
}
