package settlement

import (
	"context"
	"time"
)

// ObservedClient records metrics around every transfer attempt.
type ObservedClient struct {
	client  Transferer
	metrics Metrics
}

// NewObservedClient wraps client with metrics.
func NewObservedClient(client Transferer, metrics Metrics) *ObservedClient {
	return &ObservedClient{
		client:  client,
		metrics: metrics,
	}
}

// Transfer delegates to the wrapped client.
func (c *ObservedClient) Transfer(ctx context.Context, req TransferRequest) (res Result) {
	started := time.Now()
	defer func() {
		c.metrics.Observe(string(req.Mode()), res.Outcome(), started)
	}()
	return c.client.Transfer(ctx, req)
}
