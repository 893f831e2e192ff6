package main

import (
	"context"
	"time"

	"github.com/waterworm/waterworm/agent/internal/shipper"
)

const flushTimeout = 30 * time.Second

// waitDrained polls until every shipper's buffer is empty or ctx ends.
func waitDrained(ctx context.Context, shippers []*shipper.Shipper) {
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		pending := 0
		for _, s := range shippers {
			pending += s.Pending()
		}
		if pending == 0 {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}
	}
}
