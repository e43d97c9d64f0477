package main

import (
	"context"
	"log"
	"time"

	"github.com/bpeel/verda-sxtelo-sub002/internal/registry"
)

// RunMetrics logs registry stats every interval until ctx is canceled.
func RunMetrics(ctx context.Context, reg *registry.Registry, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			players, conversations := reg.NPlayers(), reg.NConversations()
			if players > 0 || conversations > 0 {
				log.Printf("[metrics] players=%d conversations=%d", players, conversations)
			}
		}
	}
}
