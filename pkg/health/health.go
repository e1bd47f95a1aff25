// Package health implements the candidate health checker (C9, spec
// §4.8.2): a concurrent settle-all fan-out over candidate endpoints, with
// write-back to the durable processor store.
package health

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/agentbus/core/pkg/apierrors"
	"github.com/agentbus/core/pkg/models"
	"github.com/agentbus/core/pkg/ports"
)

// Checker probes candidate processors concurrently and reports which are
// healthy, grounded on the teacher's sync.WaitGroup fan-out idiom in
// pkg/queue/pool.go (the teacher imports no errgroup anywhere).
type Checker struct {
	prober     ports.HTTPProber
	processors ports.ProcessorStore
	timeout    time.Duration
}

func New(prober ports.HTTPProber, processors ports.ProcessorStore, timeout time.Duration) *Checker {
	return &Checker{prober: prober, processors: processors, timeout: timeout}
}

// Filter probes every candidate concurrently and returns the subset that
// responded 2xx. Failures, write-backs, and logging happen per-candidate;
// none of them abort the group (spec §5 "settle-all").
func (c *Checker) Filter(ctx context.Context, candidates []*models.Processor) []*models.Processor {
	healthy := make([]*models.Processor, len(candidates))
	var wg sync.WaitGroup
	for i, p := range candidates {
		wg.Add(1)
		go func(i int, p *models.Processor) {
			defer wg.Done()
			if c.probeAndRecord(ctx, p) {
				healthy[i] = p
			}
		}(i, p)
	}
	wg.Wait()

	out := make([]*models.Processor, 0, len(candidates))
	for _, p := range healthy {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

// probeAndRecord issues one probe and writes back a status change (or
// always, when currently Unhealthy, to bump LastCheckedAt — spec §4.8.2).
func (c *Checker) probeAndRecord(ctx context.Context, p *models.Processor) bool {
	url := healthURL(p.EndpointURL)
	err := c.prober.Probe(ctx, url, c.timeout)
	now := time.Now()

	newStatus := models.ProcessorStatusActive
	if err != nil {
		newStatus = models.ProcessorStatusUnhealthy
		logProbeFailure(p.ProcessorID, url, err)
	}

	if newStatus != p.Status || p.Status == models.ProcessorStatusUnhealthy {
		if updateErr := c.processors.UpdateHealth(ctx, p.ProcessorID, newStatus, now); updateErr != nil {
			// Health-check-induced DB failures never fail the outer operation
			// (spec §4.8.2).
			slog.Warn("health: failed writing back processor status", "processor_id", p.ProcessorID, "error", updateErr)
		}
	}

	return err == nil
}

// healthURL appends "/health" to endpoint if it isn't already present.
func healthURL(endpoint string) string {
	trimmed := strings.TrimRight(endpoint, "/")
	if strings.HasSuffix(trimmed, "/health") {
		return trimmed
	}
	return trimmed + "/health"
}

// logProbeFailure logs the probe failure reason — timeout vs non-2xx vs
// transport, as distinguished by httpprober's apierrors.Name (spec §4.8.2).
func logProbeFailure(processorID, url string, err error) {
	reason := "transport"
	if ae, ok := apierrors.As(err); ok {
		reason = ae.Name
	}
	slog.Warn("health: candidate probe failed", "processor_id", processorID, "url", url, "reason", reason, "error", err)
}
