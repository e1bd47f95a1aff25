// Package httpprober implements the ports.HTTPProber capability contract
// over a plain net/http client. The teacher has no equivalent adapter (its
// health checks are all internal DB/process checks, see pkg/database/health.go)
// so this is a justified stdlib implementation — no pack repo wraps
// outbound HTTP health probing in a third-party client, and the stdlib
// client with a per-call context timeout is the idiomatic choice (see
// DESIGN.md).
package httpprober

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/agentbus/core/pkg/apierrors"
)

// Prober implements ports.HTTPProber using a shared *http.Client.
type Prober struct {
	client *http.Client
}

// New builds a Prober. The client's own Timeout is left zero; each Probe
// call derives a per-request deadline from its timeout argument instead, so
// concurrent probes with different timeouts share one client safely.
func New() *Prober {
	return &Prober{client: &http.Client{}}
}

// Probe issues a GET to url and reports success iff the response status is
// 2xx (spec §4.8.2).
func (p *Prober) Probe(ctx context.Context, url string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return apierrors.Wrap(apierrors.KindValidation, "probe_request_invalid", fmt.Sprintf("build probe request for %s", url), err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return apierrors.Wrap(apierrors.KindUnknown, "probe_timeout", fmt.Sprintf("probe %s timed out", url), err)
		}
		return apierrors.Wrap(apierrors.KindUnknown, "probe_transport_failed", fmt.Sprintf("probe %s failed", url), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apierrors.New(apierrors.KindUnknown, "probe_non_2xx", fmt.Sprintf("probe %s returned status %d", url, resp.StatusCode))
	}
	return nil
}
