package tours

import (
	"context"

	"go.uber.org/zap"
)

// IsHealthy reports whether the provider should be consulted. A disabled
// provider is never healthy. With probing on, the result of a short
// liveness request is reused for HealthTTL.
func (p *Provider) IsHealthy(ctx context.Context) bool {
	if !p.cfg.Enabled {
		return false
	}
	if !p.cfg.HealthProbe {
		return true
	}

	p.healthMu.Lock()
	defer p.healthMu.Unlock()

	now := p.now()
	if !p.checkedAt.IsZero() && now.Sub(p.checkedAt) < p.cfg.HealthTTL {
		return p.healthy
	}

	probeCtx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()

	err := p.client.Probe(probeCtx)
	if ctx.Err() != nil {
		// caller went away; do not record a verdict
		return p.healthy
	}
	p.healthy = err == nil
	p.checkedAt = now
	if err != nil {
		p.logger.Warn("tours.health.probe_failed", zap.Error(err))
	}
	return p.healthy
}
