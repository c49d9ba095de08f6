package observe

import (
	"context"

	"github.com/podforge-ai/podforge/pkg/provider/llm"
)

// InstrumentedLLM wraps an [llm.Provider] and counts every completion call
// in [Metrics.ProviderRequests] and [Metrics.ProviderErrors], labelled with
// the provider name.
type InstrumentedLLM struct {
	next    llm.Provider
	name    string
	metrics *Metrics
}

// InstrumentLLM wraps provider so its completion calls are counted under
// name. A nil metrics uses [DefaultMetrics].
func InstrumentLLM(name string, provider llm.Provider, metrics *Metrics) *InstrumentedLLM {
	if metrics == nil {
		metrics = DefaultMetrics()
	}
	return &InstrumentedLLM{next: provider, name: name, metrics: metrics}
}

// Complete delegates to the wrapped provider and records the call outcome.
func (p *InstrumentedLLM) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	resp, err := p.next.Complete(ctx, req)
	p.metrics.RecordProviderCall(ctx, p.name, "complete", err)
	return resp, err
}

// CountTokens delegates without counting; token estimation is local
// arithmetic, not a hosted-service call.
func (p *InstrumentedLLM) CountTokens(messages []llm.Message) (int, error) {
	return p.next.CountTokens(messages)
}

// Capabilities delegates to the wrapped provider.
func (p *InstrumentedLLM) Capabilities() llm.ModelCapabilities {
	return p.next.Capabilities()
}

// Ensure InstrumentedLLM implements llm.Provider at compile time.
var _ llm.Provider = (*InstrumentedLLM)(nil)
