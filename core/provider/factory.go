package provider

import (
	"context"
	"log"
	"time"
)

// Factory resolves a SignatureProvider from the per-tenant provider name.
// Unknown names and rich-provider initialization failures fall back to the
// basic provider instead of failing the request.
type Factory struct {
	richURL string
	richKey string
	timeout time.Duration
	basic   *BasicProvider
}

func NewFactory(richURL, richKey string, timeout time.Duration) *Factory {
	return &Factory{
		richURL: richURL,
		richKey: richKey,
		timeout: timeout,
		basic:   NewBasicProvider(),
	}
}

// Basic returns the shared basic provider instance.
func (f *Factory) Basic() *BasicProvider {
	return f.basic
}

// Resolve returns the provider for name.
func (f *Factory) Resolve(name string) SignatureProvider {
	switch name {
	case "rich":
		rich, err := NewRichProvider(f.richURL, f.richKey, f.timeout)
		if err != nil {
			log.Printf("[PROVIDER] rich provider unavailable (%v), falling back to basic", err)
			return f.basic
		}
		return &fallbackProvider{primary: rich, fallback: f.basic}
	case "basic", "":
		return f.basic
	default:
		log.Printf("[PROVIDER] unknown provider %q, falling back to basic", name)
		return f.basic
	}
}

// fallbackProvider substitutes the basic provider transparently when the
// primary back-end is unreachable at request time.
type fallbackProvider struct {
	primary  SignatureProvider
	fallback *BasicProvider
}

func (p *fallbackProvider) Name() string { return p.primary.Name() }

func (p *fallbackProvider) CreateSignatureRequest(ctx context.Context, doc Document, recipients []Recipient) (RequestHandle, error) {
	handle, err := p.primary.CreateSignatureRequest(ctx, doc, recipients)
	if err == nil {
		return handle, nil
	}
	log.Printf("[PROVIDER] %s create failed (%v), substituting basic provider", p.primary.Name(), err)
	return p.fallback.CreateSignatureRequest(ctx, doc, recipients)
}

func (p *fallbackProvider) GetSignatureStatus(ctx context.Context, requestID string) (StatusInfo, error) {
	info, err := p.primary.GetSignatureStatus(ctx, requestID)
	if err == nil {
		return info, nil
	}
	return p.fallback.GetSignatureStatus(ctx, requestID)
}

var _ SignatureProvider = (*fallbackProvider)(nil)
