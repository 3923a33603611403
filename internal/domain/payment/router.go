// internal/domain/payment/router.go
package payment

import (
	"fmt"
)

// Router dispatches payment operations to the gateway configured for a
// method type. Registration is wiring-time only; lookups are read-only.
type Router struct {
	byMethod   map[MethodType]Gateway
	byProvider map[string]Gateway
}

// NewRouter creates an empty gateway router
func NewRouter() *Router {
	return &Router{
		byMethod:   make(map[MethodType]Gateway),
		byProvider: make(map[string]Gateway),
	}
}

// Register binds a method type to a gateway. The gateway must actually
// support the method; misconfiguration fails at startup, not at charge time.
func (r *Router) Register(method MethodType, gw Gateway) error {
	if !gw.Supports(method) {
		return &UnsupportedCapabilityError{
			Provider:   gw.Info().Provider,
			Capability: string(method),
		}
	}
	r.byMethod[method] = gw
	r.byProvider[gw.Info().Provider] = gw
	return nil
}

// GatewayFor returns the gateway handling a method type
func (r *Router) GatewayFor(method MethodType) (Gateway, error) {
	gw, ok := r.byMethod[method]
	if !ok {
		return nil, fmt.Errorf("no gateway registered for method %s", method)
	}
	return gw, nil
}

// GatewayByProvider returns the gateway for a provider name. Webhooks are
// addressed by provider, not by method.
func (r *Router) GatewayByProvider(provider string) (Gateway, error) {
	gw, ok := r.byProvider[provider]
	if !ok {
		return nil, fmt.Errorf("no gateway registered for provider %s", provider)
	}
	return gw, nil
}
