package ports

import "context"

// Capability is an external, opaque text-in/text-out collaborator (the
// requirement analyzer or the test case generator). Failures are classified
// with domain.ErrCapabilityUnavailable, domain.ErrCapabilityTimeout, or
// domain.ErrMalformedResponse.
type Capability interface {
	Invoke(ctx context.Context, input, sessionID string) (string, error)
}
