package tenant

import (
	"net"
	"strings"
)

// DefaultTenantID is the tenant served when a request host matches nothing.
const DefaultTenantID = "api"

// Tenant identifies one isolated logical backend sharing the platform.
type Tenant struct {
	ID      string `json:"id"`
	Default bool   `json:"default"`
}

// Resolver maps inbound request hosts to tenants. Resolution is pure and
// total: any input that matches nothing falls back to the default tenant.
type Resolver struct {
	domainSuffix    string // e.g. ".hivebase.io", matched against the request host
	defaultTenantID string
}

// NewResolver creates a resolver for the platform domain. An empty suffix
// disables host matching: only explicit tenant ids resolve, everything else
// is the default tenant. An empty defaultTenantID falls back to
// DefaultTenantID.
func NewResolver(domainSuffix, defaultTenantID string) *Resolver {
	if defaultTenantID == "" {
		defaultTenantID = DefaultTenantID
	}
	if domainSuffix != "" && !strings.HasPrefix(domainSuffix, ".") {
		domainSuffix = "." + domainSuffix
	}
	return &Resolver{domainSuffix: domainSuffix, defaultTenantID: defaultTenantID}
}

// Resolve maps a request host or an explicit tenant id to a Tenant.
// "acme.hivebase.io" resolves to tenant "acme"; a bare label like "acme" is
// taken as an explicit tenant id; anything else is the default tenant.
func (r *Resolver) Resolve(hostOrID string) Tenant {
	input := strings.ToLower(strings.TrimSpace(hostOrID))

	if host, _, err := net.SplitHostPort(input); err == nil {
		input = host
	}

	if input == "" {
		return r.Default()
	}

	if r.domainSuffix != "" && strings.HasSuffix(input, r.domainSuffix) {
		id := strings.TrimSuffix(input, r.domainSuffix)
		if isValidTenantID(id) && id != r.defaultTenantID {
			return Tenant{ID: id}
		}
		return r.Default()
	}

	// A bare label is an explicit tenant id, e.g. from a CLI or a test.
	if isValidTenantID(input) && input != r.defaultTenantID {
		return Tenant{ID: input}
	}

	return r.Default()
}

// Default returns the platform-default tenant.
func (r *Resolver) Default() Tenant {
	return Tenant{ID: r.defaultTenantID, Default: true}
}

// isValidTenantID accepts a single lowercase DNS label: letters, digits and
// dashes, starting with a letter.
func isValidTenantID(s string) bool {
	if len(s) == 0 || len(s) > 63 {
		return false
	}
	if s[0] < 'a' || s[0] > 'z' {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '-' {
			continue
		}
		return false
	}
	return true
}
