package gateway

import (
	"fmt"

	"github.com/gobwas/glob"
)

// URLPolicy decides which target URLs the gateway will accept. Deny
// patterns are checked first; with a non-empty allow list a URL must match
// at least one allow pattern.
type URLPolicy struct {
	allow []glob.Glob
	deny  []glob.Glob
}

// NewURLPolicy compiles allow and deny glob patterns.
func NewURLPolicy(allow, deny []string) (*URLPolicy, error) {
	p := &URLPolicy{}

	for _, pattern := range allow {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid allow pattern %q: %w", pattern, err)
		}
		p.allow = append(p.allow, g)
	}
	for _, pattern := range deny {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid deny pattern %q: %w", pattern, err)
		}
		p.deny = append(p.deny, g)
	}
	return p, nil
}

// Permits reports whether url passes the policy.
func (p *URLPolicy) Permits(url string) bool {
	for _, g := range p.deny {
		if g.Match(url) {
			return false
		}
	}
	if len(p.allow) == 0 {
		return true
	}
	for _, g := range p.allow {
		if g.Match(url) {
			return true
		}
	}
	return false
}
