package cache

// ScopedKeyer wraps a Keyer with a prefix. depfix scopes keys by a hash of
// the repository root so that two checkouts sharing one Redis instance or
// cache directory never read each other's resolutions.
//
// Example usage:
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "repo:"+Hash([]byte(root))[:16]+":")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// RepoKeyer returns the keyer used for the repository rooted at root.
func RepoKeyer(root string) Keyer {
	return NewScopedKeyer(nil, "repo:"+Hash([]byte(root))[:16]+":")
}

// ResolutionKey generates a prefixed key for a resolution.
func (k *ScopedKeyer) ResolutionKey(raw string) string {
	return k.prefix + k.inner.ResolutionKey(raw)
}
