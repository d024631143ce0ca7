package cache

// ScopedKeyer wraps a Keyer with a prefix so that several catalogues can
// share one Redis instance without their manifests colliding.
//
// Example usage:
//
//	k := NewScopedKeyer(NewDefaultKeyer(), "cluster-a:")
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

// ConversionKey generates a prefixed conversion key.
func (k *ScopedKeyer) ConversionKey(fp Fingerprint, opts ConversionKeyOpts) string {
	return k.prefix + k.inner.ConversionKey(fp, opts)
}
