package cache

// ScopedKeyer wraps a Keyer with a prefix so several users of one shared
// cache do not see each other's entries.
//
//	serverKeyer := NewScopedKeyer(NewDefaultKeyer(), "satie:serve:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer that prepends prefix to every key.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// MeasureKey implements Keyer.
func (k *ScopedKeyer) MeasureKey(measureHash string, opts MeasureKeyOpts) string {
	return k.prefix + k.inner.MeasureKey(measureHash, opts)
}

// DocumentKey implements Keyer.
func (k *ScopedKeyer) DocumentKey(documentHash string, opts DocumentKeyOpts) string {
	return k.prefix + k.inner.DocumentKey(documentHash, opts)
}
