package cache

// ScopedKeyer prefixes every key of an inner Keyer. Replay sessions use it so
// their artifacts can be told apart and dropped together.
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer returns a keyer that prepends prefix to inner's keys.
// A nil inner selects the default keyer.
//
//	k := NewScopedKeyer(nil, "session:"+sess.ID+":")
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

func (k *ScopedKeyer) ArtifactKey(sourceHash string, opts ArtifactKeyOpts) string {
	return k.prefix + k.inner.ArtifactKey(sourceHash, opts)
}
