package chainmodel

// ChainUpdate is produced by the block pool on every ingested block that
// changes the canonical chain. Rollback enumerates blocks leaving the
// canonical chain in tip-to-base order; Apply enumerates blocks joining it
// in base-to-tip order. Either list may be empty, but a ChainUpdate with
// both empty is never emitted by the pool.
type ChainUpdate struct {
	Chain    Chain
	Apply    []Block
	Rollback []Block
}

// IsEmpty reports whether the update carries no work, which the pool never
// actually emits but which callers constructing updates by hand (tests)
// should be able to detect.
func (u ChainUpdate) IsEmpty() bool {
	return len(u.Apply) == 0 && len(u.Rollback) == 0
}
