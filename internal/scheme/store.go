package scheme

import "context"

// Store is the only legal source of scheme versions: evaluation must never run
// against rule copies that bypass version tracking. Implementations keep an
// append-only version log per scheme with a single active pointer.
type Store interface {
	// GetCurrent returns the active version for a scheme, or sentinel.ErrNotFound
	// when the scheme has no active version.
	GetCurrent(ctx context.Context, schemeID string) (SchemeVersion, error)

	// GetVersion returns a specific historical version for audit.
	GetVersion(ctx context.Context, schemeID string, version int) (SchemeVersion, error)

	// ListActive returns the active version of every scheme, ordered by scheme id.
	ListActive(ctx context.Context) ([]SchemeVersion, error)

	// PutNewVersion validates the rules, allocates version = previous max + 1,
	// marks the new version active and the prior one inactive-but-retrievable.
	// Allocation is serialized per scheme id; a lost race returns
	// sentinel.ErrConflict.
	PutNewVersion(ctx context.Context, schemeID string, rules RuleSet) (SchemeVersion, error)

	// ListVersions returns every version of a scheme, oldest first.
	ListVersions(ctx context.Context, schemeID string) ([]SchemeVersion, error)
}
