package evidence

import (
	"fmt"

	"github.com/aporia-systems/aporia/internal/apperr"
	"github.com/aporia-systems/aporia/internal/types"
)

// Validate checks item against the closed evidence invariants (spec.md §7,
// invalid-evidence): valence in [-1,+1], trust in [0,1], and kind one of the
// closed EvidenceKind values. Incorporate calls this at entry, before any
// state mutation is computed, so a malformed item fails before the set is
// touched. NegDefine synthesizes its own items and does not call it.
func Validate(item types.EvidenceItem) error {
	if item.Valence < -1 || item.Valence > 1 {
		return apperr.New(apperr.KindInvalidEvidence, "Valence", fmt.Sprintf("must be in [-1, 1], got %v", item.Valence))
	}
	if item.Trust < 0 || item.Trust > 1 {
		return apperr.New(apperr.KindInvalidEvidence, "Trust", fmt.Sprintf("must be in [0, 1], got %v", item.Trust))
	}
	if !item.Kind.Valid() {
		return apperr.New(apperr.KindInvalidEvidence, "Kind", fmt.Sprintf("unknown evidence kind %q", item.Kind))
	}
	return nil
}
