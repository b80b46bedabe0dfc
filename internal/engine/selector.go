package engine

import (
	"fmt"
	"strings"

	"github.com/roach88/docindex/internal/ir"
)

// Selector picks the winner of two concurrent versions of one document.
//
// Select must return one of its two arguments and must be deterministic and
// symmetric: Select(a, b) and Select(b, a) name the same version. The
// engine relies on this for order-independent merging.
type Selector interface {
	Select(a, b ir.DocumentVersion) ir.DocumentVersion
}

// SelectorFunc adapts a function to the Selector interface.
type SelectorFunc func(a, b ir.DocumentVersion) ir.DocumentVersion

// Select calls f(a, b).
func (f SelectorFunc) Select(a, b ir.DocumentVersion) ir.DocumentVersion {
	return f(a, b)
}

// Selector names accepted by SelectorByName.
const (
	SelectorUpdatedAt = "updated_at"
	SelectorVersionID = "version_id"
)

// DefaultSelector prefers the greater UpdatedAt, then the greater VersionID.
//
// UpdatedAt compares lexically and an empty value sorts first, so the rule
// is a total order and the same version wins regardless of argument order.
var DefaultSelector Selector = SelectorFunc(func(a, b ir.DocumentVersion) ir.DocumentVersion {
	if c := strings.Compare(a.UpdatedAt, b.UpdatedAt); c != 0 {
		if c > 0 {
			return a
		}
		return b
	}
	return VersionSelector.Select(a, b)
})

// VersionSelector prefers the greater VersionID and ignores timestamps.
var VersionSelector Selector = SelectorFunc(func(a, b ir.DocumentVersion) ir.DocumentVersion {
	if a.VersionID >= b.VersionID {
		return a
	}
	return b
})

// SelectorByName returns a built-in selector. The empty name selects the
// default.
func SelectorByName(name string) (Selector, error) {
	switch name {
	case "", SelectorUpdatedAt:
		return DefaultSelector, nil
	case SelectorVersionID:
		return VersionSelector, nil
	default:
		return nil, fmt.Errorf("unknown selector %q (want %q or %q)",
			name, SelectorUpdatedAt, SelectorVersionID)
	}
}
