package traversal

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-version"
)

// Capability is how much path traversal the restore daemon lets through
// on a given platform version.
type Capability int

const (
	Unsupported Capability = iota
	DotOnly
	DotAndSlashes
)

func (c Capability) String() string {
	switch c {
	case Unsupported:
		return "unsupported"
	case DotOnly:
		return "dot-only"
	case DotAndSlashes:
		return "dot-and-slashes"
	}
	return fmt.Sprintf("Capability(%d)", int(c))
}

// ParseVersion parses a platform version such as "18.0.1". Missing minor and
// patch components default to zero.
func ParseVersion(s string) (*version.Version, error) {
	v, err := version.NewVersion(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid platform version %q: %w", s, err)
	}
	return v, nil
}

type band struct {
	constraints version.Constraints
	capability  Capability
}

func newBand(constraint string, c Capability) band {
	return band{constraints: version.MustConstraints(version.NewConstraint(constraint)), capability: c}
}

// Patch levels close the traversal surface per release train, so the table
// is banded rather than a single threshold. Versions outside every band
// keep full traversal.
var capabilityTable = []band{
	newBand(">= 18.2", Unsupported),
	newBand(">= 18.1, < 18.2", DotOnly),
	newBand(">= 17.7.2, < 18.0", Unsupported),
	newBand(">= 17.7.1, < 17.7.2", DotOnly),
}

// Detect maps a platform version to the traversal capability of its restore
// daemon. Pre-release versions are placed in the band of their release.
func Detect(v *version.Version) Capability {
	core := v.Core()
	for _, b := range capabilityTable {
		if b.constraints.Check(core) {
			return b.capability
		}
	}
	return DotAndSlashes
}
