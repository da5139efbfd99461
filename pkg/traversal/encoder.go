package traversal

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

const (
	// DefaultBaseDomain is the container domain whose name suffix the daemon
	// joins onto its base directory without sanitizing.
	DefaultBaseDomain = "SysContainerDomain"
	// DefaultBaseDir is where DefaultBaseDomain resolves during a restore.
	// Observed empirically; its depth is the hop count.
	DefaultBaseDir = "/private/var/.backup.i/private/var/containers/Data/System"
	// DefaultHops is the number of ".." segments from DefaultBaseDir to /.
	DefaultHops = 8
)

var (
	ErrCapabilityExhausted = errors.New("path traversal is not available on this platform version")
	ErrRelativeTarget      = errors.New("target is not an absolute path")
)

// UnsupportedPathError reports a target that needs more parent hops than
// the capability allows.
type UnsupportedPathError struct {
	Target     string
	Required   int
	Achievable int
}

func (e *UnsupportedPathError) Error() string {
	return fmt.Sprintf("%s needs %d parent hops, only %d reachable", e.Target, e.Required, e.Achievable)
}

// EncodingError is returned by Encode for every failure.
type EncodingError struct {
	Target     string
	Capability Capability
	Err        error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encode %s (%s): %v", e.Target, e.Capability, e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// Encoder turns absolute paths into domain strings that resolve outside the
// backup sandbox. It never touches the filesystem.
type Encoder struct {
	baseDomain string
	baseDir    string
	hops       int
}

// NewEncoder builds an encoder for a domain resolving to baseDir. The hop
// count is the depth of baseDir.
func NewEncoder(baseDomain, baseDir string) (*Encoder, error) {
	if baseDomain == "" {
		return nil, errors.New("base domain is empty")
	}
	if !path.IsAbs(baseDir) {
		return nil, fmt.Errorf("base dir %q: %w", baseDir, ErrRelativeTarget)
	}
	clean := path.Clean(baseDir)
	return &Encoder{baseDomain: baseDomain, baseDir: clean, hops: len(segments(clean))}, nil
}

// Default returns the encoder for SysContainerDomain.
func Default() *Encoder {
	return &Encoder{baseDomain: DefaultBaseDomain, baseDir: DefaultBaseDir, hops: DefaultHops}
}

func (e *Encoder) BaseDomain() string { return e.baseDomain }
func (e *Encoder) BaseDir() string    { return e.baseDir }
func (e *Encoder) Hops() int          { return e.hops }

// Encode returns the domain that resolves to target under capability c.
func (e *Encoder) Encode(c Capability, target string) (string, error) {
	fail := func(err error) (string, error) {
		return "", &EncodingError{Target: target, Capability: c, Err: err}
	}
	if c != DotAndSlashes && c != DotOnly {
		return fail(ErrCapabilityExhausted)
	}
	if !path.IsAbs(target) {
		return fail(ErrRelativeTarget)
	}
	target = path.Clean(target)

	switch c {
	case DotAndSlashes:
		return e.slashed(target), nil
	case DotOnly:
		// A bare ".." is the only suffix without a separator that leaves
		// the base directory, so exactly one hop is reachable.
		required := e.hopsTo(target)
		if target == path.Dir(e.baseDir) {
			return e.baseDomain + "-..", nil
		}
		return fail(&UnsupportedPathError{Target: target, Required: required, Achievable: 1})
	}
	return fail(ErrCapabilityExhausted)
}

// Crash returns a domain pointing at target in the fully slashed form
// regardless of capability. Only used for records meant to be rejected.
func (e *Encoder) Crash(target string) string {
	return e.slashed(path.Clean("/" + target))
}

func (e *Encoder) slashed(target string) string {
	up := strings.TrimSuffix(strings.Repeat("../", e.hops), "/")
	if target == "/" {
		return e.baseDomain + "-" + up
	}
	return e.baseDomain + "-" + up + target
}

// hopsTo counts the parent hops from the base directory to the deepest
// ancestor it shares with target.
func (e *Encoder) hopsTo(target string) int {
	base, dst := segments(e.baseDir), segments(target)
	common := 0
	for common < len(base) && common < len(dst) && base[common] == dst[common] {
		common++
	}
	return len(base) - common
}

func segments(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// Resolve joins a domain produced by this encoder onto the base directory,
// the way the restoring daemon does.
func (e *Encoder) Resolve(domain string) (string, bool) {
	prefix := e.baseDomain + "-"
	if !strings.HasPrefix(domain, prefix) {
		return "", false
	}
	return path.Join(e.baseDir, strings.TrimPrefix(domain, prefix)), true
}
