package plan

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseRestoreRequest parses "source=destination[:owner:group]". The owner
// and group suffix is only split off when both fields are numeric, so
// destinations may contain colons. Owner and group default to 0.
func ParseRestoreRequest(s string) (RestoreRequest, error) {
	parts := strings.SplitN(s, "=", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return RestoreRequest{}, fmt.Errorf("invalid restore request %q: expected source=destination[:owner:group]", s)
	}
	req := RestoreRequest{Source: parts[0], Destination: parts[1]}

	if dst, owner, group, ok := splitOwnership(parts[1]); ok {
		if dst == "" {
			return RestoreRequest{}, fmt.Errorf("invalid restore request %q: empty destination", s)
		}
		req.Destination, req.Owner, req.Group = dst, owner, group
	}
	return req, nil
}

func splitOwnership(s string) (string, uint32, uint32, bool) {
	i := strings.LastIndex(s, ":")
	if i < 0 {
		return "", 0, 0, false
	}
	group, err := strconv.ParseUint(s[i+1:], 10, 32)
	if err != nil {
		return "", 0, 0, false
	}
	j := strings.LastIndex(s[:i], ":")
	if j < 0 {
		return "", 0, 0, false
	}
	owner, err := strconv.ParseUint(s[j+1:i], 10, 32)
	if err != nil {
		return "", 0, 0, false
	}
	return s[:j], uint32(owner), uint32(group), true
}
