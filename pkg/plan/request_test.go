package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRestoreRequest(t *testing.T) {
	testCases := []struct {
		in   string
		want RestoreRequest
	}{
		{"./flags.plist=/var/preferences/FeatureFlags/Global.plist", RestoreRequest{Source: "./flags.plist", Destination: "/var/preferences/FeatureFlags/Global.plist"}},
		{"mg.plist=/var/mobile/x.plist:501:502", RestoreRequest{Source: "mg.plist", Destination: "/var/mobile/x.plist", Owner: 501, Group: 502}},
		{"src=/var/mobile/Library/a:b.plist", RestoreRequest{Source: "src", Destination: "/var/mobile/Library/a:b.plist"}},
		{"src=/var/mobile/a:b.plist:501:501", RestoreRequest{Source: "src", Destination: "/var/mobile/a:b.plist", Owner: 501, Group: 501}},
		{"src=/var/x:501", RestoreRequest{Source: "src", Destination: "/var/x:501"}},
		{"src=/var/x:a:b", RestoreRequest{Source: "src", Destination: "/var/x:a:b"}},
		{"src=/var/x:501:-1", RestoreRequest{Source: "src", Destination: "/var/x:501:-1"}},
		{"src=/var/x:1:2:3", RestoreRequest{Source: "src", Destination: "/var/x:1", Owner: 2, Group: 3}},
	}

	for _, tc := range testCases {
		req, err := ParseRestoreRequest(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, req, tc.in)
	}
}

func TestParseRestoreRequestInvalid(t *testing.T) {
	for _, s := range []string{
		"",
		"no-destination",
		"=/var/x",
		"src=",
		"src=:1:2",
	} {
		_, err := ParseRestoreRequest(s)
		assert.Error(t, err, s)
	}
}
