package gestalt

import (
	"encoding/binary"
	"testing"

	"github.com/gentoomaniac/sparsebox/pkg/plist"
	"github.com/hashicorp/go-version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cacheBytes(t *testing.T, extra map[string]plist.Value) []byte {
	t.Helper()
	data, err := plist.Encode(plist.NewDict(map[string]plist.Value{
		CacheExtra:     plist.NewDict(extra),
		"CacheData":    plist.NewData([]byte{1, 2, 3, 4}),
		"CacheVersion": plist.NewString("22A3354"),
	}), plist.BinaryFormat)
	require.NoError(t, err)
	return data
}

func parse(t *testing.T, extra map[string]plist.Value) *Cache {
	t.Helper()
	c, err := Parse(cacheBytes(t, extra))
	require.NoError(t, err)
	return c
}

var ios18 = version.Must(version.NewVersion("18.0.1"))

func TestApplyEnableAndDisable(t *testing.T) {
	c := parse(t, map[string]plist.Value{
		productTypeKey:           plist.NewString("iPhone15,2"),
		deviceClassKey:           plist.NewString("iPhone"),
		"yhHcB0iH0d1XzPO/CFd3ow": plist.NewInteger(1),
	})
	assert.True(t, c.Enabled("apple-pencil"))
	assert.False(t, c.Enabled("action-button"))

	modified, err := c.Apply(Overrides{
		Enable:      []string{"action-button", "no-region-restriction", "ipad-apps"},
		Disable:     []string{"apple-pencil"},
		ProductType: "iPhone16,2",
		Version:     ios18,
	})
	require.NoError(t, err)

	assert.True(t, modified.Enabled("action-button"))
	assert.True(t, modified.Enabled("no-region-restriction"))
	assert.True(t, modified.Enabled("ipad-apps"))
	assert.False(t, modified.Enabled("apple-pencil"))
	assert.Equal(t, "iPhone16,2", modified.ProductType())

	// the source cache is untouched
	assert.True(t, c.Enabled("apple-pencil"))
	assert.False(t, c.Enabled("action-button"))
	assert.Equal(t, "iPhone15,2", c.ProductType())
}

func TestApplyRoundTripsThroughBytes(t *testing.T) {
	c := parse(t, map[string]plist.Value{deviceClassKey: plist.NewString("iPhone")})
	modified, err := c.Apply(Overrides{Enable: []string{"tap-to-wake", "camera-button"}, Version: ios18})
	require.NoError(t, err)

	data, err := modified.Bytes()
	require.NoError(t, err)
	reparsed, err := Parse(data)
	require.NoError(t, err)
	assert.True(t, reparsed.Enabled("tap-to-wake"))
	assert.True(t, reparsed.Enabled("camera-button"))

	doc, format, err := plist.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, plist.BinaryFormat, format)
	cacheData, _ := doc.Get("CacheData")
	raw, _ := cacheData.Bytes()
	assert.Equal(t, []byte{1, 2, 3, 4}, raw)
}

func TestApplyChecksRequirements(t *testing.T) {
	c := parse(t, map[string]plist.Value{deviceClassKey: plist.NewString("iPad")})

	_, err := c.Apply(Overrides{Enable: []string{"dynamic-island"}, Version: version.Must(version.NewVersion("17.3"))})
	assert.Error(t, err)
	_, err = c.Apply(Overrides{Enable: []string{"dynamic-island"}, Version: version.Must(version.NewVersion("17.4"))})
	assert.NoError(t, err)

	_, err = c.Apply(Overrides{Enable: []string{"dynamic-island"}})
	assert.Error(t, err)

	_, err = c.Apply(Overrides{Enable: []string{"tap-to-wake"}, Version: ios18})
	assert.Error(t, err)

	_, err = c.Apply(Overrides{Enable: []string{"warp-drive"}, Version: ios18})
	assert.Error(t, err)
	_, err = c.Apply(Overrides{Disable: []string{"warp-drive"}, Version: ios18})
	assert.Error(t, err)
}

func TestParseRequiresCacheExtra(t *testing.T) {
	data, err := plist.Encode(plist.NewDict(map[string]plist.Value{"CacheData": plist.NewData(nil)}), plist.XMLFormat)
	require.NoError(t, err)
	_, err = Parse(data)
	assert.Error(t, err)
}

func TestNames(t *testing.T) {
	names := Names()
	assert.Len(t, names, len(Toggles))
	assert.Equal(t, "action-button", names[0])
	for _, n := range names {
		assert.Equal(t, n, Toggles[n].Name)
		assert.NotEmpty(t, Toggles[n].Set, n)
	}
}

func classNumberAt(t *testing.T, c *Cache, offset int) uint64 {
	t.Helper()
	data, err := c.Bytes()
	require.NoError(t, err)
	doc, _, err := plist.Decode(data)
	require.NoError(t, err)
	v, ok := doc.Get(CacheData)
	require.True(t, ok)
	raw, ok := v.Bytes()
	require.True(t, ok)
	return binary.LittleEndian.Uint64(raw[offset:])
}

func trollpadCache(t *testing.T, class string) *Cache {
	t.Helper()
	cacheData := make([]byte, 32)
	binary.LittleEndian.PutUint64(cacheData[16:], iPhoneClassNumber)
	data, err := plist.Encode(plist.NewDict(map[string]plist.Value{
		CacheExtra: plist.NewDict(map[string]plist.Value{deviceClassKey: plist.NewString(class)}),
		CacheData:  plist.NewData(cacheData),
	}), plist.BinaryFormat)
	require.NoError(t, err)
	c, err := Parse(data)
	require.NoError(t, err)
	return c
}

func TestTrollPadPatchesClassNumber(t *testing.T) {
	c := trollpadCache(t, "iPhone")

	enabled, err := c.Apply(Overrides{Enable: []string{"trollpad"}, DeviceClassOffset: 16, Version: ios18})
	require.NoError(t, err)
	assert.True(t, enabled.Enabled("trollpad"))
	assert.Equal(t, uint64(iPadClassNumber), classNumberAt(t, enabled, 16))
	assert.Equal(t, uint64(iPhoneClassNumber), classNumberAt(t, c, 16))

	disabled, err := enabled.Apply(Overrides{Disable: []string{"trollpad"}, DeviceClassOffset: 16, Version: ios18})
	require.NoError(t, err)
	assert.False(t, disabled.Enabled("trollpad"))
	assert.Equal(t, uint64(iPhoneClassNumber), classNumberAt(t, disabled, 16))
	for k := range Toggles["trollpad"].Set {
		_, ok := disabled.extra()[k]
		assert.False(t, ok, k)
	}
}

func TestTrollPadRequirements(t *testing.T) {
	_, err := trollpadCache(t, "iPad").Apply(Overrides{Enable: []string{"trollpad"}, DeviceClassOffset: 16, Version: ios18})
	assert.Error(t, err)

	c := trollpadCache(t, "iPhone")
	_, err = c.Apply(Overrides{Enable: []string{"trollpad"}, Version: ios18})
	assert.Error(t, err)
	_, err = c.Apply(Overrides{Enable: []string{"trollpad"}, DeviceClassOffset: 28, Version: ios18})
	assert.Error(t, err)
}
