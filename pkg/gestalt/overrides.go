// Package gestalt edits a decoded MobileGestalt cache. Feature toggles are
// explicit values passed in by the caller and applied to a copy of the
// document.
package gestalt

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/gentoomaniac/sparsebox/pkg/plist"
	"github.com/hashicorp/go-version"
)

const (
	CacheExtra = "CacheExtra"
	CacheData  = "CacheData"

	iPhoneClassNumber = 1
	iPadClassNumber   = 3

	productTypeKey = "h9jDsbgj7xIVeIQ8S3/X3Q"
	deviceClassKey = "+3Uf0Pm5F8Xy7Onyvko0vA"
)

// Toggle is a feature switched on by setting CacheExtra keys. Switching it
// off removes the keys so the value falls back to the device tree.
type Toggle struct {
	Name       string
	Help       string
	Set        map[string]plist.Value
	MinVersion *version.Version
	// DeviceClass restricts the toggle to one device class, e.g. "iPhone".
	DeviceClass string
	// PatchesClassNumber toggles also rewrite the device class number stored
	// in CacheData, which CacheExtra cannot override.
	PatchesClassNumber bool
}

func one() plist.Value { return plist.NewInteger(1) }

func requires(v string) *version.Version { return version.Must(version.NewVersion(v)) }

// Toggles lists every supported feature by name.
var Toggles = map[string]Toggle{
	"action-button": {
		Help:       "Action button",
		Set:        map[string]plist.Value{"cT44WE1EohiwRzhsZ8xEsw": one()},
		MinVersion: requires("17"),
	},
	"ipad-apps": {
		Help: "Allow installing iPadOS apps",
		Set:  map[string]plist.Value{"9MZ5AdH43csAUajl/dU+IQ": plist.NewArray(plist.NewInteger(1), plist.NewInteger(2))},
	},
	"always-on-display": {
		Help:       "Always on display",
		Set:        map[string]plist.Value{"j8/Omm6s1lsmTDFsXjsBfA": one(), "2OOJf1VhaM7NxfRok3HbWQ": one()},
		MinVersion: requires("18"),
	},
	"apple-intelligence": {
		Help:       "Apple Intelligence",
		Set:        map[string]plist.Value{"A62OafQ85EJAiiqKn4agtg": one()},
		MinVersion: requires("18"),
	},
	"apple-pencil": {
		Help: "Apple Pencil",
		Set:  map[string]plist.Value{"yhHcB0iH0d1XzPO/CFd3ow": one()},
	},
	"boot-chime": {
		Help: "Boot chime",
		Set:  map[string]plist.Value{"QHxt+hGLaBPbQJbXiUJX3w": one()},
	},
	"camera-button": {
		Help:       "Camera button",
		Set:        map[string]plist.Value{"CwvKxM2cEogD3p+HYgaW0Q": one(), "oOV1jhJbdV3AddkcCg0AEA": one()},
		MinVersion: requires("18"),
	},
	"charge-limit": {
		Help:       "Charge limit",
		Set:        map[string]plist.Value{"37NVydb//GP/GrhuTN+exg": one()},
		MinVersion: requires("17"),
	},
	"crash-detection": {
		Help: "Crash detection",
		Set:  map[string]plist.Value{"HCzWusHQwZDea6nNhaKndw": one()},
	},
	"dynamic-island": {
		Help:       "Dynamic Island",
		Set:        map[string]plist.Value{"YlEtTtHlNesRBMal1CqRaA": one()},
		MinVersion: requires("17.4"),
	},
	"internal-storage": {
		Help: "Internal storage info",
		Set:  map[string]plist.Value{"LBJfwOEzExRxzlAnSuI7eg": one()},
	},
	"metal-hud": {
		Help: "Metal performance HUD",
		Set:  map[string]plist.Value{"EqrsVvjcYDdxHBiQmGhAWw": one()},
	},
	"stage-manager": {
		Help: "Stage Manager",
		Set:  map[string]plist.Value{"qeaj75wk3HF4DwQ8qbIi7g": one()},
	},
	"trollpad": {
		Help: "iPadOS multitasking on iPhone",
		Set: map[string]plist.Value{
			"uKc7FPnEO++lVhHWHFlGbQ": one(),
			"mG0AnH/Vy1veoqoLRAIgTA": one(),
			"UCG5MkVahJxG1YULbbd5Bg": one(),
			"ZYqko/XM5zD3XBfN5RmaXA": one(),
			"nVh/gwNpy7Jv1NOk00CMrw": one(),
			"qeaj75wk3HF4DwQ8qbIi7g": one(),
		},
		DeviceClass:        "iPhone",
		PatchesClassNumber: true,
	},
	"tap-to-wake": {
		Help:        "Tap to wake",
		Set:         map[string]plist.Value{"yZf3GTRMGTuwSV/lD7Cagw": one()},
		DeviceClass: "iPhone",
	},
	"no-region-restriction": {
		Help: "Disable region restrictions",
		Set: map[string]plist.Value{
			"h63QSdBCiT/z0WU6rdQv6Q": plist.NewString("US"),
			"zHeENZu+wbg7PUprwNwBWg": plist.NewString("LL/A"),
		},
	},
}

func init() {
	for name, t := range Toggles {
		t.Name = name
		Toggles[name] = t
	}
}

// Names returns the toggle names in sorted order.
func Names() []string {
	names := make([]string, 0, len(Toggles))
	for n := range Toggles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Overrides is the full set of changes to apply to a cache.
type Overrides struct {
	Enable      []string
	Disable     []string
	ProductType string
	Version     *version.Version
	// DeviceClassOffset is the byte offset of the device class number in
	// CacheData. It differs per device and build and must be set when a
	// toggle patches the class number.
	DeviceClassOffset int
}

// Cache is a decoded MobileGestalt cache.
type Cache struct {
	doc    plist.Value
	format plist.Format
}

func Parse(data []byte) (*Cache, error) {
	doc, format, err := plist.Decode(data)
	if err != nil {
		return nil, err
	}
	if _, ok := doc.Get(CacheExtra); !ok {
		return nil, fmt.Errorf("mobilegestalt cache has no %s", CacheExtra)
	}
	return &Cache{doc: doc, format: format}, nil
}

func (c *Cache) extra() map[string]plist.Value {
	v, _ := c.doc.Get(CacheExtra)
	m, _ := v.Map()
	return m
}

// ProductType returns the cached product type, e.g. "iPhone16,2".
func (c *Cache) ProductType() string {
	s, _ := c.extra()[productTypeKey].Text()
	return s
}

// DeviceClass returns the cached device class, e.g. "iPhone".
func (c *Cache) DeviceClass() string {
	s, _ := c.extra()[deviceClassKey].Text()
	return s
}

// patchClassNumber returns a copy of CacheData with n stored as a 64-bit
// little-endian integer at offset.
func (c *Cache) patchClassNumber(offset int, n uint64) ([]byte, error) {
	v, ok := c.doc.Get(CacheData)
	if !ok {
		return nil, fmt.Errorf("mobilegestalt cache has no %s", CacheData)
	}
	raw, ok := v.Bytes()
	if !ok {
		return nil, fmt.Errorf("%s is not a data value", CacheData)
	}
	if offset <= 0 {
		return nil, fmt.Errorf("device class offset is not set")
	}
	if offset+8 > len(raw) {
		return nil, fmt.Errorf("device class offset %d outside %s of %d bytes", offset, CacheData, len(raw))
	}
	data := append([]byte{}, raw...)
	binary.LittleEndian.PutUint64(data[offset:], n)
	return data, nil
}

// Enabled reports whether every key of the toggle holds its enabled value.
func (c *Cache) Enabled(name string) bool {
	t, ok := Toggles[name]
	if !ok {
		return false
	}
	extra := c.extra()
	for k, want := range t.Set {
		if got, ok := extra[k]; !ok || !got.Equal(want) {
			return false
		}
	}
	return true
}

// Apply returns a new cache with the overrides applied. The receiver is not
// modified.
func (c *Cache) Apply(o Overrides) (*Cache, error) {
	extra := make(map[string]plist.Value, len(c.extra()))
	for k, v := range c.extra() {
		extra[k] = v
	}

	var classNumber uint64
	for _, name := range o.Disable {
		t, ok := Toggles[name]
		if !ok {
			return nil, fmt.Errorf("unknown toggle %q", name)
		}
		if t.PatchesClassNumber {
			classNumber = iPhoneClassNumber
		}
		for k := range t.Set {
			delete(extra, k)
		}
	}
	for _, name := range o.Enable {
		t, ok := Toggles[name]
		if !ok {
			return nil, fmt.Errorf("unknown toggle %q", name)
		}
		if t.MinVersion != nil && (o.Version == nil || o.Version.LessThan(t.MinVersion)) {
			return nil, fmt.Errorf("toggle %s requires %s, device runs %s", name, t.MinVersion, o.Version)
		}
		if t.DeviceClass != "" && c.DeviceClass() != t.DeviceClass {
			return nil, fmt.Errorf("toggle %s requires device class %s", name, t.DeviceClass)
		}
		if t.PatchesClassNumber {
			classNumber = iPadClassNumber
		}
		for k, v := range t.Set {
			extra[k] = v
		}
	}
	if o.ProductType != "" {
		extra[productTypeKey] = plist.NewString(o.ProductType)
	}

	root, _ := c.doc.Map()
	doc := make(map[string]plist.Value, len(root))
	for k, v := range root {
		doc[k] = v
	}
	doc[CacheExtra] = plist.NewDict(extra)
	if classNumber != 0 {
		data, err := c.patchClassNumber(o.DeviceClassOffset, classNumber)
		if err != nil {
			return nil, err
		}
		doc[CacheData] = plist.NewData(data)
	}
	return &Cache{doc: plist.NewDict(doc), format: c.format}, nil
}

// Bytes encodes the cache in the format it was read in.
func (c *Cache) Bytes() ([]byte, error) {
	return plist.Encode(c.doc, c.format)
}
