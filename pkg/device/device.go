package device

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"syscall"

	"github.com/gentoomaniac/sparsebox/pkg/plist"
)

// App is an installed application as reported by the device.
type App struct {
	BundleID  string
	Name      string
	Path      string
	Container string
}

// Provider answers the questions plan builders ask about paired devices.
type Provider interface {
	Devices() ([]string, error)
	Applications(udid string) ([]App, error)
	Exists(udid, path string) (bool, error)
}

// Inventory is a Provider backed by a captured device listing. Marker
// checks look the path up in FS, which is a view of the device filesystem
// rooted at /.
type Inventory struct {
	UDIDs []string
	Apps  map[string][]App
	FS    fs.FS
}

func (inv *Inventory) Devices() ([]string, error) {
	return inv.UDIDs, nil
}

func (inv *Inventory) Applications(udid string) ([]App, error) {
	apps, ok := inv.Apps[udid]
	if !ok {
		return nil, fmt.Errorf("unknown device %s", udid)
	}
	return apps, nil
}

func (inv *Inventory) Exists(udid, p string) (bool, error) {
	if inv.FS == nil {
		return false, nil
	}
	name := strings.TrimPrefix(path.Clean("/"+p), "/")
	if name == "" {
		name = "."
	}
	_, err := fs.Stat(inv.FS, name)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.ENOTDIR):
		return false, nil
	}
	return false, err
}

// Load reads an inventory property list of the form
//
//	{ <udid>: { <bundle id>: { "Path": ..., "Container": ..., "CFBundleName": ... } } }
//
// as written by device application listing tools.
func Load(file string, fsys fs.FS) (*Inventory, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	return Parse(data, fsys)
}

func Parse(data []byte, fsys fs.FS) (*Inventory, error) {
	root, _, err := plist.Decode(data)
	if err != nil {
		return nil, err
	}
	devices, ok := root.Map()
	if !ok {
		return nil, fmt.Errorf("inventory: expected dict, got %s", root.Kind())
	}

	inv := &Inventory{Apps: map[string][]App{}, FS: fsys}
	for _, udid := range root.Keys() {
		inv.UDIDs = append(inv.UDIDs, udid)
		listing, ok := devices[udid].Map()
		if !ok {
			return nil, fmt.Errorf("inventory: device %s: expected dict, got %s", udid, devices[udid].Kind())
		}
		apps := make([]App, 0, len(listing))
		for bundleID, details := range listing {
			if bundleID == "" {
				continue
			}
			app := App{BundleID: bundleID}
			app.Path, _ = details.GetString("Path")
			app.Container, _ = details.GetString("Container")
			app.Name, _ = details.GetString("CFBundleName")
			apps = append(apps, app)
		}
		sort.Slice(apps, func(i, j int) bool { return apps[i].BundleID < apps[j].BundleID })
		inv.Apps[udid] = apps
	}
	return inv, nil
}
