package main

import (
	"fmt"
	"os"

	"github.com/gentoomaniac/sparsebox/pkg/backup"
	"github.com/gentoomaniac/sparsebox/pkg/gestalt"
	"github.com/gentoomaniac/sparsebox/pkg/index"
	"github.com/gentoomaniac/sparsebox/pkg/plan"
	goversion "github.com/hashicorp/go-version"
	"github.com/rs/zerolog/log"
)

type HideApps struct{}

type Gestalt struct {
	Cache             string   `arg:"" help:"MobileGestalt cache file to start from" type:"path"`
	Enable            []string `short:"e" help:"toggle to enable, repeatable"`
	Disable           []string `help:"toggle to disable, repeatable"`
	Model             string   `help:"product type to report, e.g. iPhone16,2"`
	DeviceClassOffset int      `help:"byte offset of the device class number in CacheData, needed by trollpad"`
	Output            string   `short:"o" help:"also write the modified cache here" type:"path"`
	Owner             int      `help:"owner of the written cache" default:"501"`
	Group             int      `help:"group of the written cache" default:"501"`
}

type RestoreFiles struct {
	Requests []string `arg:"" help:"source=destination[:owner:group]"`
}

func record(builder *plan.Builder, indexer *index.Indexer, kind plan.Kind, p *backup.Plan) error {
	udid, err := builder.Device()
	if err != nil {
		return err
	}
	rec, err := indexer.Record(string(kind), builder.Capability.String(), udid, p)
	if err != nil {
		return err
	}
	fmt.Printf("plan %d: %s, %d entries for %s\n", rec.ID, kind, len(rec.Entries), udid)
	return nil
}

func hideApps(builder *plan.Builder, indexer *index.Indexer, params *HideApps) error {
	p, err := builder.HideSideloadedApps()
	if err != nil {
		return err
	}
	log.Info().Int("apps", p.Len()-1).Msg("sideloaded apps found")
	return record(builder, indexer, plan.HideSideloadedApps, p)
}

func overwriteGestalt(builder *plan.Builder, indexer *index.Indexer, platform *goversion.Version, params *Gestalt) error {
	if params.Owner < 0 || params.Group < 0 {
		return fmt.Errorf("owner and group must not be negative")
	}
	data, err := backup.ReadSource(params.Cache)
	if err != nil {
		return err
	}
	cache, err := gestalt.Parse(data)
	if err != nil {
		return err
	}
	modified, err := cache.Apply(gestalt.Overrides{
		Enable:            params.Enable,
		Disable:           params.Disable,
		ProductType:       params.Model,
		Version:           platform,
		DeviceClassOffset: params.DeviceClassOffset,
	})
	if err != nil {
		return err
	}
	contents, err := modified.Bytes()
	if err != nil {
		return err
	}
	if params.Output != "" {
		if err := os.WriteFile(params.Output, contents, 0644); err != nil {
			return err
		}
	}
	for _, name := range gestalt.Names() {
		log.Debug().Str("toggle", name).Bool("enabled", modified.Enabled(name)).Msg("")
	}

	p, err := builder.MobileGestaltOverwrite(contents, uint32(params.Owner), uint32(params.Group))
	if err != nil {
		return err
	}
	return record(builder, indexer, plan.MobileGestaltOverwrite, p)
}

func restoreFiles(builder *plan.Builder, indexer *index.Indexer, params *RestoreFiles) error {
	reqs := make([]plan.RestoreRequest, 0, len(params.Requests))
	for _, s := range params.Requests {
		req, err := plan.ParseRestoreRequest(s)
		if err != nil {
			return err
		}
		reqs = append(reqs, req)
	}
	p, err := builder.ArbitraryFileRestore(reqs)
	if err != nil {
		return err
	}
	return record(builder, indexer, plan.ArbitraryFileRestore, p)
}
