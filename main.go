package main

import (
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/gentoomaniac/logging"
	"github.com/gentoomaniac/sparsebox/pkg/crypt/aes256"
	"github.com/gentoomaniac/sparsebox/pkg/db"
	"github.com/gentoomaniac/sparsebox/pkg/device"
	"github.com/gentoomaniac/sparsebox/pkg/index"
	"github.com/gentoomaniac/sparsebox/pkg/plan"
	"github.com/gentoomaniac/sparsebox/pkg/traversal"
	"github.com/rs/zerolog/log"
)

var (
	version = "unset"
	commit  = "unset"
	binName = "sparsebox"
	builtBy = "manual"
	date    = "unset"
)

var cli struct {
	logging.LoggingConfig

	DBPath          string `short:"d" help:"database file indexing built plans" type:"path" default:"sparsebox.db"`
	BlobPath        string `short:"p" help:"where to store entry contents" type:"path" default:"./blobs/"`
	Secret          string `short:"s" help:"secret"`
	PlatformVersion string `help:"platform version of the paired device, e.g. 18.0.1" default:"0.0.0"`
	Devices         string `help:"device inventory property list" type:"path" default:"devices.plist"`
	DeviceRoot      string `help:"directory mirroring the device filesystem, used for provisioning profile checks" type:"path" default:"/"`

	HideApps     HideApps     `cmd:"" help:"Hide sideloaded apps from the app limit"`
	Gestalt      Gestalt      `cmd:"" help:"Overwrite the MobileGestalt cache"`
	RestoreFiles RestoreFiles `cmd:"" help:"Restore files to arbitrary paths"`
	Capability   struct{}     `cmd:"" help:"Print the traversal capability of the platform version"`
	Plans        struct{}     `cmd:"" help:"List indexed plans"`
	Show         Show         `cmd:"" help:"Show the entries of an indexed plan"`

	Version kong.VersionFlag `short:"v" help:"Display version."`
}

func main() {
	ctx := kong.Parse(&cli, kong.UsageOnError(), kong.Vars{
		"version": version,
		"commit":  commit,
		"binName": binName,
		"builtBy": builtBy,
		"date":    date,
	})
	logging.Setup(&cli.LoggingConfig)

	platform, err := traversal.ParseVersion(cli.PlatformVersion)
	ctx.FatalIfErrorf(err)
	capability := traversal.Detect(platform)
	log.Debug().Str("version", platform.String()).Str("capability", capability.String()).Msg("capability detected")

	if ctx.Command() == "capability" {
		log.Info().Str("version", platform.String()).Str("capability", capability.String()).Msg("")
		ctx.Exit(0)
	}

	database, err := db.NewSQLLite(cli.DBPath)
	ctx.FatalIfErrorf(err)
	ctx.FatalIfErrorf(database.Init())
	secret, err := aes256.ParseSecret(cli.Secret)
	ctx.FatalIfErrorf(err)
	indexer := index.New(database, cli.BlobPath, secret)

	newBuilder := func() *plan.Builder {
		inventory, err := device.Load(cli.Devices, os.DirFS(cli.DeviceRoot))
		ctx.FatalIfErrorf(err)
		return plan.NewBuilder(inventory, capability)
	}

	switch strings.Fields(ctx.Command())[0] {
	case "hide-apps":
		err = hideApps(newBuilder(), indexer, &cli.HideApps)
	case "gestalt":
		err = overwriteGestalt(newBuilder(), indexer, platform, &cli.Gestalt)
	case "restore-files":
		err = restoreFiles(newBuilder(), indexer, &cli.RestoreFiles)
	case "plans":
		err = listPlans(database)
	case "show":
		err = show(database, indexer, &cli.Show)
	default:
		log.Info().Msg("Default command")
	}
	database.Close()
	if err != nil {
		log.Error().Err(err).Msg("command failed")
		ctx.Exit(1)
	}
	ctx.Exit(0)
}
