package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	clitools "github.com/gentoomaniac/sparsebox/pkg/cli"
	"github.com/gentoomaniac/sparsebox/pkg/db"
	"github.com/gentoomaniac/sparsebox/pkg/index"
	"github.com/rs/zerolog/log"
)

type Show struct {
	ID      int64  `short:"i" help:"ID of the plan to show, prompts when unset"`
	Extract string `short:"x" help:"write decrypted entry contents to this directory" type:"path"`
}

func listPlans(database *db.SQLLiteDB) error {
	plans, err := database.GetPlans()
	if err != nil {
		return err
	}
	for _, p := range plans {
		fmt.Printf("%d\t%s\t%s\t%s\t%s\n", p.ID, time.Unix(p.Timestamp, 0).Format(time.RFC3339), p.Kind, p.Capability, p.Device)
	}
	return nil
}

func show(database *db.SQLLiteDB, indexer *index.Indexer, params *Show) error {
	var plan *db.Plan
	if params.ID != 0 {
		var err error
		if plan, err = database.GetPlanById(params.ID); err != nil {
			return fmt.Errorf("loading plan %d: %w", params.ID, err)
		}
	} else {
		plans, err := database.GetPlans()
		if err != nil {
			return err
		}
		selected, err := clitools.PromptPlans(plans)
		if err != nil {
			return err
		}
		if plan, err = database.GetPlanById(selected.ID); err != nil {
			return err
		}
	}
	log.Debug().Int64("id", plan.ID).Str("kind", plan.Kind).Msg("plan selected")

	for _, e := range plan.Entries {
		link := "-"
		if e.LinkGroup != nil {
			link = fmt.Sprint(*e.LinkGroup)
		}
		var xattrs []string
		for name, value := range e.Xattrs {
			xattrs = append(xattrs, fmt.Sprintf("%s=%x", name, value))
		}
		fmt.Printf("%3d %-9s %4d:%-4d link=%-3s size=%-6d %s %s %s\n",
			e.Order, e.Kind, e.User, e.Group, link, e.Size, e.Domain, e.Path, strings.Join(xattrs, ","))

		if params.Extract == "" || e.Hash == nil || e.Size == 0 {
			continue
		}
		data, err := indexer.Contents(e)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(params.Extract, 0755); err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(params.Extract, fmt.Sprintf("%03d", e.Order)), data, 0644); err != nil {
			return err
		}
	}
	return nil
}
