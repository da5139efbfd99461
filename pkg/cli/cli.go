package cli

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/gentoomaniac/sparsebox/pkg/db"
	"github.com/manifoldco/promptui"
)

// PromptPlans displays all indexed plans for the user to select one.
func PromptPlans(plans []*db.Plan) (*db.Plan, error) {
	if len(plans) == 0 {
		return nil, fmt.Errorf("no plans indexed")
	}
	if len(plans) == 1 {
		return plans[0], nil
	}

	sort.Slice(plans, func(i, j int) bool {
		return plans[i].ID > plans[j].ID
	})

	searchFunc := func(input string, idx int) bool {
		plan := plans[idx]
		return strings.Contains(strings.ToLower(plan.Kind), strings.ToLower(input)) ||
			strings.Contains(strings.ToLower(plan.Device), strings.ToLower(input))
	}

	size := len(plans)
	if size >= 10 {
		size = 10
	}

	selector := promptui.Select{
		Label:             "Select the plan to show",
		Items:             plans,
		Searcher:          searchFunc,
		StartInSearchMode: true,
		HideSelected:      true,
		Size:              size,
		Templates: &promptui.SelectTemplates{
			Active:   fmt.Sprintf("%s {{ .ID }} {{ .Kind | cyan }}", promptui.IconSelect),
			Inactive: " {{ .ID }} {{ .Kind }}",
			Details: `
{{ "Details:" | bold }}
	{{ "Kind:" | bold }}	{{ .Kind | cyan }}
	{{ "Capability:" | bold }}	{{ .Capability | cyan }}
	{{ "Device:" | bold }}	{{ .Device | cyan }}
	{{ "Created:" | bold }}	{{ .Timestamp | cyan }}
`,
			Selected: "{{ .ID }} {{ .Kind }}",
		},
	}
	selector.Stdout = os.Stderr

	index, _, err := selector.Run()
	if err != nil {
		return nil, err
	}

	return plans[index], nil
}
