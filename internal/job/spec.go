package job

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"wikisync/internal/config"
	"wikisync/internal/extract"
	"wikisync/internal/mwapi"
	"wikisync/internal/paginate"
	"wikisync/internal/schema"
	"wikisync/internal/storage"
	"wikisync/internal/transform"
)

// Plan is the resolved query of one job run. When BucketParam is set the
// query runs once per value in Buckets.
type Plan struct {
	Query       paginate.Query
	BucketParam string
	Buckets     []string

	// Empty marks a run with nothing to fetch, e.g. no groups to list.
	Empty bool
}

// Converter turns one extracted record into zero or more rows. keep is false
// for records that are deliberately skipped.
type Converter func(it extract.Item) (rows [][]any, keep bool, err error)

// Spec describes one sync job: what to ask the wiki for, how to cut the
// answer into records, how to turn records into rows and where they go.
type Spec struct {
	Name    string
	Table   schema.Table
	Extract extract.Extractor
	Convert Converter

	plan func(ctx context.Context, w Wiki, sc config.SyncConfig) (Plan, error)
}

// Policy is the insert policy of the job's table.
func (s Spec) Policy() storage.Policy {
	if s.Table.IgnoreDuplicates {
		return storage.PolicyIgnore
	}
	return storage.PolicyStrict
}

// Plan resolves the job's query against the wiki and sync settings.
func (s Spec) Plan(ctx context.Context, w Wiki, sc config.SyncConfig) (Plan, error) {
	return s.plan(ctx, w, sc)
}

var specs = []Spec{
	{
		Name:    "blocks",
		Table:   schema.IPBlocks,
		Extract: extract.ListUnder("blocks"),
		Convert: convertBlock,
		plan:    planBlocks,
	},
	{
		Name:    "page_restrictions",
		Table:   schema.PageRestrictions,
		Extract: extract.NestedByID("protection"),
		Convert: convertPageRestriction,
		plan:    planPageRestrictions,
	},
	{
		Name:    "protected_titles",
		Table:   schema.ProtectedTitles,
		Extract: extract.ListUnder("protectedtitles"),
		Convert: convertProtectedTitle,
		plan:    planProtectedTitles,
	},
	{
		Name:    "user_groups",
		Table:   schema.UserGroups,
		Extract: extract.ListUnder("allusers"),
		Convert: convertUserGroups,
		plan:    planUserGroups,
	},
}

// Specs returns every job in default run order.
func Specs() []Spec {
	return slices.Clone(specs)
}

// Lookup finds a job by name. Dashes are accepted in place of underscores.
func Lookup(name string) (Spec, bool) {
	name = strings.ReplaceAll(name, "-", "_")
	for _, s := range specs {
		if s.Name == name {
			return s, true
		}
	}
	return Spec{}, false
}

func ranged(params mwapi.Params, prefix string, r config.RangeConfig) {
	if r.Start == "" && r.End == "" {
		return
	}
	params[prefix+"dir"] = "newer"
	if r.Start != "" {
		params[prefix+"start"] = r.Start
	}
	if r.End != "" {
		params[prefix+"end"] = r.End
	}
}

func planBlocks(_ context.Context, _ Wiki, sc config.SyncConfig) (Plan, error) {
	params := mwapi.Params{
		"list":   "blocks",
		"bkprop": "id|user|userid|by|byid|timestamp|expiry|reason|range|flags",
	}
	ranged(params, "bk", sc.Blocks)
	return Plan{Query: paginate.Query{
		Name:        "blocks",
		Params:      params,
		LimitParam:  "bklimit",
		Module:      "blocks",
		ContinueKey: "continue",
	}}, nil
}

func planProtectedTitles(_ context.Context, _ Wiki, sc config.SyncConfig) (Plan, error) {
	params := mwapi.Params{
		"list":   "protectedtitles",
		"ptprop": "userid|timestamp|expiry|comment|level",
	}
	ranged(params, "pt", sc.ProtectedTitles)
	return Plan{Query: paginate.Query{
		Name:        "protected_titles",
		Params:      params,
		LimitParam:  "ptlimit",
		Module:      "protectedtitles",
		ContinueKey: "continue",
	}}, nil
}

var defaultRestrictionTypes = []string{"edit", "move"}

func planPageRestrictions(ctx context.Context, w Wiki, sc config.SyncConfig) (Plan, error) {
	nss, err := w.Namespaces(ctx)
	if err != nil {
		return Plan{}, err
	}
	buckets := make([]string, len(nss))
	for i, ns := range nss {
		buckets[i] = strconv.FormatInt(ns, 10)
	}

	types := sc.PageRestrictions.Types
	if len(types) == 0 {
		types = defaultRestrictionTypes
	}
	params := mwapi.Params{
		"generator": "allpages",
		"gapprtype": strings.Join(types, "|"),
		"prop":      "info",
		"inprop":    "protection",
	}
	if len(sc.PageRestrictions.Levels) > 0 {
		params["gapprlevel"] = strings.Join(sc.PageRestrictions.Levels, "|")
	}

	return Plan{
		Query: paginate.Query{
			Name:        "page_restrictions",
			Params:      params,
			LimitParam:  "gaplimit",
			Module:      "allpages",
			ContinueKey: "continue",
			ResultPath:  []string{"query", "pages"},
		},
		BucketParam: "gapnamespace",
		Buckets:     buckets,
		Empty:       len(buckets) == 0,
	}, nil
}

func planUserGroups(ctx context.Context, w Wiki, sc config.SyncConfig) (Plan, error) {
	known, err := w.UserGroups(ctx)
	if err != nil {
		return Plan{}, err
	}

	var groups []string
	if len(sc.UserGroups.Groups) > 0 {
		for _, g := range sc.UserGroups.Groups {
			if !slices.Contains(known, g) {
				return Plan{}, fmt.Errorf("group %q is not defined on the wiki", g)
			}
			if !transform.IsImplicitGroup(g) {
				groups = append(groups, g)
			}
		}
	} else {
		for _, g := range known {
			if !transform.IsImplicitGroup(g) {
				groups = append(groups, g)
			}
		}
	}

	return Plan{
		Query: paginate.Query{
			Name:   "user_groups",
			Params: mwapi.Params{
				"list":    "allusers",
				"auprop":  "groups",
				"augroup": strings.Join(groups, "|"),
			},
			LimitParam:  "aulimit",
			Module:      "allusers",
			ContinueKey: "continue",
		},
		Empty: len(groups) == 0,
	}, nil
}

func convertBlock(it extract.Item) ([][]any, bool, error) {
	row, keep, err := transform.Block(it.Record)
	if err != nil || !keep {
		return nil, false, err
	}
	return [][]any{row.Values()}, true, nil
}

func convertPageRestriction(it extract.Item) ([][]any, bool, error) {
	row, err := transform.PageRestriction(it.ParentID, it.Record)
	if err != nil {
		return nil, false, err
	}
	return [][]any{row.Values()}, true, nil
}

func convertProtectedTitle(it extract.Item) ([][]any, bool, error) {
	row, err := transform.ProtectedTitle(it.Record)
	if err != nil {
		return nil, false, err
	}
	return [][]any{row.Values()}, true, nil
}

func convertUserGroups(it extract.Item) ([][]any, bool, error) {
	rows, err := transform.UserGroups(it.Record, nil)
	if err != nil {
		return nil, false, err
	}
	out := make([][]any, len(rows))
	for i, r := range rows {
		out[i] = r.Values()
	}
	return out, true, nil
}
