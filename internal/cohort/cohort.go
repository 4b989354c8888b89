// Package cohort assembles a cohort from an entry criterion, inclusions,
// exclusions, characteristics and outcomes: the seven-step
// process of filtering domain tables to the study period, deriving the
// index date from the entry criterion, attaching it to every domain table,
// sequentially applying inclusion/exclusion criteria, left-joining
// characteristics and outcomes onto the final subject set, and producing
// the attrition waterfall.
package cohort

import (
	"context"
	"fmt"
	"strings"

	"github.com/Bayer-Group/phenex-go/internal/dataperiod"
	"github.com/Bayer-Group/phenex-go/internal/eventbus"
	"github.com/Bayer-Group/phenex-go/internal/node"
	"github.com/Bayer-Group/phenex-go/internal/phenexerr"
	"github.com/Bayer-Group/phenex-go/internal/relation"
	"github.com/Bayer-Group/phenex-go/internal/value"
	"github.com/Bayer-Group/phenex-go/internal/workflow"
)

// Cohort declares the phenotype composition a cohort study assembles.
// EntryCriterion is required; every other field is optional.
type Cohort struct {
	Name            string
	EntryCriterion  node.ComputeNode
	Inclusions      []node.ComputeNode
	Exclusions      []node.ComputeNode
	Characteristics []node.ComputeNode
	Outcomes        []node.ComputeNode

	// StudyPeriodMin/Max bound every domain table via a
	// dataperiod.DataPeriodFilter before any phenotype
	// runs. Leave both nil to skip the step.
	StudyPeriodMin, StudyPeriodMax *value.DateValue

	// Connector and MetaStore, if set, are passed to the workflow
	// engine for materialised and/or lazy execution. Lazy requires both
	// plus Overwrite.
	Connector node.Connector
	MetaStore node.MetaStore
	Overwrite bool
	Lazy      bool

	// NumWorkers sizes the workflow engine's worker pool; 0 selects the
	// engine's own default.
	NumWorkers int

	// EventBus, if set, is passed to the workflow engine so a host can
	// observe node and workflow lifecycle events for this cohort's runs.
	EventBus *eventbus.EventBus
	RunID    string
}

// WaterfallRow is one row of the attrition table,
// mirroring the entry/inclusion/exclusion/final_cohort rows of the
// reference waterfall report: Type, Name, the phenotype's own subject
// count (N), the cumulative subject count after this step (Remaining),
// the change from the prior step (Delta), and the percentage of the
// entry population still remaining.
type WaterfallRow struct {
	Type           string
	Name           string
	N              int
	Remaining      int
	Delta          int
	PercentOfEntry float64
}

// Result holds everything Cohort.Execute produces.
type Result struct {
	EntryTable           relation.Table
	IndexTable           relation.Table // PERSON_ID, INDEX_DATE
	FinalTable           relation.Table // PERSON_ID, INDEX_DATE, after inclusions/exclusions
	CharacteristicsTable relation.Table
	Waterfall            []WaterfallRow
	Tables               map[string]relation.Table // every computed node's output, keyed by name
}

func (c *Cohort) engine() *workflow.Engine {
	numWorkers := c.NumWorkers
	if numWorkers == 0 {
		numWorkers = 4
	}
	return &workflow.Engine{
		Connector:  c.Connector,
		MetaStore:  c.MetaStore,
		Overwrite:  c.Overwrite,
		Lazy:       c.Lazy,
		NumWorkers: numWorkers,
		EventBus:   c.EventBus,
		RunID:      c.RunID,
	}
}

// Execute runs the seven-step assembly against domains, the raw
// domain->Table mapping every phenotype ultimately reads from.
func (c *Cohort) Execute(ctx context.Context, domains map[string]relation.Table) (*Result, error) {
	if c.EntryCriterion == nil {
		return nil, &phenexerr.ConfigurationError{Node: c.Name, Detail: "cohort requires an entry criterion"}
	}

	// Step 1: bound every domain table to the study period.
	filtered, err := c.applyStudyPeriod(domains)
	if err != nil {
		return nil, err
	}

	eng := c.engine()

	// Step 2: execute the entry criterion against unaugmented domains —
	// the index date doesn't exist until this step produces it.
	entryOut, err := eng.Run(ctx, []node.ComputeNode{c.EntryCriterion}, filtered)
	if err != nil {
		return nil, fmt.Errorf("cohort %q: entry criterion: %w", c.Name, err)
	}
	entryTable, ok := entryOut[c.EntryCriterion.Name()]
	if !ok {
		return nil, &phenexerr.LookupError{Kind: "node", Name: c.EntryCriterion.Name()}
	}

	// Step 3: derive index_table and attach INDEX_DATE to every domain.
	indexTable := entryTable.
		Mutate(relation.ColIndexDate, relation.Col(relation.ColEventDate)).
		Select(relation.ColPersonID, relation.ColIndexDate)
	augmented := attachIndexDate(filtered, indexTable)

	// Run every inclusion, exclusion, characteristic and outcome (and
	// their transitive children, including a re-derivation of the entry
	// criterion itself if one anchors to it) against the augmented
	// domains in a single dispatch.
	var roots []node.ComputeNode
	roots = append(roots, c.Inclusions...)
	roots = append(roots, c.Exclusions...)
	roots = append(roots, c.Characteristics...)
	roots = append(roots, c.Outcomes...)

	var downstream map[string]relation.Table
	if len(roots) > 0 {
		downstream, err = eng.Run(ctx, roots, augmented)
		if err != nil {
			return nil, fmt.Errorf("cohort %q: inclusions/exclusions/characteristics/outcomes: %w", c.Name, err)
		}
	} else {
		downstream = map[string]relation.Table{}
	}

	entryCount := distinctPersonCount(entryTable)
	waterfall := []WaterfallRow{{
		Type:           "entry",
		Name:           c.EntryCriterion.Name(),
		N:              entryCount,
		Remaining:      entryCount,
		Delta:          0,
		PercentOfEntry: 100,
	}}

	// Steps 4-5: sequential semi-join (inclusion) / anti-join (exclusion).
	cohortTable := indexTable
	remaining := entryCount
	for _, inc := range c.Inclusions {
		incTable, ok := downstream[inc.Name()]
		if !ok {
			return nil, &phenexerr.LookupError{Kind: "node", Name: inc.Name()}
		}
		n := distinctPersonCount(incTable)
		cohortTable = cohortTable.Join(distinctPersons(incTable), []relation.JoinOn{relation.Eq(relation.ColPersonID)}, relation.JoinSemi)
		newRemaining := len(cohortTable.ToNative())
		waterfall = append(waterfall, waterfallRow("inclusion", inc.Name(), n, newRemaining, newRemaining-remaining, entryCount))
		remaining = newRemaining
	}
	for _, exc := range c.Exclusions {
		excTable, ok := downstream[exc.Name()]
		if !ok {
			return nil, &phenexerr.LookupError{Kind: "node", Name: exc.Name()}
		}
		n := distinctPersonCount(excTable)
		cohortTable = cohortTable.Join(distinctPersons(excTable), []relation.JoinOn{relation.Eq(relation.ColPersonID)}, relation.JoinAnti)
		newRemaining := len(cohortTable.ToNative())
		waterfall = append(waterfall, waterfallRow("exclusion", exc.Name(), n, newRemaining, newRemaining-remaining, entryCount))
		remaining = newRemaining
	}
	waterfall = append(waterfall, waterfallRow("final_cohort", "", remaining, remaining, remaining-remaining, entryCount))

	// Step 6: left-join characteristics and outcomes onto the final cohort.
	charTable := cohortTable
	for _, p := range append(append([]node.ComputeNode{}, c.Characteristics...), c.Outcomes...) {
		pt, ok := downstream[p.Name()]
		if !ok {
			return nil, &phenexerr.LookupError{Kind: "node", Name: p.Name()}
		}
		charTable = charTable.Join(namespaceColumns(pt, p.Name()), []relation.JoinOn{relation.Eq(relation.ColPersonID)}, relation.JoinLeft)
	}

	tables := make(map[string]relation.Table, len(downstream)+1)
	for k, v := range downstream {
		tables[k] = v
	}
	tables[c.EntryCriterion.Name()] = entryTable

	return &Result{
		EntryTable:           entryTable,
		IndexTable:           indexTable,
		FinalTable:           cohortTable,
		CharacteristicsTable: charTable,
		Waterfall:            waterfall,
		Tables:               tables,
	}, nil
}

func (c *Cohort) applyStudyPeriod(domains map[string]relation.Table) (map[string]relation.Table, error) {
	if c.StudyPeriodMin == nil && c.StudyPeriodMax == nil {
		return domains, nil
	}
	f := dataperiod.New(c.StudyPeriodMin, c.StudyPeriodMax)
	out := make(map[string]relation.Table, len(domains))
	for name, t := range domains {
		filteredTable, err := f.Apply(t)
		if err != nil {
			return nil, fmt.Errorf("cohort %q: data period filter on domain %q: %w", c.Name, name, err)
		}
		out[name] = filteredTable
	}
	return out, nil
}

// attachIndexDate left-joins INDEX_DATE onto every domain table, keyed by
// PERSON_ID.
func attachIndexDate(domains map[string]relation.Table, indexTable relation.Table) map[string]relation.Table {
	out := make(map[string]relation.Table, len(domains))
	for name, t := range domains {
		out[name] = t.Join(indexTable, []relation.JoinOn{relation.Eq(relation.ColPersonID)}, relation.JoinLeft)
	}
	return out
}

func distinctPersons(t relation.Table) relation.Table {
	return t.Select(relation.ColPersonID).Distinct()
}

func distinctPersonCount(t relation.Table) int {
	return len(distinctPersons(t).ToNative())
}

// namespaceColumns renames t's EVENT_DATE/VALUE/BOOLEAN columns with a
// "<NAME>_" prefix so multiple characteristics/outcomes can be left-joined
// onto one cohort table without colliding.
func namespaceColumns(t relation.Table, name string) relation.Table {
	prefix := strings.ToUpper(name) + "_"
	return t.
		Mutate(prefix+"EVENT_DATE", relation.Col(relation.ColEventDate)).
		Mutate(prefix+"VALUE", relation.Col(relation.ColValue)).
		Mutate(prefix+"BOOLEAN", relation.Col(relation.ColBoolean)).
		Select(relation.ColPersonID, prefix+"EVENT_DATE", prefix+"VALUE", prefix+"BOOLEAN")
}

func waterfallRow(typ, name string, n, remaining, delta, entryCount int) WaterfallRow {
	pct := 0.0
	if entryCount > 0 {
		pct = float64(remaining) / float64(entryCount) * 100
	}
	return WaterfallRow{
		Type:           typ,
		Name:           name,
		N:              n,
		Remaining:      remaining,
		Delta:          delta,
		PercentOfEntry: pct,
	}
}
