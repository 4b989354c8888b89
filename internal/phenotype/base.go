// Package phenotype implements the phenotype catalogue:
// the concrete ComputeNode types a cohort is assembled from. Each
// phenotype filters and/or aggregates one or more domain tables into a
// PhenotypeTable satisfying two invariants: row uniqueness per return_date,
// and a well-formed BOOLEAN sentinel column.
package phenotype

import (
	"github.com/Bayer-Group/phenex-go/internal/aggregate"
	"github.com/Bayer-Group/phenex-go/internal/node"
	"github.com/Bayer-Group/phenex-go/internal/phenexerr"
	"github.com/Bayer-Group/phenex-go/internal/relation"
	"github.com/Bayer-Group/phenex-go/internal/serialize"
)

// ReturnDate selects the temporal reduction a phenotype applies to its
// filtered rows. Default is First.
type ReturnDate string

const (
	First   ReturnDate = "first"
	Last    ReturnDate = "last"
	Nearest ReturnDate = "nearest"
	All     ReturnDate = "all"
)

// base holds the bookkeeping every phenotype shares: its declared name
// and children. Phenotype types embed it and implement ClassName,
// ToDict and Compute themselves.
type base struct {
	name     string
	children []node.ComputeNode
}

func newBase(name string, children ...node.ComputeNode) (base, error) {
	b := base{name: name, children: children}
	if err := node.CheckChildren(name, children); err != nil {
		return base{}, err
	}
	return b, nil
}

func (b base) Name() string                { return b.name }
func (b base) Children() []node.ComputeNode { return b.children }

// applyReturnDate reduces t per rd, using anchorCol (already joined onto
// t, if needed) for Nearest. An empty anchorCol with rd == Nearest is a
// caller error (surfaced as a ConfigurationError by the calling
// phenotype, which knows its own name).
func applyReturnDate(t relation.Table, rd ReturnDate, anchorCol string) relation.Table {
	switch rd {
	case Last:
		return aggregate.NewDateAggregator(aggregate.Last).Apply(t)
	case Nearest:
		agg := aggregate.NewDateAggregator(aggregate.Nearest)
		agg.AnchorColumn = anchorCol
		return agg.Apply(t)
	case All:
		return t
	default: // First
		return aggregate.NewDateAggregator(aggregate.First).Apply(t)
	}
}

// withBooleanTrue mutates in a BOOLEAN = TRUE column, the sentinel every
// PhenotypeTable carries.
func withBooleanTrue(t relation.Table) relation.Table {
	return t.Mutate(relation.ColBoolean, relation.Lit(true))
}

// selectPhenotypeColumns narrows t down to the canonical PhenotypeTable
// shape. Extra columns a phenotype needed mid-computation (joined anchor
// dates, synthetic day-delta columns) are dropped here.
func selectPhenotypeColumns(t relation.Table) relation.Table {
	return t.Select(relation.ColPersonID, relation.ColBoolean, relation.ColEventDate, relation.ColValue)
}

func missingTable(nodeName, domain string) error {
	return &phenexerr.LookupError{Kind: "table", Name: domain}
}

func toDictBase(className, name string) serialize.Dict {
	return serialize.Dict{"class_name": className, "name": name}
}

func returnDateDict(rd ReturnDate) interface{} {
	if rd == "" {
		return string(First)
	}
	return string(rd)
}
