package phenotype

import (
	"github.com/Bayer-Group/phenex-go/internal/filter"
	"github.com/Bayer-Group/phenex-go/internal/relation"
	"github.com/Bayer-Group/phenex-go/internal/serialize"
)

// CategoricalPhenotype is a row-level categorical selection over a
// domain table: rows whose CategoryColumn value is in AllowedValues
// qualify, carrying that value as VALUE. EVENT_DATE is
// whatever the domain row provides (often null, e.g. for a person-level
// sex column) unless DateColumn names a column to carry through.
type CategoricalPhenotype struct {
	base
	Domain         string
	CategoryColumn string
	AllowedValues  []string
	DateColumn     string // "" => EVENT_DATE stays null
}

// NewCategoricalPhenotype builds a CategoricalPhenotype.
func NewCategoricalPhenotype(name, domain, categoryColumn string, allowedValues []string, dateColumn string) (*CategoricalPhenotype, error) {
	b, err := newBase(name)
	if err != nil {
		return nil, err
	}
	return &CategoricalPhenotype{
		base:           b,
		Domain:         domain,
		CategoryColumn: categoryColumn,
		AllowedValues:  allowedValues,
		DateColumn:     dateColumn,
	}, nil
}

// NewSexPhenotype builds the common SexPhenotype specialisation: a
// CategoricalPhenotype over the person domain's SEX column.
func NewSexPhenotype(name, personDomain string, allowedValues []string) (*CategoricalPhenotype, error) {
	return NewCategoricalPhenotype(name, personDomain, "SEX", allowedValues, "")
}

func (p *CategoricalPhenotype) ClassName() string { return "CategoricalPhenotype" }

func (p *CategoricalPhenotype) ToDict() serialize.Dict {
	d := toDictBase(p.ClassName(), p.name)
	d["domain"] = p.Domain
	d["category_column"] = p.CategoryColumn
	d["allowed_values"] = p.AllowedValues
	d["date_column"] = p.DateColumn
	return d
}

// CategoricalPhenotypeFromDict reconstructs a CategoricalPhenotype from
// its ToDict representation.
func CategoricalPhenotypeFromDict(d serialize.Dict) (*CategoricalPhenotype, error) {
	allowed, err := decodeStringList(d["allowed_values"])
	if err != nil {
		return nil, err
	}
	return NewCategoricalPhenotype(
		stringFromDict(d, "name"),
		stringFromDict(d, "domain"),
		stringFromDict(d, "category_column"),
		allowed,
		stringFromDict(d, "date_column"),
	)
}

func (p *CategoricalPhenotype) Compute(tables map[string]relation.Table) (relation.Table, error) {
	t, ok := tables[p.Domain]
	if !ok {
		return nil, missingTable(p.name, p.Domain)
	}

	cf := filter.NewCategoricalFilter(p.CategoryColumn, p.AllowedValues)
	out, err := cf.Apply(t)
	if err != nil {
		return nil, err
	}

	out = out.Mutate(relation.ColValue, relation.Col(p.CategoryColumn))
	if p.DateColumn != "" {
		out = out.Mutate(relation.ColEventDate, relation.Col(p.DateColumn))
	} else {
		out = out.Mutate(relation.ColEventDate, relation.Null())
	}
	out = withBooleanTrue(out)
	return selectPhenotypeColumns(out), nil
}
