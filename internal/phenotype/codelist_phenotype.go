package phenotype

import (
	"fmt"

	"github.com/Bayer-Group/phenex-go/internal/codelist"
	"github.com/Bayer-Group/phenex-go/internal/filter"
	"github.com/Bayer-Group/phenex-go/internal/node"
	"github.com/Bayer-Group/phenex-go/internal/phenexerr"
	"github.com/Bayer-Group/phenex-go/internal/relation"
	"github.com/Bayer-Group/phenex-go/internal/serialize"
	"github.com/Bayer-Group/phenex-go/internal/value"
)

// RelTimeRangeSpec declares one relative-time-range bound a phenotype
// applies to its rows, anchored either to another phenotype's EVENT_DATE
// or, when AnchorPhenotype is nil, to the row's own INDEX_DATE. Declaring
// AnchorPhenotype is what wires the dependency edge between phenotypes —
// the only filter that introduces one — and the workflow builder
// discovers it via Children().
type RelTimeRangeSpec struct {
	MinDays, MaxDays *value.Value
	When             filter.When
	AnchorPhenotype  node.ComputeNode // nil => INDEX_DATE
}

func (s RelTimeRangeSpec) toDict() serialize.Dict {
	d := serialize.Dict{"when": string(s.When)}
	if s.MinDays != nil {
		d["min_days"] = s.MinDays.ToDict()
	}
	if s.MaxDays != nil {
		d["max_days"] = s.MaxDays.ToDict()
	}
	if s.AnchorPhenotype != nil {
		d["anchor_phenotype"] = s.AnchorPhenotype.Name()
	}
	return d
}

func (s RelTimeRangeSpec) resolve(tables map[string]relation.Table) *filter.RelativeTimeRangeFilter {
	var anchorTable relation.Table
	if s.AnchorPhenotype != nil {
		anchorTable = tables[s.AnchorPhenotype.Name()]
	}
	return filter.NewRelativeTimeRangeFilter(s.MinDays, s.MaxDays, s.When, anchorTable)
}

func relTimeRangeChildren(specs []RelTimeRangeSpec) []node.ComputeNode {
	var out []node.ComputeNode
	for _, s := range specs {
		if s.AnchorPhenotype != nil {
			out = append(out, s.AnchorPhenotype)
		}
	}
	return out
}

// CodelistPhenotype filters a domain table by codelist, optionally by an
// absolute date range and one or more relative time ranges, then
// temporally reduces per ReturnDate.
type CodelistPhenotype struct {
	base
	Domain            string
	Codelist          codelistResolvable
	UseCodeType       bool
	DateRangeMin      *value.DateValue
	DateRangeMax      *value.DateValue
	RelativeTimeRanges []RelTimeRangeSpec
	ReturnDate        ReturnDate
}

type codelistResolvable interface {
	ToCodes() []codelist.Code
	ClassName() string
	ToDict() serialize.Dict
}

// NewCodelistPhenotype builds a CodelistPhenotype. Pass a return date of
// "" for the spec's default (First).
func NewCodelistPhenotype(name, domain string, cl codelistResolvable, useCodeType bool, rd ReturnDate, relTimeRanges ...RelTimeRangeSpec) (*CodelistPhenotype, error) {
	b, err := newBase(name, relTimeRangeChildren(relTimeRanges)...)
	if err != nil {
		return nil, err
	}
	return &CodelistPhenotype{
		base:               b,
		Domain:             domain,
		Codelist:           cl,
		UseCodeType:        useCodeType,
		RelativeTimeRanges: relTimeRanges,
		ReturnDate:         rd,
	}, nil
}

func (p *CodelistPhenotype) ClassName() string { return "CodelistPhenotype" }

func (p *CodelistPhenotype) ToDict() serialize.Dict {
	d := toDictBase(p.ClassName(), p.name)
	d["domain"] = p.Domain
	d["codelist"] = p.Codelist.ToDict()
	d["use_code_type"] = p.UseCodeType
	d["return_date"] = returnDateDict(p.ReturnDate)
	if p.DateRangeMin != nil {
		d["date_range_min"] = p.DateRangeMin.ToDict()
	}
	if p.DateRangeMax != nil {
		d["date_range_max"] = p.DateRangeMax.ToDict()
	}
	if len(p.RelativeTimeRanges) > 0 {
		ranges := make([]serialize.Dict, len(p.RelativeTimeRanges))
		for i, r := range p.RelativeTimeRanges {
			ranges[i] = r.toDict()
		}
		d["relative_time_ranges"] = ranges
	}
	return d
}

// CodelistPhenotypeFromDict reconstructs a CodelistPhenotype from its
// ToDict representation.
func CodelistPhenotypeFromDict(d serialize.Dict) (*CodelistPhenotype, error) {
	clRaw, ok := d["codelist"]
	if !ok {
		return nil, fmt.Errorf("phenotype: CodelistPhenotype requires \"codelist\"")
	}
	cl, err := codelistFromDict(clRaw)
	if err != nil {
		return nil, err
	}
	var relTimeRanges []RelTimeRangeSpec
	if raw, ok := d["relative_time_ranges"]; ok {
		relTimeRanges, err = relTimeRangeSpecsFromDict(raw)
		if err != nil {
			return nil, err
		}
	}
	useCodeType, _ := d["use_code_type"].(bool)

	p, err := NewCodelistPhenotype(
		stringFromDict(d, "name"), stringFromDict(d, "domain"), cl, useCodeType,
		ReturnDate(stringFromDict(d, "return_date")), relTimeRanges...,
	)
	if err != nil {
		return nil, err
	}
	if p.DateRangeMin, err = decodeDateValue(d, "date_range_min"); err != nil {
		return nil, err
	}
	if p.DateRangeMax, err = decodeDateValue(d, "date_range_max"); err != nil {
		return nil, err
	}
	return p, nil
}

// filteredRows applies the codelist/date-range/relative-time-range
// filter chain (but not the temporal reduction) against domain,
// resolving any relative-time-range anchors from tables. It is shared
// with MeasurementPhenotype, which needs the same row set but must keep
// per-row VALUE intact rather than nulling it.
func (p *CodelistPhenotype) filteredRows(domain relation.Table, tables map[string]relation.Table) (relation.Table, error) {
	cf := filter.NewCodelistFilter(p.Codelist, p.UseCodeType)
	out, err := cf.Apply(domain)
	if err != nil {
		return nil, err
	}

	if p.DateRangeMin != nil || p.DateRangeMax != nil {
		out, err = filter.DateFilter(p.DateRangeMin, p.DateRangeMax, relation.ColEventDate).Apply(out)
		if err != nil {
			return nil, err
		}
	}

	for _, spec := range p.RelativeTimeRanges {
		rtf := spec.resolve(tables)
		out, err = rtf.Apply(out)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (p *CodelistPhenotype) Compute(tables map[string]relation.Table) (relation.Table, error) {
	t, ok := tables[p.Domain]
	if !ok {
		return nil, missingTable(p.name, p.Domain)
	}

	out, err := p.filteredRows(t, tables)
	if err != nil {
		return nil, err
	}

	anchorCol := relation.ColIndexDate
	if p.ReturnDate == Nearest && !hasColumnNamed(out, anchorCol) {
		return nil, &phenexerr.ConfigurationError{Node: p.name, Detail: "return_date=nearest requires an INDEX_DATE column on the domain table"}
	}

	out = applyReturnDate(out, p.ReturnDate, anchorCol)
	out = out.Mutate(relation.ColValue, relation.Null())
	out = withBooleanTrue(out)
	return selectPhenotypeColumns(out), nil
}

func hasColumnNamed(t relation.Table, name string) bool {
	for _, c := range t.Columns() {
		if c == name {
			return true
		}
	}
	return false
}
