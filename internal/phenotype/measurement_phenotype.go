package phenotype

import (
	"fmt"

	"github.com/Bayer-Group/phenex-go/internal/aggregate"
	"github.com/Bayer-Group/phenex-go/internal/filter"
	"github.com/Bayer-Group/phenex-go/internal/node"
	"github.com/Bayer-Group/phenex-go/internal/relation"
	"github.com/Bayer-Group/phenex-go/internal/serialize"
	"github.com/Bayer-Group/phenex-go/internal/value"
)

// ValueAgg selects MeasurementPhenotype's optional value aggregation.
type ValueAgg string

const (
	ValueAggNone   ValueAgg = ""
	ValueAggMin    ValueAgg = "min"
	ValueAggMax    ValueAgg = "max"
	ValueAggMean   ValueAgg = "mean"
	ValueAggMedian ValueAgg = "median"
)

func (a ValueAgg) toAggregator(daily bool) *aggregate.ValueAggregator {
	var fn aggregate.ValueFunc
	switch a {
	case ValueAggMin:
		fn = aggregate.ValueMin
	case ValueAggMax:
		fn = aggregate.ValueMax
	case ValueAggMedian:
		fn = aggregate.ValueMedian
	default:
		fn = aggregate.ValueMean
	}
	agg := aggregate.NewValueAggregator(fn)
	if daily {
		agg = agg.Daily()
	}
	return agg
}

// MeasurementPhenotype is a CodelistPhenotype that also filters numeric
// VALUE and optionally aggregates values per subject or per day
//. FurtherValueFilterPhenotype, when set, narrows the row
// set to that phenotype's subjects+dates before the local value filter
// is applied.
type MeasurementPhenotype struct {
	base
	Codelist                *CodelistPhenotype
	ValueMin, ValueMax       *value.Value
	ValueAggregation         ValueAgg
	DailyAggregation         bool
	FurtherValueFilterPhenotype node.ComputeNode
}

// NewMeasurementPhenotype wraps an already-constructed CodelistPhenotype
// (sharing its domain/codelist/date-range/relative-time-range filtering)
// with value filtering and aggregation.
func NewMeasurementPhenotype(name string, cl *CodelistPhenotype, valueMin, valueMax *value.Value, agg ValueAgg, daily bool, further node.ComputeNode) (*MeasurementPhenotype, error) {
	children := []node.ComputeNode{cl}
	if further != nil {
		children = append(children, further)
	}
	b, err := newBase(name, children...)
	if err != nil {
		return nil, err
	}
	return &MeasurementPhenotype{
		base:                        b,
		Codelist:                    cl,
		ValueMin:                    valueMin,
		ValueMax:                    valueMax,
		ValueAggregation:            agg,
		DailyAggregation:            daily,
		FurtherValueFilterPhenotype: further,
	}, nil
}

func (p *MeasurementPhenotype) ClassName() string { return "MeasurementPhenotype" }

func (p *MeasurementPhenotype) ToDict() serialize.Dict {
	d := toDictBase(p.ClassName(), p.name)
	d["codelist_phenotype"] = p.Codelist.ToDict()
	if p.ValueMin != nil {
		d["value_min"] = p.ValueMin.ToDict()
	}
	if p.ValueMax != nil {
		d["value_max"] = p.ValueMax.ToDict()
	}
	d["value_aggregation"] = string(p.ValueAggregation)
	d["daily_aggregation"] = p.DailyAggregation
	if p.FurtherValueFilterPhenotype != nil {
		d["further_value_filter_phenotype"] = p.FurtherValueFilterPhenotype.Name()
	}
	return d
}

// MeasurementPhenotypeFromDict reconstructs a MeasurementPhenotype from
// its ToDict representation.
func MeasurementPhenotypeFromDict(d serialize.Dict) (*MeasurementPhenotype, error) {
	clRaw, ok := d["codelist_phenotype"]
	if !ok {
		return nil, fmt.Errorf("phenotype: MeasurementPhenotype requires \"codelist_phenotype\"")
	}
	clDict, ok := asDict(clRaw)
	if !ok {
		return nil, fmt.Errorf("phenotype: \"codelist_phenotype\" must be a dict, got %T", clRaw)
	}
	cl, err := CodelistPhenotypeFromDict(clDict)
	if err != nil {
		return nil, err
	}
	valueMin, err := decodeValue(d, "value_min")
	if err != nil {
		return nil, err
	}
	valueMax, err := decodeValue(d, "value_max")
	if err != nil {
		return nil, err
	}
	var further node.ComputeNode
	if name, ok := d["further_value_filter_phenotype"].(string); ok {
		further = node.NamedRef(name)
	}
	daily, _ := d["daily_aggregation"].(bool)
	return NewMeasurementPhenotype(
		stringFromDict(d, "name"), cl, valueMin, valueMax,
		ValueAgg(stringFromDict(d, "value_aggregation")), daily, further,
	)
}

func (p *MeasurementPhenotype) Compute(tables map[string]relation.Table) (relation.Table, error) {
	// CodelistPhenotype.Compute nulls VALUE and temporally reduces, so this
	// node re-runs the shared filter chain against the raw domain table
	// rather than reusing the child's own output, keeping per-row VALUE
	// intact for the value filter/aggregation below.
	domain, ok := tables[p.Codelist.Domain]
	if !ok {
		return nil, missingTable(p.name, p.Codelist.Domain)
	}
	out, err := p.Codelist.filteredRows(domain, tables)
	if err != nil {
		return nil, err
	}

	if p.FurtherValueFilterPhenotype != nil {
		further, ok := tables[p.FurtherValueFilterPhenotype.Name()]
		if !ok {
			return nil, missingTable(p.name, p.FurtherValueFilterPhenotype.Name())
		}
		keys := further.Select(relation.ColPersonID, relation.ColEventDate).Distinct()
		out = out.Join(keys, []relation.JoinOn{relation.Eq(relation.ColPersonID), relation.Eq(relation.ColEventDate)}, relation.JoinSemi)
	}

	if p.ValueMin != nil || p.ValueMax != nil {
		vf := filter.NewValueFilter(p.ValueMin, p.ValueMax, relation.ColValue)
		out, err = vf.Apply(out)
		if err != nil {
			return nil, err
		}
	}

	if p.ValueAggregation != ValueAggNone {
		out = p.ValueAggregation.toAggregator(p.DailyAggregation).Apply(out)
	} else {
		anchorCol := relation.ColIndexDate
		out = applyReturnDate(out, p.Codelist.ReturnDate, anchorCol)
	}

	out = withBooleanTrue(out)
	return selectPhenotypeColumns(out), nil
}
