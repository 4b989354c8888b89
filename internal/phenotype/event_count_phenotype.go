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

// ComponentDateSelect picks which of a subject's qualifying component
// rows contributes the count row's own "component date" before
// return_date reduction runs.
type ComponentDateSelect string

const (
	ComponentFirst ComponentDateSelect = "first"
	ComponentLast  ComponentDateSelect = "last"
)

// EventCountPhenotype counts rows of an upstream phenotype satisfying a
// value filter, per subject, optionally within a relative time range
//. It emits one row per subject with VALUE=count;
// EVENT_DATE is the ComponentDateSelect-chosen component row's date,
// further reduced by ReturnDate across subjects if ReturnDate != All.
type EventCountPhenotype struct {
	base
	Phenotype           node.ComputeNode
	ValueMin, ValueMax  *value.Value
	RelativeTimeRange   *RelTimeRangeSpec
	ReturnDate          ReturnDate
	ComponentDateSelect ComponentDateSelect
}

func NewEventCountPhenotype(name string, phen node.ComputeNode, valueMin, valueMax *value.Value, rtr *RelTimeRangeSpec, rd ReturnDate, componentSelect ComponentDateSelect) (*EventCountPhenotype, error) {
	children := []node.ComputeNode{phen}
	if rtr != nil && rtr.AnchorPhenotype != nil {
		children = append(children, rtr.AnchorPhenotype)
	}
	b, err := newBase(name, children...)
	if err != nil {
		return nil, err
	}
	if componentSelect == "" {
		componentSelect = ComponentFirst
	}
	return &EventCountPhenotype{
		base: b, Phenotype: phen, ValueMin: valueMin, ValueMax: valueMax,
		RelativeTimeRange: rtr, ReturnDate: rd, ComponentDateSelect: componentSelect,
	}, nil
}

func (p *EventCountPhenotype) ClassName() string { return "EventCountPhenotype" }

func (p *EventCountPhenotype) ToDict() serialize.Dict {
	d := toDictBase(p.ClassName(), p.name)
	d["phenotype"] = p.Phenotype.Name()
	d["return_date"] = returnDateDict(p.ReturnDate)
	d["component_date_select"] = string(p.ComponentDateSelect)
	if p.ValueMin != nil {
		d["value_min"] = p.ValueMin.ToDict()
	}
	if p.ValueMax != nil {
		d["value_max"] = p.ValueMax.ToDict()
	}
	if p.RelativeTimeRange != nil {
		d["relative_time_range"] = p.RelativeTimeRange.toDict()
	}
	return d
}

// EventCountPhenotypeFromDict reconstructs an EventCountPhenotype from its
// ToDict representation.
func EventCountPhenotypeFromDict(d serialize.Dict) (*EventCountPhenotype, error) {
	phenName, ok := d["phenotype"].(string)
	if !ok {
		return nil, fmt.Errorf("phenotype: EventCountPhenotype requires \"phenotype\"")
	}
	valueMin, err := decodeValue(d, "value_min")
	if err != nil {
		return nil, err
	}
	valueMax, err := decodeValue(d, "value_max")
	if err != nil {
		return nil, err
	}
	var rtr *RelTimeRangeSpec
	if raw, ok := d["relative_time_range"]; ok {
		s, err := relTimeRangeSpecFromDict(raw)
		if err != nil {
			return nil, err
		}
		rtr = &s
	}
	return NewEventCountPhenotype(
		stringFromDict(d, "name"), node.NamedRef(phenName), valueMin, valueMax, rtr,
		ReturnDate(stringFromDict(d, "return_date")),
		ComponentDateSelect(stringFromDict(d, "component_date_select")),
	)
}

func (p *EventCountPhenotype) Compute(tables map[string]relation.Table) (relation.Table, error) {
	rows, ok := tables[p.Phenotype.Name()]
	if !ok {
		return nil, missingTable(p.name, p.Phenotype.Name())
	}

	var out relation.Table = rows
	var err error
	if p.ValueMin != nil || p.ValueMax != nil {
		vf := filter.NewValueFilter(p.ValueMin, p.ValueMax, relation.ColValue)
		out, err = vf.Apply(out)
		if err != nil {
			return nil, err
		}
	}
	if p.RelativeTimeRange != nil {
		rtf := p.RelativeTimeRange.resolve(tables)
		out, err = rtf.Apply(out)
		if err != nil {
			return nil, err
		}
	}

	byComponentDate := aggregate.First
	if p.ComponentDateSelect == ComponentLast {
		byComponentDate = aggregate.Last
	}

	counts := make(map[interface{}]int)
	for _, r := range out.ToNative() {
		counts[r.Get(relation.ColPersonID)]++
	}

	componentReduced := aggregate.NewDateAggregator(byComponentDate).Apply(out)
	var result []relation.Row
	for _, r := range componentReduced.ToNative() {
		pid := r.Get(relation.ColPersonID)
		result = append(result, relation.Row{
			relation.ColPersonID:  pid,
			relation.ColBoolean:   true,
			relation.ColEventDate: r.Get(relation.ColEventDate),
			relation.ColValue:     float64(counts[pid]),
		})
	}

	table := relation.NewMemoryTable(
		[]string{relation.ColPersonID, relation.ColBoolean, relation.ColEventDate, relation.ColValue}, result)
	return applyReturnDate(table, p.ReturnDate, relation.ColIndexDate), nil
}
