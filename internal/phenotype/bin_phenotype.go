package phenotype

import (
	"fmt"
	"sort"

	"github.com/Bayer-Group/phenex-go/internal/node"
	"github.com/Bayer-Group/phenex-go/internal/relation"
	"github.com/Bayer-Group/phenex-go/internal/serialize"
)

// Bin is one half-open numeric interval [Lo, Hi) a BinPhenotype maps to
// Label. A zero Hi with HasHi=false means "no upper bound".
type Bin struct {
	HasLo bool
	Lo    float64
	HasHi bool
	Hi    float64
	Label string
}

// ValueMapping maps a discrete source value, or any code in Codelist, to
// Label.
type ValueMapping struct {
	Value    string
	Codelist codelistResolvable
	Label    string
}

// BinPhenotype transforms an upstream phenotype's VALUE into a label,
// either via numeric binning or discrete value/code mapping. Exactly one of Bins or ValueMappings is non-empty.
type BinPhenotype struct {
	base
	Phenotype     node.ComputeNode
	Bins          []Bin
	ValueMappings []ValueMapping
}

func NewBinPhenotype(name string, phen node.ComputeNode, bins []Bin, mappings []ValueMapping) (*BinPhenotype, error) {
	b, err := newBase(name, phen)
	if err != nil {
		return nil, err
	}
	return &BinPhenotype{base: b, Phenotype: phen, Bins: bins, ValueMappings: mappings}, nil
}

func (p *BinPhenotype) ClassName() string { return "BinPhenotype" }

func (p *BinPhenotype) ToDict() serialize.Dict {
	d := toDictBase(p.ClassName(), p.name)
	d["phenotype"] = p.Phenotype.Name()
	if len(p.Bins) > 0 {
		bins := make([]serialize.Dict, len(p.Bins))
		for i, bin := range p.Bins {
			bins[i] = serialize.Dict{"label": bin.Label}
			if bin.HasLo {
				bins[i]["lo"] = bin.Lo
			}
			if bin.HasHi {
				bins[i]["hi"] = bin.Hi
			}
		}
		d["bins"] = bins
	}
	if len(p.ValueMappings) > 0 {
		mappings := make([]serialize.Dict, len(p.ValueMappings))
		for i, m := range p.ValueMappings {
			mappings[i] = serialize.Dict{"label": m.Label}
			if m.Codelist != nil {
				mappings[i]["codelist"] = m.Codelist.ToDict()
			} else {
				mappings[i]["value"] = m.Value
			}
		}
		d["value_mapping"] = mappings
	}
	return d
}

// BinPhenotypeFromDict reconstructs a BinPhenotype from its ToDict
// representation.
func BinPhenotypeFromDict(d serialize.Dict) (*BinPhenotype, error) {
	phenName, ok := d["phenotype"].(string)
	if !ok {
		return nil, fmt.Errorf("phenotype: BinPhenotype requires \"phenotype\"")
	}

	var bins []Bin
	if raw, ok := d["bins"]; ok {
		items, err := decodeList(raw)
		if err != nil {
			return nil, err
		}
		bins = make([]Bin, len(items))
		for i, item := range items {
			bd, ok := asDict(item)
			if !ok {
				return nil, fmt.Errorf("phenotype: bin entry must be a dict, got %T", item)
			}
			b := Bin{Label: stringFromDict(bd, "label")}
			if _, ok := bd["lo"]; ok {
				b.HasLo, b.Lo = true, floatFromDict(bd, "lo")
			}
			if _, ok := bd["hi"]; ok {
				b.HasHi, b.Hi = true, floatFromDict(bd, "hi")
			}
			bins[i] = b
		}
	}

	var mappings []ValueMapping
	if raw, ok := d["value_mapping"]; ok {
		items, err := decodeList(raw)
		if err != nil {
			return nil, err
		}
		mappings = make([]ValueMapping, len(items))
		for i, item := range items {
			md, ok := asDict(item)
			if !ok {
				return nil, fmt.Errorf("phenotype: value_mapping entry must be a dict, got %T", item)
			}
			vm := ValueMapping{Label: stringFromDict(md, "label")}
			if clRaw, ok := md["codelist"]; ok {
				cl, err := codelistFromDict(clRaw)
				if err != nil {
					return nil, err
				}
				vm.Codelist = cl
			} else {
				vm.Value = stringFromDict(md, "value")
			}
			mappings[i] = vm
		}
	}

	return NewBinPhenotype(stringFromDict(d, "name"), node.NamedRef(phenName), bins, mappings)
}

func (p *BinPhenotype) binLabel(v float64) string {
	sorted := make([]Bin, len(p.Bins))
	copy(sorted, p.Bins)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Lo < sorted[j].Lo })

	for _, bin := range sorted {
		if bin.HasLo && v < bin.Lo {
			continue
		}
		if bin.HasHi && v >= bin.Hi {
			continue
		}
		return bin.Label
	}
	if len(sorted) == 0 {
		return ""
	}
	lowest, highest := sorted[0], sorted[len(sorted)-1]
	if lowest.HasLo && v < lowest.Lo {
		return fmt.Sprintf("<%s", formatBound(lowest.Lo))
	}
	return fmt.Sprintf(">=%s", formatBound(highest.Hi))
}

func formatBound(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%g", v)
}

func (p *BinPhenotype) mappingLabel(raw interface{}) (string, bool) {
	s := fmt.Sprintf("%v", raw)
	for _, m := range p.ValueMappings {
		if m.Codelist != nil {
			for _, c := range m.Codelist.ToCodes() {
				if c.Code == s {
					return m.Label, true
				}
			}
			continue
		}
		if m.Value == s {
			return m.Label, true
		}
	}
	return "", false
}

func (p *BinPhenotype) Compute(tables map[string]relation.Table) (relation.Table, error) {
	t, ok := tables[p.Phenotype.Name()]
	if !ok {
		return nil, missingTable(p.name, p.Phenotype.Name())
	}

	var out []relation.Row
	for _, r := range t.ToNative() {
		raw := r.Get(relation.ColValue)
		var label string
		if len(p.Bins) > 0 {
			v, ok := raw.(float64)
			if !ok {
				continue
			}
			label = p.binLabel(v)
		} else {
			l, ok := p.mappingLabel(raw)
			if !ok {
				continue
			}
			label = l
		}
		out = append(out, relation.Row{
			relation.ColPersonID:  r.Get(relation.ColPersonID),
			relation.ColBoolean:   true,
			relation.ColEventDate: r.Get(relation.ColEventDate),
			relation.ColValue:     label,
		})
	}

	return relation.NewMemoryTable(
		[]string{relation.ColPersonID, relation.ColBoolean, relation.ColEventDate, relation.ColValue}, out), nil
}
