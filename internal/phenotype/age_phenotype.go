package phenotype

import (
	"time"

	"github.com/Bayer-Group/phenex-go/internal/filter"
	"github.com/Bayer-Group/phenex-go/internal/node"
	"github.com/Bayer-Group/phenex-go/internal/phenexerr"
	"github.com/Bayer-Group/phenex-go/internal/relation"
	"github.com/Bayer-Group/phenex-go/internal/serialize"
	"github.com/Bayer-Group/phenex-go/internal/value"
)

// Person-table columns AgePhenotype reads. These aren't part of the
// engine's nine canonical Table columns: they're the
// source system's person-domain shape, recognised only here.
const (
	colDateOfBirth  = "DATE_OF_BIRTH"
	colYearOfBirth  = "YEAR_OF_BIRTH"
	colMonthOfBirth = "MONTH_OF_BIRTH"
	colDayOfBirth   = "DAY_OF_BIRTH"
)

// AgePhenotype reads the person table and computes integer years between
// birth and an anchor date. When DATE_OF_BIRTH is absent
// or null on a row, it is assembled from YEAR/MONTH/DAY_OF_BIRTH, using
// ImputeMonth/ImputeDay (1-indexed) when MONTH_OF_BIRTH/DAY_OF_BIRTH are
// themselves null.
type AgePhenotype struct {
	base
	PersonDomain       string
	ValueMin, ValueMax *value.Value
	ImputeMonth        int // defaults to 1 (January) when 0
	ImputeDay          int // defaults to 1 when 0
	AnchorPhenotype    node.ComputeNode // nil => INDEX_DATE
}

// NewAgePhenotype builds an AgePhenotype over personDomain (typically
// "person"). anchor may be nil, meaning the row's own INDEX_DATE.
func NewAgePhenotype(name, personDomain string, valueMin, valueMax *value.Value, imputeMonth, imputeDay int, anchor node.ComputeNode) (*AgePhenotype, error) {
	var children []node.ComputeNode
	if anchor != nil {
		children = append(children, anchor)
	}
	b, err := newBase(name, children...)
	if err != nil {
		return nil, err
	}
	return &AgePhenotype{
		base:            b,
		PersonDomain:    personDomain,
		ValueMin:        valueMin,
		ValueMax:        valueMax,
		ImputeMonth:     imputeMonth,
		ImputeDay:       imputeDay,
		AnchorPhenotype: anchor,
	}, nil
}

func (p *AgePhenotype) ClassName() string { return "AgePhenotype" }

func (p *AgePhenotype) ToDict() serialize.Dict {
	d := toDictBase(p.ClassName(), p.name)
	d["person_domain"] = p.PersonDomain
	d["impute_month"] = p.ImputeMonth
	d["impute_day"] = p.ImputeDay
	if p.ValueMin != nil {
		d["value_min"] = p.ValueMin.ToDict()
	}
	if p.ValueMax != nil {
		d["value_max"] = p.ValueMax.ToDict()
	}
	if p.AnchorPhenotype != nil {
		d["anchor_phenotype"] = p.AnchorPhenotype.Name()
	}
	return d
}

// AgePhenotypeFromDict reconstructs an AgePhenotype from its ToDict
// representation.
func AgePhenotypeFromDict(d serialize.Dict) (*AgePhenotype, error) {
	valueMin, err := decodeValue(d, "value_min")
	if err != nil {
		return nil, err
	}
	valueMax, err := decodeValue(d, "value_max")
	if err != nil {
		return nil, err
	}
	return NewAgePhenotype(
		stringFromDict(d, "name"),
		stringFromDict(d, "person_domain"),
		valueMin, valueMax,
		intFromDict(d, "impute_month"),
		intFromDict(d, "impute_day"),
		decodeAnchor(d, "anchor_phenotype"),
	)
}

func (p *AgePhenotype) anchorDate(row relation.Row) (time.Time, bool) {
	if t, ok := row.Get(relation.ColIndexDate).(time.Time); ok {
		return t, true
	}
	return time.Time{}, false
}

func (p *AgePhenotype) birthDate(row relation.Row) (time.Time, bool) {
	if dob, ok := row.Get(colDateOfBirth).(time.Time); ok {
		return dob, true
	}
	year, ok := row.Get(colYearOfBirth).(float64)
	if !ok {
		return time.Time{}, false
	}
	month := p.ImputeMonth
	if m, ok := row.Get(colMonthOfBirth).(float64); ok {
		month = int(m)
	} else if month == 0 {
		month = 1
	}
	day := p.ImputeDay
	if d, ok := row.Get(colDayOfBirth).(float64); ok {
		day = int(d)
	} else if day == 0 {
		day = 1
	}
	return time.Date(int(year), time.Month(month), day, 0, 0, 0, 0, time.UTC), true
}

func ageInYears(birth, anchor time.Time) int {
	years := anchor.Year() - birth.Year()
	anniversary := time.Date(anchor.Year(), birth.Month(), birth.Day(), 0, 0, 0, 0, time.UTC)
	if anchor.Before(anniversary) {
		years--
	}
	return years
}

func (p *AgePhenotype) Compute(tables map[string]relation.Table) (relation.Table, error) {
	person, ok := tables[p.PersonDomain]
	if !ok {
		return nil, missingTable(p.name, p.PersonDomain)
	}

	var anchorByPerson map[interface{}]time.Time
	if p.AnchorPhenotype != nil {
		anchorTable, ok := tables[p.AnchorPhenotype.Name()]
		if !ok {
			return nil, &phenexerr.LookupError{Kind: "node", Name: p.AnchorPhenotype.Name()}
		}
		anchorByPerson = make(map[interface{}]time.Time)
		for _, r := range anchorTable.ToNative() {
			if d, ok := r.Get(relation.ColEventDate).(time.Time); ok {
				anchorByPerson[r.Get(relation.ColPersonID)] = d
			}
		}
	}

	var out []relation.Row
	for _, row := range person.ToNative() {
		var anchor time.Time
		var ok bool
		if anchorByPerson != nil {
			anchor, ok = anchorByPerson[row.Get(relation.ColPersonID)]
		} else {
			anchor, ok = p.anchorDate(row)
		}
		if !ok {
			continue
		}
		birth, ok := p.birthDate(row)
		if !ok {
			continue
		}
		age := ageInYears(birth, anchor)
		out = append(out, relation.Row{
			relation.ColPersonID:  row.Get(relation.ColPersonID),
			relation.ColBoolean:   true,
			relation.ColEventDate: anchor,
			relation.ColValue:     float64(age),
		})
	}

	result := relation.NewMemoryTable(
		[]string{relation.ColPersonID, relation.ColBoolean, relation.ColEventDate, relation.ColValue},
		out,
	)

	var resultTable relation.Table = result
	if p.ValueMin != nil || p.ValueMax != nil {
		vf := filter.NewValueFilter(p.ValueMin, p.ValueMax, relation.ColValue)
		filtered, err := vf.Apply(resultTable)
		if err != nil {
			return nil, err
		}
		resultTable = filtered
	}
	return resultTable, nil
}
