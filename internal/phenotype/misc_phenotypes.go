package phenotype

import (
	"fmt"
	"time"

	"github.com/Bayer-Group/phenex-go/internal/node"
	"github.com/Bayer-Group/phenex-go/internal/phenexerr"
	"github.com/Bayer-Group/phenex-go/internal/relation"
	"github.com/Bayer-Group/phenex-go/internal/serialize"
)

// WithinSameEncounterPhenotype returns Phenotype's rows whose
// ColumnName value equals the subject's AnchorPhenotype row's
// ColumnName value; both tables must carry ColumnName,
// non-null, for a row to be eligible.
type WithinSameEncounterPhenotype struct {
	base
	AnchorPhenotype node.ComputeNode
	Phenotype       node.ComputeNode
	ColumnName      string
}

func NewWithinSameEncounterPhenotype(name string, anchor, phen node.ComputeNode, columnName string) (*WithinSameEncounterPhenotype, error) {
	b, err := newBase(name, anchor, phen)
	if err != nil {
		return nil, err
	}
	return &WithinSameEncounterPhenotype{base: b, AnchorPhenotype: anchor, Phenotype: phen, ColumnName: columnName}, nil
}

func (p *WithinSameEncounterPhenotype) ClassName() string { return "WithinSameEncounterPhenotype" }

func (p *WithinSameEncounterPhenotype) ToDict() serialize.Dict {
	d := toDictBase(p.ClassName(), p.name)
	d["anchor_phenotype"] = p.AnchorPhenotype.Name()
	d["phenotype"] = p.Phenotype.Name()
	d["column_name"] = p.ColumnName
	return d
}

// WithinSameEncounterPhenotypeFromDict reconstructs a
// WithinSameEncounterPhenotype from its ToDict representation.
func WithinSameEncounterPhenotypeFromDict(d serialize.Dict) (*WithinSameEncounterPhenotype, error) {
	anchorName, ok := d["anchor_phenotype"].(string)
	if !ok {
		return nil, fmt.Errorf("phenotype: WithinSameEncounterPhenotype requires \"anchor_phenotype\"")
	}
	phenName, ok := d["phenotype"].(string)
	if !ok {
		return nil, fmt.Errorf("phenotype: WithinSameEncounterPhenotype requires \"phenotype\"")
	}
	return NewWithinSameEncounterPhenotype(
		stringFromDict(d, "name"), node.NamedRef(anchorName), node.NamedRef(phenName), stringFromDict(d, "column_name"),
	)
}

func (p *WithinSameEncounterPhenotype) Compute(tables map[string]relation.Table) (relation.Table, error) {
	anchor, ok := tables[p.AnchorPhenotype.Name()]
	if !ok {
		return nil, missingTable(p.name, p.AnchorPhenotype.Name())
	}
	rows, ok := tables[p.Phenotype.Name()]
	if !ok {
		return nil, missingTable(p.name, p.Phenotype.Name())
	}

	encounterByPerson := make(map[interface{}]interface{})
	for _, r := range anchor.ToNative() {
		if v := r.Get(p.ColumnName); v != nil {
			encounterByPerson[r.Get(relation.ColPersonID)] = v
		}
	}

	var out []relation.Row
	for _, r := range rows.ToNative() {
		v := r.Get(p.ColumnName)
		if v == nil {
			continue
		}
		want, ok := encounterByPerson[r.Get(relation.ColPersonID)]
		if !ok || want != v {
			continue
		}
		out = append(out, r.Clone())
	}

	return relation.NewMemoryTable(rows.Columns(), out), nil
}

// TimeShiftPhenotype projects Phenotype with EVENT_DATE shifted by Days
// (positive or negative); VALUE is nulled.
type TimeShiftPhenotype struct {
	base
	Phenotype node.ComputeNode
	Days      int
}

func NewTimeShiftPhenotype(name string, phen node.ComputeNode, days int) (*TimeShiftPhenotype, error) {
	b, err := newBase(name, phen)
	if err != nil {
		return nil, err
	}
	return &TimeShiftPhenotype{base: b, Phenotype: phen, Days: days}, nil
}

func (p *TimeShiftPhenotype) ClassName() string { return "TimeShiftPhenotype" }

func (p *TimeShiftPhenotype) ToDict() serialize.Dict {
	d := toDictBase(p.ClassName(), p.name)
	d["phenotype"] = p.Phenotype.Name()
	d["days"] = p.Days
	return d
}

// TimeShiftPhenotypeFromDict reconstructs a TimeShiftPhenotype from its
// ToDict representation.
func TimeShiftPhenotypeFromDict(d serialize.Dict) (*TimeShiftPhenotype, error) {
	phenName, ok := d["phenotype"].(string)
	if !ok {
		return nil, fmt.Errorf("phenotype: TimeShiftPhenotype requires \"phenotype\"")
	}
	return NewTimeShiftPhenotype(stringFromDict(d, "name"), node.NamedRef(phenName), intFromDict(d, "days"))
}

func (p *TimeShiftPhenotype) Compute(tables map[string]relation.Table) (relation.Table, error) {
	t, ok := tables[p.Phenotype.Name()]
	if !ok {
		return nil, missingTable(p.name, p.Phenotype.Name())
	}

	var out []relation.Row
	for _, r := range t.ToNative() {
		shifted := r.Clone()
		if ev, ok := r.Get(relation.ColEventDate).(time.Time); ok {
			shifted[relation.ColEventDate] = ev.AddDate(0, 0, p.Days)
		}
		shifted[relation.ColValue] = nil
		out = append(out, shifted)
	}

	return relation.NewMemoryTable(
		[]string{relation.ColPersonID, relation.ColBoolean, relation.ColEventDate, relation.ColValue}, out), nil
}

// UserDefinedFunc is the host-supplied pure function a UserDefinedPhenotype
// delegates to.
type UserDefinedFunc func(tables map[string]relation.Table) (relation.Table, error)

// UserDefinedPhenotype is an escape hatch wrapping a host-supplied pure
// function as a ComputeNode. Its identity for hashing purposes is the
// declared FuncName/Version marker, not the function value itself (Go
// func values aren't comparable or serialisable).
type UserDefinedPhenotype struct {
	base
	FuncName string
	Version  string
	Fn       UserDefinedFunc
}

func NewUserDefinedPhenotype(name, funcName, version string, fn UserDefinedFunc, children ...node.ComputeNode) (*UserDefinedPhenotype, error) {
	b, err := newBase(name, children...)
	if err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, &phenexerr.ConfigurationError{Node: name, Detail: "user defined phenotype requires a non-nil function"}
	}
	return &UserDefinedPhenotype{base: b, FuncName: funcName, Version: version, Fn: fn}, nil
}

func (p *UserDefinedPhenotype) ClassName() string { return "UserDefinedPhenotype" }

func (p *UserDefinedPhenotype) ToDict() serialize.Dict {
	d := toDictBase(p.ClassName(), p.name)
	d["function"] = p.FuncName
	d["version"] = p.Version
	return d
}

func (p *UserDefinedPhenotype) Compute(tables map[string]relation.Table) (relation.Table, error) {
	return p.Fn(tables)
}

// UserDefinedPhenotypeFromDict reconstructs a UserDefinedPhenotype from
// its ToDict representation. ToDict never serialises the wrapped
// function itself or its children (a Go func value isn't
// serialisable), so the reconstructed node's Fn refuses to run until the
// host re-registers the real implementation for FuncName/Version.
func UserDefinedPhenotypeFromDict(d serialize.Dict) (*UserDefinedPhenotype, error) {
	name := stringFromDict(d, "name")
	funcName := stringFromDict(d, "function")
	version := stringFromDict(d, "version")
	fn := func(map[string]relation.Table) (relation.Table, error) {
		return nil, &phenexerr.ConfigurationError{
			Node:   name,
			Detail: fmt.Sprintf("user defined phenotype %q (version %q) has no implementation registered after deserialisation", funcName, version),
		}
	}
	return NewUserDefinedPhenotype(name, funcName, version, fn)
}
