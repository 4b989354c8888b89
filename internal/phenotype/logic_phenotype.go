package phenotype

import (
	"fmt"
	"time"

	"github.com/Bayer-Group/phenex-go/internal/node"
	"github.com/Bayer-Group/phenex-go/internal/phenexerr"
	"github.com/Bayer-Group/phenex-go/internal/relation"
	"github.com/Bayer-Group/phenex-go/internal/serialize"
)

// LogicOp is the boolean connective a LogicExpr node applies to its
// operands.
type LogicOp string

const (
	LogicAnd LogicOp = "and"
	LogicOr  LogicOp = "or"
	LogicNot LogicOp = "not" // exactly one operand
)

// LogicExpr is one node of a LogicPhenotype's boolean expression tree.
// Exactly one of Phenotype or (Op, Operands) is set: a leaf names an
// upstream phenotype directly, an interior node combines sub-expressions.
type LogicExpr struct {
	Phenotype node.ComputeNode
	Op        LogicOp
	Operands  []LogicExpr
}

// Leaf wraps a phenotype as a LogicExpr leaf.
func Leaf(p node.ComputeNode) LogicExpr { return LogicExpr{Phenotype: p} }

// And, Or and Not build interior LogicExpr nodes.
func And(operands ...LogicExpr) LogicExpr { return LogicExpr{Op: LogicAnd, Operands: operands} }
func Or(operands ...LogicExpr) LogicExpr  { return LogicExpr{Op: LogicOr, Operands: operands} }
func Not(operand LogicExpr) LogicExpr     { return LogicExpr{Op: LogicNot, Operands: []LogicExpr{operand}} }

func (e LogicExpr) toDict() serialize.Dict {
	if e.Phenotype != nil {
		return serialize.Dict{"phenotype": e.Phenotype.Name()}
	}
	operands := make([]serialize.Dict, len(e.Operands))
	for i, o := range e.Operands {
		operands[i] = o.toDict()
	}
	return serialize.Dict{"op": string(e.Op), "operands": operands}
}

func (e LogicExpr) leaves(seen map[string]bool, out *[]node.ComputeNode) {
	if e.Phenotype != nil {
		if !seen[e.Phenotype.Name()] {
			seen[e.Phenotype.Name()] = true
			*out = append(*out, e.Phenotype)
		}
		return
	}
	for _, o := range e.Operands {
		o.leaves(seen, out)
	}
}

// evalSubject evaluates e for one subject, given which leaf phenotypes
// that subject qualifies for and the EVENT_DATE each qualifying leaf
// contributed. Returns (qualifies, contributing-dates-of-the-qualifying-branch).
func (e LogicExpr) evalSubject(member map[string]bool, dates map[string]interface{}) (bool, []interface{}) {
	if e.Phenotype != nil {
		name := e.Phenotype.Name()
		if member[name] {
			return true, []interface{}{dates[name]}
		}
		return false, nil
	}
	switch e.Op {
	case LogicNot:
		ok, _ := e.Operands[0].evalSubject(member, dates)
		return !ok, nil
	case LogicOr:
		var qualifies bool
		var contributing []interface{}
		for _, o := range e.Operands {
			if ok, d := o.evalSubject(member, dates); ok {
				qualifies = true
				contributing = append(contributing, d...)
			}
		}
		return qualifies, contributing
	default: // LogicAnd
		var contributing []interface{}
		for _, o := range e.Operands {
			ok, d := o.evalSubject(member, dates)
			if !ok {
				return false, nil
			}
			contributing = append(contributing, d...)
		}
		return true, contributing
	}
}

// LogicPhenotype is a boolean AND/OR/NOT tree over other phenotypes
//. A subject qualifies iff Expression evaluates true over
// their membership in each leaf phenotype. Unless ReturnDateFrom names a
// specific leaf, EVENT_DATE is ReturnDate applied to the union of dates
// contributed by the qualifying branch.
type LogicPhenotype struct {
	base
	Expression     LogicExpr
	ReturnDate     ReturnDate
	ReturnDateFrom node.ComputeNode // nil => aggregate across the qualifying branch
}

func NewLogicPhenotype(name string, expr LogicExpr, rd ReturnDate, returnDateFrom node.ComputeNode) (*LogicPhenotype, error) {
	var children []node.ComputeNode
	expr.leaves(map[string]bool{}, &children)
	b, err := newBase(name, children...)
	if err != nil {
		return nil, err
	}
	if returnDateFrom != nil {
		var isLeaf bool
		for _, leaf := range children {
			if leaf.Name() == returnDateFrom.Name() {
				isLeaf = true
				break
			}
		}
		if !isLeaf {
			return nil, &phenexerr.ConfigurationError{
				Node:   name,
				Detail: fmt.Sprintf("return_date_from %q is not a leaf of expression", returnDateFrom.Name()),
			}
		}
	}
	return &LogicPhenotype{base: b, Expression: expr, ReturnDate: rd, ReturnDateFrom: returnDateFrom}, nil
}

func (p *LogicPhenotype) ClassName() string { return "LogicPhenotype" }

func (p *LogicPhenotype) ToDict() serialize.Dict {
	d := toDictBase(p.ClassName(), p.name)
	d["expression"] = p.Expression.toDict()
	d["return_date"] = returnDateDict(p.ReturnDate)
	if p.ReturnDateFrom != nil {
		d["return_date_from"] = p.ReturnDateFrom.Name()
	}
	return d
}

// LogicPhenotypeFromDict reconstructs a LogicPhenotype from its ToDict
// representation.
func LogicPhenotypeFromDict(d serialize.Dict) (*LogicPhenotype, error) {
	exprRaw, ok := d["expression"]
	if !ok {
		return nil, fmt.Errorf("phenotype: LogicPhenotype requires \"expression\"")
	}
	expr, err := logicExprFromDict(exprRaw)
	if err != nil {
		return nil, err
	}
	var returnDateFrom node.ComputeNode
	if name, ok := d["return_date_from"].(string); ok {
		returnDateFrom = node.NamedRef(name)
	}
	return NewLogicPhenotype(stringFromDict(d, "name"), expr, ReturnDate(stringFromDict(d, "return_date")), returnDateFrom)
}

func (p *LogicPhenotype) Compute(tables map[string]relation.Table) (relation.Table, error) {
	var leafNames []node.ComputeNode
	p.Expression.leaves(map[string]bool{}, &leafNames)

	member := make(map[interface{}]map[string]bool)
	dates := make(map[interface{}]map[string]interface{})
	for _, leaf := range leafNames {
		t, ok := tables[leaf.Name()]
		if !ok {
			return nil, missingTable(p.name, leaf.Name())
		}
		for _, r := range t.ToNative() {
			pid := r.Get(relation.ColPersonID)
			if member[pid] == nil {
				member[pid] = make(map[string]bool)
				dates[pid] = make(map[string]interface{})
			}
			member[pid][leaf.Name()] = true
			dates[pid][leaf.Name()] = r.Get(relation.ColEventDate)
		}
	}

	var out []relation.Row
	for pid, subjMember := range member {
		qualifies, contributing := p.Expression.evalSubject(subjMember, dates[pid])
		if !qualifies {
			continue
		}
		var eventDate interface{}
		if p.ReturnDateFrom != nil {
			eventDate = dates[pid][p.ReturnDateFrom.Name()]
		} else {
			eventDate = reduceDates(contributing, p.ReturnDate)
		}
		out = append(out, relation.Row{
			relation.ColPersonID:  pid,
			relation.ColBoolean:   true,
			relation.ColEventDate: eventDate,
			relation.ColValue:     nil,
		})
	}

	return relation.NewMemoryTable(
		[]string{relation.ColPersonID, relation.ColBoolean, relation.ColEventDate, relation.ColValue}, out), nil
}

// reduceDates applies rd's first/last/nearest semantics over a single
// subject's contributing date set. Nearest has no anchor in this context
// and falls back to first, matching all's "no further reduction needed"
// behaviour for a single-subject date set.
func reduceDates(dates []interface{}, rd ReturnDate) interface{} {
	var best time.Time
	var found bool
	pick := func(candidate time.Time) bool {
		if !found {
			return true
		}
		if rd == Last {
			return candidate.After(best)
		}
		return candidate.Before(best)
	}
	for _, dt := range dates {
		t, ok := dt.(time.Time)
		if !ok {
			continue
		}
		if pick(t) {
			best, found = t, true
		}
	}
	if !found {
		return nil
	}
	return best
}
