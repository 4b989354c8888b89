package phenotype

import (
	"fmt"
	"math"

	"github.com/Bayer-Group/phenex-go/internal/filter"
	"github.com/Bayer-Group/phenex-go/internal/node"
	"github.com/Bayer-Group/phenex-go/internal/relation"
	"github.com/Bayer-Group/phenex-go/internal/serialize"
	"github.com/Bayer-Group/phenex-go/internal/value"
)

// ArithOp is one of the five binary numeric operators ArithmeticExpr
// supports.
type ArithOp string

const (
	ArithAdd ArithOp = "+"
	ArithSub ArithOp = "-"
	ArithMul ArithOp = "*"
	ArithDiv ArithOp = "/"
	ArithPow ArithOp = "**"
)

// ArithmeticExpr is one node of an ArithmeticPhenotype's numeric
// expression tree. A leaf names an upstream phenotype (its VALUE column)
// with an optional coefficient; an interior node combines two
// sub-expressions with Op.
type ArithmeticExpr struct {
	Phenotype   node.ComputeNode
	Coefficient float64 // multiplies a leaf's value; 0 means "unset", treated as 1
	Op          ArithOp
	Left, Right *ArithmeticExpr
}

func ArithLeaf(p node.ComputeNode) ArithmeticExpr { return ArithmeticExpr{Phenotype: p} }

func ArithBinary(op ArithOp, left, right ArithmeticExpr) ArithmeticExpr {
	return ArithmeticExpr{Op: op, Left: &left, Right: &right}
}

func (e ArithmeticExpr) toDict() serialize.Dict {
	if e.Phenotype != nil {
		d := serialize.Dict{"phenotype": e.Phenotype.Name()}
		if e.Coefficient != 0 {
			d["coefficient"] = e.Coefficient
		}
		return d
	}
	return serialize.Dict{"op": string(e.Op), "left": e.Left.toDict(), "right": e.Right.toDict()}
}

func (e ArithmeticExpr) leaves(seen map[string]bool, out *[]node.ComputeNode) {
	if e.Phenotype != nil {
		if !seen[e.Phenotype.Name()] {
			seen[e.Phenotype.Name()] = true
			*out = append(*out, e.Phenotype)
		}
		return
	}
	e.Left.leaves(seen, out)
	e.Right.leaves(seen, out)
}

// eval evaluates e for a single subject, scoring presence as 1/0 instead
// of reading VALUE when asScore is true (ScorePhenotype's semantics).
// Returns ok=false if any leaf operand is missing for this subject.
func (e ArithmeticExpr) eval(pid interface{}, values map[string]map[interface{}]float64, asScore bool) (float64, bool) {
	if e.Phenotype != nil {
		name := e.Phenotype.Name()
		coef := e.Coefficient
		if coef == 0 {
			coef = 1
		}
		if asScore {
			if _, present := values[name][pid]; present {
				return coef, true
			}
			return 0, true // absence scores 0, not a dropped subject
		}
		v, ok := values[name][pid]
		if !ok {
			return 0, false
		}
		return coef * v, true
	}

	left, lok := e.Left.eval(pid, values, asScore)
	right, rok := e.Right.eval(pid, values, asScore)
	if !lok || !rok {
		return 0, false
	}
	switch e.Op {
	case ArithAdd:
		return left + right, true
	case ArithSub:
		return left - right, true
	case ArithMul:
		return left * right, true
	case ArithDiv:
		if right == 0 {
			return 0, false
		}
		return left / right, true
	case ArithPow:
		return math.Pow(left, right), true
	}
	return 0, false
}

// ArithmeticPhenotype evaluates a numeric expression tree over upstream
// phenotypes' VALUE columns, dropping subjects missing any operand
//. EVENT_DATE is null.
type ArithmeticPhenotype struct {
	base
	Expression         ArithmeticExpr
	ValueMin, ValueMax *value.Value
}

func NewArithmeticPhenotype(name string, expr ArithmeticExpr, valueMin, valueMax *value.Value) (*ArithmeticPhenotype, error) {
	var children []node.ComputeNode
	expr.leaves(map[string]bool{}, &children)
	b, err := newBase(name, children...)
	if err != nil {
		return nil, err
	}
	return &ArithmeticPhenotype{base: b, Expression: expr, ValueMin: valueMin, ValueMax: valueMax}, nil
}

func (p *ArithmeticPhenotype) ClassName() string { return "ArithmeticPhenotype" }

func (p *ArithmeticPhenotype) ToDict() serialize.Dict {
	d := toDictBase(p.ClassName(), p.name)
	d["expression"] = p.Expression.toDict()
	if p.ValueMin != nil {
		d["value_min"] = p.ValueMin.ToDict()
	}
	if p.ValueMax != nil {
		d["value_max"] = p.ValueMax.ToDict()
	}
	return d
}

// ArithmeticPhenotypeFromDict reconstructs an ArithmeticPhenotype from its
// ToDict representation.
func ArithmeticPhenotypeFromDict(d serialize.Dict) (*ArithmeticPhenotype, error) {
	exprRaw, ok := d["expression"]
	if !ok {
		return nil, fmt.Errorf("phenotype: ArithmeticPhenotype requires \"expression\"")
	}
	expr, err := arithmeticExprFromDict(exprRaw)
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
	return NewArithmeticPhenotype(stringFromDict(d, "name"), expr, valueMin, valueMax)
}

func (p *ArithmeticPhenotype) Compute(tables map[string]relation.Table) (relation.Table, error) {
	out, err := evalExpressionTree(p.name, p.Expression, tables, false)
	if err != nil {
		return nil, err
	}
	var result relation.Table = out
	if p.ValueMin != nil || p.ValueMax != nil {
		vf := filter.NewValueFilter(p.ValueMin, p.ValueMax, relation.ColValue)
		result, err = vf.Apply(result)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

// ScorePhenotype is ArithmeticPhenotype with leaf presence scored 1/0
// instead of VALUE: coefficients still apply.
type ScorePhenotype struct {
	base
	Expression ArithmeticExpr
}

func NewScorePhenotype(name string, expr ArithmeticExpr) (*ScorePhenotype, error) {
	var children []node.ComputeNode
	expr.leaves(map[string]bool{}, &children)
	b, err := newBase(name, children...)
	if err != nil {
		return nil, err
	}
	return &ScorePhenotype{base: b, Expression: expr}, nil
}

func (p *ScorePhenotype) ClassName() string { return "ScorePhenotype" }

func (p *ScorePhenotype) ToDict() serialize.Dict {
	d := toDictBase(p.ClassName(), p.name)
	d["expression"] = p.Expression.toDict()
	return d
}

// ScorePhenotypeFromDict reconstructs a ScorePhenotype from its ToDict
// representation.
func ScorePhenotypeFromDict(d serialize.Dict) (*ScorePhenotype, error) {
	exprRaw, ok := d["expression"]
	if !ok {
		return nil, fmt.Errorf("phenotype: ScorePhenotype requires \"expression\"")
	}
	expr, err := arithmeticExprFromDict(exprRaw)
	if err != nil {
		return nil, err
	}
	return NewScorePhenotype(stringFromDict(d, "name"), expr)
}

func (p *ScorePhenotype) Compute(tables map[string]relation.Table) (relation.Table, error) {
	return evalExpressionTree(p.name, p.Expression, tables, true)
}

func evalExpressionTree(nodeName string, expr ArithmeticExpr, tables map[string]relation.Table, asScore bool) (relation.Table, error) {
	var leafNodes []node.ComputeNode
	expr.leaves(map[string]bool{}, &leafNodes)

	values := make(map[string]map[interface{}]float64)
	subjects := make(map[interface{}]bool)
	for _, leaf := range leafNodes {
		t, ok := tables[leaf.Name()]
		if !ok {
			return nil, missingTable(nodeName, leaf.Name())
		}
		values[leaf.Name()] = make(map[interface{}]float64)
		for _, r := range t.ToNative() {
			pid := r.Get(relation.ColPersonID)
			subjects[pid] = true
			if v, ok := r.Get(relation.ColValue).(float64); ok {
				values[leaf.Name()][pid] = v
			} else if asScore {
				values[leaf.Name()][pid] = 0
			}
		}
	}

	var out []relation.Row
	for pid := range subjects {
		v, ok := expr.eval(pid, values, asScore)
		if !ok {
			continue
		}
		out = append(out, relation.Row{
			relation.ColPersonID:  pid,
			relation.ColBoolean:   true,
			relation.ColEventDate: nil,
			relation.ColValue:     v,
		})
	}

	return relation.NewMemoryTable(
		[]string{relation.ColPersonID, relation.ColBoolean, relation.ColEventDate, relation.ColValue}, out), nil
}
