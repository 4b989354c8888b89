package phenotype

import (
	"fmt"

	"github.com/Bayer-Group/phenex-go/internal/codelist"
	"github.com/Bayer-Group/phenex-go/internal/filter"
	"github.com/Bayer-Group/phenex-go/internal/node"
	"github.com/Bayer-Group/phenex-go/internal/serialize"
	"github.com/Bayer-Group/phenex-go/internal/value"
)

// Registry is the class_name-keyed constructor table the whole
// phenotype catalogue registers itself into at init, plus the value and
// codelist types phenotype dicts embed. Reconstructing any node this
// package produced a dict for only ever requires this one registry.
var Registry = serialize.NewRegistry()

func registerCtor[T serialize.Serializable](className string, ctor func(serialize.Dict) (T, error)) {
	Registry.Register(className, func(d serialize.Dict) (serialize.Serializable, error) {
		return ctor(d)
	})
}

func init() {
	registerCtor("AgePhenotype", AgePhenotypeFromDict)
	registerCtor("ArithmeticPhenotype", ArithmeticPhenotypeFromDict)
	registerCtor("ScorePhenotype", ScorePhenotypeFromDict)
	registerCtor("BinPhenotype", BinPhenotypeFromDict)
	registerCtor("CategoricalPhenotype", CategoricalPhenotypeFromDict)
	registerCtor("CodelistPhenotype", CodelistPhenotypeFromDict)
	registerCtor("EventCountPhenotype", EventCountPhenotypeFromDict)
	registerCtor("LogicPhenotype", LogicPhenotypeFromDict)
	registerCtor("MeasurementPhenotype", MeasurementPhenotypeFromDict)
	registerCtor("WithinSameEncounterPhenotype", WithinSameEncounterPhenotypeFromDict)
	registerCtor("TimeShiftPhenotype", TimeShiftPhenotypeFromDict)
	registerCtor("UserDefinedPhenotype", UserDefinedPhenotypeFromDict)
	registerCtor("ContinuousCoveragePhenotype", ContinuousCoveragePhenotypeFromDict)
	registerCtor("TimeRangePhenotype", TimeRangePhenotypeFromDict)
	registerCtor("TimeRangeCountPhenotype", TimeRangeCountPhenotypeFromDict)
	registerCtor("TimeRangeDayCountPhenotype", TimeRangeDayCountPhenotypeFromDict)
	registerCtor("TimeRangeDaysToNextRange", TimeRangeDaysToNextRangeFromDict)

	registerCtor("Value", value.FromDict)
	registerCtor("Date", value.DateFromDict)
	registerCtor("Codelist", codelist.FromDict)
	registerCtor("CompositeCodelist", codelist.CompositeFromDict)
}

// asDict narrows raw to a Dict. serialize.Dict is an alias of
// map[string]interface{}, so this one assertion matches both ToDict()
// output and the map a JSON round trip decodes it back into.
func asDict(raw interface{}) (serialize.Dict, bool) {
	d, ok := raw.(serialize.Dict)
	return d, ok
}

func decodeList(raw interface{}) ([]interface{}, error) {
	switch v := raw.(type) {
	case []interface{}:
		return v, nil
	case []serialize.Dict:
		out := make([]interface{}, len(v))
		for i, d := range v {
			out[i] = d
		}
		return out, nil
	default:
		return nil, fmt.Errorf("phenotype: expected a list, got %T", raw)
	}
}

func decodeStringList(raw interface{}) ([]string, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case []string:
		return append([]string{}, v...), nil
	case []interface{}:
		out := make([]string, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("phenotype: list entry must be a string, got %T", item)
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("phenotype: expected a string list, got %T", raw)
	}
}

func stringFromDict(d serialize.Dict, key string) string {
	s, _ := d[key].(string)
	return s
}

func floatFromDict(d serialize.Dict, key string) float64 {
	switch v := d[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

func intFromDict(d serialize.Dict, key string) int {
	switch v := d[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

// decodeValue reconstructs an optional *value.Value stored under key,
// returning (nil, nil) when the key is absent.
func decodeValue(d serialize.Dict, key string) (*value.Value, error) {
	raw, ok := d[key]
	if !ok {
		return nil, nil
	}
	sub, ok := asDict(raw)
	if !ok {
		return nil, fmt.Errorf("phenotype: %q must be a dict, got %T", key, raw)
	}
	v, err := value.FromDict(sub)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// decodeDateValue reconstructs an optional *value.DateValue stored under
// key, returning (nil, nil) when the key is absent.
func decodeDateValue(d serialize.Dict, key string) (*value.DateValue, error) {
	raw, ok := d[key]
	if !ok {
		return nil, nil
	}
	sub, ok := asDict(raw)
	if !ok {
		return nil, fmt.Errorf("phenotype: %q must be a dict, got %T", key, raw)
	}
	v, err := value.DateFromDict(sub)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// decodeAnchor reconstructs the node.NamedRef placeholder an
// anchor_phenotype-style by-name dependency edge round-trips to. Such
// fields were only ever serialised as a bare name (ToDict never nests a
// full sub-dict for them), so a NamedRef is all a single node's FromDict
// can recover; resolving it to the real node is a whole-graph concern
// handled at workflow-build time, not here.
func decodeAnchor(d serialize.Dict, key string) node.ComputeNode {
	name, ok := d[key].(string)
	if !ok {
		return nil
	}
	return node.NamedRef(name)
}

// codelistFromDict reconstructs whichever codelistResolvable
// (*codelist.Codelist or *codelist.CompositeCodelist) raw's class_name
// names.
func codelistFromDict(raw interface{}) (codelistResolvable, error) {
	d, ok := asDict(raw)
	if !ok {
		return nil, fmt.Errorf("phenotype: \"codelist\" must be a dict, got %T", raw)
	}
	switch d["class_name"] {
	case "Codelist":
		return codelist.FromDict(d)
	case "CompositeCodelist":
		return codelist.CompositeFromDict(d)
	default:
		return nil, fmt.Errorf("phenotype: unknown codelist class_name %v", d["class_name"])
	}
}

func relTimeRangeSpecFromDict(raw interface{}) (RelTimeRangeSpec, error) {
	d, ok := asDict(raw)
	if !ok {
		return RelTimeRangeSpec{}, fmt.Errorf("phenotype: relative time range entry must be a dict, got %T", raw)
	}
	minDays, err := decodeValue(d, "min_days")
	if err != nil {
		return RelTimeRangeSpec{}, err
	}
	maxDays, err := decodeValue(d, "max_days")
	if err != nil {
		return RelTimeRangeSpec{}, err
	}
	return RelTimeRangeSpec{
		MinDays:         minDays,
		MaxDays:         maxDays,
		When:            filter.When(stringFromDict(d, "when")),
		AnchorPhenotype: decodeAnchor(d, "anchor_phenotype"),
	}, nil
}

func relTimeRangeSpecsFromDict(raw interface{}) ([]RelTimeRangeSpec, error) {
	if raw == nil {
		return nil, nil
	}
	items, err := decodeList(raw)
	if err != nil {
		return nil, err
	}
	out := make([]RelTimeRangeSpec, len(items))
	for i, item := range items {
		s, err := relTimeRangeSpecFromDict(item)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// logicExprFromDict reconstructs a LogicExpr tree. A leaf's referenced
// phenotype round-trips to a node.NamedRef, same as any other
// by-name dependency edge.
func logicExprFromDict(raw interface{}) (LogicExpr, error) {
	d, ok := asDict(raw)
	if !ok {
		return LogicExpr{}, fmt.Errorf("phenotype: expression entry must be a dict, got %T", raw)
	}
	if name, ok := d["phenotype"].(string); ok {
		return Leaf(node.NamedRef(name)), nil
	}
	operandsRaw, ok := d["operands"]
	if !ok {
		return LogicExpr{}, fmt.Errorf("phenotype: interior expression requires \"operands\"")
	}
	items, err := decodeList(operandsRaw)
	if err != nil {
		return LogicExpr{}, err
	}
	operands := make([]LogicExpr, len(items))
	for i, item := range items {
		operands[i], err = logicExprFromDict(item)
		if err != nil {
			return LogicExpr{}, err
		}
	}
	return LogicExpr{Op: LogicOp(stringFromDict(d, "op")), Operands: operands}, nil
}

// arithmeticExprFromDict reconstructs an ArithmeticExpr tree, mirroring
// logicExprFromDict.
func arithmeticExprFromDict(raw interface{}) (ArithmeticExpr, error) {
	d, ok := asDict(raw)
	if !ok {
		return ArithmeticExpr{}, fmt.Errorf("phenotype: expression entry must be a dict, got %T", raw)
	}
	if name, ok := d["phenotype"].(string); ok {
		return ArithmeticExpr{Phenotype: node.NamedRef(name), Coefficient: floatFromDict(d, "coefficient")}, nil
	}
	leftRaw, ok := d["left"]
	if !ok {
		return ArithmeticExpr{}, fmt.Errorf("phenotype: interior expression requires \"left\"")
	}
	rightRaw, ok := d["right"]
	if !ok {
		return ArithmeticExpr{}, fmt.Errorf("phenotype: interior expression requires \"right\"")
	}
	left, err := arithmeticExprFromDict(leftRaw)
	if err != nil {
		return ArithmeticExpr{}, err
	}
	right, err := arithmeticExprFromDict(rightRaw)
	if err != nil {
		return ArithmeticExpr{}, err
	}
	return ArithmeticExpr{Op: ArithOp(stringFromDict(d, "op")), Left: &left, Right: &right}, nil
}
