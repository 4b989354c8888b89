package phenotype

import (
	"sort"
	"time"

	"github.com/Bayer-Group/phenex-go/internal/aggregate"
	"github.com/Bayer-Group/phenex-go/internal/filter"
	"github.com/Bayer-Group/phenex-go/internal/node"
	"github.com/Bayer-Group/phenex-go/internal/phenexerr"
	"github.com/Bayer-Group/phenex-go/internal/relation"
	"github.com/Bayer-Group/phenex-go/internal/serialize"
	"github.com/Bayer-Group/phenex-go/internal/value"
)

func periodDayDiff(a, b time.Time) int {
	return int(a.Sub(b).Hours() / 24)
}

// anchorDatesByPerson maps each subject's PERSON_ID to the anchor
// phenotype's EVENT_DATE; it returns an empty map when anchorTable is nil.
func anchorDatesByPerson(anchorTable relation.Table) map[interface{}]time.Time {
	out := make(map[interface{}]time.Time)
	if anchorTable == nil {
		return out
	}
	for _, r := range anchorTable.ToNative() {
		if d, ok := r.Get(relation.ColEventDate).(time.Time); ok {
			out[r.Get(relation.ColPersonID)] = d
		}
	}
	return out
}

func resolveAnchor(row relation.Row, anchorByPerson map[interface{}]time.Time, hasAnchorTable bool) (time.Time, bool) {
	if hasAnchorTable {
		t, ok := anchorByPerson[row.Get(relation.ColPersonID)]
		return t, ok
	}
	t, ok := row.Get(relation.ColIndexDate).(time.Time)
	return t, ok
}

// ContinuousCoveragePhenotype returns subjects whose coverage period
// extends at least MinDays before/after the anchor.
type ContinuousCoveragePhenotype struct {
	base
	PeriodDomain    string
	MinDays         int
	When            filter.When // Before: period must extend MinDays before anchor; After: after anchor
	AnchorPhenotype node.ComputeNode
}

func NewContinuousCoveragePhenotype(name, periodDomain string, minDays int, when filter.When, anchor node.ComputeNode) (*ContinuousCoveragePhenotype, error) {
	var children []node.ComputeNode
	if anchor != nil {
		children = append(children, anchor)
	}
	b, err := newBase(name, children...)
	if err != nil {
		return nil, err
	}
	return &ContinuousCoveragePhenotype{base: b, PeriodDomain: periodDomain, MinDays: minDays, When: when, AnchorPhenotype: anchor}, nil
}

func (p *ContinuousCoveragePhenotype) ClassName() string { return "ContinuousCoveragePhenotype" }

func (p *ContinuousCoveragePhenotype) ToDict() serialize.Dict {
	d := toDictBase(p.ClassName(), p.name)
	d["period_domain"] = p.PeriodDomain
	d["min_days"] = p.MinDays
	d["when"] = string(p.When)
	if p.AnchorPhenotype != nil {
		d["anchor_phenotype"] = p.AnchorPhenotype.Name()
	}
	return d
}

// ContinuousCoveragePhenotypeFromDict reconstructs a
// ContinuousCoveragePhenotype from its ToDict representation.
func ContinuousCoveragePhenotypeFromDict(d serialize.Dict) (*ContinuousCoveragePhenotype, error) {
	return NewContinuousCoveragePhenotype(
		stringFromDict(d, "name"), stringFromDict(d, "period_domain"), intFromDict(d, "min_days"),
		filter.When(stringFromDict(d, "when")), decodeAnchor(d, "anchor_phenotype"),
	)
}

func (p *ContinuousCoveragePhenotype) Compute(tables map[string]relation.Table) (relation.Table, error) {
	periods, ok := tables[p.PeriodDomain]
	if !ok {
		return nil, missingTable(p.name, p.PeriodDomain)
	}

	hasAnchorTable := p.AnchorPhenotype != nil
	var anchorByPerson map[interface{}]time.Time
	if hasAnchorTable {
		anchorTable, ok := tables[p.AnchorPhenotype.Name()]
		if !ok {
			return nil, &phenexerr.LookupError{Kind: "node", Name: p.AnchorPhenotype.Name()}
		}
		anchorByPerson = anchorDatesByPerson(anchorTable)
	}

	var out []relation.Row
	for _, row := range periods.ToNative() {
		start, sok := row.Get(relation.ColStartDate).(time.Time)
		end, eok := row.Get(relation.ColEndDate).(time.Time)
		if !sok || !eok {
			continue
		}
		anchor, aok := resolveAnchor(row, anchorByPerson, hasAnchorTable)
		if !aok {
			continue
		}

		var qualifies bool
		var eventDate time.Time
		if p.When == filter.Before {
			qualifies = periodDayDiff(anchor, start) >= p.MinDays && !anchor.Before(start) && !end.Before(anchor)
			eventDate = end
		} else {
			qualifies = periodDayDiff(end, anchor) >= p.MinDays && !end.Before(anchor) && !anchor.Before(start)
			eventDate = start
		}
		if qualifies {
			out = append(out, relation.Row{
				relation.ColPersonID:  row.Get(relation.ColPersonID),
				relation.ColBoolean:   true,
				relation.ColEventDate: eventDate,
				relation.ColValue:     nil,
			})
		}
	}

	result := relation.NewMemoryTable(
		[]string{relation.ColPersonID, relation.ColBoolean, relation.ColEventDate, relation.ColValue}, out)
	return aggregate.NewDateAggregator(aggregate.First).Apply(result), nil
}

// windowBounds turns a RelativeTimeRangeFilter-style (minDays, maxDays,
// when) bound into an absolute [lo, hi] window around anchor. For
// when=Before, diff = anchor-target, so target ∈ [anchor-max, anchor-min];
// for when=After, diff = target-anchor, so target ∈ [anchor+min, anchor+max].
func windowBounds(anchor time.Time, minDays, maxDays *value.Value, when filter.When) (lo, hi time.Time, hasLo, hasHi bool) {
	if when == filter.Before {
		if maxDays != nil {
			lo, hasLo = anchor.AddDate(0, 0, -int(maxDays.Bound)), true
		}
		if minDays != nil {
			hi, hasHi = anchor.AddDate(0, 0, -int(minDays.Bound)), true
		}
		return
	}
	if minDays != nil {
		lo, hasLo = anchor.AddDate(0, 0, int(minDays.Bound)), true
	}
	if maxDays != nil {
		hi, hasHi = anchor.AddDate(0, 0, int(maxDays.Bound)), true
	}
	return
}

func inWindow(t, lo, hi time.Time, hasLo, hasHi bool) bool {
	if hasLo && t.Before(lo) {
		return false
	}
	if hasHi && t.After(hi) {
		return false
	}
	return true
}

// TimeRangePhenotype returns subjects with at least one period
// overlapping the anchored window; EVENT_DATE is whichever
// period endpoint falls inside the window.
type TimeRangePhenotype struct {
	base
	PeriodDomain       string
	MinDays, MaxDays   *value.Value
	When               filter.When
	AnchorPhenotype    node.ComputeNode
}

func NewTimeRangePhenotype(name, periodDomain string, minDays, maxDays *value.Value, when filter.When, anchor node.ComputeNode) (*TimeRangePhenotype, error) {
	var children []node.ComputeNode
	if anchor != nil {
		children = append(children, anchor)
	}
	b, err := newBase(name, children...)
	if err != nil {
		return nil, err
	}
	return &TimeRangePhenotype{base: b, PeriodDomain: periodDomain, MinDays: minDays, MaxDays: maxDays, When: when, AnchorPhenotype: anchor}, nil
}

func (p *TimeRangePhenotype) ClassName() string { return "TimeRangePhenotype" }

func (p *TimeRangePhenotype) ToDict() serialize.Dict {
	d := toDictBase(p.ClassName(), p.name)
	d["period_domain"] = p.PeriodDomain
	d["when"] = string(p.When)
	if p.MinDays != nil {
		d["min_days"] = p.MinDays.ToDict()
	}
	if p.MaxDays != nil {
		d["max_days"] = p.MaxDays.ToDict()
	}
	if p.AnchorPhenotype != nil {
		d["anchor_phenotype"] = p.AnchorPhenotype.Name()
	}
	return d
}

// TimeRangePhenotypeFromDict reconstructs a TimeRangePhenotype from its
// ToDict representation.
func TimeRangePhenotypeFromDict(d serialize.Dict) (*TimeRangePhenotype, error) {
	minDays, err := decodeValue(d, "min_days")
	if err != nil {
		return nil, err
	}
	maxDays, err := decodeValue(d, "max_days")
	if err != nil {
		return nil, err
	}
	return NewTimeRangePhenotype(
		stringFromDict(d, "name"), stringFromDict(d, "period_domain"), minDays, maxDays,
		filter.When(stringFromDict(d, "when")), decodeAnchor(d, "anchor_phenotype"),
	)
}

func (p *TimeRangePhenotype) resolveAnchors(tables map[string]relation.Table) (map[interface{}]time.Time, bool, error) {
	if p.AnchorPhenotype == nil {
		return nil, false, nil
	}
	anchorTable, ok := tables[p.AnchorPhenotype.Name()]
	if !ok {
		return nil, false, &phenexerr.LookupError{Kind: "node", Name: p.AnchorPhenotype.Name()}
	}
	return anchorDatesByPerson(anchorTable), true, nil
}

func (p *TimeRangePhenotype) Compute(tables map[string]relation.Table) (relation.Table, error) {
	periods, ok := tables[p.PeriodDomain]
	if !ok {
		return nil, missingTable(p.name, p.PeriodDomain)
	}
	anchorByPerson, hasAnchorTable, err := p.resolveAnchors(tables)
	if err != nil {
		return nil, err
	}

	var out []relation.Row
	for _, row := range periods.ToNative() {
		start, sok := row.Get(relation.ColStartDate).(time.Time)
		end, eok := row.Get(relation.ColEndDate).(time.Time)
		if !sok || !eok {
			continue
		}
		anchor, aok := resolveAnchor(row, anchorByPerson, hasAnchorTable)
		if !aok {
			continue
		}
		lo, hi, hasLo, hasHi := windowBounds(anchor, p.MinDays, p.MaxDays, p.When)
		if hasHi && start.After(hi) {
			continue
		}
		if hasLo && end.Before(lo) {
			continue
		}

		eventDate := start
		if !inWindow(start, lo, hi, hasLo, hasHi) {
			eventDate = end
		}
		out = append(out, relation.Row{
			relation.ColPersonID:  row.Get(relation.ColPersonID),
			relation.ColBoolean:   true,
			relation.ColEventDate: eventDate,
			relation.ColValue:     nil,
		})
	}

	result := relation.NewMemoryTable(
		[]string{relation.ColPersonID, relation.ColBoolean, relation.ColEventDate, relation.ColValue}, out)
	return aggregate.NewDateAggregator(aggregate.First).Apply(result), nil
}

// TimeRangeCountPhenotype counts periods per subject within the window
//; VALUE=count, EVENT_DATE=null.
type TimeRangeCountPhenotype struct {
	base
	PeriodDomain     string
	MinDays, MaxDays *value.Value
	When             filter.When
	AnchorPhenotype  node.ComputeNode
	ValueMin, ValueMax *value.Value
}

func NewTimeRangeCountPhenotype(name, periodDomain string, minDays, maxDays *value.Value, when filter.When, anchor node.ComputeNode, valueMin, valueMax *value.Value) (*TimeRangeCountPhenotype, error) {
	var children []node.ComputeNode
	if anchor != nil {
		children = append(children, anchor)
	}
	b, err := newBase(name, children...)
	if err != nil {
		return nil, err
	}
	return &TimeRangeCountPhenotype{base: b, PeriodDomain: periodDomain, MinDays: minDays, MaxDays: maxDays, When: when, AnchorPhenotype: anchor, ValueMin: valueMin, ValueMax: valueMax}, nil
}

func (p *TimeRangeCountPhenotype) ClassName() string { return "TimeRangeCountPhenotype" }

func (p *TimeRangeCountPhenotype) ToDict() serialize.Dict {
	d := toDictBase(p.ClassName(), p.name)
	d["period_domain"] = p.PeriodDomain
	d["when"] = string(p.When)
	if p.AnchorPhenotype != nil {
		d["anchor_phenotype"] = p.AnchorPhenotype.Name()
	}
	return d
}

// TimeRangeCountPhenotypeFromDict reconstructs a TimeRangeCountPhenotype
// from its ToDict representation.
// TODO: ToDict doesn't emit min_days/max_days/value_min/value_max, so
// they don't round-trip either; this only reconstructs what ToDict
// already serialises.
func TimeRangeCountPhenotypeFromDict(d serialize.Dict) (*TimeRangeCountPhenotype, error) {
	return NewTimeRangeCountPhenotype(
		stringFromDict(d, "name"), stringFromDict(d, "period_domain"), nil, nil,
		filter.When(stringFromDict(d, "when")), decodeAnchor(d, "anchor_phenotype"), nil, nil,
	)
}

func (p *TimeRangeCountPhenotype) windowOf(anchor time.Time) (time.Time, time.Time, bool, bool) {
	return windowBounds(anchor, p.MinDays, p.MaxDays, p.When)
}

func (p *TimeRangeCountPhenotype) Compute(tables map[string]relation.Table) (relation.Table, error) {
	periods, ok := tables[p.PeriodDomain]
	if !ok {
		return nil, missingTable(p.name, p.PeriodDomain)
	}
	anchorByPerson, hasAnchorTable, err := (&TimeRangePhenotype{AnchorPhenotype: p.AnchorPhenotype}).resolveAnchors(tables)
	if err != nil {
		return nil, err
	}

	counts := make(map[interface{}]int)
	for _, row := range periods.ToNative() {
		start, sok := row.Get(relation.ColStartDate).(time.Time)
		end, eok := row.Get(relation.ColEndDate).(time.Time)
		if !sok || !eok {
			continue
		}
		anchor, aok := resolveAnchor(row, anchorByPerson, hasAnchorTable)
		if !aok {
			continue
		}
		lo, hi, hasLo, hasHi := p.windowOf(anchor)
		if hasHi && start.After(hi) {
			continue
		}
		if hasLo && end.Before(lo) {
			continue
		}
		counts[row.Get(relation.ColPersonID)]++
	}

	var out []relation.Row
	for pid, count := range counts {
		out = append(out, relation.Row{
			relation.ColPersonID:  pid,
			relation.ColBoolean:   true,
			relation.ColEventDate: nil,
			relation.ColValue:     float64(count),
		})
	}
	result := relation.Table(relation.NewMemoryTable(
		[]string{relation.ColPersonID, relation.ColBoolean, relation.ColEventDate, relation.ColValue}, out))
	if p.ValueMin != nil || p.ValueMax != nil {
		vf := filter.NewValueFilter(p.ValueMin, p.ValueMax, relation.ColValue)
		result, err = vf.Apply(result)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

// TimeRangeDayCountPhenotype sums day counts across distinct periods,
// clipped to the window, per subject. When bounds are
// set, a period must lie entirely inside the window to count (its whole
// span, not just an overlap). Joins PersonDomain to yield a zero-count
// row for subjects without qualifying periods.
type TimeRangeDayCountPhenotype struct {
	base
	PeriodDomain     string
	PersonDomain     string
	MinDays, MaxDays *value.Value
	When             filter.When
	AnchorPhenotype  node.ComputeNode
	ValueMin, ValueMax *value.Value
	AllowNullEndDate bool
}

func NewTimeRangeDayCountPhenotype(name, periodDomain, personDomain string, minDays, maxDays *value.Value, when filter.When, anchor node.ComputeNode, allowNullEndDate bool, valueMin, valueMax *value.Value) (*TimeRangeDayCountPhenotype, error) {
	var children []node.ComputeNode
	if anchor != nil {
		children = append(children, anchor)
	}
	b, err := newBase(name, children...)
	if err != nil {
		return nil, err
	}
	return &TimeRangeDayCountPhenotype{
		base: b, PeriodDomain: periodDomain, PersonDomain: personDomain,
		MinDays: minDays, MaxDays: maxDays, When: when, AnchorPhenotype: anchor,
		AllowNullEndDate: allowNullEndDate, ValueMin: valueMin, ValueMax: valueMax,
	}, nil
}

func (p *TimeRangeDayCountPhenotype) ClassName() string { return "TimeRangeDayCountPhenotype" }

func (p *TimeRangeDayCountPhenotype) ToDict() serialize.Dict {
	d := toDictBase(p.ClassName(), p.name)
	d["period_domain"] = p.PeriodDomain
	d["person_domain"] = p.PersonDomain
	d["when"] = string(p.When)
	d["allow_null_end_date"] = p.AllowNullEndDate
	if p.AnchorPhenotype != nil {
		d["anchor_phenotype"] = p.AnchorPhenotype.Name()
	}
	return d
}

// TimeRangeDayCountPhenotypeFromDict reconstructs a
// TimeRangeDayCountPhenotype from its ToDict representation.
// TODO: ToDict doesn't emit min_days/max_days/value_min/value_max, so
// they don't round-trip either; this only reconstructs what ToDict
// already serialises.
func TimeRangeDayCountPhenotypeFromDict(d serialize.Dict) (*TimeRangeDayCountPhenotype, error) {
	allowNullEndDate, _ := d["allow_null_end_date"].(bool)
	return NewTimeRangeDayCountPhenotype(
		stringFromDict(d, "name"), stringFromDict(d, "period_domain"), stringFromDict(d, "person_domain"),
		nil, nil, filter.When(stringFromDict(d, "when")), decodeAnchor(d, "anchor_phenotype"),
		allowNullEndDate, nil, nil,
	)
}

func (p *TimeRangeDayCountPhenotype) Compute(tables map[string]relation.Table) (relation.Table, error) {
	periods, ok := tables[p.PeriodDomain]
	if !ok {
		return nil, missingTable(p.name, p.PeriodDomain)
	}
	persons, ok := tables[p.PersonDomain]
	if !ok {
		return nil, missingTable(p.name, p.PersonDomain)
	}
	anchorByPerson, hasAnchorTable, err := (&TimeRangePhenotype{AnchorPhenotype: p.AnchorPhenotype}).resolveAnchors(tables)
	if err != nil {
		return nil, err
	}

	type periodKey struct {
		pid        interface{}
		start, end time.Time
	}
	seen := make(map[periodKey]bool)
	dayCounts := make(map[interface{}]int)
	for _, row := range periods.ToNative() {
		start, sok := row.Get(relation.ColStartDate).(time.Time)
		end, eok := row.Get(relation.ColEndDate).(time.Time)
		if !eok && p.AllowNullEndDate {
			end = start
			eok = true
		}
		if !sok || !eok {
			continue
		}
		anchor, aok := resolveAnchor(row, anchorByPerson, hasAnchorTable)
		if !aok {
			continue
		}
		lo, hi, hasLo, hasHi := windowBounds(anchor, p.MinDays, p.MaxDays, p.When)
		if hasLo && start.Before(lo) {
			continue
		}
		if hasHi && end.After(hi) {
			continue
		}
		key := periodKey{row.Get(relation.ColPersonID), start, end}
		if seen[key] {
			continue
		}
		seen[key] = true
		days := periodDayDiff(end, start) + 1
		if days < 0 {
			days = 0
		}
		dayCounts[row.Get(relation.ColPersonID)] += days
	}

	var out []relation.Row
	for _, row := range persons.ToNative() {
		pid := row.Get(relation.ColPersonID)
		out = append(out, relation.Row{
			relation.ColPersonID:  pid,
			relation.ColBoolean:   true,
			relation.ColEventDate: nil,
			relation.ColValue:     float64(dayCounts[pid]),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return formatPersonID(out[i]) < formatPersonID(out[j])
	})

	result := relation.Table(relation.NewMemoryTable(
		[]string{relation.ColPersonID, relation.ColBoolean, relation.ColEventDate, relation.ColValue}, out))
	if p.ValueMin != nil || p.ValueMax != nil {
		vf := filter.NewValueFilter(p.ValueMin, p.ValueMax, relation.ColValue)
		result, err = vf.Apply(result)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

func formatPersonID(r relation.Row) string {
	pid := r.Get(relation.ColPersonID)
	if s, ok := pid.(string); ok {
		return s
	}
	return ""
}

// TimeRangeDaysToNextRange emits, for each subject's anchor-covering
// period, the gap in days to the nearest neighbouring period on the
// chosen side; VALUE=gap, EVENT_DATE=neighbour start/end.
type TimeRangeDaysToNextRange struct {
	base
	PeriodDomain    string
	When            filter.When
	AnchorPhenotype node.ComputeNode
}

func NewTimeRangeDaysToNextRange(name, periodDomain string, when filter.When, anchor node.ComputeNode) (*TimeRangeDaysToNextRange, error) {
	var children []node.ComputeNode
	if anchor != nil {
		children = append(children, anchor)
	}
	b, err := newBase(name, children...)
	if err != nil {
		return nil, err
	}
	return &TimeRangeDaysToNextRange{base: b, PeriodDomain: periodDomain, When: when, AnchorPhenotype: anchor}, nil
}

func (p *TimeRangeDaysToNextRange) ClassName() string { return "TimeRangeDaysToNextRange" }

func (p *TimeRangeDaysToNextRange) ToDict() serialize.Dict {
	d := toDictBase(p.ClassName(), p.name)
	d["period_domain"] = p.PeriodDomain
	d["when"] = string(p.When)
	if p.AnchorPhenotype != nil {
		d["anchor_phenotype"] = p.AnchorPhenotype.Name()
	}
	return d
}

// TimeRangeDaysToNextRangeFromDict reconstructs a TimeRangeDaysToNextRange
// from its ToDict representation.
func TimeRangeDaysToNextRangeFromDict(d serialize.Dict) (*TimeRangeDaysToNextRange, error) {
	return NewTimeRangeDaysToNextRange(
		stringFromDict(d, "name"), stringFromDict(d, "period_domain"),
		filter.When(stringFromDict(d, "when")), decodeAnchor(d, "anchor_phenotype"),
	)
}

func (p *TimeRangeDaysToNextRange) Compute(tables map[string]relation.Table) (relation.Table, error) {
	periods, ok := tables[p.PeriodDomain]
	if !ok {
		return nil, missingTable(p.name, p.PeriodDomain)
	}
	anchorByPerson, hasAnchorTable, err := (&TimeRangePhenotype{AnchorPhenotype: p.AnchorPhenotype}).resolveAnchors(tables)
	if err != nil {
		return nil, err
	}

	byPerson := make(map[interface{}][]relation.Row)
	for _, row := range periods.ToNative() {
		byPerson[row.Get(relation.ColPersonID)] = append(byPerson[row.Get(relation.ColPersonID)], row)
	}

	var out []relation.Row
	for pid, rows := range byPerson {
		anchor, aok := resolveAnchorForPerson(pid, rows, anchorByPerson, hasAnchorTable)
		if !aok {
			continue
		}
		var covering *relation.Row
		for i := range rows {
			start, sok := rows[i].Get(relation.ColStartDate).(time.Time)
			end, eok := rows[i].Get(relation.ColEndDate).(time.Time)
			if sok && eok && !anchor.Before(start) && !anchor.After(end) {
				covering = &rows[i]
				break
			}
		}
		if covering == nil {
			continue
		}

		var best *relation.Row
		bestGap := -1
		for i := range rows {
			if &rows[i] == covering {
				continue
			}
			var gap int
			if p.When == filter.Before {
				end, ok := rows[i].Get(relation.ColEndDate).(time.Time)
				start, sok := (*covering).Get(relation.ColStartDate).(time.Time)
				if !ok || !sok || !end.Before(start) {
					continue
				}
				gap = periodDayDiff(start, end)
			} else {
				start, ok := rows[i].Get(relation.ColStartDate).(time.Time)
				end, sok := (*covering).Get(relation.ColEndDate).(time.Time)
				if !ok || !sok || !start.After(end) {
					continue
				}
				gap = periodDayDiff(start, end)
			}
			if bestGap == -1 || gap < bestGap {
				bestGap = gap
				r := rows[i]
				best = &r
			}
		}
		if best == nil {
			continue
		}
		var neighbourDate time.Time
		if p.When == filter.Before {
			neighbourDate, _ = (*best).Get(relation.ColEndDate).(time.Time)
		} else {
			neighbourDate, _ = (*best).Get(relation.ColStartDate).(time.Time)
		}
		out = append(out, relation.Row{
			relation.ColPersonID:  pid,
			relation.ColBoolean:   true,
			relation.ColEventDate: neighbourDate,
			relation.ColValue:     float64(bestGap),
		})
	}

	return relation.NewMemoryTable(
		[]string{relation.ColPersonID, relation.ColBoolean, relation.ColEventDate, relation.ColValue}, out), nil
}

func resolveAnchorForPerson(pid interface{}, rows []relation.Row, anchorByPerson map[interface{}]time.Time, hasAnchorTable bool) (time.Time, bool) {
	if hasAnchorTable {
		t, ok := anchorByPerson[pid]
		return t, ok
	}
	for _, r := range rows {
		if t, ok := r.Get(relation.ColIndexDate).(time.Time); ok {
			return t, true
		}
	}
	return time.Time{}, false
}
