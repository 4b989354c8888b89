package phenotype

import (
	"testing"
	"time"

	"github.com/Bayer-Group/phenex-go/internal/filter"
	"github.com/Bayer-Group/phenex-go/internal/relation"
	"github.com/Bayer-Group/phenex-go/internal/value"
)

func d(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func periodRow(pid string, start, end time.Time, index time.Time) relation.Row {
	return relation.Row{
		relation.ColPersonID:  pid,
		relation.ColStartDate: start,
		relation.ColEndDate:   end,
		relation.ColIndexDate: index,
	}
}

func personRow(pid string) relation.Row {
	return relation.Row{relation.ColPersonID: pid}
}

func TestContinuousCoveragePhenotypeRequiresMinDaysBefore(t *testing.T) {
	periods := relation.NewMemoryTable(
		[]string{relation.ColPersonID, relation.ColStartDate, relation.ColEndDate, relation.ColIndexDate},
		[]relation.Row{
			periodRow("p1", d("2019-01-01"), d("2020-06-01"), d("2020-01-01")),
			periodRow("p2", d("2019-12-01"), d("2020-06-01"), d("2020-01-01")),
		},
	)

	p, err := NewContinuousCoveragePhenotype("cc", "period", 365, filter.Before, nil)
	if err != nil {
		t.Fatalf("NewContinuousCoveragePhenotype: %v", err)
	}
	out, err := p.Compute(map[string]relation.Table{"period": periods})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	rows := out.ToNative()
	if len(rows) != 1 || rows[0].Get(relation.ColPersonID) != "p1" {
		t.Fatalf("expected only p1 to qualify, got %+v", rows)
	}
}

func TestTimeRangePhenotypeOverlap(t *testing.T) {
	periods := relation.NewMemoryTable(
		[]string{relation.ColPersonID, relation.ColStartDate, relation.ColEndDate, relation.ColIndexDate},
		[]relation.Row{
			periodRow("in-window", d("2020-01-10"), d("2020-01-20"), d("2020-01-01")),
			periodRow("out-of-window", d("2021-01-10"), d("2021-01-20"), d("2020-01-01")),
		},
	)
	minV := value.GreaterThanOrEqualValue(0)
	maxV := value.LessThanOrEqualValue(60)
	p, err := NewTimeRangePhenotype("tr", "period", &minV, &maxV, filter.After, nil)
	if err != nil {
		t.Fatalf("NewTimeRangePhenotype: %v", err)
	}
	out, err := p.Compute(map[string]relation.Table{"period": periods})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	rows := out.ToNative()
	if len(rows) != 1 || rows[0].Get(relation.ColPersonID) != "in-window" {
		t.Fatalf("expected only in-window subject, got %+v", rows)
	}
}

func TestTimeRangeCountPhenotypeCounts(t *testing.T) {
	periods := relation.NewMemoryTable(
		[]string{relation.ColPersonID, relation.ColStartDate, relation.ColEndDate, relation.ColIndexDate},
		[]relation.Row{
			periodRow("p1", d("2020-01-10"), d("2020-01-20"), d("2020-01-01")),
			periodRow("p1", d("2020-01-25"), d("2020-02-01"), d("2020-01-01")),
			periodRow("p2", d("2020-01-10"), d("2020-01-20"), d("2020-01-01")),
		},
	)
	p, err := NewTimeRangeCountPhenotype("trc", "period", nil, nil, filter.After, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewTimeRangeCountPhenotype: %v", err)
	}
	out, err := p.Compute(map[string]relation.Table{"period": periods})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	counts := map[interface{}]float64{}
	for _, r := range out.ToNative() {
		counts[r.Get(relation.ColPersonID)] = r.Get(relation.ColValue).(float64)
	}
	if counts["p1"] != 2 || counts["p2"] != 1 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
}

func TestTimeRangeDayCountPhenotypeSumsDays(t *testing.T) {
	periods := relation.NewMemoryTable(
		[]string{relation.ColPersonID, relation.ColStartDate, relation.ColEndDate, relation.ColIndexDate},
		[]relation.Row{
			periodRow("p1", d("2020-01-01"), d("2020-01-10"), d("2020-01-01")),
			periodRow("p2", d("2020-01-01"), d("2020-01-05"), d("2020-01-01")),
		},
	)
	persons := relation.NewMemoryTable(
		[]string{relation.ColPersonID},
		[]relation.Row{personRow("p1"), personRow("p2"), personRow("p3")},
	)
	p, err := NewTimeRangeDayCountPhenotype("trdc", "period", "person", nil, nil, filter.After, nil, false, nil, nil)
	if err != nil {
		t.Fatalf("NewTimeRangeDayCountPhenotype: %v", err)
	}
	out, err := p.Compute(map[string]relation.Table{"period": periods, "person": persons})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	counts := map[interface{}]float64{}
	for _, r := range out.ToNative() {
		counts[r.Get(relation.ColPersonID)] = r.Get(relation.ColValue).(float64)
	}
	if counts["p1"] != 10 {
		t.Fatalf("expected p1=10 days, got %v", counts["p1"])
	}
	if counts["p2"] != 5 {
		t.Fatalf("expected p2=5 days, got %v", counts["p2"])
	}
	if counts["p3"] != 0 {
		t.Fatalf("expected p3=0 days (no periods), got %v", counts["p3"])
	}
}

func TestTimeRangeDaysToNextRangeFindsGapAfter(t *testing.T) {
	periods := relation.NewMemoryTable(
		[]string{relation.ColPersonID, relation.ColStartDate, relation.ColEndDate, relation.ColIndexDate},
		[]relation.Row{
			periodRow("p1", d("2020-01-01"), d("2020-01-10"), d("2020-01-05")),
			periodRow("p1", d("2020-01-20"), d("2020-01-25"), d("2020-01-05")),
			periodRow("p1", d("2020-02-01"), d("2020-02-05"), d("2020-01-05")),
		},
	)
	p, err := NewTimeRangeDaysToNextRange("next", "period", filter.After, nil)
	if err != nil {
		t.Fatalf("NewTimeRangeDaysToNextRange: %v", err)
	}
	out, err := p.Compute(map[string]relation.Table{"period": periods})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	rows := out.ToNative()
	if len(rows) != 1 {
		t.Fatalf("expected one row, got %+v", rows)
	}
	gap := rows[0].Get(relation.ColValue).(float64)
	if gap != 10 {
		t.Fatalf("expected gap of 10 days to nearest following period, got %v", gap)
	}
}
