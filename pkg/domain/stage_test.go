package domain

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) *Date {
	dt := NewDate(y, m, d)
	return &dt
}

func TestDeriveStageSpecialMembershipWins(t *testing.T) {
	today := NewDate(2026, time.March, 10)
	p := Plant{
		GrowspaceID: "dry",
		Stage:       StageVeg,
		FlowerStart: date(2026, time.January, 1),
	}
	if got := DeriveStage(p, today); got != StageDry {
		t.Fatalf("expected dry from special membership, got %s", got)
	}
}

func TestDeriveStageVegSpaceUsesDates(t *testing.T) {
	// The veg overview space does not force the veg stage; date fields decide.
	today := NewDate(2026, time.March, 10)
	p := Plant{
		GrowspaceID: "veg",
		FlowerStart: date(2026, time.February, 1),
	}
	if got := DeriveStage(p, today); got != StageFlower {
		t.Fatalf("expected flower from dates, got %s", got)
	}
}

func TestDeriveStageMostAdvancedDateWins(t *testing.T) {
	today := NewDate(2026, time.March, 10)
	p := Plant{
		GrowspaceID: "custom",
		VegStart:    date(2026, time.January, 1),
		FlowerStart: date(2026, time.February, 15),
	}
	if got := DeriveStage(p, today); got != StageFlower {
		t.Fatalf("expected flower, got %s", got)
	}
}

func TestDeriveStageIgnoresFutureDates(t *testing.T) {
	today := NewDate(2026, time.March, 10)
	p := Plant{
		GrowspaceID: "custom",
		VegStart:    date(2026, time.January, 1),
		FlowerStart: date(2026, time.April, 1),
	}
	if got := DeriveStage(p, today); got != StageVeg {
		t.Fatalf("expected veg while flower start is in the future, got %s", got)
	}
}

func TestDeriveStageExplicitStageFallback(t *testing.T) {
	today := NewDate(2026, time.March, 10)
	p := Plant{GrowspaceID: "custom", Stage: StageClone}
	if got := DeriveStage(p, today); got != StageClone {
		t.Fatalf("expected explicit clone, got %s", got)
	}
}

func TestDeriveStageSeedlingDefault(t *testing.T) {
	p := Plant{GrowspaceID: "custom"}
	if got := DeriveStage(p, NewDate(2026, time.March, 10)); got != StageSeedling {
		t.Fatalf("expected seedling default, got %s", got)
	}
}

func TestDaysInStage(t *testing.T) {
	today := NewDate(2026, time.March, 10)
	p := Plant{VegStart: date(2026, time.March, 1)}
	if got := DaysInStage(p, StageVeg, today); got != 9 {
		t.Fatalf("expected 9 days, got %d", got)
	}
	if got := DaysInStage(p, StageFlower, today); got != 0 {
		t.Fatalf("expected 0 for unset stage, got %d", got)
	}
	future := Plant{VegStart: date(2026, time.April, 1)}
	if got := DaysInStage(future, StageVeg, today); got != 0 {
		t.Fatalf("expected 0 for future start, got %d", got)
	}
}

func TestGrowthPhaseBuckets(t *testing.T) {
	today := NewDate(2026, time.March, 10)
	cases := []struct {
		name       string
		flowerDays int
		want       GrowthPhase
	}{
		{"no flower", 0, PhaseVeg},
		{"early", 10, PhaseEarlyFlower},
		{"mid boundary", 22, PhaseMidFlower},
		{"late boundary", 50, PhaseLateFlower},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var plants []Plant
			if tc.flowerDays > 0 {
				start := today.AddDays(-tc.flowerDays)
				plants = append(plants, Plant{FlowerStart: &start})
			} else {
				start := today.AddDays(-5)
				plants = append(plants, Plant{VegStart: &start})
			}
			if got := GrowthPhaseFor(plants, today); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestSpecialSpecResolvesAliases(t *testing.T) {
	spec, ok := SpecialSpec("drying")
	if !ok || spec.ID != "dry" {
		t.Fatalf("expected drying alias to resolve to dry, got %+v ok=%v", spec, ok)
	}
	if _, ok := SpecialSpec("attic"); ok {
		t.Fatalf("unexpected special spec for attic")
	}
	if stage, ok := SpecialStage("cure"); !ok || stage != StageCure {
		t.Fatalf("expected cure stage, got %s ok=%v", stage, ok)
	}
	if _, ok := SpecialStage("cure_overview"); ok {
		t.Fatalf("aliases must not imply stage membership")
	}
}
