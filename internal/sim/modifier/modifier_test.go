package modifier

import (
	"testing"

	"github.com/shopspring/decimal"
)

type fakeView struct {
	trophies   decimal.Decimal
	production decimal.Decimal
}

func (v fakeView) Trophies() decimal.Decimal           { return v.trophies }
func (v fakeView) BuildingProduction() decimal.Decimal { return v.production }

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestEvaluate_NoModifiersIsIdentity(t *testing.T) {
	r := NewRegistry()
	for _, tgt := range Targets() {
		got := r.Evaluate(fakeView{}, nil, tgt, d("123.456"))
		if !got.Equal(d("123.456")) {
			t.Fatalf("%s: got %s want 123.456", tgt, got)
		}
	}
}

func TestEvaluate_AdditiveBeforeMultiplicative(t *testing.T) {
	r := NewRegistry()
	// Registered multiplicative first to show order across stages doesn't matter.
	r.Register(NewMultiplicative("m", ClickReward, FixedInt(3)))
	r.Register(NewAdditive("a", ClickReward, FixedInt(5)))

	got := r.Evaluate(fakeView{}, nil, ClickReward, d("2"))
	if !got.Equal(d("21")) {
		t.Fatalf("got %s want (2+5)*3=21", got)
	}
}

func TestEvaluate_FilterSkipsSubject(t *testing.T) {
	r := NewRegistry()
	onlyFarm := FilterFunc(func(_ View, s any) bool { return s == "farm" })
	r.Register(NewMultiplicative("x2", BuildingProduction, FixedInt(2)).When(onlyFarm))
	r.Register(NewAdditive("zero", BuildingProduction, FixedInt(0)).When(Not(onlyFarm)))

	if got := r.Evaluate(fakeView{}, "farm", BuildingProduction, d("2")); !got.Equal(d("4")) {
		t.Fatalf("farm: got %s", got)
	}
	if got := r.Evaluate(fakeView{}, "inn", BuildingProduction, d("6")); !got.Equal(d("6")) {
		t.Fatalf("inn: got %s", got)
	}
}

func TestEvaluate_MultipleMultipliersCompose(t *testing.T) {
	r := NewRegistry()
	r.Register(NewMultiplicative("a", BuildingProduction, FixedInt(2)))
	r.Register(NewMultiplicative("b", BuildingProduction, FixedInt(3)))
	r.Register(NewMultiplicative("c", ClickReward, FixedInt(100)))

	if got := r.Evaluate(fakeView{}, nil, BuildingProduction, d("2")); !got.Equal(d("12")) {
		t.Fatalf("got %s want 12", got)
	}
}

func TestRegister_OverwriteKeepsOneEntryAndSlot(t *testing.T) {
	r := NewRegistry()
	r.Register(NewAdditive("first", ClickReward, FixedInt(1)))
	r.Register(NewAdditive("dup", ClickReward, FixedInt(10)))
	r.Register(NewAdditive("last", ClickReward, FixedInt(100)))
	r.Register(NewAdditive("dup", ClickReward, FixedInt(20)))

	if r.Len() != 3 {
		t.Fatalf("len=%d want 3", r.Len())
	}
	active := r.Active(Additive, ClickReward)
	if len(active) != 3 || active[0].ID != "first" || active[1].ID != "dup" || active[2].ID != "last" {
		t.Fatalf("unexpected order: %+v", active)
	}
	m, ok := r.Lookup(Key{Strategy: Additive, Target: ClickReward, ID: "dup"})
	if !ok || !m.Amount.Amount(fakeView{}, nil).Equal(d("20")) {
		t.Fatalf("dup not replaced: ok=%v", ok)
	}
	if got := r.Evaluate(fakeView{}, nil, ClickReward, decimal.Zero); !got.Equal(d("121")) {
		t.Fatalf("got %s want 121", got)
	}
}

func TestRegister_SameIDDifferentTargetIsDistinct(t *testing.T) {
	r := NewRegistry()
	r.Register(NewAdditive("x", ClickReward, FixedInt(1)))
	r.Register(NewAdditive("x", MaxMana, FixedInt(1)))
	r.Register(NewMultiplicative("x", MaxMana, FixedInt(1)))
	if r.Len() != 3 {
		t.Fatalf("len=%d want 3", r.Len())
	}
	if len(r.Keys()) != 3 {
		t.Fatalf("keys=%v", r.Keys())
	}
}

func TestDeregister_AbsentIsNoop(t *testing.T) {
	r := NewRegistry()
	r.Deregister(NewAdditive("missing", ClickReward, FixedInt(1)))
	r.Register(NewAdditive("a", ClickReward, FixedInt(1)))
	r.Deregister(NewAdditive("a", MaxMana, FixedInt(1)))
	if r.Len() != 1 {
		t.Fatalf("len=%d want 1", r.Len())
	}
	r.Deregister(NewAdditive("a", ClickReward, FixedInt(999)))
	if r.Len() != 0 {
		t.Fatalf("len=%d want 0", r.Len())
	}
	if got := r.Evaluate(fakeView{}, nil, ClickReward, d("7")); !got.Equal(d("7")) {
		t.Fatalf("got %s", got)
	}
}

func TestAmounts(t *testing.T) {
	v := fakeView{trophies: d("12"), production: d("2500")}
	if got := PercentOfProduction(d("1")).Amount(v, nil); !got.Equal(d("25")) {
		t.Fatalf("percent: got %s", got)
	}
	if got := TrophyScaled(decimal.NewFromInt(1)).Amount(v, nil); !got.Equal(d("12")) {
		t.Fatalf("trophies: got %s", got)
	}
	if got := Fixed(d("1e150")).Amount(v, nil); !got.Equal(d("1e150")) {
		t.Fatalf("fixed: got %s", got)
	}
}

func TestFilterCombinators(t *testing.T) {
	yes, no := Always(), Not(Always())
	cases := []struct {
		name string
		f    Filter
		want bool
	}{
		{"always", yes, true},
		{"not", no, false},
		{"any empty", AnyOf(), false},
		{"any mixed", AnyOf(no, yes), true},
		{"all empty", AllOf(), true},
		{"all mixed", AllOf(yes, no), false},
		{"all yes", AllOf(yes, yes), true},
	}
	for _, tc := range cases {
		if got := tc.f.AppliesTo(fakeView{}, nil); got != tc.want {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}

func TestParseTargetAndStrategy(t *testing.T) {
	for _, tgt := range Targets() {
		got, err := ParseTarget(tgt.String())
		if err != nil || got != tgt {
			t.Fatalf("ParseTarget(%q)=%v,%v", tgt.String(), got, err)
		}
	}
	if s, err := ParseStrategy("multiplicative"); err != nil || s != Multiplicative {
		t.Fatalf("ParseStrategy: %v %v", s, err)
	}
	if _, err := ParseTarget("NOPE"); err == nil {
		t.Fatalf("expected error")
	}
}
