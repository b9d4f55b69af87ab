package catalogs

import (
	"fmt"

	"github.com/shopspring/decimal"

	"rgsim.dev/internal/sim/modifier"
)

type effectSpec struct {
	Strategy string      `json:"strategy"`
	Target   string      `json:"target"`
	Amount   amountSpec  `json:"amount"`
	Filter   *filterSpec `json:"filter,omitempty"`
}

type amountSpec struct {
	Kind  string          `json:"kind"`
	Value decimal.Decimal `json:"value"`
}

type filterSpec struct {
	Kind       string       `json:"kind"`
	Buildings  []string     `json:"buildings,omitempty"`
	Alignments []string     `json:"alignments,omitempty"`
	Of         []filterSpec `json:"of,omitempty"`
}

// resolver turns declarative effect specs into modifiers, resolving building
// and alignment keys against catalogs loaded earlier.
type resolver struct {
	buildings  *BuildingCatalog
	alignments *AlignmentCatalog
}

// EffectID is the registry id of the i-th effect of upgrade id.
func EffectID(id UpgradeID, i int) string {
	return fmt.Sprintf("upgrade.%d.%d", id, i)
}

func (r resolver) modifier(owner *Upgrade, index int, spec effectSpec) (modifier.Modifier, error) {
	strategy, err := modifier.ParseStrategy(spec.Strategy)
	if err != nil {
		return modifier.Modifier{}, err
	}
	target, err := modifier.ParseTarget(spec.Target)
	if err != nil {
		return modifier.Modifier{}, err
	}
	amount, err := decodeAmount(spec.Amount)
	if err != nil {
		return modifier.Modifier{}, err
	}
	if target == modifier.BuildingProduction && spec.Amount.Kind == "percent_of_production" {
		return modifier.Modifier{}, fmt.Errorf("percent_of_production cannot target %s", target)
	}
	m := modifier.New(EffectID(owner.ID, index), strategy, target, amount)
	if spec.Filter != nil {
		f, err := r.filter(*spec.Filter)
		if err != nil {
			return modifier.Modifier{}, err
		}
		m = m.When(f)
	}
	return m.WithOwner(owner), nil
}

func decodeAmount(spec amountSpec) (modifier.Amount, error) {
	switch spec.Kind {
	case "fixed":
		return modifier.Fixed(spec.Value), nil
	case "percent_of_production":
		return modifier.PercentOfProduction(spec.Value), nil
	case "trophies":
		return modifier.TrophyScaled(spec.Value), nil
	}
	return nil, fmt.Errorf("unknown amount kind %q", spec.Kind)
}

func (r resolver) filter(spec filterSpec) (modifier.Filter, error) {
	switch spec.Kind {
	case "always":
		return modifier.Always(), nil
	case "building":
		ids := make([]BuildingID, 0, len(spec.Buildings))
		for _, key := range spec.Buildings {
			b, err := r.buildings.ByKey(key)
			if err != nil {
				return nil, err
			}
			ids = append(ids, b.ID)
		}
		return BuildingFilter(ids...), nil
	case "alignment":
		ids := make([]AlignmentID, 0, len(spec.Alignments))
		for _, key := range spec.Alignments {
			a, err := r.alignments.ByKey(key)
			if err != nil {
				return nil, err
			}
			ids = append(ids, a.ID)
		}
		return AlignmentFilter(ids...), nil
	case "not", "any", "all":
		inner := make([]modifier.Filter, 0, len(spec.Of))
		for _, s := range spec.Of {
			f, err := r.filter(s)
			if err != nil {
				return nil, err
			}
			inner = append(inner, f)
		}
		switch spec.Kind {
		case "not":
			if len(inner) != 1 {
				return nil, fmt.Errorf("not filter takes exactly one operand, got %d", len(inner))
			}
			return modifier.Not(inner[0]), nil
		case "any":
			return modifier.AnyOf(inner...), nil
		default:
			return modifier.AllOf(inner...), nil
		}
	}
	return nil, fmt.Errorf("unknown filter kind %q", spec.Kind)
}
