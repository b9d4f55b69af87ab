package modifier

import (
	"fmt"
	"strings"
)

// Strategy says how a modifier combines with the running value.
type Strategy uint8

const (
	Additive Strategy = iota + 1
	Multiplicative
)

var strategyNames = map[Strategy]string{
	Additive:       "ADDITIVE",
	Multiplicative: "MULTIPLICATIVE",
}

func (s Strategy) String() string {
	if n, ok := strategyNames[s]; ok {
		return n
	}
	return fmt.Sprintf("Strategy(%d)", uint8(s))
}

func ParseStrategy(s string) (Strategy, error) {
	want := strings.ToUpper(strings.TrimSpace(s))
	for k, n := range strategyNames {
		if n == want {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown strategy %q", s)
}

// Target is the game quantity a modifier affects.
type Target uint8

const (
	BuildingProduction Target = iota + 1
	ClickReward
	Assistants
	AssistantProduction
	FactionCoinChance
	ClicksPerSecond
	MaxMana
	ManaRegen
	BuildingCostMultiplier
	OfflineClicksPerSecond
)

var targetNames = map[Target]string{
	BuildingProduction:     "BUILDING_PRODUCTION",
	ClickReward:            "CLICK_REWARD",
	Assistants:             "ASSISTANTS",
	AssistantProduction:    "ASSISTANT_PRODUCTION",
	FactionCoinChance:      "FACTION_COIN_CHANCE",
	ClicksPerSecond:        "CLICKS_PER_SECOND",
	MaxMana:                "MAX_MANA",
	ManaRegen:              "MANA_REGEN",
	BuildingCostMultiplier: "BUILDING_COST_MULTIPLIER",
	OfflineClicksPerSecond: "OFFLINE_CLICKS_PER_SECOND",
}

// Targets lists every target in declaration order.
func Targets() []Target {
	out := make([]Target, 0, len(targetNames))
	for t := BuildingProduction; t <= OfflineClicksPerSecond; t++ {
		out = append(out, t)
	}
	return out
}

func (t Target) String() string {
	if n, ok := targetNames[t]; ok {
		return n
	}
	return fmt.Sprintf("Target(%d)", uint8(t))
}

func ParseTarget(s string) (Target, error) {
	want := strings.ToUpper(strings.TrimSpace(s))
	for k, n := range targetNames {
		if n == want {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown target %q", s)
}
