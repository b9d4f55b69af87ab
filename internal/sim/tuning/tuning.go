package tuning

import (
	"errors"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type Tuning struct {
	StartingBalances Balances  `yaml:"starting_balances"`
	Baselines        Baselines `yaml:"baselines"`
	SaveCodec        SaveCodec `yaml:"save_codec"`
	Index            Index     `yaml:"index"`
}

// Balances seeds a fresh game state.
type Balances struct {
	Mana        decimal.Decimal `yaml:"mana"`
	Gold        decimal.Decimal `yaml:"gold"`
	Gems        decimal.Decimal `yaml:"gems"`
	Trophies    decimal.Decimal `yaml:"trophies"`
	Treasury    decimal.Decimal `yaml:"treasury"`
	Excavations decimal.Decimal `yaml:"excavations"`
}

// Baselines are the amounts of the modifiers every game state starts with.
type Baselines struct {
	ClickReward decimal.Decimal `yaml:"click_reward"`
	MaxMana     decimal.Decimal `yaml:"max_mana"`
	ManaRegen   decimal.Decimal `yaml:"mana_regen"`

	// TrophyBuilding is the building whose production is multiplied by
	// TrophyFactor times the trophy count.
	TrophyBuilding uint32          `yaml:"trophy_building"`
	TrophyFactor   decimal.Decimal `yaml:"trophy_factor"`
}

type SaveCodec struct {
	Key       string `yaml:"key"`
	Prefix    string `yaml:"prefix"`
	Suffix    string `yaml:"suffix"`
	Container string `yaml:"container"` // "raw" or "zlib"
	Level     int    `yaml:"level"`
}

type Index struct {
	Path      string `yaml:"path"`
	QueueSize int    `yaml:"queue_size"`
}

func Default() Tuning {
	return Tuning{
		Baselines: Baselines{
			ClickReward:    decimal.NewFromInt(1),
			MaxMana:        decimal.NewFromInt(1000),
			ManaRegen:      decimal.NewFromInt(1),
			TrophyBuilding: 10,
			TrophyFactor:   decimal.NewFromInt(1),
		},
		SaveCodec: SaveCodec{
			Key:       "therealmisalie",
			Prefix:    "$00s",
			Suffix:    "$e",
			Container: "raw",
			Level:     9,
		},
		Index: Index{
			QueueSize: 1024,
		},
	}
}

// Load reads path over Default. Keys absent from the file keep their
// default values.
func Load(path string) (Tuning, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Tuning{}, err
	}
	t, err := Parse(raw)
	if err != nil {
		return Tuning{}, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func Parse(raw []byte) (Tuning, error) {
	t := Default()
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return Tuning{}, err
	}
	if err := t.Validate(); err != nil {
		return Tuning{}, err
	}
	return t, nil
}

func (t Tuning) Validate() error {
	var errs []error
	if t.SaveCodec.Key == "" {
		errs = append(errs, errors.New("save_codec.key must not be empty"))
	}
	if n := len(t.SaveCodec.Prefix); n != 4 {
		errs = append(errs, fmt.Errorf("save_codec.prefix must be 4 bytes, got %d", n))
	}
	if n := len(t.SaveCodec.Suffix); n != 2 {
		errs = append(errs, fmt.Errorf("save_codec.suffix must be 2 bytes, got %d", n))
	}
	switch t.SaveCodec.Container {
	case "raw", "zlib":
	default:
		errs = append(errs, fmt.Errorf("save_codec.container %q: want raw or zlib", t.SaveCodec.Container))
	}
	if t.SaveCodec.Level < -2 || t.SaveCodec.Level > 9 {
		errs = append(errs, fmt.Errorf("save_codec.level %d out of range", t.SaveCodec.Level))
	}
	if t.Index.QueueSize < 0 {
		errs = append(errs, errors.New("index.queue_size must not be negative"))
	}
	return errors.Join(errs...)
}
