package catalogs

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io/fs"
	"os"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/shopspring/decimal"

	"rgsim.dev/configs"
)

const (
	alignmentsFile = "alignments.json"
	factionsFile   = "factions.json"
	buildingsFile  = "buildings.json"
	upgradesFile   = "upgrades.json"

	schemaBaseURL = "https://rgsim.dev/schemas/"
)

// Catalogs is the immutable set of game definitions. Lookups are safe for
// concurrent use once loaded.
type Catalogs struct {
	Alignments AlignmentCatalog
	Factions   FactionCatalog
	Buildings  BuildingCatalog
	Upgrades   UpgradeCatalog
}

type AlignmentCatalog struct {
	byID   map[AlignmentID]*Alignment
	byKey  map[string]*Alignment
	sorted []*Alignment
	Digest string
}

type FactionCatalog struct {
	byID   map[FactionID]*Faction
	byKey  map[string]*Faction
	sorted []*Faction
	Digest string
}

type BuildingCatalog struct {
	byID   map[BuildingID]*Building
	byKey  map[string]*Building
	sorted []*Building
	Digest string
}

type UpgradeCatalog struct {
	byID   map[UpgradeID]*Upgrade
	byKey  map[string]*Upgrade
	sorted []*Upgrade
	Digest string
}

// Load reads and validates the catalogs in configDir. Each catalog file
// must sit next to a schemas/ directory holding its JSON Schema.
func Load(configDir string) (*Catalogs, error) {
	return LoadFS(os.DirFS(configDir))
}

// Default returns the catalogs embedded in the binary.
func Default() (*Catalogs, error) {
	return LoadFS(configs.FS)
}

// LoadFS is Load over any filesystem.
func LoadFS(fsys fs.FS) (*Catalogs, error) {
	var c Catalogs
	if err := loadAlignments(fsys, &c.Alignments); err != nil {
		return nil, err
	}
	if err := loadFactions(fsys, &c.Factions, &c.Alignments); err != nil {
		return nil, err
	}
	if err := loadBuildings(fsys, &c.Buildings, &c.Alignments); err != nil {
		return nil, err
	}
	if err := loadUpgrades(fsys, &c.Upgrades, &c.Buildings, &c.Alignments); err != nil {
		return nil, err
	}
	return &c, nil
}

// Digests maps each catalog file name to the sha256 of its raw bytes.
func (c *Catalogs) Digests() map[string]string {
	return map[string]string{
		alignmentsFile: c.Alignments.Digest,
		factionsFile:   c.Factions.Digest,
		buildingsFile:  c.Buildings.Digest,
		upgradesFile:   c.Upgrades.Digest,
	}
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// readValidated reads name, checks it against schemas/<base>.schema.json and
// decodes it into out.
func readValidated(fsys fs.FS, name string, out any) ([]byte, error) {
	raw, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, &ConfigurationError{File: name, Err: err}
	}
	schemaName := name[:len(name)-len(".json")] + ".schema.json"
	schemaRaw, err := fs.ReadFile(fsys, "schemas/"+schemaName)
	if err != nil {
		return nil, &ConfigurationError{File: name, Err: err}
	}

	url := schemaBaseURL + schemaName
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, bytes.NewReader(schemaRaw)); err != nil {
		return nil, &ConfigurationError{File: schemaName, Err: err}
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, &ConfigurationError{File: schemaName, Err: err}
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &ConfigurationError{File: name, Err: err}
	}
	if err := schema.Validate(doc); err != nil {
		return nil, &ConfigurationError{File: name, Err: err}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, &ConfigurationError{File: name, Err: err}
	}
	return raw, nil
}

type alignmentDef struct {
	Key  string        `json:"key"`
	ID   AlignmentID   `json:"id"`
	Type AlignmentType `json:"type"`
	Name string        `json:"name,omitempty"`
}

func loadAlignments(fsys fs.FS, out *AlignmentCatalog) error {
	var defs []alignmentDef
	raw, err := readValidated(fsys, alignmentsFile, &defs)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)
	out.byID = make(map[AlignmentID]*Alignment, len(defs))
	out.byKey = make(map[string]*Alignment, len(defs))
	for _, d := range defs {
		if prev, ok := out.byID[d.ID]; ok {
			return configErr(alignmentsFile, "%w %d for %s and %s", ErrDuplicateID, d.ID, prev.Key, d.Key)
		}
		if _, ok := out.byKey[d.Key]; ok {
			return configErr(alignmentsFile, "duplicate key %s", d.Key)
		}
		a := &Alignment{ID: d.ID, Key: d.Key, Name: displayName(d.Key, d.Name), Type: d.Type}
		out.byID[a.ID] = a
		out.byKey[a.Key] = a
		out.sorted = append(out.sorted, a)
	}
	sort.Slice(out.sorted, func(i, j int) bool { return out.sorted[i].ID < out.sorted[j].ID })
	return nil
}

type factionDef struct {
	Key       string      `json:"key"`
	ID        FactionID   `json:"id"`
	Type      FactionType `json:"type"`
	Alignment string      `json:"alignment"`
	Name      string      `json:"name,omitempty"`
}

func loadFactions(fsys fs.FS, out *FactionCatalog, alignments *AlignmentCatalog) error {
	var defs []factionDef
	raw, err := readValidated(fsys, factionsFile, &defs)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)
	out.byID = make(map[FactionID]*Faction, len(defs))
	out.byKey = make(map[string]*Faction, len(defs))
	for _, d := range defs {
		if prev, ok := out.byID[d.ID]; ok {
			return configErr(factionsFile, "%w %d for %s and %s", ErrDuplicateID, d.ID, prev.Key, d.Key)
		}
		if _, ok := out.byKey[d.Key]; ok {
			return configErr(factionsFile, "duplicate key %s", d.Key)
		}
		al, err := alignments.ByKey(d.Alignment)
		if err != nil {
			return configErr(factionsFile, "%s: %w", d.Key, err)
		}
		f := &Faction{ID: d.ID, Key: d.Key, Name: displayName(d.Key, d.Name), Type: d.Type, Alignment: al.ID}
		out.byID[f.ID] = f
		out.byKey[f.Key] = f
		out.sorted = append(out.sorted, f)
	}
	sort.Slice(out.sorted, func(i, j int) bool { return out.sorted[i].ID < out.sorted[j].ID })
	return nil
}

type buildingDef struct {
	Key            string          `json:"key"`
	ID             BuildingID      `json:"id"`
	Tier           int             `json:"tier"`
	Alignment      string          `json:"alignment"`
	BaseProduction decimal.Decimal `json:"base_production"`
	BasePrice      decimal.Decimal `json:"base_price"`
	Name           string          `json:"name,omitempty"`
}

func loadBuildings(fsys fs.FS, out *BuildingCatalog, alignments *AlignmentCatalog) error {
	var defs []buildingDef
	raw, err := readValidated(fsys, buildingsFile, &defs)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)
	out.byID = make(map[BuildingID]*Building, len(defs))
	out.byKey = make(map[string]*Building, len(defs))
	for _, d := range defs {
		if prev, ok := out.byID[d.ID]; ok {
			return configErr(buildingsFile, "%w %d for %s and %s", ErrDuplicateID, d.ID, prev.Key, d.Key)
		}
		if _, ok := out.byKey[d.Key]; ok {
			return configErr(buildingsFile, "duplicate key %s", d.Key)
		}
		al, err := alignments.ByKey(d.Alignment)
		if err != nil {
			return configErr(buildingsFile, "%s: %w", d.Key, err)
		}
		b := &Building{
			ID:             d.ID,
			Key:            d.Key,
			Name:           displayName(d.Key, d.Name),
			Tier:           d.Tier,
			Alignment:      al.ID,
			BaseProduction: d.BaseProduction,
			BasePrice:      d.BasePrice,
		}
		out.byID[b.ID] = b
		out.byKey[b.Key] = b
		out.sorted = append(out.sorted, b)
	}
	sort.Slice(out.sorted, func(i, j int) bool { return out.sorted[i].ID < out.sorted[j].ID })
	return nil
}

type upgradeDef struct {
	Key     string          `json:"key"`
	ID      UpgradeID       `json:"id"`
	Cost    decimal.Decimal `json:"cost"`
	Name    string          `json:"name,omitempty"`
	Effects []effectSpec    `json:"effects,omitempty"`
}

func loadUpgrades(fsys fs.FS, out *UpgradeCatalog, buildings *BuildingCatalog, alignments *AlignmentCatalog) error {
	var defs []upgradeDef
	raw, err := readValidated(fsys, upgradesFile, &defs)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)
	out.byID = make(map[UpgradeID]*Upgrade, len(defs))
	out.byKey = make(map[string]*Upgrade, len(defs))
	res := resolver{buildings: buildings, alignments: alignments}
	for _, d := range defs {
		if prev, ok := out.byID[d.ID]; ok {
			return configErr(upgradesFile, "%w %d for %s and %s", ErrDuplicateID, d.ID, prev.Key, d.Key)
		}
		if _, ok := out.byKey[d.Key]; ok {
			return configErr(upgradesFile, "duplicate key %s", d.Key)
		}
		u := &Upgrade{ID: d.ID, Key: d.Key, Name: displayName(d.Key, d.Name), Cost: d.Cost}
		for i, spec := range d.Effects {
			m, err := res.modifier(u, i, spec)
			if err != nil {
				return configErr(upgradesFile, "%s effect %d: %w", d.Key, i, err)
			}
			u.Effects = append(u.Effects, m)
		}
		out.byID[u.ID] = u
		out.byKey[u.Key] = u
		out.sorted = append(out.sorted, u)
	}
	sort.Slice(out.sorted, func(i, j int) bool { return out.sorted[i].ID < out.sorted[j].ID })
	return nil
}

func (c *AlignmentCatalog) Get(id AlignmentID) (*Alignment, error) {
	if a, ok := c.byID[id]; ok {
		return a, nil
	}
	return nil, &LookupError{Catalog: "alignment", Key: id}
}

func (c *AlignmentCatalog) ByKey(key string) (*Alignment, error) {
	if a, ok := c.byKey[key]; ok {
		return a, nil
	}
	return nil, &LookupError{Catalog: "alignment", Key: key}
}

// All returns the alignments sorted by id. Callers must not modify the slice.
func (c *AlignmentCatalog) All() []*Alignment { return c.sorted }

func (c *FactionCatalog) Get(id FactionID) (*Faction, error) {
	if f, ok := c.byID[id]; ok {
		return f, nil
	}
	return nil, &LookupError{Catalog: "faction", Key: id}
}

func (c *FactionCatalog) ByKey(key string) (*Faction, error) {
	if f, ok := c.byKey[key]; ok {
		return f, nil
	}
	return nil, &LookupError{Catalog: "faction", Key: key}
}

func (c *FactionCatalog) All() []*Faction { return c.sorted }

func (c *BuildingCatalog) Get(id BuildingID) (*Building, error) {
	if b, ok := c.byID[id]; ok {
		return b, nil
	}
	return nil, &LookupError{Catalog: "building", Key: id}
}

func (c *BuildingCatalog) ByKey(key string) (*Building, error) {
	if b, ok := c.byKey[key]; ok {
		return b, nil
	}
	return nil, &LookupError{Catalog: "building", Key: key}
}

func (c *BuildingCatalog) All() []*Building { return c.sorted }

func (c *UpgradeCatalog) Get(id UpgradeID) (*Upgrade, error) {
	if u, ok := c.byID[id]; ok {
		return u, nil
	}
	return nil, &LookupError{Catalog: "upgrade", Key: id}
}

func (c *UpgradeCatalog) ByKey(key string) (*Upgrade, error) {
	if u, ok := c.byKey[key]; ok {
		return u, nil
	}
	return nil, &LookupError{Catalog: "upgrade", Key: key}
}

func (c *UpgradeCatalog) All() []*Upgrade { return c.sorted }

func (c *UpgradeCatalog) Len() int { return len(c.sorted) }

func (c *BuildingCatalog) Len() int { return len(c.sorted) }
