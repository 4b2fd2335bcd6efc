package content

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when a definition lookup misses.
var ErrNotFound = errors.New("content: definition not found")

//go:embed default_catalog.yaml
var defaultCatalog []byte

// SkillKind selects the effect a skill applies when its cast finishes.
type SkillKind string

const (
	SkillTargetDamage SkillKind = "target_damage"
	SkillSlashDamage  SkillKind = "slash_damage"
	SkillAreaHeal     SkillKind = "area_heal"
	SkillBuff         SkillKind = "buff"
)

// Bonuses are stat modifiers granted by equipment or active buffs.
type Bonuses struct {
	HealthMax LinearInt   `yaml:"health_max"`
	ManaMax   LinearInt   `yaml:"mana_max"`
	Damage    LinearInt   `yaml:"damage"`
	Defense   LinearInt   `yaml:"defense"`
	Speed     LinearFloat `yaml:"speed"`
}

// SkillDefinition is the immutable description of a skill. Every scaled field
// is evaluated at the skill level of the caster's instance.
type SkillDefinition struct {
	Name string    `yaml:"name"`
	Hash uint64    `yaml:"-"`
	Kind SkillKind `yaml:"kind"`

	MaxLevel      int         `yaml:"max_level"`
	LearnDefault  bool        `yaml:"learn_default"`
	ManaCost      LinearInt   `yaml:"mana_cost"`
	CastTime      LinearFloat `yaml:"cast_time"`
	Cooldown      LinearFloat `yaml:"cooldown"`
	CastRange     LinearFloat `yaml:"cast_range"`
	RequiredLevel int         `yaml:"required_level"`

	// RequiredWeapon is a category prefix the equipped weapon must match.
	// Empty means no weapon is needed.
	RequiredWeapon string `yaml:"required_weapon"`

	CancelCastIfTargetDied bool `yaml:"cancel_cast_if_target_died"`

	Damage     LinearInt   `yaml:"damage"`
	StunChance LinearFloat `yaml:"stun_chance"`
	StunTime   LinearFloat `yaml:"stun_time"`
	HealHealth LinearInt   `yaml:"heal_health"`
	HealMana   LinearInt   `yaml:"heal_mana"`

	BuffTime         LinearFloat `yaml:"buff_time"`
	Bonus            Bonuses     `yaml:"bonus"`
	RemainAfterDeath bool        `yaml:"remain_after_death"`

	UpgradeRequiredLevel      LinearInt `yaml:"upgrade_required_level"`
	UpgradeRequiredExperience LinearInt `yaml:"upgrade_required_experience"`
	Predecessor               string    `yaml:"predecessor"`
	PredecessorLevel          int       `yaml:"predecessor_level"`
}

// TargetsSelf reports whether the skill always resolves its target to the
// caster.
func (s *SkillDefinition) TargetsSelf() bool {
	return s.Kind != SkillTargetDamage
}

// UsableEffect describes what consuming an item does.
type UsableEffect struct {
	Health           int     `yaml:"health"`
	Mana             int     `yaml:"mana"`
	Cooldown         float64 `yaml:"cooldown"`
	CooldownCategory string  `yaml:"cooldown_category"`
}

// ItemDefinition is the immutable description of an item.
type ItemDefinition struct {
	Name          string        `yaml:"name"`
	Hash          uint64        `yaml:"-"`
	Category      string        `yaml:"category"`
	MaxStack      int           `yaml:"max_stack"`
	Tradable      bool          `yaml:"tradable"`
	Destroyable   bool          `yaml:"destroyable"`
	Sellable      bool          `yaml:"sellable"`
	BuyPrice      int64         `yaml:"buy_price"`
	SellPrice     int64         `yaml:"sell_price"`
	RequiredLevel int           `yaml:"required_level"`
	Bonus         Bonuses       `yaml:"bonus"`
	Use           *UsableEffect `yaml:"use"`
}

// CooldownKey returns the key an item-use cooldown is tracked under.
func (d *ItemDefinition) CooldownKey() uint64 {
	if d.Use != nil && d.Use.CooldownCategory != "" {
		return StableHash(d.Use.CooldownCategory)
	}
	return d.Hash
}

// ItemAmount pairs an item name with a count.
type ItemAmount struct {
	Item   string `yaml:"item"`
	Amount int    `yaml:"amount"`
}

// RecipeDefinition maps an ingredient multiset to a crafted result.
type RecipeDefinition struct {
	Name         string       `yaml:"name"`
	Ingredients  []ItemAmount `yaml:"ingredients"`
	Result       string       `yaml:"result"`
	CraftingTime float64      `yaml:"crafting_time"`
	Probability  float64      `yaml:"probability"`
}

// Drop is a chance for a monster to carry an item when it dies.
type Drop struct {
	Item        string  `yaml:"item"`
	Probability float64 `yaml:"probability"`
}

// MonsterDefinition describes a hostile non-player entity.
type MonsterDefinition struct {
	Name            string  `yaml:"name"`
	Level           int     `yaml:"level"`
	Health          int     `yaml:"health"`
	Defense         int     `yaml:"defense"`
	Radius          float64 `yaml:"radius"`
	RespawnTime     float64 `yaml:"respawn_time"`
	GoldMin         int64   `yaml:"gold_min"`
	GoldMax         int64   `yaml:"gold_max"`
	Experience      int64   `yaml:"experience"`
	SkillExperience int64   `yaml:"skill_experience"`
	Drops           []Drop  `yaml:"drops"`
}

// NpcDefinition describes a friendly non-player entity. Its position and
// teleport destination come from the map.
type NpcDefinition struct {
	Name      string   `yaml:"name"`
	Radius    float64  `yaml:"radius"`
	SaleItems []string `yaml:"sale_items"`
}

// EquipmentSlot names a slot and the item category prefix it accepts.
type EquipmentSlot struct {
	Name     string `yaml:"name"`
	Category string `yaml:"category"`
}

// AvatarTemplate is the shared definition every avatar is created from.
type AvatarTemplate struct {
	Health        LinearInt       `yaml:"health"`
	Mana          LinearInt       `yaml:"mana"`
	Damage        LinearInt       `yaml:"damage"`
	Defense       LinearInt       `yaml:"defense"`
	Speed         float64         `yaml:"speed"`
	Radius        float64         `yaml:"radius"`
	MaxLevel      int             `yaml:"max_level"`
	ExperienceMax ExponentialInt  `yaml:"experience_max"`
	InventorySize int             `yaml:"inventory_size"`
	Equipment     []EquipmentSlot `yaml:"equipment"`
	Skills        []string        `yaml:"skills"`
	StartItems    []ItemAmount    `yaml:"start_items"`
	StartGold     int64           `yaml:"start_gold"`

	// AttributesPerLevel is how many strength or intelligence points each
	// level grants.
	AttributesPerLevel int `yaml:"attributes_per_level"`
}

type catalogFile struct {
	Skills   []*SkillDefinition   `yaml:"skills"`
	Items    []*ItemDefinition    `yaml:"items"`
	Recipes  []*RecipeDefinition  `yaml:"recipes"`
	Monsters []*MonsterDefinition `yaml:"monsters"`
	Npcs     []*NpcDefinition     `yaml:"npcs"`
	Avatar   AvatarTemplate       `yaml:"avatar"`
}

// Catalog is the read-only registry of every definition. It is safe for
// concurrent use once built.
type Catalog struct {
	skills   map[uint64]*SkillDefinition
	items    map[uint64]*ItemDefinition
	recipes  map[string]*RecipeDefinition
	monsters map[string]*MonsterDefinition
	npcs     map[string]*NpcDefinition
	template AvatarTemplate
	// index of each recipe by its sorted ingredient names
	byIngredients map[string]*RecipeDefinition
}

// Default returns the catalog embedded in the binary.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a YAML catalog from disk.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	c, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse builds a catalog from YAML and validates cross references.
func Parse(raw []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	c := &Catalog{
		skills:        make(map[uint64]*SkillDefinition, len(f.Skills)),
		items:         make(map[uint64]*ItemDefinition, len(f.Items)),
		recipes:       make(map[string]*RecipeDefinition, len(f.Recipes)),
		monsters:      make(map[string]*MonsterDefinition, len(f.Monsters)),
		npcs:          make(map[string]*NpcDefinition, len(f.Npcs)),
		byIngredients: make(map[string]*RecipeDefinition, len(f.Recipes)),
		template:      f.Avatar,
	}

	for _, s := range f.Skills {
		if s.Name == "" {
			return nil, errors.New("skill without name")
		}
		s.Hash = StableHash(s.Name)
		if _, dup := c.skills[s.Hash]; dup {
			return nil, fmt.Errorf("duplicate skill %q", s.Name)
		}
		if s.MaxLevel <= 0 {
			s.MaxLevel = 1
		}
		switch s.Kind {
		case SkillTargetDamage, SkillSlashDamage, SkillAreaHeal, SkillBuff:
		default:
			return nil, fmt.Errorf("skill %q: unknown kind %q", s.Name, s.Kind)
		}
		c.skills[s.Hash] = s
	}
	for _, s := range f.Skills {
		if s.Predecessor != "" {
			if _, ok := c.skills[StableHash(s.Predecessor)]; !ok {
				return nil, fmt.Errorf("skill %q: unknown predecessor %q", s.Name, s.Predecessor)
			}
		}
	}

	for _, it := range f.Items {
		if it.Name == "" {
			return nil, errors.New("item without name")
		}
		it.Hash = StableHash(it.Name)
		if _, dup := c.items[it.Hash]; dup {
			return nil, fmt.Errorf("duplicate item %q", it.Name)
		}
		if it.MaxStack <= 0 {
			it.MaxStack = 1
		}
		c.items[it.Hash] = it
	}

	for _, r := range f.Recipes {
		if _, dup := c.recipes[r.Name]; dup {
			return nil, fmt.Errorf("duplicate recipe %q", r.Name)
		}
		if _, ok := c.items[StableHash(r.Result)]; !ok {
			return nil, fmt.Errorf("recipe %q: unknown result %q", r.Name, r.Result)
		}
		for _, ing := range r.Ingredients {
			if _, ok := c.items[StableHash(ing.Item)]; !ok {
				return nil, fmt.Errorf("recipe %q: unknown ingredient %q", r.Name, ing.Item)
			}
			if ing.Amount <= 0 {
				return nil, fmt.Errorf("recipe %q: ingredient %q amount must be positive", r.Name, ing.Item)
			}
		}
		c.recipes[r.Name] = r
		c.byIngredients[ingredientKey(r.Ingredients)] = r
	}

	for _, m := range f.Monsters {
		if _, dup := c.monsters[m.Name]; dup {
			return nil, fmt.Errorf("duplicate monster %q", m.Name)
		}
		for _, d := range m.Drops {
			if _, ok := c.items[StableHash(d.Item)]; !ok {
				return nil, fmt.Errorf("monster %q: unknown drop %q", m.Name, d.Item)
			}
		}
		c.monsters[m.Name] = m
	}

	for _, n := range f.Npcs {
		if _, dup := c.npcs[n.Name]; dup {
			return nil, fmt.Errorf("duplicate npc %q", n.Name)
		}
		for _, item := range n.SaleItems {
			it, ok := c.items[StableHash(item)]
			if !ok {
				return nil, fmt.Errorf("npc %q: unknown sale item %q", n.Name, item)
			}
			if it.BuyPrice <= 0 {
				return nil, fmt.Errorf("npc %q: sale item %q has no buy price", n.Name, item)
			}
		}
		c.npcs[n.Name] = n
	}

	for _, name := range c.template.Skills {
		if _, ok := c.skills[StableHash(name)]; !ok {
			return nil, fmt.Errorf("avatar template: unknown skill %q", name)
		}
	}
	for _, ia := range c.template.StartItems {
		if _, ok := c.items[StableHash(ia.Item)]; !ok {
			return nil, fmt.Errorf("avatar template: unknown start item %q", ia.Item)
		}
	}
	if c.template.MaxLevel <= 0 {
		c.template.MaxLevel = 1
	}
	if c.template.InventorySize <= 0 {
		return nil, errors.New("avatar template: inventory_size must be positive")
	}
	return c, nil
}

// Skill looks up a skill by hash.
func (c *Catalog) Skill(hash uint64) (*SkillDefinition, error) {
	s, ok := c.skills[hash]
	if !ok {
		return nil, fmt.Errorf("skill %d: %w", hash, ErrNotFound)
	}
	return s, nil
}

// SkillByName looks up a skill by name.
func (c *Catalog) SkillByName(name string) (*SkillDefinition, error) {
	s, ok := c.skills[StableHash(name)]
	if !ok {
		return nil, fmt.Errorf("skill %q: %w", name, ErrNotFound)
	}
	return s, nil
}

// Item looks up an item by hash.
func (c *Catalog) Item(hash uint64) (*ItemDefinition, error) {
	it, ok := c.items[hash]
	if !ok {
		return nil, fmt.Errorf("item %d: %w", hash, ErrNotFound)
	}
	return it, nil
}

// ItemByName looks up an item by name.
func (c *Catalog) ItemByName(name string) (*ItemDefinition, error) {
	it, ok := c.items[StableHash(name)]
	if !ok {
		return nil, fmt.Errorf("item %q: %w", name, ErrNotFound)
	}
	return it, nil
}

// Recipe looks up a recipe by name.
func (c *Catalog) Recipe(name string) (*RecipeDefinition, error) {
	r, ok := c.recipes[name]
	if !ok {
		return nil, fmt.Errorf("recipe %q: %w", name, ErrNotFound)
	}
	return r, nil
}

// MatchRecipe finds the recipe whose ingredients equal the given multiset.
func (c *Catalog) MatchRecipe(ingredients []ItemAmount) (*RecipeDefinition, error) {
	r, ok := c.byIngredients[ingredientKey(ingredients)]
	if !ok {
		return nil, fmt.Errorf("recipe for %v: %w", ingredients, ErrNotFound)
	}
	return r, nil
}

// Monster looks up a monster by name.
func (c *Catalog) Monster(name string) (*MonsterDefinition, error) {
	m, ok := c.monsters[name]
	if !ok {
		return nil, fmt.Errorf("monster %q: %w", name, ErrNotFound)
	}
	return m, nil
}

// Npc looks up an npc by name.
func (c *Catalog) Npc(name string) (*NpcDefinition, error) {
	n, ok := c.npcs[name]
	if !ok {
		return nil, fmt.Errorf("npc %q: %w", name, ErrNotFound)
	}
	return n, nil
}

// Template returns the avatar template.
func (c *Catalog) Template() AvatarTemplate {
	return c.template
}

// Skills returns every skill definition sorted by name.
func (c *Catalog) Skills() []*SkillDefinition {
	out := make([]*SkillDefinition, 0, len(c.skills))
	for _, s := range c.skills {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ingredientKey folds duplicate entries and produces an order independent key.
func ingredientKey(ings []ItemAmount) string {
	totals := make(map[string]int, len(ings))
	for _, ing := range ings {
		totals[ing.Item] += ing.Amount
	}
	names := make([]string, 0, len(totals))
	for n := range totals {
		names = append(names, n)
	}
	sort.Strings(names)
	var b strings.Builder
	for _, n := range names {
		fmt.Fprintf(&b, "%s*%d;", n, totals[n])
	}
	return b.String()
}
