package effects

import "github.com/udisondev/combatplay/internal/combatlog"

// Category splits statuses into beneficial and harmful ones.
type Category string

const (
	Buff   Category = "buff"
	Debuff Category = "debuff"
)

// Definition describes a status for presentation.
type Definition struct {
	ID       string   `yaml:"id" json:"id"`
	Name     string   `yaml:"name" json:"name"`
	Category Category `yaml:"category" json:"category"`
}

var builtin = []Definition{
	{ID: "poison", Name: "Poison", Category: Debuff},
	{ID: "burn", Name: "Burn", Category: Debuff},
	{ID: "bleed", Name: "Bleed", Category: Debuff},
	{ID: "stun", Name: "Stun", Category: Debuff},
	{ID: "weaken", Name: "Weaken", Category: Debuff},
	{ID: "regen", Name: "Regeneration", Category: Buff},
	{ID: "shield", Name: "Shield", Category: Buff},
	{ID: "haste", Name: "Haste", Category: Buff},
}

// Catalog resolves status ids to definitions. Read-only after construction.
type Catalog struct {
	defs map[string]Definition
}

// NewCatalog returns the built-in definitions with overrides applied on top.
func NewCatalog(overrides ...Definition) *Catalog {
	c := &Catalog{defs: make(map[string]Definition, len(builtin)+len(overrides))}
	for _, d := range builtin {
		c.defs[d.ID] = d
	}
	for _, d := range overrides {
		if d.ID == "" {
			continue
		}
		if d.Name == "" {
			d.Name = d.ID
		}
		if d.Category != Buff {
			d.Category = Debuff
		}
		c.defs[d.ID] = d
	}
	return c
}

// Lookup returns the definition registered for id.
func (c *Catalog) Lookup(id string) (Definition, bool) {
	d, ok := c.defs[id]
	return d, ok
}

// Resolve returns the definition for an applied status. Unknown ids fall back
// to the hints carried by the application, then to a debuff named after the id.
func (c *Catalog) Resolve(app combatlog.StatusApplication) Definition {
	if d, ok := c.defs[app.ID]; ok {
		return d
	}
	d := Definition{ID: app.ID, Name: app.Name, Category: Category(app.Category)}
	if d.Name == "" {
		d.Name = app.ID
	}
	if d.Category != Buff {
		d.Category = Debuff
	}
	return d
}
