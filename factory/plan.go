/*
Package factory provides JSON to Go pass-plan conversion.

PURPOSE:
  Converts JSON plan definitions into pass templates. This enables
  plan configuration without code changes - the studio owner can
  define the price list in JSON, and the factory creates the proper
  Go structs.

WHY JSON?
  - Non-developers can modify the price list
  - Easy integration with an admin UI
  - Version control for plan definitions
  - Database storage of plan configs

JSON SCHEMA:
  {
    "id": "cello-8-consecutive",
    "name": "8 lessons, consecutive",
    "lessons_total": 8,
    "price": "280",
    "consecutive": true,
    "duration_days": 60
  }

KEY FEATURES:
  - Validates JSON structure (go-playground/validator tags)
  - Sets sensible defaults
  - Materializes purchase inputs from a plan + student + group
  - Ships a built-in catalog of common plans

USAGE:
  catalog := factory.DefaultCatalog()
  plan, err := catalog.Get("cello-8-consecutive")
  input := plan.Materialize(studentID, groupID, purchaseDate)
  pass, err := service.PurchasePass(ctx, input)
*/
package factory

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/atelier/studio-engine/billing"
	"github.com/atelier/studio-engine/roster"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PlanJSON is the JSON representation of a pass plan.
type PlanJSON struct {
	ID           string `json:"id" validate:"required"`
	Name         string `json:"name" validate:"required"`
	LessonsTotal int    `json:"lessons_total" validate:"gt=0"`
	Price        string `json:"price" validate:"required"`
	Consecutive  bool   `json:"consecutive,omitempty"`
	// DurationDays derives an expiry from the purchase date; 0 means
	// the plan never expires on its own.
	DurationDays int    `json:"duration_days,omitempty" validate:"gte=0"`
	Description  string `json:"description,omitempty"`
}

// Plan is a validated pass template.
type Plan struct {
	ID           string
	Name         string
	LessonsTotal int
	Price        decimal.Decimal
	Consecutive  bool
	DurationDays int
	Description  string
}

var validate = validator.New()

// =============================================================================
// PLAN FACTORY
// =============================================================================

// ParsePlan parses a single JSON plan definition.
func ParsePlan(jsonStr string) (*Plan, error) {
	var pj PlanJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return nil, fmt.Errorf("failed to parse plan JSON: %w", err)
	}
	return FromJSON(pj)
}

// FromJSON converts PlanJSON to a Plan.
func FromJSON(pj PlanJSON) (*Plan, error) {
	if err := validate.Struct(pj); err != nil {
		return nil, fmt.Errorf("invalid plan %q: %w", pj.ID, err)
	}
	price, err := decimal.NewFromString(pj.Price)
	if err != nil {
		return nil, fmt.Errorf("invalid plan %q: price: %w", pj.ID, err)
	}
	if price.IsNegative() {
		return nil, fmt.Errorf("invalid plan %q: negative price", pj.ID)
	}
	return &Plan{
		ID:           pj.ID,
		Name:         pj.Name,
		LessonsTotal: pj.LessonsTotal,
		Price:        price,
		Consecutive:  pj.Consecutive,
		DurationDays: pj.DurationDays,
		Description:  pj.Description,
	}, nil
}

// ToJSON converts a Plan back to its JSON representation.
func ToJSON(p *Plan) PlanJSON {
	return PlanJSON{
		ID:           p.ID,
		Name:         p.Name,
		LessonsTotal: p.LessonsTotal,
		Price:        p.Price.String(),
		Consecutive:  p.Consecutive,
		DurationDays: p.DurationDays,
		Description:  p.Description,
	}
}

// Materialize fills a purchase input from the plan for one student in
// one group. The caller hands the result to roster.Service.PurchasePass.
func (p *Plan) Materialize(studentID billing.StudentID, groupID billing.GroupID, purchaseDate billing.Day) roster.PurchaseInput {
	return roster.PurchaseInput{
		StudentID:    studentID,
		GroupID:      groupID,
		PurchaseDate: purchaseDate,
		DurationDays: p.DurationDays,
		LessonsTotal: p.LessonsTotal,
		Price:        p.Price,
		Consecutive:  p.Consecutive,
	}
}

// =============================================================================
// CATALOG
// =============================================================================

// Catalog is the studio's current price list, keyed by plan ID.
type Catalog struct {
	plans map[string]*Plan
}

// NewCatalog builds an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{plans: make(map[string]*Plan)}
}

// ParseCatalog parses a JSON array of plan definitions.
func ParseCatalog(jsonStr string) (*Catalog, error) {
	var pjs []PlanJSON
	if err := json.Unmarshal([]byte(jsonStr), &pjs); err != nil {
		return nil, fmt.Errorf("failed to parse catalog JSON: %w", err)
	}
	c := NewCatalog()
	for _, pj := range pjs {
		plan, err := FromJSON(pj)
		if err != nil {
			return nil, err
		}
		c.plans[plan.ID] = plan
	}
	return c, nil
}

// Add registers or replaces a plan.
func (c *Catalog) Add(p *Plan) {
	c.plans[p.ID] = p
}

// Get looks up a plan by ID.
func (c *Catalog) Get(id string) (*Plan, error) {
	p, ok := c.plans[id]
	if !ok {
		return nil, roster.ErrPlanNotFound
	}
	return p, nil
}

// List returns all plans sorted by ID.
func (c *Catalog) List() []*Plan {
	out := make([]*Plan, 0, len(c.plans))
	for _, p := range c.plans {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// DefaultCatalog ships the plans most studios start from.
func DefaultCatalog() *Catalog {
	c := NewCatalog()
	for _, pj := range []PlanJSON{
		{
			ID: "single", Name: "Single lesson",
			LessonsTotal: 1, Price: "45",
		},
		{
			ID: "pack-4", Name: "4 lessons",
			LessonsTotal: 4, Price: "160", DurationDays: 45,
		},
		{
			ID: "pack-8", Name: "8 lessons",
			LessonsTotal: 8, Price: "320", DurationDays: 90,
		},
		{
			ID: "pack-8-consecutive", Name: "8 lessons, consecutive",
			LessonsTotal: 8, Price: "280", DurationDays: 60, Consecutive: true,
			Description: "Discounted pack for students attending every week",
		},
	} {
		plan, err := FromJSON(pj)
		if err != nil {
			// Built-in definitions; a failure here is a programming error.
			panic(err)
		}
		c.plans[plan.ID] = plan
	}
	return c
}
