package models

import "time"

// Plan is a tenant subscription tier. Transitions are monotonic: Free -> Pro
// only, there is no downgrade path.
type Plan string

const (
	PlanFree Plan = "Free"
	PlanPro  Plan = "Pro"
)

func (p Plan) Valid() bool {
	return p == PlanFree || p == PlanPro
}

// FreePlanNoteLimit is the maximum number of live notes a Free tenant may hold.
const FreePlanNoteLimit = 3

type Tenant struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Slug      string    `db:"slug" json:"slug"`
	Plan      Plan      `db:"plan" json:"plan"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type CreateTenantInput struct {
	Name string `json:"name" validate:"required,min=2,max=255"`
	Slug string `json:"slug" validate:"required,min=2,max=63,slug"`
}
