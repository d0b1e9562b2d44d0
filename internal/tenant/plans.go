package tenant

// Plan identifies the pricing tier.
type Plan string

const (
	PlanStarter  Plan = "starter"
	PlanStandard Plan = "standard"
	PlanPremium  Plan = "premium"
)

// PlanConfig defines pricing and limits for a tier.
type PlanConfig struct {
	ID          Plan   `json:"id"`
	Name        string `json:"name"`
	Amount      int64  `json:"amount"` // minor units per billing period
	Currency    string `json:"currency"`
	MaxTutors   int    `json:"maxTutors"`   // 0 = unlimited
	MaxStudents int    `json:"maxStudents"` // 0 = unlimited
}

// Plans is the hardcoded plan catalogue.
var Plans = map[Plan]PlanConfig{
	PlanStarter: {
		ID:          PlanStarter,
		Name:        "Starter",
		Amount:      4900,
		Currency:    "usd",
		MaxTutors:   5,
		MaxStudents: 100,
	},
	PlanStandard: {
		ID:          PlanStandard,
		Name:        "Standard",
		Amount:      14900,
		Currency:    "usd",
		MaxTutors:   25,
		MaxStudents: 500,
	},
	PlanPremium: {
		ID:          PlanPremium,
		Name:        "Premium",
		Amount:      39900,
		Currency:    "usd",
		MaxTutors:   0,
		MaxStudents: 0,
	},
}

// ValidPlan returns true if the plan name is recognised.
func ValidPlan(p Plan) bool {
	_, ok := Plans[p]
	return ok
}
