package tenant

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/patissio/patissio/internal/apierror"
	"github.com/patissio/patissio/internal/logging"
)

// Plan represents a pricing tier.
type Plan string

const (
	PlanStarter Plan = "starter"
	PlanPro     Plan = "pro"
	PlanPremium Plan = "premium"
)

// Features lists what a tier unlocks.
type Features struct {
	MaxProducts    int  `json:"maxProducts"` // 0 = unlimited
	Workshops      bool `json:"workshops"`
	OnlinePayments bool `json:"onlinePayments"`
	CustomDomain   bool `json:"customDomain"`
	InstagramFeed  bool `json:"instagramFeed"`
}

// PlanConfig describes a pricing tier for display and enforcement.
type PlanConfig struct {
	Plan     Plan     `json:"plan"`
	Name     string   `json:"name"`
	Rank     int      `json:"rank"`
	Features Features `json:"features"`
}

// Plans is the hardcoded plan catalogue.
var Plans = map[Plan]PlanConfig{
	PlanStarter: {
		Plan: PlanStarter,
		Name: "Starter",
		Rank: 1,
		Features: Features{
			MaxProducts: 20,
		},
	},
	PlanPro: {
		Plan: PlanPro,
		Name: "Pro",
		Rank: 2,
		Features: Features{
			Workshops:      true,
			OnlinePayments: true,
		},
	},
	PlanPremium: {
		Plan: PlanPremium,
		Name: "Premium",
		Rank: 3,
		Features: Features{
			Workshops:      true,
			OnlinePayments: true,
			CustomDomain:   true,
			InstagramFeed:  true,
		},
	},
}

// OrderedPlans returns the catalogue from lowest to highest tier.
func OrderedPlans() []PlanConfig {
	return []PlanConfig{Plans[PlanStarter], Plans[PlanPro], Plans[PlanPremium]}
}

// Rank orders tiers. Unknown plans rank 0.
func Rank(p Plan) int {
	return Plans[p].Rank
}

// AtLeast reports whether p is the same tier as required or higher.
func (p Plan) AtLeast(required Plan) bool {
	return Rank(p) >= Rank(required)
}

// Features returns the feature set for p. Unknown plans get nothing.
func (p Plan) Features() Features {
	return Plans[p].Features
}

// ValidPlan returns true if the plan name is recognised.
func ValidPlan(p Plan) bool {
	_, ok := Plans[p]
	return ok
}

// RequirePlan denies the request unless the acting tenant's persisted plan is
// at least min. The plan is re-read from the store on every request.
// It must run after the middleware that sets the acting tenant.
func RequirePlan(store Store, min Plan) gin.HandlerFunc {
	return func(c *gin.Context) {
		current, ok := FromContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "no tenant for this request",
			})
			return
		}

		fresh, err := store.Get(c.Request.Context(), current.ID)
		if err != nil {
			apierror.Respond(c, err)
			return
		}

		if !fresh.Plan.AtLeast(min) {
			logging.L(c.Request.Context()).Info("plan requirement not met",
				"required", min, "current", fresh.Plan)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":        "plan_required",
				"message":      "This feature requires the " + Plans[min].Name + " plan",
				"requiredPlan": min,
				"currentPlan":  fresh.Plan,
			})
			return
		}

		SetContext(c, fresh)
		c.Next()
	}
}
