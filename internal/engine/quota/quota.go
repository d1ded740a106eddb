// Package quota resolves subscription plans into custom role limits.
package quota

import "strconv"

// Limit is a plan limit. Unbounded means there is no ceiling.
type Limit int

const Unbounded Limit = -1

func (l Limit) IsUnbounded() bool { return l < 0 }

func (l Limit) String() string {
	if l.IsUnbounded() {
		return "unbounded"
	}
	return strconv.Itoa(int(l))
}

type Plan struct {
	ID                string
	MaxCustomRoles    Limit
	MaxTemplateUsages Limit
}

// Usage is the derived view shown next to the role list. Total is the plan
// capacity, -1 when unbounded.
type Usage struct {
	Total         int  `json:"total"`
	Limit         int  `json:"limit"`
	Used          int  `json:"used"`
	CanCreateMore bool `json:"can_create_more"`
}

type Policy struct {
	plans       map[string]Plan
	defaultPlan string
}

// NewPolicy builds a policy over plans. Lookups for unknown plan ids use
// defaultPlan; if that is unknown too the limit is zero.
func NewPolicy(plans []Plan, defaultPlan string) *Policy {
	p := &Policy{plans: make(map[string]Plan, len(plans)), defaultPlan: defaultPlan}
	for _, plan := range plans {
		p.plans[plan.ID] = plan
	}
	return p
}

// DefaultPlans is the seed used when configuration does not define plans.
func DefaultPlans() []Plan {
	return []Plan{
		{ID: "free", MaxCustomRoles: 2, MaxTemplateUsages: 2},
		{ID: "basic", MaxCustomRoles: 5, MaxTemplateUsages: 10},
		{ID: "pro", MaxCustomRoles: 20, MaxTemplateUsages: Unbounded},
		{ID: "enterprise", MaxCustomRoles: Unbounded, MaxTemplateUsages: Unbounded},
	}
}

// Has reports whether planID is configured, without the default fallback.
func (p *Policy) Has(planID string) bool {
	_, ok := p.plans[planID]
	return ok
}

func (p *Policy) Plan(planID string) Plan {
	if plan, ok := p.plans[planID]; ok {
		return plan
	}
	if plan, ok := p.plans[p.defaultPlan]; ok {
		return plan
	}
	return Plan{ID: planID}
}

func (p *Policy) LimitFor(planID string) Limit {
	return p.Plan(planID).MaxCustomRoles
}

func (p *Policy) CanCreateCustomRole(planID string, current int) bool {
	limit := p.LimitFor(planID)
	return limit.IsUnbounded() || current < int(limit)
}

// UsageStats never fails. After a downgrade current may exceed the limit; it
// is reported as is.
func (p *Policy) UsageStats(planID string, current int) Usage {
	limit := p.LimitFor(planID)
	return Usage{
		Total:         int(limit),
		Limit:         int(limit),
		Used:          current,
		CanCreateMore: p.CanCreateCustomRole(planID, current),
	}
}
