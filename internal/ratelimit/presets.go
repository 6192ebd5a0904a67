package ratelimit

import (
	"sort"
	"strconv"
	"strings"
)

// Plan tier presets. Values are per-minute; Name is the storage namespace, so
// every caller on the same plan shares one counter family.
var plans = map[string]Policy{
	"free":       {Name: "plan_free", Limit: 60, Window: 60},
	"starter":    {Name: "plan_starter", Limit: 300, Window: 60},
	"pro":        {Name: "plan_pro", Limit: 1200, Window: 60, Burst: 1500},
	"business":   {Name: "plan_business", Limit: 5000, Window: 60, Burst: 6000},
	"enterprise": {Name: "plan_enterprise", Limit: 20000, Window: 60, Burst: 25000},
}

// PlanPolicy resolves a preset policy by plan name.
func PlanPolicy(name string) (Policy, error) {
	p, ok := plans[name]
	if !ok {
		return Policy{}, &ConfigError{
			"unknown plan " + strconv.Quote(name) + " (valid: " + strings.Join(PlanNames(), ", ") + ")",
		}
	}
	return normalizePolicy(p)
}

// PlanNames lists the valid plan names, sorted.
func PlanNames() []string {
	names := make([]string, 0, len(plans))
	for name := range plans {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
