package assistant

import (
	"log/slog"
	"time"
)

var severityLevels = []string{"low", "moderate", "high", "emergency"}

var prioritizeCriteria = []string{"urgency", "value", "oldest"}

var lookupHomeSchema = ToolSchema{
	Name:        "lookup_home",
	Description: "Look up public property details for a street address.",
	Properties: map[string]Param{
		"address": {Type: TypeString, Description: "Full street address including city and state"},
	},
	Required: []string{"address"},
}

var createServiceRequestSchema = ToolSchema{
	Name:        "create_service_request",
	Description: "Create a service request for the homeowner once the problem is understood, and match providers to it.",
	Properties: map[string]Param{
		"service_type":       {Type: TypeString, Description: "Service category, e.g. hvac, plumbing, electrical, roofing"},
		"ai_summary":         {Type: TypeString, Description: "One sentence summary of the problem"},
		"severity_level":     {Type: TypeString, Description: "How urgent the problem is", Enum: severityLevels},
		"likely_cause":       {Type: TypeString, Description: "Most likely cause of the problem"},
		"confidence_score":   {Type: TypeNumber, Description: "Confidence in the diagnosis between 0 and 1"},
		"estimated_min_cost": {Type: TypeNumber, Description: "Low end of the cost estimate in USD"},
		"estimated_max_cost": {Type: TypeNumber, Description: "High end of the cost estimate in USD"},
		"scope_includes":     {Type: TypeArray, Description: "Work included in the job", Items: &Param{Type: TypeString}},
		"scope_excludes":     {Type: TypeArray, Description: "Work not included in the job", Items: &Param{Type: TypeString}},
		"home_id":            {Type: TypeString, Description: "Home the request is for, when known"},
	},
	Required: []string{
		"service_type", "ai_summary", "severity_level", "likely_cause", "confidence_score",
		"estimated_min_cost", "estimated_max_cost", "scope_includes", "scope_excludes",
	},
}

var getClientDetailsSchema = ToolSchema{
	Name:        "get_client_details",
	Description: "Get contact details and job history for one of the organization's clients.",
	Properties: map[string]Param{
		"client_id": {Type: TypeString, Description: "Client id"},
	},
	Required: []string{"client_id"},
}

var checkScheduleSchema = ToolSchema{
	Name:        "check_schedule",
	Description: "List scheduled jobs in a date range. Accepts today, tomorrow, this week, next week, next N days, YYYY-MM-DD or YYYY-MM-DD to YYYY-MM-DD.",
	Properties: map[string]Param{
		"date_range": {Type: TypeString, Description: "Date range to check"},
	},
	Required: []string{"date_range"},
}

var prioritizeJobsSchema = ToolSchema{
	Name:        "prioritize_jobs",
	Description: "Rank the organization's open jobs.",
	Properties: map[string]Param{
		"criteria": {Type: TypeString, Description: "Ranking criteria", Enum: prioritizeCriteria},
	},
	Required: []string{"criteria"},
}

// Dependencies are the collaborators tool handlers call into.
type Dependencies struct {
	Properties   PropertyLookup
	Homes        HomeStore
	Requests     ServiceRequestStore
	Matcher      ProviderMatcher
	Notifier     MatchNotifier // optional
	ProviderData ProviderDataStore
	Now          func() time.Time
	Logger       *slog.Logger
}

func (d Dependencies) withDefaults() Dependencies {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return d
}

// Toolset is the fixed set of tools offered to one role.
type Toolset struct {
	role     string
	registry *Registry
}

func (t Toolset) Role() string { return t.role }

func (t Toolset) Schemas() []ToolSchema { return t.registry.Schemas() }

func (t Toolset) Names() []string { return t.registry.Names() }

func (t Toolset) lookup(name string) (Tool, bool) { return t.registry.Lookup(name) }

func HomeownerToolset(deps Dependencies) Toolset {
	h := &homeownerTools{deps: deps.withDefaults()}
	reg := NewRegistry()
	reg.MustRegister(Tool{Schema: lookupHomeSchema, Handler: h.lookupHome})
	reg.MustRegister(Tool{Schema: createServiceRequestSchema, Handler: h.createServiceRequest})
	return Toolset{role: RoleHomeowner, registry: reg}
}

func ProviderToolset(deps Dependencies) Toolset {
	p := &providerTools{deps: deps.withDefaults()}
	reg := NewRegistry()
	reg.MustRegister(Tool{Schema: getClientDetailsSchema, Handler: p.getClientDetails})
	reg.MustRegister(Tool{Schema: checkScheduleSchema, Handler: p.checkSchedule})
	reg.MustRegister(Tool{Schema: prioritizeJobsSchema, Handler: p.prioritizeJobs})
	return Toolset{role: RoleProvider, registry: reg}
}

// Toolsets holds one Toolset per role. Built once and shared by all turns.
type Toolsets struct {
	homeowner Toolset
	provider  Toolset
}

func NewToolsets(deps Dependencies) *Toolsets {
	return &Toolsets{
		homeowner: HomeownerToolset(deps),
		provider:  ProviderToolset(deps),
	}
}

func (t *Toolsets) For(role string) (Toolset, bool) {
	switch role {
	case RoleHomeowner:
		return t.homeowner, true
	case RoleProvider:
		return t.provider, true
	}
	return Toolset{}, false
}

// ToolsFor returns the schemas offered to role, or nil for an unknown role.
func (t *Toolsets) ToolsFor(role string) []ToolSchema {
	ts, ok := t.For(role)
	if !ok {
		return nil
	}
	return ts.Schemas()
}
