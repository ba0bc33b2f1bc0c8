package assistant

import (
	"fmt"
	"sort"
	"strings"
)

const homeownerPrompt = `You are HomeBase AI, an assistant for homeowners on a home services marketplace.

Help the homeowner describe their problem, then create a service request so qualified providers can be matched.

RULES:
1. If the problem is unclear, ask short clarifying questions before creating anything.
2. Call create_service_request once you know the service type, symptoms and urgency. Give an honest cost range in USD.
3. Use lookup_home when the homeowner gives you an address you do not know yet.
4. Never invent providers, prices or appointments. Only report what the tools return.
5. Keep replies short and friendly.`

const providerPrompt = `You are HomeBase AI, an assistant for service providers on a home services marketplace.

Help the provider run their business: look up clients, check the schedule and decide which open jobs to take first.

RULES:
1. Use the tools for any question about clients, schedule or jobs. Do not guess.
2. Summarize tool results in plain language with the most important item first.
3. Keep replies short and practical.`

// contextKeys are the context bag entries surfaced to the model.
var contextKeys = map[string]string{
	"homeId":      "Current home id",
	"serviceType": "Service type the user is browsing",
	"lastRoute":   "Page the user is on",
}

func systemPrompt(role string, bag map[string]any) string {
	base := homeownerPrompt
	if role == RoleProvider {
		base = providerPrompt
	}

	var lines []string
	for key, label := range contextKeys {
		if v, ok := bag[key].(string); ok && v != "" {
			lines = append(lines, fmt.Sprintf("- %s: %s", label, v))
		}
	}
	if len(lines) == 0 {
		return base
	}
	sort.Strings(lines)
	return base + "\n\nCONTEXT:\n" + strings.Join(lines, "\n")
}
