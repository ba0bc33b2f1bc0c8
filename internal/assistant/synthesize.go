package assistant

import (
	"fmt"
	"strings"
)

// minReplyLen is the shortest model reply returned as is.
const minReplyLen = 10

const (
	homeownerGreeting = "I'd be glad to help with your home. What problem are you noticing? " +
		"When did it start? Is it getting worse or affecting other parts of the house?"
	providerGreeting = "How can I help with your business today? I can look up a client, " +
		"check your schedule or rank your open jobs."
)

// Synthesize builds a reply from the last tool result of a turn. It only reads
// its input.
func Synthesize(last *ToolResult, role string) string {
	if last != nil && last.UI != nil && !last.IsError {
		switch last.UI.Type {
		case UIServiceRequest:
			return synthesizeServiceRequest(last.UI.Data)
		case UIProperty:
			return synthesizeProperty(last.UI.Data)
		}
	}
	if role == RoleProvider {
		return providerGreeting
	}
	return homeownerGreeting
}

func synthesizeServiceRequest(data map[string]any) string {
	summary := dataString(data, "summary")
	if summary == "" {
		summary = "your home"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "I've created a service request for %s.", strings.TrimSuffix(summary, "."))
	if sev := dataString(data, "severity"); sev != "" {
		fmt.Fprintf(&b, " Severity: %s.", sev)
	}
	if cost := dataString(data, "cost_range"); cost != "" {
		fmt.Fprintf(&b, " Estimated cost: %s.", cost)
	}
	if names := providerNames(data["providers"]); len(names) > 0 {
		fmt.Fprintf(&b, " Matched providers: %s.", strings.Join(names, ", "))
	} else {
		b.WriteString(" We'll let you know as soon as a provider is matched.")
	}
	b.WriteString(" Is there anything else you'd like to add, like photos or times that work for you?")
	return b.String()
}

func synthesizeProperty(data map[string]any) string {
	if addr := dataString(data, "address"); addr != "" {
		return fmt.Sprintf("I found the property details for %s. What service do you need help with at this home?", addr)
	}
	return "I found your property details. What service do you need help with at this home?"
}

func dataString(data map[string]any, key string) string {
	s, _ := data[key].(string)
	return strings.TrimSpace(s)
}

func providerNames(v any) []string {
	var names []string
	switch list := v.(type) {
	case []map[string]any:
		for _, p := range list {
			if n := dataString(p, "name"); n != "" {
				names = append(names, n)
			}
		}
	case []any:
		for _, item := range list {
			if p, ok := item.(map[string]any); ok {
				if n := dataString(p, "name"); n != "" {
					names = append(names, n)
				}
			}
		}
	}
	return names
}
