package router

import (
	"regexp"
	"sort"
	"strings"
)

// Intent is one label from the fixed classification set.
type Intent string

const (
	// IntentEscalation covers urgent billing language: refunds, duplicate
	// charges, cancellations.
	IntentEscalation Intent = "escalation"
	// IntentUpdate covers requests to change customer record fields.
	IntentUpdate Intent = "update"
	// IntentReport covers ticket history and reporting requests.
	IntentReport Intent = "report"
	// IntentSupport covers general assistance requests.
	IntentSupport Intent = "support"
	// IntentLookup covers plain record retrieval.
	IntentLookup Intent = "lookup"
)

// intentPriority is the tie-break ordering: escalation-flavored language
// always preempts plain lookup/update framing. Lower is more urgent.
var intentPriority = map[Intent]int{
	IntentEscalation: 0,
	IntentUpdate:     1,
	IntentReport:     2,
	IntentSupport:    3,
	IntentLookup:     4,
}

// intentKeywords drives the keyword classifier. Matching is substring-based
// over the lowercased query, so word stems ("upgrad") catch inflections.
var intentKeywords = map[Intent][]string{
	IntentEscalation: {"refund", "charged", "charged twice", "cancel my", "unacceptable", "escalate", "immediately"},
	IntentUpdate:     {"update my", "change my", "update the", "set my email"},
	IntentReport:     {"history", "high-priority", "high priority", "open tickets", "report", "premium"},
	IntentSupport:    {"help", "upgrad", "question", "how do i", "assist", "support"},
	IntentLookup:     {"customer information", "get customer", "look up", "lookup", "information for", "details for", "find customer"},
}

// Classify maps a free-text query onto zero or more intent labels, sorted by
// priority. It is a pure function so it can be swapped for a learned
// classifier without touching the dispatch state machine. An empty result
// means the router falls back to a general support reply.
func Classify(text string) []Intent {
	normalized := strings.ToLower(text)

	var out []Intent
	for intent, keywords := range intentKeywords {
		for _, kw := range keywords {
			if strings.Contains(normalized, kw) {
				out = append(out, intent)
				break
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return intentPriority[out[i]] < intentPriority[out[j]]
	})
	return out
}

var (
	customerIDRe = regexp.MustCompile(`(?i)(?:id|customer)\s*#?(\d+)`)
	emailRe      = regexp.MustCompile(`[\w.\-]+@[\w\-]+\.[\w.\-]+`)
)

// parseCustomerID extracts an explicitly mentioned customer id. The second
// return value reports whether one was present.
func parseCustomerID(text string) (int64, bool) {
	m := customerIDRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	var id int64
	for _, ch := range m[1] {
		id = id*10 + int64(ch-'0')
	}
	return id, true
}

// parseEmail extracts the first email address mentioned in the query.
func parseEmail(text string) (string, bool) {
	m := emailRe.FindString(text)
	return m, m != ""
}

// wantsPremiumReport distinguishes the fleet-wide premium ticket report from
// a single customer's history request.
func wantsPremiumReport(text string) bool {
	normalized := strings.ToLower(text)
	return strings.Contains(normalized, "premium") ||
		strings.Contains(normalized, "high-priority") ||
		strings.Contains(normalized, "high priority")
}

// wantsOpenTicketsReport matches the fleet-wide open-ticket listing across
// active customers. Both phrases are required: "open tickets" alone still
// reads as a single customer's history request.
func wantsOpenTicketsReport(text string) bool {
	normalized := strings.ToLower(text)
	return strings.Contains(normalized, "open tickets") &&
		strings.Contains(normalized, "active customers")
}
