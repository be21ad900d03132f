// Package columns maps canonical column names onto the semantic roles the
// audit pipeline consumes: account, debit and credit. It judges header text
// only and has no opinion on the business meaning of the data below it.
package columns

import (
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Role is one of the semantic column roles downstream consumers ask for.
type Role string

const (
	RoleAccount Role = "account"
	RoleDebit   Role = "debit"
	RoleCredit  Role = "credit"
)

// Match names the column chosen for a role and how confident the match is.
type Match struct {
	Column     string
	Index      int
	Confidence float64
}

// roleKeywords are matched in order; earlier entries are stronger signals.
var roleKeywords = map[Role][]string{
	RoleAccount: {"account", "acct", "ledger", "account name", "account number"},
	RoleDebit:   {"debit", "withdrawal", "paid out", "money out", "dr"},
	RoleCredit:  {"credit", "deposit", "paid in", "money in", "cr"},
}

// DetectRoles scans the column names for each role and returns the best
// match per role. Columns the detector is unsure about are simply omitted;
// absence of a role is a normal outcome, not an error.
func DetectRoles(columnNames []string) map[Role]Match {
	matches := make(map[Role]Match)
	for role, keywords := range roleKeywords {
		if m, ok := bestMatch(columnNames, keywords); ok {
			matches[role] = m
		}
	}
	return matches
}

func bestMatch(columnNames []string, keywords []string) (Match, bool) {
	best := Match{Index: -1}
	for i, name := range columnNames {
		normalized := strings.ToLower(strings.TrimSpace(name))
		if normalized == "" {
			continue
		}
		if conf := scoreColumn(normalized, keywords); conf > best.Confidence {
			best = Match{Column: name, Index: i, Confidence: conf}
		}
	}
	return best, best.Index >= 0 && best.Confidence > 0
}

// scoreColumn grades one header against a role's keywords: exact equality
// beats substring containment, which beats a fuzzy rank match. Keyword
// order contributes a small penalty so "debit" outranks "dr".
func scoreColumn(name string, keywords []string) float64 {
	for ki, kw := range keywords {
		priority := 1.0 - 0.05*float64(ki)
		switch {
		case name == kw:
			return priority
		case strings.Contains(name, kw) && len(kw) > 2:
			return 0.85 * priority
		}
	}
	for ki, kw := range keywords {
		if len(kw) <= 3 {
			continue // fuzzy matching on tiny keywords is all noise
		}
		if rank := fuzzy.RankMatchNormalizedFold(kw, name); rank >= 0 {
			priority := 1.0 - 0.05*float64(ki)
			// A lower Levenshtein distance is a closer match.
			conf := 0.7 - 0.1*float64(rank)
			if conf < 0.3 {
				conf = 0.3
			}
			return conf * priority
		}
	}
	return 0
}
