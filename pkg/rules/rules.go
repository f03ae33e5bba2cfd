package rules

import "regexp"

// Built-in rule IDs. Audit flags reference these, so they are part of
// the downstream log schema and must stay stable.
const (
	RuleCredentialExfil  = "credential_exfiltration"
	RuleExternalFetch    = "external_fetch"
	RuleDownloadExecute  = "download_and_execute"
	RuleCodeExecution    = "code_execution"
	RuleDangerousImport  = "dangerous_import"
	RuleCredentialAssign = "credential_assignment"
	RuleMoltbookToken    = "moltbook_token"
)

// DefaultRules returns the built-in injection patterns, in evaluation
// order: hard-block rules first, advisory rules after. These cover
// attacks the learned classifier tends to miss, such as direct
// credential exfiltration asks and fetch-and-execute instructions.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:       RuleCredentialExfil,
			Severity: SeverityHard,
			Pattern:  regexp.MustCompile(`(?i)send\s+(?:your\s+)?(?:api[_\s]?key|token|credentials?|secret)`),
		},
		{
			ID:       RuleExternalFetch,
			Severity: SeverityHard,
			Pattern:  regexp.MustCompile(`(?i)(?:curl|fetch|post|get)\s+https?://\S+`),
			// Fetches that stay on the platform's own domain are fine.
			Exempt: regexp.MustCompile(`(?i)^(?:curl|fetch|post|get)\s+https?://www\.moltbook\.com(?:/|$|\s)`),
		},
		{
			ID:       RuleDownloadExecute,
			Severity: SeverityHard,
			Pattern:  regexp.MustCompile(`(?i)download\s+(?:and\s+)?(?:run|execute|install)`),
		},
		{
			ID:       RuleCodeExecution,
			Severity: SeverityHard,
			Pattern:  regexp.MustCompile(`(?i)(?:run|execute|eval)\s*\(`),
		},
		{
			ID:       RuleDangerousImport,
			Severity: SeverityHard,
			Pattern:  regexp.MustCompile(`(?i)import\s+(?:os|sys|subprocess|shutil)\b`),
		},
		{
			ID:       RuleCredentialAssign,
			Severity: SeverityAdvisory,
			Pattern:  regexp.MustCompile(`(?i)(?:api[_\s]?key|bearer|authorization)\s*[=:]\s*\S+`),
		},
		{
			ID:       RuleMoltbookToken,
			Severity: SeverityAdvisory,
			Pattern:  regexp.MustCompile(`(?i)moltbook_[a-zA-Z0-9]{20,}`),
		},
	}
}

// Default returns an engine loaded with the built-in rules.
func Default() *Engine {
	return NewEngine(DefaultRules())
}
