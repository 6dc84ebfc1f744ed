package scrub

// DefaultRules covers contact details, government and payment identifiers,
// record numbers and common credential formats.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:          "email",
			Description: "Email address",
			Pattern:     `[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`,
			Kind:        KindPII,
		},
		{
			ID:          "phone",
			Description: "Phone number",
			Pattern:     `(?:\+\d{1,3}[\s.-]?)?\(?\d{3}\)?[\s.-]\d{3}[\s.-]\d{4}\b`,
			Kind:        KindPII,
		},
		{
			ID:          "ssn",
			Description: "US Social Security number",
			Pattern:     `\b\d{3}-\d{2}-\d{4}\b`,
			Kind:        KindPII,
		},
		{
			ID:          "payment-card",
			Description: "Payment card number",
			Pattern:     `\b(?:\d{4}[ -]?){3}\d{4}\b`,
			Kind:        KindPII,
		},
		{
			ID:          "date-of-birth",
			Description: "Labelled date of birth",
			Pattern:     `(?i)\b(?:dob|date of birth|born on)\s*[:=]?\s*\d{1,4}[/.-]\d{1,2}[/.-]\d{1,4}`,
			Keywords:    []string{"dob", "birth", "born"},
			Kind:        KindPII,
		},
		{
			ID:          "record-number",
			Description: "Medical record or insurance member number",
			Pattern:     `(?i)\b(?:mrn|medical record(?: number)?|member id|policy(?: number)?)\s*(?:#|no\.?|:)?\s*[A-Za-z0-9-]{5,}`,
			Keywords:    []string{"mrn", "record", "member", "policy"},
			Kind:        KindPII,
		},
		{
			ID:          "openai-api-key",
			Description: "OpenAI-style API key",
			Pattern:     `sk-(?:proj-|ant-)?[A-Za-z0-9_-]{20,}`,
			Kind:        KindCredential,
		},
		{
			ID:          "bearer-token",
			Description: "Bearer token",
			Pattern:     `(?i)bearer\s+[A-Za-z0-9\-._~+/]+=*`,
			Keywords:    []string{"bearer"},
			Kind:        KindCredential,
		},
		{
			ID:          "generic-secret",
			Description: "Labelled password or API key",
			Pattern:     `(?i)(?:api[_-]?key|password|passwd|secret)\s*[:=]\s*['"]?[^\s'"]{8,}['"]?`,
			Keywords:    []string{"key", "password", "passwd", "secret"},
			Kind:        KindCredential,
		},
		{
			ID:          "private-key",
			Description: "Private key header",
			Pattern:     `-----BEGIN (?:RSA |DSA |EC |OPENSSH |PGP )?PRIVATE KEY(?:[- ]BLOCK)?-----`,
			Kind:        KindCredential,
		},
	}
}
