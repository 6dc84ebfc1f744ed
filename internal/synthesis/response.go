package synthesis

import (
	"strings"
)

// Severity is the triage level of a response.
type Severity string

const (
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

// ParseSeverity maps s to a Severity, defaulting to moderate.
func ParseSeverity(s string) Severity {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeverityMild:
		return SeverityMild
	case SeveritySevere:
		return SeveritySevere
	default:
		return SeverityModerate
	}
}

// Fixed response texts.
const (
	DefaultLogStatus = "Consultation logged"
	LogFailedStatus  = "Consultation logging failed"

	FallbackCause  = "I understand you have health concerns. I recommend consulting with a healthcare professional for proper evaluation."
	FallbackAdvice = "Please seek medical attention from a qualified healthcare provider who can properly assess your symptoms and provide appropriate care."

	// RawTextAdvice accompanies free-text generations.
	RawTextAdvice = "Please consult with a healthcare professional for proper evaluation."

	CauseDisclosure  = "\n\nBased on medical knowledge: This information is supported by current medical guidelines and best practices."
	AdviceDisclosure = "\n\nNote: This guidance is enhanced with evidence-based medical information from our knowledge base."
)

// Response is the structured answer returned for every query.
type Response struct {
	ProbableCause  string   `json:"probable_cause"`
	Severity       Severity `json:"severity"`
	Advice         string   `json:"advice"`
	LogStatus      string   `json:"log_status"`
	RAGContextUsed bool     `json:"rag_context_used"`
	// Degraded marks the fixed fallback answer.
	Degraded bool `json:"degraded"`
}

// Fallback returns the answer used when generation fails.
func Fallback() Response {
	return Response{
		ProbableCause: FallbackCause,
		Severity:      SeverityModerate,
		Advice:        FallbackAdvice,
		LogStatus:     DefaultLogStatus,
		Degraded:      true,
	}
}

// Draft is the structured form a generator may produce. Empty fields are
// filled by Normalize.
type Draft struct {
	ProbableCause string `json:"probable_cause"`
	Severity      string `json:"severity"`
	Advice        string `json:"advice"`
	LogStatus     string `json:"log_status,omitempty"`
}

// Kind discriminates Generation variants.
type Kind int

const (
	kindUnknown Kind = iota
	KindStructured
	KindRawText
)

// Generation is either a Draft or raw text.
type Generation struct {
	kind  Kind
	draft Draft
	text  string
}

// Structured wraps a Draft.
func Structured(d Draft) Generation {
	return Generation{kind: KindStructured, draft: d}
}

// RawText wraps free text.
func RawText(s string) Generation {
	return Generation{kind: KindRawText, text: s}
}

// Kind returns the variant.
func (g Generation) Kind() Kind {
	return g.kind
}

// Draft returns the structured payload; ok is false for other variants.
func (g Generation) Draft() (Draft, bool) {
	return g.draft, g.kind == KindStructured
}

// Text returns the raw payload; ok is false for other variants.
func (g Generation) Text() (string, bool) {
	return g.text, g.kind == KindRawText
}

// Normalize turns any Generation into the fixed Response shape. RAG
// disclosure is not applied here.
func Normalize(g Generation) Response {
	switch g.kind {
	case KindStructured:
		d := g.draft
		r := Response{
			ProbableCause: d.ProbableCause,
			Severity:      ParseSeverity(d.Severity),
			Advice:        d.Advice,
			LogStatus:     d.LogStatus,
		}
		if r.ProbableCause == "" {
			r.ProbableCause = FallbackCause
		}
		if r.Advice == "" {
			r.Advice = FallbackAdvice
		}
		if r.LogStatus == "" {
			r.LogStatus = DefaultLogStatus
		}
		return r
	case KindRawText:
		cause := strings.TrimSpace(g.text)
		if cause == "" {
			cause = FallbackCause
		}
		return Response{
			ProbableCause: cause,
			Severity:      SeverityModerate,
			Advice:        RawTextAdvice,
			LogStatus:     DefaultLogStatus,
		}
	default:
		return Fallback()
	}
}

// WithDisclosure marks r as knowledge-base backed and appends the
// disclosure notes unless already present.
func WithDisclosure(r Response) Response {
	r.RAGContextUsed = true
	if !strings.HasSuffix(r.ProbableCause, CauseDisclosure) {
		r.ProbableCause += CauseDisclosure
	}
	if !strings.HasSuffix(r.Advice, AdviceDisclosure) {
		r.Advice += AdviceDisclosure
	}
	return r
}
