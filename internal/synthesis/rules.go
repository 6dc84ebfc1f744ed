package synthesis

import (
	"context"
	"strings"
)

// rule is one symptom category. The first rule whose triggers appear in the
// query answers it; within a rule the first matching case wins.
type rule struct {
	triggers []string
	cases    []ruleCase
}

type ruleCase struct {
	// when lists alternative terms; an empty list always matches.
	when  []string
	draft Draft
}

var symptomRules = []rule{
	{
		triggers: []string{"headache", "head pain", "migraine", "head hurt"},
		cases: []ruleCase{
			{
				when: []string{"severe", "worst"},
				draft: Draft{
					ProbableCause: "Severe headache could indicate tension headache, migraine, or potentially serious condition requiring evaluation",
					Severity:      string(SeveritySevere),
					Advice:        "For severe headaches, especially if sudden or 'worst headache of your life', seek immediate medical attention. Apply cold compress, rest in dark quiet room, stay hydrated.",
				},
			},
			{
				when: []string{"migraine"},
				draft: Draft{
					ProbableCause: "Migraine headache - severe throbbing pain often on one side, may include nausea and light sensitivity",
					Severity:      string(SeverityModerate),
					Advice:        "Rest in dark, quiet room. Apply cold compress. Stay hydrated. Avoid known triggers. Consider over-the-counter pain relief. Consult doctor if frequent or severe.",
				},
			},
			{
				draft: Draft{
					ProbableCause: "Likely tension headache caused by stress, poor posture, dehydration, or eye strain",
					Severity:      string(SeverityMild),
					Advice:        "Rest, stay hydrated, apply cold or warm compress. Gentle neck stretches. Over-the-counter pain relievers if needed. If persistent or worsening, consult healthcare provider.",
				},
			},
		},
	},
	{
		triggers: []string{"fever", "temperature", "hot", "chills", "feverish"},
		cases: []ruleCase{
			{
				when: []string{"high", "severe", "103", "104"},
				draft: Draft{
					ProbableCause: "High fever (>103°F/39.4°C) indicating significant immune response to infection or other condition",
					Severity:      string(SeveritySevere),
					Advice:        "Seek immediate medical attention for high fever. Stay hydrated, rest, use fever reducers as directed. Monitor for other symptoms like difficulty breathing or severe headache.",
				},
			},
			{
				draft: Draft{
					ProbableCause: "Fever typically indicates viral or bacterial infection as body's immune response",
					Severity:      string(SeverityModerate),
					Advice:        "Rest, increase fluid intake, use acetaminophen or ibuprofen for comfort. Monitor temperature. Seek medical care if fever >101.3°F persists >3 days or with severe symptoms.",
				},
			},
		},
	},
	{
		triggers: []string{"cough", "throat", "sore throat", "congestion", "runny nose"},
		cases: []ruleCase{
			{
				when: []string{"blood"},
				draft: Draft{
					ProbableCause: "Coughing blood requires immediate medical evaluation to rule out serious conditions",
					Severity:      string(SeveritySevere),
					Advice:        "Seek immediate medical attention for coughing up blood. This could indicate serious respiratory or cardiovascular conditions requiring urgent evaluation.",
				},
			},
			{
				when: []string{"sore throat"},
				draft: Draft{
					ProbableCause: "Sore throat commonly caused by viral infection, bacterial infection (strep), or irritation",
					Severity:      string(SeverityMild),
					Advice:        "Gargle with warm salt water, stay hydrated, throat lozenges, rest. See doctor if severe pain, difficulty swallowing, fever, or white patches on throat.",
				},
			},
			{
				draft: Draft{
					ProbableCause: "Cough and congestion typically indicate upper respiratory infection, allergies, or irritation",
					Severity:      string(SeverityMild),
					Advice:        "Stay hydrated, use humidifier, honey for cough relief, rest. Seek medical care if persistent >2 weeks, fever, or difficulty breathing.",
				},
			},
		},
	},
	{
		triggers: []string{"stomach", "nausea", "vomit", "diarrhea", "abdominal", "belly"},
		cases: []ruleCase{
			{
				when: []string{"severe", "blood"},
				draft: Draft{
					ProbableCause: "Severe abdominal symptoms or blood in vomit/stool require immediate medical evaluation",
					Severity:      string(SeveritySevere),
					Advice:        "Seek immediate medical attention for severe abdominal pain or blood in vomit/stool. Could indicate serious conditions requiring urgent treatment.",
				},
			},
			{
				draft: Draft{
					ProbableCause: "Gastrointestinal symptoms commonly caused by viral gastroenteritis, food poisoning, or dietary factors",
					Severity:      string(SeverityModerate),
					Advice:        "Stay hydrated with clear fluids, rest, BRAT diet (bananas, rice, applesauce, toast). Seek medical care if severe dehydration, persistent symptoms >48 hours, or high fever.",
				},
			},
		},
	},
	{
		triggers: []string{"pain", "hurt", "ache", "sore"},
		cases: []ruleCase{
			{
				when: []string{"chest"},
				draft: Draft{
					ProbableCause: "Chest pain requires evaluation to rule out cardiac, pulmonary, or other serious conditions",
					Severity:      string(SeveritySevere),
					Advice:        "Seek immediate medical attention for chest pain, especially if severe, with shortness of breath, or radiating to arm/jaw. Call 911 if suspected heart attack.",
				},
			},
			{
				draft: Draft{
					ProbableCause: "Pain symptoms require evaluation based on location, severity, and associated factors",
					Severity:      string(SeverityModerate),
					Advice:        "Note pain location, severity (1-10 scale), triggers, and relief factors. Use appropriate pain management. Consult healthcare provider for proper evaluation and treatment plan.",
				},
			},
		},
	},
}

var generalDraft = Draft{
	ProbableCause: "Health concerns require professional medical evaluation for accurate assessment and appropriate care",
	Severity:      string(SeverityModerate),
	Advice:        "Please consult with a qualified healthcare professional who can properly evaluate your symptoms, medical history, and provide personalized treatment recommendations.",
}

// RuleGenerator answers from fixed symptom rules matched against the
// query. It never fails and needs no network.
type RuleGenerator struct{}

// NewRuleGenerator creates a RuleGenerator.
func NewRuleGenerator() *RuleGenerator {
	return &RuleGenerator{}
}

// Generate implements Generator.
func (g *RuleGenerator) Generate(ctx context.Context, p Prompt) (Generation, error) {
	if err := ctx.Err(); err != nil {
		return Generation{}, err
	}
	return Structured(Classify(p.Query)), nil
}

// Classify returns the rule draft for query.
func Classify(query string) Draft {
	q := strings.ToLower(query)
	for _, r := range symptomRules {
		if !containsAny(q, r.triggers) {
			continue
		}
		for _, c := range r.cases {
			if len(c.when) == 0 || containsAny(q, c.when) {
				return c.draft
			}
		}
	}
	return generalDraft
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
