package interpret

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode"

	"github.com/nvandessel/tango/internal/graph"
)

// RulesInterpreter interprets prompts with keyword heuristics. It needs no
// network access and is always available, so it backs every other
// interpreter when they fail.
type RulesInterpreter struct{}

// NewRulesInterpreter creates a RulesInterpreter.
func NewRulesInterpreter() *RulesInterpreter {
	return &RulesInterpreter{}
}

// Available always returns true.
func (r *RulesInterpreter) Available() bool {
	return true
}

// verbRoles maps relation verb stems to the roles they imply for the
// acting (source) and receiving (target) pole.
var verbRoles = []struct {
	stem           string
	source, target graph.Role
}{
	{"attack", graph.RolePersecutor, graph.RoleVictim},
	{"blam", graph.RolePersecutor, graph.RoleVictim},
	{"criticiz", graph.RolePersecutor, graph.RoleVictim},
	{"control", graph.RolePersecutor, graph.RoleVictim},
	{"bull", graph.RolePersecutor, graph.RoleVictim},
	{"hurt", graph.RolePersecutor, graph.RoleVictim},
	{"ignor", graph.RolePersecutor, graph.RoleVictim},
	{"fight", graph.RolePersecutor, graph.RoleVictim},
	{"rescu", graph.RoleRescuer, graph.RoleVictim},
	{"sav", graph.RoleRescuer, graph.RoleVictim},
	{"protect", graph.RoleRescuer, graph.RoleVictim},
	{"help", graph.RoleCoach, graph.RoleNone},
	{"support", graph.RoleCoach, graph.RoleNone},
	{"coach", graph.RoleCoach, graph.RoleNone},
	{"mentor", graph.RoleCoach, graph.RoleNone},
	{"challeng", graph.RoleChallenger, graph.RoleNone},
	{"inspir", graph.RoleCreator, graph.RoleNone},
	{"lov", graph.RoleNone, graph.RoleNone},
}

// roleKeywords assigns a role to a pole whose own text mentions a stem.
// Earlier entries win.
var roleKeywords = []struct {
	stem string
	role graph.Role
}{
	{"victim", graph.RoleVictim},
	{"helpless", graph.RoleVictim},
	{"powerless", graph.RoleVictim},
	{"stuck", graph.RoleVictim},
	{"wound", graph.RoleVictim},
	{"critic", graph.RolePersecutor},
	{"bull", graph.RolePersecutor},
	{"tyrant", graph.RolePersecutor},
	{"persecut", graph.RolePersecutor},
	{"rescuer", graph.RoleRescuer},
	{"savior", graph.RoleRescuer},
	{"caretak", graph.RoleRescuer},
	{"fixer", graph.RoleRescuer},
	{"creat", graph.RoleCreator},
	{"artist", graph.RoleCreator},
	{"dream", graph.RoleCreator},
	{"coach", graph.RoleCoach},
	{"mentor", graph.RoleCoach},
	{"guide", graph.RoleCoach},
	{"challeng", graph.RoleChallenger},
}

var (
	positiveStems = []string{"lov", "support", "help", "grow", "trust", "care", "kind", "encourag", "creat", "joy", "safe", "together", "respect", "appreciat", "warm", "inspir"}
	negativeStems = []string{"attack", "blam", "hurt", "hat", "fear", "angr", "critic", "control", "ignor", "stuck", "helpless", "sham", "guilt", "fight", "drain", "abandon", "bull"}
	consentStems  = []string{"agree", "consent", "choose", "chose", "mutual", "together"}
	awareStems    = []string{"notic", "awar", "realiz", "reflect", "observ", "mindful"}
)

var (
	reBetween = regexp.MustCompile(`(?i)\bbetween\s+(.+?)\s+and\s+(.+)`)
	reVersus  = regexp.MustCompile(`(?i)^(.+?)\s+(?:vs\.?|versus|against)\s+(.+)$`)
	reVerb    = regexp.MustCompile(`(?i)^(.+?)\s+(attack\w*|blam\w*|criticiz\w*|control\w*|bull\w*|hurt\w*|ignor\w*|fight\w*|rescu\w*|sav\w*|protect\w*|help\w*|support\w*|coach\w*|mentor\w*|challeng\w*|inspir\w*|lov\w*)\s+(.+)$`)
	reAnd     = regexp.MustCompile(`(?i)^(.+?)\s+and\s+(.+)$`)
)

// nameStopWords end a pole name: the rest of the clause describes the pole.
var nameStopWords = map[string]bool{
	"is": true, "are": true, "was": true, "were": true, "has": true, "have": true,
	"there": true, "who": true, "that": true, "which": true, "because": true,
	"when": true, "but": true, "keeps": true, "keep": true, "always": true, "never": true,
}

var selfWords = map[string]bool{"i": true, "me": true, "myself": true, "i'm": true}

var articles = map[string]bool{"my": true, "the": true, "a": true, "an": true, "our": true}

// maxNameWords caps heuristic pole names.
const maxNameWords = 4

// Interpret splits the prompt into two poles and scores the relation.
func (r *RulesInterpreter) Interpret(ctx context.Context, prompt string) (*Interpretation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, fmt.Errorf("prompt is empty")
	}

	sentence := strings.TrimRight(prompt, ".!?")
	var (
		sourceText, targetText string
		sourceRole, targetRole graph.Role
	)

	switch {
	case reBetween.MatchString(sentence):
		m := reBetween.FindStringSubmatch(sentence)
		sourceText, targetText = m[1], m[2]
	case reVersus.MatchString(sentence):
		m := reVersus.FindStringSubmatch(sentence)
		sourceText, targetText = m[1], m[2]
	case reVerb.MatchString(sentence):
		m := reVerb.FindStringSubmatch(sentence)
		sourceText, targetText = m[1], m[3]
		sourceRole, targetRole = rolesForVerb(strings.ToLower(m[2]))
	case reAnd.MatchString(sentence):
		m := reAnd.FindStringSubmatch(sentence)
		sourceText, targetText = m[1], m[2]
	default:
		sourceText, targetText = "I", sentence
	}

	if sourceRole == graph.RoleNone {
		sourceRole = roleFromText(sourceText)
	}
	if targetRole == graph.RoleNone {
		targetRole = roleFromText(targetText)
	}

	words := tokenize(prompt)
	polarity := scorePolarity(words)

	// Awareness words outside the target's clause belong to the source.
	targetAware := hasStem(tokenize(targetText), awareStems)
	sourceAware := hasStem(tokenize(sourceText), awareStems) || (hasStem(words, awareStems) && !targetAware)

	in := &Interpretation{
		Source: Pole{
			Name:          poleName(sourceText, "Self"),
			Role:          string(sourceRole),
			EgoState:      egoStateForRole(sourceRole),
			Maturity:      maturityForRole(sourceRole),
			Metacognition: sourceAware,
		},
		Target: Pole{
			Name:          poleName(targetText, "Other"),
			Role:          string(targetRole),
			EgoState:      egoStateForRole(targetRole),
			Maturity:      maturityForRole(targetRole),
			Metacognition: targetAware,
		},
		Relation: Relation{
			Polarity:    polarity,
			Consent:     hasStem(words, consentStems),
			Description: prompt,
		},
		Interpreter: "rules",
		Reasoning:   "keyword heuristics",
	}

	Normalize(in)
	return in, nil
}

func rolesForVerb(verb string) (graph.Role, graph.Role) {
	for _, v := range verbRoles {
		if strings.HasPrefix(verb, v.stem) {
			return v.source, v.target
		}
	}
	return graph.RoleNone, graph.RoleNone
}

func roleFromText(text string) graph.Role {
	words := tokenize(text)
	for _, k := range roleKeywords {
		for _, w := range words {
			if strings.HasPrefix(w, k.stem) {
				return k.role
			}
		}
	}
	return graph.RoleNone
}

func egoStateForRole(role graph.Role) string {
	switch role {
	case graph.RolePersecutor:
		return graph.EgoControllingParent.String()
	case graph.RoleVictim:
		return graph.EgoAdaptedChild.String()
	case graph.RoleRescuer:
		return graph.EgoNurturingParent.String()
	case graph.RoleCreator:
		return graph.EgoFreeChild.String()
	case graph.RoleCoach, graph.RoleChallenger:
		return graph.EgoAdult.String()
	}
	return ""
}

func maturityForRole(role graph.Role) *float64 {
	switch role.Weight() {
	case -1:
		return graph.Float64(2)
	case 1:
		return graph.Float64(4)
	}
	if role == graph.RoleRescuer {
		return graph.Float64(2.5)
	}
	return nil
}

// scorePolarity maps the balance of positive and negative words onto
// [-0.8, 0.8], rounded to two decimals. No sentiment words yields 0.
func scorePolarity(words []string) float64 {
	var pos, neg int
	for _, w := range words {
		if hasPrefixAny(w, positiveStems) {
			pos++
		}
		if hasPrefixAny(w, negativeStems) {
			neg++
		}
	}
	if pos+neg == 0 {
		return 0
	}
	score := float64(pos-neg) / float64(pos+neg) * 0.8
	return math.Round(score*100) / 100
}

// poleName reduces a clause to a short name, dropping leading articles and
// possessives and stopping at the first clause word.
func poleName(text, fallback string) string {
	var kept []string
	for i, w := range strings.Fields(text) {
		clean := strings.Trim(w, ",.;:!?\"")
		lw := strings.ToLower(clean)
		if i == 0 && selfWords[lw] {
			return "Self"
		}
		if len(kept) == 0 && articles[lw] {
			continue
		}
		if nameStopWords[lw] {
			break
		}
		kept = append(kept, clean)
		if len(kept) == maxNameWords || strings.ContainsAny(w, ",;:") {
			break
		}
	}
	if len(kept) == 0 {
		return fallback
	}
	return strings.Join(kept, " ")
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
}

func hasStem(words []string, stems []string) bool {
	for _, w := range words {
		if hasPrefixAny(w, stems) {
			return true
		}
	}
	return false
}

func hasPrefixAny(w string, stems []string) bool {
	for _, s := range stems {
		if strings.HasPrefix(w, s) {
			return true
		}
	}
	return false
}
