package question

import "strings"

// Routes select the answer style for a question
const (
	RouteDefault     = "default"
	RoutePersonal    = "personal"
	RouteInterviewer = "interviewer"
	RouteProject     = "project"
)

var (
	personalPhrases    = []string{"tell me about yourself", "háblame de ti", "cuéntame de ti"}
	interviewerPhrases = []string{"do you have any questions", "tienes alguna pregunta"}
	projectTerms       = []string{"project", "proyecto", "architecture", "diseño"}
)

// Route classifies q. Project routing only applies in project mode.
func Route(q string, projectMode bool) string {
	lower := strings.ToLower(q)
	switch {
	case containsAny(lower, personalPhrases):
		return RoutePersonal
	case containsAny(lower, interviewerPhrases):
		return RouteInterviewer
	case projectMode && containsAny(lower, projectTerms):
		return RouteProject
	default:
		return RouteDefault
	}
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
