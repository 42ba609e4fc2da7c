// Package aspect defines the topical facets a candidate profile or a job description is split into,
// the versioned weight tables that score them, and the parser that decomposes free text into them.
package aspect

import "strings"

// Aspect names a topical facet such as skills or location.
type Aspect string

// Built-in aspects.
const (
	Skills     Aspect = "skills"
	Experience Aspect = "experience"
	Projects   Aspect = "projects"
	Education  Aspect = "education"
	Location   Aspect = "location"
	Profile    Aspect = "profile"
	Additional Aspect = "additional"
)

// Placeholder is used for an aspect the categorized narrative never mentions.
const Placeholder = "No specific requirements mentioned"

// Definition describes how an aspect is presented to the categorizer and recognized in its output.
type Definition struct {
	Aspect Aspect
	// Label is the section title requested from the categorizer.
	Label string
	// Headers are case-sensitive substrings that mark a line as the start of this aspect's section.
	Headers []string
}

// builtins is ordered by header precedence: when a line matches several aspects, the earliest wins.
var builtins = []Definition{
	{Aspect: Skills, Label: "Required Skills and Technologies", Headers: []string{"Required Skills", "Skills and Technologies"}},
	{Aspect: Experience, Label: "Experience Requirements", Headers: []string{"Experience"}},
	{Aspect: Projects, Label: "Project Requirements", Headers: []string{"Project"}},
	{Aspect: Education, Label: "Education and Qualifications", Headers: []string{"Education", "Qualification", "Degree"}},
	{Aspect: Location, Label: "Location and Work Arrangement", Headers: []string{"Location", "Work Arrangement"}},
	{Aspect: Profile, Label: "General Profile Requirements", Headers: []string{"Profile", "General"}},
	{Aspect: Additional, Label: "Additional Information", Headers: []string{"Additional", "Certification"}},
}

// Lookup returns the built-in definition for a.
func Lookup(a Aspect) (Definition, bool) {
	for _, d := range builtins {
		if d.Aspect == a {
			return d, true
		}
	}
	return Definition{}, false
}

// precedence returns the header precedence of a built-in aspect, or -1 for a custom one.
func precedence(a Aspect) int {
	for i, d := range builtins {
		if d.Aspect == a {
			return i
		}
	}
	return -1
}

// defaultLabel derives a section label for a custom aspect ("soft_skills" -> "Soft Skills").
func defaultLabel(a Aspect) string {
	words := strings.FieldsFunc(string(a), func(r rune) bool { return r == '_' || r == '-' || r == ' ' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
