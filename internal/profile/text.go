package profile

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hyperjump/saiyo/internal/aspect"
)

// NotSpecified replaces an aspect text the profile has nothing for.
const NotSpecified = "Not specified"

// AspectTexts renders the profile for each requested aspect. Every value is non-empty.
// Aspects without a renderer use the profile summary, then NotSpecified.
func (p *Profile) AspectTexts(aspects []aspect.Aspect) map[aspect.Aspect]string {
	out := make(map[aspect.Aspect]string, len(aspects))
	for _, a := range aspects {
		var text string
		switch a {
		case aspect.Profile:
			text = p.profileText()
		case aspect.Skills:
			text = strings.Join(p.Skills, ", ")
		case aspect.Experience:
			text = p.experienceText()
		case aspect.Projects:
			text = p.projectsText()
		case aspect.Education:
			text = p.educationText()
		case aspect.Location:
			text = p.locationText()
		case aspect.Additional:
			text = p.additionalText()
		default:
			text = p.Summary
		}
		if strings.TrimSpace(text) == "" {
			text = NotSpecified
		}
		out[a] = text
	}
	return out
}

func (p *Profile) profileText() string {
	parts := []string{"Name: " + p.Name}
	parts = append(parts, "Current Role: "+orNotSpecified(p.CurrentRole))
	parts = append(parts, "Company: "+orNotSpecified(p.Company))
	parts = append(parts, "Experience: "+strconv.FormatFloat(p.ExperienceYears, 'f', -1, 64)+" years")
	if len(p.Skills) > 0 {
		parts = append(parts, "Skills: "+strings.Join(p.Skills, ", "))
	}
	if p.Summary != "" {
		parts = append(parts, p.Summary)
	}
	return strings.Join(parts, ". ")
}

func (p *Profile) experienceText() string {
	lines := make([]string, 0, len(p.WorkExperience))
	for _, w := range p.WorkExperience {
		end := w.End
		if end == "" {
			end = "Present"
		}
		line := fmt.Sprintf("Role: %s at %s", w.Role, w.Company)
		if w.Start != "" {
			line += fmt.Sprintf(" (%s to %s)", w.Start, end)
		}
		if w.Description != "" {
			line += ". " + w.Description
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 && p.ExperienceYears > 0 {
		lines = append(lines, strconv.FormatFloat(p.ExperienceYears, 'f', -1, 64)+" years of experience")
	}
	return strings.Join(lines, ". ")
}

func (p *Profile) projectsText() string {
	lines := make([]string, 0, len(p.Projects))
	for _, pr := range p.Projects {
		parts := []string{"Project: " + pr.Title}
		if pr.Description != "" {
			parts = append(parts, "Description: "+pr.Description)
		}
		if len(pr.TechStack) > 0 {
			parts = append(parts, "Tech Stack: "+strings.Join(pr.TechStack, ", "))
		}
		lines = append(lines, strings.Join(parts, ". "))
	}
	return strings.Join(lines, ". ")
}

func (p *Profile) educationText() string {
	lines := make([]string, 0, len(p.Education))
	for _, e := range p.Education {
		line := e.Degree
		if e.FieldOfStudy != "" {
			line += " in " + e.FieldOfStudy
		}
		if e.Institution != "" {
			line += " from " + e.Institution
		}
		lines = append(lines, strings.TrimSpace(line))
	}
	return strings.Join(lines, ". ")
}

func (p *Profile) locationText() string {
	if len(p.PreferredLocations) == 0 && !p.WillingToRelocate {
		return ""
	}
	relocate := "No"
	if p.WillingToRelocate {
		relocate = "Yes"
	}
	return "Preferred Locations: " + orNotSpecified(strings.Join(p.PreferredLocations, ", ")) +
		". Willing to Relocate: " + relocate
}

func (p *Profile) additionalText() string {
	parts := make([]string, 0, len(p.Certifications)+1)
	for _, c := range p.Certifications {
		if c.Issuer != "" {
			parts = append(parts, fmt.Sprintf("Certification: %s (%s)", c.Name, c.Issuer))
		} else {
			parts = append(parts, "Certification: "+c.Name)
		}
	}
	if p.Notes != "" {
		parts = append(parts, p.Notes)
	}
	return strings.Join(parts, ". ")
}

func orNotSpecified(s string) string {
	if strings.TrimSpace(s) == "" {
		return NotSpecified
	}
	return s
}
