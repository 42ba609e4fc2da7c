// Package profile models candidate profiles and renders them into per-aspect texts for indexing.
package profile

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
)

// ErrInvalidProfile is returned by Validate.
var ErrInvalidProfile = errors.New("invalid profile")

// Profile is a candidate record.
type Profile struct {
	Identity           string           `json:"identity" yaml:"identity"`
	Name               string           `json:"name" yaml:"name"`
	CurrentRole        string           `json:"current_role,omitempty" yaml:"current_role,omitempty"`
	Company            string           `json:"company,omitempty" yaml:"company,omitempty"`
	ExperienceYears    float64          `json:"experience_years,omitempty" yaml:"experience_years,omitempty"`
	Skills             []string         `json:"skills,omitempty" yaml:"skills,omitempty"`
	PreferredLocations []string         `json:"preferred_locations,omitempty" yaml:"preferred_locations,omitempty"`
	WillingToRelocate  bool             `json:"willing_to_relocate,omitempty" yaml:"willing_to_relocate,omitempty"`
	Summary            string           `json:"summary,omitempty" yaml:"summary,omitempty"`
	Notes              string           `json:"notes,omitempty" yaml:"notes,omitempty"`
	WorkExperience     []WorkExperience `json:"work_experience,omitempty" yaml:"work_experience,omitempty"`
	Projects           []Project        `json:"projects,omitempty" yaml:"projects,omitempty"`
	Education          []Education      `json:"education,omitempty" yaml:"education,omitempty"`
	Certifications     []Certification  `json:"certifications,omitempty" yaml:"certifications,omitempty"`
}

// WorkExperience is one position held. An empty End means the position is current.
type WorkExperience struct {
	Role        string `json:"role" yaml:"role"`
	Company     string `json:"company" yaml:"company"`
	Start       string `json:"start,omitempty" yaml:"start,omitempty"`
	End         string `json:"end,omitempty" yaml:"end,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Project is a portfolio entry.
type Project struct {
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	TechStack   []string `json:"tech_stack,omitempty" yaml:"tech_stack,omitempty"`
}

// Education is a degree or diploma.
type Education struct {
	Degree       string `json:"degree" yaml:"degree"`
	Institution  string `json:"institution,omitempty" yaml:"institution,omitempty"`
	FieldOfStudy string `json:"field_of_study,omitempty" yaml:"field_of_study,omitempty"`
}

// Certification is a professional certificate.
type Certification struct {
	Name   string `json:"name" yaml:"name"`
	Issuer string `json:"issuer,omitempty" yaml:"issuer,omitempty"`
}

// Normalize trims whitespace, lowercases email identities and drops empty list items.
func (p *Profile) Normalize() {
	p.Identity = strings.TrimSpace(p.Identity)
	if strings.Contains(p.Identity, "@") {
		p.Identity = strings.ToLower(p.Identity)
	}
	p.Name = strings.TrimSpace(p.Name)
	p.CurrentRole = strings.TrimSpace(p.CurrentRole)
	p.Company = strings.TrimSpace(p.Company)
	p.Skills = compact(p.Skills)
	p.PreferredLocations = compact(p.PreferredLocations)
}

// Validate reports missing required fields.
func (p *Profile) Validate() error {
	if p.Identity == "" {
		return fmt.Errorf("%w: identity is required", ErrInvalidProfile)
	}
	if strings.Contains(p.Identity, "@") {
		if _, err := mail.ParseAddress(p.Identity); err != nil {
			return fmt.Errorf("%w: identity %q is not a valid email", ErrInvalidProfile, p.Identity)
		}
	}
	if p.Name == "" {
		return fmt.Errorf("%w: name is required for %s", ErrInvalidProfile, p.Identity)
	}
	if p.ExperienceYears < 0 {
		return fmt.Errorf("%w: experience_years must not be negative", ErrInvalidProfile)
	}
	return nil
}

func compact(items []string) []string {
	out := items[:0]
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
