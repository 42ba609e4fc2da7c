package profile

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// RosterError reports a spreadsheet row that could not be turned into a profile.
type RosterError struct {
	Sheet string
	Row   int // 1-based, as shown in spreadsheet tools
	Err   error
}

func (e *RosterError) Error() string {
	return fmt.Sprintf("sheet %q row %d: %v", e.Sheet, e.Row, e.Err)
}

func (e *RosterError) Unwrap() error { return e.Err }

// rosterColumns maps normalized header names to setters.
var rosterColumns = map[string]func(p *Profile, v string) error{
	"email":    func(p *Profile, v string) error { p.Identity = v; return nil },
	"identity": func(p *Profile, v string) error { p.Identity = v; return nil },
	"name":     func(p *Profile, v string) error { p.Name = v; return nil },
	"current_role": func(p *Profile, v string) error {
		p.CurrentRole = v
		return nil
	},
	"title":   func(p *Profile, v string) error { p.CurrentRole = v; return nil },
	"company": func(p *Profile, v string) error { p.Company = v; return nil },
	"experience_years": func(p *Profile, v string) error {
		if v == "" {
			return nil
		}
		years, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("experience_years %q: %w", v, err)
		}
		p.ExperienceYears = years
		return nil
	},
	"skills":              func(p *Profile, v string) error { p.Skills = splitList(v); return nil },
	"preferred_locations": func(p *Profile, v string) error { p.PreferredLocations = splitList(v); return nil },
	"locations":           func(p *Profile, v string) error { p.PreferredLocations = splitList(v); return nil },
	"willing_to_relocate": func(p *Profile, v string) error {
		switch strings.ToLower(v) {
		case "yes", "y", "true", "1":
			p.WillingToRelocate = true
		}
		return nil
	},
	"summary": func(p *Profile, v string) error { p.Summary = v; return nil },
	"notes":   func(p *Profile, v string) error { p.Notes = v; return nil },
}

// ImportSpreadsheet reads candidate rows from the first sheet of an xlsx roster. The first row
// holds headers (case and spacing insensitive, e.g. "Email", "Current Role", "Skills").
// Invalid rows are returned as RosterErrors alongside the valid profiles.
func ImportSpreadsheet(r io.Reader) ([]*Profile, []error, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("open roster: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, fmt.Errorf("roster has no sheets")
	}
	sheet := sheets[0]
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, fmt.Errorf("get rows for sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("sheet %q is empty", sheet)
	}

	setters := make([]func(*Profile, string) error, len(rows[0]))
	known := 0
	for i, h := range rows[0] {
		if set, ok := rosterColumns[headerKey(h)]; ok {
			setters[i] = set
			known++
		}
	}
	if known == 0 {
		return nil, nil, fmt.Errorf("sheet %q has no recognized header columns", sheet)
	}

	var profiles []*Profile
	var rowErrs []error
	for i, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		p := &Profile{}
		var rowErr error
		for col, v := range row {
			if col >= len(setters) || setters[col] == nil {
				continue
			}
			if err := setters[col](p, strings.TrimSpace(v)); err != nil {
				rowErr = err
				break
			}
		}
		if rowErr == nil {
			p.Normalize()
			rowErr = p.Validate()
		}
		if rowErr != nil {
			rowErrs = append(rowErrs, &RosterError{Sheet: sheet, Row: i + 2, Err: rowErr})
			continue
		}
		profiles = append(profiles, p)
	}
	return profiles, rowErrs, nil
}

func headerKey(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.Join(strings.FieldsFunc(h, func(r rune) bool { return r == ' ' || r == '-' || r == '_' }), "_")
}

func splitList(v string) []string {
	return compact(strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ';' }))
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
