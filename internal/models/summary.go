// Package models holds the request, response and summary types shared by search, storage and transport.
package models

// ProfileSummary is the slice of a stored profile returned with search results.
type ProfileSummary struct {
	Identity    string `json:"identity"`
	Name        string `json:"name"`
	CurrentRole string `json:"current_role,omitempty"`
	Company     string `json:"company,omitempty"`
}
