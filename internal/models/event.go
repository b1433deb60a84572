package models

import "time"

// EventConfig describes the single active event
type EventConfig struct {
	Active       bool       `json:"active"`
	Name         string     `json:"name,omitempty"`
	Location     string     `json:"location,omitempty"`
	DateText     string     `json:"date_text,omitempty"`
	Code         string     `json:"code,omitempty"`
	FeedbackFrom *time.Time `json:"feedback_from,omitempty"`
}

// SantaConfig holds the Secret Santa game settings
type SantaConfig struct {
	RegistrationOpen bool   `json:"registration_open"`
	Started          bool   `json:"started"`
	Budget           string `json:"budget,omitempty"`
	Description      string `json:"description,omitempty"`
}

// Snapshot is the full persisted state: every guest, the event and
// Santa configuration, and the persona claim map (persona id -> guest id).
type Snapshot struct {
	Guests map[string]Guest `json:"guests"`
	Event  EventConfig      `json:"event"`
	Santa  SantaConfig      `json:"santa"`
	Claims map[int]string   `json:"claims"`
}
