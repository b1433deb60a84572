package models

import "time"

// Guest represents a party guest
type Guest struct {
	ID            string      `json:"id"`
	Name          string      `json:"name,omitempty"`
	Handle        string      `json:"handle,omitempty"`
	Participating bool        `json:"participating"`
	PersonaID     int         `json:"persona_id,omitempty"`
	TaskIndex     int         `json:"task_index"`
	TaskStates    []TaskState `json:"task_states,omitempty"`
	Dish          string      `json:"dish,omitempty"`
	Drink         string      `json:"drink,omitempty"`
	Dessert       string      `json:"dessert,omitempty"`
	SantaJoined   bool        `json:"santa_joined"`
	Wish          string      `json:"wish,omitempty"`
	RecipientID   string      `json:"recipient_id,omitempty"`
	BenefactorID  string      `json:"benefactor_id,omitempty"`
	GiftPrepared  bool        `json:"gift_prepared"`
	BoundCode     string      `json:"bound_code,omitempty"`
	HasValidCode  bool        `json:"has_valid_code"`
	IsAdmin       bool        `json:"is_admin,omitempty"`
	FirstSeen     time.Time   `json:"first_seen"`
}

// HasPersona reports whether the guest currently holds a persona.
func (g *Guest) HasPersona() bool {
	return g.PersonaID != 0
}

// TaskState is the completion state of one secret task
type TaskState string

const (
	TaskUndone TaskState = "undone"
	TaskDone   TaskState = "done"
	TaskFailed TaskState = "failed"
)

// Next cycles undone -> done -> failed -> undone.
func (t TaskState) Next() TaskState {
	switch t {
	case TaskUndone:
		return TaskDone
	case TaskDone:
		return TaskFailed
	default:
		return TaskUndone
	}
}
