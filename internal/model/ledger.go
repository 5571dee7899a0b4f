package model

import "time"

// EventType is the kind of care a plant received.
type EventType string

const (
	EventWatering    EventType = "watering"
	EventFertilizing EventType = "fertilizing"
	EventPruning     EventType = "pruning"
	EventRepotting   EventType = "repotting"
)

var EventTypes = []EventType{EventWatering, EventFertilizing, EventPruning, EventRepotting}

func (e EventType) Valid() bool {
	switch e {
	case EventWatering, EventFertilizing, EventPruning, EventRepotting:
		return true
	}
	return false
}

// CareEvent is an immutable log line for one plant. Only deletion is allowed
// after creation.
type CareEvent struct {
	ID        string    `json:"id"`
	PlantID   string    `json:"plantId"`
	EventType EventType `json:"eventType"`
	EventDate time.Time `json:"eventDate"`
	Notes     string    `json:"notes,omitempty"`
}

// JournalEntry is a dated note, optionally with a photo.
type JournalEntry struct {
	ID            string    `json:"id"`
	PlantID       string    `json:"plantId"`
	EntryDate     time.Time `json:"entryDate"`
	Content       string    `json:"content"`
	PhotoFilename string    `json:"photoFilename,omitempty"`
}
