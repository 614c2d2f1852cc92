package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ResidencyStatus records whether a person currently lives in the area.
// There are exactly two states; a status is only set when a record is
// created and is never flipped afterwards.
type ResidencyStatus uint8

const (
	LivesHere ResidencyStatus = iota
	MovedAway
)

const (
	livesHereText = "lives_here"
	movedAwayText = "moved_away"
)

// Messages returned by the status lookup.
const (
	MessageLivesHere = "This person lives here!"
	MessageMovedAway = "This person relocated to another area!"
	MessageNotFound  = "This person does not exist in the registry"
)

func (s ResidencyStatus) String() string {
	switch s {
	case LivesHere:
		return livesHereText
	case MovedAway:
		return movedAwayText
	default:
		return fmt.Sprintf("ResidencyStatus(%d)", uint8(s))
	}
}

// IsValid reports whether s is one of the two defined states.
func (s ResidencyStatus) IsValid() bool {
	return s == LivesHere || s == MovedAway
}

// Message is the fixed lookup reply for a record carrying this status.
func (s ResidencyStatus) Message() string {
	if s == MovedAway {
		return MessageMovedAway
	}
	return MessageLivesHere
}

// ParseResidencyStatus maps the wire form onto the enum.
func ParseResidencyStatus(text string) (ResidencyStatus, error) {
	switch text {
	case livesHereText:
		return LivesHere, nil
	case movedAwayText:
		return MovedAway, nil
	default:
		return 0, fmt.Errorf("unknown residency status %q", text)
	}
}

func (s ResidencyStatus) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("invalid residency status %d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *ResidencyStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseResidencyStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Person is one resident record. Name is the lookup key but is not unique:
// adding the same name again appends a new record and replaces the index
// entry. Records are never mutated once created.
type Person struct {
	Name            string          `json:"name"`
	Age             uint            `json:"age"`
	ResidencyStatus ResidencyStatus `json:"residency_status"`
}

// NewPerson constructs a record. Every well-typed input is accepted,
// including an empty name and zero age.
func NewPerson(name string, age uint, status ResidencyStatus) *Person {
	return &Person{Name: name, Age: age, ResidencyStatus: status}
}

// LivesHere reports whether the record was added with the LivesHere status.
func (p *Person) LivesHere() bool {
	return p.ResidencyStatus == LivesHere
}

// PersonAdded is the notification emitted once per successful add, in the
// order adds were applied.
type PersonAdded struct {
	EventID         uuid.UUID       `json:"event_id"`
	Name            string          `json:"name"`
	Age             uint            `json:"age"`
	ResidencyStatus ResidencyStatus `json:"residency_status"`
	OccurredAt      time.Time       `json:"occurred_at"`
	RequestID       string          `json:"request_id,omitempty"`
}

// NewPersonAdded builds the notification for a freshly added record.
func NewPersonAdded(p *Person, now time.Time, requestID string) PersonAdded {
	return PersonAdded{
		EventID:         uuid.New(),
		Name:            p.Name,
		Age:             p.Age,
		ResidencyStatus: p.ResidencyStatus,
		OccurredAt:      now,
		RequestID:       requestID,
	}
}

// Person rebuilds the record carried by the event.
func (e PersonAdded) Person() *Person {
	return NewPerson(e.Name, e.Age, e.ResidencyStatus)
}

// EncodePersonAdded is the payload format shared by Kafka and the outbox.
func EncodePersonAdded(e PersonAdded) ([]byte, error) {
	return json.Marshal(e)
}

// DecodePersonAdded parses a payload produced by EncodePersonAdded.
func DecodePersonAdded(payload []byte) (PersonAdded, error) {
	var e PersonAdded
	if err := json.Unmarshal(payload, &e); err != nil {
		return PersonAdded{}, fmt.Errorf("decode person added: %w", err)
	}
	return e, nil
}

// EventPersonAdded names the notification in logs, outbox rows and topics.
const EventPersonAdded = "person_added"
