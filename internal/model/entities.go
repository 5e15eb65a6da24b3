package model

import "time"

// Queue is a service line tied to a department. Administered externally.
type Queue struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	DepartmentID int64  `json:"department_id,omitempty"`
	Active       bool   `json:"active"`
	ScreenID     int64  `json:"screen_id,omitempty"`
	Manual       bool   `json:"manual"`
	MaxDisplayed int    `json:"max_displayed,omitempty"`
	Remarks      string `json:"remarks,omitempty"`
}

// Counter is a service position that pulls tickets from one queue.
type Counter struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	QueueID        int64  `json:"queue_id"`
	Active         bool   `json:"active"`
	ProcessMinutes int    `json:"process_minutes,omitempty"`
	ComputerName   string `json:"computer_name,omitempty"`
	IPAddress      string `json:"ip_address,omitempty"`
}

// Screen is a display board showing one or more queues.
type Screen struct {
	ID          int64  `json:"id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Active      bool   `json:"active"`
	DisplayRows int    `json:"display_rows,omitempty"`
	URL         string `json:"url,omitempty"`
}

// Kiosk is a ticket printing station. Patients pick one of its queues.
type Kiosk struct {
	ID           int64        `json:"id"`
	Code         string       `json:"code,omitempty"`
	Name         string       `json:"name"`
	Active       bool         `json:"active"`
	ComputerName string       `json:"computer_name,omitempty"`
	IPAddress    string       `json:"ip_address,omitempty"`
	Remarks      string       `json:"remarks,omitempty"`
	Queues       []KioskQueue `json:"queues"`
}

// KioskQueue binds a queue to a kiosk button.
type KioskQueue struct {
	QueueID      int64  `json:"queue_id"`
	DisplayText  string `json:"display_text"`
	Priority     int    `json:"priority,omitempty"`
	DisplayOrder int    `json:"display_order"`
	Active       bool   `json:"active"`
}

// Ticket is one queue item.
//
// Once created a ticket is immutable except for State, the assigned counter
// and the process/finish timestamps. Tickets are never deleted by the core.
type Ticket struct {
	ID       string `json:"id"`
	QueueID  int64  `json:"queue_id"`
	Sequence int    `json:"sequence"`
	Priority int    `json:"priority"`
	State    State  `json:"state"`

	DisplayText string `json:"display_text"`
	Order       string `json:"order"`
	// Previous is the sequence a priority ticket was inserted relative to (0 if none).
	Previous int `json:"previous,omitempty"`
	// PreviousQueueID is the source queue of a moved ticket (0 if none).
	PreviousQueueID int64 `json:"previous_queue_id,omitempty"`

	PatientCode string `json:"patient_code,omitempty"`
	PatientName string `json:"patient_name,omitempty"`
	PatientYOB  int    `json:"patient_yob,omitempty"`
	MedOrder    int    `json:"med_order,omitempty"`

	CreateDate   Day       `json:"create_date"`
	CreateTime   time.Time `json:"create_time"`
	EstimateTime time.Time `json:"estimate_time"`
	ProcessTime  time.Time `json:"process_time,omitzero"`
	FinishTime   time.Time `json:"finish_time,omitzero"`

	CounterID   int64  `json:"counter_id,omitempty"`
	CounterName string `json:"counter_name,omitempty"`
	Remarks     string `json:"remarks,omitempty"`
}

// IsPriority reports whether the ticket was issued with a priority level.
func (t Ticket) IsPriority() bool {
	return t.Priority > 0
}

// Priority levels. Zero is normal service; any positive level is priority.
const (
	PriorityNormal = 0
	PriorityLevel1 = 1
	PriorityLevel2 = 2
	PriorityLevel3 = 3
	PriorityLevel4 = 4
)
