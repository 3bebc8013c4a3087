package models

import "time"

// SprintStatus is the lifecycle state of a sprint. Transitions only ever go
// future -> active -> closed.
type SprintStatus string

const (
	SprintFuture SprintStatus = "future"
	SprintActive SprintStatus = "active"
	SprintClosed SprintStatus = "closed"
)

// Board groups columns, cards and sprints.
type Board struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Revision  int64     `json:"revision"`
	CreatedAt time.Time `json:"created_at"`
	Columns   []Column  `json:"columns,omitempty"`
}

// Column is a kanban column on a board.
type Column struct {
	ID        int64  `json:"id"`
	BoardID   int64  `json:"board_id"`
	Name      string `json:"name"`
	Position  int64  `json:"position"`
	IsBacklog bool   `json:"is_backlog_column"`
	IsDone    bool   `json:"is_done_column"`
}

// Sprint is a named, time-boxed unit of planned work.
type Sprint struct {
	ID        int64        `json:"id"`
	BoardID   int64        `json:"board_id"`
	Name      string       `json:"name"`
	Goal      *string      `json:"goal,omitempty"`
	StartDate *time.Time   `json:"start_date,omitempty"`
	EndDate   *time.Time   `json:"end_date,omitempty"`
	Status    SprintStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	StartedAt *time.Time   `json:"started_at,omitempty"`
	ClosedAt  *time.Time   `json:"closed_at,omitempty"`
}

// Card represents a single card on the board. CompletedAt is derived from
// column moves and cannot be written directly.
type Card struct {
	ID              int64      `json:"id"`
	BoardID         int64      `json:"board_id"`
	ColumnID        int64      `json:"column_id"`
	Title           string     `json:"title"`
	Position        int64      `json:"position"`
	StoryPoints     *int       `json:"story_points"`
	CompletedAt     *time.Time `json:"completed_at"`
	SprintIDs       []int64    `json:"sprint_ids"`
	PrimarySprintID *int64     `json:"primary_sprint_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// InBacklog reports whether the card has no sprint membership.
func (c Card) InBacklog() bool {
	return len(c.SprintIDs) == 0
}

// HasSprint reports whether the card is a member of the sprint.
func (c Card) HasSprint(sprintID int64) bool {
	for _, id := range c.SprintIDs {
		if id == sprintID {
			return true
		}
	}
	return false
}

// SprintPage is one page of closed sprints.
type SprintPage struct {
	Items   []Sprint `json:"items"`
	HasMore bool     `json:"has_more"`
	Cursor  string   `json:"cursor,omitempty"`
}

// SprintListing is the planning view of a board's sprints.
type SprintListing struct {
	Active   *Sprint    `json:"active"`
	Upcoming []Sprint   `json:"upcoming"`
	Closed   SprintPage `json:"closed"`
}

// DailyMetric is one point of a burndown or burnup series.
type DailyMetric struct {
	Date      string `json:"date"`
	Remaining int    `json:"remaining"`
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
}

// SprintMetrics summarizes progress for one sprint.
type SprintMetrics struct {
	SprintID        int64         `json:"sprint_id"`
	Unit            string        `json:"unit"`
	TotalCards      int           `json:"total_cards"`
	CompletedCards  int           `json:"completed_cards"`
	TotalPoints     int           `json:"total_points"`
	CompletedPoints int           `json:"completed_points"`
	Burndown        []DailyMetric `json:"burndown"`
	Burnup          []DailyMetric `json:"burnup"`
}

// VelocityPoint is the completed work of one closed sprint.
type VelocityPoint struct {
	SprintID        int64     `json:"sprint_id"`
	SprintName      string    `json:"sprint_name"`
	ClosedAt        time.Time `json:"closed_at"`
	CompletedCards  int       `json:"completed_cards"`
	CompletedPoints int       `json:"completed_points"`
}

// ColumnCount is the occupancy of one column.
type ColumnCount struct {
	ColumnID   int64  `json:"column_id"`
	ColumnName string `json:"column_name"`
	CardCount  int    `json:"card_count"`
}

// FlowSource tells where a cumulative flow day came from.
type FlowSource string

const (
	FlowFromSnapshot FlowSource = "snapshot"
	FlowLive         FlowSource = "live"
	FlowMissing      FlowSource = "missing"
)

// FlowSnapshot is one day of cumulative flow. Missing days carry no columns.
type FlowSnapshot struct {
	Date        string        `json:"date"`
	Source      FlowSource    `json:"source"`
	Approximate bool          `json:"approximate"`
	Columns     []ColumnCount `json:"columns"`
}

// StoredSnapshot is a persisted daily column occupancy record.
type StoredSnapshot struct {
	BoardID    int64
	Day        string
	CapturedAt time.Time
	Columns    []ColumnCount
}
