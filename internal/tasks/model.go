package tasks

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

type Status string

const (
	StatusToDo    Status = "to_do"
	StatusProcess Status = "process"
	StatusDone    Status = "done"
)

var validStatuses = []Status{StatusToDo, StatusProcess, StatusDone}

// Valid reports whether s is one of to_do, process or done.
func (s Status) Valid() bool {
	return slices.Contains(validStatuses, s)
}

type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      Status     `json:"status"`
	Tags        []string   `json:"tags"`
	DueDate     *time.Time `json:"dueDate"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// UnmarshalJSON reads documents written by earlier versions of the service:
// a null description becomes "", and dueDate may be empty or in any form
// ParseDueDate accepts.
func (t *Task) UnmarshalJSON(b []byte) error {
	type plain Task
	aux := struct {
		*plain
		Description *string `json:"description"`
		DueDate     *string `json:"dueDate"`
	}{plain: (*plain)(t)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}

	t.Description = ""
	if aux.Description != nil {
		t.Description = *aux.Description
	}
	t.DueDate = nil
	if aux.DueDate != nil && *aux.DueDate != "" {
		d, err := ParseDueDate(*aux.DueDate)
		if err != nil {
			return fmt.Errorf("task %q: dueDate %q: %w", t.ID, *aux.DueDate, err)
		}
		t.DueDate = &d
	}
	return nil
}

func (t Task) HasTag(tag string) bool {
	return slices.Contains(t.Tags, tag)
}

// IsOverdue returns true if the task has a due date before now and is not done.
func (t Task) IsOverdue(now time.Time) bool {
	if t.Status == StatusDone || t.DueDate == nil {
		return false
	}
	return t.DueDate.Before(now)
}

// IsDueOn returns true if the due date falls within the local calendar day of day.
func (t Task) IsDueOn(day time.Time) bool {
	if t.DueDate == nil {
		return false
	}
	start := startOfDay(day)
	end := start.AddDate(0, 0, 1)
	return !t.DueDate.Before(start) && t.DueDate.Before(end)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Collection is the full ordered set of tasks, persisted as one unit.
type Collection []Task

func (c Collection) indexOf(id string) int {
	return slices.IndexFunc(c, func(t Task) bool { return t.ID == id })
}

func (c Collection) filter(keep func(Task) bool) []Task {
	out := make([]Task, 0, len(c))
	for _, t := range c {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}

// normalize fills defaults that older or hand-edited documents may omit.
func (c Collection) normalize() Collection {
	if c == nil {
		return Collection{}
	}
	for i := range c {
		if c[i].Tags == nil {
			c[i].Tags = []string{}
		}
	}
	return c
}

func (c Collection) clone() Collection {
	out := make(Collection, len(c))
	for i, t := range c {
		t.Tags = slices.Clone(t.Tags)
		if t.DueDate != nil {
			d := *t.DueDate
			t.DueDate = &d
		}
		out[i] = t
	}
	return out
}
