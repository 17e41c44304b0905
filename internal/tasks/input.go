package tasks

import (
	"encoding/json"
	"errors"
	"time"
)

// Optional records whether a JSON field was present and whether it was null.
type Optional[T any] struct {
	Set   bool
	Valid bool
	V     T
}

func Some[T any](v T) Optional[T] { return Optional[T]{Set: true, Valid: true, V: v} }

func Null[T any]() Optional[T] { return Optional[T]{Set: true} }

func (o *Optional[T]) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		o.Valid = false
		return nil
	}
	if err := json.Unmarshal(b, &o.V); err != nil {
		return err
	}
	o.Valid = true
	return nil
}

// TagList decodes any JSON value; anything but an array of strings becomes empty.
type TagList []string

func (l *TagList) UnmarshalJSON(b []byte) error {
	var tags []string
	if err := json.Unmarshal(b, &tags); err != nil || tags == nil {
		*l = TagList{}
		return nil
	}
	*l = tags
	return nil
}

func (o Optional[T]) orZero() T {
	var zero T
	if !o.Valid {
		return zero
	}
	return o.V
}

// TaskInput is the payload accepted by create and update.
//
// Title and status follow truthy semantics on update: an empty or null
// value keeps what is stored, so neither can be cleared. Description, tags
// and dueDate follow defined semantics: any value present, including "" or
// null, replaces the stored one.
type TaskInput struct {
	Title       Optional[string]  `json:"title"`
	Description Optional[string]  `json:"description"`
	Status      Optional[string]  `json:"status"`
	Tags        Optional[TagList] `json:"tags"`
	DueDate     Optional[string]  `json:"dueDate"`
}

func truthy(o Optional[string]) bool { return o.Valid && o.V != "" }

type rule struct {
	field   string
	applies func(TaskInput) bool
	valid   func(TaskInput) bool
	message string
}

func always(TaskInput) bool { return true }

func validStatus(in TaskInput) bool {
	return in.Status.Valid && Status(in.Status.V).Valid()
}

func validDueDate(in TaskInput) bool {
	_, err := ParseDueDate(in.DueDate.V)
	return err == nil
}

var createRules = []rule{
	{"title", always, func(in TaskInput) bool { return truthy(in.Title) }, msgTitleRequired},
	{"status", func(in TaskInput) bool { return in.Status.Set }, validStatus, msgInvalidStatus},
	{"dueDate", func(in TaskInput) bool { return truthy(in.DueDate) }, validDueDate, msgInvalidDueDate},
}

var updateRules = []rule{
	{"status", func(in TaskInput) bool { return truthy(in.Status) }, validStatus, msgInvalidStatus},
	{"dueDate", func(in TaskInput) bool { return truthy(in.DueDate) }, validDueDate, msgInvalidDueDate},
}

func validate(rules []rule, in TaskInput) error {
	for _, r := range rules {
		if r.applies(in) && !r.valid(in) {
			return invalid(r.field, r.message)
		}
	}
	return nil
}

// ValidateCreate checks a create payload without touching storage.
func (in TaskInput) ValidateCreate() error { return validate(createRules, in) }

// ValidateUpdate checks an update payload without touching storage.
func (in TaskInput) ValidateUpdate() error { return validate(updateRules, in) }

func (in TaskInput) newTask(id string, now time.Time) Task {
	status := StatusToDo
	if in.Status.Set {
		status = Status(in.Status.V)
	}
	return Task{
		ID:          id,
		Title:       in.Title.V,
		Description: in.Description.orZero(),
		Status:      status,
		Tags:        tagsOf(in.Tags),
		DueDate:     dueDateOf(in.DueDate),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (in TaskInput) apply(t Task, now time.Time) Task {
	if truthy(in.Title) {
		t.Title = in.Title.V
	}
	if truthy(in.Status) {
		t.Status = Status(in.Status.V)
	}
	if in.Description.Set {
		t.Description = in.Description.orZero()
	}
	if in.Tags.Set {
		t.Tags = tagsOf(in.Tags)
	}
	if in.DueDate.Set {
		t.DueDate = dueDateOf(in.DueDate)
	}
	t.UpdatedAt = now
	return t
}

func tagsOf(o Optional[TagList]) []string {
	if !o.Valid || o.V == nil {
		return []string{}
	}
	return []string(o.V)
}

func dueDateOf(o Optional[string]) *time.Time {
	if !truthy(o) {
		return nil
	}
	d, err := ParseDueDate(o.V)
	if err != nil {
		return nil
	}
	return &d
}

var errBadDueDate = errors.New("unrecognized date format")

// Zoned layouts; fractional seconds are accepted after the seconds field.
var zonedDueDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04Z0700",
}

var localDueDateLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

// Date-only layouts, read as UTC midnight of the first day they cover.
var dateDueDateLayouts = []string{
	time.DateOnly,
	"2006-01",
	"2006",
}

// ParseDueDate accepts ISO 8601 timestamps with a zone, zone-less
// date-times (read in the local zone) and bare or reduced-precision dates
// (read as UTC midnight).
func ParseDueDate(s string) (time.Time, error) {
	for _, layout := range zonedDueDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	for _, layout := range localDueDateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	for _, layout := range dateDueDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errBadDueDate
}
