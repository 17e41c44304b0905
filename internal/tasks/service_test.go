package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// tickingClock advances by one second on every call.
type tickingClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestService(t *testing.T, seed ...Task) (*Service, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore(seed...)
	clock := &tickingClock{t: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
	seq := 0
	svc := NewService(store,
		WithClock(clock.Now),
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("task-%d", seq)
		}),
	)
	return svc, store
}

func mustCreate(t *testing.T, svc *Service, in TaskInput) Task {
	t.Helper()
	task, err := svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return task
}

func TestCreate_Defaults(t *testing.T) {
	svc, _ := newTestService(t)

	got := mustCreate(t, svc, TaskInput{Title: Some("A")})

	if got.ID == "" {
		t.Fatalf("expected id to be set")
	}
	if got.Status != StatusToDo {
		t.Errorf("expected status to_do, got %q", got.Status)
	}
	if got.Tags == nil || len(got.Tags) != 0 {
		t.Errorf("expected empty non-nil tags, got %#v", got.Tags)
	}
	if got.Description != "" {
		t.Errorf("expected empty description, got %q", got.Description)
	}
	if got.DueDate != nil {
		t.Errorf("expected no due date, got %v", got.DueDate)
	}
	if got.CreatedAt.IsZero() || !got.UpdatedAt.Equal(got.CreatedAt) {
		t.Errorf("expected createdAt == updatedAt, got %v / %v", got.CreatedAt, got.UpdatedAt)
	}
}

func TestCreate_ThenGetReturnsSameTask(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created := mustCreate(t, svc, TaskInput{
		Title:       Some("write report"),
		Description: Some("quarterly"),
		Status:      Some("process"),
		Tags:        Some(TagList{"work", "q1"}),
		DueDate:     Some("2099-01-01"),
	})

	got, err := svc.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != created.ID || got.Title != "write report" || got.Description != "quarterly" ||
		got.Status != StatusProcess || len(got.Tags) != 2 || got.DueDate == nil {
		t.Fatalf("unexpected task: %+v", got)
	}
	if !got.DueDate.Equal(time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected due date %v", got.DueDate)
	}
	if got.UpdatedAt.Before(got.CreatedAt) {
		t.Errorf("updatedAt before createdAt")
	}
}

func TestCreate_IDsAreUnique(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store)
	ctx := context.Background()

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		task, err := svc.Create(ctx, TaskInput{Title: Some(fmt.Sprintf("t%d", i))})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if seen[task.ID] {
			t.Fatalf("duplicate id %s", task.ID)
		}
		seen[task.ID] = true
	}

	list, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, task := range list {
		if !seen[task.ID] {
			t.Fatalf("id %s changed after read", task.ID)
		}
	}
}

func TestCreate_ValidationLeavesStoreUntouched(t *testing.T) {
	tests := []struct {
		name    string
		in      TaskInput
		wantMsg string
	}{
		{name: "missing title", in: TaskInput{}, wantMsg: "Title is required"},
		{name: "empty title", in: TaskInput{Title: Some("")}, wantMsg: "Title is required"},
		{name: "null title", in: TaskInput{Title: Null[string]()}, wantMsg: "Title is required"},
		{name: "bad status", in: TaskInput{Title: Some("x"), Status: Some("blocked")}, wantMsg: msgInvalidStatus},
		{name: "empty status", in: TaskInput{Title: Some("x"), Status: Some("")}, wantMsg: msgInvalidStatus},
		{name: "bad due date", in: TaskInput{Title: Some("x"), DueDate: Some("next tuesday")}, wantMsg: msgInvalidDueDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newTestService(t)
			_, err := svc.Create(context.Background(), tt.in)
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
			if err.Error() != tt.wantMsg {
				t.Errorf("expected message %q, got %q", tt.wantMsg, err.Error())
			}
			if store.Len() != 0 {
				t.Errorf("expected empty store, got %d tasks", store.Len())
			}
		})
	}
}

func TestCreate_EmptyDueDateIsAbsent(t *testing.T) {
	svc, _ := newTestService(t)
	got := mustCreate(t, svc, TaskInput{Title: Some("x"), DueDate: Some("")})
	if got.DueDate != nil {
		t.Fatalf("expected nil due date, got %v", got.DueDate)
	}
}

func TestUpdate_DescriptionOnly(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	orig := mustCreate(t, svc, TaskInput{
		Title:   Some("A"),
		Status:  Some("process"),
		Tags:    Some(TagList{"x"}),
		DueDate: Some("2099-01-01"),
	})

	got, err := svc.Update(ctx, orig.ID, TaskInput{Description: Some("more detail")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Description != "more detail" {
		t.Errorf("description not replaced: %q", got.Description)
	}
	if got.ID != orig.ID || got.Title != orig.Title || got.Status != orig.Status ||
		len(got.Tags) != 1 || got.Tags[0] != "x" || !got.DueDate.Equal(*orig.DueDate) ||
		!got.CreatedAt.Equal(orig.CreatedAt) {
		t.Fatalf("unrelated fields changed: before=%+v after=%+v", orig, got)
	}
	if !got.UpdatedAt.After(orig.UpdatedAt) {
		t.Errorf("expected updatedAt to increase: %v -> %v", orig.UpdatedAt, got.UpdatedAt)
	}
}

// Title and status use truthy semantics: they cannot be cleared by update.
func TestUpdate_CannotClearTitleOrStatus(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	orig := mustCreate(t, svc, TaskInput{Title: Some("keep me"), Status: Some("done")})

	got, err := svc.Update(ctx, orig.ID, TaskInput{Title: Some(""), Status: Some("")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Title != "keep me" {
		t.Errorf("expected title unchanged, got %q", got.Title)
	}
	if got.Status != StatusDone {
		t.Errorf("expected status unchanged, got %q", got.Status)
	}

	got, err = svc.Update(ctx, orig.ID, TaskInput{Title: Null[string](), Status: Null[string]()})
	if err != nil {
		t.Fatalf("update with nulls: %v", err)
	}
	if got.Title != "keep me" || got.Status != StatusDone {
		t.Errorf("null title/status should be ignored, got %+v", got)
	}
}

// Description, tags and dueDate use defined semantics: explicit empty values replace.
func TestUpdate_DefinedFieldsCanBeCleared(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	orig := mustCreate(t, svc, TaskInput{
		Title:       Some("A"),
		Description: Some("desc"),
		Tags:        Some(TagList{"a", "b"}),
		DueDate:     Some("2099-01-01T10:00:00Z"),
	})

	got, err := svc.Update(ctx, orig.ID, TaskInput{
		Description: Some(""),
		Tags:        Null[TagList](),
		DueDate:     Null[string](),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Description != "" {
		t.Errorf("expected description cleared, got %q", got.Description)
	}
	if got.Tags == nil || len(got.Tags) != 0 {
		t.Errorf("expected empty tags, got %#v", got.Tags)
	}
	if got.DueDate != nil {
		t.Errorf("expected due date cleared, got %v", got.DueDate)
	}
}

func TestUpdate_Errors(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	orig := mustCreate(t, svc, TaskInput{Title: Some("A")})

	if _, err := svc.Update(ctx, "missing", TaskInput{Title: Some("B")}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.Update(ctx, orig.ID, TaskInput{Status: Some("later")}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for status, got %v", err)
	}
	if _, err := svc.Update(ctx, orig.ID, TaskInput{Title: Some("B"), DueDate: Some("2024-13-45")}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for dueDate, got %v", err)
	}

	got, err := svc.Get(ctx, orig.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "A" || !got.UpdatedAt.Equal(orig.UpdatedAt) {
		t.Fatalf("rejected update changed the task: %+v", got)
	}
	if store.Len() != 1 {
		t.Fatalf("expected 1 task, got %d", store.Len())
	}
}

func TestPatchStatus(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	orig := mustCreate(t, svc, TaskInput{Title: Some("A")})

	got, err := svc.PatchStatus(ctx, orig.ID, Some("done"))
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	if got.Status != StatusDone {
		t.Errorf("expected done, got %q", got.Status)
	}
	if !got.UpdatedAt.After(orig.UpdatedAt) {
		t.Errorf("expected updatedAt to increase")
	}
}

func TestPatchStatus_Errors(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	orig := mustCreate(t, svc, TaskInput{Title: Some("A")})

	tests := []struct {
		name    string
		id      string
		status  Optional[string]
		wantErr error
		wantMsg string
	}{
		{name: "missing", id: orig.ID, status: Optional[string]{}, wantErr: ErrInvalidInput, wantMsg: msgStatusRequired},
		{name: "empty", id: orig.ID, status: Some(""), wantErr: ErrInvalidInput, wantMsg: msgStatusRequired},
		{name: "unknown value", id: orig.ID, status: Some("archived"), wantErr: ErrInvalidInput, wantMsg: msgInvalidStatus},
		{name: "unknown id", id: "nope", status: Some("done"), wantErr: ErrNotFound, wantMsg: ErrNotFound.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.PatchStatus(ctx, tt.id, tt.status)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if err.Error() != tt.wantMsg {
				t.Errorf("expected message %q, got %q", tt.wantMsg, err.Error())
			}
		})
	}

	got, err := svc.Get(ctx, orig.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusToDo || !got.UpdatedAt.Equal(orig.UpdatedAt) {
		t.Fatalf("rejected patch changed the task: %+v", got)
	}
}

func TestDelete(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	a := mustCreate(t, svc, TaskInput{Title: Some("A")})
	b := mustCreate(t, svc, TaskInput{Title: Some("B")})

	if _, err := svc.Delete(ctx, "unknown"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if store.Len() != 2 {
		t.Fatalf("expected 2 tasks after failed delete, got %d", store.Len())
	}

	removed, err := svc.Delete(ctx, a.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if removed.ID != a.ID || removed.Title != "A" {
		t.Errorf("expected removed task echoed, got %+v", removed)
	}

	list, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != b.ID {
		t.Fatalf("unexpected remaining tasks: %+v", list)
	}
}

func TestListByStatus(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	mustCreate(t, svc, TaskInput{Title: Some("1"), Status: Some("done")})
	mustCreate(t, svc, TaskInput{Title: Some("2")})
	mustCreate(t, svc, TaskInput{Title: Some("3"), Status: Some("done")})

	got, err := svc.ListByStatus(ctx, StatusDone)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].Title != "1" || got[1].Title != "3" {
		t.Fatalf("unexpected result: %+v", got)
	}

	if _, err := svc.ListByStatus(ctx, Status("nope")); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestListByTag(t *testing.T) {
	due := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	seed := []Task{
		{ID: "1", Title: "tagged", Status: StatusToDo, Tags: []string{"home", "urgent"}},
		{ID: "2", Title: "untagged", Status: StatusToDo},
		{ID: "3", Title: "other", Status: StatusToDo, Tags: []string{"Home"}, DueDate: &due},
	}
	svc, _ := newTestService(t, seed...)

	got, err := svc.ListByTag(context.Background(), "home")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].ID != "1" {
		t.Fatalf("expected only task 1, got %+v", got)
	}
}

func TestListOverdue(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	seed := []Task{
		{ID: "past", Title: "p", Status: StatusToDo, DueDate: &past},
		{ID: "past-done", Title: "pd", Status: StatusDone, DueDate: &past},
		{ID: "future", Title: "f", Status: StatusProcess, DueDate: &future},
		{ID: "none", Title: "n", Status: StatusToDo},
	}
	svc, _ := newTestService(t, seed...)

	got, err := svc.ListOverdue(context.Background(), now)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].ID != "past" {
		t.Fatalf("expected only the past undone task, got %+v", got)
	}
}

func TestListDueToday(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*60*60)
	now := time.Date(2025, 6, 15, 15, 30, 0, 0, loc)
	lastSecond := time.Date(2025, 6, 15, 23, 59, 59, 0, loc)
	midnight := time.Date(2025, 6, 15, 0, 0, 0, 0, loc)
	tomorrow := time.Date(2025, 6, 16, 0, 0, 0, 0, loc)
	yesterday := time.Date(2025, 6, 14, 23, 59, 59, 0, loc)
	seed := []Task{
		{ID: "last-second", Title: "a", Status: StatusToDo, DueDate: &lastSecond},
		{ID: "midnight", Title: "b", Status: StatusDone, DueDate: &midnight},
		{ID: "tomorrow", Title: "c", Status: StatusToDo, DueDate: &tomorrow},
		{ID: "yesterday", Title: "d", Status: StatusToDo, DueDate: &yesterday},
		{ID: "none", Title: "e", Status: StatusToDo},
	}
	svc, _ := newTestService(t, seed...)

	got, err := svc.ListDueToday(context.Background(), now)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].ID != "last-second" || got[1].ID != "midnight" {
		t.Fatalf("unexpected result: %+v", got)
	}
}

type failingStore struct{ err error }

func (s failingStore) Load(context.Context) (Collection, error) { return nil, s.err }
func (s failingStore) Save(context.Context, Collection) error   { return s.err }

func TestService_PropagatesStoreErrors(t *testing.T) {
	boom := errors.New("disk on fire")
	svc := NewService(failingStore{err: boom})
	ctx := context.Background()

	if _, err := svc.List(ctx); !errors.Is(err, boom) {
		t.Fatalf("list: expected store error, got %v", err)
	}
	if _, err := svc.Create(ctx, TaskInput{Title: Some("x")}); !errors.Is(err, boom) {
		t.Fatalf("create: expected store error, got %v", err)
	}
	// validation runs before the store is touched
	if _, err := svc.Create(ctx, TaskInput{}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("create: expected ErrInvalidInput, got %v", err)
	}
}

func TestService_SerializedWritesKeepEveryCreate(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, WithSerializedWrites(true))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := svc.Create(ctx, TaskInput{Title: Some(fmt.Sprintf("t%d", i))}); err != nil {
				t.Errorf("create: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if store.Len() != 25 {
		t.Fatalf("expected 25 tasks, got %d", store.Len())
	}
}
