// Package task turns submitted add/update forms into store operations.
package task

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Squarts/web/internal/store"
)

// ErrInvalid marks errors caused by the submitted form rather than storage.
var ErrInvalid = errors.New("invalid task")

var ErrTitleRequired = fmt.Errorf("%w: title is required", ErrInvalid)

// MaxTitleLen matches the VARCHAR(100) title column.
const MaxTitleLen = 100

var ErrTitleTooLong = fmt.Errorf("%w: title is longer than %d characters", ErrInvalid, MaxTitleLen)

// formLayouts are the shapes browsers submit for date and datetime-local inputs.
var formLayouts = []string{"2006-01-02T15:04", "2006-01-02T15:04:05", "2006-01-02"}

type Manager struct {
	st *store.Store
}

func NewManager(st *store.Store) *Manager { return &Manager{st: st} }

func (m *Manager) List(ctx context.Context) ([]store.Task, error) { return m.st.All(ctx) }

func (m *Manager) Get(ctx context.Context, id int64) (store.Task, error) { return m.st.Get(ctx, id) }

func (m *Manager) Create(ctx context.Context, form url.Values) (int64, error) {
	t, err := FromForm(form)
	if err != nil {
		return 0, err
	}
	return m.st.Insert(ctx, t)
}

func (m *Manager) Update(ctx context.Context, id int64, form url.Values) error {
	t, err := FromForm(form)
	if err != nil {
		return err
	}
	t.ID = id
	return m.st.Update(ctx, t)
}

func (m *Manager) Delete(ctx context.Context, id int64) error { return m.st.Delete(ctx, id) }

// FromForm reads title, description, deadline and complete fields.
func FromForm(form url.Values) (store.Task, error) {
	t := store.Task{
		Title:       strings.TrimSpace(form.Get("title")),
		Description: form.Get("description"),
	}
	if t.Title == "" {
		return store.Task{}, ErrTitleRequired
	}
	if utf8.RuneCountInString(t.Title) > MaxTitleLen {
		return store.Task{}, ErrTitleTooLong
	}
	if raw := strings.TrimSpace(form.Get("deadline")); raw != "" {
		d, err := parseDeadline(raw)
		if err != nil {
			return store.Task{}, err
		}
		t.Deadline = d
	}
	switch form.Get("complete") {
	case "1", "on", "true":
		t.Complete = true
	}
	return t, nil
}

func parseDeadline(raw string) (store.Deadline, error) {
	for _, layout := range formLayouts {
		if v, err := time.Parse(layout, raw); err == nil {
			return store.NewDeadline(v), nil
		}
	}
	return store.Deadline{}, fmt.Errorf("%w: deadline %q", ErrInvalid, raw)
}

// FormValue renders a deadline for a datetime-local input.
func FormValue(d store.Deadline) string {
	if !d.Valid {
		return ""
	}
	return d.Time.Format("2006-01-02T15:04:05")
}
