package server_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/Squarts/web/internal/server"
	"github.com/Squarts/web/internal/store"
)

func newApp(t *testing.T) (http.Handler, *store.Store) {
	t.Helper()

	st, err := store.Open(context.Background(), store.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("store.Open err=%v", err)
	}
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return server.New(st, logger).Handler(), st
}

func seed(t *testing.T, st *store.Store, titles ...string) []int64 {
	t.Helper()
	ids := make([]int64, 0, len(titles))
	for _, title := range titles {
		id, err := st.Insert(context.Background(), store.Task{Title: title, Description: title + " notes"})
		if err != nil {
			t.Fatalf("Insert(%q) err=%v", title, err)
		}
		ids = append(ids, id)
	}
	return ids
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
	return rr
}

func postForm(t *testing.T, h http.Handler, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func parse(t *testing.T, rr *httptest.ResponseRecorder) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(rr.Body)
	if err != nil {
		t.Fatalf("parse html err=%v", err)
	}
	return doc
}

func TestIndexListsEveryTask(t *testing.T) {
	h, st := newApp(t)
	ids := seed(t, st, "alpha", "beta", "gamma", "delta")

	// leave a gap so stored ids and display index differ
	if err := st.Delete(context.Background(), ids[1]); err != nil {
		t.Fatalf("Delete err=%v", err)
	}
	want := []int64{ids[0], ids[2], ids[3]}

	for _, path := range []string{"/", "/index.php"} {
		rr := get(t, h, path)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rr.Code)
		}
		if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
			t.Errorf("%s: content type %q", path, ct)
		}

		doc := parse(t, rr)
		if got := doc.Find("title").Text(); got != "Home" {
			t.Errorf("title = %q", got)
		}
		if href, _ := doc.Find("body > a").First().Attr("href"); href != "add.php" {
			t.Errorf("add link = %q", href)
		}

		rows := doc.Find("table tr")
		if rows.Length() != len(want)+1 {
			t.Fatalf("%s: expected %d rows, got %d", path, len(want)+1, rows.Length())
		}
		if rows.First().Find("th").Length() != 6 {
			t.Errorf("header should have 6 columns")
		}

		rows.Slice(1, goquery.ToEnd).Each(func(i int, row *goquery.Selection) {
			cells := row.Find("td")
			if got := strings.TrimSpace(cells.Eq(0).Text()); got != fmt.Sprint(i+1) {
				t.Errorf("row %d index = %q", i, got)
			}
			links := cells.Eq(5).Find("a")
			edit, _ := links.Eq(0).Attr("href")
			del, _ := links.Eq(1).Attr("href")
			if edit != fmt.Sprintf("update.php?id=%d", want[i]) {
				t.Errorf("row %d edit href = %q", i, edit)
			}
			if del != fmt.Sprintf("delete.php?id=%d", want[i]) {
				t.Errorf("row %d delete href = %q", i, del)
			}
			if links.Eq(0).Text() != "Edit" || links.Eq(1).Text() != "Delete" {
				t.Errorf("row %d link text = %q/%q", i, links.Eq(0).Text(), links.Eq(1).Text())
			}
		})
	}
}

func TestIndexRendersColumns(t *testing.T) {
	h, st := newApp(t)
	due := store.NewDeadline(time.Date(2024, 3, 1, 17, 30, 0, 0, time.UTC))
	if _, err := st.Insert(context.Background(), store.Task{
		Title: "<b>Essay</b>", Description: "chapter 2", Deadline: due, Complete: true,
	}); err != nil {
		t.Fatalf("Insert err=%v", err)
	}

	rr := get(t, h, "/")
	if strings.Contains(rr.Body.String(), "<b>Essay</b>") {
		t.Error("title should be escaped")
	}
	cells := parse(t, rr).Find("table tr").Eq(1).Find("td")
	got := []string{}
	for i := 1; i <= 4; i++ {
		got = append(got, strings.TrimSpace(cells.Eq(i).Text()))
	}
	if strings.Join(got, "|") != "<b>Essay</b>|chapter 2|2024-03-01 17:30:00|1" {
		t.Errorf("cells = %q", got)
	}
}

func TestIndexEmpty(t *testing.T) {
	h, _ := newApp(t)
	rr := get(t, h, "/")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if n := parse(t, rr).Find("table tr").Length(); n != 1 {
		t.Errorf("expected header row only, got %d rows", n)
	}
}

func TestIndexStoreFailure(t *testing.T) {
	h, st := newApp(t)
	st.Close()
	if rr := get(t, h, "/"); rr.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rr.Code)
	}
}

func TestAddTask(t *testing.T) {
	h, st := newApp(t)

	if rr := get(t, h, "/add.php"); rr.Code != http.StatusOK {
		t.Fatalf("add form: expected 200, got %d", rr.Code)
	}

	rr := postForm(t, h, "/add.php", url.Values{
		"title":       {"Essay"},
		"description": {"intro"},
		"deadline":    {"2024-03-01T17:30"},
		"complete":    {"1"},
	})
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rr.Code)
	}
	if loc := rr.Header().Get("Location"); !strings.HasSuffix(loc, "index.php") {
		t.Errorf("redirect to %q", loc)
	}

	tasks, err := st.All(context.Background())
	if err != nil {
		t.Fatalf("All err=%v", err)
	}
	if len(tasks) != 1 || tasks[0].Title != "Essay" || !tasks[0].Complete {
		t.Errorf("unexpected tasks %+v", tasks)
	}
}

func TestAddTaskInvalid(t *testing.T) {
	h, st := newApp(t)
	rr := postForm(t, h, "/add.php", url.Values{"title": {""}})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	tasks, _ := st.All(context.Background())
	if len(tasks) != 0 {
		t.Errorf("nothing should be stored, got %d", len(tasks))
	}
}

func TestAddTaskTitleTooLong(t *testing.T) {
	h, st := newApp(t)
	rr := postForm(t, h, "/add.php", url.Values{"title": {strings.Repeat("x", 101)}})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	tasks, _ := st.All(context.Background())
	if len(tasks) != 0 {
		t.Errorf("nothing should be stored, got %d", len(tasks))
	}
}

func TestUpdateTask(t *testing.T) {
	h, st := newApp(t)
	ids := seed(t, st, "draft")
	target := fmt.Sprintf("/update.php?id=%d", ids[0])

	rr := get(t, h, target)
	if rr.Code != http.StatusOK {
		t.Fatalf("edit form: expected 200, got %d", rr.Code)
	}
	if v, _ := parse(t, rr).Find(`input[name="title"]`).Attr("value"); v != "draft" {
		t.Errorf("prefilled title = %q", v)
	}

	rr = postForm(t, h, target, url.Values{"title": {"final"}, "complete": {"on"}})
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rr.Code)
	}
	got, err := st.Get(context.Background(), ids[0])
	if err != nil {
		t.Fatalf("Get err=%v", err)
	}
	if got.Title != "final" || !got.Complete {
		t.Errorf("update not applied: %+v", got)
	}
}

func TestDeleteTask(t *testing.T) {
	h, st := newApp(t)
	ids := seed(t, st, "one", "two")

	rr := get(t, h, fmt.Sprintf("/delete.php?id=%d", ids[0]))
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rr.Code)
	}
	tasks, _ := st.All(context.Background())
	if len(tasks) != 1 || tasks[0].ID != ids[1] {
		t.Errorf("unexpected tasks %+v", tasks)
	}
}

func TestTaskIDErrors(t *testing.T) {
	h, _ := newApp(t)
	cases := []struct {
		target string
		code   int
	}{
		{"/update.php", http.StatusBadRequest},
		{"/update.php?id=abc", http.StatusBadRequest},
		{"/update.php?id=99", http.StatusNotFound},
		{"/delete.php?id=99", http.StatusNotFound},
	}
	for _, c := range cases {
		if rr := get(t, h, c.target); rr.Code != c.code {
			t.Errorf("%s: expected %d, got %d", c.target, c.code, rr.Code)
		}
	}
	if rr := postForm(t, h, "/update.php?id=99", url.Values{"title": {"x"}}); rr.Code != http.StatusNotFound {
		t.Errorf("post missing task: expected 404, got %d", rr.Code)
	}
}

func TestExport(t *testing.T) {
	h, st := newApp(t)
	seed(t, st, "one")

	rr := get(t, h, "/export?format=csv")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("content type %q", ct)
	}
	if !strings.Contains(rr.Body.String(), "one notes") {
		t.Errorf("csv missing task: %q", rr.Body.String())
	}

	if rr := get(t, h, "/export?format=xml"); rr.Code != http.StatusBadRequest {
		t.Errorf("unknown format: expected 400, got %d", rr.Code)
	}
}

func TestHealth(t *testing.T) {
	h, _ := newApp(t)
	rr := get(t, h, "/health")
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Errorf("health = %d %q", rr.Code, rr.Body.String())
	}
}
