package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"sprint-api/board"
	"sprint-api/catalog"
	"sprint-api/coalesce"
	"sprint-api/domain"
	"sprint-api/storage"
)

func testBoard() domain.Board {
	return domain.Board{
		{ID: "A", Title: "Todo", Cards: []domain.Card{
			{ID: "c1", Title: "one", Tags: []string{}},
			{ID: "c2", Title: "two", Tags: []string{}},
			{ID: "c3", Title: "three", Tags: []string{}},
		}},
		{ID: "B", Title: "Doing", Cards: []domain.Card{{ID: "c4", Title: "four", Tags: []string{}}}},
	}
}

func newTestServer(t *testing.T, cat Catalog) (*echo.Echo, *board.Store) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	static := catalog.NewStatic()
	store := board.New(storage.NewMemory(), board.WithLogger(logger), board.WithMembers(static.Team))
	if _, err := store.Initialize(context.Background(), testBoard()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if cat == nil {
		cat = catalog.NewGuarded(static, coalesce.New())
	}
	e := echo.New()
	Register(e, store, cat, logger)
	return e, store
}

func doRequest(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeBoardResponse(t *testing.T, rec *httptest.ResponseRecorder) boardResponse {
	t.Helper()
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d: %s", rec.Code, rec.Body.String())
	}
	var resp boardResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	return resp
}

func cardIDs(col domain.Column) []string {
	out := make([]string, len(col.Cards))
	for i, c := range col.Cards {
		out[i] = c.ID
	}
	return out
}

func TestGetBoard(t *testing.T) {
	e := echo.New()
	logger, _ := test.NewNullLogger()
	store := board.New(storage.NewMemory(), board.WithLogger(logger))
	if _, err := store.Initialize(context.Background(), testBoard()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/board", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := getBoard(store, log.New())(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	resp := decodeBoardResponse(t, rec)
	if len(resp.Columns) != 2 || resp.Revision != 0 || resp.Changed {
		t.Fatalf("unexpected response: %#v", resp)
	}
	if got := cardIDs(resp.Columns[0]); strings.Join(got, ",") != "c1,c2,c3" {
		t.Fatalf("unexpected cards: %v", got)
	}
}

func TestColumnRoutes(t *testing.T) {
	e, store := newTestServer(t, nil)

	resp := decodeBoardResponse(t, doRequest(e, http.MethodPost, "/api/board/columns", `{"title":"QA"}`))
	if len(resp.Columns) != 3 || !resp.Changed || resp.Revision != 1 {
		t.Fatalf("unexpected add column response: %#v", resp)
	}
	added := resp.Columns[2]
	if added.Title != "QA" || !strings.HasPrefix(added.ID, "col-") || len(added.Cards) != 0 {
		t.Fatalf("unexpected column: %#v", added)
	}

	resp = decodeBoardResponse(t, doRequest(e, http.MethodPatch, "/api/board/columns/"+added.ID, `{"title":"  Review "}`))
	if resp.Columns[2].Title != "Review" {
		t.Fatalf("expected trimmed title, got %q", resp.Columns[2].Title)
	}

	resp = decodeBoardResponse(t, doRequest(e, http.MethodPost, "/api/board/columns/"+added.ID+"/move", `{"targetColumnId":"A"}`))
	if resp.Columns[0].ID != added.ID {
		t.Fatalf("expected moved column first, got %s", resp.Columns[0].ID)
	}

	resp = decodeBoardResponse(t, doRequest(e, http.MethodDelete, "/api/board/columns/"+added.ID, ""))
	if len(resp.Columns) != 2 || resp.Columns[0].ID != "A" {
		t.Fatalf("unexpected columns after delete: %#v", resp.Columns)
	}
	if store.Revision() != 4 {
		t.Fatalf("expected four changes, got %d", store.Revision())
	}
}

func TestCardRoutes(t *testing.T) {
	e, _ := newTestServer(t, nil)

	resp := decodeBoardResponse(t, doRequest(e, http.MethodPost, "/api/board/columns/A/cards/c1/reorder", `{"targetCardId":"c3"}`))
	if got := strings.Join(cardIDs(resp.Columns[0]), ","); got != "c2,c1,c3" {
		t.Fatalf("unexpected order after reorder: %s", got)
	}

	resp = decodeBoardResponse(t, doRequest(e, http.MethodPost, "/api/board/columns/A/cards/c1/move", `{"toColumnId":"B"}`))
	if got := strings.Join(cardIDs(resp.Columns[1]), ","); got != "c1,c4" {
		t.Fatalf("unexpected destination after move: %s", got)
	}

	resp = decodeBoardResponse(t, doRequest(e, http.MethodPost, "/api/board/columns/B/cards", `{"title":"New story","points":3}`))
	card := resp.Columns[1].Cards[0]
	if card.Title != "New story" || !strings.HasPrefix(card.ID, "card-") {
		t.Fatalf("unexpected new card: %#v", card)
	}
	if card.Owner != "JM" || card.Progress != (domain.Progress{Done: 0, Total: domain.DefaultProgressTotal}) {
		t.Fatalf("expected defaults on new card: %#v", card)
	}

	resp = decodeBoardResponse(t, doRequest(e, http.MethodPatch, "/api/board/columns/B/cards/c4", `{"points":8,"owner":"HC"}`))
	updated := resp.Columns[1].Cards[2]
	if updated.ID != "c4" || updated.Points != 8 || updated.Owner != "HC" || updated.Title != "four" {
		t.Fatalf("unexpected updated card: %#v", updated)
	}

	resp = decodeBoardResponse(t, doRequest(e, http.MethodDelete, "/api/board/columns/B/cards/c4", ""))
	if resp.Columns[1].Cards[len(resp.Columns[1].Cards)-1].ID == "c4" {
		t.Fatalf("expected card to be deleted")
	}
}

func TestNoOpMutationAnswersUnchangedBoard(t *testing.T) {
	e, store := newTestServer(t, nil)

	resp := decodeBoardResponse(t, doRequest(e, http.MethodPost, "/api/board/columns/A/cards/missing-id/move", `{"toColumnId":"A"}`))
	if resp.Changed || resp.Revision != 0 {
		t.Fatalf("expected unchanged board, got %#v", resp)
	}
	resp = decodeBoardResponse(t, doRequest(e, http.MethodPost, "/api/board/columns/A/cards/c1/move", `{"toColumnId":"missing"}`))
	if resp.Changed || resp.Columns.CardCount() != 4 {
		t.Fatalf("move to missing column must not drop the card: %#v", resp)
	}
	if store.Revision() != 0 {
		t.Fatalf("no-op mutations advanced revision")
	}
}

func TestNoOpStaysUnchangedUnderConcurrentMutations(t *testing.T) {
	e, store := newTestServer(t, nil)
	ctx := context.Background()

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		titles := []string{"Doing", "In progress"}
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			store.RenameColumn(ctx, "B", titles[i%2])
		}
	}()
	defer func() {
		close(stop)
		wg.Wait()
	}()

	for i := 0; i < 500; i++ {
		// A already sits right before B, so the move never changes the board.
		resp := decodeBoardResponse(t, doRequest(e, http.MethodPost, "/api/board/columns/A/move", `{"targetColumnId":"B"}`))
		if resp.Changed {
			t.Fatalf("request %d: no-op move reported changed at revision %d", i, resp.Revision)
		}
		if got := resp.Columns[0].ID; got != "A" {
			t.Fatalf("request %d: unexpected column order, first=%s", i, got)
		}
	}
}

func TestInvalidBodies(t *testing.T) {
	e, store := newTestServer(t, nil)

	cases := map[string]struct {
		method, target, body string
	}{
		"malformed":      {http.MethodPost, "/api/board/columns", `{"title":`},
		"unknown_field":  {http.MethodPost, "/api/board/columns", `{"name":"x"}`},
		"patch_id":       {http.MethodPatch, "/api/board/columns/A/cards/c1", `{"id":"other"}`},
		"missing_target": {http.MethodPost, "/api/board/columns/A/cards/c1/reorder", `{}`},
		"missing_dest":   {http.MethodPost, "/api/board/columns/A/cards/c1/move", `{"toColumnId":""}`},
		"missing_column": {http.MethodPost, "/api/board/columns/A/move", `{}`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rec := doRequest(e, tc.method, tc.target, tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400 got %d", rec.Code)
			}
		})
	}
	if store.Revision() != 0 {
		t.Fatalf("invalid requests changed the board")
	}
}

func TestGetSprint(t *testing.T) {
	e, _ := newTestServer(t, nil)

	rec := doRequest(e, http.MethodGet, "/api/sprint", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	var resp sprintResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Stats.PointsTotal != 55 || len(resp.Members) != 5 || len(resp.Columns) != 2 {
		t.Fatalf("unexpected sprint response: %#v", resp)
	}
}

func TestGetBacklogFilters(t *testing.T) {
	e, _ := newTestServer(t, nil)

	rec := doRequest(e, http.MethodGet, "/api/backlog?q=CSV", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	var resp backlogResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(resp.Stories) != 1 || resp.Stories[0].ID != "US-003" {
		t.Fatalf("unexpected stories: %#v", resp.Stories)
	}
	if resp.Stats.Total != 3 || resp.Stats.Unestimated != 1 {
		t.Fatalf("stats should cover the whole backlog: %#v", resp.Stats)
	}
	if len(resp.Priorities) != 4 || len(resp.States) != 3 {
		t.Fatalf("unexpected vocabularies: %v %v", resp.Priorities, resp.States)
	}

	rec = doRequest(e, http.MethodGet, "/api/backlog?priority=High&state=all", "")
	resp = backlogResponse{}
	if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(resp.Stories) != 1 || resp.Stories[0].ID != "US-002" {
		t.Fatalf("unexpected priority filter result: %#v", resp.Stories)
	}
}

type failingCatalog struct {
	*catalog.Static
	err error
}

func (f failingCatalog) Members(context.Context) ([]domain.Member, error) {
	return nil, f.err
}

func TestCatalogFailures(t *testing.T) {
	e, _ := newTestServer(t, failingCatalog{Static: catalog.NewStatic(), err: errors.New("directory offline")})

	for _, target := range []string{"/api/members", "/api/sprint"} {
		rec := doRequest(e, http.MethodGet, target, "")
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("%s: expected status 500 got %d", target, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "directory offline") {
			t.Fatalf("%s: unexpected body %q", target, rec.Body.String())
		}
	}

	rec := doRequest(e, http.MethodGet, "/api/backlog", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("backlog does not read members, got %d", rec.Code)
	}
}

func TestGetMembers(t *testing.T) {
	e, _ := newTestServer(t, nil)
	rec := doRequest(e, http.MethodGet, "/api/members", "")
	var members []domain.Member
	if err := sonic.Unmarshal(rec.Body.Bytes(), &members); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(members) != 5 || members[4].Initials != "AM" {
		t.Fatalf("unexpected members: %#v", members)
	}
}

func TestHealthz(t *testing.T) {
	e, _ := newTestServer(t, nil)
	if rec := doRequest(e, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
}
