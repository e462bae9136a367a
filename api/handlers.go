package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"sprint-api/board"
	"sprint-api/domain"
)

const maxBodySize = 64 * 1024

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, store BoardStore, cat Catalog, logger *log.Logger) {
	if store == nil || cat == nil {
		panic("api.Register: store and catalog are required")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}

	e.GET("/api/board", getBoard(store, logger))
	e.POST("/api/board/columns", boardMutation(store, logger, "/api/board/columns", addColumn))
	e.PATCH("/api/board/columns/:columnId", boardMutation(store, logger, "/api/board/columns/:columnId", renameColumn))
	e.DELETE("/api/board/columns/:columnId", boardMutation(store, logger, "/api/board/columns/:columnId", deleteColumn))
	e.POST("/api/board/columns/:columnId/move", boardMutation(store, logger, "/api/board/columns/:columnId/move", moveColumn))
	e.POST("/api/board/columns/:columnId/cards", boardMutation(store, logger, "/api/board/columns/:columnId/cards", addCard))
	e.PATCH("/api/board/columns/:columnId/cards/:cardId", boardMutation(store, logger, "/api/board/columns/:columnId/cards/:cardId", updateCard))
	e.DELETE("/api/board/columns/:columnId/cards/:cardId", boardMutation(store, logger, "/api/board/columns/:columnId/cards/:cardId", deleteCard))
	e.POST("/api/board/columns/:columnId/cards/:cardId/reorder", boardMutation(store, logger, "/api/board/columns/:columnId/cards/:cardId/reorder", reorderCard))
	e.POST("/api/board/columns/:columnId/cards/:cardId/move", boardMutation(store, logger, "/api/board/columns/:columnId/cards/:cardId/move", moveCard))

	e.GET("/api/sprint", getSprint(store, cat, logger))
	e.GET("/api/members", getMembers(cat, logger))
	e.GET("/api/backlog", getBacklog(cat, logger))
	e.GET("/healthz", healthz())
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

// startRequest opens the request span and moves the request onto its context.
func startRequest(c echo.Context, logger *log.Logger, event, route string) (*requestMetrics, context.Context) {
	metrics, ctx := newRequestMetrics(c.Request().Context(), logger, event, route)
	c.SetRequest(c.Request().WithContext(ctx))
	return metrics, ctx
}

func encodeJSON(c echo.Context, metrics *requestMetrics, v any) error {
	start := time.Now()
	err := c.JSON(http.StatusOK, v)
	metrics.ObserveEncode(time.Since(start))
	if err != nil {
		metrics.SetErrorStage("encode_response")
	}
	return err
}

func getBoard(store BoardStore, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics, _ := startRequest(c, logger, boardEventName, "/api/board")
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		snap := store.Snapshot()
		metrics.SetBoard(snap.Board, snap.Revision, false)
		return encodeJSON(c, metrics, boardResponse{Columns: snap.Board, Revision: snap.Revision})
	}
}

var errInvalidBody = errors.New("invalid body")

type mutation func(ctx context.Context, c echo.Context, store BoardStore) (board.Result, error)

// boardMutation runs fn against the store. Errors from fn are request errors
// and answer 400. No-op mutations still answer 200 with the unchanged board.
func boardMutation(store BoardStore, logger *log.Logger, route string, fn mutation) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics, ctx := startRequest(c, logger, boardEventName, route)
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		applyStart := time.Now()
		res, fnErr := fn(ctx, c, store)
		metrics.ObserveApply(time.Since(applyStart))
		if fnErr != nil {
			metrics.SetErrorStage("invalid_body")
			metrics.SetError(fnErr)
			return c.String(http.StatusBadRequest, fnErr.Error())
		}

		metrics.SetBoard(res.Board, res.Revision, res.Changed)
		return encodeJSON(c, metrics, boardResponse{Columns: res.Board, Revision: res.Revision, Changed: res.Changed})
	}
}

// decodeBody reads a size limited JSON body into v, rejecting unknown fields.
func decodeBody(c echo.Context, v any) error {
	lr := io.LimitReader(c.Request().Body, maxBodySize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errInvalidBody
	}
	return nil
}

func requireField(name, value string) error {
	if value == "" {
		return fmt.Errorf("%s is required", name)
	}
	return nil
}

func addColumn(ctx context.Context, c echo.Context, store BoardStore) (board.Result, error) {
	var req columnTitleRequest
	if err := decodeBody(c, &req); err != nil {
		return board.Result{}, err
	}
	return store.AddColumn(ctx, req.Title), nil
}

func renameColumn(ctx context.Context, c echo.Context, store BoardStore) (board.Result, error) {
	var req columnTitleRequest
	if err := decodeBody(c, &req); err != nil {
		return board.Result{}, err
	}
	return store.RenameColumn(ctx, c.Param("columnId"), req.Title), nil
}

func deleteColumn(ctx context.Context, c echo.Context, store BoardStore) (board.Result, error) {
	return store.DeleteColumn(ctx, c.Param("columnId")), nil
}

func moveColumn(ctx context.Context, c echo.Context, store BoardStore) (board.Result, error) {
	var req moveColumnRequest
	if err := decodeBody(c, &req); err != nil {
		return board.Result{}, err
	}
	if err := requireField("targetColumnId", req.TargetColumnID); err != nil {
		return board.Result{}, err
	}
	return store.MoveColumn(ctx, c.Param("columnId"), req.TargetColumnID), nil
}

func addCard(ctx context.Context, c echo.Context, store BoardStore) (board.Result, error) {
	var in domain.CardInput
	if err := decodeBody(c, &in); err != nil {
		return board.Result{}, err
	}
	return store.AddCard(ctx, c.Param("columnId"), in), nil
}

func updateCard(ctx context.Context, c echo.Context, store BoardStore) (board.Result, error) {
	var patch domain.CardPatch
	if err := decodeBody(c, &patch); err != nil {
		return board.Result{}, err
	}
	return store.UpdateCard(ctx, c.Param("columnId"), c.Param("cardId"), patch), nil
}

func deleteCard(ctx context.Context, c echo.Context, store BoardStore) (board.Result, error) {
	return store.DeleteCard(ctx, c.Param("columnId"), c.Param("cardId")), nil
}

func reorderCard(ctx context.Context, c echo.Context, store BoardStore) (board.Result, error) {
	var req reorderCardRequest
	if err := decodeBody(c, &req); err != nil {
		return board.Result{}, err
	}
	if err := requireField("targetCardId", req.TargetCardID); err != nil {
		return board.Result{}, err
	}
	return store.MoveCardWithin(ctx, c.Param("columnId"), c.Param("cardId"), req.TargetCardID), nil
}

func moveCard(ctx context.Context, c echo.Context, store BoardStore) (board.Result, error) {
	var req moveCardRequest
	if err := decodeBody(c, &req); err != nil {
		return board.Result{}, err
	}
	if err := requireField("toColumnId", req.ToColumnID); err != nil {
		return board.Result{}, err
	}
	return store.MoveCard(ctx, c.Param("columnId"), req.ToColumnID, c.Param("cardId")), nil
}

// getSprint loads the sprint header, board and members concurrently.
func getSprint(store BoardStore, cat Catalog, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics, ctx := startRequest(c, logger, catalogEventName, "/api/sprint")
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		var resp sprintResponse
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			stats, err := cat.SprintStats(gctx)
			resp.Stats = stats
			return err
		})
		g.Go(func() error {
			members, err := cat.Members(gctx)
			resp.Members = members
			return err
		})
		g.Go(func() error {
			snap := store.Snapshot()
			resp.Columns, resp.Revision = snap.Board, snap.Revision
			return nil
		})

		fetchStart := time.Now()
		fetchErr := g.Wait()
		metrics.ObserveApply(time.Since(fetchStart))
		if fetchErr != nil {
			metrics.SetErrorStage("catalog")
			metrics.SetError(fetchErr)
			c.Logger().Error(fetchErr)
			return c.String(http.StatusInternalServerError, fetchErr.Error())
		}
		metrics.SetBoard(resp.Columns, resp.Revision, false)
		return encodeJSON(c, metrics, resp)
	}
}

func getMembers(cat Catalog, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics, ctx := startRequest(c, logger, catalogEventName, "/api/members")
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		members, fetchErr := cat.Members(ctx)
		if fetchErr != nil {
			metrics.SetErrorStage("catalog")
			metrics.SetError(fetchErr)
			c.Logger().Error(fetchErr)
			return c.String(http.StatusInternalServerError, fetchErr.Error())
		}
		metrics.SetItemsReturned(len(members))
		return encodeJSON(c, metrics, members)
	}
}

// getBacklog answers the stories matching the q, priority and state query
// parameters. Stats always cover the whole backlog.
func getBacklog(cat Catalog, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics, ctx := startRequest(c, logger, catalogEventName, "/api/backlog")
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		var (
			stories    []domain.Story
			priorities []string
			states     []string
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			stories, err = cat.Stories(gctx)
			return err
		})
		g.Go(func() (err error) {
			priorities, err = cat.Priorities(gctx)
			return err
		})
		g.Go(func() (err error) {
			states, err = cat.States(gctx)
			return err
		})
		if fetchErr := g.Wait(); fetchErr != nil {
			metrics.SetErrorStage("catalog")
			metrics.SetError(fetchErr)
			c.Logger().Error(fetchErr)
			return c.String(http.StatusInternalServerError, fetchErr.Error())
		}

		filtered := domain.FilterStories(stories, domain.StoryFilter{
			Query:    c.QueryParam("q"),
			Priority: c.QueryParam("priority"),
			State:    c.QueryParam("state"),
		})
		metrics.SetItemsReturned(len(filtered))
		return encodeJSON(c, metrics, backlogResponse{
			Stories:    filtered,
			Stats:      domain.SummarizeBacklog(stories),
			Priorities: priorities,
			States:     states,
		})
	}
}
