package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vndocker/pos-AI-community/id"
	"github.com/vndocker/pos-AI-community/workflow"
)

// ListRunsRequest holds the query of GET /v1/runs.
type ListRunsRequest struct {
	State  string `form:"state" binding:"omitempty,oneof=running completed failed"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=500"`
	Offset int    `form:"offset" binding:"omitempty,min=0"`
}

// RunView is a run as reported by the API. Inputs and outputs are left
// out: they hold email addresses, bot tokens and codes.
type RunView struct {
	ID          string     `json:"id"`
	Key         string     `json:"key"`
	Name        string     `json:"name"`
	Version     int        `json:"version"`
	State       string     `json:"state"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func newRunView(r *workflow.Run) RunView {
	return RunView{
		ID:          r.ID.String(),
		Key:         r.Key,
		Name:        r.Name,
		Version:     r.Version,
		State:       string(r.State),
		Error:       r.Error,
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
		CreatedAt:   r.CreatedAt,
	}
}

// defaultLimit caps unbounded listings.
func defaultLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	return limit
}

func (a *API) listRuns(c *gin.Context) {
	var req ListRunsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		abortWithBindError(c, err)
		return
	}

	runs, err := a.runner.Store().ListRuns(c.Request.Context(), workflow.ListOpts{
		Limit:  defaultLimit(req.Limit),
		Offset: req.Offset,
		State:  workflow.RunState(req.State),
	})
	if err != nil {
		a.abortWithError(c, err)
		return
	}
	views := make([]RunView, len(runs))
	for i, r := range runs {
		views[i] = newRunView(r)
	}
	c.JSON(http.StatusOK, views)
}

func (a *API) getRun(c *gin.Context) {
	runID, ok := parseRunID(c)
	if !ok {
		return
	}
	run, err := a.runner.Store().GetRun(c.Request.Context(), runID)
	if err != nil {
		a.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newRunView(run))
}

func (a *API) getTimeline(c *gin.Context) {
	runID, ok := parseRunID(c)
	if !ok {
		return
	}
	if _, err := a.runner.Store().GetRun(c.Request.Context(), runID); err != nil {
		a.abortWithError(c, err)
		return
	}
	entries, err := a.runner.GetTimeline(c.Request.Context(), runID)
	if err != nil {
		a.abortWithError(c, err)
		return
	}
	if entries == nil {
		entries = []workflow.TimelineEntry{}
	}
	c.JSON(http.StatusOK, entries)
}

func parseRunID(c *gin.Context) (id.RunID, bool) {
	runID, err := id.ParseRunID(c.Param("runId"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Detail: "invalid run ID: " + err.Error()})
		return id.Nil, false
	}
	return runID, true
}
