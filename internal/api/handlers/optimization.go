package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"fpl-optimizer/internal/catalog"
	"fpl-optimizer/internal/config"
	"fpl-optimizer/internal/optimizer"
	"fpl-optimizer/internal/websocket"
	"fpl-optimizer/pkg/cache"
)

// OptimizationHandler serves the squad, lineup and transfer endpoints.
type OptimizationHandler struct {
	engine *optimizer.Engine
	cache  *cache.SolveCache
	hub    *websocket.Hub
	cfg    *config.Config
	logger *logrus.Logger
}

// NewOptimizationHandler creates the handler with its collaborators.
func NewOptimizationHandler(engine *optimizer.Engine, solveCache *cache.SolveCache, hub *websocket.Hub, cfg *config.Config, logger *logrus.Logger) *OptimizationHandler {
	return &OptimizationHandler{
		engine: engine,
		cache:  solveCache,
		hub:    hub,
		cfg:    cfg,
		logger: logger,
	}
}

type solveRequest struct {
	Players            []catalog.RawRecord        `json:"players" binding:"required"`
	IncludeUnavailable bool                       `json:"include_unavailable"`
	BudgetTenths       *int                       `json:"budget_tenths"`
	TeamCap            *int                       `json:"team_cap"`
	HitCost            *float64                   `json:"hit_cost"`
	Formation          *optimizer.FormationRanges `json:"formation"`
	SolveTimeLimitMs   *int                       `json:"solve_time_limit_ms"`
	Team               *optimizer.TeamState       `json:"team"`
}

type solveResponse struct {
	Status         optimizer.Status        `json:"status"`
	Objective      float64                 `json:"objective"`
	Squad          optimizer.Squad         `json:"squad"`
	Lineup         optimizer.Lineup        `json:"lineup"`
	Bench          []catalog.Player        `json:"bench"`
	Captaincy      optimizer.Captaincy     `json:"captaincy"`
	ExtraTransfers int                     `json:"extra_transfers,omitempty"`
	PenaltyPoints  float64                 `json:"penalty_points,omitempty"`
	SolveTimeMs    int64                   `json:"solve_time_ms"`
	Plan           *optimizer.TransferPlan `json:"plan,omitempty"`
}

// rules merges per-request overrides onto the configured rule set.
func (h *OptimizationHandler) rules(req *solveRequest) optimizer.Rules {
	rules := h.cfg.Rules()
	if req.BudgetTenths != nil {
		rules.BudgetTenths = *req.BudgetTenths
	}
	if req.TeamCap != nil {
		rules.TeamCap = *req.TeamCap
	}
	if req.HitCost != nil {
		rules.HitCost = *req.HitCost
	}
	if req.Formation != nil {
		rules.Formation = *req.Formation
	}
	if req.SolveTimeLimitMs != nil {
		rules.SolveTimeLimit = time.Duration(*req.SolveTimeLimitMs) * time.Millisecond
	}
	return rules
}

// OptimizeSquad handles POST /api/v1/optimize: a fresh squad solve.
func (h *OptimizationHandler) OptimizeSquad(c *gin.Context) {
	solveID := uuid.New().String()
	log := h.logger.WithField("solve_id", solveID)

	var req solveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	players, err := catalog.Load(req.Players, catalog.LoadOptions{IncludeUnavailable: req.IncludeUnavailable})
	if err != nil {
		respondError(c, err)
		return
	}
	rules := h.rules(&req)

	fingerprint, err := cache.Fingerprint(players, rules, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.hub.BroadcastSolveEvent(websocket.SolveEvent{SolveID: solveID, Phase: "started"})

	res, err := h.cache.GetOrSolve(c.Request.Context(), fingerprint, func() (*optimizer.Result, error) {
		return h.engine.Solve(c.Request.Context(), players, rules)
	})
	if err != nil {
		h.hub.BroadcastSolveEvent(websocket.SolveEvent{SolveID: solveID, Phase: phaseFor(err)})
		respondError(c, err)
		return
	}

	h.hub.BroadcastSolveEvent(websocket.SolveEvent{
		SolveID:   solveID,
		Phase:     "finished",
		Status:    string(res.Status),
		Objective: res.Objective,
	})
	log.WithFields(logrus.Fields{
		"status":    res.Status,
		"objective": res.Objective,
		"pool_size": len(players),
	}).Info("Optimize request served")

	c.JSON(http.StatusOK, resultResponse(res, nil))
}

// PickLineup handles POST /api/v1/lineup: best XI from a fixed 15.
func (h *OptimizationHandler) PickLineup(c *gin.Context) {
	var req solveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	// The fixed squad must stay intact, so unavailable players are kept.
	players, err := catalog.Load(req.Players, catalog.LoadOptions{IncludeUnavailable: true})
	if err != nil {
		respondError(c, err)
		return
	}

	res, err := h.engine.PickLineup(c.Request.Context(), players, h.rules(&req))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resultResponse(res, nil))
}

// PlanTransfers handles POST /api/v1/transfers/plan.
func (h *OptimizationHandler) PlanTransfers(c *gin.Context) {
	solveID := uuid.New().String()

	var req solveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if req.Team == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "transfer planning requires a team state"})
		return
	}

	players, err := catalog.Load(req.Players, catalog.LoadOptions{IncludeUnavailable: req.IncludeUnavailable})
	if err != nil {
		respondError(c, err)
		return
	}

	h.hub.BroadcastSolveEvent(websocket.SolveEvent{SolveID: solveID, Phase: "started"})

	plan, err := h.engine.PlanTransfers(c.Request.Context(), players, h.rules(&req), req.Team)
	if err != nil {
		h.hub.BroadcastSolveEvent(websocket.SolveEvent{SolveID: solveID, Phase: phaseFor(err)})
		respondError(c, err)
		return
	}

	h.hub.BroadcastSolveEvent(websocket.SolveEvent{SolveID: solveID, Phase: "finished"})

	if plan.StaleSquad {
		c.JSON(http.StatusOK, gin.H{"plan": plan, "warning": "stale_squad"})
		return
	}
	c.JSON(http.StatusOK, resultResponse(plan.Result, plan))
}

func resultResponse(res *optimizer.Result, plan *optimizer.TransferPlan) solveResponse {
	return solveResponse{
		Status:         res.Status,
		Objective:      res.Objective,
		Squad:          res.Squad,
		Lineup:         res.Lineup,
		Bench:          res.Bench,
		Captaincy:      res.Captaincy,
		ExtraTransfers: res.ExtraTransfers,
		PenaltyPoints:  res.PenaltyPoints,
		SolveTimeMs:    res.SolveTime.Milliseconds(),
		Plan:           plan,
	}
}

func phaseFor(err error) string {
	var infeasible *optimizer.InfeasibleError
	if errors.As(err, &infeasible) {
		return "infeasible"
	}
	return "failed"
}

// respondError maps the error taxonomy to HTTP statuses: malformed input is
// the caller's fault, infeasibility is a semantic rejection, anything else
// is internal.
func respondError(c *gin.Context, err error) {
	var validation *catalog.ValidationError
	if errors.As(err, &validation) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     validation.Error(),
			"record_id": validation.RecordID,
		})
		return
	}
	var rules *optimizer.RulesError
	if errors.As(err, &rules) {
		c.JSON(http.StatusBadRequest, gin.H{"error": rules.Error()})
		return
	}
	var infeasible *optimizer.InfeasibleError
	if errors.As(err, &infeasible) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"status": optimizer.StatusInfeasible,
			"family": infeasible.Family,
			"error":  infeasible.Error(),
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
