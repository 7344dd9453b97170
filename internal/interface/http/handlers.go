package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/alem-hub/lingua-hub/internal/application/command"
	"github.com/alem-hub/lingua-hub/internal/application/query"
	"github.com/alem-hub/lingua-hub/internal/domain/economy"
	"github.com/alem-hub/lingua-hub/internal/domain/shared"
	"github.com/alem-hub/lingua-hub/pkg/logger"
)

const maxBodyBytes = 64 << 10

// statusClientClosedRequest is the nginx code for a client that went away
// before the response was ready.
const statusClientClosedRequest = 499

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth reports every dependency check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker == nil {
		writeJSON(w, r, http.StatusOK, map[string]any{
			"status":  "healthy",
			"uptime":  s.Uptime().Round(time.Second).String(),
			"version": s.config.Version,
		})
		return
	}

	status := s.deps.HealthChecker.Check(r.Context())
	if !status.Healthy {
		writeJSON(w, r, http.StatusServiceUnavailable, status)
		return
	}
	writeJSON(w, r, http.StatusOK, status)
}

// handleReady handles the readiness probe. A draining server is not ready.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.IsDraining() {
		writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"reason": "shutting down",
		})
		return
	}

	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}

	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// ECONOMY HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type spendHeartsRequest struct {
	Amount int `json:"amount"`
}

type spendHeartsResponse struct {
	Spent    int              `json:"spent"`
	Snapshot economy.Snapshot `json:"snapshot"`
}

type refillHeartsResponse struct {
	Cost     int              `json:"cost"`
	Snapshot economy.Snapshot `json:"snapshot"`
}

type purchaseResponse struct {
	Type     economy.PowerUpType    `json:"type"`
	Cost     int                    `json:"cost"`
	Detail   economy.PurchaseResult `json:"detail"`
	Snapshot economy.Snapshot       `json:"snapshot"`
}

type completeLessonRequest struct {
	XPEarned         int `json:"xpEarned"`
	TimeSpentSeconds int `json:"timeSpentSeconds"`
}

type completeLessonResponse struct {
	QuestRewards economy.QuestRewards     `json:"questRewards"`
	Streak       economy.StreakResult     `json:"streak"`
	Wager        *economy.WagerSettlement `json:"wager"`
	Snapshot     economy.Snapshot         `json:"snapshot"`
}

// handleProvisionEconomy handles POST /api/v1/users/{id}/economy
func (s *Server) handleProvisionEconomy(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.ProvisionEconomy.Handle(r.Context(), command.ProvisionEconomyCommand{
		UserID: r.PathValue("id"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, res.Snapshot)
}

// handleGetEconomy handles GET /api/v1/users/{id}/economy
func (s *Server) handleGetEconomy(w http.ResponseWriter, r *http.Request) {
	snap, err := s.deps.GetEconomySnapshot.Handle(r.Context(), query.GetEconomySnapshotQuery{
		UserID: r.PathValue("id"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, snap)
}

// handleSpendHearts handles POST /api/v1/users/{id}/hearts/spend
func (s *Server) handleSpendHearts(w http.ResponseWriter, r *http.Request) {
	var req spendHeartsRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	res, err := s.deps.SpendHearts.Handle(r.Context(), command.SpendHeartsCommand{
		UserID: r.PathValue("id"),
		Amount: req.Amount,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, spendHeartsResponse{Spent: res.Spent, Snapshot: res.Snapshot})
}

// handleRefillHearts handles POST /api/v1/users/{id}/hearts/refill
func (s *Server) handleRefillHearts(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.RefillHearts.Handle(r.Context(), command.RefillHeartsCommand{
		UserID: r.PathValue("id"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, refillHeartsResponse{Cost: res.Cost, Snapshot: res.Snapshot})
}

// handlePurchasePowerUp handles POST /api/v1/users/{id}/powerups/{type}
func (s *Server) handlePurchasePowerUp(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.PurchasePowerUp.Handle(r.Context(), command.PurchasePowerUpCommand{
		UserID: r.PathValue("id"),
		Type:   r.PathValue("type"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, purchaseResponse{
		Type:     res.Purchase.Type,
		Cost:     res.Purchase.Cost,
		Detail:   res.Purchase,
		Snapshot: res.Snapshot,
	})
}

// handleCompleteLesson handles POST /api/v1/users/{id}/lessons/complete
func (s *Server) handleCompleteLesson(w http.ResponseWriter, r *http.Request) {
	var req completeLessonRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	res, err := s.deps.RecordLesson.Handle(r.Context(), command.RecordLessonCommand{
		UserID:           r.PathValue("id"),
		XPEarned:         req.XPEarned,
		TimeSpentSeconds: req.TimeSpentSeconds,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, completeLessonResponse{
		QuestRewards: res.QuestRewards,
		Streak:       res.Streak,
		Wager:        res.Wager,
		Snapshot:     res.Snapshot,
	})
}

// handleGetQuests handles GET /api/v1/users/{id}/quests
func (s *Server) handleGetQuests(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.GetDailyQuests.Handle(r.Context(), query.GetDailyQuestsQuery{
		UserID: r.PathValue("id"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// handleGetCatalog handles GET /api/v1/catalog
func (s *Server) handleGetCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.deps.GetCatalog.Handle())
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST / ERROR HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// decodeBody decodes a JSON body into dst. An empty body leaves dst zeroed.
// On failure it writes a 400 (413 for oversized bodies) and returns false.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeJSONError(w, r, http.StatusRequestEntityTooLarge, "request_too_large",
			fmt.Sprintf("Request body must not exceed %d bytes", tooLarge.Limit))
		return false
	}

	writeJSONError(w, r, http.StatusBadRequest, "invalid_request", "Request body must be valid JSON")
	return false
}

// writeError maps a domain error to its HTTP status and writes it.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	log := logger.FromContext(r.Context())

	switch kind := shared.ErrorKind(err); {
	case kind == "internal":
		log.Error("request failed", logger.Err(err), logger.String("path", r.URL.Path))
	case kind == "canceled":
		log.Debug("request canceled by client", logger.String("path", r.URL.Path))
	case status >= http.StatusInternalServerError:
		log.Warn("request not served", logger.Err(err), logger.StatusCode(status))
	default:
		log.Debug("request rejected", logger.Err(err), logger.StatusCode(status))
	}

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}

	writeJSONError(w, r, status, errorCode(err), errorMessage(err))
}

// errorStatus maps an error kind to an HTTP status.
func errorStatus(err error) int {
	switch shared.ErrorKind(err) {
	case "validation":
		return http.StatusBadRequest
	case "not_found":
		return http.StatusNotFound
	case "insufficient_funds", "no_hearts_remaining":
		return http.StatusUnprocessableEntity
	case "feature_unavailable":
		return http.StatusForbidden
	case "concurrent_modification", "conflict":
		return http.StatusConflict
	case "lock_not_acquired", "timeout":
		return http.StatusServiceUnavailable
	case "canceled":
		return statusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

// errorCode returns the machine-readable code for the response body. State
// conflicts get their specific kind rather than the generic "conflict".
func errorCode(err error) string {
	switch {
	case errors.Is(err, shared.ErrAlreadyFull):
		return "already_full"
	case errors.Is(err, shared.ErrUnlimitedActive):
		return "unlimited_active"
	case errors.Is(err, shared.ErrAlreadyActive):
		return "already_active"
	case errors.Is(err, shared.ErrAlreadyUsed):
		return "already_used"
	case errors.Is(err, shared.ErrAlreadyExists):
		return "already_exists"
	}
	return shared.ErrorKind(err)
}

// errorMessage returns a client-safe message. Internal details stay in logs.
func errorMessage(err error) string {
	switch shared.ErrorKind(err) {
	case "internal":
		return "An unexpected error occurred"
	case "canceled":
		return "Request was canceled"
	case "timeout":
		return "Request timed out, please retry"
	}

	var de *shared.DomainError
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return err.Error()
}
