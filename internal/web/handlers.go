package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/elys-network/flywheel/internal/flywheel"
	"github.com/elys-network/flywheel/internal/types"

	"github.com/gagliardetto/solana-go"
)

const maxBodyBytes = 64 << 10

type initializeRequest struct {
	Admin              solana.PublicKey  `json:"admin"`
	TokenMint          *solana.PublicKey `json:"tokenMint,omitempty"`
	FeeVault           *solana.PublicKey `json:"feeVault,omitempty"`
	TreasuryWallet     *solana.PublicKey `json:"treasuryWallet,omitempty"`
	BuybackBps         uint16            `json:"buybackBps"`
	BurnBps            uint16            `json:"burnBps"`
	LpAddBps           *uint16           `json:"lpAddBps,omitempty"`
	MinIntervalSeconds int64             `json:"minIntervalSeconds"`
	EpochStart         *int64            `json:"epochStart,omitempty"`
	EpochEnd           *int64            `json:"epochEnd,omitempty"`
}

type updateConfigRequest struct {
	Caller solana.PublicKey `json:"caller"`
	types.UpdateParams
}

type depositRequest struct {
	Depositor solana.PublicKey `json:"depositor"`
	Amount    json.Number      `json:"amount"`
}

type executeRequest struct {
	Executor solana.PublicKey `json:"executor"`
}

type withdrawRequest struct {
	Caller    solana.PublicKey `json:"caller"`
	Recipient solana.PublicKey `json:"recipient"`
}

// handleHealth reports store reachability, engine phase and event cache age
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	storeHealthy := true
	if err := ws.service.Ping(r.Context()); err != nil {
		ws.logger.Warn().Err(err).Msg("Store ping failed")
		storeHealthy = false
	}

	overallStatus := "OK"
	statusCode := http.StatusOK
	if !storeHealthy {
		overallStatus = "DEGRADED"
		statusCode = http.StatusServiceUnavailable
	}

	response := map[string]interface{}{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"sys_bytes":        memStats.Sys,
			"gc_cycles":        memStats.NumGC,
		},
		"component": map[string]interface{}{
			"name":    "flywheel",
			"version": "1.0.0",
		},
		"flywheel_status": map[string]interface{}{
			"store_healthy":     storeHealthy,
			"phase":             ws.service.Phase().String(),
			"event_cache_age_s": ws.events.Age().Seconds(),
		},
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// handleGetConfig returns the flywheel config and the current vault balance
func (ws *WebServer) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, balance, err := ws.service.Config(r.Context())
	if err != nil {
		ws.writeDomainError(w, err)
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"config":          cfg,
		"vaultBalance":    balance,
		"nextExecutionAt": flywheel.NextExecutionAt(*cfg),
	})
}

// handleGetEvents returns recent events, newest first
func (ws *WebServer) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	limit := defaultEventLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > ws.maxLimit {
		limit = ws.maxLimit
	}

	events, cached := ws.events.List(limit)
	if events == nil {
		events = []types.Event{}
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
		"limit":  limit,
		"cached": cached,
	})
}

// handleInitialize creates the flywheel config
func (ws *WebServer) handleInitialize(w http.ResponseWriter, r *http.Request) {
	var req initializeRequest
	if !ws.decodeBody(w, r, &req) {
		return
	}

	params := types.InitParams{
		Admin:              req.Admin,
		TokenMint:          ws.defaults.TokenMint,
		FeeVault:           ws.defaults.FeeVault,
		TreasuryWallet:     req.TreasuryWallet,
		BuybackBps:         req.BuybackBps,
		BurnBps:            req.BurnBps,
		LpAddBps:           req.LpAddBps,
		MinIntervalSeconds: req.MinIntervalSeconds,
		EpochStart:         ws.defaults.EpochStart,
		EpochEnd:           ws.defaults.EpochEnd,
	}
	if req.TokenMint != nil {
		params.TokenMint = *req.TokenMint
	}
	if req.FeeVault != nil {
		params.FeeVault = *req.FeeVault
	}
	if req.EpochStart != nil {
		params.EpochStart = *req.EpochStart
	}
	if req.EpochEnd != nil {
		params.EpochEnd = *req.EpochEnd
	}

	cfg, err := ws.service.Initialize(r.Context(), params)
	if err != nil {
		ws.writeDomainError(w, err)
		return
	}
	ws.events.Invalidate()

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"config":  cfg,
	})
}

// handleUpdateConfig applies an admin update
func (ws *WebServer) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req updateConfigRequest
	if !ws.decodeBody(w, r, &req) {
		return
	}
	if req.Caller.IsZero() {
		ws.writeErrorResponse(w, http.StatusUnauthorized, "missing_caller", "caller is required")
		return
	}

	cfg, err := ws.service.UpdateConfig(r.Context(), req.Caller, req.UpdateParams)
	if err != nil {
		ws.writeDomainError(w, err)
		return
	}
	ws.events.Invalidate()

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"config":  cfg,
	})
}

// handleDeposit credits fees to the vault
func (ws *WebServer) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if !ws.decodeBody(w, r, &req) {
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		ws.writeDomainError(w, err)
		return
	}

	receipt, err := ws.service.Deposit(r.Context(), req.Depositor, amount)
	if err != nil {
		ws.writeDomainError(w, err)
		return
	}
	ws.events.Invalidate()

	ws.writeJSONResponse(w, http.StatusOK, struct {
		Success bool `json:"success"`
		*types.DepositReceipt
	}{true, receipt})
}

// handleExecute runs one flywheel cycle
func (ws *WebServer) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if !ws.decodeBody(w, r, &req) {
		return
	}

	result, err := ws.service.Execute(r.Context(), req.Executor)
	if err != nil {
		ws.writeDomainError(w, err)
		return
	}
	ws.events.Invalidate()

	ws.writeJSONResponse(w, http.StatusOK, struct {
		Success bool `json:"success"`
		*types.ExecutionResult
	}{true, result})
}

// handleWithdraw drains the vault to a recipient
func (ws *WebServer) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if !ws.decodeBody(w, r, &req) {
		return
	}
	if req.Caller.IsZero() {
		ws.writeErrorResponse(w, http.StatusUnauthorized, "missing_caller", "caller is required")
		return
	}

	receipt, err := ws.service.EmergencyWithdraw(r.Context(), req.Caller, req.Recipient)
	if err != nil {
		ws.writeDomainError(w, err)
		return
	}
	ws.events.Invalidate()

	ws.writeJSONResponse(w, http.StatusOK, struct {
		Success bool `json:"success"`
		*types.WithdrawReceipt
	}{true, receipt})
}

func (ws *WebServer) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	ws.writeErrorResponse(w, http.StatusMethodNotAllowed, "method_not_allowed",
		fmt.Sprintf("method %s not allowed on %s", r.Method, r.URL.Path))
}

func (ws *WebServer) handleNotFound(w http.ResponseWriter, r *http.Request) {
	ws.writeErrorResponse(w, http.StatusNotFound, "route_not_found", "no route for "+r.URL.Path)
}

// decodeBody reads a JSON request body into dst, writing a 400 on failure
func (ws *WebServer) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "invalid_request", "invalid request body: "+err.Error())
		return false
	}
	return true
}

// parseAmount accepts a JSON integer; negative, fractional and out-of-range values are invalid amounts.
func parseAmount(n json.Number) (uint64, error) {
	s := strings.TrimSpace(n.String())
	if s == "" {
		return 0, fmt.Errorf("%w: amount is required", flywheel.ErrInvalidAmount)
	}
	amount, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", flywheel.ErrInvalidAmount, s)
	}
	return amount, nil
}

// statusFor maps a domain error to its HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, flywheel.ErrInvalidBpsSum),
		errors.Is(err, flywheel.ErrInvalidEpoch),
		errors.Is(err, flywheel.ErrInvalidAmount),
		errors.Is(err, flywheel.ErrInvalidIdentity),
		errors.Is(err, flywheel.ErrInsufficientInterval),
		errors.Is(err, flywheel.ErrNothingToExecute),
		errors.Is(err, flywheel.ErrMathOverflow):
		return http.StatusBadRequest
	case errors.Is(err, flywheel.ErrUnauthorized),
		errors.Is(err, flywheel.ErrOutsideEpoch):
		return http.StatusForbidden
	case errors.Is(err, flywheel.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, flywheel.ErrAlreadyInitialized):
		return http.StatusConflict
	case errors.Is(err, flywheel.ErrExecutionAborted):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeDomainError writes a flywheel error with its mapped status. Internal errors are not echoed.
func (ws *WebServer) writeDomainError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	code := flywheel.Code(err)
	message := err.Error()
	var abortErr *flywheel.ExecutionAbortedError
	switch {
	case status == http.StatusInternalServerError:
		ws.logger.Error().Err(err).Msg("Request failed")
		message = "internal error"
	case errors.As(err, &abortErr):
		ws.logger.Error().Err(err).Str("stage", abortErr.Stage).Msg("Distribution failed")
		message = "execution aborted during " + abortErr.Stage
	}
	ws.writeErrorResponse(w, status, code, message)
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		ws.logger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, code, message string) {
	response := map[string]interface{}{
		"error":     message,
		"code":      code,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}
