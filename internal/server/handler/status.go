package handler

import (
	"net/http"

	"github.com/optimizeforall/polymarket-bot/internal/domain"
)

// LoopStatus reports the execution loop state.
type LoopStatus interface {
	Status() domain.BotStatus
}

// RiskStatus reports the risk manager state.
type RiskStatus interface {
	Status() domain.RiskStatus
}

// StatusHandler serves the combined loop and risk snapshot.
type StatusHandler struct {
	loop LoopStatus
	risk RiskStatus
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(loop LoopStatus, risk RiskStatus) *StatusHandler {
	return &StatusHandler{loop: loop, risk: risk}
}

// StatusView is the /api/status body.
type StatusView struct {
	Mode             string            `json:"mode"`
	SessionID        string            `json:"session_id"`
	UptimeSeconds    int64             `json:"uptime_seconds"`
	LastTick         string            `json:"last_tick,omitempty"`
	SignalsGenerated int               `json:"signals_generated"`
	TradesExecuted   int               `json:"trades_executed"`
	Risk             domain.RiskStatus `json:"risk"`
	LastSignal       *SignalView       `json:"last_signal,omitempty"`
}

// Snapshot builds the current StatusView. The WebSocket hub sends it to new
// clients.
func (h *StatusHandler) Snapshot() any {
	st := h.loop.Status()
	view := StatusView{
		Mode:             st.Mode,
		SessionID:        st.SessionID,
		UptimeSeconds:    st.UptimeSeconds,
		SignalsGenerated: st.SignalsGenerated,
		TradesExecuted:   st.TradesExecuted,
		Risk:             h.risk.Status(),
	}
	if !st.LastTick.IsZero() {
		view.LastTick = st.LastTick.UTC().Format(timeLayout)
	}
	if st.LastSignal != nil {
		sv := toSignalView(*st.LastSignal)
		view.LastSignal = &sv
	}
	return view
}

// GetStatus responds with the current snapshot.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Snapshot())
}
