package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/susu3304/debitbot/internal/engine"
	"github.com/susu3304/debitbot/internal/expr"
	"github.com/susu3304/debitbot/internal/ledger"
)

const (
	defaultLogLimit = 50
	maxLogLimit     = 500
)

type balanceJSON struct {
	Name    string `json:"name"`
	Balance string `json:"balance"`
}

type stateJSON struct {
	ChatID   string        `json:"chat_id"`
	Title    string        `json:"title"`
	Balances []balanceJSON `json:"balances"`
	Sum      string        `json:"sum"`
	Text     string        `json:"text"`
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if a.health != nil {
		if err := a.health(r.Context()); err != nil {
			a.log.Warn("health check failed",
				zap.String("request_id", requestID(r)),
				zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleUserGuilds(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())

	guilds, err := a.discord.Guilds(r.Context(), claims.AccessToken)
	if err != nil {
		writeError(w, http.StatusBadGateway, "failed to get guilds")
		return
	}
	if guilds == nil {
		guilds = []DiscordGuild{}
	}
	writeJSON(w, http.StatusOK, guilds)
}

func (a *API) handleState(w http.ResponseWriter, r *http.Request) {
	chat := chatFrom(r.Context())

	state, err := a.engine.State(r.Context(), chat.ID)
	if err != nil {
		a.internalError(w, r, "load state", err)
		return
	}

	out := stateJSON{
		ChatID:   chat.ID,
		Title:    chat.Title,
		Balances: []balanceJSON{},
		Sum:      state.Sum().StringFixed(2),
		Text:     state.Render(),
	}
	for _, e := range state.Entries() {
		out.Balances = append(out.Balances, balanceJSON{Name: e.Name, Balance: e.Balance.StringFixed(2)})
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleGroups(w http.ResponseWriter, r *http.Request) {
	chat := chatFrom(r.Context())

	groups, err := a.engine.Groups(r.Context(), chat.ID)
	if err != nil {
		a.internalError(w, r, "load groups", err)
		return
	}
	writeJSON(w, http.StatusOK, groups.List())
}

func (a *API) handleLogs(w http.ResponseWriter, r *http.Request) {
	chat := chatFrom(r.Context())

	limit := defaultLogLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxLogLimit)
	}

	logs, err := a.engine.Logs(r.Context(), chat.ID, limit)
	if err != nil {
		a.internalError(w, r, "load logs", err)
		return
	}
	if logs == nil {
		logs = []ledger.LogEntry{}
	}
	writeJSON(w, http.StatusOK, logs)
}

func (a *API) handleStat(w http.ResponseWriter, r *http.Request) {
	chat := chatFrom(r.Context())
	name := mux.Vars(r)["name"]

	text, err := a.engine.Stat(r.Context(), chat.ID, name)
	if errors.Is(err, ledger.ErrInvalidArguments) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		a.internalError(w, r, "stat", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"name": name, "text": text})
}

// handleCommand runs one ledger command on behalf of the signed-in user.
func (a *API) handleCommand(w http.ResponseWriter, r *http.Request) {
	chat := chatFrom(r.Context())
	claims := claimsFrom(r.Context())

	var req struct {
		Command string `json:"command"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	code, args := expr.ParseCommand(strings.TrimSpace(req.Command))
	if code == "" {
		writeError(w, http.StatusBadRequest, "empty command")
		return
	}

	reply, err := a.engine.Execute(r.Context(), engine.Request{
		ChatID:   chat.ID,
		SenderID: claims.UserID,
		Code:     code,
		Args:     args,
	})
	var le *ledger.Error
	if errors.As(err, &le) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error": le.Error(),
			"kind":  le.Kind.String(),
		})
		return
	}
	if err != nil {
		a.internalError(w, r, "execute", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}
