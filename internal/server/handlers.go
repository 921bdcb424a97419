package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/pfrederiksen/troopcal/internal/logger"
	"github.com/pfrederiksen/troopcal/internal/pipeline"
	"github.com/pfrederiksen/troopcal/internal/scheduler"
)

type healthzResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

type statusResponse struct {
	LastRun *pipeline.Report       `json:"last_run"`
	NextRun *time.Time             `json:"next_run,omitempty"`
	Metrics map[string]interface{} `json:"metrics,omitempty"`
}

type messageResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write response", logger.Fields{"error": err.Error()})
	}
}

func calendarHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := os.Open(d.FeedPath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				writeJSON(w, http.StatusServiceUnavailable, messageResponse{Status: "unavailable", Message: "calendar has not been generated yet"})
				return
			}
			logger.Error("Failed to open calendar", logger.Fields{"path": d.FeedPath}, err)
			writeJSON(w, http.StatusInternalServerError, messageResponse{Status: "error"})
			return
		}
		defer f.Close() // nolint:errcheck

		info, err := f.Stat()
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, messageResponse{Status: "error"})
			return
		}

		w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
		http.ServeContent(w, r, "calendar.ics", info.ModTime(), f)
	}
}

func healthzHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthzResponse{
			Status:        "ok",
			UptimeSeconds: time.Since(d.StartTime).Seconds(),
		})
	}
}

func statusHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var resp statusResponse

		if d.History != nil {
			last, err := d.History.LastRun()
			if err != nil {
				logger.Error("Failed to load run history", nil, err)
				writeJSON(w, http.StatusInternalServerError, messageResponse{Status: "error", Message: "run history unavailable"})
				return
			}
			resp.LastRun = last
		}
		if d.Next != nil {
			if next := d.Next(); !next.IsZero() {
				resp.NextRun = &next
			}
		}
		if d.Metrics != nil {
			resp.Metrics = d.Metrics.GetSnapshot()
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func syncHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.Trigger == nil {
			writeJSON(w, http.StatusNotImplemented, messageResponse{Status: "disabled", Message: "manual sync is not enabled"})
			return
		}

		err := d.Trigger.Trigger()
		switch {
		case err == nil:
			logger.Info("Manual sync requested", logger.Fields{"remote_ip": r.RemoteAddr})
			writeJSON(w, http.StatusAccepted, messageResponse{Status: "started"})
		case errors.Is(err, scheduler.ErrBusy):
			writeJSON(w, http.StatusConflict, messageResponse{Status: "busy", Message: err.Error()})
		default:
			logger.Error("Manual sync failed to start", nil, err)
			writeJSON(w, http.StatusInternalServerError, messageResponse{Status: "error", Message: err.Error()})
		}
	}
}
