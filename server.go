package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"i4.energy/across/loragw/modem"
)

// Device is the subset of *modem.Modem the gateway drives
type Device interface {
	Identity() modem.Identity
	ProvisionKey(ctx context.Context, keyType modem.KeyType, value string) (modem.KeyResult, error)
	SetADR(ctx context.Context, enabled bool) error
	ADR() bool
	SendPayload(ctx context.Context, payload string) (bool, error)
}

var _ Device = (*modem.Modem)(nil)

// Server handles incoming HTTP requests for interacting with the
// configured modem instance
type Server struct {
	Logger   *slog.Logger
	Device   Device
	Metrics  *Metrics
	Gatherer prometheus.Gatherer
}

// ServeHTTP implements the http.Handler interface for the Server struct
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /identity", s.handleIdentity)
	mux.HandleFunc("PUT /keys/{type}", s.handleKey)
	mux.HandleFunc("GET /adr", s.handleGetADR)
	mux.HandleFunc("PUT /adr", s.handleADR)
	mux.HandleFunc("POST /uplink", s.handleUplink)
	if s.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
	}
	mux.ServeHTTP(w, r)
}

func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	if message == "" {
		w.WriteHeader(statusCode)
		return
	}

	type ErrorResponse struct {
		Message string `json:"message"`
	}
	s.sendJSON(w, ErrorResponse{Message: message}, statusCode)
}

func (s *Server) sendJSON(w http.ResponseWriter, v any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Error("Failed to encode response", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// handleIdentity returns the identifiers read from the modem at startup
func (s *Server) handleIdentity(w http.ResponseWriter, r *http.Request) {
	type IdentityResponse struct {
		DevAddr string `json:"devAddr"`
		DevEUI  string `json:"devEui"`
		AppEUI  string `json:"appEui"`
	}

	id := s.Device.Identity()
	s.sendJSON(w, IdentityResponse{DevAddr: id.DevAddr, DevEUI: id.DevEUI, AppEUI: id.AppEUI}, http.StatusOK)
}

// handleKey provisions one of NWKSKEY, APPSKEY or APPKEY
func (s *Server) handleKey(w http.ResponseWriter, r *http.Request) {
	keyType, err := modem.ParseKeyType(r.PathValue("type"))
	if err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	type KeyRequest struct {
		Value string `json:"value"`
	}
	type KeyResponse struct {
		Key      string `json:"key"`
		Accepted bool   `json:"accepted"`
		Reason   string `json:"reason,omitempty"`
	}

	var req KeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Value == "" {
		s.sendError(w, "'value' field is required", http.StatusBadRequest)
		return
	}

	result, err := s.Device.ProvisionKey(r.Context(), keyType, req.Value)
	s.Metrics.ObserveKey(result, err)

	resp := KeyResponse{Key: string(keyType), Accepted: result.Accepted, Reason: result.Reason}

	var rejected *modem.KeyRejectedError
	switch {
	case errors.As(err, &rejected):
		s.sendJSON(w, resp, http.StatusUnprocessableEntity)
	case errors.Is(err, modem.ErrEmptyKey):
		s.sendError(w, err.Error(), http.StatusBadRequest)
	case err != nil:
		s.Logger.Error("Failed to provision key", "error", err, "key", keyType)
		s.sendError(w, err.Error(), http.StatusInternalServerError)
	default:
		if !result.Accepted {
			s.Logger.Warn("Modem rejected key", "key", keyType, "reason", result.Reason)
		}
		s.sendJSON(w, resp, http.StatusOK)
	}
}

type ADRBody struct {
	Enabled *bool `json:"enabled"`
}

// handleGetADR reports the adaptive data rate setting last sent to the modem
func (s *Server) handleGetADR(w http.ResponseWriter, r *http.Request) {
	enabled := s.Device.ADR()
	s.sendJSON(w, ADRBody{Enabled: &enabled}, http.StatusOK)
}

// handleADR switches adaptive data rate on or off
func (s *Server) handleADR(w http.ResponseWriter, r *http.Request) {
	var req ADRBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Enabled == nil {
		s.sendError(w, "'enabled' field is required", http.StatusBadRequest)
		return
	}

	if err := s.Device.SetADR(r.Context(), *req.Enabled); err != nil {
		s.Logger.Error("Failed to set ADR", "error", err)
		s.sendError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.Metrics.ObserveADR(*req.Enabled)

	w.WriteHeader(http.StatusNoContent)
}

// handleUplink sends a hex payload and reports whether it was acknowledged
func (s *Server) handleUplink(w http.ResponseWriter, r *http.Request) {
	type UplinkRequest struct {
		Payload string `json:"payload"`
	}
	type UplinkResponse struct {
		Acknowledged bool `json:"acknowledged"`
	}

	var req UplinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validatePayload(req.Payload); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	acked, err := s.Device.SendPayload(r.Context(), req.Payload)
	s.Metrics.ObserveUplink(acked, err)
	if err != nil {
		s.Logger.Error("Failed to send payload", "error", err, "payload", req.Payload)
		s.sendError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.Logger.Info("Payload sent", "payload_length", len(req.Payload)/2, "acknowledged", acked)
	s.sendJSON(w, UplinkResponse{Acknowledged: acked}, http.StatusOK)
}

var errEmptyPayload = errors.New("'payload' field is required")

// validatePayload checks that payload is a non-empty, even-length hex string
func validatePayload(payload string) error {
	if payload == "" {
		return errEmptyPayload
	}
	if _, err := hex.DecodeString(payload); err != nil {
		return errors.New("'payload' must be hex encoded: " + err.Error())
	}
	return nil
}
