// Package handlers provides HTTP handlers for portfolio generation.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aristath/allocator/internal/domain"
	"github.com/rs/zerolog"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// PortfolioGenerator is the service behind the portfolio routes.
type PortfolioGenerator interface {
	Generate(ctx context.Context, req domain.PortfolioRequest) (*domain.PortfolioResponse, error)
	GenerateFromText(ctx context.Context, text string, variant domain.Variant) (*domain.ChatResponse, error)
}

// Handler handles portfolio HTTP requests
type Handler struct {
	service PortfolioGenerator
	log     zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(service PortfolioGenerator, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "portfolio").Logger(),
	}
}

// PortfolioRequestBody is the JSON body of the structured routes.
type PortfolioRequestBody struct {
	Sectors   []string             `json:"sectors"`
	RiskLevel string               `json:"risk_level"`
	Capital   float64              `json:"capital"`
	Exclude   []string             `json:"exclude,omitempty"`
	Bounds    *domain.SectorBounds `json:"bounds,omitempty"`
}

// ChatRequestBody is the JSON body of the chat routes.
type ChatRequestBody struct {
	Message string `json:"message"`
}

// ErrorBody is the error envelope of every route.
type ErrorBody struct {
	Error ErrorPayload `json:"error"`
}

// ErrorPayload describes one failure.
type ErrorPayload struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// HandleGeneratePortfolio handles POST /api/portfolio
func (h *Handler) HandleGeneratePortfolio(w http.ResponseWriter, r *http.Request) {
	h.generate(w, r, domain.VariantIndividual)
}

// HandleGenerateEnterprisePortfolio handles POST /api/portfolio/enterprise
func (h *Handler) HandleGenerateEnterprisePortfolio(w http.ResponseWriter, r *http.Request) {
	h.generate(w, r, domain.VariantEnterprise)
}

// HandleChat handles POST /api/portfolio/chat
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	h.chat(w, r, domain.VariantIndividual)
}

// HandleEnterpriseChat handles POST /api/portfolio/enterprise/chat
func (h *Handler) HandleEnterpriseChat(w http.ResponseWriter, r *http.Request) {
	h.chat(w, r, domain.VariantEnterprise)
}

func (h *Handler) generate(w http.ResponseWriter, r *http.Request, variant domain.Variant) {
	var body PortfolioRequestBody
	if err := h.decode(w, r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}

	risk, err := domain.ParseRiskLevel(body.RiskLevel)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp, err := h.service.Generate(r.Context(), domain.PortfolioRequest{
		Variant:    variant,
		Sectors:    body.Sectors,
		RiskLevel:  risk,
		Capital:    body.Capital,
		Exclusions: body.Exclude,
		Bounds:     body.Bounds,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) chat(w http.ResponseWriter, r *http.Request, variant domain.Variant) {
	var body ChatRequestBody
	if err := h.decode(w, r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}

	resp, err := h.service.GenerateFromText(r.Context(), body.Message, variant)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.NewValidationError(err, "invalid request body: "+err.Error())
	}
	return nil
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := domain.HTTPStatus(err)
	payload := ErrorPayload{Code: "INTERNAL_ERROR", Message: "internal server error"}

	var de *domain.Error
	switch {
	case errors.As(err, &de):
		payload.Code = string(de.Kind)
		payload.Message = de.Message
		payload.Details = de.Details
	case status == http.StatusGatewayTimeout:
		payload.Code = "TIMEOUT"
		payload.Message = "request timed out"
	}

	event := h.log.Debug()
	if status >= http.StatusInternalServerError {
		event = h.log.Error()
	}
	event.Err(err).
		Str("path", r.URL.Path).
		Int("status", status).
		Str("code", payload.Code).
		Str("error_message", payload.Message).
		Msg("Request failed")

	h.writeJSON(w, status, ErrorBody{Error: payload})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
