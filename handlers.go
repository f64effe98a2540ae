package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/payrail/x402/internal/gateway"
	"github.com/payrail/x402/internal/resource"
)

type handlers struct {
	config  Config
	gateway *gateway.Service
	guard   *gateway.Guard
	pricing map[string]float64
}

// handleIndex describes the service and how to pay for it.
func (h *handlers) handleIndex(w http.ResponseWriter, r *http.Request) {
	endpoints := make([]string, 0, len(h.pricing))
	for name := range h.pricing {
		endpoints = append(endpoints, name)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"name":                "x402 Paid APIs",
		"version":             "1.0.0",
		"protocol":            "x402",
		"available_endpoints": endpoints,
		"pricing":             h.pricing,
		"instructions": map[string]string{
			"1": "Make a request to any paid endpoint without token",
			"2": "Receive 402 Payment Required with challenge_id",
			"3": "Submit payment using /payment endpoint",
			"4": "Use returned access_token for API calls",
		},
	})
}

// handlePayment settles a challenge against a payment credential.
func (h *handlers) handlePayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChallengeID  string `json:"challenge_id"`
		PaymentToken string `json:"payment_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "expected JSON payload", http.StatusBadRequest)
		return
	}

	tok, err := h.gateway.Settle(r.Context(), req.ChallengeID, req.PaymentToken)
	if err != nil {
		rejectedCounter.Inc()
		log.Printf("settlement rejected: challenge_id=%v err=%v", req.ChallengeID, err)
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	settledCounter.Inc()
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"access_token": tok.Token,
		"expires_at":   tok.ExpiresAt,
		"resource":     tok.Resource,
	})
}

// requirePayment runs the authorization gate for a resource. When the
// guard demands payment it writes the 402 response and returns false.
func (h *handlers) requirePayment(w http.ResponseWriter, r *http.Request, res string) bool {
	decision := h.guard.Authorize(res, h.cost(res), gateway.Credentials{
		Token:   r.Header.Get("X-Access-Token"),
		Payment: r.Header.Get("X-PAYMENT"),
	})
	if decision.Proceed {
		return true
	}

	challengeCounter.Inc()
	ch := decision.Challenge
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", fmt.Sprintf("Payment challenge_id=%q, cost=%.2f", ch.ID, ch.Cost))
	w.WriteHeader(http.StatusPaymentRequired)

	jsonb, _ := json.Marshal(ch)
	w.Write(jsonb)
	return false
}

func (h *handlers) cost(res string) float64 {
	return h.pricing[res]
}

func (h *handlers) handleWeather(w http.ResponseWriter, r *http.Request) {
	params := resource.WeatherParams{City: r.URL.Query().Get("city")}
	if err := params.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !h.requirePayment(w, r, params.Resource()) {
		return
	}
	h.serveResource(w, params)
}

func (h *handlers) handleStockData(w http.ResponseWriter, r *http.Request) {
	params := resource.StockParams{Symbol: r.URL.Query().Get("symbol")}
	if err := params.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !h.requirePayment(w, r, params.Resource()) {
		return
	}
	h.serveResource(w, params)
}

func (h *handlers) handleNews(w http.ResponseWriter, r *http.Request) {
	params := resource.NewsParams{Topic: r.URL.Query().Get("topic")}
	if err := params.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !h.requirePayment(w, r, params.Resource()) {
		return
	}
	h.serveResource(w, params)
}

func (h *handlers) handleTranslation(w http.ResponseWriter, r *http.Request) {
	var params resource.TranslationParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		http.Error(w, "expected JSON payload", http.StatusBadRequest)
		return
	}
	if err := params.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !h.requirePayment(w, r, params.Resource()) {
		return
	}
	h.serveResource(w, params)
}

func (h *handlers) handleDataAnalysis(w http.ResponseWriter, r *http.Request) {
	var params resource.AnalysisParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		http.Error(w, "expected JSON payload", http.StatusBadRequest)
		return
	}
	if err := params.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !h.requirePayment(w, r, params.Resource()) {
		return
	}
	h.serveResource(w, params)
}

func (h *handlers) serveResource(w http.ResponseWriter, p resource.Params) {
	body, err := resource.Generate(p)
	if err != nil {
		log.Printf("err: resource.Generate: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	servedCounter.Inc()
	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	jsonb, err := json.Marshal(body)
	if err != nil {
		log.Printf("failed to marshal resp: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(jsonb)
}
