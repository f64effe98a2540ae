package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRateLimit(t *testing.T) {
	handler := rateLimit(2, 1)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	statuses := []int{}
	for i := 0; i < 4; i++ {
		req := httptest.NewRequest(http.MethodPost, "/payment", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		statuses = append(statuses, rec.Code)
	}

	// Burst of 2 allowed, the rest rejected.
	assert.Equal(t, http.StatusOK, statuses[0])
	assert.Equal(t, http.StatusOK, statuses[1])
	assert.Equal(t, http.StatusTooManyRequests, statuses[2])
	assert.Equal(t, http.StatusTooManyRequests, statuses[3])
}

func TestRateLimitPerIP(t *testing.T) {
	handler := rateLimit(1, 1)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/payment", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("10.0.0.1:1234"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1:1234"))

	// A different client gets its own bucket.
	assert.Equal(t, http.StatusOK, send("10.0.0.2:1234"))
}

func TestClientIP(t *testing.T) {
	var tests = []struct {
		name       string
		remoteAddr string
		xff        string
		expected   string
	}{
		{"host port", "10.0.0.1:1234", "", "10.0.0.1"},
		{"no port", "10.0.0.1", "", "10.0.0.1"},
		{"forwarded", "10.0.0.1:1234", "203.0.113.7", "203.0.113.7"},
		{"forwarded chain", "10.0.0.1:1234", "203.0.113.7, 10.0.0.2", "203.0.113.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			assert.Equal(t, tt.expected, clientIP(req))
		})
	}
}
