package main

import (
	"encoding/json"
	"log"
	"net/http"
	"time"
)

type issueSummary struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Level     string `json:"level"`
	Count     int    `json:"count"`
	LastSeen  string `json:"last_seen"`
	Permalink string `json:"permalink"`
}

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/api/0/issues/search", func(w http.ResponseWriter, r *http.Request) {
		if !enforcePost(w, r) {
			return
		}
		var req struct {
			Project string `json:"project"`
			Query   string `json:"query"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		writeJSON(w, map[string]any{
			"issues": []issueSummary{
				{
					ID:        "MOCK-101",
					Title:     "ECONNREFUSED connecting to postgres",
					Level:     "error",
					Count:     412,
					LastSeen:  time.Now().Add(-5 * time.Minute).Format(time.RFC3339),
					Permalink: "https://tracker.local/issues/MOCK-101",
				},
				{
					ID:        "MOCK-102",
					Title:     "deadline exceeded calling " + req.Project,
					Level:     "warning",
					Count:     38,
					LastSeen:  time.Now().Add(-40 * time.Minute).Format(time.RFC3339),
					Permalink: "https://tracker.local/issues/MOCK-102",
				},
			},
		})
	})

	mux.HandleFunc("/api/0/issues/get", func(w http.ResponseWriter, r *http.Request) {
		if !enforcePost(w, r) {
			return
		}
		writeJSON(w, map[string]any{
			"title":      "ECONNREFUSED connecting to postgres",
			"culprit":    "pg.Pool.connect",
			"level":      "error",
			"count":      412,
			"user_count": 23,
			"first_seen": time.Now().Add(-72 * time.Hour).Format(time.RFC3339),
			"last_seen":  time.Now().Add(-5 * time.Minute).Format(time.RFC3339),
			"project":    "billing-worker",
			"tags": []map[string]string{
				{"key": "service", "value": "billing-worker"},
				{"key": "environment", "value": "production"},
			},
			"stack_trace": []string{
				"Error: connect ECONNREFUSED 10.0.4.12:5432",
				"    at TCPConnectWrap.afterConnect [as oncomplete] (node:net:1300:16)",
			},
		})
	})

	mux.HandleFunc("/api/0/issues/events", func(w http.ResponseWriter, r *http.Request) {
		if !enforcePost(w, r) {
			return
		}
		stamps := make([]string, 0, 12)
		base := time.Now().Add(-30 * time.Minute)
		for i := 0; i < 12; i++ {
			stamps = append(stamps, base.Add(time.Duration(i)*2*time.Minute).Format(time.RFC3339))
		}
		writeJSON(w, map[string]any{"timestamps": stamps})
	})

	mux.HandleFunc("/api/0/issues/status", func(w http.ResponseWriter, r *http.Request) {
		if !enforcePost(w, r) {
			return
		}
		var req struct {
			IssueID string `json:"issue_id"`
			Status  string `json:"status"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		writeJSON(w, map[string]any{"issue_id": req.IssueID, "status": req.Status})
	})

	logger := log.New(log.Writer(), "tracker-mock ", log.LstdFlags|log.Lmicroseconds)
	srv := &http.Server{
		Addr:    ":9090",
		Handler: logRequests(logger, mux),
	}

	logger.Println("listening on :9090")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server error: %v", err)
	}
}

func enforcePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode error: %v", err)
	}
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Printf("%s %s %d %s", r.Method, r.URL.Path, rw.status, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
