// mock-backends serves canned Loki and Prometheus responses on the paths the
// debug server proxies through Grafana, for local development without a
// cluster. Point GRAFANA_URL at it.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"
)

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/loki/api/v1/query_range", func(w http.ResponseWriter, r *http.Request) {
		now := time.Now()
		writeJSON(w, map[string]any{
			"status": "success",
			"data": map[string]any{
				"resultType": "streams",
				"result": []map[string]any{
					{
						"stream": map[string]string{
							"namespace": "payments",
							"pod":       "api-7c9d6b-x2vk4",
							"container": "api",
						},
						"values": [][2]string{
							{nanos(now.Add(-4 * time.Minute)), "GET /charge 200 41ms"},
							{nanos(now.Add(-3 * time.Minute)), "ERROR charge declined: upstream timeout"},
							{nanos(now.Add(-2 * time.Minute)), "GET /charge 200 38ms"},
						},
					},
				},
			},
		})
	})

	mux.HandleFunc("/loki/api/v1/labels", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{
			"status": "success",
			"data":   []string{"namespace", "pod", "container"},
		})
	})

	mux.HandleFunc("/api/v1/query_range", func(w http.ResponseWriter, r *http.Request) {
		now := time.Now()
		writeJSON(w, map[string]any{
			"status": "success",
			"data": map[string]any{
				"resultType": "matrix",
				"result": []map[string]any{
					{
						"metric": map[string]string{
							"namespace": "payments",
							"pod":       "api-7c9d6b-x2vk4",
							"container": "api",
						},
						"values": [][2]any{
							sample(now.Add(-4*time.Minute), 0.12),
							sample(now.Add(-3*time.Minute), 0.87),
							sample(now.Add(-2*time.Minute), 0.15),
						},
					},
				},
			},
		})
	})

	mux.HandleFunc("/api/v1/query", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{
			"status": "success",
			"data": map[string]any{
				"resultType": "vector",
				"result":     []any{},
			},
		})
	})

	logger := log.New(log.Writer(), "mock-backends ", log.LstdFlags|log.Lmicroseconds)
	srv := &http.Server{
		Addr:    ":3000",
		Handler: logRequests(logger, mux),
	}

	logger.Println("listening on :3000")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server error: %v", err)
	}
}

func nanos(t time.Time) string {
	return strconv.FormatInt(t.UnixNano(), 10)
}

func sample(t time.Time, v float64) [2]any {
	return [2]any{t.Unix(), fmt.Sprintf("%g", v)}
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
