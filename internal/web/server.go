// Package web serves the read-only status API and a minimal HTML page.
// There is deliberately no way to change fan behavior over HTTP; the
// daemon is configured by file and flags only.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"nvfand/internal/fancontrol"
)

// Handler builds the route table. fan returns the current controller
// snapshot; it must be safe to call at any time, including between
// config reloads.
func Handler(status *Status, fan func() fancontrol.Snapshot, logs *LogBuffer) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var control fancontrol.Snapshot
		if fan != nil {
			control = fan()
		}
		resp := status.Snapshot(time.Now().UTC(), control)
		b, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			http.Error(w, "marshal failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write(b)
		_, _ = w.Write([]byte("\n"))
	})

	if logs != nil {
		mux.Handle("/api/logs", logs.Handler())
	}

	mux.Handle("/api/about", AboutHandler())

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}

		var control fancontrol.Snapshot
		if fan != nil {
			control = fan()
		}
		resp := status.Snapshot(time.Now().UTC(), control)

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = fmt.Fprintf(w, "<!doctype html><html><head><meta charset=\"utf-8\"><title>nvfand</title>")
		_, _ = fmt.Fprintf(w, "<meta http-equiv=\"refresh\" content=\"5\"></head><body>")
		_, _ = fmt.Fprintf(w, "<h1>nvfand</h1>")
		_, _ = fmt.Fprintf(w, "<pre>state=%s\ntemp=%d&#176;C\nduty=%d/255 (%d%%)\nsensor_ok=%v\nwrites_total=%d\nuptime_sec=%d</pre>",
			control.State, control.TempC, control.Duty, control.DutyPercent,
			control.SensorOK, control.WritesTotal, resp.UptimeSec,
		)
		_, _ = fmt.Fprintf(w, "<p><a href=\"/api/status\">/api/status</a> &#183; <a href=\"/api/logs\">/api/logs</a> &#183; <a href=\"/api/about\">/api/about</a></p>")
		_, _ = fmt.Fprintf(w, "</body></html>")
	})

	return mux
}

// Serve runs the HTTP server until ctx is canceled, then shuts it down
// gracefully.
func Serve(ctx context.Context, listenAddr string, status *Status, fan func() fancontrol.Snapshot, logs *LogBuffer) error {
	if status == nil {
		status = NewStatus()
	}

	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           Handler(status, fan, logs),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       30 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MiB
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
