package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// LogBuffer keeps the most recent log lines in a fixed ring so /api/logs
// can replay them. It is an io.Writer, meant to tee the standard logger.
type LogBuffer struct {
	mu      sync.Mutex
	lines   []string // ring storage, len(lines) == capacity
	next    int      // slot the next complete line lands in
	count   int      // filled slots, up to capacity
	partial []byte   // bytes since the last newline
	dropped uint64   // lines overwritten so far
}

func NewLogBuffer(maxLines int) *LogBuffer {
	if maxLines <= 0 {
		maxLines = 2000
	}
	return &LogBuffer{lines: make([]string, maxLines)}
}

// Write implements io.Writer. Only complete lines enter the ring; bytes
// after the last newline wait for the rest of their line.
func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rest := p
	for {
		i := bytes.IndexByte(rest, '\n')
		if i < 0 {
			b.partial = append(b.partial, rest...)
			break
		}
		line := string(b.partial) + string(rest[:i])
		b.partial = b.partial[:0]
		rest = rest[i+1:]

		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		if b.count == len(b.lines) {
			b.dropped++
		} else {
			b.count++
		}
		b.lines[b.next] = line
		b.next = (b.next + 1) % len(b.lines)
	}
	return len(p), nil
}

// Snapshot copies out the newest tail lines, oldest first.
func (b *LogBuffer) Snapshot(tail int) (lines []string, dropped uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	dropped = b.dropped
	if tail <= 0 || tail > b.count {
		tail = b.count
	}
	lines = make([]string, 0, tail)
	start := b.next - tail
	if start < 0 {
		start += len(b.lines)
	}
	for i := 0; i < tail; i++ {
		lines = append(lines, b.lines[(start+i)%len(b.lines)])
	}
	return lines, dropped
}

type LogsResponse struct {
	NowUTC  string   `json:"now_utc"`
	Dropped uint64   `json:"dropped"`
	Lines   []string `json:"lines"`
}

func (b *LogBuffer) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		tail := 200
		if s := strings.TrimSpace(r.URL.Query().Get("tail")); s != "" {
			v, err := strconv.Atoi(s)
			if err != nil || v < 1 || v > 5000 {
				http.Error(w, "tail must be an integer in [1,5000]", http.StatusBadRequest)
				return
			}
			tail = v
		}

		lines, dropped := b.Snapshot(tail)

		if strings.EqualFold(r.URL.Query().Get("format"), "text") {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Header().Set("Cache-Control", "no-store")
			if dropped > 0 {
				_, _ = fmt.Fprintf(w, "[dropped=%d]\n", dropped)
			}
			for _, line := range lines {
				_, _ = fmt.Fprintln(w, line)
			}
			return
		}

		resp := LogsResponse{
			NowUTC:  time.Now().UTC().Format(time.RFC3339Nano),
			Dropped: dropped,
			Lines:   lines,
		}
		bts, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			http.Error(w, "marshal failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write(bts)
		_, _ = w.Write([]byte("\n"))
	})
}
