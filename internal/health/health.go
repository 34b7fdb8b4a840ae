// Package health serves the admin liveness and readiness endpoints.
//
// GET /healthz answers 200 while the process can serve HTTP. GET /readyz
// answers 200 only while the dictionary accepts inserts and the line
// listener is accepting; otherwise 503 with the failing check named:
//
//	{"status":"not_ready","checks":[
//	  {"name":"dictionary","ok":false,"error":"dictionary: writes suspended"},
//	  {"name":"listener","ok":true,"detail":"accepting"}]}
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// checkTimeout bounds each readiness check.
const checkTimeout = 2 * time.Second

// ErrNotAccepting is reported by [Listener] while the accept loop is not
// running.
var ErrNotAccepting = errors.New("not accepting connections")

// Check is one readiness condition. Run returns a short detail for the
// report, or an error when the condition fails.
type Check struct {
	Name string
	Run  func(ctx context.Context) (detail string, err error)
}

// Dictionary is the view of *dictionary.Store the readiness check needs.
type Dictionary interface {
	Ping(ctx context.Context) error
	Len() int
}

// DictionaryCheck passes while d is loaded and its inserts are not
// suspended. The detail is the current word count.
func DictionaryCheck(d Dictionary) Check {
	return Check{
		Name: "dictionary",
		Run: func(ctx context.Context) (string, error) {
			if d == nil {
				return "", errors.New("not loaded")
			}
			if err := d.Ping(ctx); err != nil {
				return "", err
			}
			return fmt.Sprintf("%d words", d.Len()), nil
		},
	}
}

// ListenerCheck passes while accepting reports true.
func ListenerCheck(name string, accepting func() bool) Check {
	return Check{
		Name: name,
		Run: func(context.Context) (string, error) {
			if !accepting() {
				return "", ErrNotAccepting
			}
			return "accepting", nil
		},
	}
}

// Result is the outcome of one [Check] in a readiness report.
type Result struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Report is the JSON body of both endpoints.
type Report struct {
	Status string   `json:"status"`
	Checks []Result `json:"checks,omitempty"`
}

// Report statuses.
const (
	StatusOK       = "ok"
	StatusReady    = "ready"
	StatusNotReady = "not_ready"
)

// Handler serves /healthz and /readyz. The check list is fixed at
// construction.
type Handler struct {
	checks []Check
}

// New returns a Handler reporting checks in the given order.
func New(checks ...Check) *Handler {
	return &Handler{checks: append([]Check(nil), checks...)}
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, Report{Status: StatusOK})
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		rep := h.Ready(r.Context())
		status := http.StatusOK
		if rep.Status != StatusReady {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, rep)
	})
}

// Ready runs all checks concurrently, each under its own timeout, and
// reports them in registration order.
func (h *Handler) Ready(ctx context.Context) Report {
	results := make([]Result, len(h.checks))
	var g errgroup.Group
	for i, c := range h.checks {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()
			detail, err := c.Run(cctx)
			results[i] = Result{Name: c.Name, OK: err == nil, Detail: detail}
			if err != nil {
				results[i].Error = err.Error()
			}
			return nil
		})
	}
	_ = g.Wait()

	rep := Report{Status: StatusReady, Checks: results}
	for _, r := range results {
		if !r.OK {
			rep.Status = StatusNotReady
			break
		}
	}
	return rep
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
