package gateway

import (
	"fmt"
	"net/http"
	"strings"
)

// Stats are the aggregate counts behind the metrics endpoint.
type Stats struct {
	TasksPending   int
	TasksCompleted int
	ActiveUsers    int
	Conversations  int
}

// StatsSource provides the gauge values for /api/metrics.
type StatsSource func() (Stats, error)

// WithStats wires the storage counts into the metrics endpoint.
func WithStats(src StatsSource) Option {
	return func(s *Server) { s.stats = src }
}

// handleMetrics serves Prometheus text exposition format. The endpoint sits
// outside requireUser so scrapers need no identity header.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	var b strings.Builder

	if s.stats != nil {
		st, err := s.stats()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		b.WriteString("# HELP bonsai_tasks_total Number of tasks by completion status.\n")
		b.WriteString("# TYPE bonsai_tasks_total gauge\n")
		fmt.Fprintf(&b, "bonsai_tasks_total{status=\"pending\"} %d\n", st.TasksPending)
		fmt.Fprintf(&b, "bonsai_tasks_total{status=\"completed\"} %d\n", st.TasksCompleted)
		b.WriteString("# HELP bonsai_active_users Number of users with any task or conversation.\n")
		b.WriteString("# TYPE bonsai_active_users gauge\n")
		fmt.Fprintf(&b, "bonsai_active_users %d\n", st.ActiveUsers)
		b.WriteString("# HELP bonsai_conversations_total Number of conversations.\n")
		b.WriteString("# TYPE bonsai_conversations_total gauge\n")
		fmt.Fprintf(&b, "bonsai_conversations_total %d\n", st.Conversations)
	}

	b.WriteString("# HELP bonsai_events_published_total Events accepted by the bus since start.\n")
	b.WriteString("# TYPE bonsai_events_published_total counter\n")
	fmt.Fprintf(&b, "bonsai_events_published_total %d\n", s.bus.Published())

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, b.String())
}
