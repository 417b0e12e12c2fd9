package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/createathon/challenge-hub/internal/infrastructure/messaging"
	"github.com/createathon/challenge-hub/internal/infrastructure/scheduler"
)

// ══════════════════════════════════════════════════════════════════════════════
// HTTP METRICS
// ══════════════════════════════════════════════════════════════════════════════

type httpMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newHTTPMetrics(reg prometheus.Registerer) (*httpMetrics, error) {
	m := &httpMetrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"path", "method", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path", "method"},
		),
	}
	for _, c := range []prometheus.Collector{m.requests, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// middleware labels by route template so /users/{id} stays one series.
func (m *httpMetrics) middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				path = tpl
			}
		}
		m.requests.WithLabelValues(path, r.Method, strconv.Itoa(rw.statusCode)).Inc()
		m.duration.WithLabelValues(path, r.Method).Observe(time.Since(start).Seconds())
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// REMINDER PIPELINE METRICS
// ══════════════════════════════════════════════════════════════════════════════

// ReminderSources are the reminder pipeline parts to expose. Nil parts are skipped.
type ReminderSources struct {
	Queue      *messaging.ReminderQueue
	Dispatcher *messaging.ReminderDispatcher
	Scheduler  *scheduler.Scheduler
}

// RegisterReminderMetrics exposes queue depth, delivery and job counters
// as collectors read at scrape time.
func RegisterReminderMetrics(reg prometheus.Registerer, src ReminderSources) error {
	var collectors []prometheus.Collector

	if q := src.Queue; q != nil {
		collectors = append(collectors,
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Name: "reminder_queue_depth",
				Help: "Reminder events waiting for delivery",
			}, func() float64 { return float64(q.Len()) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Name: "reminder_queue_capacity",
				Help: "Capacity of the reminder queue",
			}, func() float64 { return float64(q.Cap()) }),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Name: "reminder_queue_published_total",
				Help: "Reminder events accepted by the queue",
			}, func() float64 { return float64(q.Published()) }),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Name: "reminder_queue_dropped_total",
				Help: "Reminder events dropped because the queue was full",
			}, func() float64 { return float64(q.Dropped()) }),
		)
	}

	if d := src.Dispatcher; d != nil {
		collectors = append(collectors,
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Name: "reminder_deliveries_total",
				Help: "Reminders delivered to users",
			}, func() float64 { return float64(d.Metrics().Snapshot().Delivered) }),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Name: "reminder_delivery_failures_total",
				Help: "Reminder deliveries that failed after retries",
			}, func() float64 { return float64(d.Metrics().Snapshot().Failed) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Name: "reminder_dead_letters",
				Help: "Reminders parked in the dead letter queue",
			}, func() float64 { return float64(d.DeadLetterQueue().Size()) }),
		)
	}

	if s := src.Scheduler; s != nil {
		collectors = append(collectors,
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Name: "scheduler_job_runs_total",
				Help: "Scheduled job executions",
			}, func() float64 { return float64(s.Metrics().Snapshot().TotalExecutions) }),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Name: "scheduler_job_failures_total",
				Help: "Scheduled job executions that returned an error",
			}, func() float64 { return float64(s.Metrics().Snapshot().TotalFailures) }),
		)
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
