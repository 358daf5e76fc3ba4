package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"live-quiz-service/internal/domain"
)

const namespace = "quiz"

// Metrics implements app.Recorder on a dedicated Prometheus registry.
type Metrics struct {
	registry *prometheus.Registry

	roomsCreated    prometheus.Counter
	playersJoined   prometheus.Counter
	questionsAsked  *prometheus.CounterVec
	answers         prometheus.Counter
	gradings        *prometheus.CounterVec
	eventsPublished *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		roomsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rooms_created_total",
			Help:      "Rooms created.",
		}),
		playersJoined: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "players_joined_total",
			Help:      "Players that joined a room.",
		}),
		questionsAsked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "questions_asked_total",
			Help:      "Questions asked, by question type.",
		}, []string{"type"}),
		answers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_submitted_total",
			Help:      "Answers submitted by players.",
		}),
		gradings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gradings_total",
			Help:      "Grading attempts, by outcome.",
		}, []string{"outcome"}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Room events published, by event and result.",
		}, []string{"event", "result"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.roomsCreated,
		m.playersJoined,
		m.questionsAsked,
		m.answers,
		m.gradings,
		m.eventsPublished,
		m.requestDuration,
	)
	return m
}

func (m *Metrics) RoomCreated()     { m.roomsCreated.Inc() }
func (m *Metrics) PlayerJoined()    { m.playersJoined.Inc() }
func (m *Metrics) AnswerSubmitted() { m.answers.Inc() }

func (m *Metrics) QuestionAsked(kind domain.QuestionType) {
	m.questionsAsked.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) QuestionGraded(outcome string) {
	m.gradings.WithLabelValues(outcome).Inc()
}

func (m *Metrics) EventPublished(event string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.eventsPublished.WithLabelValues(event, result).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware observes request latency labelled with the matched chi route
// pattern, so ids in the path do not explode cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requestDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}
