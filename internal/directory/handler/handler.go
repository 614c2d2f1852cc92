package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	directorymetrics "residents/internal/directory/metrics"
	"residents/internal/directory/models"
	dErrors "residents/pkg/domain-errors"
	"residents/pkg/platform/httputil"
	"residents/pkg/requestcontext"
)

// Service defines the directory operations served over HTTP.
type Service interface {
	AddNewPerson(ctx context.Context, name string, age uint, status models.ResidencyStatus) (*models.Person, error)
	GetResidencyStatus(ctx context.Context, name string) (string, error)
	CountResidents(ctx context.Context) (int, error)
	Residents(ctx context.Context) ([]*models.Person, error)
	Resident(ctx context.Context, name string) (*models.Person, error)
}

// Subscriber hands out live PersonAdded feeds.
type Subscriber interface {
	Subscribe() (<-chan models.PersonAdded, func())
}

// Handler wires directory endpoints to the directory service.
type Handler struct {
	service Service
	events  Subscriber
	logger  *slog.Logger
	metrics *directorymetrics.Metrics
}

// New constructs a directory handler. events may be nil, in which case the
// event stream answers 503.
func New(service Service, events Subscriber, logger *slog.Logger, metrics *directorymetrics.Metrics) *Handler {
	return &Handler{
		service: service,
		events:  events,
		logger:  logger,
		metrics: metrics,
	}
}

// Register mounts the request/response endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/residents", h.HandleAddPerson)
	r.Get("/residents", h.HandleListResidents)
	r.Get("/residents/count", h.HandleCountResidents)
	r.Get("/residents/status", h.HandleResidencyStatus)
	r.Get("/residents/record", h.HandleGetResident)
}

// RegisterStream mounts the long-lived event stream. It is kept apart from
// Register so request timeouts do not cut the stream.
func (h *Handler) RegisterStream(r chi.Router) {
	r.Get("/residents/events", h.HandleEvents)
}

// HandleAddPerson handles POST /residents.
func (h *Handler) HandleAddPerson(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[models.AddPersonRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	person, err := h.service.AddNewPerson(ctx, *req.Name, *req.Age, *req.ResidencyStatus)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to add resident",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "resident added",
		"request_id", requestID,
		"residency_status", person.ResidencyStatus.String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, models.ToResponse(person))
}

// HandleListResidents handles GET /residents.
func (h *Handler) HandleListResidents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	people, err := h.service.Residents(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list residents",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	resp := models.ListResponse{Residents: make([]models.PersonResponse, 0, len(people))}
	for _, p := range people {
		resp.Residents = append(resp.Residents, models.ToResponse(p))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleCountResidents handles GET /residents/count.
func (h *Handler) HandleCountResidents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	count, err := h.service.CountResidents(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to count residents",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.CountResponse{Count: count})
}

// HandleResidencyStatus handles GET /residents/status?name=. The name is a
// query parameter so the empty name stays addressable.
func (h *Handler) HandleResidencyStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name, ok := nameParam(w, r)
	if !ok {
		return
	}

	msg, err := h.service.GetResidencyStatus(ctx, name)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to look up residency status",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.StatusResponse{Name: name, Message: msg})
}

// HandleGetResident handles GET /residents/record?name=.
func (h *Handler) HandleGetResident(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name, ok := nameParam(w, r)
	if !ok {
		return
	}

	person, err := h.service.Resident(ctx, name)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.logger.ErrorContext(ctx, "failed to load resident",
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.ToResponse(person))
}

// HandleEvents handles GET /residents/events as a server-sent event stream.
// Slow clients miss events rather than holding up adds.
func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.events == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnavailable, "event stream is not enabled"))
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "streaming unsupported"))
		return
	}

	feed, unsubscribe := h.events.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case event, open := <-feed:
			if !open {
				return
			}
			payload, err := models.EncodePersonAdded(event)
			if err != nil {
				h.logger.ErrorContext(ctx, "failed to encode event", "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", event.EventID, models.EventPersonAdded, payload); err != nil {
				return
			}
			flusher.Flush()
			h.metrics.IncrementStreamed()
		}
	}
}

func nameParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	query := r.URL.Query()
	if !query.Has("name") {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "name query parameter is required"))
		return "", false
	}
	return query.Get("name"), true
}
