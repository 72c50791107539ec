package datastore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/diwise/datastore-client/internal/pkg/application/store"
	"github.com/diwise/datastore-client/internal/pkg/presentation/api/datastore/auth"
	"github.com/diwise/datastore-client/pkg/datastore/types"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("datastore-emulator/api")

func RegisterHandlers(ctx context.Context, r *chi.Mux, app store.EntityStore, policies io.Reader) error {

	authenticator, err := auth.NewAuthenticator(ctx, policies)
	if err != nil {
		return fmt.Errorf("failed to create api authenticator: %w", err)
	}

	logger := logging.GetFromContext(ctx)

	r.Route("/v1/projects", func(r chi.Router) {
		r.Use(Logger(logger))

		r.Post("/{projectID}:commit", NewCommitHandler(app, authenticator))
		r.Post("/{projectID}:lookup", NewLookupHandler(app, authenticator))
		r.Post("/{projectID}:runQuery", NewRunQueryHandler(app, authenticator))
	})

	return nil
}

func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			_, ctx, _ = o11y.AddTraceIDToLoggerAndStoreInContext(
				trace.SpanFromContext(ctx),
				logger,
				ctx)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewCommitHandler handles incoming commit requests carrying mutations
func NewCommitHandler(app store.EntityStore, authenticator auth.Enticator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx := r.Context()
		projectID := chi.URLParam(r, "projectID")

		ctx, span := tracer.Start(ctx, "commit")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		err = authenticator.CheckAccess(ctx, r, projectID)
		if err != nil {
			reportError(w, http.StatusUnauthorized, "UNAUTHENTICATED", err.Error())
			return
		}

		req := &types.CommitRequest{}
		err = json.NewDecoder(r.Body).Decode(req)
		if err != nil {
			reportError(w, http.StatusBadRequest, "INVALID_ARGUMENT",
				fmt.Sprintf("unable to decode request payload: %s", err.Error()),
			)
			return
		}

		response, err := app.Commit(ctx, projectID, req)
		if err != nil {
			reportApplicationError(w, err)
			return
		}

		writeResponse(ctx, w, response)
	}
}

// NewLookupHandler handles key lookup requests
func NewLookupHandler(app store.EntityStore, authenticator auth.Enticator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx := r.Context()
		projectID := chi.URLParam(r, "projectID")

		ctx, span := tracer.Start(ctx, "lookup")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		err = authenticator.CheckAccess(ctx, r, projectID)
		if err != nil {
			reportError(w, http.StatusUnauthorized, "UNAUTHENTICATED", err.Error())
			return
		}

		req := &types.LookupRequest{}
		err = json.NewDecoder(r.Body).Decode(req)
		if err != nil {
			reportError(w, http.StatusBadRequest, "INVALID_ARGUMENT",
				fmt.Sprintf("unable to decode request payload: %s", err.Error()),
			)
			return
		}

		response, err := app.Lookup(ctx, projectID, req)
		if err != nil {
			reportApplicationError(w, err)
			return
		}

		writeResponse(ctx, w, response)
	}
}

// NewRunQueryHandler handles query requests for all entities of one kind
func NewRunQueryHandler(app store.EntityStore, authenticator auth.Enticator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx := r.Context()
		projectID := chi.URLParam(r, "projectID")

		ctx, span := tracer.Start(ctx, "run-query")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		err = authenticator.CheckAccess(ctx, r, projectID)
		if err != nil {
			reportError(w, http.StatusUnauthorized, "UNAUTHENTICATED", err.Error())
			return
		}

		req := &types.RunQueryRequest{}
		err = json.NewDecoder(r.Body).Decode(req)
		if err != nil {
			reportError(w, http.StatusBadRequest, "INVALID_ARGUMENT",
				fmt.Sprintf("unable to decode request payload: %s", err.Error()),
			)
			return
		}

		response, err := app.RunQuery(ctx, projectID, req)
		if err != nil {
			reportApplicationError(w, err)
			return
		}

		writeResponse(ctx, w, response)
	}
}

func reportApplicationError(w http.ResponseWriter, err error) {
	switch e := err.(type) {
	case store.AlreadyExistsError:
		reportError(w, http.StatusConflict, "ALREADY_EXISTS", e.Error())
	case store.NotFoundError:
		reportError(w, http.StatusNotFound, "NOT_FOUND", e.Error())
	case store.BadRequestError:
		reportError(w, http.StatusBadRequest, "INVALID_ARGUMENT", e.Error())
	default:
		reportError(w, http.StatusInternalServerError, "INTERNAL", e.Error())
	}
}

func reportError(w http.ResponseWriter, code int, status, msg string) {
	body, _ := json.Marshal(types.ErrorBody{
		Error: types.Status{Code: code, Message: msg, Status: status},
	})

	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(body)
}

func writeResponse(ctx context.Context, w http.ResponseWriter, response any) {
	body, err := json.Marshal(response)
	if err != nil {
		log := logging.GetFromContext(ctx)
		log.Error("failed to marshal response", "err", err.Error())
		reportError(w, http.StatusInternalServerError, "INTERNAL", "failed to marshal response")
		return
	}

	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}
