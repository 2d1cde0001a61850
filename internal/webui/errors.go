package webui

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"lodging/internal/report"
	"lodging/internal/table"
)

var (
	errUnknownSession = errors.New("unknown session")
	errUnknownTable   = errors.New("unknown table")
	errNotRendered    = errors.New("session has not rendered yet")
)

// ErrorResponse is the JSON body of every failed API call.
type ErrorResponse struct {
	Error     string `json:"error"`
	Class     string `json:"class"`
	RequestID string `json:"request_id,omitempty"`
}

// classify maps a render error to an HTTP status and a class name.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, errUnknownSession), errors.Is(err, errUnknownTable):
		return http.StatusNotFound, "NotFound"
	case errors.Is(err, errNotRendered):
		return http.StatusConflict, "NotRendered"
	case errors.Is(err, report.ErrSuperseded):
		return http.StatusConflict, "Superseded"
	case errors.Is(err, report.ErrInvalidConfig):
		return http.StatusInternalServerError, "InvalidConfig"
	}
	class := table.Classify(err)
	switch {
	case class == "SourceUnavailable":
		return http.StatusBadGateway, class
	case class == "MalformedInput":
		return http.StatusUnprocessableEntity, class
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Timeout"
	default:
		return http.StatusInternalServerError, class
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, class := classify(err)
	reqID := middleware.GetReqID(r.Context())
	if status >= 500 {
		log.Printf("webui: %s %s failed: class=%s request_id=%s err=%v", r.Method, r.URL.Path, class, reqID, err)
	}
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: err.Error(), Class: class, RequestID: reqID})
}
