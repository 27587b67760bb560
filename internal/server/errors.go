package server

import (
	"errors"
	"net/http"

	"github.com/jonathan/glossary-agent/internal/batch"
	"github.com/jonathan/glossary-agent/internal/catalog"
	"github.com/jonathan/glossary-agent/internal/prompts"
	"github.com/jonathan/glossary-agent/internal/store"
)

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var notFound *catalog.NotFoundError
	var misconfigured *prompts.ConfigurationError
	var persistence *store.PersistenceError

	switch {
	case errors.Is(err, batch.ErrBatchNotFound):
		return http.StatusNotFound
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &misconfigured):
		return http.StatusInternalServerError
	case errors.As(err, &persistence):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}
