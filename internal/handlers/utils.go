package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"tubeplayer/internal/catalog"
	"tubeplayer/internal/logging"
	"tubeplayer/internal/playback"
	"tubeplayer/internal/resolver"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// writeJSON encodes v as JSON and writes it to the response writer.
// Any encoding or write errors are logged since we typically cannot
// recover from them in an HTTP handler context.
func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

// writeJSONResponse writes v with the given status code.
func writeJSONResponse(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	writeJSON(w, v)
}

// writeJSONError writes an error response as JSON with the given status code.
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSONResponse(w, statusCode, map[string]string{"error": message})
}

// writeJSONStatus writes a simple status response as JSON.
func writeJSONStatus(w http.ResponseWriter, status string) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": status})
}

// writeError maps err onto a status code and writes it.
func writeError(w http.ResponseWriter, action string, err error) {
	code := errorStatus(err)
	if code >= http.StatusInternalServerError {
		logging.Error("%s: %v", action, err)
	} else {
		logging.Debug("%s: %v", action, err)
	}
	writeJSONError(w, err.Error(), code)
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, catalog.ErrDuplicated):
		return http.StatusConflict
	case errors.Is(err, catalog.ErrSchemaMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, playback.ErrNotPlaying),
		errors.Is(err, playback.ErrSuspended),
		errors.Is(err, playback.ErrNoPrevious):
		return http.StatusConflict
	case errors.Is(err, playback.ErrEmptyQueue),
		errors.Is(err, playback.ErrVolume):
		return http.StatusBadRequest
	case errors.Is(err, resolver.ErrRestricted),
		errors.Is(err, resolver.ErrNoFormat):
		return http.StatusUnprocessableEntity
	case errors.Is(err, playback.ErrClosed),
		errors.Is(err, catalog.ErrClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// pathID parses a numeric mux variable.
func pathID(r *http.Request, name string) (int64, error) {
	raw := mux.Vars(r)[name]
	id, err := parsePositive(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return id, nil
}

func parsePositive(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, fmt.Errorf("%d is not positive", id)
	}
	return id, nil
}
