package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"tubeplayer/internal/catalog"
	"tubeplayer/internal/playback"
	"tubeplayer/internal/resolver"
)

var errStub = errors.New("stub failure")

func TestWriteJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    interface{}
		expected string
	}{
		{"Simple map", map[string]string{"status": "ok"}, `{"status":"ok"}`},
		{"Number", 42, `42`},
		{"Null", nil, `null`},
		{"Empty slice", []string{}, `[]`},
		{"HTML is escaped", map[string]string{"t": "<b>"}, `{"t":"\u003cb\u003e"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeJSON(w, tt.input)
			if got := strings.TrimSuffix(w.Body.String(), "\n"); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestWriteJSONError(t *testing.T) {
	w := httptest.NewRecorder()
	writeJSONError(w, "bad thing", http.StatusTeapot)

	if w.Code != http.StatusTeapot {
		t.Errorf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["error"] != "bad thing" {
		t.Errorf("body = %v", body)
	}
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: playlist 3", catalog.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: playlist %q", catalog.ErrDuplicated, "x"), http.StatusConflict},
		{catalog.ErrSchemaMismatch, http.StatusUnprocessableEntity},
		{catalog.ErrClosed, http.StatusServiceUnavailable},
		{catalog.ErrInvariant, http.StatusInternalServerError},
		{playback.ErrNotPlaying, http.StatusConflict},
		{playback.ErrSuspended, http.StatusConflict},
		{playback.ErrNoPrevious, http.StatusConflict},
		{playback.ErrEmptyQueue, http.StatusBadRequest},
		{playback.ErrVolume, http.StatusBadRequest},
		{playback.ErrClosed, http.StatusServiceUnavailable},
		{fmt.Errorf("resolve: %w", resolver.ErrRestricted), http.StatusUnprocessableEntity},
		{resolver.ErrNoFormat, http.StatusUnprocessableEntity},
		{errStub, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := errorStatus(tt.err); got != tt.want {
			t.Errorf("errorStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestDecodeJSON(t *testing.T) {
	type body struct {
		Name string `json:"name"`
	}

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"valid", `{"name":"a"}`, "a", false},
		{"empty body", ``, "", false},
		{"unknown field", `{"name":"a","extra":1}`, "", true},
		{"malformed", `{"name":`, "", true},
		{"wrong type", `{"name":3}`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.input))
			var got body
			err := decodeJSON(r, &got)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got.Name != tt.want {
				t.Errorf("name = %q, want %q", got.Name, tt.want)
			}
		})
	}
}

func TestDecodeJSONBodyLimit(t *testing.T) {
	big := `{"name":"` + strings.Repeat("x", maxBodyBytes) + `"}`
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(big))
	var v struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &v); err == nil {
		t.Error("oversized body was accepted")
	}
}

func TestPathID(t *testing.T) {
	tests := []struct {
		raw     string
		want    int64
		wantErr bool
	}{
		{"1", 1, false},
		{"9007199254740993", 9007199254740993, false},
		{"0", 0, true},
		{"-1", 0, true},
		{"1.5", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		r := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/", http.NoBody), map[string]string{"id": tt.raw})
		got, err := pathID(r, "id")
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("pathID(%q) = %d, %v", tt.raw, got, err)
		}
	}
}
