package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandlerRetriesFailedBuild(t *testing.T) {
	builds := 0
	build = func() (http.Handler, error) {
		builds++
		if builds == 1 {
			return nil, errors.New("database unreachable")
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}), nil
	}
	t.Cleanup(func() {
		build = buildRouter
		router = nil
	})

	serve := func() int {
		w := httptest.NewRecorder()
		Handler(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		return w.Code
	}

	assert.Equal(t, http.StatusServiceUnavailable, serve())
	assert.Equal(t, http.StatusNoContent, serve())
	assert.Equal(t, http.StatusNoContent, serve())
	assert.Equal(t, 2, builds)
}
