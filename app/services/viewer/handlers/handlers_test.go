package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/ardanlabs/blockvault/app/services/viewer/handlers"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func Test_Index(t *testing.T) {
	app, err := handlers.UIMux("test", make(chan os.Signal, 1), zap.NewNop().Sugar(), "ws://localhost:8080/v1/events")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	app.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Header().Get("Content-Type"), "text/html")
	require.Contains(t, w.Body.String(), "localhost:8080")
}
