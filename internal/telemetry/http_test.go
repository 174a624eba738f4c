package telemetry

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestHTTPMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	e := gin.New()
	e.Use(HTTPMiddleware())
	e.GET("/ok/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	e.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	tests := map[string]struct {
		path   string
		route  string
		status string
	}{
		"should label by route template": {path: "/ok/42", route: "/ok/:id", status: "200"},
		"should count server errors":     {path: "/boom", route: "/boom", status: "500"},
		"should label unmatched routes":  {path: "/nowhere", route: "unmatched", status: "404"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			counter := httpRequests.WithLabelValues(tt.route, http.MethodGet, tt.status)
			before := testutil.ToFloat64(counter)

			e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.path, nil))

			require.Equal(t, before+1, testutil.ToFloat64(counter))
		})
	}
}
