package monitoring

import (
	"chat_relation_backend/internal/util"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "conflict", Outcome(util.Conflict("already blocked")))
	assert.Equal(t, "server", Outcome(errors.New("disk full")))
}

func TestObserveOperation(t *testing.T) {
	before := testutil.ToFloat64(OperationCounter.WithLabelValues("block.user", "conflict"))
	ObserveOperation("block.user", util.Conflict("already blocked"), time.Millisecond)
	after := testutil.ToFloat64(OperationCounter.WithLabelValues("block.user", "conflict"))
	assert.Equal(t, before+1, after)
}

func TestMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(MetricsMiddleware())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	before := testutil.ToFloat64(RequestCounter.WithLabelValues("GET", "/ping", "204"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, before+1, testutil.ToFloat64(RequestCounter.WithLabelValues("GET", "/ping", "204")))

	Init()
	Init()
}
