package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(pagesClassified.WithLabelValues("divider"))
	IncPage("divider")
	IncPage("divider")
	assert.Equal(t, before+2, testutil.ToFloat64(pagesClassified.WithLabelValues("divider")))

	failed := testutil.ToFloat64(splitRuns.WithLabelValues("failed"))
	ObserveSplit(errors.New("boom"), time.Second)
	assert.Equal(t, failed+1, testutil.ToFloat64(splitRuns.WithLabelValues("failed")))

	SetQueued(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(jobsQueued))
}

func TestHandlerExposesCollectors(t *testing.T) {
	Init()
	Init()
	IncSegment()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "patchsplit_segments_written_total"))
}
