package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestClassifyStatus(t *testing.T) {
	assert.Equal(t, "2xx", classifyStatus(204))
	assert.Equal(t, "4xx", classifyStatus(429))
	assert.Equal(t, "5xx", classifyStatus(503))
	assert.Equal(t, "unknown", classifyStatus(0))
}

func TestRecordVendorRequest(t *testing.T) {
	before := testutil.ToFloat64(vendorRequestsTotal.WithLabelValues("429"))
	RecordVendorRequest(429)
	assert.Equal(t, before+1, testutil.ToFloat64(vendorRequestsTotal.WithLabelValues("429")))

	beforeErr := testutil.ToFloat64(vendorRequestsTotal.WithLabelValues("error"))
	RecordVendorRequest(0)
	assert.Equal(t, beforeErr+1, testutil.ToFloat64(vendorRequestsTotal.WithLabelValues("error")))
}

func TestRecordSync(t *testing.T) {
	before := testutil.ToFloat64(syncItemsTotal.WithLabelValues("full"))
	RecordSync("full", "completed", 7, time.Second)
	assert.Equal(t, before+7, testutil.ToFloat64(syncItemsTotal.WithLabelValues("full")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(syncRunsTotal.WithLabelValues("full", "completed")), 1.0)
}
