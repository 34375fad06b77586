package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCanonicalPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/", "/"},
		{"/health", "/health"},
		{"/api/v1/clients", "/api/v1/clients"},
		{"/api/v1/clients/abc", "/api/v1/clients/:clientId"},
		{"/api/v1/clients/abc/slots", "/api/v1/clients/:clientId/slots"},
		{"/api/v1/clients/abc/slots/123", "/api/v1/clients/:clientId/slots/:id"},
		{"/api/v1/clients/abc/bookings/123/cancel", "/api/v1/clients/:clientId/bookings/:id/cancel"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanonicalPath(tt.in), tt.in)
	}
}

func TestRecordReservation(t *testing.T) {
	before := testutil.ToFloat64(reservationOutcomes.WithLabelValues("create", "SLOT_RACE_LOST"))
	RecordReservation("create", "SLOT_RACE_LOST")
	after := testutil.ToFloat64(reservationOutcomes.WithLabelValues("create", "SLOT_RACE_LOST"))
	assert.Equal(t, before+1, after)
}

func TestRecordEventPublish(t *testing.T) {
	before := testutil.ToFloat64(eventsPublished.WithLabelValues("booking.created", ResultFailure))
	RecordEventPublish("booking.created", time.Millisecond, errors.New("broker down"))
	after := testutil.ToFloat64(eventsPublished.WithLabelValues("booking.created", ResultFailure))
	assert.Equal(t, before+1, after)
}

func TestInstrumentHandler_CountsStatus(t *testing.T) {
	h := InstrumentHandler("/metrics", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))

	counter := httpRequests.WithLabelValues("POST", "/api/v1/clients/:clientId/bookings", "409")
	before := testutil.ToFloat64(counter)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/clients/c1/bookings", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}
