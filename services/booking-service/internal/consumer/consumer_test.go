package consumer

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/md-rashed-zaman/salonbook/libs/kafkax"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/outbox"
)

type memInbox map[string]bool

func (m memInbox) Record(_ context.Context, consumer, eventID, _ string) (bool, error) {
	key := consumer + "|" + eventID
	if m[key] {
		return false, nil
	}
	m[key] = true
	return true, nil
}

type days []time.Time

func (d *days) InvalidateDay(_ context.Context, t time.Time) { *d = append(*d, t) }

func message(t *testing.T, eventID string, start time.Time) kafka.Message {
	t.Helper()
	body, err := json.Marshal(outbox.AppointmentPayload{AppointmentID: "appt-1", StartTime: start, Status: "canceled"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	meta := kafkax.EventMeta{EventID: eventID, EventType: outbox.EventAppointmentCanceled, AggregateID: "appt-1"}
	return kafka.Message{Topic: outbox.EventAppointmentCanceled, Value: body, Headers: meta.Headers()}
}

func TestProcessInvalidatesOncePerEvent(t *testing.T) {
	var got days
	c := New(slog.New(slog.NewTextHandler(io.Discard, nil)), memInbox{}, Config{GroupID: "booking-cache"}, InvalidateAvailability(&got))
	start := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

	c.process(context.Background(), message(t, "evt-1", start))
	c.process(context.Background(), message(t, "evt-1", start))
	c.process(context.Background(), message(t, "evt-2", start.AddDate(0, 0, 1)))

	if len(got) != 2 {
		t.Fatalf("expected 2 invalidations, got %d", len(got))
	}
	if !got[0].Equal(start) || !got[1].Equal(start.AddDate(0, 0, 1)) {
		t.Fatalf("unexpected days %v", got)
	}
}

func TestInvalidateAvailabilityRejectsBadPayload(t *testing.T) {
	var got days
	h := InvalidateAvailability(&got)
	if err := h(context.Background(), kafka.Message{Value: []byte("{")}); err == nil {
		t.Fatalf("expected decode error")
	}
	if err := h(context.Background(), kafka.Message{Value: []byte(`{"appointment_id":"a"}`)}); err == nil {
		t.Fatalf("expected missing start error")
	}
	if len(got) != 0 {
		t.Fatalf("expected no invalidations")
	}
}

func TestRunWithoutBrokersReturns(t *testing.T) {
	c := New(slog.New(slog.NewTextHandler(io.Discard, nil)), nil, Config{}, InvalidateAvailability(&days{}))
	c.Run(context.Background())
}
