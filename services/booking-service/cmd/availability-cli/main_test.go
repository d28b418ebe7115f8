package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/md-rashed-zaman/salonbook/libs/grpcx"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/grpcserver"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/storage/memstore"
)

func newClient(t *testing.T) *grpcserver.Client {
	t.Helper()
	now := time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	s := memstore.New()
	s.PutService(model.Service{ID: "svc-cut", Name: "Haircut", DurationMinutes: 60, PriceCents: 4000, Active: true})
	s.PutStaff(model.Staff{ID: "staff-ana", Name: "Ana", Active: true}, "svc-cut")
	mon := time.Monday
	s.PutSchedule(model.ScheduleEntry{ID: "w1", StaffID: "staff-ana", DayOfWeek: &mon, StartMinute: 9 * 60, EndMinute: 11 * 60, IsAvailable: true})
	engine := availability.NewEngine(s, availability.NewMemoryCache(clock),
		availability.Config{Location: time.UTC, HorizonDays: 9},
		slog.New(slog.NewTextHandler(io.Discard, nil)), availability.WithClock(clock))

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := grpcx.NewServer(nil)
	grpcserver.Register(srv, engine)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpcx.Dial(lis.Addr().String(), grpcx.DialOptions{})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return grpcserver.NewClient(conn)
}

func TestRunListsDates(t *testing.T) {
	client := newClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var out bytes.Buffer
	if err := run(ctx, client, &out, "svc-cut", "", ""); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := strings.Fields(out.String()); len(got) != 2 || got[0] != "2026-10-19" || got[1] != "2026-10-26" {
		t.Fatalf("unexpected dates %q", out.String())
	}
}

func TestRunPrintsSlots(t *testing.T) {
	client := newClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var out bytes.Buffer
	if err := run(ctx, client, &out, "svc-cut", "2026-10-19", ""); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "2026-10-19T10:00:00Z") || !strings.Contains(out.String(), "staff-ana") {
		t.Fatalf("unexpected output %s", out.String())
	}

	if err := run(ctx, client, &out, "svc-nope", "2026-10-19", ""); err == nil {
		t.Fatal("expected error for unknown service")
	}
}
