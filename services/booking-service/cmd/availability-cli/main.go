// Command availability-cli queries a running booking service over its internal
// gRPC API: bookable dates for a service, or the free slots on one date.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"google.golang.org/protobuf/encoding/protojson"

	"github.com/md-rashed-zaman/salonbook/libs/config"
	"github.com/md-rashed-zaman/salonbook/libs/grpcx"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/grpcserver"
)

func main() {
	var (
		addr      = flag.String("addr", config.String("BOOKING_GRPC_ADDR", "localhost:9093"), "booking service gRPC address")
		serviceID = flag.String("service-id", config.String("SERVICE_ID", ""), "service to query")
		date      = flag.String("date", "", "YYYY-MM-DD; lists bookable dates when empty")
		staffID   = flag.String("staff-id", "", "narrow slots to one staff member")
		timeout   = flag.Duration("timeout", 5*time.Second, "call timeout")
	)
	flag.Parse()

	if strings.TrimSpace(*serviceID) == "" {
		fatal("SERVICE_ID is required")
	}

	conn, err := grpcx.Dial(*addr, grpcx.DialOptions{})
	if err != nil {
		fatal(err.Error())
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	if err := run(ctx, grpcserver.NewClient(conn), os.Stdout, *serviceID, *date, *staffID); err != nil {
		fatal(err.Error())
	}
}

func run(ctx context.Context, client *grpcserver.Client, out io.Writer, serviceID, date, staffID string) error {
	if date == "" {
		dates, err := client.ListAvailableDates(ctx, serviceID)
		if err != nil {
			return fmt.Errorf("list dates: %w", err)
		}
		for _, d := range dates {
			fmt.Fprintln(out, d)
		}
		return nil
	}

	res, err := client.GetAvailability(ctx, date, serviceID, staffID)
	if err != nil {
		return fmt.Errorf("get availability: %w", err)
	}
	b, err := protojson.MarshalOptions{Multiline: true}.Marshal(res)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(b))
	return err
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
