package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mindcare/platform/libs/config"
	"github.com/mindcare/platform/libs/grpcx"
	"github.com/mindcare/platform/services/availability-service/internal/client"
	"github.com/mindcare/platform/services/availability-service/internal/schedule"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const usage = `usage: availctl <command> [flags]

commands:
  list        print the therapist's slots
  conflicts   print overlapping slot pairs
  copy        copy one day's slots onto other days (-from MONDAY -to WEDNESDAY,FRIDAY)
  health      query the gRPC health service
`

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "availctl:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	if len(args) == 0 {
		return errors.New(strings.TrimSpace(usage))
	}
	cmd, rest := args[0], args[1:]

	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	baseURL := fs.String("base-url", config.String("AVAILABILITY_URL", "http://localhost:8084"), "availability service base url")
	therapist := fs.String("therapist", config.String("THERAPIST_ID", ""), "therapist id sent as X-Therapist-Id")
	timeout := fs.Duration("timeout", 10*time.Second, "per request timeout")

	switch cmd {
	case "list":
		if err := fs.Parse(rest); err != nil {
			return err
		}
		c, err := newClient(*baseURL, *therapist, *timeout)
		if err != nil {
			return err
		}
		slots, err := c.List(ctx)
		if err != nil {
			return err
		}
		return printSlots(out, slots)

	case "conflicts":
		if err := fs.Parse(rest); err != nil {
			return err
		}
		c, err := newClient(*baseURL, *therapist, *timeout)
		if err != nil {
			return err
		}
		report, err := c.Conflicts(ctx)
		if err != nil {
			return err
		}
		for _, conflict := range report.Conflicts {
			a, b := conflict.Slots[0], conflict.Slots[1]
			fmt.Fprintf(out, "%-9s %s-%s (%s) overlaps %s-%s (%s)\n", conflict.Day, a.StartTime, a.EndTime, a.ID, b.StartTime, b.EndTime, b.ID)
		}
		for _, d := range report.MixedTimezoneDays {
			fmt.Fprintf(out, "warning: %s mixes timezones; overlaps compare local times\n", d)
		}
		fmt.Fprintf(out, "%d conflict(s)\n", report.Count)
		return nil

	case "copy":
		from := fs.String("from", "", "source day")
		to := fs.String("to", "", "comma separated target days")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		source, targets, err := parseCopyDays(*from, *to)
		if err != nil {
			return err
		}
		c, err := newClient(*baseURL, *therapist, *timeout)
		if err != nil {
			return err
		}
		slots, err := c.List(ctx)
		if err != nil {
			return err
		}
		res, err := schedule.CopyDay(ctx, c, schedule.GroupByDay(slots), source, targets...)
		var copyErr *schedule.CopyError
		switch {
		case errors.Is(err, schedule.ErrEmptySourceDay):
			return fmt.Errorf("no availability on %s to copy", source)
		case errors.As(err, &copyErr):
			return fmt.Errorf("copy failed on %s after %d slot(s) were created; they were kept: %w", copyErr.Target, copyErr.Created, copyErr.Err)
		case err != nil:
			return err
		}
		fmt.Fprintf(out, "copied %d slot(s) from %s\n", res.Count(), source)
		return nil

	case "health":
		addr := fs.String("addr", config.String("AVAILABILITY_GRPC_ADDR", "localhost:9094"), "gRPC address")
		service := fs.String("service", "", "health service name, empty for the whole server")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		conn, err := grpcx.Dial(*addr, grpcx.DialOptions{})
		if err != nil {
			return err
		}
		defer conn.Close()
		status, err := grpcx.CheckHealth(ctx, conn, *service, *timeout)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, status.String())
		if status != healthpb.HealthCheckResponse_SERVING {
			return fmt.Errorf("service is %s", status)
		}
		return nil

	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
}

func newClient(baseURL, therapist string, timeout time.Duration) (*client.Client, error) {
	if strings.TrimSpace(therapist) == "" {
		return nil, errors.New("-therapist (or THERAPIST_ID) is required")
	}
	return client.New(baseURL, therapist, timeout), nil
}

func parseCopyDays(from, to string) (schedule.Day, []schedule.Day, error) {
	source, err := schedule.ParseDay(from)
	if err != nil {
		return "", nil, fmt.Errorf("-from: %w", err)
	}
	var targets []schedule.Day
	for _, raw := range strings.Split(to, ",") {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		d, err := schedule.ParseDay(raw)
		if err != nil {
			return "", nil, fmt.Errorf("-to: %w", err)
		}
		targets = append(targets, d)
	}
	if len(targets) == 0 {
		return "", nil, errors.New("-to needs at least one day")
	}
	return source, targets, nil
}

func printSlots(out io.Writer, slots []schedule.Slot) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(slots)
}
