package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"checkin-billboard-backend/config"
	"checkin-billboard-backend/internal/reconcile"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		serverURL  string
		roleName   string
		token      string
		configPath string
		interval   time.Duration
	)

	flagSet := pflag.NewFlagSet("billboard-watch", pflag.ContinueOnError)
	flagSet.StringVar(&serverURL, "server", "http://localhost:8080", "billboard server base URL")
	flagSet.StringVar(&roleName, "role", "billboard", "client role: admin, billboard, location, kiosk or status")
	flagSet.StringVar(&token, "token", os.Getenv("BILLBOARD_ADMIN_TOKEN"), "admin bearer token (admin role)")
	flagSet.StringVar(&configPath, "config", "", "read poll cadences and edit lease from this config file")
	flagSet.DurationVar(&interval, "interval", 0, "override the role's poll interval")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	role, err := reconcile.ParseRole(roleName)
	if err != nil {
		return err
	}

	lease := reconcile.DefaultEditLease
	if configPath != "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration from %s: %w", configPath, err)
		}
		if interval <= 0 {
			interval = role.IntervalFrom(cfg.Polling)
		}
		lease = cfg.Polling.EditLease()
	}

	source := reconcile.NewHTTPSource(serverURL, reconcile.WithToken(token))
	replica := reconcile.NewReplica(source, reconcile.WithLease(lease))
	poller := reconcile.NewPoller(role, replica, source, interval)
	poller.OnUpdate(func(r *reconcile.Replica) { printState(os.Stdout, role, r) })

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch role {
	case reconcile.Kiosk:
		go readCodes(ctx, os.Stdin, source, replica)
	case reconcile.Admin:
		go readCommands(ctx, os.Stdin, source, replica)
	}

	if err := poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func printState(w io.Writer, role reconcile.Role, r *reconcile.Replica) {
	if err := r.Err(); err != nil {
		fmt.Fprintf(w, "[%s] last request failed: %v\n", role, err)
	}
	snap := r.Visible()
	if snap == nil {
		fmt.Fprintf(w, "[%s] no active billboard\n", role)
	} else {
		fmt.Fprintf(w, "[%s] %s on %s: %s\n", role, snap.EventName, snap.EventDate, strings.Join(snap.SecurityCodes, " "))
	}
	if role == reconcile.Admin {
		sel := r.Selection()
		fmt.Fprintf(w, "[%s] phase=%s selection: event=%s date=%s codes=%s\n", role, r.Phase(), sel.EventID, sel.EventDate, strings.Join(sel.SecurityCodes, ","))
	}
	for _, n := range r.Notifications() {
		fmt.Fprintf(w, "  %-6s %-24s %s\n", n.SecurityCode, n.ChildName, n.LocationName)
	}
}

// readCodes submits one security code per input line against the visible billboard.
func readCodes(ctx context.Context, in io.Reader, source *reconcile.HTTPSource, r *reconcile.Replica) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		code := strings.TrimSpace(scanner.Text())
		if code == "" {
			continue
		}
		snap := r.Visible()
		if snap == nil {
			fmt.Println("No event is active; ask an admin to launch the billboard.")
			continue
		}
		result, err := source.SubmitCode(ctx, code, snap.EventID, snap.EventDate)
		if err != nil {
			log.Printf("Failed to submit code %s: %v", code, err)
			continue
		}
		fmt.Println(result.Message)
	}
}

// readCommands drives an admin replica from input lines:
//
//	date YYYY-MM-DD | event ID NAME | add CODE... | remove CODE | launch | clear | dismiss
func readCommands(ctx context.Context, in io.Reader, source *reconcile.HTTPSource, r *reconcile.Replica) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		var err error
		switch cmd, args := fields[0], fields[1:]; {
		case cmd == "date" && len(args) == 1:
			err = r.SelectDate(args[0])
		case cmd == "event" && len(args) >= 1:
			r.SelectEvent(args[0], strings.Join(args[1:], " "))
		case cmd == "add" && len(args) >= 1:
			r.AddCodes(args...)
		case cmd == "remove" && len(args) == 1:
			r.RemoveCode(args[0])
		case cmd == "launch":
			_, err = r.Commit(ctx)
		case cmd == "clear":
			err = r.ClearGlobal(ctx)
		case cmd == "dismiss":
			if err = source.SoftClear(ctx); err == nil {
				r.DismissLocal()
			}
		default:
			fmt.Println("commands: date YYYY-MM-DD | event ID NAME | add CODE... | remove CODE | launch | clear | dismiss")
			continue
		}
		if err != nil {
			log.Printf("%s failed: %v", fields[0], err)
			continue
		}
		printState(os.Stdout, reconcile.Admin, r)
	}
}
