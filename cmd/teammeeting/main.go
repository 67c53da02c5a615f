package main

import (
	"context"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"github.com/example/teammeeting/internal/application"
	"github.com/example/teammeeting/internal/config"
	"github.com/example/teammeeting/internal/graph"
	httptransport "github.com/example/teammeeting/internal/http"
	"github.com/example/teammeeting/internal/logging"
	"github.com/example/teammeeting/internal/notify"
	"github.com/example/teammeeting/internal/persistence/sqlstore"
)

const usage = `usage: teammeeting <command> [flags]

commands:
  serve                 run the HTTP API and the background attendee sync
  sync                  push attendee lists of stale meetings once
  info <activity-id>    describe the meetings of an activity
  issue-token -user N   issue a web service token (add -jwt for a bearer token)
  seed <file.yaml>      load courses, users, groups and roles
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "failed to load configuration: %v\n", err)
		return 1
	}

	command, rest := args[0], args[1:]

	var reporter logging.Reporter
	if cfg.Rollbar.Token != "" {
		rollbarReporter := logging.NewRollbarReporter(cfg.Rollbar.Token, cfg.Rollbar.Environment, "")
		defer rollbarReporter.Close()
		reporter = rollbarReporter
	}
	logger := logging.New(stderr, command == "serve", slog.LevelInfo, reporter)

	switch command {
	case "serve", "sync", "info", "issue-token", "seed":
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", command, usage)
		return 2
	}

	app, err := openApp(ctx, cfg, logger, nil)
	if err != nil {
		logger.Error("failed to start", "error", err)
		return 1
	}
	defer app.close()

	switch command {
	case "serve":
		err = app.serve(ctx)
	case "sync":
		err = app.syncOnce(ctx, stdout)
	case "info":
		err = app.info(ctx, rest, stdout)
	case "issue-token":
		err = app.issueToken(ctx, rest, stdout)
	case "seed":
		err = app.seed(ctx, rest, stdout)
	}
	if err != nil {
		logger.Error("command failed", "command", command, "error", err)
		return 1
	}
	return 0
}

// app holds the wired services of one process.
type app struct {
	cfg        config.Config
	logger     *slog.Logger
	store      *sqlstore.Storage
	meetings   *application.MeetingService
	activities *application.ActivityService
	sync       *application.SyncService
	tokens     *application.TokenService
	auth       *httptransport.Authenticator
}

// openApp connects the store, applies migrations and wires the services.
// provider replaces the Graph client when non-nil.
func openApp(ctx context.Context, cfg config.Config, logger *slog.Logger, provider application.MeetingProvider) (*app, error) {
	store, err := sqlstore.Open(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	store = store.WithLogger(logger)
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}

	if provider == nil {
		provider = graph.New(ctx, graph.Config{
			TenantID:     cfg.Graph.TenantID,
			ClientID:     cfg.Graph.ClientID,
			ClientSecret: cfg.Graph.ClientSecret,
			Timeout:      30 * time.Second,
		})
	}

	now := time.Now
	idGenerator := func() string { return uuid.NewString() }

	activityRepo := newActivityRepositoryAdapter(store)
	meetingStore := newMeetingStoreAdapter(store)
	directory := newDirectoryAdapter(store)

	meetings := application.NewMeetingServiceWithLogger(application.MeetingServiceDeps{
		Activities:   activityRepo,
		Meetings:     meetingStore,
		Courses:      directory,
		Users:        directory,
		Capabilities: directory,
		Groups:       directory,
		Provider:     provider,
		Views:        newViewRecorderAdapter(store, now),
		Notifier:     newNotifier(cfg.Notify, logger),
	}, application.MeetingOptions{
		PrefixSubject: cfg.PrefixMeetingName,
		ResyncAfter:   cfg.ResyncAfter,
	}, idGenerator, now, logger)

	activities := application.NewActivityServiceWithLogger(application.ActivityServiceDeps{
		Activities:   activityRepo,
		Meetings:     meetingStore,
		Courses:      directory,
		Users:        directory,
		Capabilities: directory,
		Groups:       directory,
		Provider:     provider,
		Calendar:     newCalendarSinkAdapter(store),
	}, application.ActivityOptions{
		DefaultDuration: cfg.DefaultMeetingDuration,
		PrefixSubject:   cfg.PrefixMeetingName,
	}, idGenerator, now, logger)

	tokens := application.NewTokenService(newTokenRepositoryAdapter(store), directory, idGenerator, rand.Text, now, logger)

	return &app{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		meetings:   meetings,
		activities: activities,
		sync:       application.NewSyncService(meetings, cfg.ResyncAfter, now, logger),
		tokens:     tokens,
		auth:       httptransport.NewAuthenticator(cfg.JWTSecret, tokens, now),
	}, nil
}

func newNotifier(cfg config.NotifyConfig, logger *slog.Logger) application.Notifier {
	switch {
	case !cfg.Enabled:
		return nil
	case cfg.SendGridKey != "":
		return notify.NewSendGridNotifier(cfg.SendGridKey, cfg.FromName, cfg.FromAddress, logger)
	default:
		return notify.NewLogNotifier(logger)
	}
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.logger.Error("failed to close storage", "error", err)
	}
}

func (a *app) handler() http.Handler {
	return httptransport.NewRouter(httptransport.RouterConfig{
		Meetings:   httptransport.NewMeetingHandler(a.meetings, a.logger),
		Activities: httptransport.NewActivityHandler(a.activities, a.logger),
		Auth:       httptransport.RequireAuth(a.auth, a.logger),
		Health:     a.store.Ping,
		Logger:     a.logger,
	})
}

func (a *app) serve(ctx context.Context) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.HTTPPort),
		Handler:           a.handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	if a.cfg.SyncInterval > 0 {
		go a.sync.Run(ctx, a.cfg.SyncInterval)
		a.logger.Info("background attendee sync enabled", "interval", a.cfg.SyncInterval)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("failed to shutdown server", "error", err)
		}
	}()

	a.logger.Info("team meeting API listening", "addr", server.Addr, "driver", a.store.Driver())
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *app) syncOnce(ctx context.Context, stdout io.Writer) error {
	report, err := a.sync.SyncStale(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "synced %d meetings, %d failed\n", report.Synced, report.Failed)
	return nil
}

func (a *app) info(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return errors.New("info requires exactly one activity id")
	}

	report, err := a.meetings.DescribeActivity(ctx, strings.TrimSpace(args[0]))
	if err != nil {
		return err
	}
	writeReport(stdout, report)
	return nil
}

func writeReport(w io.Writer, report application.ActivityReport) {
	fmt.Fprintf(w, "activity %s: %s (course %d)\n", report.Activity.ID, report.Activity.Name, report.Activity.CourseID)
	if report.ForcedGroup != nil {
		fmt.Fprintf(w, "forced group: %s (%d)\n", report.ForcedGroup.Name, report.ForcedGroup.ID)
	}
	if len(report.Meetings) == 0 {
		fmt.Fprintln(w, "no meetings")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "GROUP\tORGANISER\tMEETING\tLAST SYNC\tREMOTE")
	for _, detail := range report.Meetings {
		lastSync := "-"
		if !detail.Record.LastSync.IsZero() {
			lastSync = detail.Record.LastSync.UTC().Format(time.RFC3339)
		}
		organiser := detail.OrganiserName
		if organiser == "" {
			organiser = "-"
		}
		meetingID := detail.Record.ProviderMeetingID
		if meetingID == "" {
			meetingID = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", detail.Record.GroupID, organiser, meetingID, lastSync, describeRemote(detail))
	}
	_ = tw.Flush()
}

func describeRemote(detail application.MeetingDetail) string {
	switch {
	case detail.RemoteError != nil:
		return "error: " + detail.RemoteError.Error()
	case detail.Remote == nil:
		return "-"
	}
	roles := make([]string, 0, len(detail.Remote.Participants))
	for _, p := range detail.Remote.Participants {
		roles = append(roles, p.UPN+"="+string(p.Role))
	}
	return fmt.Sprintf("%q by %s [%s]", detail.Remote.Subject, detail.Remote.OrganizerUPN, strings.Join(roles, ", "))
}

func (a *app) issueToken(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("issue-token", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	userID := fs.Int64("user", 0, "user id")
	asJWT := fs.Bool("jwt", false, "issue a signed bearer token instead")
	ttl := fs.Duration("ttl", 24*time.Hour, "bearer token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *userID <= 0 {
		return errors.New("issue-token requires -user")
	}

	var (
		token string
		err   error
	)
	if *asJWT {
		token, err = a.auth.SignToken(*userID, *ttl)
	} else {
		token, err = a.tokens.IssueToken(ctx, *userID)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, token)
	return nil
}

func (a *app) seed(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) != 1 {
		return errors.New("seed requires exactly one file")
	}

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	seed, err := sqlstore.ParseSeed(f)
	if err != nil {
		return err
	}
	if err := a.store.LoadSeed(ctx, seed); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "loaded %d courses, %d users, %d groups, %d role sets\n",
		len(seed.Courses), len(seed.Users), len(seed.Groups), len(seed.Roles))
	return nil
}
