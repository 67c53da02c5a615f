package testfixtures

import (
	"io"
	"log/slog"
	"time"

	"github.com/example/teammeeting/internal/application"
)

// ServiceFactory builds application services on a shared fake clock and
// deterministic identifiers.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Logger      *slog.Logger
}

// ServiceFactoryOption configures a ServiceFactory.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory returns a factory with a clock at ReferenceTime and a
// logger that discards output.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(factory)
	}
	return factory
}

// WithClock overrides the clock.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(f *ServiceFactory) { f.Clock = clock }
}

// WithLogger overrides the logger.
func WithLogger(logger *slog.Logger) ServiceFactoryOption {
	return func(f *ServiceFactory) { f.Logger = logger }
}

// NewMeetingService builds a MeetingService.
func (f *ServiceFactory) NewMeetingService(deps application.MeetingServiceDeps, options application.MeetingOptions) *application.MeetingService {
	return application.NewMeetingServiceWithLogger(deps, options, f.IDGenerator.NextFunc(), f.Clock.NowFunc(), f.Logger)
}

// NewActivityService builds an ActivityService.
func (f *ServiceFactory) NewActivityService(deps application.ActivityServiceDeps, options application.ActivityOptions) *application.ActivityService {
	return application.NewActivityServiceWithLogger(deps, options, f.IDGenerator.NextFunc(), f.Clock.NowFunc(), f.Logger)
}

// NewSyncService builds a SyncService over meetings.
func (f *ServiceFactory) NewSyncService(meetings *application.MeetingService, resyncAfter time.Duration) *application.SyncService {
	return application.NewSyncService(meetings, resyncAfter, f.Clock.NowFunc(), f.Logger)
}
