// Package notify delivers "meeting created" notices to organisers.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/example/teammeeting/internal/application"
	"github.com/example/teammeeting/internal/logging"
)

var (
	_ application.Notifier = (*LogNotifier)(nil)
	_ application.Notifier = (*SendGridNotifier)(nil)
)

// LogNotifier writes notices to the context logger.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a notifier that only logs.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) MeetingCreated(ctx context.Context, notice application.MeetingNotice) error {
	logging.FromContextOr(ctx, n.logger).InfoContext(ctx, "meeting created notice",
		"organiser_id", notice.Organiser.ID,
		"activity", notice.ActivityName,
		"join_url", notice.JoinURL,
	)
	return nil
}

func subject(notice application.MeetingNotice) string {
	return fmt.Sprintf("Online meeting created: %s", notice.ActivityName)
}

func body(notice application.MeetingNotice) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", notice.Organiser.FullName)
	fmt.Fprintf(&b, "You are now the organiser of the online meeting for %q", notice.ActivityName)
	if notice.CourseName != "" {
		fmt.Fprintf(&b, " in %s", notice.CourseName)
	}
	b.WriteString(".\n\n")
	fmt.Fprintf(&b, "Join link: %s\n", notice.JoinURL)
	return b.String()
}
