package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/pkg/errors"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/example/teammeeting/internal/application"
	"github.com/example/teammeeting/internal/logging"
)

const (
	defaultHost = "https://api.sendgrid.com"
	endpoint    = "/v3/mail/send"
)

// SendGridNotifier emails the organiser through the SendGrid v3 API.
type SendGridNotifier struct {
	key    string
	host   string
	from   *sgmail.Email
	logger *slog.Logger
}

// NewSendGridNotifier returns a notifier sending from fromName <fromAddress>.
func NewSendGridNotifier(key, fromName, fromAddress string, logger *slog.Logger) *SendGridNotifier {
	return &SendGridNotifier{
		key:    key,
		host:   defaultHost,
		from:   sgmail.NewEmail(fromName, fromAddress),
		logger: logger,
	}
}

// WithHost points the notifier at another API host.
func (n *SendGridNotifier) WithHost(host string) *SendGridNotifier {
	n.host = host
	return n
}

// MeetingCreated sends the notice. Organisers without an email address are skipped.
func (n *SendGridNotifier) MeetingCreated(ctx context.Context, notice application.MeetingNotice) error {
	logger := logging.FromContextOr(ctx, n.logger)
	if notice.Organiser.Email == "" {
		logger.DebugContext(ctx, "organiser has no email address", "organiser_id", notice.Organiser.ID)
		return nil
	}

	req := sendgrid.GetRequest(n.key, endpoint, n.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(n.prepare(notice))

	res, err := sendgrid.API(req)
	if err != nil {
		return errors.Wrap(err, "sendgrid request failed")
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid: unexpected status %d: %s", res.StatusCode, res.Body)
	}

	logger.InfoContext(ctx, "meeting created notice sent", "organiser_id", notice.Organiser.ID)
	return nil
}

func (n *SendGridNotifier) prepare(notice application.MeetingNotice) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = subject(notice)
	p.AddTos(sgmail.NewEmail(notice.Organiser.FullName, notice.Organiser.Email))

	m := sgmail.NewV3Mail()
	m.SetFrom(n.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", body(notice)))
	return m
}
