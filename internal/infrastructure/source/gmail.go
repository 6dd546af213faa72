package source

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"orderbot/internal/errs"
	"orderbot/internal/infrastructure/googleauth"
	"orderbot/internal/ports"
)

const (
	DefaultGmailQuery = `subject:"Заказ отправлен" is:unread`
	DefaultGmailUser  = "me"

	gmailPageSize = 50
	labelUnread   = "UNREAD"
)

type GmailConfig struct {
	User        string
	Query       string
	Credentials googleauth.Credentials
}

// GmailSource reads supplier confirmation mails. The subject is prefixed to
// the body because the dispatched phrase usually lives only in the subject.
type GmailSource struct {
	svc   *gmail.Service
	user  string
	query string
}

var _ ports.MessageSource = (*GmailSource)(nil)

// NewGmailSource impersonates cfg.User through the service account. Extra
// options replace the transport in tests.
func NewGmailSource(ctx context.Context, cfg GmailConfig, opts ...option.ClientOption) (*GmailSource, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	user := strings.TrimSpace(cfg.User)
	if user == "" {
		user = DefaultGmailUser
	}
	query := strings.TrimSpace(cfg.Query)
	if query == "" {
		query = DefaultGmailQuery
	}

	clientOpts := make([]option.ClientOption, 0, len(opts)+1)
	if !cfg.Credentials.IsZero() {
		subject := user
		if subject == DefaultGmailUser {
			subject = ""
		}
		client, err := cfg.Credentials.DelegatedClient(ctx, subject, gmail.GmailModifyScope)
		if err != nil {
			return nil, err
		}
		clientOpts = append(clientOpts, option.WithHTTPClient(client))
	}
	clientOpts = append(clientOpts, opts...)

	svc, err := gmail.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, errs.Wrap(err, "create gmail service")
	}
	return &GmailSource{svc: svc, user: user, query: query}, nil
}

func (s *GmailSource) Name() string {
	return NameGmail
}

func (s *GmailSource) Fetch(ctx context.Context) ([]ports.InboundMessage, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}

	list, err := s.svc.Users.Messages.List(s.user).
		Q(s.query).
		MaxResults(gmailPageSize).
		Context(ctx).
		Do()
	if err != nil {
		return nil, errs.Wrap(err, "list gmail messages")
	}

	// The API lists newest first; ingestion wants arrival order.
	out := make([]ports.InboundMessage, 0, len(list.Messages))
	for i := len(list.Messages) - 1; i >= 0; i-- {
		ref := list.Messages[i]
		msg, err := s.svc.Users.Messages.Get(s.user, ref.Id).Format("full").Context(ctx).Do()
		if err != nil {
			return nil, errs.Wrapf(err, "get gmail message %s", ref.Id)
		}
		text := composeText(headerValue(msg.Payload, "Subject"), bodyText(msg.Payload))
		if strings.TrimSpace(text) == "" {
			continue
		}
		out = append(out, ports.InboundMessage{
			Source:     NameGmail,
			Identity:   "gmail:" + msg.Id,
			Text:       text,
			ReceivedAt: time.UnixMilli(msg.InternalDate).UTC(),
		})
	}
	return out, nil
}

// MarkSeen removes the UNREAD label so the query stops matching.
func (s *GmailSource) MarkSeen(ctx context.Context, messages []ports.InboundMessage) error {
	ids := make([]string, 0, len(messages))
	for _, msg := range messages {
		if id, ok := strings.CutPrefix(msg.Identity, "gmail:"); ok && id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	req := &gmail.BatchModifyMessagesRequest{Ids: ids, RemoveLabelIds: []string{labelUnread}}
	if err := s.svc.Users.Messages.BatchModify(s.user, req).Context(ctx).Do(); err != nil {
		return errs.Wrap(err, "mark gmail messages read")
	}
	return nil
}

func composeText(subject string, body string) string {
	subject = strings.TrimSpace(subject)
	body = strings.TrimSpace(body)
	switch {
	case subject == "":
		return body
	case body == "":
		return subject
	default:
		return subject + "\n" + body
	}
}

func headerValue(part *gmail.MessagePart, name string) string {
	if part == nil {
		return ""
	}
	for _, h := range part.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// bodyText returns the first text/plain part, falling back to the first
// part of any type that carries data.
func bodyText(part *gmail.MessagePart) string {
	if text, ok := findPart(part, "text/plain"); ok {
		return text
	}
	text, _ := findPart(part, "")
	return text
}

func findPart(part *gmail.MessagePart, mimeType string) (string, bool) {
	if part == nil {
		return "", false
	}
	if part.Body != nil && part.Body.Data != "" && (mimeType == "" || strings.EqualFold(part.MimeType, mimeType)) {
		if text, err := decodeBody(part.Body.Data); err == nil {
			return text, true
		}
	}
	for _, child := range part.Parts {
		if text, ok := findPart(child, mimeType); ok {
			return text, true
		}
	}
	return "", false
}

func decodeBody(data string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
