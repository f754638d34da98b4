package email

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/komiwalnut/AuthentiCute/internal/core/port"
	"github.com/komiwalnut/AuthentiCute/internal/infra/config"
	"github.com/komiwalnut/AuthentiCute/internal/infra/logger"
)

const (
	defaultSenderName   = "AuthentiCute"
	defaultRetryBackoff = 250 * time.Millisecond
	maxErrorBodyBytes   = 1 << 10
)

// MailgunSender delivers email through the Mailgun messages API.
type MailgunSender struct {
	client     *http.Client
	endpoint   string
	apiKey     string
	from       string
	maxRetries uint64
	backoff    time.Duration
	logger     *zap.Logger
}

var _ port.EmailSender = (*MailgunSender)(nil)

// NewMailgunSender validates cfg and returns a sender.
func NewMailgunSender(cfg config.MailSettings, log *zap.Logger) (*MailgunSender, error) {
	if cfg.APIKey == "" || cfg.Domain == "" {
		return nil, oops.Code("MAIL_CONFIG_INVALID").Errorf("mailgun requires api key and domain")
	}
	base := strings.TrimRight(cfg.APIBaseURL, "/")
	if base == "" {
		base = "https://api.mailgun.net"
	}
	if log == nil {
		log = zap.NewNop()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &MailgunSender{
		client:     &http.Client{Timeout: timeout},
		endpoint:   fmt.Sprintf("%s/v3/%s/messages", base, url.PathEscape(cfg.Domain)),
		apiKey:     cfg.APIKey,
		from:       formatFrom(cfg.From, cfg.Domain),
		maxRetries: cfg.MaxRetries,
		backoff:    defaultRetryBackoff,
		logger:     log,
	}, nil
}

func formatFrom(from, domain string) string {
	from = strings.TrimSpace(from)
	if from == "" {
		from = "noreply@" + domain
	}
	if strings.Contains(from, "<") {
		return from
	}
	return fmt.Sprintf("%s <%s>", defaultSenderName, from)
}

// Send posts msg to Mailgun, retrying transport errors, 429 and 5xx responses.
func (s *MailgunSender) Send(ctx context.Context, msg port.EmailMessage) error {
	form := url.Values{}
	form.Set("from", s.from)
	form.Set("to", msg.To)
	form.Set("subject", msg.Subject)
	form.Set("html", msg.HTML)
	if msg.Text != "" {
		form.Set("text", msg.Text)
	}
	body := form.Encode()

	attempt := 0
	backoff := retry.WithMaxRetries(s.maxRetries, retry.NewExponential(s.backoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		return s.post(ctx, body)
	})
	if err != nil {
		return oops.Code("MAIL_SEND_FAILED").
			With("to", logger.MaskEmail(msg.To)).
			With("attempts", attempt).
			Wrap(err)
	}

	s.logger.Debug("email delivered",
		zap.String("to", logger.MaskEmail(msg.To)),
		zap.String("subject", msg.Subject),
		zap.Int("attempts", attempt),
	)
	return nil
}

func (s *MailgunSender) post(ctx context.Context, body string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("build mailgun request: %w", err)
	}
	req.SetBasicAuth("api", s.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return retry.RetryableError(fmt.Errorf("mailgun request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	statusErr := fmt.Errorf("mailgun responded %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return retry.RetryableError(statusErr)
	}
	return statusErr
}
