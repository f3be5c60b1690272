package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

const defaultTimeout = 10 * time.Second

// ErrSMTPDisabled signals that SMTP delivery is disabled via configuration.
var ErrSMTPDisabled = errors.New("smtp: delivery disabled")

// Mailer sends composed email messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSettings configure the relay used by NewSMTPMailer. UseTLS selects
// implicit TLS; otherwise STARTTLS is negotiated when the server offers it.
type SMTPSettings struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
	UseTLS   bool
	Timeout  time.Duration
}

func (s SMTPSettings) address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

func (s SMTPSettings) validate() error {
	switch {
	case !s.Enabled:
		return nil
	case strings.TrimSpace(s.Host) == "":
		return errors.New("smtp: host is required when enabled")
	case s.Port == 0:
		return errors.New("smtp: port is required when enabled")
	}
	return nil
}

// smtpSession is the subset of *smtp.Client a delivery needs.
type smtpSession interface {
	Mail(string) error
	Rcpt(string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
	Auth(smtp.Auth) error
}

type connectFunc func(ctx context.Context, cfg SMTPSettings) (smtpSession, error)

type smtpMailer struct {
	cfg     SMTPSettings
	connect connectFunc
	now     func() time.Time
}

// NewSMTPMailer returns a Mailer that delivers through the configured SMTP relay.
// A disabled configuration yields a Mailer that always returns ErrSMTPDisabled.
func NewSMTPMailer(cfg SMTPSettings) (Mailer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &smtpMailer{cfg: cfg, connect: dialRelay, now: time.Now}, nil
}

type envelope struct {
	from string
	to   []string
}

func (m *smtpMailer) envelopeFor(msg Message) (envelope, error) {
	to := uniqueAddresses(msg.To)
	if len(to) == 0 {
		return envelope{}, errors.New("smtp: at least one recipient is required")
	}
	from := strings.TrimSpace(msg.From)
	if from == "" {
		from = strings.TrimSpace(m.cfg.From)
	}
	if from == "" {
		return envelope{}, errors.New("smtp: sender address is required")
	}
	if _, err := mail.ParseAddress(from); err != nil {
		return envelope{}, fmt.Errorf("smtp: invalid from address: %w", err)
	}
	for _, rcpt := range to {
		if _, err := mail.ParseAddress(rcpt); err != nil {
			return envelope{}, fmt.Errorf("smtp: invalid recipient address %q: %w", rcpt, err)
		}
	}
	return envelope{from: from, to: to}, nil
}

func (m *smtpMailer) Send(ctx context.Context, msg Message) error {
	if !m.cfg.Enabled {
		return ErrSMTPDisabled
	}
	if ctx == nil {
		ctx = context.Background()
	}

	env, err := m.envelopeFor(msg)
	if err != nil {
		return err
	}
	if msg.empty() {
		return errors.New("smtp: message body is empty")
	}
	payload, err := compose(env.from, env.to, msg, m.now())
	if err != nil {
		return err
	}

	session, err := m.connect(ctx, m.cfg)
	if err != nil {
		return err
	}
	defer session.Close()

	if user := strings.TrimSpace(m.cfg.Username); user != "" {
		if err := session.Auth(smtp.PlainAuth("", user, m.cfg.Password, m.cfg.Host)); err != nil {
			return fmt.Errorf("smtp: auth: %w", err)
		}
	}
	if err := transmit(session, env, payload); err != nil {
		return err
	}
	return session.Quit()
}

func transmit(session smtpSession, env envelope, payload []byte) error {
	if err := session.Mail(env.from); err != nil {
		return fmt.Errorf("smtp: mail from: %w", err)
	}
	for _, rcpt := range env.to {
		if err := session.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp: rcpt to %s: %w", rcpt, err)
		}
	}
	w, err := session.Data()
	if err != nil {
		return fmt.Errorf("smtp: data command: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		_ = w.Close()
		return fmt.Errorf("smtp: write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp: finish data: %w", err)
	}
	return nil
}

func dialRelay(ctx context.Context, cfg SMTPSettings) (smtpSession, error) {
	tlsConfig := &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}
	dialer := &net.Dialer{Timeout: cfg.Timeout}

	var (
		conn net.Conn
		err  error
	)
	if cfg.UseTLS {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: tlsConfig}).DialContext(ctx, "tcp", cfg.address())
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", cfg.address())
	}
	if err != nil {
		return nil, fmt.Errorf("smtp: dial %s: %w", cfg.address(), err)
	}
	_ = conn.SetDeadline(time.Now().Add(cfg.Timeout))

	client, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("smtp: greeting: %w", err)
	}
	if !cfg.UseTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				_ = client.Close()
				return nil, fmt.Errorf("smtp: start tls: %w", err)
			}
		}
	}
	return client, nil
}

func uniqueAddresses(addresses []string) []string {
	seen := make(map[string]struct{}, len(addresses))
	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		key := strings.ToLower(addr)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, addr)
	}
	return result
}
