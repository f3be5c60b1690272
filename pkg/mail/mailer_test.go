package mail

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingSession struct {
	from     string
	rcpts    []string
	body     bytes.Buffer
	authed   bool
	quit     bool
	rcptFail error
}

type bufferCloser struct{ *bytes.Buffer }

func (bufferCloser) Close() error { return nil }

func (s *recordingSession) Mail(from string) error { s.from = from; return nil }
func (s *recordingSession) Rcpt(to string) error {
	if s.rcptFail != nil {
		return s.rcptFail
	}
	s.rcpts = append(s.rcpts, to)
	return nil
}
func (s *recordingSession) Data() (io.WriteCloser, error) { return bufferCloser{&s.body}, nil }
func (s *recordingSession) Quit() error                   { s.quit = true; return nil }
func (s *recordingSession) Close() error                  { return nil }
func (s *recordingSession) Auth(smtp.Auth) error          { s.authed = true; return nil }

var fixedNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func testMailer(t *testing.T, cfg SMTPSettings, session *recordingSession) *smtpMailer {
	t.Helper()
	cfg.Enabled = true
	cfg.Host = "smtp.pureharvest.test"
	cfg.Port = 587
	m, err := NewSMTPMailer(cfg)
	require.NoError(t, err)
	sm := m.(*smtpMailer)
	sm.now = func() time.Time { return fixedNow }
	sm.connect = func(context.Context, SMTPSettings) (smtpSession, error) { return session, nil }
	return sm
}

func TestNewSMTPMailerRequiresHostAndPort(t *testing.T) {
	_, err := NewSMTPMailer(SMTPSettings{Enabled: true})
	require.ErrorContains(t, err, "host is required")

	_, err = NewSMTPMailer(SMTPSettings{Enabled: true, Host: "smtp.pureharvest.test"})
	require.ErrorContains(t, err, "port is required")

	m, err := NewSMTPMailer(SMTPSettings{})
	require.NoError(t, err)
	require.ErrorIs(t, m.Send(context.Background(), Message{To: []string{"a@b.test"}, Text: "hi"}), ErrSMTPDisabled)
}

func TestNewSMTPMailerDefaultsTimeout(t *testing.T) {
	sm := testMailer(t, SMTPSettings{}, &recordingSession{})
	require.Equal(t, defaultTimeout, sm.cfg.Timeout)
	require.Equal(t, "smtp.pureharvest.test:587", sm.cfg.address())
}

func TestSendRejectsBadEnvelope(t *testing.T) {
	sm := testMailer(t, SMTPSettings{}, &recordingSession{})
	ctx := context.Background()

	require.ErrorContains(t, sm.Send(ctx, Message{To: []string{" ", "\t"}, Text: "x"}), "at least one recipient")
	require.ErrorContains(t, sm.Send(ctx, Message{To: []string{"buyer@pureharvest.test"}, Text: "x"}), "sender address is required")
	require.ErrorContains(t, sm.Send(ctx, Message{From: "nope", To: []string{"buyer@pureharvest.test"}, Text: "x"}), "invalid from address")
	require.ErrorContains(t, sm.Send(ctx, Message{From: "alerts@pureharvest.test", To: []string{"buyer@pureharvest.test", "bad"}, Text: "x"}), "invalid recipient address")
	require.ErrorContains(t, sm.Send(ctx, Message{From: "alerts@pureharvest.test", To: []string{"buyer@pureharvest.test"}}), "body is empty")
}

func TestSendAuthenticatesAndDeduplicatesRecipients(t *testing.T) {
	session := &recordingSession{}
	sm := testMailer(t, SMTPSettings{Username: "relay", Password: "secret", From: "alerts@pureharvest.test"}, session)

	err := sm.Send(context.Background(), Message{
		To:      []string{"farmer@pureharvest.test", "Farmer@pureharvest.test ", "buyer@pureharvest.test"},
		Subject: "Low Stock Alert",
		HTML:    "<p>Only 3 left</p>",
	})
	require.NoError(t, err)
	require.True(t, session.authed)
	require.True(t, session.quit)
	require.Equal(t, "alerts@pureharvest.test", session.from)
	require.Equal(t, []string{"farmer@pureharvest.test", "buyer@pureharvest.test"}, session.rcpts)
	require.Contains(t, session.body.String(), "Content-Type: text/html; charset=UTF-8\r\n")
	require.Contains(t, session.body.String(), "<p>Only 3 left</p>")
}

func TestSendSurfacesRecipientRejection(t *testing.T) {
	session := &recordingSession{rcptFail: errors.New("550 mailbox unavailable")}
	sm := testMailer(t, SMTPSettings{From: "alerts@pureharvest.test"}, session)

	err := sm.Send(context.Background(), Message{To: []string{"gone@pureharvest.test"}, Text: "x"})
	require.ErrorContains(t, err, "rcpt to gone@pureharvest.test")
	require.False(t, session.quit)
	require.False(t, session.authed)
}

func TestComposeMultipartAlternative(t *testing.T) {
	raw, err := compose("PureHarvest <alerts@pureharvest.test>", []string{"buyer@pureharvest.test"}, Message{
		Subject: "Récolte\r\nprête",
		Text:    "Your order has shipped",
		HTML:    "<p>Your order has shipped</p>",
		Headers: map[string]string{
			"list-unsubscribe": "<https://pureharvest.test/settings>",
			"Subject":          "ignored",
		},
	}, fixedNow)
	require.NoError(t, err)

	parsed, err := mail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)

	subject, err := new(mime.WordDecoder).DecodeHeader(parsed.Header.Get("Subject"))
	require.NoError(t, err)
	require.Equal(t, "Récolte  prête", subject)
	require.Equal(t, "<https://pureharvest.test/settings>", parsed.Header.Get("List-Unsubscribe"))
	require.True(t, strings.HasSuffix(parsed.Header.Get("Message-ID"), "@pureharvest.test>"))

	date, err := parsed.Header.Date()
	require.NoError(t, err)
	require.True(t, date.Equal(fixedNow))

	mediaType, params, err := mime.ParseMediaType(parsed.Header.Get("Content-Type"))
	require.NoError(t, err)
	require.Equal(t, "multipart/alternative", mediaType)

	reader := multipart.NewReader(parsed.Body, params["boundary"])
	var types, bodies []string
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		content, err := io.ReadAll(part)
		require.NoError(t, err)
		types = append(types, part.Header.Get("Content-Type"))
		bodies = append(bodies, string(content))
	}
	require.Equal(t, []string{"text/plain; charset=UTF-8", "text/html; charset=UTF-8"}, types)
	require.Equal(t, []string{"Your order has shipped", "<p>Your order has shipped</p>"}, bodies)
}

func TestComposePlainText(t *testing.T) {
	raw, err := compose("alerts@pureharvest.test", []string{"a@pureharvest.test", "b@pureharvest.test"}, Message{Text: "Hello"}, fixedNow)
	require.NoError(t, err)
	content := string(raw)
	require.Contains(t, content, "To: a@pureharvest.test, b@pureharvest.test\r\n")
	require.Contains(t, content, "Content-Type: text/plain; charset=UTF-8\r\n")
	require.True(t, strings.HasSuffix(content, "\r\n\r\nHello"))
}

func TestUniqueAddresses(t *testing.T) {
	got := uniqueAddresses([]string{"alice@pureharvest.test", "bob@pureharvest.test", " ALICE@pureharvest.test ", ""})
	require.Equal(t, []string{"alice@pureharvest.test", "bob@pureharvest.test"}, got)
}
