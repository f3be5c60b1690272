package mail

import (
	"bytes"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/textproto"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Message is an outbound email. When both Text and HTML are set the body is
// sent as multipart/alternative with the plain part first.
type Message struct {
	From    string
	To      []string
	Subject string
	Text    string
	HTML    string
	// Headers are extra single-value headers such as List-Unsubscribe.
	Headers map[string]string
}

func (m Message) empty() bool {
	return strings.TrimSpace(m.Text) == "" && strings.TrimSpace(m.HTML) == ""
}

// compose renders msg as an RFC 5322 message with CRLF line endings.
func compose(from string, to []string, msg Message, now time.Time) ([]byte, error) {
	var out bytes.Buffer

	header := func(name, value string) {
		fmt.Fprintf(&out, "%s: %s\r\n", name, value)
	}

	header("From", from)
	header("To", strings.Join(to, ", "))
	header("Subject", mime.QEncoding.Encode("utf-8", stripLineBreaks(msg.Subject)))
	header("Date", now.Format(time.RFC1123Z))
	header("Message-ID", messageID(from))
	header("MIME-Version", "1.0")
	for _, name := range extraHeaderNames(msg.Headers) {
		header(textproto.CanonicalMIMEHeaderKey(name), stripLineBreaks(msg.Headers[name]))
	}

	switch {
	case msg.HTML != "" && msg.Text != "":
		body := multipart.NewWriter(&out)
		header("Content-Type", fmt.Sprintf("multipart/alternative; boundary=%q", body.Boundary()))
		out.WriteString("\r\n")
		if err := writePart(body, "text/plain", msg.Text); err != nil {
			return nil, err
		}
		if err := writePart(body, "text/html", msg.HTML); err != nil {
			return nil, err
		}
		if err := body.Close(); err != nil {
			return nil, fmt.Errorf("smtp: close multipart body: %w", err)
		}
	case msg.HTML != "":
		if err := writeSinglePart(&out, "text/html", msg.HTML); err != nil {
			return nil, err
		}
	default:
		if err := writeSinglePart(&out, "text/plain", msg.Text); err != nil {
			return nil, err
		}
	}
	return out.Bytes(), nil
}

func writeSinglePart(out *bytes.Buffer, contentType, content string) error {
	fmt.Fprintf(out, "Content-Type: %s; charset=UTF-8\r\n", contentType)
	out.WriteString("Content-Transfer-Encoding: quoted-printable\r\n\r\n")
	return encodeQuotedPrintable(out, content)
}

func writePart(body *multipart.Writer, contentType, content string) error {
	part, err := body.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {contentType + "; charset=UTF-8"},
		"Content-Transfer-Encoding": {"quoted-printable"},
	})
	if err != nil {
		return fmt.Errorf("smtp: create %s part: %w", contentType, err)
	}
	var buf bytes.Buffer
	if err := encodeQuotedPrintable(&buf, content); err != nil {
		return err
	}
	_, err = part.Write(buf.Bytes())
	return err
}

func encodeQuotedPrintable(out *bytes.Buffer, content string) error {
	qp := quotedprintable.NewWriter(out)
	if _, err := qp.Write([]byte(content)); err != nil {
		return fmt.Errorf("smtp: encode body: %w", err)
	}
	return qp.Close()
}

// headers the composer owns cannot be overridden by Message.Headers
var reservedHeaders = map[string]struct{}{
	"From": {}, "To": {}, "Subject": {}, "Date": {}, "Message-Id": {},
	"Mime-Version": {}, "Content-Type": {}, "Content-Transfer-Encoding": {},
}

func extraHeaderNames(headers map[string]string) []string {
	names := make([]string, 0, len(headers))
	for name, value := range headers {
		if strings.TrimSpace(name) == "" || strings.TrimSpace(value) == "" {
			continue
		}
		if _, reserved := reservedHeaders[textproto.CanonicalMIMEHeaderKey(name)]; reserved {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func messageID(from string) string {
	domain := "localhost"
	if at := strings.LastIndex(from, "@"); at >= 0 {
		domain = strings.TrimRight(from[at+1:], "> ")
	}
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)
}

func stripLineBreaks(value string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(value)
}
