package mailer

import (
	"bytes"
	"context"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage_Build(t *testing.T) {
	html := "<html><body><p>" + strings.Repeat("Reindustrialization é ", 80) + "</p></body></html>"
	date := time.Date(2026, 10, 12, 6, 0, 0, 0, time.UTC)
	raw, err := Message{
		From:    "letters@example.com",
		To:      "Reader <reader@example.com>",
		Subject: "Fund Holdings Analysis - 2026-10-12",
		HTML:    html,
		Date:    date,
	}.Build()
	require.NoError(t, err)

	for _, line := range strings.Split(string(raw), "\r\n") {
		assert.LessOrEqual(t, len(line), 998)
	}

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	require.NoError(t, err)

	subject, err := mr.Header.Subject()
	require.NoError(t, err)
	assert.Equal(t, "Fund Holdings Analysis - 2026-10-12", subject)

	to, err := mr.Header.AddressList("To")
	require.NoError(t, err)
	require.Len(t, to, 1)
	assert.Equal(t, "reader@example.com", to[0].Address)

	got, err := mr.Header.Date()
	require.NoError(t, err)
	assert.True(t, date.Equal(got))

	id, err := mr.Header.MessageID()
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Contains(t, string(raw), "Content-Transfer-Encoding: quoted-printable")

	p, err := mr.NextPart()
	require.NoError(t, err)
	h, ok := p.Header.(*mail.InlineHeader)
	require.True(t, ok)
	ct, params, err := h.ContentType()
	require.NoError(t, err)
	assert.Equal(t, "text/html", ct)
	assert.Equal(t, "utf-8", params["charset"])

	body, err := io.ReadAll(p.Body)
	require.NoError(t, err)
	assert.Equal(t, html, string(body))
}

func TestMessage_BuildBadAddress(t *testing.T) {
	_, err := Message{From: "letters@example.com", To: "not an address", HTML: "x"}.Build()
	assert.Error(t, err)

	_, err = Message{From: "", To: "reader@example.com", HTML: "x"}.Build()
	assert.Error(t, err)
}

func TestSMTPSender_ConnectFailure(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	s := NewSMTPSender(SMTPConfig{Host: "127.0.0.1", Port: port, From: "letters@example.com", Timeout: time.Second})
	err = s.Send(context.Background(), "reader@example.com", "subject", "<p>hi</p>")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to SMTP server")
}

func TestSMTPSender_InvalidRecipientFailsBeforeDialing(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "203.0.113.1", Port: 587, From: "letters@example.com"})
	err := s.Send(context.Background(), "broken", "subject", "<p>hi</p>")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse recipient")
}
