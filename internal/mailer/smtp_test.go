package mailer

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"math/big"
	"net"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// session is what the loopback relay saw during one connection.
type session struct {
	auth     string
	from     string
	rcpt     string
	data     string
	tls      bool
	quit     bool
	commands []string
}

// relay is a single-connection SMTP server speaking just enough of the
// protocol for net/smtp: EHLO, STARTTLS, AUTH PLAIN, MAIL, RCPT, DATA, QUIT.
type relay struct {
	ln         net.Listener
	tlsCfg     *tls.Config
	rejectRcpt bool
	done       chan session
}

func newRelay(t *testing.T) *relay {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	return &relay{
		ln:     ln,
		tlsCfg: &tls.Config{Certificates: []tls.Certificate{selfSigned(t)}},
		done:   make(chan session, 1),
	}
}

func (r *relay) port() int {
	return r.ln.Addr().(*net.TCPAddr).Port
}

func (r *relay) serve() {
	var s session
	defer func() { r.done <- s }()

	conn, err := r.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(10 * time.Second))

	text := textproto.NewConn(conn)
	_ = text.PrintfLine("220 relay.test ESMTP")
	for {
		line, err := text.ReadLine()
		if err != nil {
			return
		}
		verb := strings.ToUpper(strings.SplitN(line, " ", 2)[0])
		s.commands = append(s.commands, verb)
		switch verb {
		case "EHLO":
			if s.tls {
				_ = text.PrintfLine("250-relay.test\r\n250 AUTH PLAIN")
			} else {
				_ = text.PrintfLine("250-relay.test\r\n250 STARTTLS")
			}
		case "STARTTLS":
			_ = text.PrintfLine("220 ready")
			tconn := tls.Server(conn, r.tlsCfg)
			if err := tconn.Handshake(); err != nil {
				return
			}
			text = textproto.NewConn(tconn)
			s.tls = true
		case "AUTH":
			s.auth = strings.TrimPrefix(line, "AUTH PLAIN ")
			_ = text.PrintfLine("235 authenticated")
		case "MAIL":
			s.from = line
			_ = text.PrintfLine("250 ok")
		case "RCPT":
			s.rcpt = line
			if r.rejectRcpt {
				_ = text.PrintfLine("550 no such user")
			} else {
				_ = text.PrintfLine("250 ok")
			}
		case "DATA":
			_ = text.PrintfLine("354 end with <CRLF>.<CRLF>")
			body, err := text.ReadDotBytes()
			if err != nil {
				return
			}
			s.data = string(body)
			_ = text.PrintfLine("250 queued")
		case "QUIT":
			s.quit = true
			_ = text.PrintfLine("221 bye")
			return
		default:
			_ = text.PrintfLine("502 not implemented")
		}
	}
}

func (r *relay) wait(t *testing.T) session {
	t.Helper()
	select {
	case s := <-r.done:
		return s
	case <-time.After(10 * time.Second):
		t.Fatal("relay did not finish")
		return session{}
	}
}

func selfSigned(t *testing.T) tls.Certificate {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "relay.test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}
}

func relaySender(r *relay) *SMTPSender {
	return NewSMTPSender(SMTPConfig{
		Host:     "127.0.0.1",
		Port:     r.port(),
		Username: "letters",
		Password: "secret",
		From:     "letters@example.com",
		Timeout:  5 * time.Second,
		TLS:      &tls.Config{InsecureSkipVerify: true},
	})
}

func TestSMTPSender_Send(t *testing.T) {
	r := newRelay(t)
	go r.serve()

	err := relaySender(r).Send(context.Background(), "reader@example.com", "Weekly Letter", "<p>Factories are back.</p>")
	require.NoError(t, err)

	s := r.wait(t)
	assert.True(t, s.tls, "session upgraded with STARTTLS")
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("\x00letters\x00secret")), s.auth)
	assert.Contains(t, s.from, "<letters@example.com>")
	assert.Equal(t, "RCPT TO:<reader@example.com>", s.rcpt)
	assert.Contains(t, s.data, "Subject: Weekly Letter")
	assert.Contains(t, s.data, "Factories are back.")
	assert.True(t, s.quit)
	assert.Equal(t, []string{"EHLO", "STARTTLS", "EHLO", "AUTH", "MAIL", "RCPT", "DATA", "QUIT"}, s.commands)
}

func TestSMTPSender_RecipientRejected(t *testing.T) {
	r := newRelay(t)
	r.rejectRcpt = true
	go r.serve()

	err := relaySender(r).Send(context.Background(), "nobody@example.com", "Weekly Letter", "<p>hi</p>")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to set mail recipient")

	// the relay returns once the client drops the connection
	s := r.wait(t)
	assert.Equal(t, "RCPT TO:<nobody@example.com>", s.rcpt)
	assert.Empty(t, s.data)
	assert.False(t, s.quit)
	assert.NotContains(t, s.commands, "DATA")
}
