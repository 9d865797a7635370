package notify

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMTPMessageHeaders(t *testing.T) {
	m := &SMTPMailer{Host: "smtp.example.org", From: "rms@example.org"}

	msg, err := m.message(Mail{To: "ops@example.org", Subject: "low stock\r\nBcc: evil@example.org", Body: "Blanket below minimum"})
	require.NoError(t, err)
	var buf bytes.Buffer
	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)
	out := buf.String()
	assert.NotContains(t, out, "\r\nBcc:")
	assert.Contains(t, out, "Blanket below minimum")

	msg, err = m.message(Mail{To: "ops@example.org", Subject: "Stock bajo en almacén", Body: "b"})
	require.NoError(t, err)
	buf.Reset()
	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "almacén")
	assert.Contains(t, buf.String(), "=?UTF-8?")
}

func TestSMTPMessageRejectsBadRecipient(t *testing.T) {
	m := &SMTPMailer{Host: "smtp.example.org", From: "rms@example.org"}
	_, err := m.message(Mail{To: "not an address", Subject: "s", Body: "b"})
	assert.Error(t, err)
}

func TestSMTPMailerNotConfigured(t *testing.T) {
	err := (&SMTPMailer{}).Send(context.Background(), Mail{To: "ops@example.org"})
	assert.True(t, errors.Is(err, ErrMailNotConfigured))
}
