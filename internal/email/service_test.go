package email

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/referral-api/internal/config"
)

type recordingDialer struct {
	sent []*gomail.Message
	err  error
}

func (d *recordingDialer) DialAndSend(m ...*gomail.Message) error {
	d.sent = append(d.sent, m...)
	return d.err
}

func TestNewService_NoHostIsNoop(t *testing.T) {
	svc := NewService(config.SMTPConfig{})
	_, ok := svc.(noopService)
	assert.True(t, ok)
	assert.NoError(t, svc.SendWelcome(context.Background(), "a@b.org", "A"))
}

func TestSMTPService_SendWelcome(t *testing.T) {
	d := &recordingDialer{}
	svc := &smtpService{dialer: d, from: "noreply@clinic.org"}

	require.NoError(t, svc.SendWelcome(context.Background(), "vht@clinic.org", "Ana"))
	require.Len(t, d.sent, 1)

	msg := d.sent[0]
	assert.Equal(t, []string{"vht@clinic.org"}, msg.GetHeader("To"))
	assert.Equal(t, []string{"noreply@clinic.org"}, msg.GetHeader("From"))

	var buf bytes.Buffer
	_, err := msg.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Hello Ana")
}

func TestSMTPService_Errors(t *testing.T) {
	d := &recordingDialer{err: errors.New("connection refused")}
	svc := &smtpService{dialer: d, from: "noreply@clinic.org"}

	err := svc.SendCustom(context.Background(), "x@y.org", "s", "b")
	assert.ErrorContains(t, err, "connection refused")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, svc.SendCustom(ctx, "x@y.org", "s", "b"), context.Canceled)
}
