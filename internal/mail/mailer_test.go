// AngelaMos | 2026
// mailer_test.go

package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/harvest-table/internal/config"
)

type logged struct {
	Msg     string `json:"msg"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func logOnlyMailer(t *testing.T, cfg config.MailConfig) (*Mailer, func() []logged) {
	t.Helper()

	var buf bytes.Buffer
	m := New(cfg, slog.New(slog.NewJSONHandler(&buf, nil)))

	return m, func() []logged {
		var out []logged
		dec := json.NewDecoder(&buf)
		for dec.More() {
			var l logged
			require.NoError(t, dec.Decode(&l))
			if l.Subject != "" {
				out = append(out, l)
			}
		}
		return out
	}
}

func TestOrderConfirmationRendersAndEscapes(t *testing.T) {
	m, messages := logOnlyMailer(t, config.MailConfig{StoreName: "Harvest Table"})

	err := m.SendOrderConfirmation(context.Background(), OrderConfirmation{
		TrackingCode: "HT-2Q9",
		CustomerName: "<b>Ada</b>",
		Email:        "ada@example.com",
		TotalAmount:  "14.00",
		Items:        []OrderLine{{Name: "Sourdough", Quantity: 2, Price: "7.00"}},
	})
	require.NoError(t, err)

	got := messages()
	require.Len(t, got, 1)
	assert.Equal(t, "ada@example.com", got[0].To)
	assert.Equal(t, "Order confirmed: HT-2Q9", got[0].Subject)
	assert.Contains(t, got[0].Body, "Sourdough")
	assert.Contains(t, got[0].Body, "&lt;b&gt;Ada&lt;/b&gt;")
	assert.NotContains(t, got[0].Body, "<b>Ada</b>")
}

func TestAdminNotificationRecipient(t *testing.T) {
	m, messages := logOnlyMailer(t, config.MailConfig{StoreName: "Harvest Table", AdminEmail: "ops@example.com"})

	require.NoError(t, m.SendAdminNotification(context.Background(), "", "New review", "5 stars"))
	require.NoError(t, m.SendAdminNotification(context.Background(), "chef@example.com", "Low stock", "flour"))

	got := messages()
	require.Len(t, got, 2)
	assert.Equal(t, "ops@example.com", got[0].To)
	assert.Equal(t, "[Harvest Table] New review", got[0].Subject)
	assert.Equal(t, "chef@example.com", got[1].To)
}

func TestAdminNotificationWithoutRecipientIsSkipped(t *testing.T) {
	m, messages := logOnlyMailer(t, config.MailConfig{})

	require.NoError(t, m.SendAdminNotification(context.Background(), "", "New review", ""))
	assert.Empty(t, messages())
}

func TestSendHonorsCancelledContext(t *testing.T) {
	m, _ := logOnlyMailer(t, config.MailConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.SendPasswordResetCode(ctx, "ada@example.com", "123456"), context.Canceled)
}
