package emailsvc

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/mail"
	"strings"
	"testing"

	"github.com/sendgrid/rest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shule/backend/core"
)

func testMessage(t *testing.T) *core.EmailMessage {
	msg := &core.EmailMessage{
		To:      []mail.Address{{Name: "Parent", Address: "parent@example.com"}},
		Bcc:     []mail.Address{{Address: "bursar@localhost"}},
		Subject: "Invoice INV-2024-0001",
		BodyStr: "Please find the statement attached.",
	}
	require.NoError(t, msg.Attach(strings.NewReader("number,total\nINV-2024-0001,500.00\n"), "statement.csv", "text/csv"))
	return msg
}

func TestConsoleService(t *testing.T) {
	conf := core.NewTestConfig()
	svc := NewConsoleServiceMock(conf)
	out := new(bytes.Buffer)
	svc.out = out

	svc.SendMessages(testMessage(t), &core.EmailMessage{Subject: "no recipient", BodyStr: "x"})

	sent := svc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "Please find the statement attached.", sent[0].TextContent)

	body := out.String()
	assert.Contains(t, body, "Subject: [Shule] Invoice INV-2024-0001")
	assert.Contains(t, body, `To: "Parent" <parent@example.com>`)
	assert.Contains(t, body, "Content-Type: multipart/mixed")
	assert.Contains(t, body, "filename=statement.csv")
}

func TestSendgridService_send(t *testing.T) {
	conf := core.NewTestConfig()
	conf.SendgridAPIKey = "SG.key"
	var got rest.Request
	restore := sendFunc
	sendFunc = func(req rest.Request) (*rest.Response, error) {
		got = req
		return &rest.Response{StatusCode: http.StatusAccepted}, nil
	}
	t.Cleanup(func() { sendFunc = restore })

	svc := NewSendgridService(conf, core.NewNopLogger())
	msg := testMessage(t)
	svc.sendMessage(msg)

	assert.Equal(t, rest.Method(http.MethodPost), got.Method)
	assert.Equal(t, "https://api.sendgrid.com/v3/mail/send", got.BaseURL)
	assert.Equal(t, "Bearer SG.key", got.Headers["Authorization"])

	var payload struct {
		From             struct{ Email string } `json:"from"`
		Personalizations []struct {
			Subject string
			To      []struct{ Email string }
			Bcc     []struct{ Email string }
		} `json:"personalizations"`
		Content     []struct{ Type, Value string } `json:"content"`
		Attachments []struct{ Filename, Type string } `json:"attachments"`
	}
	require.NoError(t, json.Unmarshal(got.Body, &payload))
	assert.Equal(t, "noreply@localhost", payload.From.Email)
	require.Len(t, payload.Personalizations, 1)
	p := payload.Personalizations[0]
	assert.Equal(t, "[Shule] Invoice INV-2024-0001", p.Subject)
	assert.Equal(t, "parent@example.com", p.To[0].Email)
	assert.Equal(t, "bursar@localhost", p.Bcc[0].Email)
	require.Len(t, payload.Content, 1, "no html part without a template")
	assert.Equal(t, "text/plain", payload.Content[0].Type)
	require.Len(t, payload.Attachments, 1)
	assert.Equal(t, "statement.csv", payload.Attachments[0].Filename)
}
