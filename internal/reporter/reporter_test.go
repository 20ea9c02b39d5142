package reporter

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifySendsToAdmin(t *testing.T) {
	var sent []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"xbot","username":"xbot"}}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, "42", r.FormValue("chat_id"))
			sent = append(sent, r.FormValue("text"))
			_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"}}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	bot, err := tgbotapi.NewBotAPIWithClient("token", srv.URL+"/bot%s/%s", srv.Client())
	require.NoError(t, err)

	New(bot, 42).Notify("run aborted")

	assert.Equal(t, []string{"run aborted"}, sent)
}

func TestNotifyNilSafe(t *testing.T) {
	var r *Reporter
	assert.NotPanics(t, func() { r.Notify("ignored") })
	assert.NotPanics(t, func() { New(nil, 0).Notify("ignored") })
}

func TestConnectWithoutSettings(t *testing.T) {
	r, err := Connect("", 0)
	require.NoError(t, err)
	assert.Nil(t, r)
}
