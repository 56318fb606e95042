package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTelegram struct {
	mu       sync.Mutex
	sent     []string
	failures int
	updates  string
}

func (f *fakeTelegram) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/bottoken/sendMessage":
			var payload map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			f.mu.Lock()
			defer f.mu.Unlock()
			if f.failures > 0 {
				f.failures--
				http.Error(w, "flood control", http.StatusTooManyRequests)
				return
			}
			assert.Equal(t, "42", payload["chat_id"])
			assert.Equal(t, "HTML", payload["parse_mode"])
			f.sent = append(f.sent, payload["text"])
			fmt.Fprint(w, `{"ok":true}`)
		case "/bottoken/getUpdates":
			f.mu.Lock()
			body := f.updates
			f.updates = `{"ok":true,"result":[]}`
			f.mu.Unlock()
			fmt.Fprint(w, body)
		default:
			http.NotFound(w, r)
		}
	}
}

func (f *fakeTelegram) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func newTestNotifier(t *testing.T, fake *fakeTelegram) *TelegramNotifier {
	t.Helper()
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)
	tn := NewTelegramNotifier("token", "42", "", zerolog.Nop())
	tn.BaseURL = srv.URL
	tn.RetryBase = time.Millisecond
	return tn
}

func TestSend(t *testing.T) {
	fake := &fakeTelegram{}
	tn := newTestNotifier(t, fake)

	require.NoError(t, tn.Send("<b>hello</b>"))
	assert.Equal(t, []string{"<b>hello</b>"}, fake.messages())
}

func TestSendWithRetry_RecoversAfterFailures(t *testing.T) {
	fake := &fakeTelegram{failures: 2}
	tn := newTestNotifier(t, fake)

	require.NoError(t, tn.SendWithRetry(context.Background(), "report", 3))
	assert.Equal(t, []string{"report"}, fake.messages())
}

func TestSendWithRetry_GivesUp(t *testing.T) {
	fake := &fakeTelegram{failures: 10}
	tn := newTestNotifier(t, fake)

	err := tn.SendWithRetry(context.Background(), "report", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 2 retries exhausted")
	assert.Empty(t, fake.messages())
}

func TestStartPolling_HandlesKnownChatOnly(t *testing.T) {
	fake := &fakeTelegram{updates: `{"ok":true,"result":[
		{"update_id":7,"message":{"text":"/harvest","chat":{"id":99}}},
		{"update_id":8,"message":{"text":" /status ","chat":{"id":42}}}
	]}`}
	tn := newTestNotifier(t, fake)

	ctx, cancel := context.WithCancel(context.Background())
	var got []string
	done := make(chan struct{})
	go func() {
		defer close(done)
		tn.StartPolling(ctx, func(cmd string) string {
			got = append(got, cmd)
			cancel()
			return "status reply"
		})
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("polling did not stop")
	}
	assert.Equal(t, []string{"/status"}, got)
	assert.Equal(t, []string{"status reply"}, fake.messages())
}
