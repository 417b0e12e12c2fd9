package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/createathon/challenge-hub/internal/domain/challenge"
	"github.com/createathon/challenge-hub/internal/domain/shared"
	"github.com/createathon/challenge-hub/pkg/circuitbreaker"
	"github.com/createathon/challenge-hub/pkg/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	Method string
	Body   map[string]any
}

// fakeBotAPI answers Bot API calls with the responses queued per method.
type fakeBotAPI struct {
	mu        sync.Mutex
	calls     []recordedCall
	responses map[string][]string
}

func newFakeBotAPI(t *testing.T) (*fakeBotAPI, *httptest.Server) {
	f := &fakeBotAPI{responses: make(map[string][]string)}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeBotAPI) queue(method string, bodies ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[method] = append(f.responses[method], bodies...)
}

func (f *fakeBotAPI) serve(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Path[strings.LastIndexByte(r.URL.Path, '/')+1:]

	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	f.calls = append(f.calls, recordedCall{Method: method, Body: body})
	resp := `{"ok":true,"result":true}`
	if q := f.responses[method]; len(q) > 0 {
		resp = q[0]
		if len(q) > 1 {
			f.responses[method] = q[1:]
		}
	}
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(resp))
}

func (f *fakeBotAPI) Calls() []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedCall(nil), f.calls...)
}

func newTestClient(srv *httptest.Server) *Client {
	cfg := DefaultClientConfig("TOKEN")
	cfg.BaseURL = srv.URL
	cfg.PollTimeout = 1
	cfg.PollBackoff = 10 * time.Millisecond
	cfg.Retrier = retry.New(retry.WithMaxAttempts(3), retry.WithBaseDelay(time.Millisecond), retry.WithJitter(0))
	return NewClient(cfg)
}

func TestClient_SendText(t *testing.T) {
	api, srv := newFakeBotAPI(t)
	api.queue("sendMessage", `{"ok":true,"result":{"message_id":10,"chat":{"id":5,"type":"private"},"text":"hi"}}`)

	msg, err := newTestClient(srv).SendText(context.Background(), 5, "hi")

	require.NoError(t, err)
	assert.Equal(t, int64(10), msg.MessageID)

	calls := api.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "sendMessage", calls[0].Method)
	assert.Equal(t, float64(5), calls[0].Body["chat_id"])
	assert.Equal(t, "hi", calls[0].Body["text"])
}

func TestClient_SendAnimationWithCaption(t *testing.T) {
	api, srv := newFakeBotAPI(t)
	api.queue("sendAnimation", `{"ok":true,"result":{"message_id":1,"chat":{"id":5,"type":"private"}}}`)

	_, err := newTestClient(srv).SendAnimation(context.Background(), 5, "https://example.com/x.gif", "claim here")
	require.NoError(t, err)

	body := api.Calls()[0].Body
	assert.Equal(t, "https://example.com/x.gif", body["animation"])
	assert.Equal(t, "claim here", body["caption"])
}

func TestClient_EditMessageText(t *testing.T) {
	api, srv := newFakeBotAPI(t)
	kb := NewKeyboard().Row(Button("Menu", "menu")).Build()

	err := newTestClient(srv).EditMessageText(context.Background(), 5, 77, "back", "", kb)
	require.NoError(t, err)

	calls := api.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "editMessageText", calls[0].Method)
	assert.Equal(t, float64(77), calls[0].Body["message_id"])
	assert.NotNil(t, calls[0].Body["reply_markup"])
	assert.NotContains(t, calls[0].Body, "parse_mode")
}

func TestClient_RetriesServerErrors(t *testing.T) {
	api, srv := newFakeBotAPI(t)
	api.queue("getMe",
		`{"ok":false,"error_code":502,"description":"Bad Gateway"}`,
		`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"bot"}}`,
	)

	me, err := newTestClient(srv).GetMe(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "bot", me.FirstName)
	assert.Len(t, api.Calls(), 2)
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	api, srv := newFakeBotAPI(t)
	api.queue("sendMessage", `{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`)

	_, err := newTestClient(srv).SendText(context.Background(), 5, "hi")

	require.Error(t, err)
	assert.True(t, IsBlocked(err))
	assert.ErrorIs(t, err, shared.ErrTelegramAPIFailed)
	assert.Len(t, api.Calls(), 1)
}

func TestClient_HonoursRetryAfter(t *testing.T) {
	api, srv := newFakeBotAPI(t)
	api.queue("answerCallbackQuery",
		`{"ok":false,"error_code":429,"description":"Too Many Requests","parameters":{"retry_after":1}}`,
		`{"ok":true,"result":true}`,
	)

	start := time.Now()
	err := newTestClient(srv).AnswerCallbackQuery(context.Background(), "cb1", "")

	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), time.Second)
}

func TestClient_BreakerOpensOnOutage(t *testing.T) {
	api, srv := newFakeBotAPI(t)
	api.queue("getMe", `{"ok":false,"error_code":502,"description":"Bad Gateway"}`)

	cfg := DefaultClientConfig("TOKEN")
	cfg.BaseURL = srv.URL
	cfg.Retrier = retry.New(retry.WithMaxAttempts(2), retry.WithBaseDelay(time.Millisecond), retry.WithJitter(0))
	cfg.Breaker = circuitbreaker.TelegramBreaker(nil,
		circuitbreaker.WithFailureThreshold(1),
		circuitbreaker.WithCooldown(time.Hour),
		circuitbreaker.WithIsFailure(IsOutage),
	)
	client := NewClient(cfg)

	_, err := client.GetMe(context.Background())
	require.Error(t, err)
	assert.Len(t, api.Calls(), 2)
	assert.Equal(t, circuitbreaker.StateOpen, cfg.Breaker.State())

	_, err = client.GetMe(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
	assert.ErrorIs(t, err, shared.ErrTelegramAPIFailed)
	assert.Len(t, api.Calls(), 2, "open breaker must not reach the API")
}

func TestClient_BlockedUserDoesNotTripBreaker(t *testing.T) {
	api, srv := newFakeBotAPI(t)
	api.queue("sendMessage", `{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`)

	cfg := DefaultClientConfig("TOKEN")
	cfg.BaseURL = srv.URL
	cfg.Breaker = circuitbreaker.TelegramBreaker(nil,
		circuitbreaker.WithFailureThreshold(1),
		circuitbreaker.WithIsFailure(IsOutage),
	)
	client := NewClient(cfg)

	for range 3 {
		_, err := client.SendText(context.Background(), 5, "hi")
		require.Error(t, err)
	}
	assert.Equal(t, circuitbreaker.StateClosed, cfg.Breaker.State())
	assert.Len(t, api.Calls(), 3)
}

func TestIsOutage(t *testing.T) {
	assert.True(t, IsOutage(&APIError{Code: 502}))
	assert.True(t, IsOutage(&APIError{Code: 429}))
	assert.False(t, IsOutage(&APIError{Code: 400}))
	assert.False(t, IsOutage(context.Canceled))
}

func TestClient_PollingAdvancesOffset(t *testing.T) {
	api, srv := newFakeBotAPI(t)
	api.queue("getUpdates",
		`{"ok":true,"result":[{"update_id":7,"message":{"message_id":1,"chat":{"id":1,"type":"private"},"text":"a"}},{"update_id":8,"message":{"message_id":2,"chat":{"id":1,"type":"private"},"text":"b"}}]}`,
		`{"ok":true,"result":[]}`,
	)
	client := newTestClient(srv)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var handled atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- client.StartPolling(ctx, func(_ context.Context, u *Update) error {
			if handled.Add(1) == 2 {
				cancel()
			}
			return nil
		})
	}()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("polling did not stop")
	}

	assert.Equal(t, int32(2), handled.Load())
	assert.Equal(t, int64(9), client.Offset())
}

func TestExtractCommand(t *testing.T) {
	msg := &Message{
		Text:     "/submit@challenge_bot 3 https://youtu.be/abc",
		Entities: []MessageEntity{{Type: "bot_command", Offset: 0, Length: 21}},
	}
	assert.Equal(t, "submit", ExtractCommand(msg))
	assert.Equal(t, "3 https://youtu.be/abc", ExtractCommandArgs(msg))

	assert.Empty(t, ExtractCommand(&Message{Text: "hello"}))
	assert.Empty(t, ExtractCommand(nil))
}

type stubSender struct {
	chatID int64
	text   string
	err    error
}

func (s *stubSender) SendText(_ context.Context, chatID int64, text string) (*Message, error) {
	s.chatID, s.text = chatID, text
	return &Message{}, s.err
}

func TestReminderNotifier(t *testing.T) {
	sender := &stubSender{}
	n := NewReminderNotifier(sender, "")

	err := n.NotifyReminder(context.Background(), challenge.ReminderEvent{UserID: 42})

	require.NoError(t, err)
	assert.Equal(t, int64(42), sender.chatID)
	assert.Equal(t, challenge.ReminderText, sender.text)
}

func TestReminderNotifier_WrapsError(t *testing.T) {
	sender := &stubSender{err: &APIError{Code: 403, Description: "blocked"}}
	err := NewReminderNotifier(sender, "custom").NotifyReminder(context.Background(), challenge.ReminderEvent{UserID: 1})

	assert.True(t, IsBlocked(err))
	assert.Equal(t, "custom", sender.text)
}
