package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) SendMessage(ctx context.Context, dest, text string, sev Severity) error {
	return m.Called(ctx, dest, text, sev).Error(0)
}

func TestRetrierSucceedsAfterFailures(t *testing.T) {
	n := &mockNotifier{}
	n.On("SendMessage", mock.Anything, "chat", "hello", Warning).Return(errors.New("503")).Twice()
	n.On("SendMessage", mock.Anything, "chat", "hello", Warning).Return(nil).Once()

	r := NewRetrier(n, 3, time.Millisecond)
	assert.True(t, r.Send(context.Background(), "chat", "hello", Warning))
	n.AssertNumberOfCalls(t, "SendMessage", 3)
}

func TestRetrierGivesUpAfterThreeAttempts(t *testing.T) {
	n := &mockNotifier{}
	n.On("SendMessage", mock.Anything, "", "x", Error).Return(errors.New("down"))

	r := NewRetrier(n, 0, 0)
	start := time.Now()
	assert.False(t, r.Send(context.Background(), "", "x", Error))
	n.AssertNumberOfCalls(t, "SendMessage", DefaultAttempts)
	assert.Less(t, time.Since(start), 200*time.Millisecond)
}

func TestRetrierStopsOnCancel(t *testing.T) {
	n := &mockNotifier{}
	n.On("SendMessage", mock.Anything, "", "x", Information).Return(errors.New("down"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := NewRetrier(n, 3, time.Hour)
	assert.False(t, r.Send(ctx, "", "x", Information))
	n.AssertNumberOfCalls(t, "SendMessage", 1)
}

func TestTelegramSendMessage(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tg := NewTelegram("TOKEN", "default-chat", time.Second)
	tg.APIBase = srv.URL
	require.NoError(t, tg.SendMessage(context.Background(), "", "bought", Information))
	assert.Equal(t, "default-chat", got["chat_id"])
	assert.Equal(t, "ℹ️ bought", got["text"])
	assert.Equal(t, "Markdown", got["parse_mode"])

	require.NoError(t, tg.SendMessage(context.Background(), "override", "⚠️ low", Warning))
	assert.Equal(t, "override", got["chat_id"])
	assert.Equal(t, "⚠️ low", got["text"])
}

func TestTelegramErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"ok":false}`))
	}))
	defer srv.Close()

	tg := NewTelegram("TOKEN", "chat", time.Second)
	tg.APIBase = srv.URL
	err := tg.SendMessage(context.Background(), "", "x", Error)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")

	assert.Error(t, NewTelegram("", "", 0).SendMessage(context.Background(), "", "x", Error))
}

func TestStructuredMessageRender(t *testing.T) {
	msg := StructuredMessage{
		Severity: Information,
		Title:    "Bought 0.0005 BTC",
		Sections: []MessageSection{
			{Title: "Order", Lines: []string{"spent 100.00 CZK", " "}},
			{Title: "Empty"},
			{Title: "Totals", Lines: []string{"invested 100.00 CZK"}},
		},
		Footer:    "plan btc-weekly",
		Timestamp: time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC),
	}
	md := msg.RenderMarkdown()
	assert.True(t, strings.HasPrefix(md, "ℹ️ Bought 0.0005 BTC"))
	assert.Contains(t, md, "- spent 100.00 CZK")
	assert.NotContains(t, md, "Empty")
	assert.Contains(t, md, "Time: 2026-01-01 08:00:00 UTC")

	plain := msg.RenderPlain()
	assert.Equal(t, "Bought 0.0005 BTC | Order: spent 100.00 CZK | Totals: invested 100.00 CZK | plan btc-weekly", plain)
}

func TestSeverity(t *testing.T) {
	assert.Equal(t, "❌", Error.Icon())
	assert.Equal(t, "warning", Warning.String())
	assert.NoError(t, LogNotifier{}.SendMessage(context.Background(), "", "hi", Information))
}
