// AngelaMos | 2026
// notify_test.go

package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BfdCampos/workplay/internal/core"
	"github.com/BfdCampos/workplay/internal/identity"
)

type recordingSink struct {
	mu      sync.Mutex
	events  []identity.AccountLinkedEvent
	started chan struct{}
	release chan struct{}
	err     error
}

func (s *recordingSink) Notify(_ context.Context, event identity.AccountLinkedEvent) error {
	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.release != nil {
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return s.err
}

func (s *recordingSink) Events() []identity.AccountLinkedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]identity.AccountLinkedEvent(nil), s.events...)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func event(id string) identity.AccountLinkedEvent {
	return identity.AccountLinkedEvent{
		Provider:          identity.ProviderSlack,
		ProviderAccountID: id,
		UserID:            "user-" + id,
		Name:              "Ali",
	}
}

func TestDispatcherDeliversAndDrainsOnClose(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, 8, time.Second, quietLogger())

	for _, id := range []string{"U1", "U2", "U3"} {
		d.EmitAccountLinked(context.Background(), event(id))
	}
	require.NoError(t, d.Close(context.Background()))

	events := sink.Events()
	require.Len(t, events, 3)
	assert.Equal(t, "U1", events[0].ProviderAccountID)
	assert.Equal(t, "U3", events[2].ProviderAccountID)
}

func TestDispatcherDropsWhenQueueFull(t *testing.T) {
	sink := &recordingSink{
		started: make(chan struct{}, 4),
		release: make(chan struct{}),
	}
	d := NewDispatcher(sink, 1, time.Second, quietLogger())

	d.EmitAccountLinked(context.Background(), event("U1"))
	<-sink.started

	d.EmitAccountLinked(context.Background(), event("U2"))
	d.EmitAccountLinked(context.Background(), event("U3"))

	close(sink.release)
	require.NoError(t, d.Close(context.Background()))

	events := sink.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "U1", events[0].ProviderAccountID)
	assert.Equal(t, "U2", events[1].ProviderAccountID)
}

func TestDispatcherSurvivesSinkFailure(t *testing.T) {
	sink := &recordingSink{err: core.ErrUpstream}
	d := NewDispatcher(sink, 4, time.Second, quietLogger())

	d.EmitAccountLinked(context.Background(), event("U1"))
	d.EmitAccountLinked(context.Background(), event("U2"))
	require.NoError(t, d.Close(context.Background()))

	assert.Len(t, sink.Events(), 2)
}

func TestDispatcherEmitAfterCloseIsIgnored(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, 4, time.Second, quietLogger())
	require.NoError(t, d.Close(context.Background()))

	d.EmitAccountLinked(context.Background(), event("U1"))

	require.NoError(t, d.Close(context.Background()))
	assert.Empty(t, sink.Events())
}

func TestDispatcherCloseHonoursContext(t *testing.T) {
	sink := &recordingSink{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	d := NewDispatcher(sink, 1, time.Second, quietLogger())
	d.EmitAccountLinked(context.Background(), event("U1"))
	<-sink.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := d.Close(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	close(sink.release)
	require.NoError(t, d.Close(context.Background()))
}

type postedMessage struct {
	Text   string `json:"text"`
	Blocks []struct {
		Type      string `json:"type"`
		Accessory *struct {
			Type     string `json:"type"`
			ImageURL string `json:"image_url"`
		} `json:"accessory"`
	} `json:"blocks"`
}

func TestSlackWebhookSinkPostsNewcomerMessage(t *testing.T) {
	var got postedMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.Header.Get("Content-Type"), "application/json")
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	sink := NewSlackWebhookSink(srv.URL, srv.Client())
	err := sink.Notify(context.Background(), identity.AccountLinkedEvent{
		ProviderAccountID: "U123",
		Name:              "Ali",
		Image:             "https://avatars.slack-edge.com/ali_512.png",
	})
	require.NoError(t, err)

	assert.Contains(t, got.Text, "<@U123>")
	assert.Contains(t, got.Text, "Ali")
	require.Len(t, got.Blocks, 1)
	require.NotNil(t, got.Blocks[0].Accessory)
	assert.Equal(t, "https://avatars.slack-edge.com/ali_512.png", got.Blocks[0].Accessory.ImageURL)
}

func TestSlackWebhookSinkRejectsNonOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("invalid_token"))
	}))
	defer srv.Close()

	err := NewSlackWebhookSink(srv.URL, srv.Client()).Notify(context.Background(), event("U1"))

	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrUpstream))
	assert.Contains(t, err.Error(), "403")
}

func TestNewcomerMessageWithoutNameOrImage(t *testing.T) {
	msg := newcomerMessage(identity.AccountLinkedEvent{ProviderAccountID: "U9"})

	assert.Contains(t, msg.Text, "Someone new")
	require.Len(t, msg.Blocks.BlockSet, 1)
	section, ok := msg.Blocks.BlockSet[0].(*slack.SectionBlock)
	require.True(t, ok)
	assert.Nil(t, section.Accessory)
}

func TestNewSinkSelection(t *testing.T) {
	_, isLog := NewSink("", nil, quietLogger()).(*LogSink)
	assert.True(t, isLog)

	_, isSlack := NewSink("https://hooks.slack.com/services/T/B/X", nil, quietLogger()).(*SlackWebhookSink)
	assert.True(t, isSlack)
}
