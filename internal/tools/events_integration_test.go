package tools_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nsqio/go-nsq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"itassist/internal/config"
	"itassist/internal/testutils"
	"itassist/internal/tools"
)

func TestTicketEvents_NSQIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	s := testutils.NewIntegrationSuite(t)
	s.Setup()
	defer s.Teardown()

	received := make(chan tools.TicketEvent, 1)
	consumer, err := nsq.NewConsumer(config.TopicTicketCreated, "test", nsq.NewConfig())
	require.NoError(t, err)
	consumer.SetLogger(nil, nsq.LogLevelError)
	consumer.AddHandler(nsq.HandlerFunc(func(m *nsq.Message) error {
		var ev tools.TicketEvent
		if err := json.Unmarshal(m.Body, &ev); err != nil {
			return err
		}
		received <- ev
		return nil
	}))
	defer consumer.Stop()

	r, err := tools.Default(tools.Dependencies{
		Publisher:   s.NSQ,
		TicketTopic: config.TopicTicketCreated,
	})
	require.NoError(t, err)

	out, err := r.Dispatch(context.Background(), string(tools.CreateSupportTicket), map[string]any{
		"issue_summary": "Battery drains in two hours",
		"laptop_model":  "Dell XPS 15",
		"priority":      "High",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "**Ticket Created Successfully**")

	// The topic exists once the first event is published.
	require.NoError(t, consumer.ConnectToNSQD(s.NSQDAddr))

	select {
	case ev := <-received:
		assert.Equal(t, "Dell XPS 15", ev.LaptopModel)
		assert.Equal(t, tools.PriorityHigh, ev.Priority)
		assert.Contains(t, out, ev.TicketID)
	case <-time.After(10 * time.Second):
		t.Fatal("ticket event not delivered")
	}
}
