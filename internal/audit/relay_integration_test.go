//go:build integration

package audit_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"healthexchange/internal/audit"
	"healthexchange/internal/platform/kafka"
	"healthexchange/internal/platform/postgres"
	id "healthexchange/pkg/domain"
	"healthexchange/pkg/testutil/containers"
)

// TestOutboxRelayDeliversToBroker drives the full path: event -> postgres
// outbox -> relay -> broker topic.
func TestOutboxRelayDeliversToBroker(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := postgres.Open(ctx, containers.NewPostgresDSN(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, postgres.EnsureSchema(ctx, db))

	brokers := containers.NewRedpandaBrokers(t)
	const topic = "healthexchange.audit.test"

	producer, err := kafka.NewProducer(ctx, brokers, topic)
	require.NoError(t, err)
	t.Cleanup(producer.Close)

	outbox := audit.NewPostgresStore(db)
	publisher := audit.NewPublisher(outbox)

	actor := id.NewPrincipal()
	require.NoError(t, publisher.Emit(ctx, audit.Event{
		Kind:           audit.KindEmergencyAccessGranted,
		Actor:          actor,
		SubjectShortID: 123456,
		RelatedShortID: 234567,
	}))

	relay := audit.NewRelay(outbox, producer, slog.New(slog.DiscardHandler), time.Second)
	require.NoError(t, relay.Drain(ctx))

	// The row must now be marked published.
	rows, err := outbox.NextUnpublished(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, rows)

	// And the payload must be readable from the topic.
	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	t.Cleanup(consumer.Close)

	fetches := consumer.PollFetches(ctx)
	require.NoError(t, fetches.Err())
	records := fetches.Records()
	require.NotEmpty(t, records)

	var payload struct {
		Kind  string `json:"Kind"`
		Actor string `json:"Actor"`
	}
	require.NoError(t, json.Unmarshal(records[0].Value, &payload))
	assert.Equal(t, string(audit.KindEmergencyAccessGranted), payload.Kind)
	assert.Equal(t, actor.String(), payload.Actor)
}
