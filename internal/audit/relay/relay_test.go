package relay_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/r16a/metis/internal/audit"
	"github.com/r16a/metis/internal/audit/relay"
)

type captureProducer struct {
	mu      sync.Mutex
	records []*kgo.Record
}

func (p *captureProducer) Produce(_ context.Context, r *kgo.Record, promise func(*kgo.Record, error)) {
	p.mu.Lock()
	p.records = append(p.records, r)
	p.mu.Unlock()
	promise(r, nil)
}

func (p *captureProducer) produced() []*kgo.Record {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*kgo.Record(nil), p.records...)
}

func TestRelayPublishesRecords(t *testing.T) {
	producer := &captureProducer{}
	sink := make(chan audit.Record, 4)
	r := relay.New(producer, sink, "metis.audit.records")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = r.Run(ctx)
		close(done)
	}()

	record := audit.Record{
		ID:          uuid.New(),
		Operation:   audit.OperationDelete,
		EntityType:  "Tenant",
		TenantID:    "t1",
		PerformedBy: "SYSTEM",
		Timestamp:   time.Now(),
		Description: "Deleted tenant 'Acme' and all related data: 1 users, 0 services, 0 bookings",
	}
	sink <- record

	require.Eventually(t, func() bool {
		return len(producer.produced()) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done

	produced := producer.produced()[0]
	require.Equal(t, "metis.audit.records", produced.Topic)
	require.Equal(t, []byte("t1"), produced.Key)

	var decoded audit.Record
	require.NoError(t, json.Unmarshal(produced.Value, &decoded))
	require.Equal(t, record.ID, decoded.ID)
	require.Equal(t, record.Description, decoded.Description)
}

func TestRelayStopsOnContextCancel(t *testing.T) {
	r := relay.New(&captureProducer{}, make(chan audit.Record), "topic")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
