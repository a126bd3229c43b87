package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "neighborly/pkg/platform/audit"
)

type fakeProducer struct {
	records []*kgo.Record
	err     error
}

func (p *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		p.records = append(p.records, r)
		results = append(results, kgo.ProduceResult{Record: r, Err: p.err})
	}
	return results
}

func TestAppendProducesKeyedJSON(t *testing.T) {
	producer := &fakeProducer{}
	store := NewWithProducer(producer, "neighborly.audit")

	event := audit.Event{
		Category: audit.CategoryLifecycle,
		Action:   string(audit.EventItemExpired),
		Kind:     "listing",
		Subject:  "9f1c",
	}
	require.NoError(t, store.Append(context.Background(), event))

	require.Len(t, producer.records, 1)
	rec := producer.records[0]
	assert.Equal(t, "neighborly.audit", rec.Topic)
	assert.Equal(t, []byte("9f1c"), rec.Key)

	var decoded audit.Event
	require.NoError(t, json.Unmarshal(rec.Value, &decoded))
	assert.Equal(t, event.Action, decoded.Action)
	assert.Equal(t, event.Kind, decoded.Kind)
	assert.Contains(t, rec.Headers, kgo.RecordHeader{Key: "action", Value: []byte("item_expired")})
}

func TestAppendSurfacesProduceError(t *testing.T) {
	store := NewWithProducer(&fakeProducer{err: errors.New("broker unavailable")}, "t")
	err := store.Append(context.Background(), audit.Event{Action: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker unavailable")
}

func TestNewRequiresBrokers(t *testing.T) {
	_, err := New(context.Background(), nil, "t")
	assert.Error(t, err)
}
