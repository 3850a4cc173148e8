package listener

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fekuna/funeral-inventory-service/internal/casework"
	"github.com/fekuna/funeral-inventory-service/pkg/logger"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	op       string
	caseID   string
	casket   casework.Casket
	previous casework.Casket
}

type recordingCases struct {
	mu    sync.Mutex
	calls []call
}

func (r *recordingCases) record(c call) (*casework.Allocation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
	return &casework.Allocation{CaseID: c.caseID}, nil
}

func (r *recordingCases) Open(_ context.Context, id string, c casework.Casket, _ string) (*casework.Allocation, error) {
	return r.record(call{op: "open", caseID: id, casket: c})
}

func (r *recordingCases) Complete(_ context.Context, id string, c casework.Casket, _ string) (*casework.Allocation, error) {
	return r.record(call{op: "complete", caseID: id, casket: c})
}

func (r *recordingCases) Cancel(_ context.Context, id, _ string) (*casework.Allocation, error) {
	return r.record(call{op: "cancel", caseID: id})
}

func (r *recordingCases) ChangeCasket(_ context.Context, id string, prev, next casework.Casket, _ string) (*casework.Allocation, error) {
	return r.record(call{op: "change", caseID: id, casket: next, previous: prev})
}

// scriptedReader replays messages then blocks until the context ends.
type scriptedReader struct {
	msgs []kafka.Message
	errs []error
}

func (s *scriptedReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return kafka.Message{}, err
	}
	if len(s.msgs) > 0 {
		m := s.msgs[0]
		s.msgs = s.msgs[1:]
		return m, nil
	}
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func encode(t *testing.T, ev CaseEvent) kafka.Message {
	t.Helper()
	b, err := json.Marshal(ev)
	require.NoError(t, err)
	return kafka.Message{Value: b}
}

func TestProcessMessageDispatchesByEventType(t *testing.T) {
	cases := &recordingCases{}
	l := NewCaseListener(nil, cases, logger.NewNop())
	ctx := context.Background()
	oak := casework.Casket{Description: "Oak", Branch: "North"}
	pine := casework.Casket{Description: "Pine", Branch: "North"}

	for _, ev := range []CaseEvent{
		{EventType: EventCaseCreated, Payload: CasePayload{CaseID: "c1", Casket: oak}},
		{EventType: EventCaseCasketChanged, Payload: CasePayload{CaseID: "c1", Casket: pine, PreviousCasket: &oak}},
		{EventType: EventCaseCompleted, Payload: CasePayload{CaseID: "c1", Casket: pine}},
		{EventType: EventCaseCancelled, Payload: CasePayload{CaseID: "c2"}},
		{EventType: "CaseArchived", Payload: CasePayload{CaseID: "c3"}},
	} {
		b, err := json.Marshal(ev)
		require.NoError(t, err)
		l.processMessage(ctx, b)
	}
	l.processMessage(ctx, []byte("{not json"))

	require.Len(t, cases.calls, 4)
	assert.Equal(t, call{op: "open", caseID: "c1", casket: oak}, cases.calls[0])
	assert.Equal(t, call{op: "change", caseID: "c1", casket: pine, previous: oak}, cases.calls[1])
	assert.Equal(t, "complete", cases.calls[2].op)
	assert.Equal(t, call{op: "cancel", caseID: "c2"}, cases.calls[3])
}

func TestStartConsumesUntilCancelled(t *testing.T) {
	cases := &recordingCases{}
	reader := &scriptedReader{
		errs: []error{errors.New("broker unavailable")},
		msgs: []kafka.Message{
			encode(t, CaseEvent{EventType: EventCaseCreated, Payload: CasePayload{CaseID: "c1"}}),
			encode(t, CaseEvent{EventType: EventCaseCancelled, Payload: CasePayload{CaseID: "c1"}}),
		},
	}
	l := NewCaseListener(reader, cases, logger.NewNop())
	l.backoff = 0

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		cases.mu.Lock()
		defer cases.mu.Unlock()
		return len(cases.calls) == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}
