package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/listflow/internal/config"
	"github.com/ignite/listflow/internal/domain"
	"github.com/ignite/listflow/internal/pkg/errs"
)

const clickEvent = `{
  "eventType": "Click",
  "mail": {
    "timestamp": "2024-01-02T08:00:00.000Z",
    "messageId": "0100018c-abc",
    "destination": ["A@Example.com"],
    "tags": {"DateStamp": ["2024-01-02"], "RunAtModified": ["1704182400000_000000001"], "Interaction-Click": ["add-tag_vip"]}
  },
  "click": {"link": "https://example.com/offer", "timestamp": "2024-01-02T09:30:00.000Z"}
}`

func notification(t *testing.T, msg string) string {
	t.Helper()
	b, err := json.Marshal(map[string]string{"Type": "Notification", "MessageId": "sns-1", "Message": msg})
	require.NoError(t, err)
	return string(b)
}

func TestDecode_ClickInEnvelope(t *testing.T) {
	ev, err := Decode([]byte(notification(t, clickEvent)))
	require.NoError(t, err)
	assert.Equal(t, domain.EventClick, ev.Type)
	assert.Equal(t, "a@example.com", ev.Recipient)
	assert.Equal(t, "https://example.com/offer", ev.Link)
	assert.Equal(t, "0100018c-abc", ev.MessageID)
	assert.Equal(t, "add-tag_vip", ev.Tag(domain.TagInteractionClick))
	assert.Equal(t, 9, ev.Timestamp.Hour())
}

func TestDecode_RawEvent(t *testing.T) {
	ev, err := Decode([]byte(clickEvent))
	require.NoError(t, err)
	assert.Equal(t, domain.EventClick, ev.Type)
}

func TestDecode_BounceAndComplaintRecipients(t *testing.T) {
	bounce := `{"eventType":"Bounce","mail":{"destination":["list@example.com"]},
	  "bounce":{"bounceType":"Permanent","bouncedRecipients":[{"emailAddress":"Gone@Example.com"}]}}`
	ev, err := Decode([]byte(notification(t, bounce)))
	require.NoError(t, err)
	assert.Equal(t, "gone@example.com", ev.Recipient)
	assert.Equal(t, domain.BouncePermanent, ev.BounceType)

	complaint := `{"notificationType":"Complaint","mail":{"destination":["x@example.com"]},
	  "complaint":{"complainedRecipients":[{"emailAddress":"angry@example.com"}]}}`
	ev, err = Decode([]byte(complaint))
	require.NoError(t, err)
	assert.Equal(t, domain.EventComplaint, ev.Type)
	assert.Equal(t, "angry@example.com", ev.Recipient)
}

func TestDecode_Rejects(t *testing.T) {
	_, err := Decode([]byte(`not json`))
	assert.Error(t, err)

	_, err = Decode([]byte(`{"Type":"SubscriptionConfirmation","Message":"confirm"}`))
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = Decode([]byte(`{"mail":{"destination":["a@example.com"]}}`))
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = Decode([]byte(`{"eventType":"Open","mail":{}}`))
	assert.True(t, errs.Is(err, errs.ErrValidation))
}

type fakeSQS struct {
	mu       sync.Mutex
	block    bool
	messages []types.Message
	received []*sqs.ReceiveMessageInput
	deleted  []string
	err      error
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.mu.Lock()
	if f.block && len(f.messages) == 0 {
		f.mu.Unlock()
		<-ctx.Done()
		return nil, ctx.Err()
	}
	defer f.mu.Unlock()
	f.received = append(f.received, in)
	if f.err != nil {
		return nil, f.err
	}
	out := &sqs.ReceiveMessageOutput{Messages: f.messages}
	f.messages = nil
	return out, nil
}

func (f *fakeSQS) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, aws.ToString(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func (f *fakeSQS) deletedSnapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

type recordingHandler struct {
	events []*domain.InteractionEvent
	failOn string
}

func (h *recordingHandler) Handle(_ context.Context, ev *domain.InteractionEvent) error {
	h.events = append(h.events, ev)
	if ev.Recipient == h.failOn {
		return errors.New("store unavailable")
	}
	return nil
}

var testEvents = config.EventsConfig{QueueURL: "https://sqs.local/events", MaxMessages: 10, WaitSeconds: 20, VisibilitySeconds: 60}

func message(handle, body string) types.Message {
	return types.Message{MessageId: aws.String("m-" + handle), ReceiptHandle: aws.String(handle), Body: aws.String(body)}
}

func TestConsumer_PollOnce(t *testing.T) {
	failing := `{"eventType":"Open","mail":{"destination":["fail@example.com"]}}`
	api := &fakeSQS{messages: []types.Message{
		message("ok", notification(t, clickEvent)),
		message("bad", "{{{"),
		message("retry", notification(t, failing)),
	}}
	h := &recordingHandler{failOn: "fail@example.com"}
	c := NewConsumer(api, h, testEvents)

	require.NoError(t, c.PollOnce(context.Background()))

	require.Len(t, api.received, 1)
	in := api.received[0]
	assert.Equal(t, "https://sqs.local/events", aws.ToString(in.QueueUrl))
	assert.EqualValues(t, 10, in.MaxNumberOfMessages)
	assert.EqualValues(t, 20, in.WaitTimeSeconds)
	assert.EqualValues(t, 60, in.VisibilityTimeout)

	assert.Len(t, h.events, 2)
	assert.Equal(t, []string{"ok", "bad"}, api.deleted, "failed events stay queued")
}

func TestConsumer_ReceiveError(t *testing.T) {
	api := &fakeSQS{err: errors.New("throttled")}
	c := NewConsumer(api, &recordingHandler{}, testEvents)
	assert.Error(t, c.PollOnce(context.Background()))
}

func TestConsumer_StartStop(t *testing.T) {
	api := &fakeSQS{block: true, messages: []types.Message{message("ok", clickEvent)}}
	c := NewConsumer(api, &recordingHandler{}, testEvents)

	c.Start(context.Background())
	assert.Eventually(t, func() bool { return len(api.deletedSnapshot()) == 1 }, time.Second, 5*time.Millisecond)
	c.Stop()
	c.Stop()
}
