package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/ignite/listflow/internal/domain"
)

const confirmedAttr = "confirmed"

func str(v string) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: v}
}

// marshalConfirmation keeps the stored boolean-or-marker form.
func marshalConfirmation(c domain.Confirmation) (types.AttributeValue, error) {
	return attributevalue.Marshal(c.Value())
}

func unmarshalConfirmation(av types.AttributeValue) domain.Confirmation {
	if av == nil {
		return domain.Confirmation{}
	}
	var v any
	if err := attributevalue.Unmarshal(av, &v); err != nil {
		return domain.Confirmation{}
	}
	return domain.ConfirmationFrom(v)
}

func marshalSubscriber(s *domain.Subscriber) (map[string]types.AttributeValue, error) {
	item, err := attributevalue.MarshalMap(s)
	if err != nil {
		return nil, fmt.Errorf("marshaling subscriber: %w", err)
	}
	if item[confirmedAttr], err = marshalConfirmation(s.Confirmed); err != nil {
		return nil, fmt.Errorf("marshaling confirmed: %w", err)
	}
	return item, nil
}

func unmarshalSubscriber(item map[string]types.AttributeValue) (*domain.Subscriber, error) {
	var s domain.Subscriber
	if err := attributevalue.UnmarshalMap(item, &s); err != nil {
		return nil, fmt.Errorf("unmarshaling subscriber: %w", err)
	}
	s.Confirmed = unmarshalConfirmation(item[confirmedAttr])
	return &s, nil
}

func marshalQueueItem(it *domain.QueueItem) (map[string]types.AttributeValue, error) {
	item, err := attributevalue.MarshalMap(it)
	if err != nil {
		return nil, fmt.Errorf("marshaling queue item: %w", err)
	}
	if it.Subscriber != nil {
		snap, err := marshalSubscriber(it.Subscriber)
		if err != nil {
			return nil, err
		}
		item["subscriber"] = &types.AttributeValueMemberM{Value: snap}
	}
	return item, nil
}

func unmarshalQueueItem(item map[string]types.AttributeValue) (*domain.QueueItem, error) {
	var it domain.QueueItem
	if err := attributevalue.UnmarshalMap(item, &it); err != nil {
		return nil, fmt.Errorf("unmarshaling queue item: %w", err)
	}
	if m, ok := item["subscriber"].(*types.AttributeValueMemberM); ok && it.Subscriber != nil {
		it.Subscriber.Confirmed = unmarshalConfirmation(m.Value[confirmedAttr])
	}
	// entries written before runAt was stored carry it only in the sort key
	if it.RunAt == 0 {
		if ms, err := domain.SortKeyMillis(it.RunAtModified); err == nil {
			it.RunAt = ms
		}
	}
	return &it, nil
}

func conditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

// cancelledAt reports whether a cancelled transaction failed its
// condition on operation i.
func cancelledAt(err error, i int) bool {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) || i >= len(tce.CancellationReasons) {
		return false
	}
	code := tce.CancellationReasons[i].Code
	return code != nil && *code == "ConditionalCheckFailed"
}

// retrier backs off between resubmissions of unprocessed batch items.
type retrier struct {
	attempts int
	delay    time.Duration
}

var defaultRetrier = retrier{attempts: 8, delay: 50 * time.Millisecond}

func (r retrier) wait(ctx context.Context, attempt int) error {
	if r.delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(r.delay << attempt)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
