package dynamo

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/ignite/listflow/internal/domain"
	"github.com/ignite/listflow/internal/service/queue"
)

// QueueRepo implements queue.Repository on the Queue table.
type QueueRepo struct {
	client API
	table  string
	retry  retrier
}

var _ queue.Repository = (*QueueRepo)(nil)

// NewQueueRepo creates a DynamoDB-backed queue repository.
func NewQueueRepo(client API, table string) *QueueRepo {
	return &QueueRepo{client: client, table: table, retry: defaultRetrier}
}

func queueKey(k domain.QueueKey) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"queuePlacement": str(k.QueuePlacement),
		"runAtModified":  str(k.RunAtModified),
	}
}

func (r *QueueRepo) Put(ctx context.Context, item *domain.QueueItem) error {
	av, err := marshalQueueItem(item)
	if err != nil {
		return err
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.table),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("put queue item: %w", err)
	}
	return nil
}

func (r *QueueRepo) PutBatch(ctx context.Context, items []domain.QueueItem) error {
	if len(items) > queue.MaxBatchWrite {
		return queue.ErrBatchTooLarge
	}
	reqs := make([]types.WriteRequest, 0, len(items))
	for i := range items {
		av, err := marshalQueueItem(&items[i])
		if err != nil {
			return err
		}
		reqs = append(reqs, types.WriteRequest{PutRequest: &types.PutRequest{Item: av}})
	}
	return r.batchWrite(ctx, reqs)
}

func (r *QueueRepo) DeleteBatch(ctx context.Context, keys []domain.QueueKey) error {
	if len(keys) > queue.MaxBatchWrite {
		return queue.ErrBatchTooLarge
	}
	reqs := make([]types.WriteRequest, 0, len(keys))
	for _, k := range keys {
		reqs = append(reqs, types.WriteRequest{DeleteRequest: &types.DeleteRequest{Key: queueKey(k)}})
	}
	return r.batchWrite(ctx, reqs)
}

// batchWrite resubmits unprocessed requests until none remain or the
// retry budget runs out.
func (r *QueueRepo) batchWrite(ctx context.Context, reqs []types.WriteRequest) error {
	for attempt := 0; len(reqs) > 0; attempt++ {
		if attempt > 0 {
			if attempt >= r.retry.attempts {
				return fmt.Errorf("batch write: %d requests left unprocessed", len(reqs))
			}
			if err := r.retry.wait(ctx, attempt-1); err != nil {
				return err
			}
		}
		out, err := r.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{r.table: reqs},
		})
		if err != nil {
			return fmt.Errorf("batch write: %w", err)
		}
		reqs = out.UnprocessedItems[r.table]
	}
	return nil
}

func (r *QueueRepo) GetBatch(ctx context.Context, keys []domain.QueueKey) ([]domain.QueueItem, error) {
	if len(keys) > queue.MaxBatchGet {
		return nil, queue.ErrBatchTooLarge
	}
	if len(keys) == 0 {
		return nil, nil
	}
	pending := make([]map[string]types.AttributeValue, 0, len(keys))
	for _, k := range keys {
		pending = append(pending, queueKey(k))
	}

	var out []domain.QueueItem
	for attempt := 0; len(pending) > 0; attempt++ {
		if attempt > 0 {
			if attempt >= r.retry.attempts {
				return nil, fmt.Errorf("batch get: %d keys left unprocessed", len(pending))
			}
			if err := r.retry.wait(ctx, attempt-1); err != nil {
				return nil, err
			}
		}
		res, err := r.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{
			RequestItems: map[string]types.KeysAndAttributes{
				r.table: {Keys: pending, ConsistentRead: aws.Bool(true)},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("batch get: %w", err)
		}
		for _, av := range res.Responses[r.table] {
			it, err := unmarshalQueueItem(av)
			if err != nil {
				return nil, err
			}
			out = append(out, *it)
		}
		pending = res.UnprocessedKeys[r.table].Keys
	}
	return out, nil
}

// querySubscriber pages through the subscriber index with an optional
// filter.
func (r *QueueRepo) querySubscriber(ctx context.Context, subscriberID, filter string, values map[string]types.AttributeValue) ([]map[string]types.AttributeValue, error) {
	vals := map[string]types.AttributeValue{":sid": str(subscriberID)}
	for k, v := range values {
		vals[k] = v
	}
	in := &dynamodb.QueryInput{
		TableName:                 aws.String(r.table),
		IndexName:                 aws.String(SubscriberIDIndex),
		KeyConditionExpression:    aws.String("subscriberId = :sid"),
		ExpressionAttributeValues: vals,
	}
	if filter != "" {
		in.FilterExpression = aws.String(filter)
	}

	var items []map[string]types.AttributeValue
	for {
		out, err := r.client.Query(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("query subscriber index: %w", err)
		}
		items = append(items, out.Items...)
		if len(out.LastEvaluatedKey) == 0 {
			return items, nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func keysOf(items []map[string]types.AttributeValue) ([]domain.QueueKey, error) {
	keys := make([]domain.QueueKey, 0, len(items))
	for _, av := range items {
		var k domain.QueueKey
		if err := attributevalue.UnmarshalMap(av, &k); err != nil {
			return nil, fmt.Errorf("unmarshaling queue key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, nil
}

func (r *QueueRepo) QueryPending(ctx context.Context, subscriberID string) ([]domain.QueueKey, error) {
	items, err := r.querySubscriber(ctx, subscriberID, "queuePlacement = :queued", map[string]types.AttributeValue{
		":queued": str(domain.PendingPlacement),
	})
	if err != nil {
		return nil, err
	}
	return keysOf(items)
}

// QueryPendingByTagReason filters on the tagReason list projected into
// the subscriber index.
func (r *QueueRepo) QueryPendingByTagReason(ctx context.Context, subscriberID string, tags []string) ([]domain.QueueKey, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	values := map[string]types.AttributeValue{":queued": str(domain.PendingPlacement)}
	conds := make([]string, 0, len(tags))
	for i, t := range tags {
		p := fmt.Sprintf(":t%d", i)
		values[p] = str(t)
		conds = append(conds, "contains(tagReason, "+p+")")
	}
	filter := "queuePlacement = :queued AND (" + strings.Join(conds, " OR ") + ")"
	items, err := r.querySubscriber(ctx, subscriberID, filter, values)
	if err != nil {
		return nil, err
	}
	return keysOf(items)
}

func (r *QueueRepo) QueryBySubscriber(ctx context.Context, subscriberID string) ([]domain.QueueItem, error) {
	items, err := r.querySubscriber(ctx, subscriberID, "", nil)
	if err != nil {
		return nil, err
	}
	out := make([]domain.QueueItem, 0, len(items))
	for _, av := range items {
		it, err := unmarshalQueueItem(av)
		if err != nil {
			return nil, err
		}
		out = append(out, *it)
	}
	return out, nil
}

func (r *QueueRepo) updateExisting(ctx context.Context, key domain.QueueKey, b *updateBuilder) error {
	if b.err != nil {
		return b.err
	}
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.table),
		Key:                       queueKey(key),
		UpdateExpression:          aws.String(b.expression()),
		ConditionExpression:       aws.String("attribute_exists(queuePlacement)"),
		ExpressionAttributeNames:  b.names,
		ExpressionAttributeValues: b.values,
	})
	switch {
	case err == nil:
		return nil
	case conditionFailed(err):
		return queue.ErrItemGone
	default:
		return fmt.Errorf("update queue item %s: %w", key, err)
	}
}

func (r *QueueRepo) UpdateSnapshot(ctx context.Context, key domain.QueueKey, snapshot *domain.Subscriber) error {
	snap, err := marshalSubscriber(snapshot)
	if err != nil {
		return err
	}
	b := newUpdateBuilder()
	b.set("subscriber", &types.AttributeValueMemberM{Value: snap})
	return r.updateExisting(ctx, key, b)
}

func (r *QueueRepo) MarkInteraction(ctx context.Context, key domain.QueueKey, field queue.InteractionField, at int64) error {
	b := newUpdateBuilder()
	b.set(string(field), at)
	return r.updateExisting(ctx, key, b)
}
