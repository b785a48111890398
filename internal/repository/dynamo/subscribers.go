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
	"github.com/ignite/listflow/internal/service/subscriber"
)

const claimPrefix = "email#"

// SubscriberRepo implements subscriber.Repository on the Subscribers table.
type SubscriberRepo struct {
	client API
	table  string
}

var _ subscriber.Repository = (*SubscriberRepo)(nil)

// NewSubscriberRepo creates a DynamoDB-backed subscriber repository.
func NewSubscriberRepo(client API, table string) *SubscriberRepo {
	return &SubscriberRepo{client: client, table: table}
}

func subscriberKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"subscriberId": str(id)}
}

func claimKey(email string) map[string]types.AttributeValue {
	return subscriberKey(claimPrefix + email)
}

func (r *SubscriberRepo) Get(ctx context.Context, subscriberID string) (*domain.Subscriber, error) {
	if subscriberID == "" || strings.HasPrefix(subscriberID, claimPrefix) {
		return nil, subscriber.ErrNotFound
	}
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.table),
		Key:            subscriberKey(subscriberID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get subscriber: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, subscriber.ErrNotFound
	}
	return unmarshalSubscriber(out.Item)
}

// GetByEmail resolves the id through the email index, then reads the
// full item consistently.
func (r *SubscriberRepo) GetByEmail(ctx context.Context, email string) (*domain.Subscriber, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.table),
		IndexName:              aws.String(EmailIndex),
		KeyConditionExpression: aws.String("email = :email"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":email": str(email),
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("query email index: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, subscriber.ErrNotFound
	}
	var row struct {
		SubscriberID string `dynamodbav:"subscriberId"`
	}
	if err := attributevalue.UnmarshalMap(out.Items[0], &row); err != nil {
		return nil, fmt.Errorf("unmarshaling email index row: %w", err)
	}
	return r.Get(ctx, row.SubscriberID)
}

func (r *SubscriberRepo) claim(email, subscriberID string) *types.Put {
	item := claimKey(email)
	item["claimedBy"] = str(subscriberID)
	return &types.Put{
		TableName:           aws.String(r.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(subscriberId) OR claimedBy = :id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":id": str(subscriberID),
		},
	}
}

func (r *SubscriberRepo) release(email, subscriberID string) *types.Delete {
	return &types.Delete{
		TableName:           aws.String(r.table),
		Key:                 claimKey(email),
		ConditionExpression: aws.String("attribute_not_exists(subscriberId) OR claimedBy = :id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":id": str(subscriberID),
		},
	}
}

// Create writes the subscriber and its email claim in one transaction.
func (r *SubscriberRepo) Create(ctx context.Context, s *domain.Subscriber) error {
	item, err := marshalSubscriber(s)
	if err != nil {
		return err
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:           aws.String(r.table),
				Item:                item,
				ConditionExpression: aws.String("attribute_not_exists(subscriberId)"),
			}},
			{Put: r.claim(s.Email, s.SubscriberID)},
		},
	})
	switch {
	case err == nil:
		return nil
	case cancelledAt(err, 1):
		return subscriber.ErrEmailTaken
	default:
		return fmt.Errorf("create subscriber: %w", err)
	}
}

func (r *SubscriberRepo) Put(ctx context.Context, s *domain.Subscriber) error {
	item, err := marshalSubscriber(s)
	if err != nil {
		return err
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put subscriber: %w", err)
	}
	return nil
}

// updateBuilder assembles a SET/REMOVE update expression.
type updateBuilder struct {
	sets    []string
	removes []string
	names   map[string]string
	values  map[string]types.AttributeValue
	err     error
}

func newUpdateBuilder() *updateBuilder {
	return &updateBuilder{names: map[string]string{}, values: map[string]types.AttributeValue{}}
}

func (b *updateBuilder) set(attr string, v any) {
	if b.err != nil {
		return
	}
	av, ok := v.(types.AttributeValue)
	if !ok {
		var err error
		if av, err = attributevalue.Marshal(v); err != nil {
			b.err = fmt.Errorf("marshaling %s: %w", attr, err)
			return
		}
	}
	n := fmt.Sprintf("#a%d", len(b.names))
	b.names[n] = attr
	b.values[":"+n[1:]] = av
	b.sets = append(b.sets, n+" = :"+n[1:])
}

func (b *updateBuilder) remove(attr string) {
	n := fmt.Sprintf("#a%d", len(b.names))
	b.names[n] = attr
	b.removes = append(b.removes, n)
}

func (b *updateBuilder) expression() string {
	var parts []string
	if len(b.sets) > 0 {
		parts = append(parts, "SET "+strings.Join(b.sets, ", "))
	}
	if len(b.removes) > 0 {
		parts = append(parts, "REMOVE "+strings.Join(b.removes, ", "))
	}
	return strings.Join(parts, " ")
}

func patchUpdate(p subscriber.Patch) *updateBuilder {
	b := newUpdateBuilder()
	if p.Tags != nil {
		tags := *p.Tags
		if tags == nil {
			tags = []string{}
		}
		b.set("tags", tags)
	}
	if p.Confirmed != nil {
		if av, err := marshalConfirmation(*p.Confirmed); err != nil {
			b.err = err
		} else {
			b.set(confirmedAttr, av)
		}
	}
	if p.Unsubscribed != nil {
		b.set("unsubscribed", *p.Unsubscribed)
	}
	if p.UnsubscribeReason != nil {
		b.set("unsubscribeReason", *p.UnsubscribeReason)
	}
	if p.UnsubscribeTimestamp != nil {
		b.set("unsubscribeTimestamp", *p.UnsubscribeTimestamp)
	}
	if p.ConfirmTimestamp != nil {
		b.set("confirmTimestamp", *p.ConfirmTimestamp)
	}
	if p.LastConfirmation != nil {
		b.set("lastConfirmation", *p.LastConfirmation)
	}
	if p.UnsubscribeToken != nil {
		b.set("unsubscribeToken", *p.UnsubscribeToken)
	}
	if p.LastOpen != nil {
		b.set("lastOpen", *p.LastOpen)
	}
	if p.LastClick != nil {
		b.set("lastClick", *p.LastClick)
	}
	if p.LastOpenOrClick != nil {
		b.set("lastOpenOrClick", *p.LastOpenOrClick)
	}
	return b
}

func (r *SubscriberRepo) Update(ctx context.Context, subscriberID string, p subscriber.Patch) error {
	if p.Empty() {
		return nil
	}
	b := patchUpdate(p)
	if b.err != nil {
		return b.err
	}
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.table),
		Key:                       subscriberKey(subscriberID),
		UpdateExpression:          aws.String(b.expression()),
		ConditionExpression:       aws.String("attribute_exists(subscriberId)"),
		ExpressionAttributeNames:  b.names,
		ExpressionAttributeValues: b.values,
	})
	switch {
	case err == nil:
		return nil
	case conditionFailed(err):
		return subscriber.ErrNotFound
	default:
		return fmt.Errorf("update subscriber: %w", err)
	}
}

// ChangeEmail moves the claim and rewrites the address in one transaction.
func (r *SubscriberRepo) ChangeEmail(ctx context.Context, subscriberID, oldEmail, newEmail, displayEmail string) error {
	b := newUpdateBuilder()
	b.set("email", newEmail)
	if displayEmail != "" {
		b.set("displayEmail", displayEmail)
	} else {
		b.remove("displayEmail")
	}
	if b.err != nil {
		return b.err
	}
	_, err := r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Delete: r.release(oldEmail, subscriberID)},
			{Put: r.claim(newEmail, subscriberID)},
			{Update: &types.Update{
				TableName:                 aws.String(r.table),
				Key:                       subscriberKey(subscriberID),
				UpdateExpression:          aws.String(b.expression()),
				ConditionExpression:       aws.String("attribute_exists(subscriberId)"),
				ExpressionAttributeNames:  b.names,
				ExpressionAttributeValues: b.values,
			}},
		},
	})
	switch {
	case err == nil:
		return nil
	case cancelledAt(err, 1):
		return subscriber.ErrEmailTaken
	case cancelledAt(err, 2):
		return subscriber.ErrNotFound
	default:
		return fmt.Errorf("change subscriber email: %w", err)
	}
}

// Delete removes the subscriber, then its claim if it still holds it.
func (r *SubscriberRepo) Delete(ctx context.Context, subscriberID, email string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.table),
		Key:       subscriberKey(subscriberID),
	})
	if err != nil {
		return fmt.Errorf("delete subscriber: %w", err)
	}
	rel := r.release(email, subscriberID)
	_, err = r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                 rel.TableName,
		Key:                       rel.Key,
		ConditionExpression:       rel.ConditionExpression,
		ExpressionAttributeValues: rel.ExpressionAttributeValues,
	})
	if err != nil && !conditionFailed(err) {
		return fmt.Errorf("delete email claim: %w", err)
	}
	return nil
}
