package distlock

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoAPI is the subset of the DynamoDB client the lease needs.
type DynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// DynamoLock stores the lease as a Settings item keyed by settingName.
// A boolean attribute named after the lease keeps the item readable by
// tools that only know the flag form ({settingName: "isDoingBroadcast",
// isDoingBroadcast: true}).
type DynamoLock struct {
	client DynamoAPI
	table  string
	name   string
	owner  string
	ttl    time.Duration
	now    func() time.Time
}

// NewDynamoLock creates a lease on the Settings item named name.
func NewDynamoLock(client DynamoAPI, table, name, owner string, ttl time.Duration) *DynamoLock {
	return &DynamoLock{client: client, table: table, name: name, owner: owner, ttl: ttl, now: time.Now}
}

// Acquire writes the lease unless another owner holds an unexpired one.
// A set flag without an expiry is held until whoever set it clears it.
func (l *DynamoLock) Acquire(ctx context.Context) (bool, error) {
	now := l.now()
	_, err := l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(l.table),
		Item: map[string]types.AttributeValue{
			"settingName": &types.AttributeValueMemberS{Value: l.name},
			l.name:        &types.AttributeValueMemberBOOL{Value: true},
			"owner":       &types.AttributeValueMemberS{Value: l.owner},
			"expiresAt":   &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Add(l.ttl).UnixMilli(), 10)},
		},
		ConditionExpression: aws.String("attribute_not_exists(settingName) OR attribute_not_exists(#flag) OR #flag = :false OR expiresAt < :now"),
		ExpressionAttributeNames: map[string]string{
			"#flag": l.name,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":false": &types.AttributeValueMemberBOOL{Value: false},
			":now":   &types.AttributeValueMemberN{Value: strconv.FormatInt(now.UnixMilli(), 10)},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return false, nil
		}
		return false, fmt.Errorf("failed to acquire lease %s: %w", l.name, err)
	}
	return true, nil
}

// Release flips the flag back to false if the owner still holds the lease.
func (l *DynamoLock) Release(ctx context.Context) error {
	_, err := l.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(l.table),
		Key: map[string]types.AttributeValue{
			"settingName": &types.AttributeValueMemberS{Value: l.name},
		},
		UpdateExpression:    aws.String("SET #flag = :false REMOVE #owner, expiresAt"),
		ConditionExpression: aws.String("#owner = :owner"),
		ExpressionAttributeNames: map[string]string{
			"#flag":  l.name,
			"#owner": "owner",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":false": &types.AttributeValueMemberBOOL{Value: false},
			":owner": &types.AttributeValueMemberS{Value: l.owner},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			// not ours, or already released
			return nil
		}
		return fmt.Errorf("failed to release lease %s: %w", l.name, err)
	}
	return nil
}

// flagGuard keeps a lease on another backend from being taken while the
// Settings flag of the same name is set.
type flagGuard struct {
	DistLock
	client DynamoAPI
	table  string
	name   string
}

func (g *flagGuard) Acquire(ctx context.Context) (bool, error) {
	out, err := g.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(g.table),
		Key:            map[string]types.AttributeValue{"settingName": &types.AttributeValueMemberS{Value: g.name}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return false, fmt.Errorf("failed to read flag %s: %w", g.name, err)
	}
	if flag, ok := out.Item[g.name].(*types.AttributeValueMemberBOOL); ok && flag.Value {
		return false, nil
	}
	return g.DistLock.Acquire(ctx)
}
