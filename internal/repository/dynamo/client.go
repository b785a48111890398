// Package dynamo implements the subscriber, queue and settings
// repositories on DynamoDB.
//
// Table layout:
//
//	Subscribers  hash subscriberId; GSI EmailToStatusIndex (email)
//	Queue        hash queuePlacement, range runAtModified; GSI SubscriberIdIndex (subscriberId)
//	Settings     hash settingName, payload under "value"
//
// Email uniqueness is enforced with claim items in the Subscribers table
// keyed "email#<canonical email>". Claim items carry no email attribute
// and so never appear in EmailToStatusIndex.
package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/ignite/listflow/internal/config"
)

// API is the subset of the DynamoDB client the repositories use.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, opts ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	BatchGetItem(ctx context.Context, in *dynamodb.BatchGetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
	BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, opts ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Index names.
const (
	EmailIndex        = "EmailToStatusIndex"
	SubscriberIDIndex = "SubscriberIdIndex"
)

// LoadAWSConfig resolves region and credentials the same way for every
// AWS client the services build.
func LoadAWSConfig(ctx context.Context, c config.AWSConfig) (aws.Config, error) {
	var cfg aws.Config
	var err error

	if c.Profile != "" {
		cfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(c.Region),
			awsconfig.WithSharedConfigProfile(c.Profile),
		)
	} else {
		cfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(c.Region),
		)
	}
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
	}
	return cfg, nil
}

// NewClient builds a DynamoDB client. A non-empty endpoint points it at
// a local DynamoDB.
func NewClient(cfg aws.Config, endpoint string) *dynamodb.Client {
	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
}
