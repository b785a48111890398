package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/ignite/listflow/internal/service/settings"
)

const valueAttr = "value"

// SettingsRepo implements settings.Repository on the Settings table.
type SettingsRepo struct {
	client API
	table  string
}

var _ settings.Repository = (*SettingsRepo)(nil)

// NewSettingsRepo creates a DynamoDB-backed settings repository.
func NewSettingsRepo(client API, table string) *SettingsRepo {
	return &SettingsRepo{client: client, table: table}
}

func settingKey(name string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"settingName": str(name)}
}

func (r *SettingsRepo) Get(ctx context.Context, name string, out any) (bool, error) {
	res, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.table),
		Key:            settingKey(name),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return false, fmt.Errorf("get setting %s: %w", name, err)
	}
	v, ok := res.Item[valueAttr]
	if !ok {
		return false, nil
	}
	if err := attributevalue.Unmarshal(v, out); err != nil {
		return false, fmt.Errorf("unmarshaling setting %s: %w", name, err)
	}
	return true, nil
}

func (r *SettingsRepo) Put(ctx context.Context, name string, value any) error {
	av, err := attributevalue.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshaling setting %s: %w", name, err)
	}
	item := settingKey(name)
	item[valueAttr] = av
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put setting %s: %w", name, err)
	}
	return nil
}

func (r *SettingsRepo) Delete(ctx context.Context, name string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.table),
		Key:       settingKey(name),
	})
	if err != nil {
		return fmt.Errorf("delete setting %s: %w", name, err)
	}
	return nil
}

func (r *SettingsRepo) ScanPrefix(ctx context.Context, prefix string) ([]settings.Decode, error) {
	in := &dynamodb.ScanInput{
		TableName:        aws.String(r.table),
		FilterExpression: aws.String("begins_with(settingName, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":prefix": str(prefix),
		},
	}
	var out []settings.Decode
	for {
		res, err := r.client.Scan(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("scan settings %s*: %w", prefix, err)
		}
		for _, item := range res.Items {
			v, ok := item[valueAttr]
			if !ok {
				continue
			}
			out = append(out, func(dst any) error { return attributevalue.Unmarshal(v, dst) })
		}
		if len(res.LastEvaluatedKey) == 0 {
			return out, nil
		}
		in.ExclusiveStartKey = res.LastEvaluatedKey
	}
}
