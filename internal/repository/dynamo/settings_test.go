package dynamo

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/listflow/internal/domain"
)

func TestSettingsRepo_PutGet(t *testing.T) {
	var stored map[string]types.AttributeValue
	api := &fakeAPI{
		putItem: func(in *dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error) {
			stored = in.Item
			return &dynamodb.PutItemOutput{}, nil
		},
		getItem: func(*dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
			return &dynamodb.GetItemOutput{Item: stored}, nil
		},
	}
	r := NewSettingsRepo(api, "Settings")
	ctx := context.Background()

	var lists []domain.List
	found, err := r.Get(ctx, domain.SettingLists, &lists)
	require.NoError(t, err)
	assert.False(t, found)

	src := "News <news@example.com>"
	in := []domain.List{{ID: "list-a", Name: "A", SourceEmail: &src}, {ID: "list-b", Name: "B"}}
	require.NoError(t, r.Put(ctx, domain.SettingLists, in))
	assert.Equal(t, str(domain.SettingLists), stored["settingName"])

	found, err = r.Get(ctx, domain.SettingLists, &lists)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, in, lists)
}

func TestSettingsRepo_BroadcastRoundTrip(t *testing.T) {
	var stored map[string]types.AttributeValue
	api := &fakeAPI{
		putItem: func(in *dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error) {
			stored = in.Item
			return &dynamodb.PutItemOutput{}, nil
		},
		getItem: func(*dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
			return &dynamodb.GetItemOutput{Item: stored}, nil
		},
	}
	r := NewSettingsRepo(api, "Settings")
	ctx := context.Background()

	runAt := int64(1700000000000)
	b := domain.BroadcastRequest{
		BroadcastID: "b-1",
		TemplateID:  "Newsletter",
		Predicate:   domain.Predicate{Tags: []string{"list-a"}, ExcludeTags: []string{"churned"}},
		RunAt:       &runAt,
		Phase:       domain.PhasePending,
	}
	require.NoError(t, r.Put(ctx, domain.SettingPendingBroadcast, &b))

	var got domain.BroadcastRequest
	found, err := r.Get(ctx, domain.SettingPendingBroadcast, &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, b, got)
}

func TestSettingsRepo_ScanPrefix(t *testing.T) {
	pages := [][]map[string]types.AttributeValue{
		{{"settingName": str("autoresponder-a"), "value": &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{"autoresponderId": str("a")}}}},
		{
			{"settingName": str("autoresponder-b"), "value": &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{"autoresponderId": str("b")}}},
			{"settingName": str("autoresponder-broken")},
		},
	}
	api := &fakeAPI{}
	api.scan = func(*dynamodb.ScanInput) (*dynamodb.ScanOutput, error) {
		page := len(api.scans) - 1
		out := &dynamodb.ScanOutput{Items: pages[page]}
		if page == 0 {
			out.LastEvaluatedKey = map[string]types.AttributeValue{"settingName": str("autoresponder-a")}
		}
		return out, nil
	}

	decoders, err := NewSettingsRepo(api, "Settings").ScanPrefix(context.Background(), domain.AutoresponderSettingPrefix)
	require.NoError(t, err)
	require.Len(t, decoders, 2)

	var ids []string
	for _, d := range decoders {
		var a domain.Autoresponder
		require.NoError(t, d(&a))
		ids = append(ids, a.AutoresponderID)
	}
	assert.Equal(t, []string{"a", "b"}, ids)
	assert.Equal(t, "begins_with(settingName, :prefix)", aws.ToString(api.scans[0].FilterExpression))
}

func TestSettingsRepo_Errors(t *testing.T) {
	boom := errors.New("throttled")
	api := &fakeAPI{
		getItem:    func(*dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) { return nil, boom },
		deleteItem: func(*dynamodb.DeleteItemInput) (*dynamodb.DeleteItemOutput, error) { return nil, boom },
	}
	r := NewSettingsRepo(api, "Settings")
	var v any
	_, err := r.Get(context.Background(), "x", &v)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, r.Delete(context.Background(), "x"), boom)
}
