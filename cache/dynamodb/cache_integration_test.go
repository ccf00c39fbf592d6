//go:build integration

package dynamodb

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raember/spoofbot/cache"
)

// Requires dynamodb-local listening on the default endpoint.
func setup(t *testing.T) *dynamodb.Client {
	t.Helper()

	awsconfig, err := config.LoadDefaultConfig(context.TODO(), config.WithRegion("local"))
	require.NoError(t, err)

	client := dynamodb.NewFromConfig(awsconfig)
	require.NoError(t, createTable(context.Background(), client, "test"))

	t.Cleanup(func() { cleanup(t, client) })
	return client
}

func cleanup(t *testing.T, client *dynamodb.Client) {
	t.Helper()

	output, err := client.ListTables(context.Background(), &dynamodb.ListTablesInput{})
	if err != nil {
		t.Log(err)
		return
	}
	for _, name := range output.TableNames {
		if _, err := client.DeleteTable(context.Background(), &dynamodb.DeleteTableInput{
			TableName: &name,
		}); err != nil {
			t.Log(err)
		}
	}
}

func TestIntegrationRoundTrip(t *testing.T) {
	ctx := context.Background()
	client := setup(t)

	store, err := New(client, &Config{Table: "test"})
	require.NoError(t, err)

	loc := cache.Location("example.com/a.cache")
	require.NoError(t, store.Store(ctx, loc, []byte("payload")))

	payload, err := store.Lookup(ctx, loc)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), payload)

	require.NoError(t, store.Delete(ctx, loc))

	_, err = store.Lookup(ctx, loc)
	assert.ErrorIs(t, err, cache.ErrEntryNotFound)

	err = store.Delete(ctx, loc)
	assert.ErrorIs(t, err, cache.ErrEntryNotFound)
}
