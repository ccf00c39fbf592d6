// Package dynamodb implements the cache store on Amazon DynamoDB.
package dynamodb

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/raember/spoofbot/cache"
)

// DefaultTable is used when the configuration names no table.
const DefaultTable = "spoofbot_cache"

// Config defines the configuration options for the DynamoDB cache store.
type Config struct {
	Table string
}

// Store implements cache.Store backed by a DynamoDB table of payloads keyed
// by location.
type Store struct {
	client *dynamodb.Client

	table string
}

type entryItem struct {
	Location string `dynamodbav:"location"`
	Payload  []byte `dynamodbav:"payload"`
}

func (s *Store) Lookup(ctx context.Context, loc cache.Location) ([]byte, error) {
	key, err := attributevalue.Marshal(string(loc))
	if err != nil {
		return nil, err
	}

	output, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		Key: map[string]types.AttributeValue{
			"location": key,
		},
		ConsistentRead: aws.Bool(true),
		TableName:      aws.String(s.table),
	})
	if err != nil {
		return nil, err
	}

	if output.Item == nil {
		return nil, cache.ErrEntryNotFound
	}

	var item entryItem
	if err := attributevalue.UnmarshalMap(output.Item, &item); err != nil {
		return nil, err
	}
	return item.Payload, nil
}

func (s *Store) Store(ctx context.Context, loc cache.Location, payload []byte) error {
	av, err := attributevalue.MarshalMap(entryItem{
		Location: string(loc),
		Payload:  payload,
	})
	if err != nil {
		return err
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      av,
	})
	return err
}

func (s *Store) Delete(ctx context.Context, loc cache.Location) error {
	key, err := attributevalue.Marshal(string(loc))
	if err != nil {
		return err
	}

	output, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"location": key,
		},
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return err
	}
	if output.Attributes == nil {
		return cache.ErrEntryNotFound
	}
	return nil
}

// New creates a DynamoDB cache store with the provided configuration.
// Returns an error if the client is nil.
func New(client *dynamodb.Client, config *Config) (*Store, error) {
	if client == nil {
		return nil, cache.ValidationError{
			Reason: "nil client",
		}
	}

	table := DefaultTable
	if config != nil && config.Table != "" {
		table = config.Table
	}

	return &Store{
		client: client,

		table: table,
	}, nil
}
