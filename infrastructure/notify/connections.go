// Package notify pushes processing status changes to connected WebSocket clients.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/google/uuid"
)

const (
	connectionTTL = 24 * time.Hour
	userIndex     = "GSI1"
)

// DynamoDBAPI is the subset of the DynamoDB client the connection store uses.
type DynamoDBAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Connection is an open WebSocket connection of one user.
type Connection struct {
	ConnectionID string
	UserID       uuid.UUID
	Endpoint     string
	ConnectedAt  time.Time
}

type connectionItem struct {
	PK           string `dynamodbav:"PK"`
	SK           string `dynamodbav:"SK"`
	GSI1PK       string `dynamodbav:"GSI1PK"`
	GSI1SK       string `dynamodbav:"GSI1SK"`
	ConnectionID string `dynamodbav:"ConnectionID"`
	UserID       string `dynamodbav:"UserID"`
	Endpoint     string `dynamodbav:"Endpoint"`
	ConnectedAt  string `dynamodbav:"ConnectedAt"`
	TTL          int64  `dynamodbav:"TTL"`
}

func connectionKey(connectionID string) map[string]string {
	return map[string]string{"PK": "CONNECTION#" + connectionID, "SK": "METADATA"}
}

func userKey(userID uuid.UUID) string {
	return "USER#" + userID.String()
}

// ConnectionStore keeps connection records in DynamoDB. Records expire via
// the table TTL a day after connecting.
type ConnectionStore struct {
	client DynamoDBAPI
	table  string
}

// NewConnectionStore creates a store over table.
func NewConnectionStore(client DynamoDBAPI, table string) *ConnectionStore {
	return &ConnectionStore{client: client, table: table}
}

// Save records a connection.
func (s *ConnectionStore) Save(ctx context.Context, c Connection) error {
	item, err := attributevalue.MarshalMap(connectionItem{
		PK:           "CONNECTION#" + c.ConnectionID,
		SK:           "METADATA",
		GSI1PK:       userKey(c.UserID),
		GSI1SK:       "CONNECTION#" + c.ConnectionID,
		ConnectionID: c.ConnectionID,
		UserID:       c.UserID.String(),
		Endpoint:     c.Endpoint,
		ConnectedAt:  c.ConnectedAt.UTC().Format(time.RFC3339),
		TTL:          c.ConnectedAt.Add(connectionTTL).Unix(),
	})
	if err != nil {
		return fmt.Errorf("marshal connection: %w", err)
	}

	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("store connection %s: %w", c.ConnectionID, err)
	}
	return nil
}

// Delete removes a connection record. Missing records are not an error.
func (s *ConnectionStore) Delete(ctx context.Context, connectionID string) error {
	key, err := attributevalue.MarshalMap(connectionKey(connectionID))
	if err != nil {
		return err
	}
	if _, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key:       key,
	}); err != nil {
		return fmt.Errorf("delete connection %s: %w", connectionID, err)
	}
	return nil
}

// ListByUser returns the open connections of userID.
func (s *ConnectionStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]Connection, error) {
	expr, err := expression.NewBuilder().
		WithKeyCondition(expression.Key("GSI1PK").Equal(expression.Value(userKey(userID)))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build connection query: %w", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(s.table),
		IndexName:                 aws.String(userIndex),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}

	var conns []Connection
	for {
		out, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("query connections for user %s: %w", userID, err)
		}

		var items []connectionItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
			return nil, fmt.Errorf("unmarshal connections: %w", err)
		}
		for _, it := range items {
			at, _ := time.Parse(time.RFC3339, it.ConnectedAt)
			conns = append(conns, Connection{
				ConnectionID: it.ConnectionID,
				UserID:       userID,
				Endpoint:     it.Endpoint,
				ConnectedAt:  at,
			})
		}

		if len(out.LastEvaluatedKey) == 0 {
			return conns, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}
