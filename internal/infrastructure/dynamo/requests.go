package dynamo

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-provisioning-api/internal/domain"
)

// RequestRepo provides typed DynamoDB operations for a pending-request table.
// Each provisioned system gets its own instance bound to its own table.
type RequestRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewRequestRepo(client *dynamodb.Client, tableName string) *RequestRepo {
	return &RequestRepo{client: client, tableName: tableName}
}

func (r *RequestRepo) Put(ctx context.Context, req *domain.PendingRequest) error {
	item, err := attributevalue.MarshalMap(req)
	if err != nil {
		return fmt.Errorf("marshal pending request: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

// GetByToken returns the pending request with the given token issued after
// issuedAfter (Unix seconds). The time bound is part of the key condition so
// expired requests are indistinguishable from unknown tokens.
func (r *RequestRepo) GetByToken(ctx context.Context, token string, issuedAfter int64) (*domain.PendingRequest, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("token-index"),
		KeyConditionExpression: aws.String("#t = :tok AND created_at > :cutoff"),
		ExpressionAttributeNames: map[string]string{
			"#t": "token",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":tok":    &types.AttributeValueMemberS{Value: token},
			":cutoff": &types.AttributeValueMemberN{Value: strconv.FormatInt(issuedAfter, 10)},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("pending request not found: %w", domain.ErrNotFound)
	}
	var req domain.PendingRequest
	if err := attributevalue.UnmarshalMap(out.Items[0], &req); err != nil {
		return nil, err
	}
	return &req, nil
}
