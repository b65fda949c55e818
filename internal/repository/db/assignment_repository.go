package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/zzenonn/vidshard/internal/domain"
	apperrors "github.com/zzenonn/vidshard/internal/errors"
	"github.com/zzenonn/vidshard/internal/repository/migrate"
)

const (
	activeSlot        = "ACTIVE"
	historySlotPrefix = "HIST#"
	maxPutAttempts    = 3
)

// DynamoAPI is the subset of the DynamoDB client the assignment repository uses.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// assignmentItem is the stored shape. Only the ACTIVE slot carries ActiveShardID,
// which keeps history rows out of the per-shard index.
type assignmentItem struct {
	TenantID      string     `dynamodbav:"tenant_id"`
	Slot          string     `dynamodbav:"slot"`
	ID            string     `dynamodbav:"id"`
	ShardID       string     `dynamodbav:"shard_id"`
	ActiveShardID string     `dynamodbav:"active_shard_id,omitempty"`
	AssignedAt    time.Time  `dynamodbav:"assigned_at"`
	IsActive      bool       `dynamodbav:"is_active"`
	DeactivatedAt *time.Time `dynamodbav:"deactivated_at,omitempty"`
}

func (i assignmentItem) toDomain() domain.TenantAssignment {
	return domain.TenantAssignment{
		ID:            i.ID,
		TenantID:      i.TenantID,
		ShardID:       i.ShardID,
		AssignedAt:    i.AssignedAt,
		IsActive:      i.IsActive,
		DeactivatedAt: i.DeactivatedAt,
	}
}

// AssignmentRepository manages DynamoDB interactions for tenant assignments.
type AssignmentRepository struct {
	client    DynamoAPI
	tableName string
}

// NewAssignmentRepository initializes a new AssignmentRepository.
func NewAssignmentRepository(client DynamoAPI, tableName string) *AssignmentRepository {
	if tableName == "" {
		tableName = migrate.TenantAssignmentsTableName
	}
	return &AssignmentRepository{
		client:    client,
		tableName: tableName,
	}
}

func activeKey(tenantID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"tenant_id": &types.AttributeValueMemberS{Value: tenantID},
		"slot":      &types.AttributeValueMemberS{Value: activeSlot},
	}
}

// GetActive retrieves the tenant's active assignment with a strongly consistent read.
func (repo *AssignmentRepository) GetActive(ctx context.Context, tenantID string) (*domain.TenantAssignment, error) {
	result, err := repo.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(repo.tableName),
		Key:            activeKey(tenantID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	if result.Item == nil {
		return nil, nil
	}

	var item assignmentItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal assignment: %w", err)
	}

	a := item.toDomain()
	return &a, nil
}

// CreateIfAbsent writes the ACTIVE slot only if it does not exist yet. A failed
// condition means another writer won; its item is returned with created=false.
func (repo *AssignmentRepository) CreateIfAbsent(ctx context.Context, tenantID, shardID string) (domain.TenantAssignment, bool, error) {
	if tenantID == "" || shardID == "" {
		return domain.TenantAssignment{}, false, apperrors.ErrMissingRequiredFields
	}

	for attempt := 0; attempt < maxPutAttempts; attempt++ {
		item := assignmentItem{
			TenantID:      tenantID,
			Slot:          activeSlot,
			ID:            uuid.NewString(),
			ShardID:       shardID,
			ActiveShardID: shardID,
			AssignedAt:    time.Now().UTC(),
			IsActive:      true,
		}

		av, err := attributevalue.MarshalMap(item)
		if err != nil {
			return domain.TenantAssignment{}, false, fmt.Errorf("failed to marshal assignment: %w", err)
		}

		_, err = repo.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:           aws.String(repo.tableName),
			Item:                av,
			ConditionExpression: aws.String("attribute_not_exists(tenant_id)"),
		})
		if err == nil {
			return item.toDomain(), true, nil
		}

		var conditionFailed *types.ConditionalCheckFailedException
		if !errors.As(err, &conditionFailed) {
			return domain.TenantAssignment{}, false, fmt.Errorf("failed to create assignment: %w", err)
		}

		existing, err := repo.GetActive(ctx, tenantID)
		if err != nil {
			return domain.TenantAssignment{}, false, err
		}
		if existing != nil {
			return *existing, false, nil
		}
	}

	return domain.TenantAssignment{}, false, fmt.Errorf("assignment for tenant %s changed during %d put attempts", tenantID, maxPutAttempts)
}

// CountActive counts ACTIVE items on the sparse per-shard index. GSI reads are
// eventually consistent, so the count can briefly lag recent assignments.
func (repo *AssignmentRepository) CountActive(ctx context.Context, shardID string) (int, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(repo.tableName),
		IndexName:              aws.String(migrate.ActiveShardIndex),
		KeyConditionExpression: aws.String("active_shard_id = :shard"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":shard": &types.AttributeValueMemberS{Value: shardID},
		},
		Select: types.SelectCount,
	}

	total := 0
	for {
		result, err := repo.client.Query(ctx, input)
		if err != nil {
			return 0, fmt.Errorf("failed to count assignments: %w", err)
		}
		total += int(result.Count)

		if len(result.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}

	return total, nil
}

// Deactivate moves the ACTIVE item to a history slot in one transaction.
func (repo *AssignmentRepository) Deactivate(ctx context.Context, tenantID string) (domain.TenantAssignment, error) {
	current, err := repo.GetActive(ctx, tenantID)
	if err != nil {
		return domain.TenantAssignment{}, err
	}
	if current == nil {
		return domain.TenantAssignment{}, fmt.Errorf("%w: %s", apperrors.ErrTenantNotPlaced, tenantID)
	}

	now := time.Now().UTC()
	history := assignmentItem{
		TenantID:      tenantID,
		Slot:          fmt.Sprintf("%s%s#%s", historySlotPrefix, now.Format(time.RFC3339Nano), current.ID),
		ID:            current.ID,
		ShardID:       current.ShardID,
		AssignedAt:    current.AssignedAt,
		IsActive:      false,
		DeactivatedAt: &now,
	}
	av, err := attributevalue.MarshalMap(history)
	if err != nil {
		return domain.TenantAssignment{}, fmt.Errorf("failed to marshal assignment history: %w", err)
	}

	_, err = repo.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Delete: &types.Delete{
					TableName:           aws.String(repo.tableName),
					Key:                 activeKey(tenantID),
					ConditionExpression: aws.String("id = :id"),
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":id": &types.AttributeValueMemberS{Value: current.ID},
					},
				},
			},
			{
				Put: &types.Put{
					TableName: aws.String(repo.tableName),
					Item:      av,
				},
			},
		},
	})
	if err != nil {
		var cancelled *types.TransactionCanceledException
		if errors.As(err, &cancelled) {
			return domain.TenantAssignment{}, fmt.Errorf("%w: %s", apperrors.ErrTenantNotPlaced, tenantID)
		}
		return domain.TenantAssignment{}, fmt.Errorf("failed to deactivate assignment: %w", err)
	}

	return history.toDomain(), nil
}

// ListAll scans every assignment item, active and historical.
func (repo *AssignmentRepository) ListAll(ctx context.Context) ([]domain.TenantAssignment, error) {
	input := &dynamodb.ScanInput{
		TableName: aws.String(repo.tableName),
	}

	var assignments []domain.TenantAssignment
	for {
		result, err := repo.client.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignments: %w", err)
		}

		var items []assignmentItem
		if err := attributevalue.UnmarshalListOfMaps(result.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal assignments: %w", err)
		}
		for _, item := range items {
			assignments = append(assignments, item.toDomain())
		}

		if len(result.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}

	return assignments, nil
}
