package migrate

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	log "github.com/sirupsen/logrus"
)

const (
	TenantAssignmentsTableName = "tenant_assignments"
	TenantAssignmentsVersion   = "20250901000000_tenant_assignments_table"

	// ActiveShardIndex is sparse: only the ACTIVE slot item carries active_shard_id.
	ActiveShardIndex = "active_shard_id-index"
)

type CreateTenantAssignmentsTable struct {
	Table string
}

func (m *CreateTenantAssignmentsTable) Version() string {
	return TenantAssignmentsVersion
}

func (m *CreateTenantAssignmentsTable) TableName() string {
	if m.Table == "" {
		return TenantAssignmentsTableName
	}
	return m.Table
}

func (m *CreateTenantAssignmentsTable) Up(ctx context.Context, client *dynamodb.Client) error {
	input := &dynamodb.CreateTableInput{
		AttributeDefinitions: []types.AttributeDefinition{
			{
				AttributeName: aws.String("tenant_id"),
				AttributeType: types.ScalarAttributeTypeS,
			},
			{
				AttributeName: aws.String("slot"),
				AttributeType: types.ScalarAttributeTypeS,
			},
			{
				AttributeName: aws.String("active_shard_id"),
				AttributeType: types.ScalarAttributeTypeS,
			},
		},
		KeySchema: []types.KeySchemaElement{
			{
				AttributeName: aws.String("tenant_id"),
				KeyType:       types.KeyTypeHash,
			},
			{
				AttributeName: aws.String("slot"),
				KeyType:       types.KeyTypeRange, // ACTIVE or HIST#<deactivated>#<id>
			},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			{
				IndexName: aws.String(ActiveShardIndex),
				KeySchema: []types.KeySchemaElement{
					{
						AttributeName: aws.String("active_shard_id"),
						KeyType:       types.KeyTypeHash,
					},
				},
				Projection: &types.Projection{ProjectionType: types.ProjectionTypeKeysOnly},
			},
		},
		TableName:   aws.String(m.TableName()),
		BillingMode: types.BillingModePayPerRequest,
		Tags: []types.Tag{
			{
				Key:   aws.String("Purpose"),
				Value: aws.String("TenantShardAssignments"),
			},
		},
	}

	_, err := client.CreateTable(ctx, input)
	if err != nil {
		var inUse *types.ResourceInUseException
		if !errors.As(err, &inUse) {
			return err
		}
		log.Infof("Table %s already exists", m.TableName())
	}

	waiter := dynamodb.NewTableExistsWaiter(client)
	return waiter.Wait(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(m.TableName()),
	}, 5*time.Minute)
}

func (m *CreateTenantAssignmentsTable) Down(ctx context.Context, client *dynamodb.Client) error {
	_, err := client.DeleteTable(ctx, &dynamodb.DeleteTableInput{
		TableName: aws.String(m.TableName()),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return nil
		}
	}
	return err
}
