package db

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	log "github.com/sirupsen/logrus"
	"github.com/zzenonn/vidshard/internal/repository/migrate"
)

type DynamoDb struct {
	Client    *dynamodb.Client
	TableName string
}

func NewDatabase(awsConfig aws.Config, tableName string) (*DynamoDb, error) {
	client := dynamodb.NewFromConfig(awsConfig)
	if client == nil {
		return nil, fmt.Errorf("failed to create DynamoDB client")
	}

	return &DynamoDb{
		Client:    client,
		TableName: tableName,
	}, nil
}

// MigrateDb applies every DynamoDB migration in order.
func (d *DynamoDb) MigrateDb(ctx context.Context) error {
	for _, m := range migrate.Migrations(d.TableName) {
		log.Infof("Applying migration %s (%s)", m.Version(), m.TableName())
		if err := m.Up(ctx, d.Client); err != nil {
			return fmt.Errorf("migration %s failed: %w", m.Version(), err)
		}
	}
	return nil
}

// MigrateDown rolls back every DynamoDB migration in reverse order.
func (d *DynamoDb) MigrateDown(ctx context.Context) error {
	migrations := migrate.Migrations(d.TableName)
	for i := len(migrations) - 1; i >= 0; i-- {
		m := migrations[i]
		log.Infof("Rolling back migration %s (%s)", m.Version(), m.TableName())
		if err := m.Down(ctx, d.Client); err != nil {
			return fmt.Errorf("rollback of %s failed: %w", m.Version(), err)
		}
	}
	return nil
}
