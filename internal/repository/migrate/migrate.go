// Package migrate holds the DynamoDB table definitions used by the dynamodb assignment backend.
package migrate

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// Migration is one reversible schema step.
type Migration interface {
	Version() string
	TableName() string
	Up(ctx context.Context, client *dynamodb.Client) error
	Down(ctx context.Context, client *dynamodb.Client) error
}

// Migrations returns every migration in apply order.
func Migrations(assignmentTable string) []Migration {
	return []Migration{
		&CreateTenantAssignmentsTable{Table: assignmentTable},
	}
}
