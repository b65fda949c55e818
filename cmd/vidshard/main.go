package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/zzenonn/vidshard/internal/config"
	"github.com/zzenonn/vidshard/internal/logging"
	"github.com/zzenonn/vidshard/internal/metrics"
	"github.com/zzenonn/vidshard/internal/placement"
	"github.com/zzenonn/vidshard/internal/provider"
	"github.com/zzenonn/vidshard/internal/registry"
	"github.com/zzenonn/vidshard/internal/repository/db"
	"github.com/zzenonn/vidshard/internal/repository/relational"
	"github.com/zzenonn/vidshard/internal/service"
)

var (
	configPath string

	cfg           *config.Config
	gormDb        *gorm.DB
	appMetrics    *metrics.Metrics
	provisioner   *service.Provisioner
	folderService *service.FolderService
	shardService  *service.ShardService
	ledgerService *service.LedgerService
)

var rootCmd = &cobra.Command{
	Use:   "vidshard",
	Short: "Tenant placement for a sharded video provider",
	Long:  "Places tenants on video provider libraries, bootstraps their folders and serves placement over HTTP",
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml")
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize and migrate the database",
	Run: func(cmd *cobra.Command, args []string) {
		if err := relational.Migrate(gormDb); err != nil {
			fmt.Printf("Failed to migrate the database: %v\n", err)
			return
		}

		if cfg.AssignmentBackend == config.BackendDynamoDB {
			dynamoDb, err := db.NewDatabase(cfg.AwsConfig, cfg.DynamoDBTable)
			if err != nil {
				fmt.Printf("Failed to connect to DynamoDB: %v\n", err)
				return
			}
			if err := dynamoDb.MigrateDb(context.Background()); err != nil {
				fmt.Printf("Failed to migrate DynamoDB: %v\n", err)
				return
			}
		}

		fmt.Println("Database initialized and migrated successfully")
	},
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back database migrations",
	Run: func(cmd *cobra.Command, args []string) {
		if cfg.AssignmentBackend == config.BackendDynamoDB {
			dynamoDb, err := db.NewDatabase(cfg.AwsConfig, cfg.DynamoDBTable)
			if err != nil {
				fmt.Printf("Failed to connect to DynamoDB: %v\n", err)
				return
			}
			if err := dynamoDb.MigrateDown(context.Background()); err != nil {
				fmt.Printf("Failed to roll back DynamoDB: %v\n", err)
				return
			}
		}

		if err := relational.MigrateDown(gormDb); err != nil {
			fmt.Printf("Failed to roll back migrations: %v\n", err)
			return
		}

		fmt.Println("Database migrations rolled back successfully")
	},
}

func initConfig() {
	var err error
	cfg, err = config.LoadConfig(configPath, rootCmd)
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	logging.InitLogger(cfg)

	ctx := context.Background()

	gormDb, err = relational.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to the database: %v", err)
	}

	if cfg.NeedsAWS() {
		if err := config.LoadAWSConfig(ctx, cfg); err != nil {
			log.Fatalf("Failed to load AWS configuration: %v", err)
		}
	}

	apiKey, err := config.ResolveProviderAPIKey(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to resolve provider API key: %v", err)
	}
	videoProvider := provider.NewHTTPClient(cfg.Provider.BaseURL, apiKey, cfg.Provider.Timeout)

	// Initialize repositories
	shardRepository := relational.NewShardRepository(gormDb)
	rootRepository := relational.NewRootRepository(gormDb)

	var assignmentRepo service.AssignmentRepository
	switch cfg.AssignmentBackend {
	case config.BackendDynamoDB:
		assignmentRepo = db.NewAssignmentRepository(dynamodb.NewFromConfig(cfg.AwsConfig), cfg.DynamoDBTable)
	default:
		assignmentRepo = relational.NewAssignmentRepository(gormDb)
	}

	// Initialize services
	appMetrics = metrics.New()
	shardRegistry := registry.New(videoProvider, shardRepository, cfg.RegistryTTL, cfg.Provider.Retries, appMetrics)
	estimator := placement.NewAssignmentCountEstimator(assignmentRepo)

	provisioner = service.NewProvisioner(
		assignmentRepo,
		rootRepository,
		shardRepository,
		shardRegistry,
		placement.NewLeastLoadedPlacer(estimator),
		videoProvider,
		cfg.Provisioner,
		appMetrics,
	)
	folderService = service.NewFolderService(assignmentRepo, rootRepository, videoProvider)
	shardService = service.NewShardService(shardRepository, shardRegistry, estimator, videoProvider)
	ledgerService = service.NewLedgerService(assignmentRepo)
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(downCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
