package main

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"github.com/spf13/cobra"

	"github.com/zzenonn/vidshard/internal/config"
	"github.com/zzenonn/vidshard/internal/repository/objectstore"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Work with the tenant assignment ledger",
}

var ledgerExportCmd = &cobra.Command{
	Use:   "export [s3://bucket/key | gs://bucket/key]",
	Short: "Export every assignment as JSON lines to object storage",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		bucketCfg, err := objectstore.ParseBucketConfig(args[0])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}

		var gcsClient *storage.Client
		switch bucketCfg.Type {
		case objectstore.GCSType:
			gcsClient, err = config.NewGCSClient(ctx)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				return
			}
			defer gcsClient.Close()
		case objectstore.S3Type:
			if !cfg.NeedsAWS() {
				if err := config.LoadAWSConfig(ctx, cfg); err != nil {
					fmt.Printf("Error: %v\n", err)
					return
				}
			}
		}

		repo, err := objectstore.NewObjectRepositoryFactory(cfg.AwsConfig, gcsClient).CreateRepository(bucketCfg)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}

		quiet, _ := cmd.Flags().GetBool("quiet")
		location, rows, err := ledgerService.Export(ctx, repo, bucketCfg.Key, quiet)
		if err != nil {
			fmt.Printf("Error exporting ledger: %v\n", err)
			return
		}
		fmt.Printf("Exported %d assignments to %s\n", rows, location)
	},
}

func init() {
	ledgerExportCmd.Flags().BoolP("quiet", "q", false, "Suppress progress bars")
	ledgerCmd.AddCommand(ledgerExportCmd)
	rootCmd.AddCommand(ledgerCmd)
}
