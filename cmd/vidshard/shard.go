package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zzenonn/vidshard/internal/domain"
)

var shardCmd = &cobra.Command{
	Use:   "shard",
	Short: "Manage provider libraries used as shards",
}

var shardRegisterCmd = &cobra.Command{
	Use:   "register [shard-id]",
	Short: "Register a provider library as a shard",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		regionFlag, _ := cmd.Flags().GetString("region")
		region, err := domain.ParseRegion(regionFlag)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}

		shard, err := shardService.Register(context.Background(), args[0], region)
		if err != nil {
			fmt.Printf("Error registering shard: %v\n", err)
			return
		}
		fmt.Printf("Shard registered: %s (%s, region %s)\n", shard.ShardID, shard.Name, shard.Region)
	},
}

var shardActivateCmd = &cobra.Command{
	Use:   "activate [shard-id]",
	Short: "Allow new tenants on a shard",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setShardActive(args[0], true)
	},
}

var shardDeactivateCmd = &cobra.Command{
	Use:   "deactivate [shard-id]",
	Short: "Stop placing new tenants on a shard",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setShardActive(args[0], false)
	},
}

var shardHealthCmd = &cobra.Command{
	Use:   "health [shard-id] [healthy|degraded|unknown]",
	Short: "Record the health of a shard",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		status, err := domain.ParseHealthStatus(args[1])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		if err := shardService.SetHealth(context.Background(), args[0], status); err != nil {
			fmt.Printf("Error updating shard health: %v\n", err)
			return
		}
		fmt.Printf("Shard %s marked %s\n", args[0], status)
	},
}

var shardRemoveCmd = &cobra.Command{
	Use:   "remove [shard-id]",
	Short: "Remove a shard that holds no active tenants",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := shardService.Remove(context.Background(), args[0]); err != nil {
			fmt.Printf("Error removing shard: %v\n", err)
			return
		}
		fmt.Printf("Shard removed: %s\n", args[0])
	},
}

var shardListCmd = &cobra.Command{
	Use:   "list",
	Short: "List shards with their tenant counts",
	Run: func(cmd *cobra.Command, args []string) {
		loads, err := shardService.Loads(context.Background())
		if err != nil {
			fmt.Printf("Error listing shards: %v\n", err)
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SHARD\tNAME\tREGION\tACTIVE\tHEALTH\tTENANTS")
		for _, l := range loads {
			fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\t%d\n",
				l.Shard.ShardID, l.Shard.Name, l.Shard.Region, l.Shard.Active, l.Shard.HealthStatus, l.Load)
		}
		w.Flush()
	},
}

func setShardActive(shardID string, active bool) {
	if err := shardService.SetActive(context.Background(), shardID, active); err != nil {
		fmt.Printf("Error updating shard: %v\n", err)
		return
	}
	if active {
		fmt.Printf("Shard activated: %s\n", shardID)
	} else {
		fmt.Printf("Shard deactivated: %s\n", shardID)
	}
}

func init() {
	shardRegisterCmd.Flags().String("region", "", "Region served by the shard (eu, us, asia, oceania, sa, af)")
	shardCmd.AddCommand(shardRegisterCmd, shardActivateCmd, shardDeactivateCmd, shardHealthCmd, shardRemoveCmd, shardListCmd)
	rootCmd.AddCommand(shardCmd)
}
