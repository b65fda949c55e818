package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/schollz/progressbar/v3"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/zzenonn/vidshard/internal/domain"
)

var tenantCmd = &cobra.Command{
	Use:   "tenant",
	Short: "Place tenants and browse their folders",
}

var tenantProvisionCmd = &cobra.Command{
	Use:   "provision [tenant-id]",
	Short: "Place a tenant on a shard and create its root folder",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		regionFlag, _ := cmd.Flags().GetString("region")
		hint, err := domain.ParseRegion(regionFlag)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}

		desc, err := provisioner.ProvisionTenant(context.Background(), args[0], hint)
		if err != nil {
			fmt.Printf("Error provisioning tenant: %v\n", err)
			return
		}
		fmt.Printf("Tenant %s placed on shard %s (region %s), root collection %q\n",
			args[0], desc.ShardID, desc.Region, desc.RootCollectionID)
	},
}

var tenantTreeCmd = &cobra.Command{
	Use:   "tree [tenant-id]",
	Short: "Print a tenant's folder tree",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		tree, err := folderService.GetFolderTree(context.Background(), args[0])
		if err != nil {
			fmt.Printf("Error reading folders: %v\n", err)
			return
		}
		if tree == nil {
			fmt.Printf("Tenant %s has no folders\n", args[0])
			return
		}
		printTree(os.Stdout, tree)
	},
}

var tenantMkdirCmd = &cobra.Command{
	Use:   "mkdir [tenant-id] [name]",
	Short: "Create a folder under the tenant root or under --parent",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		parent, _ := cmd.Flags().GetString("parent")
		c, err := folderService.CreateFolder(context.Background(), args[0], args[1], parent)
		if err != nil {
			fmt.Printf("Error creating folder: %v\n", err)
			return
		}
		fmt.Printf("Folder created: %s (%s)\n", c.Name, c.CollectionID)
	},
}

var tenantDeactivateCmd = &cobra.Command{
	Use:   "deactivate [tenant-id]",
	Short: "End a tenant's active placement",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, err := provisioner.Deactivate(context.Background(), args[0])
		if err != nil {
			fmt.Printf("Error deactivating tenant: %v\n", err)
			return
		}
		fmt.Printf("Tenant %s released from shard %s\n", a.TenantID, a.ShardID)
	},
}

var tenantBackfillCmd = &cobra.Command{
	Use:   "backfill [file]",
	Short: "Provision every tenant id listed in a file, one per line",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		file, err := os.Open(args[0])
		if err != nil {
			fmt.Printf("Error opening file: %v\n", err)
			return
		}
		defer file.Close()

		tenantIDs, err := readTenantIDs(file)
		if err != nil {
			fmt.Printf("Error reading file: %v\n", err)
			return
		}

		quiet, _ := cmd.Flags().GetBool("quiet")
		var bar *progressbar.ProgressBar
		if !quiet {
			bar = progressbar.Default(int64(len(tenantIDs)), "provisioning")
		}

		failed := 0
		for _, tenantID := range tenantIDs {
			if _, err := provisioner.ProvisionTenant(context.Background(), tenantID, ""); err != nil {
				log.WithError(err).WithField("tenant_id", tenantID).Error("Backfill failed for tenant")
				failed++
			}
			if bar != nil {
				_ = bar.Add(1)
			}
		}

		fmt.Printf("Backfill finished: %d provisioned, %d failed\n", len(tenantIDs)-failed, failed)
	},
}

// readTenantIDs returns the non-blank, non-comment lines of r, deduplicated in order.
func readTenantIDs(r io.Reader) ([]string, error) {
	var ids []string
	seen := map[string]bool{}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || seen[line] {
			continue
		}
		seen[line] = true
		ids = append(ids, line)
	}
	return ids, scanner.Err()
}

func printTree(w io.Writer, node *domain.TreeNode) {
	label := node.Name
	if node.Unavailable {
		label += " (unavailable)"
	}
	fmt.Fprintf(w, "%s%s [%s] videos=%d\n", strings.Repeat("  ", node.Depth), label, node.CollectionID, node.VideoCount)
	for _, child := range node.Children {
		printTree(w, child)
	}
}

func init() {
	tenantProvisionCmd.Flags().String("region", "", "Preferred region for a first placement")
	tenantMkdirCmd.Flags().String("parent", "", "Parent folder id, defaults to the tenant root")
	tenantBackfillCmd.Flags().BoolP("quiet", "q", false, "Suppress progress bars")
	tenantCmd.AddCommand(tenantProvisionCmd, tenantTreeCmd, tenantMkdirCmd, tenantDeactivateCmd, tenantBackfillCmd)
	rootCmd.AddCommand(tenantCmd)
}
