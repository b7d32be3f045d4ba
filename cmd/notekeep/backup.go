package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/notekeep/pkg/core"
)

// backupCmd represents the backup command
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Push or pull the remote backup",
	Long: `Synchronize with the remote backup configured in notekeep.yaml
(Google Drive app data folder or an S3 bucket).
The access token is read from the environment variable named by backup.tokenEnv
(default NOTEKEEP_TOKEN).`,
}

var backupPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Upload all local notes, replacing the remote backup",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		svc := openService(ctx)
		defer svc.Close()

		if err := svc.SyncToDrive(ctx); err != nil {
			fatal("Backup failed", err)
		}
	},
}

var backupPullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Merge the remote backup into the local store",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		svc := openService(ctx)
		defer svc.Close()

		n, err := svc.ImportFromDrive(ctx)
		if errors.Is(err, core.ErrNoBackup) {
			fmt.Println("No remote backup yet.")
			return
		}
		if err != nil {
			fatal("Restore failed", err)
		}
		fmt.Printf("Pulled %d notes\n", n)
	},
}

func init() {
	rootCmd.AddCommand(backupCmd)
	backupCmd.AddCommand(backupPushCmd)
	backupCmd.AddCommand(backupPullCmd)
}
