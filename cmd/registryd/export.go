package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sns/internal/platform/config"
	"sns/internal/platform/logger"
	"sns/internal/registry/snapshot"
)

var exportPath string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a JSON Lines snapshot of the registry",
	Long: `Write a snapshot of the registry config, names and reverse records.

Destinations come from REGISTRY_SNAPSHOT_PATH and REGISTRY_SNAPSHOT_S3_BUCKET.
With neither set the snapshot is written to stdout.`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportPath, "out", "o", "", "write the snapshot to this file")
}

func runExport(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	log := logger.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	db, _, closeDB, err := openBackend(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer func() { _ = closeDB() }()

	exporter := snapshot.NewExporter(db)

	var dests []snapshot.Destination
	if exportPath != "" {
		cfg.Snapshot.Path = exportPath
	}
	if cfg.Snapshot.Path != "" {
		dests = append(dests, snapshot.NewFileDestination(cfg.Snapshot.Path))
	}
	if cfg.Snapshot.S3Bucket != "" {
		s3dest, err := snapshot.NewS3Destination(ctx, cfg.Snapshot.S3Bucket, cfg.Snapshot.S3Key, cfg.Snapshot.S3Region, cfg.Snapshot.S3Endpoint)
		if err != nil {
			return err
		}
		dests = append(dests, s3dest)
	}
	if len(dests) == 0 {
		return exporter.WriteJSONL(ctx, cmd.OutOrStdout())
	}

	n, err := exporter.Export(ctx, dests...)
	if err != nil {
		return fmt.Errorf("export snapshot: %w", err)
	}
	log.Info("snapshot exported", "bytes", n, "destinations", len(dests))
	return nil
}
