package cmd

import (
	"errors"
	"fmt"

	"github.com/KaramelBytes/trialdash/internal/export"
	"github.com/spf13/cobra"
)

var (
	expSelection   selectionFlags
	expOutputPath  string
	expSQLitePath  string
	expPostgresDSN string
	expS3Bucket    string
	expS3Key       string
	expNoMonth     bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the filtered, cleaned rows to CSV, a database or S3",
	Long: `Applies the filters and writes the resulting rows, including the derived
Country column and the Start Month column, to every destination given.
With no destination the CSV goes to the configured download name.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		p := newPipeline(c)
		sel, err := expSelection.resolve(ctx, cmd, p)
		if err != nil {
			return err
		}
		v, err := p.View(ctx, sel)
		if err != nil {
			return err
		}

		opt := export.Options{IncludeStartMonth: c.IncludeStartMonth && !expNoMonth}
		rows := export.Rows(v, opt)

		var sinks []export.Sink
		var closers []func() error
		defer func() {
			for _, fn := range closers {
				if err := fn(); err != nil {
					log.WithError(err).Warn("Failed to close export sink")
				}
			}
		}()

		if expSQLitePath != "" || expPostgresDSN != "" {
			dbCfg := export.DatabaseConfig{
				Driver:      export.DriverSQLite,
				SQLitePath:  expSQLitePath,
				PostgresDSN: expPostgresDSN,
				Columns:     p.Options().Clean.Columns,
			}
			if expPostgresDSN != "" {
				dbCfg.Driver = export.DriverPostgres
			}
			db := export.NewDatabase(log, dbCfg)
			if err := db.Start(ctx); err != nil {
				return err
			}
			closers = append(closers, db.Stop)
			sinks = append(sinks, db)
		}

		s3cfg := export.S3Config{
			Bucket:          c.S3.Bucket,
			Key:             c.S3.Key,
			Region:          c.S3.Region,
			EndpointURL:     c.S3.EndpointURL,
			AccessKeyID:     c.S3.AccessKeyID,
			SecretAccessKey: c.S3.SecretAccessKey,
			ForcePathStyle:  c.S3.ForcePathStyle,
		}
		if expS3Bucket != "" {
			s3cfg.Bucket = expS3Bucket
		}
		if expS3Key != "" {
			s3cfg.Key = expS3Key
		}
		if cmd.Flags().Changed("s3-bucket") || cmd.Flags().Changed("s3-key") {
			if s3cfg.Bucket == "" {
				return errors.New("--s3-key requires a bucket (--s3-bucket or s3.bucket)")
			}
			if s3cfg.Key == "" {
				s3cfg.Key = c.DownloadName
			}
			up, err := export.NewS3(log, s3cfg)
			if err != nil {
				return err
			}
			sinks = append(sinks, up)
		}

		if expOutputPath != "" || len(sinks) == 0 {
			path := expOutputPath
			if path == "" {
				path = c.DownloadName
			}
			if path == "" {
				path = export.DefaultFileName
			}
			sinks = append([]export.Sink{export.CSVFile{Path: path}}, sinks...)
		}

		for _, s := range sinks {
			if err := s.Write(ctx, rows); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s\n", describeSink(s, rows.Len()))
		}
		return nil
	},
}

func describeSink(s export.Sink, n int) string {
	switch s := s.(type) {
	case export.CSVFile:
		return fmt.Sprintf("Wrote %d rows to %s", n, s.Path)
	case *export.Database:
		return fmt.Sprintf("Stored %d rows in %s", n, s.Driver())
	case *export.S3:
		return fmt.Sprintf("Uploaded %d rows to %s", n, s.URI())
	}
	return fmt.Sprintf("Exported %d rows", n)
}

func init() {
	rootCmd.AddCommand(exportCmd)
	expSelection.register(exportCmd)
	exportCmd.Flags().StringVarP(&expOutputPath, "output", "o", "", "CSV output path (default: download_name)")
	exportCmd.Flags().StringVar(&expSQLitePath, "sqlite", "", "store the rows in this SQLite database")
	exportCmd.Flags().StringVar(&expPostgresDSN, "postgres-dsn", "", "store the rows in this PostgreSQL database")
	exportCmd.Flags().StringVar(&expS3Bucket, "s3-bucket", "", "upload the CSV to this bucket (overrides s3.bucket)")
	exportCmd.Flags().StringVar(&expS3Key, "s3-key", "", "object key of the upload (overrides s3.key)")
	exportCmd.Flags().BoolVar(&expNoMonth, "no-start-month", false, "omit the Start Month column")
}
