package cmd

import (
	"fmt"
	"strings"

	cfgpkg "github.com/KaramelBytes/trialdash/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set trialdash configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := requireConfig()
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "data_path: %s\n", cfg.DataPath)
		if cfg.Delimiter != "" {
			fmt.Fprintf(w, "delimiter: %q\n", cfg.Delimiter)
		}
		if cfg.SheetName != "" {
			fmt.Fprintf(w, "sheet_name: %s\n", cfg.SheetName)
		}
		fmt.Fprintf(w, "sheet_index: %d\n", cfg.SheetIndex)
		if len(cfg.NAValues) > 0 {
			fmt.Fprintf(w, "na_values: %s\n", strings.Join(cfg.NAValues, ","))
		}
		fmt.Fprintf(w, "drop_columns: %s\n", strings.Join(cfg.DropColumns, ","))
		fmt.Fprintf(w, "median_fallback: %g\n", cfg.MedianFallback)
		fmt.Fprintf(w, "default_country_count: %d\n", cfg.DefaultCountryCount)
		fmt.Fprintf(w, "default_top_n: %d\n", cfg.DefaultTopN)
		fmt.Fprintf(w, "histogram_bins: %d\n", cfg.HistogramBins)
		fmt.Fprintf(w, "preview_rows: %d\n", cfg.PreviewRows)
		fmt.Fprintf(w, "listen: %s\n", cfg.Listen)
		if len(cfg.CORSOrigins) > 0 {
			fmt.Fprintf(w, "cors_origins: %s\n", strings.Join(cfg.CORSOrigins, ","))
		}
		if cfg.RateLimitPerMinute > 0 {
			fmt.Fprintf(w, "rate_limit_per_minute: %d\n", cfg.RateLimitPerMinute)
		}
		if cfg.TrustProxy {
			fmt.Fprintln(w, "trust_proxy: true")
		}
		fmt.Fprintf(w, "log_level: %s\n", cfg.LogLevel)
		fmt.Fprintf(w, "log_format: %s\n", cfg.LogFormat)
		fmt.Fprintf(w, "download_name: %s\n", cfg.DownloadName)
		fmt.Fprintf(w, "include_start_month: %t\n", cfg.IncludeStartMonth)
		if cfg.S3.Bucket != "" {
			fmt.Fprintf(w, "s3.bucket: %s\n", cfg.S3.Bucket)
			fmt.Fprintf(w, "s3.key: %s\n", cfg.S3.Key)
			fmt.Fprintf(w, "s3.region: %s\n", cfg.S3.Region)
			fmt.Fprintf(w, "s3.endpoint_url: %s\n", cfg.S3.EndpointURL)
			fmt.Fprintf(w, "s3.access_key_id: %s\n", mask(cfg.S3.AccessKeyID))
			fmt.Fprintf(w, "s3.secret_access_key: %s\n", mask(cfg.S3.SecretAccessKey))
			fmt.Fprintf(w, "s3.force_path_style: %t\n", cfg.S3.ForcePathStyle)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		if err := c.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := cfgpkg.Save(c, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Saved config")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}
