// tifai-schema maintains the YAML schema artifacts the query service reads:
// it extracts them from a live database, validates an artifact directory and
// prints catalog summaries.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/VicerInfoTech/TIF-AI/internal/executor"
	"github.com/VicerInfoTech/TIF-AI/internal/schema"
	"github.com/VicerInfoTech/TIF-AI/internal/schemasource"
	s3store "github.com/VicerInfoTech/TIF-AI/internal/storage/s3"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "tifai-schema",
		Short:         "Manage schema artifacts for natural-language querying",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newExtractCommand())
	root.AddCommand(newValidateCommand())
	root.AddCommand(newShowCommand())
	return root
}

func newExtractCommand() *cobra.Command {
	var (
		driver     string
		dsn        string
		schemaName string
		outDir     string
		s3Endpoint string
		s3Region   string
		s3Bucket   string
		s3Access   string
		s3Secret   string
		s3Prefix   string
		s3SSL      bool
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "extract <database-id>",
		Short: "Introspect a live database and write its schema artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			databaseID := args[0]
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			boundary, err := executor.Open(ctx, executor.Config{Driver: driver, DSN: dsn})
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer func() { _ = boundary.Close() }()

			introspector, err := schemasource.NewIntrospector(boundary.DB(), driver, schemaName)
			if err != nil {
				return err
			}
			desc, err := introspector.Introspect(ctx, databaseID)
			if err != nil {
				return fmt.Errorf("introspect %q: %w", databaseID, err)
			}

			if s3Bucket != "" {
				store, err := s3store.New(s3store.Config{
					Endpoint:        s3Endpoint,
					Region:          s3Region,
					Bucket:          s3Bucket,
					AccessKeyID:     s3Access,
					SecretAccessKey: s3Secret,
					UseSSL:          s3SSL,
					Prefix:          s3Prefix,
				})
				if err != nil {
					return fmt.Errorf("open object store: %w", err)
				}
				if err := schemasource.WriteObjectStore(ctx, store, desc); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %d table artifacts for %q to s3 bucket %q\n",
					len(desc.Tables), databaseID, s3Bucket)
				return nil
			}

			if err := schemasource.WriteDir(outDir, desc); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d table artifacts for %q to %s\n",
				len(desc.Tables), databaseID, outDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&driver, "driver", "postgres", "database driver (postgres, sqlite, duckdb)")
	cmd.Flags().StringVar(&dsn, "dsn", "", "database connection string")
	cmd.Flags().StringVar(&schemaName, "schema", "public", "database schema to introspect")
	cmd.Flags().StringVar(&outDir, "out", "config/schemas", "output directory for artifacts")
	cmd.Flags().StringVar(&s3Endpoint, "s3-endpoint", "", "object store endpoint")
	cmd.Flags().StringVar(&s3Region, "s3-region", "us-east-1", "object store region")
	cmd.Flags().StringVar(&s3Bucket, "s3-bucket", "", "object store bucket (writes to S3 instead of a directory)")
	cmd.Flags().StringVar(&s3Access, "s3-access-key", "", "object store access key")
	cmd.Flags().StringVar(&s3Secret, "s3-secret-key", "", "object store secret key")
	cmd.Flags().StringVar(&s3Prefix, "s3-prefix", "", "object store key prefix")
	cmd.Flags().BoolVar(&s3SSL, "s3-ssl", false, "use TLS for the object store")
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "overall extraction timeout")
	_ = cmd.MarkFlagRequired("dsn")
	return cmd
}

func newValidateCommand() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "validate <database-id>",
		Short: "Load artifacts from a directory and verify they build a catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			databaseID := args[0]
			source := schemasource.NewDirSource(dir)
			desc, err := source.LoadDescription(cmd.Context(), databaseID)
			if err != nil {
				return err
			}
			catalog, err := schema.NewCatalog(desc)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %q version %s, %d tables\n",
				catalog.DatabaseID(), catalog.Version(), len(catalog.Tables()))
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "config/schemas", "artifact directory")
	return cmd
}

func newShowCommand() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "show <database-id>",
		Short: "Print the tables and join edges of an artifact set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			databaseID := args[0]
			source := schemasource.NewDirSource(dir)
			desc, err := source.LoadDescription(cmd.Context(), databaseID)
			if err != nil {
				return err
			}
			catalog, err := schema.NewCatalog(desc)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "database %q (version %s)\n", catalog.DatabaseID(), catalog.Version())
			for _, table := range catalog.Tables() {
				fmt.Fprintf(out, "  %s (%d columns)\n", table.Name, len(table.Columns))
				for _, fk := range table.ForeignKeys {
					fmt.Fprintf(out, "    -> %s via %v\n", fk.RefTable, fk.Columns)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "config/schemas", "artifact directory")
	return cmd
}
