package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dharsanguruparan/SectionDrop/internal/app"
	"github.com/dharsanguruparan/SectionDrop/internal/config"
	"github.com/dharsanguruparan/SectionDrop/internal/paths"
	"github.com/dharsanguruparan/SectionDrop/internal/thumbnail"
)

// overrides are flag values applied on top of the environment.
type overrides struct {
	addr    string
	uploads string
	public  string
	store   string
}

func (o *overrides) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.addr, "addr", "", "Listen address (SECTIONDROP_ADDRESS)")
	cmd.Flags().StringVar(&o.uploads, "uploads", "", "Uploads directory (SECTIONDROP_UPLOADS_DIR)")
	cmd.Flags().StringVar(&o.public, "public", "", "Static assets directory (SECTIONDROP_PUBLIC_DIR)")
	cmd.Flags().StringVar(&o.store, "store", "", "Metadata backend: json, memory or postgres (SECTIONDROP_STORE)")
}

func (o *overrides) load() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if o.addr != "" {
		cfg.Address = o.addr
	}
	if o.uploads != "" {
		cfg.UploadsDir = o.uploads
	}
	if o.public != "" {
		cfg.PublicDir = o.public
	}
	if o.store != "" {
		cfg.StoreKind = o.store
	}
	return cfg, cfg.Validate()
}

func newServeCmd() *cobra.Command {
	var o overrides
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.load()
			if err != nil {
				return err
			}
			logger := config.SetupLogger(cfg)
			a, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()
			logger.Info("sectiondrop starting", a.Describe()...)

			g, ctx := errgroup.WithContext(cmd.Context())
			if a.Pool != nil {
				g.Go(func() error {
					a.Pool.Start(ctx)
					a.Pool.Wait()
					return nil
				})
			}
			g.Go(func() error {
				return a.Server().Serve(ctx)
			})
			return g.Wait()
		},
	}
	o.bind(cmd)
	return cmd
}

func newFilesCmd() *cobra.Command {
	var o overrides
	cmd := &cobra.Command{
		Use:   "files <section>",
		Short: "Print the records stored for a section as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.load()
			if err != nil {
				return err
			}
			st, closeStore, err := app.OpenStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeStore()
			records, err := st.BySection(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetEscapeHTML(false)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{"files": records})
		},
	}
	o.bind(cmd)
	return cmd
}

func newThumbnailsCmd() *cobra.Command {
	var o overrides
	cmd := &cobra.Command{
		Use:   "thumbnails",
		Short: "Render thumbnails that are missing for stored files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.load()
			if err != nil {
				return err
			}
			logger := config.SetupLogger(cfg)
			if err := paths.Ensure(cfg.ThumbnailsDir()); err != nil {
				return err
			}
			st, closeStore, err := app.OpenStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeStore()
			records, err := st.List(cmd.Context())
			if err != nil {
				return err
			}
			gen := thumbnail.NewGenerator(cfg.UploadsDir, cfg.ThumbnailsDir(), logger)
			var rendered, skipped int
			for _, job := range gen.Missing(records) {
				if err := cmd.Context().Err(); err != nil {
					return err
				}
				err := gen.Generate(cmd.Context(), job)
				switch {
				case errors.Is(err, thumbnail.ErrSourceMissing):
					skipped++
				case err != nil:
					return fmt.Errorf("render %s: %w", job.FileID, err)
				default:
					rendered++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rendered %d thumbnails, %d sources missing\n", rendered, skipped)
			return nil
		},
	}
	o.bind(cmd)
	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the Postgres schema for the postgres store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return errors.New("SECTIONDROP_DATABASE_URL is not set")
			}
			db, err := app.OpenDatabase(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			db.Close()
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}
