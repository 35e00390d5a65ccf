package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	ac "github.com/unkn0wn-root/analysiscache"
	"github.com/unkn0wn-root/analysiscache/internal/config"
	"github.com/unkn0wn-root/analysiscache/lesson"
)

type rootFlags struct {
	configPath  string
	envFiles    []string
	metricsAddr string
}

func newRootCmd() *cobra.Command {
	f := &rootFlags{}
	root := &cobra.Command{
		Use:   "analysiscache",
		Short: "Cached lesson analysis",
		Long: `analysiscache runs per-page vision analysis and a lesson-level summary
for catalog documents, caching the result in memory and a durable store.
Concurrent requests for the same document share one generation.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&f.configPath, "config", "c", "analysiscache.yaml", "config file (yaml)")
	root.PersistentFlags().StringSliceVar(&f.envFiles, "env-file", nil, "dotenv files loaded before the config")
	root.PersistentFlags().StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	root.AddCommand(
		analyzeCmd(f),
		regenerateCmd(f),
		invalidateCmd(f),
		statusCmd(f),
		clearCmd(f),
		warmCmd(f),
	)
	return root
}

// withApp loads config, builds the stack, optionally serves metrics, and runs fn.
func withApp(cmd *cobra.Command, f *rootFlags, fn func(ctx context.Context, a *app) error) error {
	if _, err := config.LoadEnvFiles(f.envFiles...); err != nil {
		return err
	}
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	if f.metricsAddr != "" {
		cfg.Metrics.Addr = f.metricsAddr
	}

	ctx := cmd.Context()
	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.Metrics.Addr != "" {
		srv := &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Error("metrics server", ac.Fields{"err": err, "addr": cfg.Metrics.Addr})
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}
	return fn(ctx, a)
}

func parseIDs(args []string) ([]lesson.JobID, error) {
	ids := make([]lesson.JobID, 0, len(args))
	for _, s := range args {
		id, err := lesson.ParseJobID(s)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func analyzeCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <document:number>",
		Short: "Return the cached analysis, generating it on a miss",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := lesson.ParseJobID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, f, func(ctx context.Context, a *app) error {
				r, src, err := a.svc.Resolve(ctx, id)
				if err != nil {
					return err
				}
				a.log.Info("analysis served", ac.Fields{"job": id.String(), "source": string(src)})
				return printJSON(cmd.OutOrStdout(), r)
			})
		},
	}
}

func regenerateCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "regenerate <document:number>",
		Short: "Invalidate and generate a fresh analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := lesson.ParseJobID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, f, func(ctx context.Context, a *app) error {
				r, err := a.svc.Regenerate(ctx, id)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), r)
			})
		},
	}
}

func invalidateCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "invalidate <document:number>...",
		Short: "Drop cached analyses",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return withApp(cmd, f, func(ctx context.Context, a *app) error {
				var errs []error
				for _, id := range ids {
					if err := a.svc.Invalidate(ctx, id); err != nil {
						errs = append(errs, err)
						continue
					}
					fmt.Fprintf(cmd.OutOrStdout(), "invalidated %s\n", id)
				}
				return errors.Join(errs...)
			})
		},
	}
}

func statusCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show cache statistics and which catalog jobs are cached",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, f, func(ctx context.Context, a *app) error {
				return writeStatus(ctx, cmd.OutOrStdout(), a)
			})
		},
	}
}

func writeStatus(ctx context.Context, out io.Writer, a *app) error {
	st, err := a.svc.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "memory entries:      %d\n", st.MemoryEntries)
	fmt.Fprintf(out, "persistent entries:  %d\n", st.PersistentEntries)
	fmt.Fprintf(out, "estimated savings:   $%.2f\n\n", st.EstimatedSavings)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "JOB\tTITLE\tPAGES\tCACHED")
	for _, d := range a.catalog.Documents {
		for _, l := range d.Lessons {
			id := lesson.NewJobID(d.ID, l.Number)
			cached, err := a.svc.IsCached(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(tw, "%s\t%s\t%d\t%t\n", id, l.Title, l.EndPage-l.StartPage+1, cached)
		}
	}
	return tw.Flush()
}

func clearCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Drop every cached analysis",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, f, func(ctx context.Context, a *app) error {
				if err := a.svc.Clear(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "cache cleared")
				return nil
			})
		},
	}
}

func warmCmd(f *rootFlags) *cobra.Command {
	var concurrency int
	cmd := &cobra.Command{
		Use:   "warm [document:number...]",
		Short: "Generate analyses ahead of demand (default: whole catalog)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return withApp(cmd, f, func(ctx context.Context, a *app) error {
				if len(ids) == 0 {
					ids = a.catalog.Jobs()
				}
				var failed int
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "JOB\tSOURCE\tERROR")
				for _, r := range a.svc.Warm(ctx, ids, concurrency) {
					msg := ""
					if r.Err != nil {
						failed++
						msg = r.Err.Error()
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\n", r.ID, r.Source, msg)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				if failed > 0 {
					return fmt.Errorf("warm: %d of %d jobs failed", failed, len(ids))
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", 2, "jobs generated at once")
	return cmd
}
