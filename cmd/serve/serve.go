/*
Copyright © 2026 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/
// Package serve provides the serve command for hotswap.
package serve

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"bennypowers.dev/hotswap/fs"
	"bennypowers.dev/hotswap/hmr"
	"bennypowers.dev/hotswap/internal/ctxlog"
	"bennypowers.dev/hotswap/internal/project"
	"bennypowers.dev/hotswap/resolve"
	"bennypowers.dev/hotswap/transform"
	"bennypowers.dev/hotswap/transport"
	"bennypowers.dev/hotswap/watch"
)

const shutdownTimeout = 5 * time.Second

// Cmd is the serve cobra command that runs the development server.
var Cmd = &cobra.Command{
	Use:   "serve [file...]",
	Short: "Serve a package with hot module replacement",
	Long: `Serve the package directory over HTTP and push module updates to
connected browsers as files change.

Every module is compiled by the --transform command, which receives a JSON
request on stdin and answers with JSON on stdout. HTML pages are rewritten to
load the HMR client and the bundled modules.

Flags may also be set in hotswap.yaml under "serve", or through
HOTSWAP_SERVE_* environment variables.`,
	Example: `  # Serve the current directory, compiling modules with a node script
  hotswap serve --transform "node scripts/hmr-transform.mjs"

  # Listen on another port and reload the page when a transform fails
  hotswap serve --addr :8080 --reload-on-error --transform "./transform"

  # Only watch sources, with a longer debounce
  hotswap serve --include "src/**" --debounce 100ms --transform "./transform"`,
	RunE: run,
}

func init() {
	flags := Cmd.Flags()
	flags.String("addr", "localhost:8000", "Address to listen on")
	flags.String("transform", "", "Transform command line (required)")
	flags.String("glob", "", "Glob pattern to match entrypoint files")
	flags.StringSlice("alias", nil, "Specifier aliases as key=value (e.g., ~=./src)")
	flags.StringSlice("conditions", nil, "Export condition priority (e.g., development,browser,import,default)")
	flags.StringSlice("include", nil, "Only watch files matching these patterns")
	flags.StringSlice("ignore", watch.DefaultIgnore, "Never watch files matching these patterns")
	flags.Duration("debounce", watch.DefaultDebounce, "Quiet period before a batch of changes is processed")
	flags.Duration("batch-timeout", hmr.DefaultBatchTimeout, "Abandon a hot update that takes longer than this")
	flags.IntP("jobs", "j", 0, "Number of parallel transforms (default: number of CPUs)")
	flags.Bool("reload-on-delete", true, "Reload the page when a module is deleted")
	flags.Bool("reload-on-error", false, "Reload the page when a hot update fails")

	for _, name := range []string{
		"addr", "transform", "glob", "alias", "conditions", "include", "ignore",
		"debounce", "batch-timeout", "jobs", "reload-on-delete", "reload-on-error",
	} {
		_ = viper.BindPFlag("serve."+name, flags.Lookup(name))
	}
}

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger := ctxlog.FromContext(ctx)
	osfs := fs.NewOSFileSystem()

	absRoot, err := filepath.Abs(viper.GetString("package"))
	if err != nil {
		return fmt.Errorf("invalid package directory: %w", err)
	}

	line := viper.GetString("serve.transform")
	if line == "" {
		return errors.New("--transform is required")
	}
	transformer, err := transform.ParseCommand(line)
	if err != nil {
		return err
	}
	transformer.Dir = absRoot

	aliases, err := project.ParseAliases(viper.GetStringSlice("serve.alias"))
	if err != nil {
		return err
	}
	entries, err := project.Entrypoints(osfs, absRoot, args, viper.GetString("serve.glob"))
	if err != nil {
		return err
	}

	g, resolver, err := project.Load(ctx, osfs, entries, resolve.Options{
		Root:       absRoot,
		Aliases:    aliases,
		Conditions: viper.GetStringSlice("serve.conditions"),
	})
	if err != nil {
		logger.Warn("initial crawl incomplete", "error", err)
	}
	logger.Info("module graph ready", "modules", g.Len(), "entrypoints", len(entries))

	watcher, err := watch.New(watch.Options{
		Root:     absRoot,
		Include:  viper.GetStringSlice("serve.include"),
		Ignore:   viper.GetStringSlice("serve.ignore"),
		Debounce: viper.GetDuration("serve.debounce"),
	})
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", absRoot, err)
	}

	opts := hmr.DefaultOptions()
	opts.BatchTimeout = viper.GetDuration("serve.batch-timeout")
	if jobs := viper.GetInt("serve.jobs"); jobs > 0 {
		opts.Parallel = jobs
	}
	opts.ReloadOnDelete = viper.GetBool("serve.reload-on-delete")
	opts.ReloadOnError = viper.GetBool("serve.reload-on-error")

	hub := transport.NewHub(logger)
	orchestrator := hmr.New(g, osfs, transformer, hub, opts)

	srv := &http.Server{
		Addr: viper.GetString("serve.addr"),
		Handler: transport.NewServer(transport.ServerOptions{
			Root:    absRoot,
			FS:      osfs,
			Hub:     hub,
			Bundler: orchestrator,
			Logger:  logger,
		}),
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return watcher.Run(ctx)
	})
	eg.Go(func() error {
		return orchestrator.Run(ctx, invalidatePackages(ctx, resolver, watcher.Batches()))
	})
	eg.Go(func() error {
		logger.Info("serving", "url", "http://"+srv.Addr, "root", absRoot)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		hub.Close()
		return errors.Join(srv.Shutdown(shutdownCtx), watcher.Close())
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// invalidatePackages forwards batches after dropping cached package.json
// files that changed, so the next resolve reads them again.
func invalidatePackages(ctx context.Context, resolver *resolve.Resolver, in <-chan []watch.Event) <-chan []watch.Event {
	out := make(chan []watch.Event)
	go func() {
		defer close(out)
		for {
			var batch []watch.Event
			select {
			case b, ok := <-in:
				if !ok {
					return
				}
				batch = b
			case <-ctx.Done():
				return
			}
			for _, ev := range batch {
				if filepath.Base(ev.Path) == "package.json" {
					resolver.InvalidatePackage(ev.Path)
				}
			}
			select {
			case out <- batch:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
