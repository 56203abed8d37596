package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bnema/maa-copilot-filter/internal/filter"
	"github.com/bnema/maa-copilot-filter/internal/logger"
	"github.com/bnema/maa-copilot-filter/internal/models"
	"github.com/bnema/maa-copilot-filter/internal/proxy"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the filtering proxy",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("listen", "", "listen address (overrides proxy.listen)")
	serveCmd.Flags().String("upstream", "", "upstream API base URL (overrides proxy.upstream)")
	_ = viper.BindPFlag("proxy.listen", serveCmd.Flags().Lookup("listen"))
	_ = viper.BindPFlag("proxy.upstream", serveCmd.Flags().Lookup("upstream"))
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	engine := filter.NewEngine(a.log)
	ic := proxy.NewCopilotInterceptor(a.state, engine, a.log)

	p, err := proxy.New(cfg.Proxy.Upstream, cfg.Proxy.EndpointsOrDefault(), ic, a.log)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Proxy.Listen,
		Handler:           proxy.NewRouter(proxy.NewAPI(a.state, engine, a.log), p, cfg.Proxy.AllowedOriginsOrDefault(), a.log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	upstream := cfg.Proxy.Upstream
	endpoints := cfg.Proxy.EndpointsOrDefault()

	if viper.ConfigFileUsed() != "" {
		viper.OnConfigChange(func(e fsnotify.Event) {
			if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
				return
			}
			applyConfigChange(viper.GetViper(), a, e.Name)
		})
		viper.WatchConfig()
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info().
			Str("listen", srv.Addr).
			Str("upstream", upstream).
			Strs("endpoints", endpoints).
			Str("status", a.state.Status().Message).
			Msg("proxy started")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// applyConfigChange re-reads v and applies the settings that can change
// while serving: the top rarity tier and the log level. Everything else
// needs a restart.
func applyConfigChange(v *viper.Viper, a *app, file string) {
	var next models.Config
	if err := v.Unmarshal(&next); err != nil {
		a.log.Warn().Err(err).Msg("config reload failed")
		return
	}

	tier := topRarityOf(next.Filter)
	a.state.SetTopRarity(tier)
	logger.SetLevel(next.Log.Level)

	a.log.Info().
		Str("file", file).
		Int("top_rarity", tier).
		Str("log_level", next.Log.Level).
		Msg("config reloaded")
}
