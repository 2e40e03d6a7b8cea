package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/subvoice/internal/bridge"
	"github.com/dgnsrekt/subvoice/ui"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveTUI bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the page bridge",
	Long: paragraph(fmt.Sprintf("\n%s for the page shim. Captions it reports are translated, spoken and played in order.",
		keyword("Listen"))),
	Example: paragraph("subvoice serve\nsubvoice serve --addr 127.0.0.1:9000 --tui"),
	Args:    cobra.NoArgs,
	RunE:    runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	store, err := loadSettings()
	if err != nil {
		return err
	}
	if err := store.Watch(); err != nil {
		log.Warn("settings file is not watched", "err", err)
	}

	player, err := newPlayer()
	if err != nil {
		return err
	}
	defer func() { _ = player.Close() }()

	gin.SetMode(gin.ReleaseMode)
	deps := sessionDeps(newService(), player, store)
	srv := bridge.NewServer(deps)
	defer srv.Close()
	defer deps.Events.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := viper.GetString("bridge.addr")
	if !serveTUI {
		fmt.Fprintln(cmd.OutOrStdout(), paragraph(fmt.Sprintf("Listening on %s", keyword("ws://"+addr+"/ws"))))
		return srv.ListenAndServe(ctx, addr)
	}
	return runDashboard(ctx, stop, srv, addr)
}

func runDashboard(ctx context.Context, stop context.CancelFunc, srv *bridge.Server, addr string) error {
	cfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %v", err)
	}
	cfg.Addr = addr

	p, unsubscribe := ui.NewProgram(cfg, srv.Status, srv.Events())
	defer unsubscribe()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(ctx, addr)
		p.Quit()
	}()

	_, runErr := p.Run()
	stop()
	serveErr := <-errCh
	if runErr != nil {
		runErr = fmt.Errorf("unable to run tui program: %w", runErr)
	}
	return errors.Join(runErr, serveErr)
}

func init() {
	serveCmd.Flags().String("addr", "", "address to listen on (default "+bridge.DefaultAddr+")")
	serveCmd.Flags().BoolVarP(&serveTUI, "tui", "t", false, "show a live dashboard")
	_ = viper.BindPFlag("bridge.addr", serveCmd.Flags().Lookup("addr"))
}
