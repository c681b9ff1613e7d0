package start

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/quotepulse/quotepulse/api/baostock"
	"github.com/quotepulse/quotepulse/api/sina"
	"github.com/quotepulse/quotepulse/api/tushare"
	"github.com/quotepulse/quotepulse/calendar"
	"github.com/quotepulse/quotepulse/feed"
	"github.com/quotepulse/quotepulse/frontend"
	"github.com/quotepulse/quotepulse/frontend/stream"
	"github.com/quotepulse/quotepulse/playback"
	"github.com/quotepulse/quotepulse/utils"
	"github.com/quotepulse/quotepulse/utils/log"
)

const (
	usage                 = "start"
	short                 = "Start a quotepulse distribution server"
	long                  = "This command starts a quotepulse quote distribution server"
	example               = "quotepulse start --config <path>"
	defaultConfigFilePath = "./quotepulse.yml"
	configDesc            = "set the path for the quotepulse YAML configuration file"

	shutdownGracePeriod = 5 * time.Second
)

var (
	// Cmd is the start command.
	Cmd = &cobra.Command{
		Use:        usage,
		Short:      short,
		Long:       long,
		Aliases:    []string{"s"},
		SuggestFor: []string{"boot", "up"},
		Example:    example,
		RunE:       executeStart,
	}
	// configFilePath set flag for a path to the config file.
	configFilePath string
)

// nolint:gochecknoinits // cobra's standard way to initialize flags
func init() {
	Cmd.Flags().StringVarP(&configFilePath, "config", "c", defaultConfigFilePath, configDesc)
}

// executeStart implements the start command.
func executeStart(cmd *cobra.Command, _ []string) error {
	startTime := time.Now()

	// Attempt to read config file.
	data, err := os.ReadFile(configFilePath)
	if err != nil {
		return fmt.Errorf("failed to read configuration file error: %w", err)
	}

	// Don't output command usage if args are correct.
	cmd.SilenceUsage = true

	// Log config location.
	log.Info("using %v for configuration", configFilePath)

	// Attempt to set configuration.
	config, err := utils.ParseConfig(data)
	if err != nil {
		return fmt.Errorf("failed to parse configuration file error: %w", err)
	}
	time.Local = config.Timezone

	session := calendar.Session{Open: config.SessionOpen, Close: config.SessionClose}

	// Live side: quote fetcher, trading-day checker, synchronizer.
	log.Info("initializing live quote synchronizer...")
	quotes := sina.NewClient(config.SinaBaseURL)
	checker := tushare.NewClient(config.TushareHost, config.TushareToken)
	sync := feed.NewSynchronizer(quotes, checker, session, config.PollInterval)
	defer sync.Close()

	// Live event feed: pushed quotes are buffered and folded in by the
	// polling cycle.
	ingestor := feed.NewIngestor(sync)
	go ingestor.Run()
	defer ingestor.Close()

	// Playback side: historical fetcher subprocess and the per-token
	// simulations.  Optional; without a fetcher the endpoint refuses
	// sessions.
	var manager *playback.Manager
	if len(config.BaoStockCommand) > 0 {
		log.Info("initializing playback manager...")
		history, err2 := baostock.NewClient(config.BaoStockCommand)
		if err2 != nil {
			return fmt.Errorf("failed to start historical price fetcher: %w", err2)
		}
		defer func() {
			if err3 := history.Close(); err3 != nil {
				log.Warn("historical price fetcher close: %v", err3)
			}
		}()
		manager = playback.NewManager(history, session, config.PlaybackStep)
	} else {
		log.Warn("no baostock_command configured, playback is disabled")
	}

	tokens := utils.NewTokenRegistry(utils.TokenSettings{
		ListInterval:     config.ListPushInterval,
		TrendInterval:    config.TrendPushInterval,
		PlaybackInterval: config.PlaybackPushInterval,
	})

	// HTTP surface.
	log.Info("initializing websocket endpoints...")
	handlers := &stream.Handlers{Sync: sync, Playback: manager, Tokens: tokens}
	srv := frontend.NewServer(":"+config.ListenPort, handlers, startTime)

	// Spawn a goroutine and listen for a signal.
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-signalChan
		log.Info("initiating graceful shutdown due to '%v' request", s)
		ctx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err2 := srv.Shutdown(ctx); err2 != nil {
			log.Error("http server shutdown: %v", err2)
		}
	}()

	log.Info("launching tcp listener for all services...")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server - error: %w", err)
	}
	log.Info("exiting...")
	return nil
}
