package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/DRSN-tech/garment-search/internal/app"
	config "github.com/DRSN-tech/garment-search/internal/cfg"
	"github.com/DRSN-tech/garment-search/pkg/logger"
	"github.com/spf13/cobra"
)

var log = logger.NewSlogLogger()

var rootCmd = &cobra.Command{
	Use:           "garment-search",
	Short:         "Поиск похожих товаров одежды по фото",
	Long:          "Сервис поиска похожих товаров по фото и пакетная генерация эмбеддингов каталога.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

//	@title			Garment Search API
//	@version		1.0
//	@description	Поиск похожих товаров одежды по фото.
//	@BasePath		/
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.AddCommand(serveCmd, embedCmd)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Errorf(err, "command failed")
		stop()
		os.Exit(1)
	}
}

// newApp загружает конфигурацию и собирает зависимости.
func newApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load(log)
	if err != nil {
		log.Errorf(err, "failed to load config")
		return nil, err
	}

	application, err := app.NewApp(ctx, cfg, log)
	if err != nil {
		log.Errorf(err, "failed to initialize app")
		return nil, err
	}

	return application, nil
}
