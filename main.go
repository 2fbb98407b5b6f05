package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"wgprov/config"
	"wgprov/internal/logs"
)

// cfg загружается один раз перед любой командой и дальше не меняется,
// не считая явных переопределений флагами.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "wgprov",
	Short: "Provision wireguard peers on this host",
	Long: `wgprov выпускает пиров wireguard на локальном сервере: подбирает
следующий свободный номер и адрес, генерирует ключи через wg, дописывает
строфу в серверный конфиг (с бэкапом), пишет клиентский конфиг и рисует
QR-код. Сервис wg-quick гасится на время записи и поднимается после.

Вся конфигурация — файл config.yaml (CONFIG_FILE, ./, $XDG_CONFIG_HOME/wgprov,
/etc/wgprov) либо переменные окружения вида PEERS_ROOT, BATCH_COUNT.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return err
		}
		cfg = c
		logs.Init(logs.Options{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
			File:   cfg.Logging.File,
		})
		return nil
	},
}

func main() {
	// логгер с дефолтами до чтения конфига: ошибке загрузки тоже нужен сток
	logs.Init(logs.Options{})

	// Ctrl-C валит внешние процессы через контекст, а не бросает
	// полуостановленный сервис молча
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logs.Logger.Error(err)
		os.Exit(1)
	}
}
