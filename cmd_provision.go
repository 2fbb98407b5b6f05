package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"wgprov/config"
	"wgprov/internal/logs"
	"wgprov/internal/provision"
)

var (
	flagBatchStart int
	flagBatchCount int
)

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Allocate and write the next batch of peer configs",
	Long: `Выпустить очередной батч пиров: окно batch.start/batch.count по списку
peers.names. Номера и адреса выводятся из каталога peers заново на каждом
запуске; упавший пир не прерывает батч и попадает в сводку отдельно.

Example:
  wgprov provision                  # окно из конфига
  wgprov provision --start 4 --count 2`,
	RunE: runProvision,
}

func init() {
	provisionCmd.Flags().IntVar(&flagBatchStart, "start", 0, "override batch.start for this run")
	provisionCmd.Flags().IntVar(&flagBatchCount, "count", 0, "override batch.count for this run")
	rootCmd.AddCommand(provisionCmd)
}

func runProvision(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("start") {
		cfg.Batch.Start = flagBatchStart
	}
	if cmd.Flags().Changed("count") {
		cfg.Batch.Count = flagBatchCount
	}
	// окно могло сдвинуться флагами — проверяем конфиг заново
	if err := config.Validate(cfg); err != nil {
		return err
	}

	log := logs.Logger.WithField("run", uuid.NewString())
	sum, err := provision.New(cfg, log).Run(cmd.Context())
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	for _, rec := range sum.Provisioned {
		fmt.Fprintf(w, "%d\t%s\t%s\n", rec.Ordinal, rec.Name, rec.Address)
	}
	for _, name := range sum.ImageMissing {
		fmt.Fprintf(cmd.ErrOrStderr(), "peer %s: config written, qr image missing\n", name)
	}

	if len(sum.Failed) > 0 {
		return fmt.Errorf("%d of %d peers failed, see log",
			len(sum.Failed), len(sum.Failed)+len(sum.Provisioned))
	}
	if sum.RestartErr != nil {
		return fmt.Errorf("peers provisioned but the service did not start: %w", sum.RestartErr)
	}
	return nil
}
