package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"wgprov/internal/peers"
	"wgprov/internal/qr"
)

var flagShowQR bool

var showCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print an existing peer's client config",
	Long: `Вывести клиентский конфиг пира в stdout. С флагом --qr тот же конфиг
дополнительно рисуется QR-кодом в stderr — stdout остаётся пригодным
для пайпа.

Example:
  wgprov show ann > ann.conf
  wgprov show ann --qr`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	showCmd.Flags().BoolVar(&flagShowQR, "qr", false, "render the config as an ANSI QR code on stderr")
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	store := peers.NewStore(cfg.Peers.Root)
	e, err := store.Find(args[0])
	if err != nil {
		return fmt.Errorf("peer %q: %w", args[0], err)
	}
	conf, err := store.ReadClientConf(e)
	if err != nil {
		return err
	}
	if _, err := cmd.OutOrStdout().Write(conf); err != nil {
		return err
	}
	if flagShowQR {
		qr.RenderTerminal(string(conf), cmd.ErrOrStderr())
	}
	return nil
}
