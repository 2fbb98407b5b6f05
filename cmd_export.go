package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"wgprov/internal/peers"
	"wgprov/internal/tarball"
)

var flagExportOut string

var exportCmd = &cobra.Command{
	Use:   "export <name>",
	Short: "Bundle a peer's client files into a tar.gz",
	Long: `Собрать конфиг и QR-картинку пира в один tar.gz — так их удобно
передавать владельцу устройства. Архив детерминированный, контрольная
сумма печатается в stderr.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&flagExportOut, "out", "o", "", "output path (default <name>.tar.gz)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	store := peers.NewStore(cfg.Peers.Root)
	e, err := store.Find(args[0])
	if err != nil {
		return fmt.Errorf("peer %q: %w", args[0], err)
	}
	conf, err := store.ReadClientConf(e)
	if err != nil {
		return err
	}
	files := []tarball.File{{Name: e.Name + ".conf", Data: conf, Mode: 0o600}}
	// картинка опциональна: пир мог быть выпущен без работающего qrencode
	if svg, err := os.ReadFile(store.ImagePath(e)); err == nil {
		files = append(files, tarball.File{Name: e.Name + ".svg", Data: svg})
	}

	archive, sum, err := tarball.Build(files)
	if err != nil {
		return err
	}

	out := flagExportOut
	if out == "" {
		out = e.Name + ".tar.gz"
	}
	// внутри приватный ключ пира, права как у самого конфига
	if err := os.WriteFile(out, archive, 0o600); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s sha256 %s\n", out, sum)
	return nil
}
