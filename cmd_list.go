package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"wgprov/internal/peers"
	"wgprov/internal/render/wgconf"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List provisioned peers and the next allocation",
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	store := peers.NewStore(cfg.Peers.Root)
	entries, err := store.List()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "ORDINAL\tNAME\tADDRESS\tPUBLIC KEY")
	for _, e := range entries {
		// листинг — инструмент разбора завалов: сломанный каталог
		// показываем с прочерками, а не падаем на нём
		addr := "-"
		if conf, err := store.ReadClientConf(e); err == nil {
			if a, err := wgconf.ParseAddress(conf); err == nil {
				addr = a
			}
		}
		pub := "-"
		if k, err := store.ReadPublicKey(e); err == nil {
			pub = k
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", e.Ordinal, e.Name, addr, pub)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	alloc, err := store.NextAllocation(entries, cfg.Network.ServerSuffix)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "next allocation unavailable: %v\n", err)
		return nil
	}
	addr, err := wgconf.HostAddress(cfg.Network.CIDR, alloc.NextSuffix)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\nnext: ordinal %d, address %s\n", alloc.NextOrdinal, addr)
	return nil
}
