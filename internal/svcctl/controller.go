// Package svcctl гасит и поднимает сервис wireguard вокруг записи конфига.
// Живой сервер не должен перечитать файл посреди дозаписи.
package svcctl

import (
	"bytes"
	"context"
	"os/exec"

	"wgprov/internal/errs"
)

// Controller дёргает systemctl для одного юнита (wg-quick@<интерфейс>).
type Controller struct {
	// Bin — путь к systemctl.
	Bin  string
	Unit string
}

func NewController(bin, unit string) *Controller {
	return &Controller{Bin: bin, Unit: unit}
}

func (c *Controller) Stop(ctx context.Context) error  { return c.run(ctx, "stop") }
func (c *Controller) Start(ctx context.Context) error { return c.run(ctx, "start") }

func (c *Controller) run(ctx context.Context, verb string) error {
	cmd := exec.CommandContext(ctx, c.Bin, verb, c.Unit)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return errs.Newf(errs.KindServiceControl, "%s %s %s: %v: %s",
				c.Bin, verb, c.Unit, err, bytes.TrimSpace(stderr.Bytes()))
		}
		return errs.Newf(errs.KindServiceControl, "%s %s %s: %v", c.Bin, verb, c.Unit, err)
	}
	return nil
}
