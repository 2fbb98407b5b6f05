// Package qr превращает клиентский конфиг в сканируемую картинку.
// Векторный файл делает внешний qrencode, ANSI-вариант для терминала —
// qrterminal; телефоном можно снять прямо с экрана по ssh.
package qr

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"

	"github.com/mdp/qrterminal/v3"

	"wgprov/internal/errs"
)

// Encoder рендерит QR-коды клиентских конфигов.
type Encoder struct {
	// Bin — путь к qrencode.
	Bin string
	// Terminal — после SVG дублировать QR ANSI-графикой в TermOut.
	Terminal bool
	TermOut  io.Writer
}

func NewEncoder(bin string) *Encoder {
	return &Encoder{Bin: bin, TermOut: os.Stderr}
}

// Encode пишет SVG с QR-кодом конфига confPath в imgPath. qrencode сам
// читает исходник (-r) и сам пишет картинку (-o); уровень коррекции M и
// масштаб 6 зафиксированы — такие картинки читаются любым телефоном.
func (e *Encoder) Encode(ctx context.Context, confPath, imgPath string) error {
	cmd := exec.CommandContext(ctx, e.Bin,
		"-t", "SVG", "-l", "M", "-s", "6", "-r", confPath, "-o", imgPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return errs.Newf(errs.KindEncoding, "%s: %v: %s",
				e.Bin, err, bytes.TrimSpace(stderr.Bytes()))
		}
		return errs.Newf(errs.KindEncoding, "%s: %v", e.Bin, err)
	}
	if e.Terminal && e.TermOut != nil {
		conf, err := os.ReadFile(confPath)
		if err != nil {
			return errs.New(errs.KindEncoding, err)
		}
		RenderTerminal(string(conf), e.TermOut)
	}
	return nil
}

// RenderTerminal рисует QR конфига ANSI-блоками в w.
func RenderTerminal(conf string, w io.Writer) {
	qrterminal.Generate(conf, qrterminal.L, w)
}
