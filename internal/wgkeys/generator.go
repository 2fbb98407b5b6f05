// Package wgkeys получает ключевой материал от внешнего генератора.
// Собственной криптографии здесь нет и не будет: приватный ключ, публичный
// ключ и PSK делает бинарь wg, мы только проверяем, что он вернул ключ.
package wgkeys

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"

	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"

	"wgprov/internal/errs"
	"wgprov/internal/models"
)

// ToolGenerator выполняет wg genkey / wg pubkey / wg genpsk.
type ToolGenerator struct {
	// Bin — путь к бинарю wg. Подменяется в конфиге (и в тестах).
	Bin string
}

func NewToolGenerator(bin string) *ToolGenerator { return &ToolGenerator{Bin: bin} }

// Generate выпускает полный комплект ключей одного пира: пару и отдельный
// PSK. Три вызова генератора строго последовательно, как того требует
// протокол wg pubkey (приватный ключ подаётся на stdin).
func (g *ToolGenerator) Generate(ctx context.Context) (models.KeyMaterial, error) {
	priv, err := g.run(ctx, nil, "genkey")
	if err != nil {
		return models.KeyMaterial{}, err
	}
	pub, err := g.run(ctx, strings.NewReader(priv+"\n"), "pubkey")
	if err != nil {
		return models.KeyMaterial{}, err
	}
	psk, err := g.run(ctx, nil, "genpsk")
	if err != nil {
		return models.KeyMaterial{}, err
	}
	return models.KeyMaterial{PrivateKey: priv, PublicKey: pub, PresharedKey: psk}, nil
}

func (g *ToolGenerator) run(ctx context.Context, stdin io.Reader, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, g.Bin, args...)
	cmd.Stdin = stdin
	out, err := cmd.Output()
	if err != nil {
		return "", execError(g.Bin, args, err)
	}
	key := strings.TrimSpace(string(out))
	if key == "" {
		return "", errs.Newf(errs.KindKeygen, "%s %s: empty output", g.Bin, strings.Join(args, " "))
	}
	if err := ValidateKey(key); err != nil {
		return "", errs.Newf(errs.KindKeygen, "%s %s: %v", g.Bin, strings.Join(args, " "), err)
	}
	return key, nil
}

// ValidateKey проверяет, что строка — ключ wireguard (base64, 32 байта).
// Этой же проверкой прогоняется публичный ключ сервера при старте.
func ValidateKey(s string) error {
	if _, err := wgtypes.ParseKey(s); err != nil {
		return err
	}
	return nil
}

// execError разворачивает ошибку внешнего процесса вместе с его stderr:
// голый exit status оператору ни о чём не говорит.
func execError(bin string, args []string, err error) error {
	var ee *exec.ExitError
	if errors.As(err, &ee) && len(ee.Stderr) > 0 {
		return errs.Newf(errs.KindKeygen, "%s %s: %v: %s",
			bin, strings.Join(args, " "), err, bytes.TrimSpace(ee.Stderr))
	}
	return errs.Newf(errs.KindKeygen, "%s %s: %v", bin, strings.Join(args, " "), err)
}
