// Package provision ведёт полный цикл выпуска пиров: аллокация, ключи,
// конфиги, картинки, остановка и подъём сервиса вокруг записи.
// Управление течёт строго сверху вниз, назад никто никого не зовёт.
package provision

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"wgprov/config"
	"wgprov/internal/errs"
	"wgprov/internal/models"
	"wgprov/internal/peers"
	"wgprov/internal/qr"
	"wgprov/internal/render/wgconf"
	"wgprov/internal/serverconf"
	"wgprov/internal/svcctl"
	"wgprov/internal/wgkeys"
)

// KeyGenerator выпускает ключевой комплект одного пира.
type KeyGenerator interface {
	Generate(ctx context.Context) (models.KeyMaterial, error)
}

// Encoder рендерит QR-картинку готового клиентского конфига.
type Encoder interface {
	Encode(ctx context.Context, confPath, imgPath string) error
}

// ServiceController гасит и поднимает сервис wireguard.
type ServiceController interface {
	Stop(ctx context.Context) error
	Start(ctx context.Context) error
}

// Runner — оркестратор одного запуска.
type Runner struct {
	Cfg    *config.Config
	Store  *peers.Store
	Server *serverconf.File
	Keys   KeyGenerator
	QR     Encoder
	Svc    ServiceController
	Log    *logrus.Entry
}

// New собирает Runner с боевыми исполнителями из конфига.
func New(cfg *config.Config, log *logrus.Entry) *Runner {
	enc := qr.NewEncoder(cfg.Tools.QREncode)
	enc.Terminal = cfg.QR.Terminal
	return &Runner{
		Cfg:    cfg,
		Store:  peers.NewStore(cfg.Peers.Root),
		Server: serverconf.NewFile(cfg.ServerConfPath()),
		Keys:   wgkeys.NewToolGenerator(cfg.Tools.WG),
		QR:     enc,
		Svc:    svcctl.NewController(cfg.Tools.Systemctl, cfg.ServiceUnit()),
		Log:    log,
	}
}

// PeerFailure — одна неудача в батче с её местом и причиной.
type PeerFailure struct {
	Ordinal int
	Name    string
	Err     error
}

// Summary — итог запуска. Батч не прерывается на неудачном пире, поэтому
// итог может одновременно содержать и выпущенных, и упавших.
type Summary struct {
	Provisioned []models.PeerRecord
	Failed      []PeerFailure
	// ImageMissing — выпущенные пиры, у которых не отрисовалась картинка.
	// Конфиг у них цел, кодирование не фатально.
	ImageMissing []string
	// RestartErr — сервис не поднялся после батча. Пиры уже записаны,
	// интерфейс поднимать руками.
	RestartErr error
}

// Run выполняет один запуск провижининга. Фатально — всё до первой записи
// (замок, сверка, аллокация, остановка сервиса); после остановки пиры
// падают по одному, не утаскивая за собой батч.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	names := r.Cfg.BatchNames()
	if len(names) == 0 {
		return nil, errs.Newf(errs.KindValidation, "batch is empty, nothing to provision")
	}

	if err := os.MkdirAll(r.Cfg.Peers.Root, 0o700); err != nil {
		return nil, errs.New(errs.KindAllocation, err)
	}
	lock, err := AcquireLock(r.Cfg.Peers.Root)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	serverPub, err := r.readServerPublicKey()
	if err != nil {
		return nil, err
	}

	entries, err := r.Store.List()
	if err != nil {
		return nil, err
	}
	serverKeys, err := r.Server.PeerPublicKeys()
	if err != nil {
		return nil, err
	}
	if err := r.Store.VerifyMirror(entries, serverKeys); err != nil {
		return nil, err
	}

	alloc, err := r.Store.NextAllocation(entries, r.Cfg.Network.ServerSuffix)
	if err != nil {
		return nil, err
	}
	// либо весь батч помещается в адресное пространство, либо не начинаем
	if err := peers.CheckSuffixRange(alloc.NextSuffix, len(names), r.Cfg.Network.ServerSuffix); err != nil {
		return nil, err
	}

	r.Log.WithFields(logrus.Fields{
		"ordinal": alloc.NextOrdinal,
		"suffix":  alloc.NextSuffix,
		"count":   len(names),
	}).Info("batch allocated")

	// сервер гасим до первого касания конфига; не погас — не трогаем файлы
	if err := r.Svc.Stop(ctx); err != nil {
		return nil, err
	}

	sum := &Summary{}
	ordinal, suffix := alloc.NextOrdinal, alloc.NextSuffix
	for _, name := range names {
		rec, slotBurned, err := r.provisionOne(ctx, ordinal, suffix, name, serverPub)
		if err != nil {
			r.Log.WithFields(logrus.Fields{
				"peer":    name,
				"ordinal": ordinal,
				"kind":    errs.KindOf(err),
			}).WithError(err).Error("peer provisioning failed")
			sum.Failed = append(sum.Failed, PeerFailure{Ordinal: ordinal, Name: name, Err: err})
			if slotBurned {
				// строфа уже в серверном конфиге: ordinal и октет заняты
				ordinal++
				suffix = peers.NextSuffixAfter(suffix, r.Cfg.Network.ServerSuffix)
			}
			continue
		}

		entry := peers.Entry{Ordinal: rec.Ordinal, Name: rec.Name}
		if err := r.QR.Encode(ctx, r.Store.ClientConfPath(entry), r.Store.ImagePath(entry)); err != nil {
			// пир выпущен целиком, не хватает только картинки
			r.Log.WithField("peer", name).WithError(err).Warn("qr image not rendered")
			sum.ImageMissing = append(sum.ImageMissing, name)
		}

		r.Log.WithFields(logrus.Fields{
			"peer":    name,
			"ordinal": rec.Ordinal,
			"address": rec.Address,
		}).Info("peer provisioned")
		sum.Provisioned = append(sum.Provisioned, rec)
		ordinal++
		suffix = peers.NextSuffixAfter(suffix, r.Cfg.Network.ServerSuffix)
	}

	if err := r.Svc.Start(ctx); err != nil {
		// пиры уже выпущены; подъём интерфейса — забота оператора
		r.Log.WithError(err).Error("service start failed after provisioning")
		sum.RestartErr = err
	}
	return sum, nil
}

// provisionOne ведёт одного пира: ключи → каталог → строфа в серверный
// конфиг → клиентский конфиг. Второй результат — сожжён ли слот: после
// успешной дозаписи строфы ordinal и октет заняты независимо от исхода.
func (r *Runner) provisionOne(ctx context.Context, ordinal, suffix int, name, serverPub string) (models.PeerRecord, bool, error) {
	addr, err := wgconf.HostAddress(r.Cfg.Network.CIDR, suffix)
	if err != nil {
		return models.PeerRecord{}, false, errs.New(errs.KindAllocation, err)
	}

	km, err := r.Keys.Generate(ctx)
	if err != nil {
		return models.PeerRecord{}, false, err
	}

	rec := models.PeerRecord{
		Ordinal:     ordinal,
		Name:        name,
		Suffix:      suffix,
		Address:     addr,
		KeyMaterial: km,
	}
	if err := r.Store.CreatePeer(rec); err != nil {
		return rec, false, err
	}

	stanza := wgconf.PeerStanza(wgconf.PeerStanzaParams{
		PublicKey:    km.PublicKey,
		PresharedKey: km.PresharedKey,
		AllowedIP:    addr,
		Endpoint:     fmt.Sprintf("%s:%d", r.Cfg.Network.LANRouter, r.Cfg.Endpoint.Port),
	})
	backup, err := r.Server.AppendPeer(name, stanza)
	if err != nil {
		// серверный конфиг не изменился (rename атомарный): слот свободен,
		// каталог пира вычищаем
		_ = r.Store.RemovePeer(rec)
		return rec, false, err
	}
	r.Log.WithFields(logrus.Fields{"peer": name, "backup": backup}).Debug("server config backup written")

	conf := wgconf.Client(wgconf.ClientParams{
		Address:         addr,
		PrivateKey:      km.PrivateKey,
		DNS:             r.Cfg.Network.DNS,
		ServerPublicKey: serverPub,
		PresharedKey:    km.PresharedKey,
		AllowedIPs:      wgconf.ClientRoutes(r.Cfg.Network.LANCIDR),
		Endpoint:        fmt.Sprintf("%s:%d", r.Cfg.Endpoint.Host, r.Cfg.Endpoint.Port),
	})
	if err := r.Store.WriteClientConf(rec, conf); err != nil {
		// строфа уже дописана: ключи оставляем на диске, адрес сожжён;
		// путь бэкапа — в тексте ошибки, откат только руками
		return rec, true, errs.Newf(errs.KindConfigWrite,
			"client conf write failed after stanza append (backup %s): %v", backup, err)
	}
	return rec, true, nil
}

// readServerPublicKey читает и проверяет публичный ключ сервера: он
// попадает в каждый клиентский конфиг, мусор здесь испортит весь батч.
func (r *Runner) readServerPublicKey() (string, error) {
	path := r.Cfg.WireGuard.ServerPublicKeyFile
	b, err := os.ReadFile(path)
	if err != nil {
		return "", errs.New(errs.KindValidation, err)
	}
	key := strings.TrimSpace(string(b))
	if err := wgkeys.ValidateKey(key); err != nil {
		return "", errs.Newf(errs.KindValidation, "server public key %s: %v", path, err)
	}
	return key, nil
}
