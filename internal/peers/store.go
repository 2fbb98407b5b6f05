package peers

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"wgprov/internal/errs"
	"wgprov/internal/models"
)

var ErrPeerNotFound = errors.New("peer not found")

// Файлы внутри каталога пира. Имена зафиксированы форматом раскладки:
// по ним ходит и аллокатор, и сверка с серверным конфигом.
const (
	privateKeyFile   = "privatekey"
	publicKeyFile    = "publickey"
	presharedKeyFile = "presharedkey"
)

// Store — файловое хранилище пиров: каталог <ordinal>_<name> на пира под
// корнем Root. Всё состояние живёт на диске, в памяти между запусками
// ничего не держим.
type Store struct {
	Root string
}

func NewStore(root string) *Store { return &Store{Root: root} }

// Entry — существующий каталог пира.
type Entry struct {
	Ordinal int
	Name    string
}

func (e Entry) DirName() string { return fmt.Sprintf("%d_%s", e.Ordinal, e.Name) }

func (s *Store) dir(e Entry) string { return filepath.Join(s.Root, e.DirName()) }

// ClientConfPath — путь клиентского конфига пира.
func (s *Store) ClientConfPath(e Entry) string { return filepath.Join(s.dir(e), e.Name+".conf") }

// ImagePath — путь SVG с QR-кодом пира.
func (s *Store) ImagePath(e Entry) string { return filepath.Join(s.dir(e), e.Name+".svg") }

// parseDirName разбирает "<ordinal>_<name>". Мусорное имя каталога —
// ошибка аллокации, а не молчаливый пропуск: иначе следующий ordinal
// посчитается мимо.
func parseDirName(dn string) (Entry, error) {
	num, name, ok := strings.Cut(dn, "_")
	if !ok || name == "" {
		return Entry{}, fmt.Errorf("directory %q: want <ordinal>_<name>", dn)
	}
	n, err := strconv.Atoi(num)
	if err != nil || n < 1 {
		return Entry{}, fmt.Errorf("directory %q: ordinal %q does not parse", dn, num)
	}
	return Entry{Ordinal: n, Name: name}, nil
}

// List возвращает пиров, отсортированных по ordinal по возрастанию.
// Сортировка числовая: 10 идёт после 9, лексика тут не работает.
// Отсутствующий корень равен пустому.
func (s *Store) List() ([]Entry, error) {
	des, err := os.ReadDir(s.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.New(errs.KindAllocation, err)
	}
	var entries []Entry
	for _, de := range des {
		// служебные файлы (лок и т.п.) каталогами не являются
		if !de.IsDir() || strings.HasPrefix(de.Name(), ".") {
			continue
		}
		e, err := parseDirName(de.Name())
		if err != nil {
			return nil, errs.New(errs.KindAllocation, err)
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Ordinal < entries[j].Ordinal })
	return entries, nil
}

// Find ищет пира по отображаемому имени.
func (s *Store) Find(name string) (Entry, error) {
	entries, err := s.List()
	if err != nil {
		return Entry{}, err
	}
	for _, e := range entries {
		if e.Name == name {
			return e, nil
		}
	}
	return Entry{}, ErrPeerNotFound
}

// ReadPublicKey читает публичный ключ пира (нужен сверке с серверным
// конфигом).
func (s *Store) ReadPublicKey(e Entry) (string, error) {
	b, err := os.ReadFile(filepath.Join(s.dir(e), publicKeyFile))
	if err != nil {
		return "", errs.New(errs.KindAllocation, err)
	}
	return strings.TrimSpace(string(b)), nil
}

// ReadClientConf читает клиентский конфиг пира.
func (s *Store) ReadClientConf(e Entry) ([]byte, error) {
	b, err := os.ReadFile(s.ClientConfPath(e))
	if err != nil {
		return nil, errs.New(errs.KindAllocation, err)
	}
	return b, nil
}

// CreatePeer создаёт каталог пира и пишет три файла ключей. Любая ошибка
// вычищает каталог целиком: полузаписанный пир не должен выглядеть готовым.
// Конфиги на этом шаге ещё не тронуты.
func (s *Store) CreatePeer(rec models.PeerRecord) error {
	dir := filepath.Join(s.Root, rec.DirName())
	if _, err := os.Stat(dir); err == nil {
		return errs.Newf(errs.KindAllocation, "peer directory %s already exists", dir)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errs.New(errs.KindKeygen, err)
	}
	write := func(name, data string, mode os.FileMode) error {
		return os.WriteFile(filepath.Join(dir, name), []byte(data+"\n"), mode)
	}
	if err := write(privateKeyFile, rec.PrivateKey, 0o600); err != nil {
		_ = os.RemoveAll(dir)
		return errs.New(errs.KindKeygen, err)
	}
	if err := write(publicKeyFile, rec.PublicKey, 0o644); err != nil {
		_ = os.RemoveAll(dir)
		return errs.New(errs.KindKeygen, err)
	}
	if err := write(presharedKeyFile, rec.PresharedKey, 0o600); err != nil {
		_ = os.RemoveAll(dir)
		return errs.New(errs.KindKeygen, err)
	}
	return nil
}

// WriteClientConf пишет клиентский конфиг пира (0600: внутри приватный ключ).
func (s *Store) WriteClientConf(rec models.PeerRecord, conf []byte) error {
	e := Entry{Ordinal: rec.Ordinal, Name: rec.Name}
	if err := os.WriteFile(s.ClientConfPath(e), conf, 0o600); err != nil {
		return errs.New(errs.KindConfigWrite, err)
	}
	return nil
}

// RemovePeer убирает каталог пира; используется при откате неудачного шага.
func (s *Store) RemovePeer(rec models.PeerRecord) error {
	return os.RemoveAll(filepath.Join(s.Root, rec.DirName()))
}
