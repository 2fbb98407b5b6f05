package provision

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"wgprov/internal/errs"
)

// Дот-файл замка в корне peers; листинг пиров такие файлы пропускает.
const lockFile = ".lock"

// Lock — эксклюзивный flock на каталоге peers на время запуска. Два
// параллельных запуска против одного каталога разъехались бы по одним
// и тем же ordinal и адресам.
type Lock struct {
	f *os.File
}

// AcquireLock берёт замок без ожидания: второй запуск падает сразу,
// а не встаёт молча в очередь за первым.
func AcquireLock(root string) (*Lock, error) {
	f, err := os.OpenFile(filepath.Join(root, lockFile), os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, errs.New(errs.KindAllocation, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, errs.Newf(errs.KindAllocation,
			"peers root %s is locked by another run: %v", root, err)
	}
	return &Lock{f: f}, nil
}

// Release снимает замок. Сам файл остаётся: следующий запуск переиспользует.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	if cerr := l.f.Close(); err == nil {
		err = cerr
	}
	l.f = nil
	return err
}
