// Package serverconf работает с конфигом сервера wireguard: бэкап,
// дозапись [Peer]-строф, чтение публичных ключей уже известных пиров.
package serverconf

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"wgprov/internal/errs"
)

// Штамп времени в имени бэкапа: <conf>.<YYYYMMDD_HHMMSS>.<имя пира>.
const backupStamp = "20060102_150405"

// File — серверный конфиг по фиксированному пути. Часы подменяемые,
// чтобы в тестах имена бэкапов были предсказуемы.
type File struct {
	Path string
	Now  func() time.Time
}

func NewFile(path string) *File {
	return &File{Path: path, Now: time.Now}
}

// backupName строит имя бэкапа рядом с конфигом. Имя пира в хвосте —
// чтобы по каталогу было видно, перед каким добавлением снят слепок.
func (f *File) backupName(peer string) string {
	return fmt.Sprintf("%s.%s.%s", f.Path, f.Now().Format(backupStamp), peer)
}

// AppendPeer дописывает строфу пира в конец конфига. Сначала бэкап
// текущего содержимого, затем замена файла через временный + rename:
// сервер никогда не увидит конфиг, записанный наполовину. Возвращает
// путь бэкапа — он уходит в лог и остаётся для ручного отката.
func (f *File) AppendPeer(peer string, stanza []byte) (string, error) {
	st, err := os.Stat(f.Path)
	if err != nil {
		return "", errs.New(errs.KindConfigWrite, err)
	}
	mode := st.Mode().Perm()

	cur, err := os.ReadFile(f.Path)
	if err != nil {
		return "", errs.New(errs.KindConfigWrite, err)
	}

	backup := f.backupName(peer)
	if err := os.WriteFile(backup, cur, mode); err != nil {
		return "", errs.Newf(errs.KindConfigWrite, "backup %s: %v", backup, err)
	}

	// ровно одна пустая строка между строфами, сколько бы хвостовых
	// переводов строки ни накопилось в файле
	var buf bytes.Buffer
	if trimmed := bytes.TrimRight(cur, "\n"); len(trimmed) > 0 {
		buf.Write(trimmed)
		buf.WriteString("\n\n")
	}
	buf.Write(stanza)

	tmp, err := os.CreateTemp(filepath.Dir(f.Path), "."+filepath.Base(f.Path)+".*")
	if err != nil {
		return backup, errs.New(errs.KindConfigWrite, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return backup, errs.New(errs.KindConfigWrite, err)
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return backup, errs.New(errs.KindConfigWrite, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return backup, errs.New(errs.KindConfigWrite, err)
	}
	if err := os.Rename(tmpName, f.Path); err != nil {
		os.Remove(tmpName)
		return backup, errs.New(errs.KindConfigWrite, err)
	}
	return backup, nil
}

// PeerPublicKeys собирает публичные ключи всех [Peer]-строф конфига.
// По ним каталог peers сверяется с сервером перед аллокацией.
func (f *File) PeerPublicKeys() (map[string]bool, error) {
	b, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, errs.New(errs.KindAllocation, err)
	}
	keys := make(map[string]bool)
	inPeer := false
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case strings.HasPrefix(line, "["):
			inPeer = strings.EqualFold(line, "[Peer]")
		case inPeer:
			// Cut по первому "=": base64-ключ со своим хвостовым "=" не страдает
			k, v, ok := strings.Cut(line, "=")
			if ok && strings.TrimSpace(k) == "PublicKey" {
				keys[strings.TrimSpace(v)] = true
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errs.New(errs.KindAllocation, err)
	}
	return keys, nil
}
