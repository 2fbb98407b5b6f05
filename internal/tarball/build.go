package tarball

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// File — один файл внутри архива выдачи.
type File struct {
	Name string
	Data []byte
	Mode int64
}

// sanitize path: no leading slash, clean, unix slashes
func canonName(name string) string {
	name = strings.TrimLeft(name, "/")
	return filepath.ToSlash(filepath.Clean(name))
}

// Build собирает tar.gz из файлов пира. Возвращает архив и sha256 в hex.
// Архив детерминированный: фиксированные заголовки gzip и tar, канонический
// порядок файлов — одинаковая выдача даёт одинаковую контрольную сумму.
func Build(files []File) ([]byte, string, error) {
	var buf bytes.Buffer

	gz := gzip.NewWriter(&buf)
	gz.Name = ""
	gz.Comment = ""
	gz.ModTime = time.Unix(0, 0)

	tw := tar.NewWriter(gz)

	add := func(name string, data []byte, mode int64) error {
		name = canonName(name)
		if name == "" || name == "." {
			return nil
		}
		hdr := &tar.Header{
			Name:    name,
			Mode:    mode,
			Size:    int64(len(data)),
			ModTime: time.Unix(0, 0),
			Uid:     0, Gid: 0, Uname: "", Gname: "",
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		_, err := tw.Write(data)
		return err
	}

	// порядок по уже очищенному имени, иначе ведущий слэш ломает канон
	sort.Slice(files, func(i, j int) bool { return canonName(files[i].Name) < canonName(files[j].Name) })
	for _, f := range files {
		mode := f.Mode
		if mode == 0 {
			mode = 0644
		}
		if err := add(f.Name, f.Data, mode); err != nil {
			_ = tw.Close()
			_ = gz.Close()
			return nil, "", err
		}
	}

	_ = tw.Close()
	_ = gz.Close()

	sum := sha256.Sum256(buf.Bytes())
	return buf.Bytes(), hex.EncodeToString(sum[:]), nil
}
