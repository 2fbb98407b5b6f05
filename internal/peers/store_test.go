package peers

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"wgprov/internal/errs"
	"wgprov/internal/models"
)

// writePeerDir раскладывает на диск каталог пира с конфигом и ключом —
// ровно то, что оставляет после себя успешный провижининг.
func writePeerDir(t *testing.T, root, dirName, name string, suffix int, pub string) {
	t.Helper()
	dir := filepath.Join(root, dirName)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	conf := fmt.Sprintf("[Interface]\nAddress = 10.6.0.%d/32\nPrivateKey = X\nDNS = 10.6.0.1\n", suffix)
	if err := os.WriteFile(filepath.Join(dir, name+".conf"), []byte(conf), 0o600); err != nil {
		t.Fatalf("write conf: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "publickey"), []byte(pub+"\n"), 0o644); err != nil {
		t.Fatalf("write publickey: %v", err)
	}
}

func TestListNumericOrder(t *testing.T) {
	root := t.TempDir()
	// лексически "10" < "9" — сортировка обязана быть числовой
	writePeerDir(t, root, "9_ruth", "ruth", 10, "PUB9")
	writePeerDir(t, root, "10_sam", "sam", 11, "PUB10")
	writePeerDir(t, root, "2_ann", "ann", 3, "PUB2")

	s := NewStore(root)
	entries, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var got []int
	for _, e := range entries {
		got = append(got, e.Ordinal)
	}
	want := []int{2, 9, 10}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order %v, want %v", got, want)
		}
	}
}

func TestListSkipsLockAndDotfiles(t *testing.T) {
	root := t.TempDir()
	writePeerDir(t, root, "1_ann", "ann", 2, "PUB")
	if err := os.WriteFile(filepath.Join(root, ".lock"), nil, 0o600); err != nil {
		t.Fatalf("write lock: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(root, ".cache"), 0o700); err != nil {
		t.Fatalf("mkdir dot dir: %v", err)
	}

	entries, err := NewStore(root).List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "ann" {
		t.Fatalf("entries = %+v, want only 1_ann", entries)
	}
}

func TestListRejectsMalformedDir(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "garbage"), 0o700); err != nil {
		t.Fatal(err)
	}
	_, err := NewStore(root).List()
	if err == nil {
		t.Fatal("List accepted a directory without an ordinal")
	}
	if errs.KindOf(err) != errs.KindAllocation {
		t.Fatalf("kind = %q, want allocation", errs.KindOf(err))
	}
}

func TestListMissingRootIsEmpty(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "nope"))
	entries, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("entries = %+v, want none", entries)
	}
}

func TestNextAllocationEmpty(t *testing.T) {
	s := NewStore(t.TempDir())
	alloc, err := s.NextAllocation(nil, 1)
	if err != nil {
		t.Fatalf("NextAllocation: %v", err)
	}
	if alloc.NextOrdinal != 1 || alloc.NextSuffix != 2 {
		t.Fatalf("alloc = %+v, want ordinal 1 suffix 2", alloc)
	}
}

func TestNextAllocationAfterDoubleDigit(t *testing.T) {
	root := t.TempDir()
	writePeerDir(t, root, "9_ruth", "ruth", 10, "PUB9")
	writePeerDir(t, root, "10_sam", "sam", 11, "PUB10")

	s := NewStore(root)
	entries, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	alloc, err := s.NextAllocation(entries, 1)
	if err != nil {
		t.Fatalf("NextAllocation: %v", err)
	}
	// 11, не 2: следующий считается от 10_sam
	if alloc.NextOrdinal != 11 {
		t.Fatalf("NextOrdinal = %d, want 11", alloc.NextOrdinal)
	}
	if alloc.NextSuffix != 12 {
		t.Fatalf("NextSuffix = %d, want 12", alloc.NextSuffix)
	}
}

func TestNextAllocationSuffixAfterFive(t *testing.T) {
	root := t.TempDir()
	writePeerDir(t, root, "1_ann", "ann", 5, "PUB")

	s := NewStore(root)
	entries, _ := s.List()
	alloc, err := s.NextAllocation(entries, 1)
	if err != nil {
		t.Fatalf("NextAllocation: %v", err)
	}
	if alloc.NextSuffix != 6 {
		t.Fatalf("NextSuffix = %d, want 6", alloc.NextSuffix)
	}
}

func TestNextAllocationSkipsReserved(t *testing.T) {
	root := t.TempDir()
	writePeerDir(t, root, "1_ann", "ann", 4, "PUB")

	s := NewStore(root)
	entries, _ := s.List()
	alloc, err := s.NextAllocation(entries, 5)
	if err != nil {
		t.Fatalf("NextAllocation: %v", err)
	}
	if alloc.NextSuffix != 6 {
		t.Fatalf("NextSuffix = %d, want 6 (5 reserved)", alloc.NextSuffix)
	}
}

func TestNextAllocationExhausted(t *testing.T) {
	root := t.TempDir()
	writePeerDir(t, root, "1_ann", "ann", 254, "PUB")

	s := NewStore(root)
	entries, _ := s.List()
	if _, err := s.NextAllocation(entries, 1); err == nil {
		t.Fatal("want exhaustion error for suffix 255")
	}
}

func TestNextAllocationMissingConf(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "3_bob"), 0o700); err != nil {
		t.Fatal(err)
	}
	s := NewStore(root)
	entries, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if _, err := s.NextAllocation(entries, 1); err == nil {
		t.Fatal("want error when latest peer has no client conf")
	}
}

func TestCheckSuffixRange(t *testing.T) {
	cases := []struct {
		start, count, reserved int
		ok                     bool
	}{
		{2, 1, 1, true},
		{2, 253, 1, true},   // ровно весь диапазон
		{2, 254, 1, false},  // на один больше
		{250, 4, 252, true}, // 250,251,253,254 — reserved пропущен
		{250, 5, 252, false},
		{254, 1, 1, true},
		{254, 2, 1, false},
	}
	for _, c := range cases {
		err := CheckSuffixRange(c.start, c.count, c.reserved)
		if c.ok && err != nil {
			t.Errorf("CheckSuffixRange(%d,%d,%d): %v", c.start, c.count, c.reserved, err)
		}
		if !c.ok && err == nil {
			t.Errorf("CheckSuffixRange(%d,%d,%d): want error", c.start, c.count, c.reserved)
		}
	}
}

func TestNextSuffixAfter(t *testing.T) {
	if got := NextSuffixAfter(4, 1); got != 5 {
		t.Fatalf("got %d, want 5", got)
	}
	if got := NextSuffixAfter(4, 5); got != 6 {
		t.Fatalf("got %d, want 6 (reserved skipped)", got)
	}
}

func TestCreatePeerWritesKeyFiles(t *testing.T) {
	root := t.TempDir()
	s := NewStore(root)
	rec := models.PeerRecord{
		Ordinal: 7,
		Name:    "dora",
		Suffix:  8,
		Address: "10.6.0.8/32",
		KeyMaterial: models.KeyMaterial{
			PrivateKey:   "PRIV",
			PublicKey:    "PUB",
			PresharedKey: "PSK",
		},
	}
	if err := s.CreatePeer(rec); err != nil {
		t.Fatalf("CreatePeer: %v", err)
	}
	for name, want := range map[string]string{
		"privatekey":   "PRIV\n",
		"publickey":    "PUB\n",
		"presharedkey": "PSK\n",
	} {
		b, err := os.ReadFile(filepath.Join(root, "7_dora", name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if string(b) != want {
			t.Fatalf("%s = %q, want %q", name, b, want)
		}
	}
	fi, err := os.Stat(filepath.Join(root, "7_dora", "privatekey"))
	if err != nil {
		t.Fatal(err)
	}
	if fi.Mode().Perm() != 0o600 {
		t.Fatalf("privatekey mode = %v, want 0600", fi.Mode().Perm())
	}

	// повторный провижининг того же каталога — ошибка, не перезапись
	if err := s.CreatePeer(rec); err == nil {
		t.Fatal("CreatePeer overwrote an existing directory")
	}
}

func TestFind(t *testing.T) {
	root := t.TempDir()
	writePeerDir(t, root, "1_ann", "ann", 2, "PUB")
	s := NewStore(root)

	e, err := s.Find("ann")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if e.Ordinal != 1 {
		t.Fatalf("Ordinal = %d, want 1", e.Ordinal)
	}
	if _, err := s.Find("zoe"); !errors.Is(err, ErrPeerNotFound) {
		t.Fatalf("err = %v, want ErrPeerNotFound", err)
	}
}

func TestVerifyMirror(t *testing.T) {
	root := t.TempDir()
	writePeerDir(t, root, "1_ann", "ann", 2, "PUBANN")
	writePeerDir(t, root, "2_bob", "bob", 3, "PUBBOB")
	s := NewStore(root)
	entries, _ := s.List()

	ok := map[string]bool{"PUBANN": true, "PUBBOB": true}
	if err := s.VerifyMirror(entries, ok); err != nil {
		t.Fatalf("VerifyMirror: %v", err)
	}

	missing := map[string]bool{"PUBANN": true}
	err := s.VerifyMirror(entries, missing)
	if err == nil {
		t.Fatal("VerifyMirror passed with a key missing from the server config")
	}
	if errs.KindOf(err) != errs.KindAllocation {
		t.Fatalf("kind = %q, want allocation", errs.KindOf(err))
	}
}
