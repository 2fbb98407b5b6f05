package models

import "fmt"

// KeyMaterial — тройка ключей пира. Строки в base64, ровно как их печатает
// wg(8); генерируются только внешним инструментом, никогда локально.
type KeyMaterial struct {
	PrivateKey   string
	PublicKey    string
	PresharedKey string
}

// PeerRecord — один провиженный VPN-клиент. Создаётся однократно при
// провижининге и после записи на диск не мутируется; удаление — только
// руками оператора вне этого инструмента.
type PeerRecord struct {
	Ordinal int    // монотонный порядковый номер, уникален
	Name    string // отображаемое имя из списка оператора
	Suffix  int    // последний октет адреса в [2,254], уникален внутри префикса
	Address string // хост-адрес с маской, "10.6.0.7/32"

	KeyMaterial
}

// DirName — имя каталога пира под корнем peers: "<ordinal>_<name>".
func (p PeerRecord) DirName() string {
	return fmt.Sprintf("%d_%s", p.Ordinal, p.Name)
}

// Allocation — результат аллокатора: следующие свободные номер и октет.
// Не хранится нигде, каждый запуск выводится заново из каталога peers.
type Allocation struct {
	NextOrdinal int
	NextSuffix  int
}
