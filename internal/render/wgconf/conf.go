package wgconf

import (
	"bufio"
	"bytes"
	"fmt"
	"net"
	"strings"
)

// PersistentKeepalive клиента зашит в формат: ровно 25 секунд.
const persistentKeepalive = 25

// ClientParams — всё, что попадает в клиентский конфиг одного пира.
type ClientParams struct {
	Address         string // "10.6.0.7/32"
	PrivateKey      string
	DNS             string
	ServerPublicKey string
	PresharedKey    string
	AllowedIPs      []string
	Endpoint        string // "host:port", публичное dyndns-имя
}

// Client рендерит клиентский конфиг: [Interface] с адресом/ключом/DNS и
// [Peer] с серверным ключом, PSK, keepalive, маршрутами и endpoint.
func Client(p ClientParams) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "[Interface]\n")
	fmt.Fprintf(&b, "Address = %s\n", p.Address)
	fmt.Fprintf(&b, "PrivateKey = %s\n", p.PrivateKey)
	fmt.Fprintf(&b, "DNS = %s\n", p.DNS)
	fmt.Fprintf(&b, "\n[Peer]\n")
	fmt.Fprintf(&b, "PublicKey = %s\n", p.ServerPublicKey)
	fmt.Fprintf(&b, "PresharedKey = %s\n", p.PresharedKey)
	fmt.Fprintf(&b, "PersistentKeepalive = %d\n", persistentKeepalive)
	fmt.Fprintf(&b, "AllowedIPs = %s\n", strings.Join(p.AllowedIPs, ", "))
	fmt.Fprintf(&b, "Endpoint = %s\n", p.Endpoint)
	return []byte(b.String())
}

// PeerStanzaParams — серверная строфа одного пира.
type PeerStanzaParams struct {
	PublicKey    string
	PresharedKey string
	AllowedIP    string // единственный хост-маршрут "10.6.0.7/32"
	Endpoint     string // "адрес-роутера-LAN:port"
}

// PeerStanza рендерит [Peer]-строфу для серверного конфига.
// Перевод строки в конце один: пустую строку между строфами ставит append.
func PeerStanza(p PeerStanzaParams) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "[Peer]\n")
	fmt.Fprintf(&b, "PublicKey = %s\n", p.PublicKey)
	fmt.Fprintf(&b, "PresharedKey = %s\n", p.PresharedKey)
	fmt.Fprintf(&b, "AllowedIPs = %s\n", p.AllowedIP)
	fmt.Fprintf(&b, "Endpoint = %s\n", p.Endpoint)
	return []byte(b.String())
}

// ClientRoutes — политика маршрутизации клиента: весь трафик в туннель,
// внутренняя LAN отдельной строкой, IPv6 целиком.
func ClientRoutes(lanCIDR string) []string {
	return []string{"0.0.0.0/0", lanCIDR, "::/0"}
}

// HostAddress — хост-адрес /32 внутри префикса сети по последнему октету.
func HostAddress(cidr string, suffix int) (string, error) {
	_, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		return "", err
	}
	base := ipnet.IP.To4()
	if base == nil {
		return "", fmt.Errorf("only IPv4 supported for network cidr")
	}
	if suffix < 2 || suffix > 254 {
		return "", fmt.Errorf("address suffix %d out of range [2,254]", suffix)
	}
	ip := net.IPv4(base[0], base[1], base[2], byte(suffix))
	return ip.String() + "/32", nil
}

// ParseAddress достаёт значение строки Address клиентского конфига.
// На случай списка адресов берётся первый.
func ParseAddress(conf []byte) (string, error) {
	sc := bufio.NewScanner(bytes.NewReader(conf))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "Address") {
			continue
		}
		_, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		val = strings.TrimSpace(val)
		if i := strings.IndexByte(val, ','); i >= 0 {
			val = strings.TrimSpace(val[:i])
		}
		return val, nil
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("no Address line found")
}

// ParseAddressSuffix — последний октет Address. Обратная операция к
// Client: на ней держится аллокация следующего октета.
func ParseAddressSuffix(conf []byte) (int, error) {
	val, err := ParseAddress(conf)
	if err != nil {
		return 0, err
	}
	host, _, _ := strings.Cut(val, "/")
	ip := net.ParseIP(strings.TrimSpace(host))
	if ip == nil {
		return 0, fmt.Errorf("address %q does not parse", val)
	}
	v4 := ip.To4()
	if v4 == nil {
		return 0, fmt.Errorf("address %q is not IPv4", val)
	}
	return int(v4[3]), nil
}
