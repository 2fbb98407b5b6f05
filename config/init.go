package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// Конечная структура конфигурации приложения.
// Все значения задаются оператором один раз; инструмент читает их на старте
// и больше к конфигу не возвращается.
type Config struct {
	WireGuard struct {
		Dir                 string `mapstructure:"dir"`                    // база: /etc/wireguard
		Interface           string `mapstructure:"interface"`              // wg0 → юнит wg-quick@wg0
		ServerPublicKeyFile string `mapstructure:"server_public_key_file"` // пусто → <dir>/publickey
	} `mapstructure:"wireguard"`

	Peers struct {
		Root  string   `mapstructure:"root"`  // пусто → <dir>/peers
		Names []string `mapstructure:"names"` // упорядоченный список отображаемых имён
	} `mapstructure:"peers"`

	Batch struct {
		Start int `mapstructure:"start"` // смещение в peers.names
		Count int `mapstructure:"count"` // сколько пиров выпустить за запуск
	} `mapstructure:"batch"`

	Network struct {
		CIDR         string `mapstructure:"cidr"`          // префикс VPN-сети, строго /24
		ServerSuffix int    `mapstructure:"server_suffix"` // октет, занятый сервером
		LANCIDR      string `mapstructure:"lan_cidr"`      // внутренняя LAN, маршрутизируется в туннель
		LANRouter    string `mapstructure:"lan_router"`    // адрес роутера LAN (Endpoint серверной строфы)
		DNS          string `mapstructure:"dns"`           // резолвер клиента
	} `mapstructure:"network"`

	Endpoint struct {
		Host string `mapstructure:"host"` // публичное dyndns-имя
		Port int    `mapstructure:"port"`
	} `mapstructure:"endpoint"`

	Tools struct {
		WG        string `mapstructure:"wg"`
		QREncode  string `mapstructure:"qrencode"`
		Systemctl string `mapstructure:"systemctl"`
	} `mapstructure:"tools"`

	QR struct {
		Terminal bool `mapstructure:"terminal"` // печатать ANSI-QR после провижининга
	} `mapstructure:"qr"`

	Logging struct {
		Level  string `mapstructure:"level"`  // trace|debug|info|warning|error|fatal
		Format string `mapstructure:"format"` // text|json
		File   string `mapstructure:"file"`   // путь/префикс файла, пусто — только stderr
	} `mapstructure:"logs"`
}

// ServerConfPath — путь серверного конфига, выводится из interface.
func (c *Config) ServerConfPath() string {
	return filepath.Join(c.WireGuard.Dir, c.WireGuard.Interface+".conf")
}

// ServiceUnit — systemd-юнит интерфейса.
func (c *Config) ServiceUnit() string {
	return "wg-quick@" + c.WireGuard.Interface
}

// BatchNames — окно имён текущего батча: names[start : start+count].
func (c *Config) BatchNames() []string {
	return c.Peers.Names[c.Batch.Start : c.Batch.Start+c.Batch.Count]
}

// Load читает конфиг из env/файла с дефолтами.
func Load() (*Config, error) {
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Дефолты (минимальный рабочий набор)
	viper.SetDefault("wireguard.dir", "/etc/wireguard")
	viper.SetDefault("wireguard.interface", "wg0")
	viper.SetDefault("wireguard.server_public_key_file", "")

	viper.SetDefault("peers.root", "")
	viper.SetDefault("peers.names", []string{})

	viper.SetDefault("batch.start", 0)
	viper.SetDefault("batch.count", 1)

	viper.SetDefault("network.cidr", "10.6.0.0/24")
	viper.SetDefault("network.server_suffix", 1)

	viper.SetDefault("endpoint.port", 51820)

	// Внешние инструменты: имена в PATH либо абсолютные пути
	viper.SetDefault("tools.wg", "wg")
	viper.SetDefault("tools.qrencode", "qrencode")
	viper.SetDefault("tools.systemctl", "systemctl")

	viper.SetDefault("qr.terminal", false)

	// Логи — дефолты
	viper.SetDefault("logs.level", "info")
	viper.SetDefault("logs.format", "text")
	viper.SetDefault("logs.file", "")

	// Источник файла
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			viper.AddConfigPath(filepath.Join(xdg, "wgprov"))
		}
		viper.AddConfigPath("/etc/wgprov")
	}

	// Чтение файла (опционально)
	if err := viper.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return nil, fmt.Errorf("config read error: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}

	// Производные пути
	if cfg.Peers.Root == "" {
		cfg.Peers.Root = filepath.Join(cfg.WireGuard.Dir, "peers")
	}
	if cfg.WireGuard.ServerPublicKeyFile == "" {
		cfg.WireGuard.ServerPublicKeyFile = filepath.Join(cfg.WireGuard.Dir, "publickey")
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Имена пиров попадают в имена каталогов и бэкапов — ограничиваем алфавит.
var nameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// Validate проверяет конфиг целиком: ошибки оператора ловятся до первой
// записи на диск.
func Validate(c *Config) error {
	if strings.TrimSpace(c.WireGuard.Interface) == "" {
		return errors.New("wireguard.interface must not be empty")
	}
	if strings.ContainsAny(c.WireGuard.Interface, "/ \t") {
		return fmt.Errorf("wireguard.interface %q contains invalid characters", c.WireGuard.Interface)
	}

	if c.Batch.Count < 1 {
		return errors.New("batch.count must be >= 1")
	}
	if c.Batch.Start < 0 {
		return errors.New("batch.start must be >= 0")
	}
	if c.Batch.Start+c.Batch.Count > len(c.Peers.Names) {
		return fmt.Errorf("batch window [%d,%d) exceeds peers.names (len %d)",
			c.Batch.Start, c.Batch.Start+c.Batch.Count, len(c.Peers.Names))
	}
	for _, n := range c.Peers.Names {
		if !nameRe.MatchString(n) {
			return fmt.Errorf("peer name %q is invalid (want %s)", n, nameRe)
		}
	}

	ip, ipnet, err := net.ParseCIDR(c.Network.CIDR)
	if err != nil {
		return fmt.Errorf("network.cidr: %w", err)
	}
	if ip.To4() == nil {
		return fmt.Errorf("network.cidr %q: only IPv4 is supported", c.Network.CIDR)
	}
	if ones, _ := ipnet.Mask.Size(); ones != 24 {
		return fmt.Errorf("network.cidr %q: suffix allocation needs a /24", c.Network.CIDR)
	}
	if c.Network.ServerSuffix < 1 || c.Network.ServerSuffix > 254 {
		return fmt.Errorf("network.server_suffix %d out of range [1,254]", c.Network.ServerSuffix)
	}
	if _, _, err := net.ParseCIDR(c.Network.LANCIDR); err != nil {
		return fmt.Errorf("network.lan_cidr: %w", err)
	}
	if net.ParseIP(c.Network.LANRouter) == nil {
		return fmt.Errorf("network.lan_router %q is not an IP address", c.Network.LANRouter)
	}
	if net.ParseIP(c.Network.DNS) == nil {
		return fmt.Errorf("network.dns %q is not an IP address", c.Network.DNS)
	}

	if strings.TrimSpace(c.Endpoint.Host) == "" {
		return errors.New("endpoint.host must be set")
	}
	if c.Endpoint.Port < 1 || c.Endpoint.Port > 65535 {
		return fmt.Errorf("endpoint.port %d out of range", c.Endpoint.Port)
	}

	if c.Tools.WG == "" || c.Tools.QREncode == "" || c.Tools.Systemctl == "" {
		return errors.New("tools.wg, tools.qrencode and tools.systemctl must not be empty")
	}
	return nil
}
