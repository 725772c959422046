// 包 config：进程配置，来源为 .env 文件与环境变量
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Postgres：连接参数
type Postgres struct {
	Host         string `env:"PG_HOST" envDefault:"localhost"`
	Port         string `env:"PG_PORT" envDefault:"5432"`
	User         string `env:"PG_USER" envDefault:"postgres"`
	Password     string `env:"PG_PASSWORD"`
	DB           string `env:"PG_DB" envDefault:"ventas"`
	SSLMode      string `env:"PG_SSLMODE" envDefault:"disable"`
	MaxOpenConns int    `env:"PG_MAX_OPEN_CONNS" envDefault:"20"`
	MaxIdleConns int    `env:"PG_MAX_IDLE_CONNS" envDefault:"10"`
}

// DSN：postgres:// 形式的连接串
func (p Postgres) DSN() string {
	dsn := "postgres://" + p.User
	if p.Password != "" {
		dsn += ":" + p.Password
	}
	return dsn + "@" + p.Host + ":" + p.Port + "/" + p.DB + "?sslmode=" + p.SSLMode
}

// Redis：连接参数；未启用时聚合缓存退回进程内 LRU
type Redis struct {
	Enabled bool   `env:"REDIS_ENABLED" envDefault:"false"`
	Host    string `env:"REDIS_HOST" envDefault:"127.0.0.1"`
	Port    string `env:"REDIS_PORT" envDefault:"6379"`
	Pass    string `env:"REDIS_PASS"`
	DB      int    `env:"REDIS_DB" envDefault:"0"`
}

func (r Redis) Addr() string { return r.Host + ":" + r.Port }

// Server：API 服务配置
type Server struct {
	Addr            string        `env:"ADDR" envDefault:":8080"`
	APIBase         string        `env:"API_BASE"`
	DataSource      string        `env:"DATA_SOURCE" envDefault:"csv"`
	CSVPath         string        `env:"DATA_CSV_PATH" envDefault:"data/ventas_limpias.csv"`
	CSVFallback     string        `env:"DATA_CSV_FALLBACK" envDefault:"data/ventas_geolocalizadas.csv"`
	CacheTTL        time.Duration `env:"MAPA_CACHE_TTL" envDefault:"5m"`
	CacheSize       int           `env:"MAPA_CACHE_SIZE" envDefault:"512"`
	RateLimit       bool          `env:"RATE_LIMIT_ENABLED" envDefault:"false"`
	RateLimitQPS    int           `env:"RATE_LIMIT_QPS" envDefault:"200"`
	CORSOrigin      string        `env:"CORS_ORIGIN" envDefault:"*"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	UIDist          string        `env:"UI_DIST" envDefault:"ui/dist"`
	TLSEnable       bool          `env:"TLS_ENABLE" envDefault:"false"`
	TLSCertPath     string        `env:"TLS_CERT_PATH" envDefault:"data/certs/server.crt"`
	TLSKeyPath      string        `env:"TLS_KEY_PATH" envDefault:"data/certs/server.key"`
	TLSRedirect     bool          `env:"TLS_REDIRECT_ENABLE" envDefault:"false"`
	TLSRedirectAddr string        `env:"TLS_REDIRECT_ADDR" envDefault:":80"`
	AdminToken      string        `env:"ADMIN_TOKEN"`
	AdminAllow      []string      `env:"ADMIN_ALLOW" envSeparator:","`
	RealIPHeader    string        `env:"REAL_IP_HEADER"`
	Refresh         Refresh
	Postgres        Postgres
	Redis           Redis
}

// Refresh：每周离线刷新；postgres 数据源时先从 CSV 重新导入
type Refresh struct {
	Enabled  bool   `env:"REFRESH_WEEKLY" envDefault:"false"`
	Weekday  string `env:"REFRESH_WEEKDAY" envDefault:"monday"`
	Hour     int    `env:"REFRESH_HOUR" envDefault:"3"`
	Timezone string `env:"REFRESH_TZ" envDefault:"America/Bogota"`
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "domingo": time.Sunday,
	"monday": time.Monday, "lunes": time.Monday,
	"tuesday": time.Tuesday, "martes": time.Tuesday,
	"wednesday": time.Wednesday, "miercoles": time.Wednesday, "miércoles": time.Wednesday,
	"thursday": time.Thursday, "jueves": time.Thursday,
	"friday": time.Friday, "viernes": time.Friday,
	"saturday": time.Saturday, "sabado": time.Saturday, "sábado": time.Saturday,
}

// Schedule：解析星期与时区
func (r Refresh) Schedule() (time.Weekday, *time.Location, error) {
	wd, ok := weekdays[strings.ToLower(strings.TrimSpace(r.Weekday))]
	if !ok {
		return 0, nil, fmt.Errorf("config: unknown weekday %q", r.Weekday)
	}
	if r.Hour < 0 || r.Hour > 23 {
		return 0, nil, fmt.Errorf("config: refresh hour %d out of range", r.Hour)
	}
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return 0, nil, fmt.Errorf("config: %w", err)
	}
	return wd, loc, nil
}

// Geo：边界数据来源与客户端持久缓存
type Geo struct {
	URLDept           string        `env:"GEO_URL_DEPT"`
	URLCity           string        `env:"GEO_URL_CITY"`
	PathDept          string        `env:"GEO_PATH_DEPT"`
	PathCity          string        `env:"GEO_PATH_CITY"`
	CacheDir          string        `env:"GEO_CACHE_DIR" envDefault:"data/geocache"`
	CacheVersion      string        `env:"GEO_CACHE_VERSION" envDefault:"v1"`
	CacheTTL          time.Duration `env:"GEO_CACHE_TTL" envDefault:"720h"`
	FetchAttempts     int           `env:"GEO_FETCH_ATTEMPTS" envDefault:"5"`
	FetchTimeout      time.Duration `env:"GEO_FETCH_TIMEOUT" envDefault:"60s"`
	SimplifyTolerance float64       `env:"GEO_SIMPLIFY_TOLERANCE" envDefault:"0"`
}

// Render：分片渲染参数
type Render struct {
	MinBatch     int           `env:"RENDER_MIN_BATCH" envDefault:"20"`
	MaxBatch     int           `env:"RENDER_MAX_BATCH" envDefault:"160"`
	InitialBatch int           `env:"RENDER_INITIAL_BATCH" envDefault:"80"`
	SliceBudget  time.Duration `env:"RENDER_SLICE_BUDGET" envDefault:"20ms"`
	FrameBudget  time.Duration `env:"RENDER_FRAME_BUDGET" envDefault:"16ms"`
}

// MapRender：一次性渲染工具的参数
type MapRender struct {
	APIURL  string            `env:"MAP_API_URL"`
	Level   string            `env:"MAP_LEVEL" envDefault:"departamento"`
	Out     string            `env:"MAP_OUT" envDefault:"mapa.geojson"`
	Filters map[string]string `env:"MAP_FILTERS" envSeparator:"," envKeyValSeparator:"="`
	CSVPath string            `env:"DATA_CSV_PATH" envDefault:"data/ventas_limpias.csv"`
	Geo     Geo
	Render  Render
}

// Ingest：CSV 导入工具的参数
type Ingest struct {
	CSV      string `env:"INGEST_CSV" envDefault:"data/ventas_limpias.csv"`
	Truncate bool   `env:"INGEST_TRUNCATE" envDefault:"false"`
	Batch    int    `env:"INGEST_BATCH" envDefault:"5000"`
	Postgres Postgres
}

// loadDotenv：依次加载 .env 与 data/env/.env；文件不存在时忽略
func loadDotenv() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load("data/env/.env")
}

// Parse：加载 .env 后把环境变量解析到 target
func Parse[T any](target *T) error {
	loadDotenv()
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// LoadServer：API 服务配置
func LoadServer() (Server, error) {
	var c Server
	if err := Parse(&c); err != nil {
		return c, err
	}
	c.APIBase = strings.TrimRight(c.APIBase, "/")
	return c, nil
}
