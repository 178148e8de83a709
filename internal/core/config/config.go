package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type RefreshCfg struct {
	Enabled  bool
	Brokers  string
	Topic    string
	GroupID  string
	Debounce time.Duration
}

// BrokerList splits the comma-separated broker string the way the Kafka
// client wants it, dropping empty entries.
func (r RefreshCfg) BrokerList() []string {
	var out []string
	for _, p := range strings.Split(r.Brokers, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

type Config struct {
	Addr           string
	LogLevel       string
	BackendURL     string
	BackendTimeout time.Duration
	RedisAddr      string
	SnapshotTTL    time.Duration
	LoadOnStart    bool
	CellRes        int
	CellResMin     int
	CellResMax     int
	CellCoverCache int
	MetricsEnabled bool
	Refresh        RefreshCfg
}

func FromEnv() Config {
	res := getint("CELL_RES", 7)
	minRes := getint("CELL_RES_MIN", res)
	maxRes := getint("CELL_RES_MAX", res)

	if minRes < 0 {
		minRes = 0
	}
	if maxRes > 15 {
		maxRes = 15
	}
	if minRes > maxRes {
		minRes, maxRes = res, res
	}

	return Config{
		Addr:           getenv("ADDR", ":8084"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		BackendURL:     getenv("BACKEND_URL", "http://localhost:8080/api/v1"),
		BackendTimeout: getduration("BACKEND_TIMEOUT", 15*time.Second),
		RedisAddr:      getenv("REDIS_ADDR", ""),
		SnapshotTTL:    getduration("SNAPSHOT_TTL", 24*time.Hour),
		LoadOnStart:    getbool("LOAD_ON_START", true),
		CellRes:        res,
		CellResMin:     minRes,
		CellResMax:     maxRes,
		CellCoverCache: getint("CELL_COVER_CACHE", 256),
		MetricsEnabled: getbool("METRICS_ENABLED", true),
		Refresh: RefreshCfg{
			Enabled:  getbool("REFRESH_ENABLED", false),
			Brokers:  getenv("KAFKA_BROKERS", "localhost:9092"),
			Topic:    getenv("KAFKA_TOPIC", "dataset-events"),
			GroupID:  getenv("KAFKA_GROUP_ID", "review-refresh"),
			Debounce: getduration("REFRESH_DEBOUNCE", 2*time.Second),
		},
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
