package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Config represents the application configuration
type Config struct {
	// HTTP control service
	ListenAddr string

	// Scrape target
	BaseURL string

	// Output sink
	DataFile string

	// Rendering service (ChromeDB/browserless compatible)
	ChromeAddr    string
	RequestDelay  time.Duration
	RenderTimeout time.Duration
	RenderSettle  time.Duration
	PageCacheTTL  time.Duration
	PageCacheSize int

	// Memcache configuration (backs the renderer rate gate)
	MemcacheAddr string

	// Redis publisher configuration
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int
	PublishEnabled       bool

	// Extraction limits
	ProductsPerCategory int
	MinValidRecords     int
	MaxPagesPerCategory int

	// Crawl window (UTC)
	WindowStartHour   int
	WindowStartMinute int
	WindowEndHour     int
	WindowEndMinute   int

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	redisStreamCount, _ := strconv.Atoi(getEnv("REDIS_STREAM_COUNT", "1"))
	redisStreamMaxLen, _ := strconv.Atoi(getEnv("REDIS_STREAM_MAX_LENGTH", "500"))
	requestDelay, _ := strconv.Atoi(getEnv("REQUEST_DELAY_SECONDS", "10"))
	renderTimeout, _ := strconv.Atoi(getEnv("RENDER_TIMEOUT_MS", "25000"))
	renderSettle, _ := strconv.Atoi(getEnv("RENDER_SETTLE_MS", "3000"))
	pageCacheTTL, _ := strconv.Atoi(getEnv("PAGE_CACHE_TTL_SECONDS", "3600"))
	pageCacheSize, _ := strconv.Atoi(getEnv("PAGE_CACHE_SIZE", "128"))
	productsPerCategory, _ := strconv.Atoi(getEnv("PRODUCTS_PER_CATEGORY", "2"))
	minValidRecords, _ := strconv.Atoi(getEnv("MIN_VALID_RECORDS", "1"))
	maxPages, _ := strconv.Atoi(getEnv("MAX_PAGES_PER_CATEGORY", "1"))
	startHour, _ := strconv.Atoi(getEnv("CRAWL_WINDOW_START_HOUR", "4"))
	startMinute, _ := strconv.Atoi(getEnv("CRAWL_WINDOW_START_MINUTE", "0"))
	endHour, _ := strconv.Atoi(getEnv("CRAWL_WINDOW_END_HOUR", "8"))
	endMinute, _ := strconv.Atoi(getEnv("CRAWL_WINDOW_END_MINUTE", "45"))

	return Config{
		ListenAddr:           getEnv("LISTEN_ADDR", ":8000"),
		BaseURL:              getEnv("PNP_BASE_URL", "https://www.pnp.co.za"),
		DataFile:             getEnv("DATA_FILE", "data/products.json"),
		ChromeAddr:           getEnv("CHROME_ADDR", "http://localhost:3000"),
		RequestDelay:         time.Duration(requestDelay) * time.Second,
		RenderTimeout:        time.Duration(renderTimeout) * time.Millisecond,
		RenderSettle:         time.Duration(renderSettle) * time.Millisecond,
		PageCacheTTL:         time.Duration(pageCacheTTL) * time.Second,
		PageCacheSize:        pageCacheSize,
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", "localhost:11211"),
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:              redisDB,
		RedisStream:          getEnv("REDIS_STREAM", "products"),
		RedisStreamCount:     redisStreamCount,
		RedisStreamMaxLength: redisStreamMaxLen,
		PublishEnabled:       getEnv("REDIS_PUBLISH_ENABLED", "false") == "true",
		ProductsPerCategory:  productsPerCategory,
		MinValidRecords:      minValidRecords,
		MaxPagesPerCategory:  maxPages,
		WindowStartHour:      startHour,
		WindowStartMinute:    startMinute,
		WindowEndHour:        endHour,
		WindowEndMinute:      endMinute,
		Environment:          getEnv("PNP_ENVIRONMENT", "development"),
	}
}

// Validate ensures all configuration values are coherent
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen address cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if c.DataFile == "" {
		return fmt.Errorf("data file cannot be empty")
	}
	if c.RequestDelay < 0 {
		return fmt.Errorf("request delay cannot be negative")
	}
	if c.RenderTimeout <= 0 {
		return fmt.Errorf("render timeout must be positive")
	}
	if c.ProductsPerCategory <= 0 {
		return fmt.Errorf("products per category must be positive")
	}
	if c.MinValidRecords < 0 {
		return fmt.Errorf("minimum valid records cannot be negative")
	}
	if c.MaxPagesPerCategory <= 0 {
		return fmt.Errorf("max pages per category must be positive")
	}
	if c.WindowStartHour < 0 || c.WindowStartHour > 23 {
		return fmt.Errorf("window start hour out of range: %d", c.WindowStartHour)
	}
	if c.WindowEndHour < 0 || c.WindowEndHour > 23 {
		return fmt.Errorf("window end hour out of range: %d", c.WindowEndHour)
	}
	if c.WindowStartMinute < 0 || c.WindowStartMinute > 59 {
		return fmt.Errorf("window start minute out of range: %d", c.WindowStartMinute)
	}
	if c.WindowEndMinute < 0 || c.WindowEndMinute > 59 {
		return fmt.Errorf("window end minute out of range: %d", c.WindowEndMinute)
	}
	if c.WindowStartHour > c.WindowEndHour {
		return fmt.Errorf("window start hour (%d) cannot be after end hour (%d)", c.WindowStartHour, c.WindowEndHour)
	}

	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
