package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"find_my_home/regioncode"
)

type Config struct {
	StoreURL            string
	TransactionsAPIKey  string
	TransactionsDelayMS int

	Schedule       ScheduleConfig
	Crawl          CrawlConfig
	KB             KBConfig
	ProgressDBPath string
	LogFile        string

	Regions []TargetRegion
}

type ScheduleConfig struct {
	AppraisalHH      int
	AppraisalMM      int
	ListingsInterval time.Duration
	TransactionsHH   int
	ComparisonHH     int
}

type CrawlConfig struct {
	DelayMS        int
	MinHouseholds  int
	BatchCallLimit int
	BatchCooldown  time.Duration
	RegionPause    time.Duration
}

type KBConfig struct {
	DelayMS     int
	Concurrency int
}

// TargetRegion names one district to crawl.
type TargetRegion struct {
	Sido    string `yaml:"sido"`
	Sigungu string `yaml:"sigungu"`
}

type regionsFile struct {
	Regions []TargetRegion `yaml:"regions"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		StoreURL:            os.Getenv("STORE_URL"),
		TransactionsAPIKey:  os.Getenv("TRANSACTIONS_API_KEY"),
		TransactionsDelayMS: getEnvInt("TX_DELAY_MS", 1000),
		Schedule: ScheduleConfig{
			AppraisalHH:      getEnvInt("APPRAISAL_CRON_HH", 6),
			AppraisalMM:      getEnvInt("APPRAISAL_CRON_MM", 0),
			ListingsInterval: time.Duration(getEnvInt("LISTINGS_INTERVAL_MIN", 150)) * time.Minute,
			TransactionsHH:   getEnvInt("TRANSACTIONS_CRON_HH", 2),
			ComparisonHH:     getEnvInt("COMPARISON_CRON_HH", 7),
		},
		Crawl: CrawlConfig{
			DelayMS:        getEnvInt("CRAWL_DELAY_MS", 1500),
			MinHouseholds:  getEnvInt("MIN_HOUSEHOLDS", 200),
			BatchCallLimit: getEnvInt("BATCH_CALL_LIMIT", 180),
			BatchCooldown:  time.Duration(getEnvInt("BATCH_COOLDOWN_S", 600)) * time.Second,
			RegionPause:    time.Duration(getEnvInt("REGION_PAUSE_S", 30)) * time.Second,
		},
		KB: KBConfig{
			DelayMS:     getEnvInt("KB_DELAY_MS", 1500),
			Concurrency: getEnvInt("KB_CONCURRENCY", 5),
		},
		ProgressDBPath: getEnv("PROGRESS_DB_PATH", "backfill.db"),
		LogFile:        getEnv("LOG_FILE", "daemon.log"),
	}

	if cfg.StoreURL == "" {
		return nil, fmt.Errorf("STORE_URL is required")
	}

	regions, err := loadRegions(os.Getenv("TARGET_REGIONS"), os.Getenv("REGIONS_FILE"))
	if err != nil {
		return nil, err
	}
	cfg.Regions = regions

	return cfg, nil
}

// loadRegions resolves the target regions: the TARGET_REGIONS env list
// ("시도:시군구" pairs, comma-separated) wins, then the YAML file, then
// every registered district of the capital area and the metro cities.
func loadRegions(envList, path string) ([]TargetRegion, error) {
	if envList != "" {
		return parseRegionList(envList)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read regions file: %w", err)
		}
		var f regionsFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse regions file: %w", err)
		}
		if len(f.Regions) == 0 {
			return nil, fmt.Errorf("regions file %s lists no regions", path)
		}
		return f.Regions, nil
	}

	provinces := []string{
		"서울특별시", "경기도", "인천광역시",
		"부산광역시", "대구광역시", "광주광역시", "대전광역시", "울산광역시",
		"세종특별자치시",
	}
	var regions []TargetRegion
	for _, sido := range provinces {
		districts := regioncode.Districts(sido)
		sort.Strings(districts)
		for _, sigungu := range districts {
			regions = append(regions, TargetRegion{Sido: sido, Sigungu: sigungu})
		}
	}
	return regions, nil
}

func parseRegionList(s string) ([]TargetRegion, error) {
	var regions []TargetRegion
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		sido, sigungu, ok := strings.Cut(entry, ":")
		if !ok {
			return nil, fmt.Errorf("bad TARGET_REGIONS entry %q, want 시도:시군구", entry)
		}
		regions = append(regions, TargetRegion{
			Sido:    strings.TrimSpace(sido),
			Sigungu: strings.TrimSpace(sigungu),
		})
	}
	if len(regions) == 0 {
		return nil, fmt.Errorf("TARGET_REGIONS lists no regions")
	}
	return regions, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
