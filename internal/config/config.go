package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	HTTPAddr string

	// DB
	Env    string // "dev" | "prod"
	DBPath string // e.g. "./data/veriledger.db"

	// False-positive tuning
	ExpectedFPRate     float64 // configured expected filter false-positive rate
	ProblematicEpochAt int     // observation count at which an epoch is flagged

	// Background false-positive reporter
	ReportIntervalHours int // 0 = disabled
}

func FromEnv() Config {
	addr := getenvDefault("VERILEDGER_HTTP_ADDR", ":8080")

	env := strings.ToLower(getenvDefault("VERILEDGER_ENV", "dev"))
	if env != "dev" && env != "prod" {
		// fail-soft: treat unknown as dev
		env = "dev"
	}

	dbPath := getenvDefault("VERILEDGER_DB_PATH", "./data/veriledger.db")

	fpRate := getenvFloat("VERILEDGER_EXPECTED_FP_RATE", 0.01)
	problematicAt := getenvInt("VERILEDGER_PROBLEMATIC_EPOCH_AT", 100)
	reportInterval := getenvInt("VERILEDGER_REPORT_INTERVAL_HOURS", 6)

	return Config{
		HTTPAddr: addr,
		Env:      env,
		DBPath:   dbPath,

		ExpectedFPRate:     fpRate,
		ProblematicEpochAt: problematicAt,

		ReportIntervalHours: reportInterval,
	}
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func getenvFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 || f > 1 {
		return def
	}
	return f
}
