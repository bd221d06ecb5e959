package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/okian/scoutstat/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.Season, convey.ShouldEqual, 2024)
				convey.So(cfg.RateLimitBurst, convey.ShouldEqual, 100)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("SCOUT_ADDR", ":8080")
			_ = os.Setenv("SCOUT_OPR_QUEUE_SIZE", "64")
			_ = os.Setenv("SCOUT_WORKER_COUNT", "3")
			_ = os.Setenv("SCOUT_AUTO_MIGRATE", "false")
			_ = os.Setenv("SCOUT_RATE_LIMIT_RPS", "2.5")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.OPRQueueSize, convey.ShouldEqual, 64)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 3)
				convey.So(cfg.AutoMigrate, convey.ShouldBeFalse)
				convey.So(cfg.RateLimitRPS, convey.ShouldEqual, 2.5)
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			path := writeTempFile(t, "scout.yaml", `
# comments are fine
addr: ":9090"
db_path: "/tmp/scout.db"
opr_timeout_ms: 2500
worker_count: 6
`)
			_ = os.Setenv("SCOUT_CONFIG", path)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.DBPath, convey.ShouldEqual, "/tmp/scout.db")
				convey.So(cfg.OPRTimeoutMS, convey.ShouldEqual, 2500)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 6)
			})
		})

		convey.Convey("When loading config with TOML file", func() {
			path := writeTempFile(t, "scout.toml", `
addr = ":7070"
timezone = "UTC"
rate_limit_burst = 7
`)
			_ = os.Setenv("SCOUT_CONFIG", path)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from TOML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.Timezone, convey.ShouldEqual, "UTC")
				convey.So(cfg.RateLimitBurst, convey.ShouldEqual, 7)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			path := writeTempFile(t, "scout.yaml", "addr: \":9090\"\nworker_count: 6\n")
			_ = os.Setenv("SCOUT_CONFIG", path)
			_ = os.Setenv("SCOUT_WORKER_COUNT", "9")

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables win", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 9)
			})
		})

		convey.Convey("When loading config with a dotenv file", func() {
			path := writeTempFile(t, "scout.env", "SCOUT_ADDR=:6060\nSCOUT_LOG_LEVEL=debug\n")
			_ = os.Setenv("SCOUT_ENV_FILE", path)
			_ = os.Setenv("SCOUT_LOG_LEVEL", "warn")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it fills unset variables only", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":6060")
				convey.So(cfg.LogLevel, convey.ShouldEqual, "warn")
			})
		})

		convey.Convey("When the dotenv file named explicitly is missing", func() {
			_ = os.Setenv("SCOUT_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))

			_, err := config.Load(ctx)

			convey.Convey("Then loading fails", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the config file has an unknown format", func() {
			_ = os.Setenv("SCOUT_CONFIG", writeTempFile(t, "scout.ini", "addr=:1"))

			_, err := config.Load(ctx)

			convey.Convey("Then loading fails", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the config file does not exist", func() {
			_ = os.Setenv("SCOUT_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

			_, err := config.Load(ctx)

			convey.Convey("Then loading fails", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the season is unsupported", func() {
			_ = os.Setenv("SCOUT_SEASON", "2023")

			_, err := config.Load(ctx)

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}

// clearConfigEnvVars unsets every SCOUT_ variable, including ones a dotenv
// file exported.
func clearConfigEnvVars() {
	for _, kv := range os.Environ() {
		if name, _, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(name, config.EnvPrefix) {
			_ = os.Unsetenv(name)
		}
	}
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
