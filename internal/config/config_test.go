package config_test

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/okian/scoutstat/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.Season, convey.ShouldEqual, 2024)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.OPRQueueSize, convey.ShouldEqual, 1024)
			convey.So(cfg.OPRTimeout(), convey.ShouldEqual, 10*time.Second)
			convey.So(cfg.AutoMigrate, convey.ShouldBeTrue)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given configs with one bad setting", t, func() {
		cases := map[string]func(*config.Config){
			"empty addr":      func(c *config.Config) { c.Addr = "" },
			"empty db path":   func(c *config.Config) { c.DBPath = "" },
			"no workers":      func(c *config.Config) { c.WorkerCount = 0 },
			"no queue":        func(c *config.Config) { c.OPRQueueSize = -1 },
			"no timeout":      func(c *config.Config) { c.OPRTimeoutMS = 0 },
			"negative rate":   func(c *config.Config) { c.RateLimitRPS = -1 },
			"no limit":        func(c *config.Config) { c.MaxLeaderboardLimit = 0 },
			"other season":    func(c *config.Config) { c.Season = 2023 },
			"unknown tz name": func(c *config.Config) { c.Timezone = "Mars/Olympus_Mons" },
		}

		convey.Convey("Then each is rejected as invalid", func() {
			for _, mutate := range cases {
				cfg := config.New(context.Background())
				mutate(cfg)
				err := cfg.Validate()
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			}
		})
	})

	convey.Convey("Given a named timezone", t, func() {
		cfg := config.New(context.Background())
		cfg.Timezone = "UTC"

		convey.Convey("Then it resolves to a location", func() {
			loc, err := cfg.Location()
			convey.So(err, convey.ShouldBeNil)
			convey.So(loc, convey.ShouldEqual, time.UTC)
		})
	})
}
