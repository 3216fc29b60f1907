package config_test

import (
	"errors"
	"testing"

	"github.com/okian/commission/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.LogLevel, convey.ShouldEqual, "info")
			convey.So(cfg.LogFormat, convey.ShouldEqual, "text")
			convey.So(cfg.StorageDriver, convey.ShouldEqual, config.DriverMemory)
			convey.So(cfg.RedisPrefix, convey.ShouldEqual, "commission:")
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given config validation", t, func() {
		convey.Convey("When the storage driver is unknown", func() {
			cfg := config.New()
			cfg.StorageDriver = "mongo"
			err := cfg.Validate()
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			convey.So(err.Error(), convey.ShouldContainSubstring, "storage_driver")
		})

		convey.Convey("When redis is selected without an address", func() {
			cfg := config.New()
			cfg.StorageDriver = config.DriverRedis
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			cfg.RedisAddr = "localhost:6379"
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("When sqlite is selected without a path", func() {
			cfg := config.New()
			cfg.StorageDriver = config.DriverSQLite
			cfg.SQLitePath = ""
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When the log format is unknown", func() {
			cfg := config.New()
			cfg.LogFormat = "xml"
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})
}
