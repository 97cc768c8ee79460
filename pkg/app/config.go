package app

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the application specific configuration passed to App.Init.
type Config map[string]interface{}

// BaseConfig contains the base configuration for the process, as well as the
// application itself.
type BaseConfig struct {
	LogLevel string `mapstructure:"log_level"`

	AppName string `mapstructure:"app_name"`

	ListenAddress      string `mapstructure:"listen_address"`
	DebugListenAddress string `mapstructure:"debug_listen_address"`

	// TLSCertificate is an optional URL of the certificate served by the HTTP
	// server. Only the file scheme is supported, and is used when no scheme is
	// specified.
	TLSCertificate string `mapstructure:"tls_certificate"`
	// TLSKey is an optional URL of the private key matching TLSCertificate.
	TLSKey string `mapstructure:"tls_private_key"`

	ShutdownGracePeriod time.Duration `mapstructure:"shutdown_grace_period"`

	EnablePprof  bool `mapstructure:"enable_pprof"`
	EnableExpvar bool `mapstructure:"enable_expvar"`

	// Capacity is limited to 50% of the total memory.
	EnableBallast   bool    `mapstructure:"enable_ballast"`
	BallastCapacity float32 `mapstructure:"ballast_capacity"`

	EnableMemoryLeakCron   bool   `mapstructure:"enable_memory_leak_cron"`
	MemoryLeakCronSchedule string `mapstructure:"memory_leak_cron_schedule"`

	NewRelicLicenseKey string `mapstructure:"new_relic_license_key"`

	// Users should use mapstructure.Decode for AppConfig.
	AppConfig Config `mapstructure:"app"`
}

var defaultConfig = BaseConfig{
	LogLevel: "info",

	ListenAddress:      ":8080",
	DebugListenAddress: ":8123",

	ShutdownGracePeriod: 30 * time.Second,

	EnablePprof:  true,
	EnableExpvar: true,

	EnableBallast:   false,
	BallastCapacity: 0.333,

	EnableMemoryLeakCron:   false,
	MemoryLeakCronSchedule: "0 5 * * *",
}

// Every base config key can be set through the environment variable of the
// same name in upper case, such as LISTEN_ADDRESS.
func init() {
	for _, key := range []string{
		"log_level",
		"app_name",
		"listen_address",
		"debug_listen_address",
		"tls_certificate",
		"tls_private_key",
		"shutdown_grace_period",
		"enable_pprof",
		"enable_expvar",
		"enable_ballast",
		"ballast_capacity",
		"enable_memory_leak_cron",
		"memory_leak_cron_schedule",
		"new_relic_license_key",
	} {
		_ = viper.BindEnv(key, strings.ToUpper(key))
	}
}
