// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaultConfig registers default values for every setting.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("logging.default_level", "info")
	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.console.enabled", true)
	viper.SetDefault("logging.console.level", "info")
	viper.SetDefault("logging.file_output.enabled", false)
	viper.SetDefault("logging.file_output.path", "logs/reviewcore.log")
	viper.SetDefault("logging.file_output.level", "info")
	viper.SetDefault("logging.file_output.max_size_mb", 100)
	viper.SetDefault("logging.file_output.max_backups", 3)
	viper.SetDefault("logging.file_output.max_age_days", 28)
	viper.SetDefault("logging.file_output.compress", false)

	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.slowquerythreshold", 200*time.Millisecond)
	viper.SetDefault("database.maxopenconns", 10)
	viper.SetDefault("database.sqlite.path", "reviewcore.db")
	viper.SetDefault("database.mysql.host", "localhost")
	viper.SetDefault("database.mysql.port", "3306")
	viper.SetDefault("database.mysql.username", "reviewcore")
	viper.SetDefault("database.mysql.password", "")
	viper.SetDefault("database.mysql.database", "reviewcore")

	viper.SetDefault("queue.maxconcurrency", 5)
	viper.SetDefault("queue.workertimeout", 2*time.Minute)
	viper.SetDefault("queue.dispatchinterval", time.Second)
	viper.SetDefault("queue.breaker.threshold", 5)
	viper.SetDefault("queue.breaker.cooldown", 5*time.Minute)

	viper.SetDefault("engine.confidencethreshold", 0.70)
	viper.SetDefault("engine.keywordthreshold", 1.5)
	viper.SetDefault("engine.keywordfile", "")
	viper.SetDefault("engine.mismatchthreshold", 30.0)
	viper.SetDefault("engine.boostthreshold", 80.0)
	viper.SetDefault("engine.firstattemptdelay", time.Second)
	viper.SetDefault("engine.secondattemptdelay", 2*time.Second)

	viper.SetDefault("gates.nicknamewindow", 7*24*time.Hour)
	viper.SetDefault("gates.devicecooldown", 7*24*time.Hour)
	viper.SetDefault("gates.maxapprovedcomments", 2)

	viper.SetDefault("verifier.baseurl", "http://localhost:9100")
	viper.SetDefault("verifier.apikey", "")
	viper.SetDefault("verifier.timeout", 15*time.Second)
	viper.SetDefault("verifier.ratelimit", 5.0)
	viper.SetDefault("verifier.burst", 5)
	viper.SetDefault("verifier.useragent", "reviewcore")

	viper.SetDefault("recheck.enabled", true)
	viper.SetDefault("recheck.interval", 60*time.Second)
	viper.SetDefault("recheck.calltimeout", 20*time.Second)
	viper.SetDefault("recheck.parallelism", 4)
	viper.SetDefault("recheck.batchsize", 200)

	viper.SetDefault("api.enabled", true)
	viper.SetDefault("api.listen", ":8080")

	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")

	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.clientid", "reviewcore")
	viper.SetDefault("mqtt.topicprefix", "reviewcore")
	viper.SetDefault("mqtt.retain", false)

	viper.SetDefault("notification.enabled", false)
	viper.SetDefault("notification.urls", []string{})

	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.dsn", "")
	viper.SetDefault("sentry.environment", "production")
}
