// conf/validate.go

package conf

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	collect := func(errs ...error) {
		for _, err := range errs {
			if err != nil {
				ve.Errors = append(ve.Errors, err.Error())
			}
		}
	}

	collect(validateDatabaseSettings(&settings.Database)...)
	collect(validateQueueSettings(&settings.Queue)...)
	collect(validateEngineSettings(&settings.Engine)...)
	collect(validateGateSettings(&settings.Gates)...)
	collect(validateVerifierSettings(&settings.Verifier)...)
	collect(validateRecheckSettings(&settings.Recheck)...)
	collect(validateMQTTSettings(&settings.MQTT)...)
	collect(validateNotificationSettings(&settings.Notification)...)

	if settings.Sentry.Enabled && settings.Sentry.DSN == "" {
		ve.Errors = append(ve.Errors, "sentry.dsn is required when sentry is enabled")
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateDatabaseSettings(s *DatabaseSettings) []error {
	var errs []error
	switch strings.ToLower(s.Driver) {
	case "sqlite":
		if s.SQLite.Path == "" {
			errs = append(errs, fmt.Errorf("database.sqlite.path must be set"))
		}
	case "mysql":
		if s.MySQL.Host == "" || s.MySQL.Database == "" {
			errs = append(errs, fmt.Errorf("database.mysql.host and database.mysql.database must be set"))
		}
	default:
		errs = append(errs, fmt.Errorf("database.driver must be sqlite or mysql, got %q", s.Driver))
	}
	return errs
}

func validateQueueSettings(s *QueueSettings) []error {
	var errs []error
	if s.MaxConcurrency < 1 {
		errs = append(errs, fmt.Errorf("queue.maxconcurrency must be at least 1, got %d", s.MaxConcurrency))
	}
	if s.WorkerTimeout <= 0 {
		errs = append(errs, fmt.Errorf("queue.workertimeout must be positive"))
	}
	if s.DispatchInterval <= 0 {
		errs = append(errs, fmt.Errorf("queue.dispatchinterval must be positive"))
	}
	if s.Breaker.Threshold < 1 {
		errs = append(errs, fmt.Errorf("queue.breaker.threshold must be at least 1, got %d", s.Breaker.Threshold))
	}
	if s.Breaker.Cooldown <= 0 {
		errs = append(errs, fmt.Errorf("queue.breaker.cooldown must be positive"))
	}
	return errs
}

func validateEngineSettings(s *EngineSettings) []error {
	var errs []error
	if s.ConfidenceThreshold <= 0 || s.ConfidenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("engine.confidencethreshold must be in (0, 1], got %v", s.ConfidenceThreshold))
	}
	if s.KeywordThreshold < 0 {
		errs = append(errs, fmt.Errorf("engine.keywordthreshold must not be negative"))
	}
	if s.MismatchThreshold < 0 || s.BoostThreshold > 100 || s.MismatchThreshold >= s.BoostThreshold {
		errs = append(errs, fmt.Errorf("engine similarity thresholds must satisfy 0 <= mismatch < boost <= 100"))
	}
	if s.FirstAttemptDelay < 0 || s.SecondAttemptDelay < s.FirstAttemptDelay {
		errs = append(errs, fmt.Errorf("engine attempt delays must be non-negative and non-decreasing"))
	}
	return errs
}

func validateGateSettings(s *GateSettings) []error {
	var errs []error
	if s.NicknameWindow <= 0 || s.DeviceCooldown <= 0 {
		errs = append(errs, fmt.Errorf("gates windows must be positive"))
	}
	if s.MaxApprovedComments < 1 {
		errs = append(errs, fmt.Errorf("gates.maxapprovedcomments must be at least 1"))
	}
	return errs
}

func validateVerifierSettings(s *VerifierSettings) []error {
	var errs []error
	u, err := url.Parse(s.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("verifier.baseurl must be an absolute http(s) URL, got %q", s.BaseURL))
	}
	if s.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("verifier.timeout must be positive"))
	}
	if s.RateLimit <= 0 || s.Burst < 1 {
		errs = append(errs, fmt.Errorf("verifier.ratelimit and verifier.burst must be positive"))
	}
	return errs
}

func validateRecheckSettings(s *RecheckSettings) []error {
	if !s.Enabled {
		return nil
	}
	var errs []error
	if s.Interval <= 0 || s.CallTimeout <= 0 {
		errs = append(errs, fmt.Errorf("recheck.interval and recheck.calltimeout must be positive"))
	}
	if s.CallTimeout >= s.Interval {
		errs = append(errs, fmt.Errorf("recheck.calltimeout (%v) must be shorter than recheck.interval (%v)", s.CallTimeout, s.Interval))
	}
	if s.Parallelism < 1 || s.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("recheck.parallelism and recheck.batchsize must be at least 1"))
	}
	return errs
}

func validateMQTTSettings(s *MQTTSettings) []error {
	if !s.Enabled {
		return nil
	}
	u, err := url.Parse(s.Broker)
	if err != nil || u.Host == "" {
		return []error{fmt.Errorf("mqtt.broker must be a URL like tcp://host:1883, got %q", s.Broker)}
	}
	switch u.Scheme {
	case "tcp", "ssl", "tls", "ws", "wss", "mqtt", "mqtts":
	default:
		return []error{fmt.Errorf("mqtt.broker has unsupported scheme %q", u.Scheme)}
	}
	return nil
}

func validateNotificationSettings(s *NotificationSettings) []error {
	if s.Enabled && len(s.URLs) == 0 {
		return []error{fmt.Errorf("notification.urls must list at least one service URL when notifications are enabled")}
	}
	return nil
}
