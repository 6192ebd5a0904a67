package ratelimit

// ConfigError reports invalid limiter configuration: an unknown algorithm or
// plan name, or policy numeric fields that fail validation. It is raised
// synchronously at resolution time and is never retried.
//
// Store failures are not wrapped: they propagate unchanged to the caller, and
// the engine never converts them into an allow or deny decision.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string {
	return "ratelimit: " + e.Msg
}
