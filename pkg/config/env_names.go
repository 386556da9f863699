package config

// Environment variable names referenced outside struct tags.
const (
	EnvAppEnv         = "STOREFRONT_APP_ENV"
	EnvLogLevel       = "STOREFRONT_LOG_LEVEL"
	EnvRedisURL       = "STOREFRONT_REDIS_URL"
	EnvRedisAddr      = "STOREFRONT_REDIS_ADDR"
	EnvJWTSecret      = "STOREFRONT_JWT_SECRET"
	EnvWhatsAppNumber = "STOREFRONT_WHATSAPP_NUMBER"
)
