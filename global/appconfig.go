package global

import "time"

// AppConfig holds the process-level settings of the telemetry gateway node.
type AppConfig struct {
	GatewayNodeId string // node id, also the snowflake node seed
	Port          int    // HTTP/WS listen port

	BusBackend string // "redis" or "nats"

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	NatsServers []string

	PostgresURL string

	MongoURI      string
	MongoDatabase string

	KafkaBrokers []string
	ArchiveTopic string // raw telemetry mirror topic, empty disables the mirror

	JwtSecret string
	JwtTTL    time.Duration
}
