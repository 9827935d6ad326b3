package config

import "time"

// DBConfig locates the Postgres database holding user accounts.
type DBConfig struct {
	Host     string `env:"HOST"     envDefault:"localhost"`
	Port     int    `env:"PORT"     envDefault:"5432"`
	User     string `env:"USER"     envDefault:"sessiond"`
	Password string `env:"PASSWORD" envDefault:"sessiond"`
	Name     string `env:"NAME"     envDefault:"sessiond"`
	// SSLMode is passed through as sslmode; use require or stricter outside DEV.
	SSLMode string `env:"SSL_MODE" envDefault:"disable"`

	MaxOpenConns    int           `env:"MAX_OPEN_CONNS"     envDefault:"25"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS"     envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME"  envDefault:"5m"`

	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`
}

// Sanitize keeps the pool settings usable.
func (d *DBConfig) Sanitize() {
	if d.MaxOpenConns <= 0 {
		d.MaxOpenConns = 25
	}
	if d.MaxIdleConns < 0 || d.MaxIdleConns > d.MaxOpenConns {
		d.MaxIdleConns = d.MaxOpenConns
	}
	if d.ConnMaxLifetime < 0 {
		d.ConnMaxLifetime = 0
	}
}

// RedisConfig selects a direct, sentinel, or cluster Redis deployment.
type RedisConfig struct {
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:"localhost:26379"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
	ClusterNodes       []string `env:"CLUSTER_NODES"        envDefault:""`
	UseCluster         bool     `env:"USE_CLUSTER"          envDefault:"false"`

	// Client timeouts bound every store operation; MaxRetries is the only
	// retry a session read or write gets.
	DialTimeout  time.Duration `env:"DIAL_TIMEOUT"  envDefault:"2s"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT"  envDefault:"1s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"1s"`
	MaxRetries   int           `env:"MAX_RETRIES"   envDefault:"1"`
}

// Sanitize applies guardrails to Redis client settings.
func (r *RedisConfig) Sanitize() {
	if r.DialTimeout <= 0 {
		r.DialTimeout = 2 * time.Second
	}
	if r.ReadTimeout <= 0 {
		r.ReadTimeout = time.Second
	}
	if r.WriteTimeout <= 0 {
		r.WriteTimeout = time.Second
	}
	// go-redis treats -1 as "no retries"; 0 would mean its default of 3.
	if r.MaxRetries <= 0 {
		r.MaxRetries = -1
	}
}
