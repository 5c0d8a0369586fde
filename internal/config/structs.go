package config

import (
	"time"

	"github.com/pmhub/pmhub/internal/logger"
)

// Session settings.
type Session struct {
	ExpiryTime time.Duration
}

// Config overall data structure.
type Config struct {
	DevMode   bool // enable dev mode for development
	DB        DB
	Log       logger.Log
	Title     string
	Webserver Webserver
	Cache     Cache
	TTL       TTL
	Auth      Auth
}

// DB holds the database configuration settings.
type DB struct {
	Extras     string
	Host       string
	Port       int
	User       string
	Password   string
	Name       string
	GormEngine string // mysql, postgres or sqlite
	File       string // sqlite database file, ":memory:" for an in-process database
}

// Webserver implement webserver settings.
type Webserver struct {
	DisableRecover bool    // disable recover middleware
	Port           int     // listening port for the webserver
	ShutDownTime   int     // wait time for shutdown
	URL            string  // base url for the webserver
	Session        Session // session settings
}

// Cache holds the two-tier permission cache settings.
// All durations are expressed in seconds.
type Cache struct {
	Enabled             bool   // true = use the external redis tier, false = local tier only
	Addr                string // redis host:port
	Password            string
	Database            int
	DialTimeout         int
	ReadTimeout         int
	WriteTimeout        int
	Prefix              string // key namespace root, e.g. "perm"
	LocalMaxEntries     int    // FIFO bound of the in-process tier
	LocalTTL            int    // upper bound for any local entry lifetime
	HealthCheckInterval int
	Broadcast           bool // publish invalidations to peer instances

	WarmupEnabled   bool
	WarmupDelay     int
	WarmupBatchSize int

	RefreshCron string // cron spec for a scheduled full refresh, empty disables it
	PurgeCron   string // cron spec for purging expired persisted cache rows
}

// TTL holds the per-namespace cache lifetimes in seconds.
type TTL struct {
	UserPermissions   int
	RolePermissions   int
	PermissionMatrix  int
	ResourceAccess    int
	PermissionList    int
	PermissionDetail  int
	PersistedFallback int
	DisablePersisted  bool // skip the database fallback rows
}

// Auth holds access-control settings.
type Auth struct {
	SuperRoleCode string // role code that bypasses every permission check

	// SeedAdminUsername is created with the super role on first start when the user table is empty.
	SeedAdminUsername string
	SeedAdminEmail    string
}

// Seconds converts a config value in seconds into a time.Duration.
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
