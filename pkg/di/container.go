package di

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"

	"github.com/goliatone/go-repository-relation/bunmapper"
	"github.com/goliatone/go-repository-relation/cache"
	"github.com/goliatone/go-repository-relation/config"
	"github.com/goliatone/go-repository-relation/finder"
	"github.com/goliatone/go-repository-relation/relation"
)

// Container wires the database, the finder cache and logging, and builds
// relations on top of them.
type Container struct {
	config        config.Config
	db            *bun.DB
	ownsDB        bool
	cacheService  cache.CacheService
	keySerializer cache.KeySerializer
	matcher       finder.Matcher
	logger        *slog.Logger
	queryLogger   *bunmapper.QueryLogger
}

// Option configures a Container.
type Option func(*Container)

// WithLogger replaces the logger built from the log configuration.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Container) { c.logger = logger }
}

// NewContainer opens the configured database and builds the container.
func NewContainer(cfg config.Config, opts ...Option) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := Open(cfg.Database)
	if err != nil {
		return nil, err
	}

	c, err := NewContainerWithDB(cfg, db, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	c.ownsDB = true
	return c, nil
}

// NewContainerWithDefaults builds a container on an in-memory SQLite database.
func NewContainerWithDefaults(opts ...Option) (*Container, error) {
	return NewContainer(config.Default(), opts...)
}

// NewContainerWithDB builds a container around an open database. The
// caller keeps ownership of db.
func NewContainerWithDB(cfg config.Config, db *bun.DB, opts ...Option) (*Container, error) {
	if db == nil {
		return nil, errors.New("di: nil database")
	}

	cacheService, err := cache.NewCacheService(cfg.Cache)
	if err != nil {
		return nil, err
	}

	c := &Container{
		config:        cfg,
		db:            db,
		cacheService:  cacheService,
		keySerializer: cache.NewDefaultKeySerializer("relation"),
		logger:        slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}

	c.matcher = finder.NewCachedMatcher(finder.DefaultMatcher{}, c.cacheService, c.keySerializer)
	c.queryLogger = bunmapper.NewQueryLogger(c.logger, bunmapper.WithSlowThreshold(cfg.Database.SlowQueryThreshold))
	db.AddQueryHook(c.queryLogger)

	return c, nil
}

// Open connects to the database selected by cfg.Dialect.
func Open(cfg config.DatabaseConfig) (*bun.DB, error) {
	var (
		driver  string
		dialect schema.Dialect
	)
	switch cfg.Dialect {
	case config.DialectSQLite:
		driver, dialect = "sqlite3", sqlitedialect.New()
	case config.DialectPostgres:
		driver, dialect = "postgres", pgdialect.New()
	default:
		return nil, fmt.Errorf("di: unsupported dialect %q", cfg.Dialect)
	}

	sqldb, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("di: open %s: %w", cfg.Dialect, err)
	}
	if cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	return bun.NewDB(sqldb, dialect), nil
}

// DB returns the database handle.
func (c *Container) DB() *bun.DB { return c.db }

// CacheService returns the cache backing finder name resolution.
func (c *Container) CacheService() cache.CacheService { return c.cacheService }

func (c *Container) KeySerializer() cache.KeySerializer { return c.keySerializer }

// Matcher returns the cached dynamic finder matcher shared by relations.
func (c *Container) Matcher() finder.Matcher { return c.matcher }

func (c *Container) Logger() *slog.Logger { return c.logger }

// QueryStats reports the statements seen on DB since the container was built.
func (c *Container) QueryStats() bunmapper.QueryStats { return c.queryLogger.Stats() }

// Config returns the configuration the container was built from.
func (c *Container) Config() config.Config { return c.config }

// Close closes the database when the container opened it.
func (c *Container) Close() error {
	if !c.ownsDB {
		return nil
	}
	return c.db.Close()
}

// NewRelation returns an empty relation over model M. Entity options are
// applied on top of what the bun schema describes.
//
// Example: di.NewRelation[Post](container, relation.WithProtected("author_id"))
func NewRelation[M any](c *Container, opts ...relation.EntityOption) *relation.Relation[*M] {
	entity := bunmapper.Describe[M](c.db, opts...)
	return relation.New[*M](entity, bunmapper.New[M](c.db, entity), c.relationOptions()...)
}

// NewRelationWithWriter is NewRelation with record persistence routed
// through w, usually a repository.Repository[*M].
func NewRelationWithWriter[M any](c *Container, w bunmapper.Writer[*M], opts ...relation.EntityOption) *relation.Relation[*M] {
	entity := bunmapper.Describe[M](c.db, opts...)
	mapper := bunmapper.New[M](c.db, entity, bunmapper.WithWriter[M](w))
	return relation.New[*M](entity, mapper, c.relationOptions()...)
}

func (c *Container) relationOptions() []relation.Option {
	return []relation.Option{
		relation.WithLogger(c.logger),
		relation.WithMatcher(c.matcher),
	}
}

// NewTableRelation returns a relation over a table with no Go model.
// Rows are read into bunmapper.Row values.
func NewTableRelation(c *Container, table string, opts ...relation.EntityOption) *relation.Relation[bunmapper.Row] {
	entity := relation.NewEntity(table, append([]relation.EntityOption{relation.WithTable(table)}, opts...)...)
	return relation.New[bunmapper.Row](entity, bunmapper.NewTable(c.db, entity), c.relationOptions()...)
}
