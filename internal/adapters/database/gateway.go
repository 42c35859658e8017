package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	apperrors "github.com/zatekoja/cropsight-backend/pkg/errors"
)

// State is the lifecycle phase of the gateway connection
type State int32

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateFailed
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

const (
	// DefaultMaxRetries is the attempt budget for ExecuteWithRetries
	DefaultMaxRetries = 2

	readinessPollInterval = 200 * time.Millisecond
	retryBackoffStep      = 500 * time.Millisecond

	defaultReadinessTimeout = 10 * time.Second
	defaultStartupTimeout   = 30 * time.Second
)

// Conn bundles the live handles an operation runs against
type Conn struct {
	db *sql.DB
	sq *goqu.Database
}

// DB returns the raw database handle
func (c *Conn) DB() *sql.DB {
	return c.db
}

// Builder returns the goqu query builder bound to this connection
func (c *Conn) Builder() *goqu.Database {
	return c.sq
}

// Operation is one unit of database work executed against a ready connection
type Operation func(ctx context.Context, conn *Conn) error

// ConnectFunc opens the underlying database connection
type ConnectFunc func(ctx context.Context) (*sql.DB, error)

// Options tunes gateway readiness behavior
type Options struct {
	// ReadinessTimeout bounds how long an operation waits for the
	// connection once it has been ready at least once
	ReadinessTimeout time.Duration

	// StartupTimeout bounds the wait for the very first initialization
	StartupTimeout time.Duration
}

// Gateway guards all database access behind a lazily initialized
// connection. The first operation triggers initialization; concurrent
// callers collapse onto the same attempt and poll until the connection
// is ready or the wait times out. A failed connection is reopened on
// the next operation.
type Gateway struct {
	mu        sync.Mutex
	state     State
	conn      *Conn
	lastErr   error
	everReady bool

	connect          ConnectFunc
	readinessTimeout time.Duration
	startupTimeout   time.Duration
}

// NewGateway creates a gateway that connects lazily via connect
func NewGateway(connect ConnectFunc, opts Options) *Gateway {
	if opts.ReadinessTimeout <= 0 {
		opts.ReadinessTimeout = defaultReadinessTimeout
	}
	if opts.StartupTimeout <= 0 {
		opts.StartupTimeout = defaultStartupTimeout
	}

	return &Gateway{
		state:            StateUninitialized,
		connect:          connect,
		readinessTimeout: opts.ReadinessTimeout,
		startupTimeout:   opts.StartupTimeout,
	}
}

// NewReadyGateway creates a gateway over an already open connection
func NewReadyGateway(db *sql.DB) *Gateway {
	return &Gateway{
		state:            StateReady,
		conn:             &Conn{db: db, sq: goqu.New("postgres", db)},
		everReady:        true,
		readinessTimeout: defaultReadinessTimeout,
		startupTimeout:   defaultStartupTimeout,
	}
}

// State returns the current lifecycle state
func (g *Gateway) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Execute waits for the connection to become ready and runs op against it.
// Errors returned by op pass through unchanged.
func (g *Gateway) Execute(ctx context.Context, op Operation) error {
	conn, err := g.ready(ctx)
	if err != nil {
		return err
	}
	return op(ctx, conn)
}

// ExecuteWithRetries runs op up to maxRetries times with linear backoff.
// A non-positive maxRetries selects DefaultMaxRetries. Operations that
// fail with a connection-level error trigger an eager reconnect before
// the next attempt. Exhausting the budget yields a storage error that
// wraps the last failure.
func (g *Gateway) ExecuteWithRetries(ctx context.Context, op Operation, maxRetries int) error {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		err := g.Execute(ctx, op)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		lastErr = err
		log.Printf("database operation attempt %d/%d failed: %v", attempt, maxRetries, err)

		if isReadinessError(err) {
			g.reinitialize()
		}

		if attempt < maxRetries {
			select {
			case <-time.After(time.Duration(attempt) * retryBackoffStep):
			case <-ctx.Done():
				return apperrors.NewStorageError("retry interrupted", ctx.Err())
			}
		}
	}

	return apperrors.NewStorageError(fmt.Sprintf("max retry attempts (%d) exceeded", maxRetries), lastErr)
}

// Ping verifies the connection, initializing it if needed
func (g *Gateway) Ping(ctx context.Context) error {
	return g.Execute(ctx, func(ctx context.Context, conn *Conn) error {
		return conn.DB().PingContext(ctx)
	})
}

// Close shuts the connection down
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.state = StateUninitialized
	if g.conn != nil {
		err := g.conn.db.Close()
		g.conn = nil
		return err
	}
	return nil
}

func (g *Gateway) ready(ctx context.Context) (*Conn, error) {
	g.mu.Lock()
	switch g.state {
	case StateReady:
		conn := g.conn
		g.mu.Unlock()
		return conn, nil
	case StateUninitialized, StateFailed:
		g.beginInit()
	}
	g.mu.Unlock()

	return g.awaitReady(ctx)
}

// beginInit transitions to Initializing and spawns the connect attempt.
// Callers must hold g.mu.
func (g *Gateway) beginInit() {
	g.state = StateInitializing
	g.lastErr = nil
	go g.initialize()
}

func (g *Gateway) initialize() {
	db, err := g.connect(context.Background())

	g.mu.Lock()
	defer g.mu.Unlock()

	if err != nil {
		g.state = StateFailed
		g.lastErr = err
		log.Printf("database initialization failed: %v", err)
		return
	}

	g.conn = &Conn{db: db, sq: goqu.New("postgres", db)}
	g.state = StateReady
	g.everReady = true
	g.lastErr = nil
	log.Println("database gateway ready")
}

func (g *Gateway) awaitReady(ctx context.Context) (*Conn, error) {
	g.mu.Lock()
	timeout := g.readinessTimeout
	if !g.everReady {
		timeout = g.startupTimeout
	}
	g.mu.Unlock()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(readinessPollInterval)
	defer ticker.Stop()

	for {
		g.mu.Lock()
		state, conn, lastErr := g.state, g.conn, g.lastErr
		g.mu.Unlock()

		switch state {
		case StateReady:
			return conn, nil
		case StateFailed:
			return nil, apperrors.NewUnavailableError("database is not available", lastErr)
		}

		select {
		case <-ctx.Done():
			return nil, apperrors.NewUnavailableError("interrupted waiting for database readiness", ctx.Err())
		case <-deadline.C:
			return nil, apperrors.NewUnavailableError(fmt.Sprintf("database not ready after %s", timeout), lastErr)
		case <-ticker.C:
		}
	}
}

// reinitialize drops the current connection and starts a fresh attempt
func (g *Gateway) reinitialize() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == StateInitializing {
		return
	}
	if g.conn != nil {
		g.conn.db.Close()
		g.conn = nil
	}
	g.beginInit()
}

var readinessPhrases = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"bad connection",
	"database is closed",
	"connection timed out",
	"no such host",
	"i/o timeout",
	"unexpected eof",
}

// isRetryable reports whether another attempt could change the outcome.
// Lookup misses and rejected input fail the same way every time, so they
// pass through to the caller with their type intact.
func isRetryable(err error) bool {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		switch appErr.Type {
		case apperrors.ErrorTypeNotFound, apperrors.ErrorTypeValidation, apperrors.ErrorTypeNoData:
			return false
		}
	}
	return true
}

// isReadinessError reports whether err indicates a dead or unusable
// connection rather than a failure of the operation itself
func isReadinessError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Type == apperrors.ErrorTypeUnavailable {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, phrase := range readinessPhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}
