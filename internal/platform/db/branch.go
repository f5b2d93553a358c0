package db

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	branchKey contextKey = "branch"
	poolKey   contextKey = "branch_pool"
	txKey     contextKey = "tx"
)

var branchNameRe = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)

// ValidBranchName reports whether name is a well-formed branch identifier:
// lowercase alphanumeric with underscores, starting with a letter.
func ValidBranchName(name string) bool {
	return branchNameRe.MatchString(name)
}

// Provider holds one connection pool per clinic branch. Every branch runs
// against its own database; pools are opened once at startup and shared.
type Provider struct {
	pools   map[string]*pgxpool.Pool
	defName string
}

// NewProvider opens a pool for every configured branch. branches maps branch
// name to database URL; defaultBranch must be one of the keys. Any pool that
// fails to open closes the ones already opened and fails the whole startup.
func NewProvider(ctx context.Context, branches map[string]string, defaultBranch string, maxConns, minConns int32) (*Provider, error) {
	if _, ok := branches[defaultBranch]; !ok {
		return nil, fmt.Errorf("default branch %q has no database configured", defaultBranch)
	}

	p := &Provider{pools: make(map[string]*pgxpool.Pool, len(branches)), defName: defaultBranch}
	for name, url := range branches {
		if !ValidBranchName(name) {
			p.Close()
			return nil, fmt.Errorf("invalid branch name %q", name)
		}
		pool, err := NewPool(ctx, url, maxConns, minConns)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("open branch %q: %w", name, err)
		}
		p.pools[name] = pool
	}
	return p, nil
}

// Pool returns the pool for the named branch.
func (p *Provider) Pool(branch string) (*pgxpool.Pool, bool) {
	pool, ok := p.pools[branch]
	return pool, ok
}

// DefaultBranch returns the branch used when a request carries no branch hint.
func (p *Provider) DefaultBranch() string { return p.defName }

// Branches returns the configured branch names in stable order.
func (p *Provider) Branches() []string {
	names := make([]string, 0, len(p.pools))
	for name := range p.pools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close closes every branch pool.
func (p *Provider) Close() {
	for _, pool := range p.pools {
		pool.Close()
	}
}

// BranchMiddleware resolves the branch for each request and injects that
// branch's pool into the request context. Resolution order: the branch claim
// from the verified token, the X-Branch header, the branch query parameter,
// then the provider's default. An unknown branch is rejected up front so
// handlers never see a request without a usable pool.
func BranchMiddleware(provider *Provider) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			branch := ""
			if v, ok := c.Get("jwt_branch").(string); ok && v != "" {
				branch = v
			}
			if branch == "" {
				branch = c.Request().Header.Get("X-Branch")
			}
			if branch == "" {
				branch = c.QueryParam("branch")
			}
			if branch == "" {
				branch = provider.DefaultBranch()
			}

			if !ValidBranchName(branch) {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid branch name")
			}
			pool, ok := provider.Pool(branch)
			if !ok {
				return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown branch %q", branch))
			}

			ctx := context.WithValue(c.Request().Context(), branchKey, branch)
			ctx = context.WithValue(ctx, poolKey, pool)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("branch", branch)
			return next(c)
		}
	}
}

// BranchFromContext returns the branch name resolved for this request.
func BranchFromContext(ctx context.Context) (string, bool) {
	branch, ok := ctx.Value(branchKey).(string)
	return branch, ok
}

// PoolFromContext returns the branch pool injected by BranchMiddleware.
func PoolFromContext(ctx context.Context) (*pgxpool.Pool, bool) {
	pool, ok := ctx.Value(poolKey).(*pgxpool.Pool)
	return pool, ok
}

// WithPool returns a context carrying the given pool. Used by the CLI and by
// tests that bypass the HTTP middleware.
func WithPool(ctx context.Context, pool *pgxpool.Pool) context.Context {
	return context.WithValue(ctx, poolKey, pool)
}

// TxFromContext returns the transaction opened by WithTx, if any.
func TxFromContext(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey).(pgx.Tx)
	return tx, ok
}

// WithTx runs fn inside a transaction on the request's branch pool. The
// transaction is placed in the context so repositories called from fn share
// it. Rolls back on error or panic, commits otherwise.
func WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	pool, ok := PoolFromContext(ctx)
	if !ok {
		return fmt.Errorf("no branch pool in context")
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback(ctx)
			panic(r)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey, tx)); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}
