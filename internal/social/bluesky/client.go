// Package bluesky implements the social providers on top of the AT Protocol
// (github.com/bluesky-social/indigo).
//
// Sessions are expensive (createSession is rate limited per account), so a
// Client logs in once, refreshes on ExpiredToken, and can persist its tokens
// through a SessionStore so cron-style invocations reuse them.
package bluesky

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	comatproto "github.com/bluesky-social/indigo/api/atproto"
	"github.com/bluesky-social/indigo/xrpc"
	"golang.org/x/time/rate"

	"desirebot/internal/errs"
	logx "desirebot/pkg/logx"
)

const (
	DefaultHost    = "https://bsky.social"
	defaultTimeout = 15 * time.Second
	maxPageSize    = 100
)

type Config struct {
	Host        string
	Identifier  string
	AppPassword string
	RatePerSec  int
	Timeout     time.Duration
	SearchLimit int
	// MentionPages bounds how far back ListMentionsSince pages when the
	// cursor is not found. Default 5.
	MentionPages int
}

// Session is the persisted form of an authenticated session.
type Session struct {
	AccessJwt  string `json:"accessJwt"`
	RefreshJwt string `json:"refreshJwt"`
	Handle     string `json:"handle"`
	Did        string `json:"did"`
}

// SessionStore persists sessions between runs. Optional.
type SessionStore interface {
	LoadSession(ctx context.Context) (Session, bool, error)
	SaveSession(ctx context.Context, s Session) error
}

type Client struct {
	cfg      Config
	log      logx.Logger
	lim      *rate.Limiter
	sessions SessionStore

	mu sync.Mutex
	xc *xrpc.Client
}

func New(cfg Config, sessions SessionStore, log logx.Logger) *Client {
	if strings.TrimSpace(cfg.Host) == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 5
	}
	if cfg.SearchLimit <= 0 || cfg.SearchLimit > maxPageSize {
		cfg.SearchLimit = 50
	}
	if cfg.MentionPages <= 0 {
		cfg.MentionPages = 5
	}
	return &Client{
		cfg:      cfg,
		log:      log,
		lim:      rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
		sessions: sessions,
		xc: &xrpc.Client{
			Host:   strings.TrimRight(cfg.Host, "/"),
			Client: &http.Client{Timeout: cfg.Timeout},
		},
	}
}

// Did returns the account DID once logged in.
func (c *Client) Did() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.xc.Auth == nil {
		return ""
	}
	return c.xc.Auth.Did
}

// call runs fn with an authenticated client, refreshing the session once if
// the access token expired.
func (c *Client) call(ctx context.Context, op string, fn func(xc *xrpc.Client) error) error {
	if err := c.ensureSession(ctx); err != nil {
		return err
	}
	if err := c.lim.Wait(ctx); err != nil {
		return errs.Transient(err, "bluesky %s", op)
	}
	err := fn(c.xc)
	if err != nil && isExpired(err) {
		c.log.Debug("access token expired; refreshing", logx.String("op", op))
		if rerr := c.refresh(ctx); rerr != nil {
			return rerr
		}
		err = fn(c.xc)
	}
	if err != nil {
		return errs.Transient(err, "bluesky %s", op)
	}
	return nil
}

func (c *Client) ensureSession(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.xc.Auth != nil {
		return nil
	}
	if c.sessions != nil {
		s, ok, err := c.sessions.LoadSession(ctx)
		if err != nil {
			c.log.Warn("stored session unreadable; logging in", logx.Err(err))
		} else if ok && s.AccessJwt != "" && s.RefreshJwt != "" {
			c.xc.Auth = &xrpc.AuthInfo{AccessJwt: s.AccessJwt, RefreshJwt: s.RefreshJwt, Handle: s.Handle, Did: s.Did}
			return nil
		}
	}
	return c.loginLocked(ctx)
}

func (c *Client) loginLocked(ctx context.Context) error {
	if strings.TrimSpace(c.cfg.Identifier) == "" || strings.TrimSpace(c.cfg.AppPassword) == "" {
		return errs.WithHint(
			errs.Configuration(errors.New("missing credentials"), "bluesky login"),
			"set bluesky.identifier and bluesky.app_password",
		)
	}
	out, err := comatproto.ServerCreateSession(ctx, c.xc, &comatproto.ServerCreateSession_Input{
		Identifier: c.cfg.Identifier,
		Password:   c.cfg.AppPassword,
	})
	if err != nil {
		if isAuthFailure(err) {
			return errs.Configuration(err, "bluesky login as %s", c.cfg.Identifier)
		}
		return errs.Transient(err, "bluesky login as %s", c.cfg.Identifier)
	}
	c.xc.Auth = &xrpc.AuthInfo{
		AccessJwt:  out.AccessJwt,
		RefreshJwt: out.RefreshJwt,
		Handle:     out.Handle,
		Did:        out.Did,
	}
	c.log.Info("bluesky session created", logx.String("handle", out.Handle))
	c.saveLocked(ctx)
	return nil
}

func (c *Client) refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.xc.Auth == nil {
		return c.loginLocked(ctx)
	}
	// refreshSession authenticates with the refresh token.
	rc := &xrpc.Client{
		Host:   c.xc.Host,
		Client: c.xc.Client,
		Auth:   &xrpc.AuthInfo{AccessJwt: c.xc.Auth.RefreshJwt, RefreshJwt: c.xc.Auth.RefreshJwt},
	}
	out, err := comatproto.ServerRefreshSession(ctx, rc)
	if err != nil {
		c.log.Warn("session refresh failed; logging in again", logx.Err(err))
		c.xc.Auth = nil
		return c.loginLocked(ctx)
	}
	c.xc.Auth.AccessJwt = out.AccessJwt
	c.xc.Auth.RefreshJwt = out.RefreshJwt
	c.xc.Auth.Handle = out.Handle
	c.xc.Auth.Did = out.Did
	c.saveLocked(ctx)
	return nil
}

func (c *Client) saveLocked(ctx context.Context) {
	if c.sessions == nil || c.xc.Auth == nil {
		return
	}
	a := c.xc.Auth
	if err := c.sessions.SaveSession(ctx, Session{AccessJwt: a.AccessJwt, RefreshJwt: a.RefreshJwt, Handle: a.Handle, Did: a.Did}); err != nil {
		c.log.Warn("session not persisted", logx.Err(err))
	}
}

func isExpired(err error) bool {
	return strings.Contains(err.Error(), "ExpiredToken")
}

func isAuthFailure(err error) bool {
	var xe *xrpc.Error
	if errors.As(err, &xe) {
		return xe.StatusCode == http.StatusUnauthorized
	}
	return strings.Contains(err.Error(), "AuthenticationRequired")
}
