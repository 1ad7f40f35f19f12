package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mesh-intelligence/storefront/pkg/types"
)

// User-visible login messages.
const (
	MsgConnectionError = "Connection error. Please try again."
	MsgLoginFailed     = "Login failed"
	MsgLoginSuccess    = "Signed in successfully."
	MsgSaveFailed      = "Could not save your session. Please try again."
)

// DefaultLogoutTimeout bounds the best-effort server logout.
const DefaultLogoutTimeout = 5 * time.Second

// AuthClient is the login/logout/session-check exchange with the server.
// *authrpc.Client satisfies it.
type AuthClient interface {
	Login(ctx context.Context, identifier, password string) (types.SessionIdentity, error)
	Logout(ctx context.Context) error
	CheckSession(ctx context.Context) (types.SessionIdentity, bool, error)
}

// MessageKind distinguishes success notices from errors.
type MessageKind int

const (
	MessageError MessageKind = iota
	MessageSuccess
)

// Message is a notice shown next to the login form.
type Message struct {
	Kind MessageKind
	Text string
}

// View is the rendering adapter driven by the Controller.
type View interface {
	// SetSubmitting disables (true) or re-enables (false) the login control.
	SetSubmitting(submitting bool)
	ShowMessage(m Message)
	RenderAuth(p Presentation)
}

// userMessager is implemented by errors that carry a server-provided message.
type userMessager interface {
	UserMessage() string
}

// FailureMessage maps a login error to the message shown to the user.
// Transport failures get a generic connection message; other failures show
// the server's message when it sent one.
func FailureMessage(err error) string {
	if errors.Is(err, types.ErrTransport) {
		return MsgConnectionError
	}
	var um userMessager
	if errors.As(err, &um) && um.UserMessage() != "" {
		return um.UserMessage()
	}
	return MsgLoginFailed
}

// Controller ties the state machine, the mirror, the auth client and a view
// together.
type Controller struct {
	machine       *Machine
	mirror        *Mirror
	client        AuthClient
	view          View
	logger        *slog.Logger
	logoutTimeout time.Duration

	// authMu pairs each machine transition with its mirror write, so a
	// logout cannot interleave with a completing login.
	authMu sync.Mutex

	menuMu   sync.Mutex
	menuOpen bool

	wg sync.WaitGroup
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithControllerLogger sets the logger. Defaults to slog.Default().
func WithControllerLogger(l *slog.Logger) ControllerOption {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithLogoutTimeout bounds the best-effort logout request.
func WithLogoutTimeout(d time.Duration) ControllerOption {
	return func(c *Controller) {
		if d > 0 {
			c.logoutTimeout = d
		}
	}
}

// NewController creates a controller. A mirrored identity present at
// creation puts the machine in LoggedIn, untrusted until Check confirms it.
func NewController(mirror *Mirror, client AuthClient, view View, opts ...ControllerOption) *Controller {
	c := &Controller{
		machine:       NewMachine(),
		mirror:        mirror,
		client:        client,
		view:          view,
		logger:        slog.Default(),
		logoutTimeout: DefaultLogoutTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if identity, ok := mirror.Load(); ok {
		// A fresh machine is LoggedOut, so Restore cannot be refused.
		_ = c.machine.Restore(identity)
	}
	return c
}

// State returns the current auth state.
func (c *Controller) State() State {
	return c.machine.State()
}

// Login validates the form, then runs the login exchange. The view's
// control is disabled for the duration and re-enabled on every path.
// Exactly one of a mirror write with a success message, or an error
// message, results.
func (c *Controller) Login(ctx context.Context, identifier, password string) error {
	if err := ValidateLogin(identifier, password); err != nil {
		var verrs ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			c.view.ShowMessage(Message{Kind: MessageError, Text: verrs[0].Message})
		}
		return err
	}

	if err := c.machine.BeginLogin(identifier); err != nil {
		return err
	}
	c.view.SetSubmitting(true)
	defer c.view.SetSubmitting(false)

	identity, err := c.client.Login(ctx, identifier, password)
	if err != nil {
		msg := FailureMessage(err)
		c.logger.Info("login failed", "kind", ClassifyIdentifier(identifier).String(), "error", err)
		if terr := c.fail(msg); terr != nil {
			c.logger.Debug("login failure after logout ignored", "error", terr)
			return err
		}
		c.view.ShowMessage(Message{Kind: MessageError, Text: msg})
		return err
	}

	if err := c.complete(identity); err != nil {
		if errors.Is(err, types.ErrInvalidTransition) {
			c.logger.Info("login superseded by logout", "user", identity.Username)
			return err
		}
		c.view.ShowMessage(Message{Kind: MessageError, Text: MsgSaveFailed})
		return err
	}
	c.setMenu(false)
	c.view.ShowMessage(Message{Kind: MessageSuccess, Text: MsgLoginSuccess})
	c.RenderAuth()
	c.logger.Info("login succeeded", "user", identity.Username)
	return nil
}

// complete mirrors identity and moves the pending login to LoggedIn. When
// the login is no longer pending nothing is written and
// types.ErrInvalidTransition is returned.
func (c *Controller) complete(identity types.SessionIdentity) error {
	c.authMu.Lock()
	defer c.authMu.Unlock()

	if _, ok := c.machine.State().(LoggingIn); !ok {
		return types.ErrInvalidTransition
	}
	if err := c.mirror.Save(identity); err != nil {
		if ferr := c.machine.Fail(MsgSaveFailed); ferr != nil {
			return ferr
		}
		return err
	}
	return c.machine.Complete(identity)
}

func (c *Controller) fail(msg string) error {
	c.authMu.Lock()
	defer c.authMu.Unlock()
	return c.machine.Fail(msg)
}

// Logout clears the mirror and re-renders before anything else, then
// notifies the server in the background. A failed server call is logged and
// otherwise ignored. Logout never returns an error to the caller for the
// server call; the returned error reports only a failed local clear.
func (c *Controller) Logout(ctx context.Context) error {
	c.authMu.Lock()
	clearErr := c.mirror.Clear()
	c.machine.Logout()
	c.authMu.Unlock()
	if clearErr != nil {
		c.logger.Warn("clear session mirror", "error", clearErr)
	}
	c.setMenu(false)
	c.RenderAuth()

	reqCtx := context.WithoutCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(reqCtx, c.logoutTimeout)
		defer cancel()
		if err := c.client.Logout(ctx); err != nil {
			c.logger.Warn("server logout failed", "error", err)
		}
	}()
	return clearErr
}

// Wait blocks until background logout requests have finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Check asks the server whether the session is live and reconciles the
// mirror with the answer. A logged-out answer clears a stale mirror; a
// logged-in answer refreshes it. When the server cannot be reached the
// mirror is kept but left untrusted. A login in flight is not disturbed.
func (c *Controller) Check(ctx context.Context) (loggedIn bool, err error) {
	identity, loggedIn, err := c.client.CheckSession(ctx)
	if err != nil {
		c.mirror.SetTrusted(false)
		c.logger.Warn("session check failed", "error", err)
		return false, err
	}
	if !c.reconcile(identity, loggedIn) {
		return loggedIn, nil
	}
	if !loggedIn {
		c.setMenu(false)
	}
	c.RenderAuth()
	return loggedIn, nil
}

// reconcile applies the server's answer to the mirror and the machine. It
// reports false, changing nothing, while a login is in flight.
func (c *Controller) reconcile(identity types.SessionIdentity, loggedIn bool) bool {
	c.authMu.Lock()
	defer c.authMu.Unlock()

	if _, inFlight := c.machine.State().(LoggingIn); inFlight {
		return false
	}
	if !loggedIn {
		if _, ok := c.mirror.Load(); ok {
			c.logger.Info("session mirror is stale, clearing")
		}
		if err := c.mirror.Clear(); err != nil {
			c.logger.Warn("clear session mirror", "error", err)
		}
		c.machine.Logout()
		return true
	}
	if err := c.mirror.Save(identity); err != nil {
		c.logger.Warn("refresh session mirror", "error", err)
	}
	return c.machine.Restore(identity) == nil
}

// Watch re-reads the mirror whenever another context changes it, so that a
// login or logout in one context shows in every other.
func (c *Controller) Watch(store types.Store) (cancel func()) {
	return store.Subscribe(func(ch types.Change) {
		if ch.Key != types.UserKey {
			return
		}
		c.mirror.SetTrusted(false)
		if !c.follow() {
			return
		}
		c.RenderAuth()
	})
}

// follow moves the machine to match a mirror changed by another context.
// A login in flight is left alone.
func (c *Controller) follow() bool {
	c.authMu.Lock()
	defer c.authMu.Unlock()

	if _, inFlight := c.machine.State().(LoggingIn); inFlight {
		return false
	}
	identity, ok := c.mirror.Load()
	if !ok {
		c.machine.Logout()
		c.setMenu(false)
		return true
	}
	return c.machine.Restore(identity) == nil
}

// RenderAuth renders the current state. Calling it repeatedly for the same
// state renders the same presentation.
func (c *Controller) RenderAuth() {
	c.view.RenderAuth(c.Presentation())
}

// Presentation returns what RenderAuth would render.
func (c *Controller) Presentation() Presentation {
	c.menuMu.Lock()
	open := c.menuOpen
	c.menuMu.Unlock()

	if s, ok := c.machine.State().(LoggedIn); ok {
		return Present(&s.Identity, open)
	}
	return Present(nil, false)
}

// ToggleMenu opens or closes the account menu. It has no effect while
// logged out.
func (c *Controller) ToggleMenu() {
	if _, ok := c.machine.State().(LoggedIn); !ok {
		return
	}
	c.menuMu.Lock()
	c.menuOpen = !c.menuOpen
	c.menuMu.Unlock()
	c.RenderAuth()
}

// CloseMenu closes the account menu.
func (c *Controller) CloseMenu() {
	c.setMenu(false)
	c.RenderAuth()
}

func (c *Controller) setMenu(open bool) {
	c.menuMu.Lock()
	defer c.menuMu.Unlock()
	c.menuOpen = open
}
