package profile

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wesleyorama2/orderstorm/internal/config"
	stormhttp "github.com/wesleyorama2/orderstorm/internal/http"
	"github.com/wesleyorama2/orderstorm/internal/swarm"
	"github.com/wesleyorama2/orderstorm/pkg/jsonpath"
)

// Endpoints of the target backend.
const (
	PathRegister = "/api/register"
	PathLogin    = "/api/login"
	PathOrders   = "/api/orders"
	PathMe       = "/api/me"
)

// Request names as they appear in the statistics.
const (
	NameRegister = "POST " + PathRegister
	NameLogin    = "POST " + PathLogin
	NameOrder    = "POST " + PathOrders
	NameMe       = "POST " + PathMe
)

// Task names.
const (
	TaskPlaceOrder  = "place_order"
	TaskGetUserInfo = "get_user_info"
)

// ECommerceUser is one synthetic shopper.
type ECommerceUser struct {
	env     *swarm.Env
	profile config.ProfileConfig
	session Session

	// base carries the vu field; logger adds the current user_id to it
	base   *zap.Logger
	logger *zap.Logger
}

// NewFactory returns a swarm.BehaviorFactory building one ECommerceUser per
// virtual user. Defaults are filled into a copy of p.
func NewFactory(p config.ProfileConfig) swarm.BehaviorFactory {
	cfg := &config.Config{Profile: p}
	config.ApplyDefaults(cfg)
	p = cfg.Profile
	return func(env *swarm.Env) swarm.Behavior {
		return NewECommerceUser(env, p)
	}
}

// NewECommerceUser creates a shopper bound to env. p is used as is.
func NewECommerceUser(env *swarm.Env, p config.ProfileConfig) *ECommerceUser {
	logger := env.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ECommerceUser{
		env:     env,
		profile: p,
		base:    logger,
		logger:  logger,
	}
}

// Session exposes the shopper's authentication state.
func (u *ECommerceUser) Session() *Session {
	return &u.session
}

// OnStart authenticates once. A failure here is not fatal: the first task
// retries before giving up on the shopper.
func (u *ECommerceUser) OnStart(ctx context.Context) error {
	u.Authenticate(ctx)
	return nil
}

// Tasks returns place_order and get_user_info with the configured weights.
func (u *ECommerceUser) Tasks() []swarm.Task {
	return []swarm.Task{
		{Name: TaskPlaceOrder, Weight: u.profile.OrderWeight, Run: u.PlaceOrder},
		{Name: TaskGetUserInfo, Weight: u.profile.ProfileWeight, Run: u.GetUserInfo},
	}
}

// Authenticate registers a fresh account and logs in with it. It reports
// whether a token was obtained.
func (u *ECommerceUser) Authenticate(ctx context.Context) bool {
	attempt := u.session.beginAttempt()
	u.logger = u.base
	creds := newCredentials(u.env.Faker, u.profile)

	if !u.register(ctx, creds, attempt) {
		u.session.unauthenticated()
		return false
	}
	return u.login(ctx, creds)
}

func (u *ECommerceUser) register(ctx context.Context, creds Credentials, attempt int) bool {
	body := newRegisterRequest(creds, u.env.ActiveUsers(), attempt)
	resp, elapsed, err := u.post(ctx, PathRegister, "", body)
	if err != nil {
		u.failure(ctx, NameRegister, elapsed, 0, "User registration failed: "+err.Error())
		return false
	}

	switch {
	case resp.StatusCode == http.StatusCreated:
		u.success(NameRegister, resp)
		return true
	case resp.StatusCode == http.StatusUnprocessableEntity &&
		strings.Contains(resp.BodyString(), u.profile.DuplicateEmailMarker):
		u.logger.Debug("email already registered", zap.String("email", creds.Email))
		u.success(NameRegister, resp)
		return true
	default:
		u.failure(ctx, NameRegister, resp.ResponseTime, resp.Size(), "User registration failed: "+resp.BodyString())
		return false
	}
}

func (u *ECommerceUser) login(ctx context.Context, creds Credentials) bool {
	resp, elapsed, err := u.post(ctx, PathLogin, "", loginRequest{Email: creds.Email, Password: creds.Password})
	if err != nil {
		u.session.unauthenticated()
		u.failure(ctx, NameLogin, elapsed, 0, "User login failed: "+err.Error())
		return false
	}

	if resp.StatusCode != http.StatusOK {
		u.session.unauthenticated()
		u.failure(ctx, NameLogin, resp.ResponseTime, resp.Size(), "User login failed: "+resp.BodyString())
		return false
	}

	token, err := jsonpath.String(resp.Body(), u.profile.TokenPath)
	if err != nil {
		u.session.unauthenticated()
		u.failure(ctx, NameLogin, resp.ResponseTime, resp.Size(), "User login failed: "+resp.BodyString())
		return false
	}

	u.session.authenticated(token)
	if id := u.session.UserID(); id != "" {
		u.logger = u.base.With(zap.String("user_id", id))
	}
	u.success(NameLogin, resp)
	u.logger.Debug("logged in", zap.String("email", creds.Email))
	return true
}

// ensureAuthenticated is the guard in front of every task. Without a token
// it re-authenticates once; if that fails the shopper terminates.
func (u *ECommerceUser) ensureAuthenticated(ctx context.Context) error {
	if u.session.State() == StateAuthenticated && u.session.Token() != "" {
		return nil
	}
	if u.session.State() == StateTerminated {
		return swarm.ErrStopUser
	}

	if u.Authenticate(ctx) {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	u.session.terminate()
	return fmt.Errorf("re-authentication failed after %d attempts: %w", u.session.EmailCounter(), swarm.ErrStopUser)
}

// PlaceOrder submits one order for a random product and quantity.
func (u *ECommerceUser) PlaceOrder(ctx context.Context) error {
	if err := u.ensureAuthenticated(ctx); err != nil {
		return err
	}

	order := newOrderRequest(u.env.Faker, u.profile)
	resp, elapsed, err := u.post(ctx, PathOrders, u.session.Token(), order)
	if err != nil {
		return u.failure(ctx, NameOrder, elapsed, 0, "Order failed: "+err.Error())
	}

	switch {
	case resp.StatusCode == http.StatusAccepted:
		u.success(NameOrder, resp)
	case resp.StatusCode == http.StatusBadRequest &&
		strings.Contains(resp.BodyString(), u.profile.InsufficientStockMarker):
		u.logger.Debug("insufficient stock",
			zap.Int("product_id", order.ProductID),
			zap.Int("quantity", order.Quantity))
		u.success(NameOrder, resp)
	default:
		return u.failure(ctx, NameOrder, resp.ResponseTime, resp.Size(),
			fmt.Sprintf("Order failed with status %d: %s", resp.StatusCode, resp.BodyString()))
	}
	return nil
}

// GetUserInfo fetches the shopper's own profile.
func (u *ECommerceUser) GetUserInfo(ctx context.Context) error {
	if err := u.ensureAuthenticated(ctx); err != nil {
		return err
	}

	resp, elapsed, err := u.post(ctx, PathMe, u.session.Token(), nil)
	if err != nil {
		return u.failure(ctx, NameMe, elapsed, 0, "Failed to fetch user info: "+err.Error())
	}

	if resp.StatusCode != http.StatusOK {
		return u.failure(ctx, NameMe, resp.ResponseTime, resp.Size(), "Failed to fetch user info: "+resp.BodyString())
	}
	u.success(NameMe, resp)
	return nil
}

// post sends a JSON POST. elapsed is only meaningful when err is non-nil.
func (u *ECommerceUser) post(ctx context.Context, path, token string, body any) (*stormhttp.Response, time.Duration, error) {
	req := stormhttp.Post(path)
	if body != nil {
		req = req.WithBody(body)
	}
	if token != "" {
		req = req.WithBearer(token)
	}

	start := time.Now()
	resp, err := u.env.Client.Do(ctx, req)
	return resp, time.Since(start), err
}

func (u *ECommerceUser) success(name string, resp *stormhttp.Response) {
	u.env.Recorder.RecordSuccess(name, resp.ResponseTime, resp.Size())
}

// failure records a reported failure. Once ctx is done the request was cut
// short by the end of the run, so nothing is recorded and ctx.Err() is
// returned for the virtual user to exit on.
func (u *ECommerceUser) failure(ctx context.Context, name string, elapsed time.Duration, size int64, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	u.env.Recorder.RecordFailure(name, elapsed, size, message)
	u.logger.Debug("request failed", zap.String("request", name), zap.String("message", message))
	return nil
}
