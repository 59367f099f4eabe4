// Package fakeshop is an in-memory stand-in for the e-commerce backend:
// account registration, JWT login, stock-limited order placement and the
// caller's profile. It exists for local runs and tests, not for production.
package fakeshop

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Messages returned by the shop.
const (
	MsgEmailTaken        = "The email has already been taken."
	MsgInvalidLogin      = "無效的憑證"
	MsgInsufficientStock = "庫存不足，訂單提交失敗"
	MsgUnknownProduct    = "商品不存在或已下架"
	MsgUnauthenticated   = "Unauthenticated."
)

const minPasswordLength = 8

// Config tunes the shop.
type Config struct {
	// Stock is the initial stock per product id
	Stock map[int]int

	// Secret signs the access tokens
	Secret []byte

	TokenTTL time.Duration

	// Latency is added to every response
	Latency time.Duration

	Logger *zap.Logger
}

// DefaultConfig stocks products 1 and 2 with 1000 units each.
func DefaultConfig() Config {
	return Config{
		Stock:    map[int]int{1: 1000, 2: 1000},
		Secret:   []byte("orderstorm-fakeshop"),
		TokenTTL: time.Hour,
	}
}

type user struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	password string
}

// Shop holds accounts and stock. It is safe for concurrent use.
type Shop struct {
	cfg    Config
	logger *zap.Logger

	mu      sync.Mutex
	users   map[string]*user
	byID    map[int]*user
	stock   map[int]int
	orders  int
	nextUID int
}

// New creates a shop. Zero-valued fields of cfg take DefaultConfig values.
func New(cfg Config) *Shop {
	def := DefaultConfig()
	if cfg.Stock == nil {
		cfg.Stock = def.Stock
	}
	if len(cfg.Secret) == 0 {
		cfg.Secret = def.Secret
	}
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = def.TokenTTL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	stock := make(map[int]int, len(cfg.Stock))
	for id, n := range cfg.Stock {
		stock[id] = n
	}

	return &Shop{
		cfg:    cfg,
		logger: logger,
		users:  make(map[string]*user),
		byID:   make(map[int]*user),
		stock:  stock,
	}
}

// Handler returns the shop's routes under /api.
func (s *Shop) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/register", s.register)
	mux.HandleFunc("POST /api/login", s.login)
	mux.HandleFunc("POST /api/orders", s.authenticated(s.placeOrder))
	mux.HandleFunc("POST /api/me", s.authenticated(s.me))
	mux.HandleFunc("GET /api/me", s.authenticated(s.me))
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	if s.cfg.Latency <= 0 {
		return mux
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(s.cfg.Latency)
		mux.ServeHTTP(w, r)
	})
}

// Stock returns the remaining stock of a product.
func (s *Shop) Stock(productID int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stock[productID]
}

// Orders returns how many orders were accepted.
func (s *Shop) Orders() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders
}

// Users returns how many accounts exist.
func (s *Shop) Users() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

type registerRequest struct {
	Name                 string `json:"name"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

func (s *Shop) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	errs := map[string][]string{}
	if strings.TrimSpace(req.Name) == "" {
		errs["name"] = append(errs["name"], "The name field is required.")
	}
	if !strings.Contains(req.Email, "@") {
		errs["email"] = append(errs["email"], "The email must be a valid email address.")
	}
	if len(req.Password) < minPasswordLength {
		errs["password"] = append(errs["password"], "The password must be at least 8 characters.")
	} else if req.Password != req.PasswordConfirmation {
		errs["password"] = append(errs["password"], "The password confirmation does not match.")
	}

	s.mu.Lock()
	if _, taken := s.users[req.Email]; taken && len(errs["email"]) == 0 {
		errs["email"] = append(errs["email"], MsgEmailTaken)
	}
	if len(errs) > 0 {
		s.mu.Unlock()
		writeValidation(w, errs)
		return
	}
	s.nextUID++
	u := &user{ID: s.nextUID, Name: req.Name, Email: req.Email, password: req.Password}
	s.users[u.Email] = u
	s.byID[u.ID] = u
	s.mu.Unlock()

	s.logger.Debug("user registered", zap.Int("user_id", u.ID), zap.String("email", u.Email))
	writeJSON(w, http.StatusCreated, map[string]any{
		"status":  "success",
		"message": "註冊成功",
		"data":    map[string]any{"user": u},
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Shop) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	s.mu.Lock()
	u, ok := s.users[req.Email]
	s.mu.Unlock()
	if !ok || u.password != req.Password {
		writeError(w, http.StatusUnauthorized, MsgInvalidLogin)
		return
	}

	token, err := s.issueToken(u.ID)
	if err != nil {
		s.logger.Error("token signing failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "無法創建令牌")
		return
	}

	// The token is returned both at the top level and under data so either
	// token path works.
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "success",
		"message":      "登入成功",
		"access_token": token,
		"token_type":   "bearer",
		"expires_in":   int(s.cfg.TokenTTL.Seconds()),
		"data":         map[string]any{"token": token, "user": u},
	})
}

func (s *Shop) issueToken(userID int) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.Itoa(userID),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
		ID:        uuid.NewString(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.Secret)
}

// authenticated resolves the bearer token to a user before calling next.
func (s *Shop) authenticated(next func(http.ResponseWriter, *http.Request, *user)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := s.userFromRequest(r)
		if err != nil {
			s.logger.Debug("rejected token", zap.Error(err))
			writeError(w, http.StatusUnauthorized, MsgUnauthenticated)
			return
		}
		next(w, r, u)
	}
}

func (s *Shop) userFromRequest(r *http.Request) (*user, error) {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || raw == "" {
		return nil, errors.New("missing bearer token")
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return s.cfg.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	id, err := strconv.Atoi(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("invalid subject %q", claims.Subject)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("unknown user %d", id)
	}
	return u, nil
}

type orderRequest struct {
	ProductID int `json:"product_id"`
	Quantity  int `json:"quantity"`
}

func (s *Shop) placeOrder(w http.ResponseWriter, r *http.Request, u *user) {
	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Quantity < 1 {
		writeValidation(w, map[string][]string{"quantity": {"The quantity must be at least 1."}})
		return
	}

	s.mu.Lock()
	left, known := s.stock[req.ProductID]
	switch {
	case !known:
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, MsgUnknownProduct)
		return
	case left < req.Quantity:
		s.mu.Unlock()
		writeError(w, http.StatusBadRequest, MsgInsufficientStock)
		return
	}
	s.stock[req.ProductID] = left - req.Quantity
	s.orders++
	s.mu.Unlock()

	orderID := uuid.NewString()
	s.logger.Debug("order accepted",
		zap.String("order_uuid", orderID),
		zap.Int("user_id", u.ID),
		zap.Int("product_id", req.ProductID),
		zap.Int("quantity", req.Quantity))

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":  "success",
		"message": "訂單已提交，正在處理中",
		"data":    map[string]any{"order_uuid": orderID, "status": "pending"},
	})
}

func (s *Shop) me(w http.ResponseWriter, r *http.Request, u *user) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": "用戶資訊獲取成功",
		"data":    map[string]any{"user": u},
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"status": "error", "message": message})
}

// writeValidation mimics a 422 validation response: the first message is
// promoted to the top-level message.
func writeValidation(w http.ResponseWriter, errs map[string][]string) {
	message := "The given data was invalid."
	for _, field := range []string{"name", "email", "password", "quantity"} {
		if msgs := errs[field]; len(msgs) > 0 {
			message = msgs[0]
			break
		}
	}
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"message": message,
		"errors":  errs,
	})
}
