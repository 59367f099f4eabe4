// Package profile is the e-commerce shopper: it registers, logs in, places
// orders and fetches its own profile against the target backend.
package profile

import (
	"fmt"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/wesleyorama2/orderstorm/internal/config"
)

const (
	emailNumberMin = 10000
	emailNumberMax = 99999
)

// Credentials identify one shopper account.
type Credentials struct {
	Email    string
	Password string
}

// registerRequest is the body of POST /api/register.
type registerRequest struct {
	Name                 string `json:"name"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

// loginRequest is the body of POST /api/login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// orderRequest is the body of POST /api/orders.
type orderRequest struct {
	ProductID int `json:"product_id"`
	Quantity  int `json:"quantity"`
}

// newCredentials draws a fresh email address with a five-digit number.
// Collisions with earlier shoppers are expected and handled at registration.
func newCredentials(f *gofakeit.Faker, p config.ProfileConfig) Credentials {
	n := f.IntRange(emailNumberMin, emailNumberMax)
	return Credentials{
		Email:    fmt.Sprintf("%s%d@%s", p.EmailPrefix, n, p.EmailDomain),
		Password: p.Password,
	}
}

func newRegisterRequest(c Credentials, userCount, emailCounter int) registerRequest {
	return registerRequest{
		Name:                 fmt.Sprintf("Test User %d_%d", userCount, emailCounter),
		Email:                c.Email,
		Password:             c.Password,
		PasswordConfirmation: c.Password,
	}
}

// newOrderRequest picks a product and quantity uniformly.
func newOrderRequest(f *gofakeit.Faker, p config.ProfileConfig) orderRequest {
	return orderRequest{
		ProductID: f.RandomInt(p.ProductIDs),
		Quantity:  f.IntRange(p.QuantityMin, p.QuantityMax),
	}
}
