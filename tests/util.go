package testutil

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
)

const signingKey = "masomo-test-key"

type TokenClaims struct {
	jwt.StandardClaims
	Role      string `json:"role,omitempty"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// CreateToken mints a signed token as the API would on login. The token expires in an hour.
func CreateToken(t *testing.T, id, role string, ttl ...time.Duration) string {
	exp := time.Hour
	if len(ttl) > 0 {
		exp = ttl[0]
	}
	return CreateTokenWithClaims(t, TokenClaims{
		StandardClaims: jwt.StandardClaims{
			Subject:   id,
			IssuedAt:  time.Now().Unix(),
			ExpiresAt: time.Now().Add(exp).Unix(),
		},
		Role:      role,
		Email:     id + "@masomo.cd",
		FirstName: "Test",
		LastName:  role,
	})
}

func CreateTokenWithClaims(t *testing.T, claims TokenClaims) string {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(signingKey))
	if err != nil {
		t.Fatalf("CreateToken() failed: %v", err)
	}
	return token
}

// WriteJSON writes an API envelope response.
func WriteJSON(t *testing.T, w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		t.Errorf("WriteJSON() failed: %v", err)
	}
}

// Navigations records the routes a session navigated to.
type Navigations struct {
	C chan string
}

func NewNavigations() *Navigations {
	return &Navigations{C: make(chan string, 10)}
}

func (n *Navigations) Navigate(route string) {
	n.C <- route
}

// Wait waits for the next navigation.
func (n *Navigations) Wait(t *testing.T, timeout time.Duration) string {
	select {
	case route := <-n.C:
		return route
	case <-time.After(timeout):
		t.Fatalf("no navigation after %v", timeout)
		return ""
	}
}
