package fixtures

import (
	"sync"

	"github.com/brianvoe/gofakeit/v6"
)

// User is a synthetic person record used as a request payload
type User struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Address  string `json:"address"`
	Sentence string `json:"sentence"`
}

// Map returns the record as flat string fields, suitable for form bodies
func (u User) Map() map[string]string {
	return map[string]string{
		"name":     u.Name,
		"email":    u.Email,
		"address":  u.Address,
		"sentence": u.Sentence,
	}
}

// Generator produces fake data from its own faker.
// A Generator is safe for concurrent use.
type Generator struct {
	mu    sync.Mutex
	faker *gofakeit.Faker
}

// NewGenerator returns a generator seeded with seed. Equal seeds yield equal sequences.
// A zero seed picks a random one.
func NewGenerator(seed int64) *Generator {
	return &Generator{faker: gofakeit.New(seed)}
}

var defaultGenerator = &Generator{faker: gofakeit.NewCrypto()}

// User returns a fresh synthetic user
func (g *Generator) User() User {
	g.mu.Lock()
	defer g.mu.Unlock()

	return User{
		Name:     g.faker.Name(),
		Email:    g.faker.Email(),
		Address:  g.faker.Address().Address,
		Sentence: g.faker.Sentence(8),
	}
}

// QueryParams returns up to n word/word pairs. Colliding keys collapse,
// so the result may hold fewer than n entries. n <= 0 yields an empty map.
func (g *Generator) QueryParams(n int) map[string]string {
	params := make(map[string]string, max(n, 0))
	if n <= 0 {
		return params
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	for range n {
		params[g.faker.Word()] = g.faker.Word()
	}
	return params
}

// RandomUser returns a synthetic user from the default generator
func RandomUser() User {
	return defaultGenerator.User()
}

// RandomQueryParams returns up to n random query parameters from the default generator
func RandomQueryParams(n int) map[string]string {
	return defaultGenerator.QueryParams(n)
}
