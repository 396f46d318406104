package servicetest

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/iliyamo/garbage-collector/internal/metrics"
	"github.com/iliyamo/garbage-collector/internal/model"
	"github.com/iliyamo/garbage-collector/internal/service"
	"github.com/iliyamo/garbage-collector/internal/utils"
)

// Secret signs session tokens in tests.
const Secret = "servicetest-secret-0123456789"

// BcryptCost keeps hashing fast in tests.
const BcryptCost = 4

// ClosePoints is the closure credit used by Env.
const ClosePoints = 150

// Env wires every service against one in-memory DB.
type Env struct {
	DB      *DB
	Mail    *Mailer
	Metrics *metrics.Metrics

	Auth    *service.AuthService
	Ledger  *service.LedgerService
	Cards   *service.CardService
	Rewards *service.RewardService
	Users   *service.UserService
}

// NewEnv builds a fresh environment.
func NewEnv() *Env {
	db := NewDB()
	m := &Mailer{}
	met := metrics.New(prometheus.NewRegistry())
	log := zerolog.Nop()
	return &Env{
		DB:      db,
		Mail:    m,
		Metrics: met,
		Auth: &service.AuthService{
			Users: db.Users(), Tokens: db.Tokens(), Mail: m, Metrics: met, Log: log,
			Secret: Secret, SessionTTL: 8 * time.Hour, ResetTTL: time.Hour, BcryptCost: BcryptCost,
			BaseURL: "http://localhost:3000", AdminEmail: "admin@example.com",
			Now: func() time.Time { return db.Now() },
		},
		Ledger: &service.LedgerService{Ledger: db.Ledger(), Rewards: db.Rewards(), Metrics: met, Log: log},
		Cards: &service.CardService{
			Cards: db.Cards(), Statuses: db.Statuses(), Ledger: db.Ledger(), Users: db.Users(),
			Mail: m, Metrics: met, Log: log, ClosePoints: ClosePoints, MaxImageBytes: 1 << 20,
		},
		Rewards: &service.RewardService{Rewards: db.Rewards(), Log: log},
		Users:   &service.UserService{Users: db.Users(), Log: log},
	}
}

// ActiveUser seeds a verified account with the given password.
func (e *Env) ActiveUser(email, password string, role model.Role) model.User {
	hash, err := utils.HashPassword(password, BcryptCost)
	if err != nil {
		panic(err)
	}
	return e.DB.SeedUser(model.User{
		FirstName:    "Test",
		LastName:     "User",
		IDNumber:     email,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		IsActivated:  true,
	})
}

// Actor returns the service actor for u.
func Actor(u model.User) service.Actor { return service.Actor{ID: u.ID, Role: u.Role} }

// SessionToken signs a session for u.
func SessionToken(u model.User) string {
	tok, err := utils.NewSessionToken(Secret, u.ID, string(u.Role), time.Hour)
	if err != nil {
		panic(err)
	}
	return tok.Token
}
