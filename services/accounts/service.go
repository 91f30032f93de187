// Package accounts manages viewer accounts backed by the user database.
package accounts

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"nextreel/internal/database"
	"nextreel/models"
)

var (
	ErrUsernameRequired   = errors.New("username is required")
	ErrPasswordRequired   = errors.New("password is required")
	ErrUsernameExists     = errors.New("username already exists")
	ErrAccountNotFound    = errors.New("account not found")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// DefaultMasterPassword is the initial password for the master account.
// Operators should change it immediately after first login.
const DefaultMasterPassword = "admin"

// Repository is the persistence surface the service needs. Satisfied by
// *database.Repository.
type Repository interface {
	CreateAccount(a models.Account) error
	GetAccount(id string) (models.Account, bool, error)
	GetAccountByUsername(username string) (models.Account, bool, error)
	ListAccounts() ([]models.Account, error)
	UpdateAccountPassword(id, passwordHash string) error
	CountAccounts() (int, error)
}

// Service manages accounts and credential checks.
type Service struct {
	repo Repository
}

// NewService creates the accounts service and guarantees a master account
// exists so a fresh install is immediately usable.
func NewService(repo Repository) (*Service, error) {
	svc := &Service{repo: repo}
	if err := svc.ensureMasterAccount(); err != nil {
		return nil, err
	}
	return svc, nil
}

// Register creates a new regular account with the given credentials.
func (s *Service) Register(username, email, password string) (models.Account, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return models.Account{}, ErrUsernameRequired
	}
	if password == "" {
		return models.Account{}, ErrPasswordRequired
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.Account{}, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	account := models.Account{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        strings.TrimSpace(email),
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.CreateAccount(account); err != nil {
		if errors.Is(err, database.ErrUsernameTaken) {
			return models.Account{}, ErrUsernameExists
		}
		return models.Account{}, err
	}
	return account, nil
}

// Authenticate verifies credentials and returns the matching account.
func (s *Service) Authenticate(username, password string) (models.Account, error) {
	account, ok, err := s.repo.GetAccountByUsername(strings.TrimSpace(username))
	if err != nil {
		return models.Account{}, err
	}
	if !ok {
		// Burn comparable time so missing users are not distinguishable
		// from wrong passwords.
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$invalidsaltinvalidsaltinvalid"), []byte(password))
		return models.Account{}, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		return models.Account{}, ErrInvalidCredentials
	}
	return account, nil
}

// Get fetches an account by id.
func (s *Service) Get(id string) (models.Account, bool) {
	account, ok, err := s.repo.GetAccount(id)
	if err != nil {
		log.Printf("[accounts] lookup %s failed: %v", id, err)
		return models.Account{}, false
	}
	return account, ok
}

// List returns all accounts, master first.
func (s *Service) List() ([]models.Account, error) {
	return s.repo.ListAccounts()
}

// UpdatePassword replaces an account's password.
func (s *Service) UpdatePassword(id, newPassword string) error {
	if newPassword == "" {
		return ErrPasswordRequired
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.repo.UpdateAccountPassword(id, string(hash)); err != nil {
		return ErrAccountNotFound
	}
	return nil
}

// HasDefaultPassword reports whether the master account still uses the
// initial password.
func (s *Service) HasDefaultPassword() bool {
	account, ok, err := s.repo.GetAccountByUsername(models.MasterAccountUsername)
	if err != nil || !ok {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(DefaultMasterPassword)) == nil
}

func (s *Service) ensureMasterAccount() error {
	n, err := s.repo.CountAccounts()
	if err != nil {
		return fmt.Errorf("count accounts: %w", err)
	}
	if n > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultMasterPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash master password: %w", err)
	}

	now := time.Now().UTC()
	master := models.Account{
		ID:           uuid.NewString(),
		Username:     models.MasterAccountUsername,
		PasswordHash: string(hash),
		IsMaster:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.CreateAccount(master); err != nil {
		return fmt.Errorf("create master account: %w", err)
	}
	log.Printf("[accounts] created master account %q with default password", models.MasterAccountUsername)
	return nil
}
