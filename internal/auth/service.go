package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/hugh/addon-herd/internal/database/models"
	"github.com/hugh/addon-herd/pkg/crypto"
	"gorm.io/gorm"
)

var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrAccountExists      = errors.New("account already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveAccount    = errors.New("account is inactive")
)

type Service struct {
	db      *gorm.DB
	jwt     *JWTService
	keyring *crypto.Keyring
}

func NewService(db *gorm.DB, jwt *JWTService, keyring *crypto.Keyring) *Service {
	return &Service{db: db, jwt: jwt, keyring: keyring}
}

type RegisterInput struct {
	Email    string
	Password string
	Name     string
}

type LoginInput struct {
	Email    string
	Password string
}

type AuthResponse struct {
	Token   string          `json:"token"`
	Account *models.Account `json:"account"`
}

// Register creates a new account with a freshly wrapped DEK.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*AuthResponse, error) {
	var existing models.Account
	if err := s.db.WithContext(ctx).Where("email = ?", input.Email).First(&existing).Error; err == nil {
		return nil, ErrAccountExists
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	wrappedDEK, err := s.keyring.GenerateDEK()
	if err != nil {
		return nil, err
	}

	account := models.Account{
		Email:        input.Email,
		PasswordHash: hash,
		Name:         input.Name,
		IsActive:     true,
		WrappedDEK:   wrappedDEK,
		SafeMode:     true,
	}

	if err := s.db.WithContext(ctx).Create(&account).Error; err != nil {
		return nil, err
	}

	token, err := s.jwt.GenerateToken(account.ID, account.Email)
	if err != nil {
		return nil, err
	}

	return &AuthResponse{Token: token, Account: &account}, nil
}

func (s *Service) Login(ctx context.Context, input LoginInput) (*AuthResponse, error) {
	var account models.Account
	if err := s.db.WithContext(ctx).Where("email = ?", input.Email).First(&account).Error; err != nil {
		return nil, ErrInvalidCredentials
	}

	if !CheckPassword(input.Password, account.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	if !account.IsActive {
		return nil, ErrInactiveAccount
	}

	token, err := s.jwt.GenerateToken(account.ID, account.Email)
	if err != nil {
		return nil, err
	}

	return &AuthResponse{Token: token, Account: &account}, nil
}

func (s *Service) GetAccountByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	var account models.Account
	if err := s.db.WithContext(ctx).First(&account, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}
