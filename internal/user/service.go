package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
	"golang.org/x/crypto/bcrypt"

	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/store"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/user/entity"
	userrepo "github.com/ovaphlow/pitchfork/service-integrity-go/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-integrity-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-integrity-go/pkg/utilities"
)

// PasswordHasher defines minimal hashing interface (abstract so we can swap to argon2 later).
type PasswordHasher interface {
	Hash(pw string) (hash string, algo string, err error)
	Verify(hash, pw string) bool
}

// BcryptHasher implementation.
type BcryptHasher struct{ Cost int }

func (b BcryptHasher) Hash(pw string) (string, string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), cost)
	if err != nil {
		return "", "", err
	}
	return string(h), fmt.Sprintf("bcrypt:%d", cost), nil
}

func (b BcryptHasher) Verify(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// UserService covers registration, login and lookups. Suspension is applied
// by the moderation engine through the repo inside its own transaction.
type UserService struct {
	store  *store.Store
	hasher PasswordHasher
	clock  clockwork.Clock
}

func NewUserService(st *store.Store, hasher PasswordHasher, clock clockwork.Clock) *UserService {
	if hasher == nil {
		hasher = BcryptHasher{Cost: 12}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &UserService{store: st, hasher: hasher, clock: clock}
}

var (
	ErrBadCredentials = errors.New("invalid credentials")
	ErrDisabled       = errors.New("user disabled")
)

// Register creates an active account. Role defaults to "user".
func (s *UserService) Register(ctx context.Context, username, email, password, role string) (*entity.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("%w: username required", apperr.ErrInvalidArgument)
	}
	if password == "" {
		return nil, fmt.Errorf("%w: password required", apperr.ErrInvalidArgument)
	}
	switch role {
	case "":
		role = entity.RoleUser
	case entity.RoleUser, entity.RoleAdmin:
	default:
		return nil, fmt.Errorf("%w: unknown role %q", apperr.ErrInvalidArgument, role)
	}
	var normalizedEmail *string
	if email != "" {
		e := strings.ToLower(strings.TrimSpace(email))
		normalizedEmail = &e
	}
	hash, algo, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	now := utilities.Now(s.clock)
	u := &entity.User{
		ID:           utilities.NextID(),
		Username:     username,
		Email:        normalizedEmail,
		PasswordHash: &hash,
		PasswordAlgo: &algo,
		Role:         role,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := userrepo.NewUserRepo(s.store.DB()).Create(ctx, u); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: username or email already registered", apperr.ErrDuplicate)
		}
		return nil, err
	}
	return u, nil
}

// Authenticate checks a password by email or username (anything containing
// '@' is treated as an email).
func (s *UserService) Authenticate(ctx context.Context, identifier, password string) (*entity.MinimalAuthView, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, ErrBadCredentials
	}
	r := userrepo.NewUserRepo(s.store.DB())
	var u *entity.User
	var err error
	if strings.Contains(identifier, "@") {
		u, err = r.GetByEmail(ctx, strings.ToLower(identifier))
	} else {
		u, err = r.GetByUsername(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBadCredentials
		} // avoid user enumeration
		return nil, err
	}
	if !u.Active {
		return nil, ErrDisabled
	}
	if u.PasswordHash == nil || *u.PasswordHash == "" || !s.hasher.Verify(*u.PasswordHash, password) {
		return nil, ErrBadCredentials
	}
	return &entity.MinimalAuthView{ID: u.ID, Username: u.Username, Role: u.Role, Suspended: u.Suspended}, nil
}

// Get returns the full user record.
func (s *UserService) Get(ctx context.Context, id int64) (*entity.User, error) {
	u, err := userrepo.NewUserRepo(s.store.DB()).GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %d", apperr.ErrNotFound, id)
		}
		return nil, err
	}
	return u, nil
}

// RequireAdmin loads id through q and checks it holds the admin role.
func RequireAdmin(ctx context.Context, q sqlx.ExtContext, id int64) (*entity.User, error) {
	u, err := userrepo.NewUserRepo(q).GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: admin %d", apperr.ErrNotFound, id)
		}
		return nil, err
	}
	if !u.IsAdmin() {
		return nil, fmt.Errorf("%w: user %d is not an admin", apperr.ErrForbidden, id)
	}
	return u, nil
}
