package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/weavehub/weave/apperr"
)

// IdentityClaims is the subset of a verified external token this service
// needs to resolve or create a local User. It is satisfied by
// security.Claims without importing that package here.
type IdentityClaims struct {
	Subject string
	Email   string
	Name    string
}

// UserCreatedHook runs after a brand-new user is persisted. The permission
// package registers one to auto-grant active public permissions to the new
// user (spec §4.4's C1 coupling).
type UserCreatedHook func(ctx context.Context, userID string) error

// Service resolves Actors from verified tokens and manages the Role column.
type Service struct {
	store   UserStore
	config  *Config
	onUser  UserCreatedHook
	tokens  *TokenService
}

func NewService(store UserStore, config *Config, tokens *TokenService) *Service {
	if config == nil {
		config = DefaultConfig()
	}
	return &Service{store: store, config: config, tokens: tokens}
}

// OnUserCreated registers the hook invoked after first-time user creation.
func (s *Service) OnUserCreated(hook UserCreatedHook) {
	s.onUser = hook
}

// ResolveUserActor finds the local user for claims, creating one with the
// default role on first sight, and returns the Actor for subsequent
// authorization checks.
func (s *Service) ResolveUserActor(ctx context.Context, claims IdentityClaims) (Actor, error) {
	if claims.Subject == "" {
		return Actor{}, apperr.NewUnauthorized("missing subject claim")
	}

	user, err := s.store.GetByID(ctx, claims.Subject)
	if err == nil {
		return Actor{Type: ActorUser, Identity: user.ID, Role: user.Role}, nil
	}
	if err != ErrUserNotFound {
		return Actor{}, apperr.WrapInternal(err, "looking up user %s", claims.Subject)
	}

	user = &User{
		ID:          claims.Subject,
		Email:       claims.Email,
		DisplayName: claims.Name,
		Role:        s.config.DefaultRole,
	}
	if err := s.store.Create(ctx, user); err != nil {
		return Actor{}, apperr.WrapInternal(err, "creating user %s", claims.Subject)
	}

	if s.onUser != nil {
		if err := s.onUser(ctx, user.ID); err != nil {
			return Actor{}, apperr.WrapInternal(err, "running user-created hook for %s", user.ID)
		}
	}

	return Actor{Type: ActorUser, Identity: user.ID, Role: user.Role}, nil
}

// ResolveServiceActor validates a service token and returns its Actor.
func (s *Service) ResolveServiceActor(ctx context.Context, token string) (Actor, error) {
	claims, err := s.tokens.ValidateServiceToken(token)
	if err != nil {
		return Actor{}, apperr.NewUnauthorized("invalid service token: %v", err)
	}
	return Actor{Type: ActorService, Identity: claims.ServiceName, Role: RoleDevAdmin}, nil
}

// SetRole changes a user's role. Only a dev_admin actor may do this.
func (s *Service) SetRole(ctx context.Context, actor Actor, userID string, role Role) error {
	if !actor.IsDevAdmin() {
		return apperr.NewForbidden("only dev_admin may change roles")
	}
	if !role.Valid() {
		return apperr.NewInvalidInput("unknown role %q", role)
	}
	if err := s.store.UpdateRole(ctx, userID, role); err != nil {
		if err == ErrUserNotFound {
			return apperr.NewNotFound("user %s", userID)
		}
		return apperr.WrapInternal(err, "updating role for %s", userID)
	}
	return nil
}

func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	user, err := s.store.GetByID(ctx, id)
	if err != nil {
		if err == ErrUserNotFound {
			return nil, apperr.NewNotFound("user %s", id)
		}
		return nil, apperr.WrapInternal(err, "looking up user %s", id)
	}
	return user, nil
}

func (s *Service) ListUsers(ctx context.Context) ([]*User, error) {
	users, err := s.store.List(ctx)
	if err != nil {
		return nil, apperr.WrapInternal(err, "listing users")
	}
	return users, nil
}

// NewUserID generates a fresh identifier for a locally-managed service
// account (externally-authenticated users use their provider subject).
func NewUserID() string {
	return uuid.NewString()
}
