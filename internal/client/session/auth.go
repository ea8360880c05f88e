package session

import (
	"context"
	"fmt"

	"medilink/internal/client/api"
	"medilink/internal/client/autherr"
	"medilink/internal/shared/models"
)

// Login verifies the credentials through the backend and provider, builds
// the typed identity from the provider's signed role claim and transitions
// to SignedIn. The role is never taken from anything the client could
// forge: no role claim means RoleMissing even though authentication
// itself succeeded.
func (m *Manager) Login(ctx context.Context, email, password string) (*models.Identity, error) {
	m.setState(Authenticating)

	res, err := m.backend.Login(ctx, email, password)
	if err != nil {
		m.failAuth()
		return nil, fmt.Errorf("login: %w", err)
	}

	sess, err := m.provider.SignInWithCustomToken(ctx, res.Token)
	if err != nil {
		m.failAuth()
		return nil, fmt.Errorf("login: %w", err)
	}

	role := models.Role(sess.Token.Claims.Role)
	if !role.Valid() {
		m.failAuth()
		return nil, autherr.New(autherr.ErrRoleMissing, "Your account has no role assigned. Contact support.", nil)
	}

	userID := res.UserID
	if userID == "" {
		userID = sess.UID
	}
	id := buildIdentity(role, userID, email, nil)
	if err := m.adopt(id, sess.Token, res.Token); err != nil {
		m.failAuth()
		return nil, fmt.Errorf("login: %w", err)
	}
	m.log.Info().Str("role", string(role)).Msg("signed in")
	return id, nil
}

// RegisterPatient creates the backend account record, then logs in with
// the same credentials to obtain the provider session.
func (m *Manager) RegisterPatient(ctx context.Context, reg api.Registration) (*models.Identity, error) {
	m.setState(Authenticating)
	if _, err := m.backend.Register(ctx, reg); err != nil {
		m.failAuth()
		return nil, fmt.Errorf("register: %w", err)
	}
	id, err := m.Login(ctx, reg.Email, reg.Password)
	if err != nil {
		return nil, err
	}
	// the registration form carries the profile the login response lacks
	if id.Patient != nil {
		id.Patient.FirstName = reg.FirstName
		id.Patient.LastName = reg.LastName
		id.Patient.Phone = reg.Phone
		id.Patient.Address = reg.Address
		if err := m.store.Set(keyIdentity, id); err != nil {
			m.log.Warn().Err(err).Msg("profile snapshot not persisted")
		}
		m.notify(id)
	}
	return id, nil
}

// SignInWithFederatedProvider runs the provider's native consent flow and
// exchanges the resulting token with the backend for a role assignment.
func (m *Manager) SignInWithFederatedProvider(ctx context.Context) (*models.Identity, error) {
	m.setState(Authenticating)

	sess, err := m.provider.FederatedSignIn(ctx)
	if err != nil {
		m.failAuth()
		return nil, fmt.Errorf("federated sign-in: %w", err)
	}

	res, err := m.backend.GoogleLogin(ctx, sess.Token.Raw)
	if err != nil {
		m.failAuth()
		return nil, fmt.Errorf("federated sign-in: %w", err)
	}

	// a freshly assigned role may not be in the token claims yet; the
	// backend's assignment is authoritative for this first session
	role := models.Role(sess.Token.Claims.Role)
	if !role.Valid() {
		role = res.Role
	}
	if !role.Valid() {
		m.failAuth()
		return nil, autherr.New(autherr.ErrRoleMissing, "Your account has no role assigned. Contact support.", nil)
	}

	userID := res.UserID
	if userID == "" {
		userID = sess.UID
	}
	id := buildIdentity(role, userID, sess.Email, profileFromDisplayName(sess.DisplayName))
	if err := m.adopt(id, sess.Token, ""); err != nil {
		m.failAuth()
		return nil, fmt.Errorf("federated sign-in: %w", err)
	}
	m.log.Info().Str("role", string(role)).Msg("signed in with federated provider")
	return id, nil
}

// SignOut revokes the provider session and clears the cached credential
// and persisted snapshot. The cached credential goes first so no request
// issued during sign-out can reuse it; if the provider transport fails the
// identity stays and the caller gets SignOutFailed.
func (m *Manager) SignOut(ctx context.Context) error {
	m.mu.Lock()
	m.cred = models.Credential{}
	m.mu.Unlock()
	_ = m.store.Remove(keyCustomToken)

	if err := m.provider.SignOut(ctx); err != nil {
		return autherr.New(autherr.ErrSignOutFailed, "Failed to sign out. Please try again.", err)
	}

	_ = m.store.Remove(keyIdentity)
	m.mu.Lock()
	m.state = SignedOut
	m.identity = nil
	m.mu.Unlock()
	m.notify(nil)
	m.log.Info().Msg("signed out")
	return nil
}

// ForgotPassword starts the OTP reset flow; the endpoint is auth-exempt.
func (m *Manager) ForgotPassword(ctx context.Context, email string) error {
	return m.backend.ForgotPassword(ctx, email)
}

func (m *Manager) VerifyOTP(ctx context.Context, email, otp string) error {
	return m.backend.VerifyOTP(ctx, email, otp)
}

func (m *Manager) ResetPassword(ctx context.Context, email, newPassword string) error {
	return m.backend.ResetPassword(ctx, email, newPassword)
}

func buildIdentity(role models.Role, userID, email string, profile *models.Profile) *models.Identity {
	id := &models.Identity{
		UserID: userID,
		Email:  email,
		Role:   role,
	}
	switch role {
	case models.RolePatient:
		if profile == nil {
			profile = &models.Profile{}
		}
		id.Patient = profile
	case models.RoleDoctor:
		id.Doctor = &models.DoctorIdentity{Availability: []models.AvailabilitySlot{}}
		if profile != nil {
			id.Doctor.Profile.Profile = *profile
		}
	}
	return id
}

func profileFromDisplayName(name string) *models.Profile {
	if name == "" {
		return nil
	}
	p := &models.Profile{FirstName: name}
	for i, r := range name {
		if r == ' ' {
			p.FirstName = name[:i]
			p.LastName = name[i+1:]
			break
		}
	}
	return p
}
