package personnel

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"callcenter-backend/internal/shared/telemetry"
)

const maxNameLength = 100

type Service struct {
	Repo Repo
}

func NewService(repo Repo) *Service {
	return &Service{Repo: repo}
}

// Provision creates the profile for a new account. Calling it again for the
// same account returns the existing profile.
func (s *Service) Provision(ctx context.Context, accountID, fullName string) (Personnel, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return Personnel{}, fmt.Errorf("%w: account id is required", ErrInvalidInput)
	}
	first, last := splitName(fullName)
	p, err := s.Repo.Create(ctx, Personnel{
		ID:         uuid.NewString(),
		AccountID:  accountID,
		FirstName:  first,
		LastName:   last,
		Department: DepartmentCustomerService,
		Active:     true,
	})
	if err != nil {
		return Personnel{}, err
	}
	telemetry.Info("personnel.provisioned", map[string]any{"account_id": accountID, "personnel_id": p.ID})
	return p, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (Personnel, error) {
	if strings.TrimSpace(id) == "" {
		return Personnel{}, ErrInvalidInput
	}
	return s.Repo.GetByID(ctx, id)
}

func (s *Service) GetByAccountID(ctx context.Context, accountID string) (Personnel, error) {
	if strings.TrimSpace(accountID) == "" {
		return Personnel{}, ErrInvalidInput
	}
	return s.Repo.GetByAccountID(ctx, accountID)
}

func (s *Service) ListActive(ctx context.Context) ([]Personnel, error) {
	return s.Repo.ListActive(ctx)
}

func (s *Service) CountActive(ctx context.Context) (int, error) {
	return s.Repo.CountActive(ctx)
}

// UpdateProfile edits the name and position of a profile. Other fields are
// managed outside self-service.
func (s *Service) UpdateProfile(ctx context.Context, id string, u ProfileUpdate) (Personnel, error) {
	u.FirstName = strings.TrimSpace(u.FirstName)
	u.LastName = strings.TrimSpace(u.LastName)
	u.Position = strings.TrimSpace(u.Position)
	if u.FirstName == "" {
		return Personnel{}, fmt.Errorf("%w: first name is required", ErrInvalidInput)
	}
	for _, v := range []string{u.FirstName, u.LastName, u.Position} {
		if utf8.RuneCountInString(v) > maxNameLength {
			return Personnel{}, fmt.Errorf("%w: value exceeds %d characters", ErrInvalidInput, maxNameLength)
		}
	}
	return s.Repo.UpdateProfile(ctx, id, u)
}

// splitName puts the last word in the last name and the rest in the first name.
func splitName(full string) (string, string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	}
	return strings.Join(parts[:len(parts)-1], " "), parts[len(parts)-1]
}
