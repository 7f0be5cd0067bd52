package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/ethpandaops/reportoor/pkg/config"
	"github.com/ethpandaops/reportoor/pkg/reporting"
)

// HashAPIKey returns the stored form of a bearer API key.
func HashAPIKey(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))

	return hex.EncodeToString(sum[:])
}

// --- Identity ---

func (s *store) GetUserByUsername(
	ctx context.Context, username string,
) (*User, error) {
	var user User
	if err := s.db.WithContext(ctx).
		Where("username = ?", username).
		First(&user).Error; err != nil {
		return nil, notFound(err, "getting user by username")
	}

	return &user, nil
}

func (s *store) GetUserByAPIKey(
	ctx context.Context, apiKey string,
) (*User, error) {
	var user User
	if err := s.db.WithContext(ctx).
		Where("api_key_hash = ?", HashAPIKey(apiKey)).
		First(&user).Error; err != nil {
		return nil, notFound(err, "getting user by api key")
	}

	return &user, nil
}

func (s *store) GetProjectByName(
	ctx context.Context, name string,
) (*Project, error) {
	var project Project
	if err := s.db.WithContext(ctx).
		Where("name = ?", reporting.NormalizeProjectName(name)).
		First(&project).Error; err != nil {
		return nil, notFound(err, "getting project %q", name)
	}

	return &project, nil
}

// GetPrincipal resolves a username to a principal with its project
// memberships.
func (s *store) GetPrincipal(
	ctx context.Context, username string,
) (*reporting.Principal, error) {
	user, err := s.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	type membershipRow struct {
		ProjectID   int64
		ProjectName string
		Role        string
	}

	var rows []membershipRow
	if err := s.db.WithContext(ctx).
		Table("project_members").
		Select("project_members.project_id, projects.name AS project_name, project_members.role").
		Joins("JOIN projects ON projects.id = project_members.project_id").
		Where("project_members.user_id = ?", user.ID).
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing memberships for %q: %w", username, err)
	}

	principal := &reporting.Principal{
		UserID:   user.ID,
		Username: user.Username,
		Role:     reporting.UserRole(user.Role),
		Projects: make(map[string]reporting.ProjectDetails, len(rows)),
	}

	for _, row := range rows {
		principal.Projects[row.ProjectName] = reporting.ProjectDetails{
			ProjectID:   row.ProjectID,
			ProjectName: row.ProjectName,
			Role:        reporting.ProjectRole(row.Role),
		}
	}

	return principal, nil
}

// --- Seeding ---

// SeedUsers upserts config-sourced users, their projects and memberships.
func (s *store) SeedUsers(
	ctx context.Context, users []config.UserConfig,
) error {
	for _, u := range users {
		var passwordHash, apiKeyHash string

		if u.Password != "" {
			hash, err := bcrypt.GenerateFromPassword(
				[]byte(u.Password), bcrypt.DefaultCost,
			)
			if err != nil {
				return fmt.Errorf("hashing password for %q: %w", u.Username, err)
			}

			passwordHash = string(hash)
		}

		if u.APIKey != "" {
			apiKeyHash = HashAPIKey(u.APIKey)
		}

		role := strings.ToUpper(u.Role)
		if role == "" {
			role = string(reporting.UserRoleUser)
		}

		user := User{Username: u.Username}
		if err := s.db.WithContext(ctx).
			Where("username = ?", u.Username).
			Assign(User{
				PasswordHash: passwordHash,
				APIKeyHash:   apiKeyHash,
				Role:         role,
				Source:       SourceConfig,
			}).
			FirstOrCreate(&user).Error; err != nil {
			return fmt.Errorf("seeding config user %q: %w", u.Username, err)
		}

		for _, m := range u.Projects {
			project := Project{Name: reporting.NormalizeProjectName(m.Name)}
			if err := s.db.WithContext(ctx).
				Where("name = ?", project.Name).
				FirstOrCreate(&project).Error; err != nil {
				return fmt.Errorf("seeding project %q: %w", project.Name, err)
			}

			member := ProjectMember{UserID: user.ID, ProjectID: project.ID}
			if err := s.db.WithContext(ctx).
				Where("user_id = ? AND project_id = ?", user.ID, project.ID).
				Assign(ProjectMember{Role: strings.ToUpper(m.Role)}).
				FirstOrCreate(&member).Error; err != nil {
				return fmt.Errorf(
					"seeding membership %q in %q: %w", u.Username, project.Name, err,
				)
			}
		}
	}

	s.log.WithField("count", len(users)).
		Info("Seeded users from config")

	return nil
}
