package sqlstore

import (
	"context"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/example/teammeeting/internal/persistence"
)

// Seed is the YAML document accepted by LoadSeed. It populates the
// directory tables that a host platform would otherwise own.
type Seed struct {
	Courses []SeedCourse `yaml:"courses"`
	Users   []SeedUser   `yaml:"users"`
	Groups  []SeedGroup  `yaml:"groups"`
	Roles   []SeedRole   `yaml:"roles"`
}

type SeedCourse struct {
	ID              int64  `yaml:"id"`
	ShortName       string `yaml:"short_name"`
	FullName        string `yaml:"full_name"`
	HasLandingPage  *bool  `yaml:"has_landing_page"`
	ForcedGroupMode *int   `yaml:"forced_group_mode"`
}

type SeedUser struct {
	ID             int64  `yaml:"id"`
	FullName       string `yaml:"full_name"`
	Email          string `yaml:"email"`
	RemoteObjectID string `yaml:"remote_object_id"`
	RemoteUPN      string `yaml:"remote_upn"`
}

type SeedGroup struct {
	ID        int64   `yaml:"id"`
	CourseID  int64   `yaml:"course_id"`
	Name      string  `yaml:"name"`
	Groupings []int64 `yaml:"groupings"`
	Members   []int64 `yaml:"members"`
}

type SeedRole struct {
	CourseID int64   `yaml:"course_id"`
	Role     string  `yaml:"role"`
	Users    []int64 `yaml:"users"`
}

// ParseSeed decodes a seed document.
func ParseSeed(r io.Reader) (Seed, error) {
	var seed Seed
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil && err != io.EOF {
		return Seed{}, fmt.Errorf("sqlstore: parse seed: %w", err)
	}
	return seed, nil
}

// LoadSeed upserts every entry of seed. It is idempotent.
func (s *Storage) LoadSeed(ctx context.Context, seed Seed) error {
	for _, c := range seed.Courses {
		landing := true
		if c.HasLandingPage != nil {
			landing = *c.HasLandingPage
		}
		if err := s.UpsertCourse(ctx, persistence.Course{
			ID:              c.ID,
			ShortName:       c.ShortName,
			FullName:        c.FullName,
			HasLandingPage:  landing,
			ForcedGroupMode: c.ForcedGroupMode,
		}); err != nil {
			return fmt.Errorf("seed course %d: %w", c.ID, err)
		}
	}

	for _, u := range seed.Users {
		if err := s.UpsertUser(ctx, persistence.User(u)); err != nil {
			return fmt.Errorf("seed user %d: %w", u.ID, err)
		}
	}

	for _, g := range seed.Groups {
		if err := s.UpsertGroup(ctx, persistence.Group{ID: g.ID, CourseID: g.CourseID, Name: g.Name}); err != nil {
			return fmt.Errorf("seed group %d: %w", g.ID, err)
		}
		for _, groupingID := range g.Groupings {
			if err := s.AddGroupToGrouping(ctx, groupingID, g.ID); err != nil {
				return fmt.Errorf("seed grouping %d: %w", groupingID, err)
			}
		}
		for _, userID := range g.Members {
			if err := s.AddGroupMember(ctx, g.ID, userID); err != nil {
				return fmt.Errorf("seed member %d of group %d: %w", userID, g.ID, err)
			}
		}
	}

	for _, r := range seed.Roles {
		for _, userID := range r.Users {
			if err := s.AssignRole(ctx, persistence.RoleAssignment{CourseID: r.CourseID, UserID: userID, Role: r.Role}); err != nil {
				return fmt.Errorf("seed role %s for %d: %w", r.Role, userID, err)
			}
		}
	}

	s.logger.InfoContext(ctx, "seed loaded",
		"courses", len(seed.Courses),
		"users", len(seed.Users),
		"groups", len(seed.Groups),
	)
	return nil
}
