package sqlstore

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/example/teammeeting/internal/persistence"
)

var _ persistence.DirectoryRepository = (*Storage)(nil)

type courseRow struct {
	ID              int64         `db:"id"`
	ShortName       string        `db:"short_name"`
	FullName        string        `db:"full_name"`
	HasLandingPage  int           `db:"has_landing_page"`
	ForcedGroupMode sql.NullInt64 `db:"forced_group_mode"`
}

type userRow struct {
	ID             int64  `db:"id"`
	FullName       string `db:"full_name"`
	Email          string `db:"email"`
	RemoteObjectID string `db:"remote_object_id"`
	RemoteUPN      string `db:"remote_upn"`
}

type groupRow struct {
	ID       int64  `db:"id"`
	CourseID int64  `db:"course_id"`
	Name     string `db:"name"`
}

func (r groupRow) toGroup() persistence.Group {
	return persistence.Group{ID: r.ID, CourseID: r.CourseID, Name: r.Name}
}

// GetCourse loads a course.
func (s *Storage) GetCourse(ctx context.Context, id int64) (persistence.Course, error) {
	var row courseRow
	err := s.db.GetContext(ctx, &row,
		s.rebind(`SELECT id, short_name, full_name, has_landing_page, forced_group_mode FROM courses WHERE id = ?`), id)
	if err != nil {
		return persistence.Course{}, s.mapper.MapError(err)
	}
	course := persistence.Course{
		ID:             row.ID,
		ShortName:      row.ShortName,
		FullName:       row.FullName,
		HasLandingPage: row.HasLandingPage != 0,
	}
	if row.ForcedGroupMode.Valid {
		mode := int(row.ForcedGroupMode.Int64)
		course.ForcedGroupMode = &mode
	}
	return course, nil
}

// UpsertCourse inserts or replaces a course.
func (s *Storage) UpsertCourse(ctx context.Context, course persistence.Course) error {
	var forced sql.NullInt64
	if course.ForcedGroupMode != nil {
		forced = sql.NullInt64{Int64: int64(*course.ForcedGroupMode), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO courses (id, short_name, full_name, has_landing_page, forced_group_mode)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			short_name = excluded.short_name,
			full_name = excluded.full_name,
			has_landing_page = excluded.has_landing_page,
			forced_group_mode = excluded.forced_group_mode`),
		course.ID, course.ShortName, course.FullName, boolToInt(course.HasLandingPage), forced)
	return s.mapper.MapError(err)
}

// GetUser loads a user.
func (s *Storage) GetUser(ctx context.Context, id int64) (persistence.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row,
		s.rebind(`SELECT id, full_name, email, remote_object_id, remote_upn FROM users WHERE id = ?`), id)
	if err != nil {
		return persistence.User{}, s.mapper.MapError(err)
	}
	return persistence.User(row), nil
}

// UpsertUser inserts or replaces a user.
func (s *Storage) UpsertUser(ctx context.Context, user persistence.User) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO users (id, full_name, email, remote_object_id, remote_upn)
		VALUES (:id, :full_name, :email, :remote_object_id, :remote_upn)
		ON CONFLICT (id) DO UPDATE SET
			full_name = excluded.full_name,
			email = excluded.email,
			remote_object_id = excluded.remote_object_id,
			remote_upn = excluded.remote_upn`,
		userRow(user))
	return s.mapper.MapError(err)
}

// UpsertGroup inserts or renames a group.
func (s *Storage) UpsertGroup(ctx context.Context, group persistence.Group) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO course_groups (id, course_id, name) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET course_id = excluded.course_id, name = excluded.name`),
		group.ID, group.CourseID, group.Name)
	return s.mapper.MapError(err)
}

// AddGroupToGrouping places a group in a grouping.
func (s *Storage) AddGroupToGrouping(ctx context.Context, groupingID, groupID int64) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO grouping_groups (grouping_id, group_id) VALUES (?, ?)
		ON CONFLICT (grouping_id, group_id) DO NOTHING`), groupingID, groupID)
	return s.mapper.MapError(err)
}

// AddGroupMember adds a user to a group.
func (s *Storage) AddGroupMember(ctx context.Context, groupID, userID int64) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO group_members (group_id, user_id) VALUES (?, ?)
		ON CONFLICT (group_id, user_id) DO NOTHING`), groupID, userID)
	return s.mapper.MapError(err)
}

// AssignRole grants a course role.
func (s *Storage) AssignRole(ctx context.Context, assignment persistence.RoleAssignment) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO course_roles (course_id, user_id, role) VALUES (?, ?, ?)
		ON CONFLICT (course_id, user_id, role) DO NOTHING`),
		assignment.CourseID, assignment.UserID, strings.ToLower(assignment.Role))
	return s.mapper.MapError(err)
}

// ListGroups returns the groups of a course, restricted to a grouping when groupingID is set.
func (s *Storage) ListGroups(ctx context.Context, courseID, groupingID int64) ([]persistence.Group, error) {
	query := `SELECT g.id, g.course_id, g.name FROM course_groups g`
	args := []any{}
	if groupingID != 0 {
		query += ` JOIN grouping_groups gg ON gg.group_id = g.id AND gg.grouping_id = ?`
		args = append(args, groupingID)
	}
	query += ` WHERE g.course_id = ? ORDER BY g.name, g.id`
	args = append(args, courseID)
	return s.selectGroups(ctx, query, args...)
}

// ListUserGroups returns the groups of a course the user belongs to.
func (s *Storage) ListUserGroups(ctx context.Context, courseID, groupingID, userID int64) ([]persistence.Group, error) {
	query := `SELECT g.id, g.course_id, g.name FROM course_groups g
		JOIN group_members m ON m.group_id = g.id AND m.user_id = ?`
	args := []any{userID}
	if groupingID != 0 {
		query += ` JOIN grouping_groups gg ON gg.group_id = g.id AND gg.grouping_id = ?`
		args = append(args, groupingID)
	}
	query += ` WHERE g.course_id = ? ORDER BY g.name, g.id`
	args = append(args, courseID)
	return s.selectGroups(ctx, query, args...)
}

func (s *Storage) selectGroups(ctx context.Context, query string, args ...any) ([]persistence.Group, error) {
	var rows []groupRow
	if err := s.db.SelectContext(ctx, &rows, s.rebind(query), args...); err != nil {
		return nil, s.mapper.MapError(err)
	}
	groups := make([]persistence.Group, 0, len(rows))
	for _, row := range rows {
		groups = append(groups, row.toGroup())
	}
	return groups, nil
}

// ListRoleUsers returns the ids of users holding any of roles in the
// course, ascending. A non-zero groupID restricts to members of that group.
func (s *Storage) ListRoleUsers(ctx context.Context, courseID int64, roles []string, groupID int64) ([]int64, error) {
	if len(roles) == 0 {
		return nil, nil
	}

	query := `SELECT DISTINCT r.user_id FROM course_roles r`
	args := []any{}
	if groupID != 0 {
		query += ` JOIN group_members m ON m.user_id = r.user_id AND m.group_id = ?`
		args = append(args, groupID)
	}
	query += ` WHERE r.course_id = ? AND r.role IN (?) ORDER BY r.user_id`
	args = append(args, courseID, roles)

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, err
	}

	var ids []int64
	if err := s.db.SelectContext(ctx, &ids, s.rebind(query), args...); err != nil {
		return nil, s.mapper.MapError(err)
	}
	return ids, nil
}

// UserRoles returns the roles a user holds in a course.
func (s *Storage) UserRoles(ctx context.Context, courseID, userID int64) ([]string, error) {
	var roles []string
	err := s.db.SelectContext(ctx, &roles,
		s.rebind(`SELECT role FROM course_roles WHERE course_id = ? AND user_id = ? ORDER BY role`),
		courseID, userID)
	if err != nil {
		return nil, s.mapper.MapError(err)
	}
	return roles, nil
}
