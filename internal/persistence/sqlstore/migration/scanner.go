package migration

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strings"
)

var migrationFilePattern = regexp.MustCompile(`^(\d{3})_([a-z0-9_]+)\.sql$`)

// FSScanner reads migrations from an fs.FS such as an embed.FS.
type FSScanner struct {
	fsys fs.FS
}

// NewFSScanner returns a scanner over fsys.
func NewFSScanner(fsys fs.FS) *FSScanner {
	return &FSScanner{fsys: fsys}
}

// ScanMigrations returns the migrations of dir ordered by version.
func (s *FSScanner) ScanMigrations(dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(s.fsys, dir)
	if err != nil {
		return nil, NewMigrationError("", dir, "read directory", err)
	}

	seen := make(map[string]string)
	var migrations []Migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		filePath := path.Join(dir, entry.Name())
		migration, err := s.parse(filePath)
		if err != nil {
			return nil, err
		}
		if other, ok := seen[migration.Version]; ok {
			return nil, NewMigrationError(migration.Version, filePath, "scan",
				fmt.Errorf("%w: also defined in %s", ErrDuplicateVersion, other))
		}
		seen[migration.Version] = filePath
		migrations = append(migrations, migration)
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// ValidateFileName checks the NNN_description.sql convention.
func (s *FSScanner) ValidateFileName(name string) error {
	if !migrationFilePattern.MatchString(name) {
		return fmt.Errorf("%w: %q does not match NNN_description.sql", ErrInvalidMigrationFile, name)
	}
	return nil
}

func (s *FSScanner) parse(filePath string) (Migration, error) {
	name := path.Base(filePath)
	if err := s.ValidateFileName(name); err != nil {
		return Migration{}, NewMigrationError("", filePath, "validate filename", err)
	}
	matches := migrationFilePattern.FindStringSubmatch(name)
	version := matches[1]

	content, err := fs.ReadFile(s.fsys, filePath)
	if err != nil {
		return Migration{}, NewMigrationError(version, filePath, "read file", err)
	}
	sql := string(content)
	if len(splitStatements(sql)) == 0 {
		return Migration{}, NewMigrationError(version, filePath, "validate content",
			fmt.Errorf("%w: no SQL statements", ErrInvalidMigrationFile))
	}

	description := descriptionFromContent(sql)
	if description == "" {
		description = strings.ReplaceAll(matches[2], "_", " ")
	}

	sum := sha256.Sum256(content)
	return Migration{
		Version:     version,
		Description: description,
		SQL:         sql,
		FilePath:    filePath,
		Checksum:    hex.EncodeToString(sum[:]),
	}, nil
}

func descriptionFromContent(sql string) string {
	for _, line := range strings.Split(sql, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "--") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "--"))
		if rest, ok := strings.CutPrefix(line, "Description:"); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}

// splitStatements splits a script on semicolons and drops comment-only lines.
func splitStatements(sql string) []string {
	var statements []string
	for _, stmt := range strings.Split(sql, ";") {
		var lines []string
		for _, line := range strings.Split(stmt, "\n") {
			line = strings.TrimSpace(line)
			if line != "" && !strings.HasPrefix(line, "--") {
				lines = append(lines, line)
			}
		}
		if len(lines) > 0 {
			statements = append(statements, strings.Join(lines, "\n"))
		}
	}
	return statements
}
