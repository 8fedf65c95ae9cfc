package builder

import (
	"bufio"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/afero"

	shipiterr "github.com/familyevents/shipit/errors"
	"github.com/familyevents/shipit/internal/pipeline"
)

// requirementPattern matches a single dependency manifest entry: a
// distribution name with optional extras, version specifiers and an
// environment marker.
var requirementPattern = regexp.MustCompile(
	`^[A-Za-z0-9]([A-Za-z0-9._-]*[A-Za-z0-9])?` + // name
		`(\s*\[\s*[A-Za-z0-9._-]+(\s*,\s*[A-Za-z0-9._-]+)*\s*\])?` + // extras
		`(\s*(===|==|~=|!=|>=|<=|>|<)\s*[A-Za-z0-9.*+!_-]+` + // first specifier
		`(\s*,\s*(===|==|~=|!=|>=|<=|>|<)\s*[A-Za-z0-9.*+!_-]+)*)?` + // more specifiers
		`(\s*;.*)?$`, // environment marker
)

// ValidateContext checks that req describes a buildable context on fs:
// the context directory and Dockerfile exist, and when a manifest is
// configured it exists and every entry names a valid requirement. All
// violations wrap errors.ErrBuild.
func ValidateContext(fs afero.Fs, req pipeline.BuildRequest) error {
	isDir, err := afero.IsDir(fs, req.ContextDir)
	if err != nil || !isDir {
		return fmt.Errorf("%w: build context %s is not a directory", shipiterr.ErrBuild, req.ContextDir)
	}

	dockerfile := filepath.Join(req.ContextDir, req.Dockerfile)
	if ok, _ := afero.Exists(fs, dockerfile); !ok {
		return fmt.Errorf("%w: dockerfile %s not found", shipiterr.ErrBuild, dockerfile)
	}

	if req.Manifest == "" {
		return nil
	}
	manifest := filepath.Join(req.ContextDir, req.Manifest)
	f, err := fs.Open(manifest)
	if err != nil {
		return fmt.Errorf("%w: dependency manifest %s: %v", shipiterr.ErrBuild, manifest, err)
	}
	defer f.Close()

	var invalid []string
	scanner := bufio.NewScanner(f)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := manifestEntry(scanner.Text())
		if line == "" {
			continue
		}
		if !requirementPattern.MatchString(line) {
			invalid = append(invalid, fmt.Sprintf("line %d: %q", lineno, line))
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%w: reading dependency manifest %s: %v", shipiterr.ErrBuild, manifest, err)
	}
	if len(invalid) > 0 {
		return fmt.Errorf("%w: invalid requirements in %s: %s", shipiterr.ErrBuild, manifest, strings.Join(invalid, "; "))
	}
	return nil
}

// manifestEntry strips comments and whitespace from a manifest line.
// Option lines (-r, --index-url, -e) and URL requirements are left to the
// package installer and return the empty string.
func manifestEntry(line string) string {
	if i := strings.Index(line, " #"); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") || strings.Contains(line, " @ ") {
		return ""
	}
	return line
}
