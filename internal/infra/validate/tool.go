// Package validate holds the pure structural checks for candidate tool
// records. Uniqueness of id and path needs the full collection and is the
// registry's responsibility.
package validate

import (
	"fmt"
	"regexp"
	"strings"

	"toolshelf/internal/domain"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// Tool checks candidate against every structural rule and returns the full
// list of violations. Rules are independent and none short-circuits, so a
// caller sees everything wrong at once. An empty result means valid.
func Tool(candidate domain.Tool) []string {
	var errs []string

	if strings.TrimSpace(candidate.ID) == "" {
		errs = append(errs, "id is required")
	} else if !slugPattern.MatchString(candidate.ID) {
		errs = append(errs, fmt.Sprintf("id %q must be a lowercase hyphen-separated slug", candidate.ID))
	}
	if strings.TrimSpace(candidate.Name) == "" {
		errs = append(errs, "name is required")
	}
	if strings.TrimSpace(candidate.Description) == "" {
		errs = append(errs, "description is required")
	}
	if strings.TrimSpace(candidate.Icon) == "" {
		errs = append(errs, "icon is required")
	}
	if strings.TrimSpace(candidate.Version) == "" {
		errs = append(errs, "version is required")
	}
	if !domain.IsValidCategory(candidate.Category) {
		errs = append(errs, fmt.Sprintf("category %q must be one of: %s",
			candidate.Category, categoryList()))
	}
	if strings.TrimSpace(candidate.Path) == "" {
		errs = append(errs, "path is required")
	} else if !strings.HasPrefix(candidate.Path, domain.RoutePrefix) {
		errs = append(errs, fmt.Sprintf("path %q must begin with %s", candidate.Path, domain.RoutePrefix))
	}

	return errs
}

func categoryList() string {
	names := make([]string, len(domain.Categories))
	for i, category := range domain.Categories {
		names[i] = string(category)
	}
	return strings.Join(names, ", ")
}
