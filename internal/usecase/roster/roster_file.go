package roster

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/pelletier/go-toml/v2"
)

type rosterFile struct {
	Site    siteSection     `toml:"site"`
	Members []memberSection `toml:"members"`
}

type siteSection struct {
	ID       string `toml:"id"`
	Name     string `toml:"name"`
	Timezone string `toml:"timezone"`
}

type memberSection struct {
	ID   string `toml:"id"`
	Name string `toml:"name"`
	Role string `toml:"role"`
}

func loadRosterFile(rosterPath string) (rosterFile, error) {
	path := strings.TrimSpace(rosterPath)
	if path == "" {
		return rosterFile{}, errors.New("roster file is required")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return rosterFile{}, err
	}

	var file rosterFile
	if err := toml.Unmarshal(raw, &file); err != nil {
		return rosterFile{}, err
	}
	if err := validateRosterFile(&file); err != nil {
		return rosterFile{}, err
	}
	return file, nil
}

// validateRosterFile trims every field in place.
func validateRosterFile(file *rosterFile) error {
	file.Site.ID = strings.TrimSpace(file.Site.ID)
	file.Site.Name = strings.TrimSpace(file.Site.Name)
	file.Site.Timezone = strings.TrimSpace(file.Site.Timezone)
	if file.Site.ID == "" {
		return errors.New("site.id is required")
	}
	if file.Site.Timezone != "" {
		if _, err := time.LoadLocation(file.Site.Timezone); err != nil {
			return fmt.Errorf("site.timezone %q is invalid: %w", file.Site.Timezone, err)
		}
	}

	seen := make(map[string]struct{}, len(file.Members))
	for i := range file.Members {
		member := &file.Members[i]
		member.ID = strings.TrimSpace(member.ID)
		member.Name = strings.TrimSpace(member.Name)
		member.Role = strings.TrimSpace(member.Role)
		if member.ID == "" {
			return fmt.Errorf("members[%d].id is required", i)
		}
		if _, dup := seen[member.ID]; dup {
			return fmt.Errorf("members[%d].id %q is duplicated", i, member.ID)
		}
		seen[member.ID] = struct{}{}
	}
	return nil
}
