// Package policy loads the allowed roles of each guarded region from a
// directory of JSON files and keeps them current as the files change.
package policy

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"git.sr.ht/~jakintosh/sessiongate/pkg/session"
)

var (
	ErrNoRoles     = errors.New("region allows no roles")
	ErrUnknownRole = errors.New("unknown role")
)

// Region is one file of the catalog, named after the file without its
// extension:
//
//	{"display": "Users", "roles": ["super_admin"]}
type Region struct {
	Display string         `json:"display"`
	Roles   []session.Role `json:"roles"`
}

type Catalog struct {
	dir    string
	logger *slog.Logger

	mu      sync.RWMutex
	regions map[string]Region
}

// NewCatalog loads dir. An empty dir gives an empty catalog, under which
// every region uses the default roles.
func NewCatalog(
	dir string,
	logger *slog.Logger,
) (
	*Catalog,
	error,
) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Catalog{
		dir:     dir,
		logger:  logger,
		regions: make(map[string]Region),
	}
	if dir == "" {
		return c, nil
	}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// AllowedRoles returns a copy of the roles of region.
func (c *Catalog) AllowedRoles(region string) ([]session.Role, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	r, ok := c.regions[region]
	if !ok {
		return nil, false
	}
	return slices.Clone(r.Roles), true
}

func (c *Catalog) Region(name string) (Region, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	r, ok := c.regions[name]
	if ok {
		r.Roles = slices.Clone(r.Roles)
	}
	return r, ok
}

// Names returns the configured region names, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.regions))
	for name := range c.regions {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Reload reads the directory again. If any file fails to load the current
// regions are kept and the error is returned.
func (c *Catalog) Reload() error {
	regions, err := loadRegions(c.dir)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.regions = regions
	c.mu.Unlock()

	c.logger.Info("loaded region policies", "dir", c.dir, "count", len(regions))
	return nil
}

func loadRegions(dir string) (map[string]Region, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("couldn't read policy dir '%s': %w", dir, err)
	}

	regions := make(map[string]Region)
	for _, file := range files {
		if !file.Type().IsRegular() || filepath.Ext(file.Name()) != ".json" {
			continue
		}
		name := strings.TrimSuffix(file.Name(), ".json")
		region, err := loadRegion(filepath.Join(dir, file.Name()))
		if err != nil {
			return nil, fmt.Errorf("region '%s': %w", name, err)
		}
		regions[name] = region
	}
	return regions, nil
}

func loadRegion(path string) (Region, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Region{}, err
	}

	var region Region
	if err := json.Unmarshal(data, &region); err != nil {
		return Region{}, fmt.Errorf("couldn't parse json: %w", err)
	}
	if len(region.Roles) == 0 {
		return Region{}, ErrNoRoles
	}
	for _, role := range region.Roles {
		if !role.Known() {
			return Region{}, fmt.Errorf("%w: '%s'", ErrUnknownRole, role)
		}
	}
	return region, nil
}
