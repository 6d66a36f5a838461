package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"blockcheck/internal/models"
)

//go:embed default.yaml
var defaultCatalog []byte

var (
	ErrEmptyName         = errors.New("catalog: empty name")
	ErrDuplicateCategory = errors.New("catalog: duplicate category")
	ErrDuplicateService  = errors.New("catalog: duplicate service")
	ErrDuplicateDomain   = errors.New("catalog: duplicate domain")
)

// Seed is the immutable catalog definition a run is materialised from.
type Seed struct {
	categories []seedCategory
	size       int
}

type seedCategory struct {
	name     string
	services []seedService
}

type seedService struct {
	name    string
	domains []string
}

type fileCatalog struct {
	Categories []struct {
		Name     string `yaml:"name"`
		Services []struct {
			Name    string   `yaml:"name"`
			Domains []string `yaml:"domains"`
		} `yaml:"services"`
	} `yaml:"categories"`
}

// Default returns the catalog compiled into the binary.
func Default() *Seed {
	seed, err := Parse(defaultCatalog)
	if err != nil {
		panic("embedded catalog invalid: " + err.Error())
	}
	return seed
}

// Load reads a catalog file. An empty path selects the embedded default.
func Load(path string) (*Seed, error) {
	if path == "" {
		return Default(), nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	seed, err := Parse(content)
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return seed, nil
}

// Parse decodes and validates a YAML catalog.
func Parse(content []byte) (*Seed, error) {
	var raw fileCatalog
	if err := yaml.Unmarshal(content, &raw); err != nil {
		return nil, err
	}

	seed := &Seed{}
	categories := make(map[string]struct{}, len(raw.Categories))
	for _, rc := range raw.Categories {
		catName := strings.TrimSpace(rc.Name)
		if catName == "" {
			return nil, fmt.Errorf("%w: category", ErrEmptyName)
		}
		if _, ok := categories[catName]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateCategory, catName)
		}
		categories[catName] = struct{}{}

		cat := seedCategory{name: catName}
		services := make(map[string]struct{}, len(rc.Services))
		for _, rs := range rc.Services {
			svcName := strings.TrimSpace(rs.Name)
			if svcName == "" {
				return nil, fmt.Errorf("%w: service in %s", ErrEmptyName, catName)
			}
			if _, ok := services[svcName]; ok {
				return nil, fmt.Errorf("%w: %s/%s", ErrDuplicateService, catName, svcName)
			}
			services[svcName] = struct{}{}

			svc := seedService{name: svcName}
			domains := make(map[string]struct{}, len(rs.Domains))
			for _, d := range rs.Domains {
				name := strings.ToLower(strings.TrimSpace(d))
				if name == "" {
					return nil, fmt.Errorf("%w: domain in %s/%s", ErrEmptyName, catName, svcName)
				}
				if _, ok := domains[name]; ok {
					return nil, fmt.Errorf("%w: %s/%s/%s", ErrDuplicateDomain, catName, svcName, name)
				}
				domains[name] = struct{}{}
				svc.domains = append(svc.domains, name)
			}
			seed.size += len(svc.domains)
			cat.services = append(cat.services, svc)
		}
		seed.categories = append(seed.categories, cat)
	}
	return seed, nil
}

// Size returns the number of (category, service, domain) triples.
func (s *Seed) Size() int {
	return s.size
}

// Categories returns a fresh all-pending copy of the catalog tree.
func (s *Seed) Categories() []models.Category {
	out := make([]models.Category, 0, len(s.categories))
	for _, c := range s.categories {
		cat := models.Category{
			Name:     c.name,
			Services: make([]models.ServiceGroup, 0, len(c.services)),
		}
		for _, svc := range c.services {
			group := models.ServiceGroup{
				Name:    svc.name,
				Domains: make([]models.DomainEntry, len(svc.domains)),
			}
			for i, d := range svc.domains {
				group.Domains[i] = models.DomainEntry{Name: d, Status: models.StatusPending}
			}
			cat.Services = append(cat.Services, group)
		}
		out = append(out, cat)
	}
	return out
}
