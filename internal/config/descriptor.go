package config

import (
	"github.com/BurntSushi/toml"

	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/errs"
)

// Descriptor is a static server bootstrap file (e.g. `polytope.toml`),
// distinct from the layered runtime config: it names the projects a
// freshly `init`'d depot should come up with, plus bind address, database
// path and root account fields that `polytoped` decodes but does not use.
type Descriptor struct {
	BindAddr     string            `toml:"bind_addr"`
	DBPath       string            `toml:"db_path"`
	RootUser     string            `toml:"root_user"`
	RootEmail    string            `toml:"root_email"`
	Projects     []ProjectSeed     `toml:"projects"`
	ExternalTags map[string]string `toml:"external_tags"`
}

// ProjectSeed describes one project to create on first boot.
type ProjectSeed struct {
	Name        string `toml:"name"`
	Description string `toml:"description"`
}

// LoadDescriptor reads and decodes a TOML bootstrap descriptor from path.
func LoadDescriptor(path string) (*Descriptor, error) {
	var d Descriptor
	if _, err := toml.DecodeFile(path, &d); err != nil {
		return nil, errs.Wrap(errs.Parsing, err, "decoding descriptor %s", path)
	}
	return &d, nil
}
