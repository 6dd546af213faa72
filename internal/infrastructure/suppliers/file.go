// Package suppliers loads the supplier list from a TOML file and keeps an
// order.SupplierCatalog in sync with it.
package suppliers

import (
	"errors"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"orderbot/internal/errs"
)

// File is the on-disk shape:
//
//	suppliers = ["Сити ООО", "ООО \"Юнилевер Русь\""]
type File struct {
	Suppliers []string `toml:"suppliers"`
}

// Load reads path and returns the non-empty supplier names in file order.
func Load(path string) ([]string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("suppliers file is required")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrapf(err, "read suppliers file %q", path)
	}

	var file File
	if err := toml.Unmarshal(raw, &file); err != nil {
		return nil, errs.Wrapf(err, "decode suppliers file %q", path)
	}

	names := make([]string, 0, len(file.Suppliers))
	for _, name := range file.Suppliers {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, errors.New("suppliers file " + path + " lists no suppliers")
	}
	return names, nil
}
