package order

import (
	"strings"
	"sync/atomic"
)

// DefaultSuppliers is the closed supplier list used when none is configured.
var DefaultSuppliers = []string{
	"ООО \"ТД Восток\" (без кофе)",
	"ООО Фабрика ВБ",
	"ИП Сенникова А.А.",
	"ИП Есаулкова В.Г.",
	"ООО «МЕГАФУД»",
	"Сити ООО",
	"ИП Макеев Артем Юрьевич(гр.1,2,нов)",
	"ИП Хондкарян А. С.",
	"ООО \"Минводы Боржоми\"",
	"ООО ТД Лето",
	"Скай ООО (RedBull)",
	"МОЛОЧНАЯ ИМПЕРИЯ ООО",
	"ООО МясПродукт",
}

// SupplierCatalog holds the known supplier names. Replace swaps the whole
// list atomically so concurrent parses see one consistent snapshot.
type SupplierCatalog struct {
	names atomic.Pointer[[]string]
}

func NewSupplierCatalog(names []string) *SupplierCatalog {
	c := &SupplierCatalog{}
	c.Replace(names)
	return c
}

func (c *SupplierCatalog) Replace(names []string) {
	normalized := normalizeSupplierNames(names)
	c.names.Store(&normalized)
}

func (c *SupplierCatalog) Names() []string {
	current := c.snapshot()
	out := make([]string, len(current))
	copy(out, current)
	return out
}

func (c *SupplierCatalog) Len() int {
	return len(c.snapshot())
}

// Match returns the first catalog entry that occurs literally in text.
func (c *SupplierCatalog) Match(text string) (string, bool) {
	for _, name := range c.snapshot() {
		if strings.Contains(text, name) {
			return name, true
		}
	}
	return "", false
}

func (c *SupplierCatalog) snapshot() []string {
	if c == nil {
		return nil
	}
	current := c.names.Load()
	if current == nil {
		return nil
	}
	return *current
}

func normalizeSupplierNames(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, raw := range in {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
