package order

import (
	"sync"
	"testing"
)

func TestSupplierCatalogFirstMatchWins(t *testing.T) {
	catalog := NewSupplierCatalog([]string{"ООО ТД", "ООО ТД Лето"})

	got, ok := catalog.Match("Заказ #1 ООО ТД Лето (поставка 01-01-2025)")
	if !ok || got != "ООО ТД" {
		t.Fatalf("Match() = %q, %v", got, ok)
	}
}

func TestSupplierCatalogNormalizesNames(t *testing.T) {
	catalog := NewSupplierCatalog([]string{" Сити ООО ", "", "Сити ООО", "Скай ООО (RedBull)"})

	names := catalog.Names()
	if len(names) != 2 || names[0] != "Сити ООО" || names[1] != "Скай ООО (RedBull)" {
		t.Fatalf("Names() = %#v", names)
	}

	names[0] = "mutated"
	if catalog.Names()[0] != "Сити ООО" {
		t.Fatalf("Names() exposed internal slice")
	}
}

func TestSupplierCatalogReplaceIsSafeForConcurrentReads(t *testing.T) {
	catalog := NewSupplierCatalog(DefaultSuppliers)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_, _ = catalog.Match("Сити ООО")
			}
		}()
	}
	for i := 0; i < 50; i++ {
		catalog.Replace([]string{"Сити ООО"})
		catalog.Replace(DefaultSuppliers)
	}
	wg.Wait()

	if catalog.Len() != len(DefaultSuppliers) {
		t.Fatalf("Len() = %d", catalog.Len())
	}
}
