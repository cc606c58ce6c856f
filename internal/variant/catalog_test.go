package variant

import (
	"testing"

	"go.viam.com/test"
)

func TestCatalogNamesAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, s := range Catalog() {
		test.That(t, seen[s.Name], test.ShouldBeFalse)
		test.That(t, s.Description, test.ShouldNotBeEmpty)
		seen[s.Name] = true
	}
	test.That(t, len(seen), test.ShouldBeGreaterThanOrEqualTo, 8)
}

func TestLookup(t *testing.T) {
	s, ok := Lookup("Parallel-Row-Bicubic")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, s.Name, test.ShouldEqual, "parallel-row-bicubic")

	_, ok = Lookup("gpu")
	test.That(t, ok, test.ShouldBeFalse)
}

func TestSelect(t *testing.T) {
	all, err := Select(nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, all, test.ShouldResemble, Catalog())

	all, err = Select([]string{"serial-row", "all"})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(all), test.ShouldEqual, len(Catalog()))

	picked, err := Select([]string{"parallel-planar", " serial-row ", "parallel-planar"})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(picked), test.ShouldEqual, 2)
	test.That(t, picked[0].Name, test.ShouldEqual, "serial-row")
	test.That(t, picked[1].Name, test.ShouldEqual, "parallel-planar")

	_, err = Select([]string{"nope"})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "nope")
}
