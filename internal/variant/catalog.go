package variant

import (
	"sort"
	"strings"

	"github.com/pkg/errors"

	"flatten360/internal/projection"
	"flatten360/internal/resample"
)

// Spec names one strategy combination. Workers follows parallel.Bands:
// 0 uses every CPU, 1 runs the per-pixel loops serially.
type Spec struct {
	Name          string                 `json:"name"`
	Description   string                 `json:"description"`
	Layout        projection.Layout      `json:"-"`
	Interpolation resample.Interpolation `json:"-"`
	Workers       int                    `json:"workers"`
}

// AllName selects the whole catalog.
const AllName = "all"

var catalog = []Spec{
	{
		Name:          "serial-row",
		Description:   "single thread, interleaved (u,v) table in row order, bilinear",
		Layout:        projection.RowMajor,
		Interpolation: resample.Bilinear,
		Workers:       1,
	},
	{
		Name:          "serial-column",
		Description:   "single thread, interleaved (u,v) table in column order, bilinear",
		Layout:        projection.ColumnMajor,
		Interpolation: resample.Bilinear,
		Workers:       1,
	},
	{
		Name:          "serial-planar",
		Description:   "single thread, separate U and V planes, bilinear",
		Layout:        projection.Planar,
		Interpolation: resample.Bilinear,
		Workers:       1,
	},
	{
		Name:          "parallel-row",
		Description:   "row bands across all CPUs, interleaved table, bilinear",
		Layout:        projection.RowMajor,
		Interpolation: resample.Bilinear,
	},
	{
		Name:          "parallel-column",
		Description:   "column bands across all CPUs, interleaved table, bilinear",
		Layout:        projection.ColumnMajor,
		Interpolation: resample.Bilinear,
	},
	{
		Name:          "parallel-planar",
		Description:   "row bands across all CPUs, separate U and V planes, bilinear",
		Layout:        projection.Planar,
		Interpolation: resample.Bilinear,
	},
	{
		Name:          "parallel-row-bicubic",
		Description:   "row bands across all CPUs, interleaved table, bicubic with horizontal wrap",
		Layout:        projection.RowMajor,
		Interpolation: resample.Bicubic,
	},
	{
		Name:          "parallel-planar-bicubic",
		Description:   "row bands across all CPUs, separate U and V planes, bicubic with horizontal wrap",
		Layout:        projection.Planar,
		Interpolation: resample.Bicubic,
	},
	{
		Name:          "parallel-row-nearest",
		Description:   "row bands across all CPUs, interleaved table, nearest neighbour",
		Layout:        projection.RowMajor,
		Interpolation: resample.Nearest,
	},
}

// Catalog returns a copy of the built-in variants in run order.
func Catalog() []Spec {
	return append([]Spec(nil), catalog...)
}

// Lookup finds a variant by name, ignoring case.
func Lookup(name string) (Spec, bool) {
	for _, s := range catalog {
		if strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return Spec{}, false
}

// Select resolves a list of names. An empty list or the name "all" selects
// the catalog; duplicates are dropped and catalog order is kept.
func Select(names []string) ([]Spec, error) {
	if len(names) == 0 {
		return Catalog(), nil
	}
	index := make(map[string]int, len(catalog))
	for i, s := range catalog {
		index[s.Name] = i
	}
	picked := make(map[int]bool)
	for _, n := range names {
		n = strings.TrimSpace(n)
		if strings.EqualFold(n, AllName) {
			return Catalog(), nil
		}
		s, ok := Lookup(n)
		if !ok {
			return nil, errors.Errorf("variant: unknown variant %q", n)
		}
		picked[index[s.Name]] = true
	}
	order := make([]int, 0, len(picked))
	for i := range picked {
		order = append(order, i)
	}
	sort.Ints(order)
	out := make([]Spec, len(order))
	for i, idx := range order {
		out[i] = catalog[idx]
	}
	return out, nil
}
