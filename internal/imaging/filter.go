package imaging

import (
	"fmt"
	"sort"
	"strings"

	"github.com/anthonynsimon/bild/transform"
	"github.com/disintegration/imaging"
)

// DefaultFilter is used when Options.Filter is empty.
const DefaultFilter = "lanczos"

// filterPair holds the same resampling kernel for both engines.
type filterPair struct {
	imaging imaging.ResampleFilter
	bild    transform.ResampleFilter
}

var filters = map[string]filterPair{
	"lanczos":    {imaging.Lanczos, transform.Lanczos},
	"catmullrom": {imaging.CatmullRom, transform.CatmullRom},
	"mitchell":   {imaging.MitchellNetravali, transform.MitchellNetravali},
	"linear":     {imaging.Linear, transform.Linear},
	"box":        {imaging.Box, transform.Box},
	"nearest":    {imaging.NearestNeighbor, transform.NearestNeighbor},
}

// FilterNames lists the accepted filter names in sorted order.
func FilterNames() []string {
	names := make([]string, 0, len(filters))
	for name := range filters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookupFilter(name string) (filterPair, error) {
	if name == "" {
		name = DefaultFilter
	}
	f, ok := filters[strings.ToLower(name)]
	if !ok {
		return filterPair{}, fmt.Errorf("unknown filter %q (want one of %s)", name, strings.Join(FilterNames(), ", "))
	}
	return f, nil
}
