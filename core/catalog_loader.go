// core/catalog_loader.go
package core

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/signalsfoundry/globe-tracker/model"
)

// internal JSON shape – kept unexported so we're free to evolve it.
type catalogEntryJSON struct {
	Name  string `json:"name"`
	Line1 string `json:"line1"`
	Line2 string `json:"line2"`
}

// LoadCatalog reads a JSON array of element-set records from r.
//
// It deliberately fails only on JSON / structural errors (empty names,
// missing lines). Whether the lines encode a usable orbit is not checked
// here; a record that SGP4 cannot initialize simply yields an omitted
// object during the next build.
func LoadCatalog(r io.Reader) ([]model.ElementSet, error) {
	var payload []catalogEntryJSON
	dec := json.NewDecoder(r)
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("LoadCatalog: decode failed: %w", err)
	}

	sets := make([]model.ElementSet, 0, len(payload))
	for i, entry := range payload {
		if entry.Name == "" {
			return nil, fmt.Errorf("LoadCatalog: entry %d has empty name", i)
		}
		if entry.Line1 == "" || entry.Line2 == "" {
			return nil, fmt.Errorf("LoadCatalog: entry %q is missing element lines", entry.Name)
		}
		sets = append(sets, model.ElementSet{
			Name:  entry.Name,
			Line1: entry.Line1,
			Line2: entry.Line2,
		})
	}
	return sets, nil
}
