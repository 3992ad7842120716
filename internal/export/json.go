package export

import (
	"encoding/json"
	"os"

	"github.com/amartya2002/flake-detector/flake"
)

// WriteJSON writes the reports as indented JSON.
func WriteJSON(path string, reports []flake.EndpointReport) error {
	if reports == nil {
		reports = []flake.EndpointReport{}
	}
	raw, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}
