package report

import (
	"bufio"
	"encoding/json"
	"os"
)

// SaveFindingsNDJSON streams the report's findings to path as
// newline-delimited JSON, one finding per record.
func SaveFindingsNDJSON(rep Report, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, finding := range rep.Findings {
		if err := enc.Encode(finding); err != nil {
			f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
