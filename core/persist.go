package core

// persist.go writes the integration-test rejection markers, inspection-only
// artifacts like the per-commit blockchain dump (BlockLog.DumpJSON in
// blocklog.go). Neither is read back by the node; recovery is always
// snapshot adoption.

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// WriteRejectionMarker writes name as a JSON file under dir, used by
// integration-test mode to let harness scripts assert rejection behavior
// (e.g. proof_rejected.json, failed_transaction.json).
func WriteRejectionMarker(dir, name string, payload interface{}) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrLocalIO, err)
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLocalIO, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrLocalIO, err)
	}
	return nil
}
