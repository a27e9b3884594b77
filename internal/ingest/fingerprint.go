package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/ppiankov/gstgraph/internal/model"
)

// Fingerprint hashes the canonical JSON form of a decoded dataset.
// Decode sorts records, so row order in the input files does not change it.
func Fingerprint(ds *model.Dataset) (string, error) {
	data, err := json.Marshal(ds)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
