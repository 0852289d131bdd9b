package ledger

import (
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/tallyconv/internal/model"
)

// AuditArtifact is one saved correction batch as surfaced by the history API:
// the edits that were applied and the fingerprint of the table they were
// applied to, so a replay can verify it starts from the same base. The
// persisted payload itself is only the edits array; the rest lives on the
// store row.
type AuditArtifact struct {
	FileID          string             `json:"fileId"`
	BaseFingerprint string             `json:"baseFingerprint"`
	SavedAt         time.Time          `json:"savedAt"`
	Edits           []model.EditRecord `json:"edits"`
}

// ArtifactName returns the audit artifact name for a correction batch saved
// at the given instant: "{fileID}_{yyyymmdd_hhmmss}_changes.json".
func ArtifactName(fileID string, at time.Time) string {
	return fileID + "_" + at.UTC().Format("20060102_150405") + "_changes.json"
}

// EncodeEdits renders the persisted artifact payload: one indented JSON array
// of edit records, nothing else.
func EncodeEdits(edits []model.EditRecord) ([]byte, error) {
	if edits == nil {
		edits = []model.EditRecord{}
	}
	data, err := json.MarshalIndent(edits, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "ledger: encode audit payload")
	}
	return data, nil
}

// DecodeEdits parses a previously encoded artifact payload.
func DecodeEdits(data []byte) ([]model.EditRecord, error) {
	var edits []model.EditRecord
	if err := json.Unmarshal(data, &edits); err != nil {
		return nil, eris.Wrap(err, "ledger: decode audit payload")
	}
	return edits, nil
}
