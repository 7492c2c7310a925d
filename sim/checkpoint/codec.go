// Package checkpoint persists pathway snapshots so a run can be resumed later.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pathway-sim/pathway-sim/sim"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("checkpoint version mismatch")

// Record is one stored checkpoint.
type Record struct {
	SchemaVersion int           `json:"schema_version"`
	CodecVersion  int           `json:"codec_version"`
	ID            string        `json:"id"`
	Circuit       string        `json:"circuit"`
	CreatedAt     time.Time     `json:"created_at"`
	Snapshot      *sim.Snapshot `json:"snapshot"`
}

// Summary describes a stored checkpoint without its snapshot.
type Summary struct {
	ID        string
	Circuit   string
	Clock     float64
	CreatedAt time.Time
}

// NewRecord wraps snap in a Record with a fresh id.
func NewRecord(circuit string, snap *sim.Snapshot) Record {
	return Record{
		SchemaVersion: CurrentSchemaVersion,
		CodecVersion:  CurrentCodecVersion,
		ID:            uuid.NewString(),
		Circuit:       circuit,
		CreatedAt:     time.Now().UTC(),
		Snapshot:      snap,
	}
}

// Summary returns the record's listing entry.
func (r Record) Summary() Summary {
	s := Summary{ID: r.ID, Circuit: r.Circuit, CreatedAt: r.CreatedAt}
	if r.Snapshot != nil {
		s.Clock = r.Snapshot.Clock
	}
	return s
}

func Encode(r Record) ([]byte, error) {
	if r.Snapshot == nil {
		return nil, fmt.Errorf("checkpoint %s has no snapshot", r.ID)
	}
	return json.Marshal(r)
}

func Decode(data []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, err
	}
	if err := checkVersion(r); err != nil {
		return Record{}, err
	}
	if r.Snapshot == nil {
		return Record{}, fmt.Errorf("checkpoint %s has no snapshot", r.ID)
	}
	return r, nil
}

func checkVersion(r Record) error {
	if r.SchemaVersion != CurrentSchemaVersion || r.CodecVersion != CurrentCodecVersion {
		return fmt.Errorf("%w: schema=%d codec=%d", ErrVersionMismatch, r.SchemaVersion, r.CodecVersion)
	}
	return nil
}

// ValidID reports whether id is a well-formed checkpoint id.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
