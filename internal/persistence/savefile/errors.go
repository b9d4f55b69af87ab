package savefile

import (
	"errors"
	"fmt"
)

// ErrMalformedSave is matched by every decode failure.
var ErrMalformedSave = errors.New("malformed save")

// ErrTooManyRecords is returned by encode when a section does not fit its
// 16-bit count prefix.
var ErrTooManyRecords = errors.New("too many records")

// Decode stages.
const (
	StageFraming = "framing"
	StageBase64  = "base64"
	StageInflate = "inflate"
	StageRecords = "records"
)

// MalformedSaveError reports a blob that failed one decode stage.
type MalformedSaveError struct {
	Stage string
	Err   error
}

func (e *MalformedSaveError) Error() string {
	return fmt.Sprintf("malformed save: %s: %v", e.Stage, e.Err)
}

func (e *MalformedSaveError) Unwrap() error { return e.Err }

func (e *MalformedSaveError) Is(target error) bool { return target == ErrMalformedSave }

// TruncatedRecordError reports a record, or a count prefix, that extends past
// the end of the stream. Index is -1 for count prefixes and single records.
type TruncatedRecordError struct {
	Section string
	Index   int
	Need    int
	Have    int
}

func (e *TruncatedRecordError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("truncated %s: need %d bytes, have %d", e.Section, e.Need, e.Have)
	}
	return fmt.Sprintf("truncated %s record %d: need %d bytes, have %d", e.Section, e.Index, e.Need, e.Have)
}

func (e *TruncatedRecordError) Is(target error) bool { return target == ErrMalformedSave }

// TrailingDataWarning reports bytes left over after the last known section.
// Decoding still succeeds.
type TrailingDataWarning struct {
	Bytes int
}

func (w *TrailingDataWarning) Error() string {
	return fmt.Sprintf("%d trailing bytes after last record", w.Bytes)
}
