package audit

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/roach88/tbaudit/internal/canon"
)

// recordValidate is the validator instance for audit records.
// Initialized in init() with custom validators.
var recordValidate *validator.Validate

func init() {
	recordValidate = validator.New(validator.WithRequiredStructEnabled())

	// "stage": the normalised stage must be one of the closed set.
	if err := recordValidate.RegisterValidation("stage", func(fl validator.FieldLevel) bool {
		return NormalizeStage(fl.Field().String()).Known()
	}); err != nil {
		panic(fmt.Sprintf("register stage validator: %v", err))
	}

	// "hash": 64 lowercase hex characters.
	if err := recordValidate.RegisterValidation("hash", func(fl validator.FieldLevel) bool {
		return canon.IsHash(fl.Field().String())
	}); err != nil {
		panic(fmt.Sprintf("register hash validator: %v", err))
	}
}

// ValidateLedgerRecord checks the basic shape of a ledger record fetched for
// taskID. Returns a description of every failed rule.
func ValidateLedgerRecord(r LedgerRecord, taskID string) error {
	return validateRecord(r, r.LogStageEntry, taskID)
}

// ValidateLocalRecord checks the basic shape of a local record fetched for
// taskID.
func ValidateLocalRecord(r LocalRecord, taskID string) error {
	if err := validateRecord(r, r.LogStageEntry, taskID); err != nil {
		return err
	}
	if strings.TrimSpace(r.DetailPayload) == "" {
		return errors.New("detail_json is required")
	}
	return nil
}

func validateRecord(r any, e LogStageEntry, taskID string) error {
	if e.Defect != "" {
		return errors.New(e.Defect)
	}
	if err := recordValidate.Struct(r); err != nil {
		return describeValidationError(err)
	}
	if e.TaskID != taskID {
		return fmt.Errorf("task_id %q does not belong to task %q", e.TaskID, taskID)
	}
	return nil
}

// describeValidationError flattens validator errors into one message.
func describeValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %q", fieldName(fe), fe.Tag()))
	}
	return errors.New(strings.Join(parts, "; "))
}

// fieldName renders a validator field path without the root type name.
func fieldName(fe validator.FieldError) string {
	ns := fe.StructNamespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		ns = ns[i+1:]
	}
	return strings.TrimPrefix(ns, "LogStageEntry.")
}

// MalformedLedger builds the anomaly entry for a malformed ledger record.
func MalformedLedger(r LedgerRecord, index int, err error) MalformedRecord {
	key := r.TxHash
	if key == "" {
		key = "#" + strconv.Itoa(index)
	}
	return MalformedRecord{Side: SideLedger, Key: key, Stage: r.Stage, Reason: err.Error()}
}

// MalformedLocal builds the anomaly entry for a malformed local record.
func MalformedLocal(r LocalRecord, err error) MalformedRecord {
	return MalformedRecord{Side: SideLocal, Key: "row:" + strconv.FormatInt(r.ID, 10), Stage: r.Stage, Reason: err.Error()}
}
