package queue

import (
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"time"
)

const itemColumns = "id, source_path, staged_file, scan_title, batch_id, mime_type, side_hint, status, fields_json, candidates_json, attributes_json, selected_json, price_json, listing_json, location_code, error_message, created_at, updated_at, progress_stage, progress_percent, progress_message, source_fingerprint, last_heartbeat, needs_review, review_reason, scan_log_path"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id               int64
		sourcePath       sql.NullString
		stagedFile       sql.NullString
		scanTitle        sql.NullString
		batchID          sql.NullString
		mimeType         sql.NullString
		sideHint         sql.NullString
		statusStr        string
		fieldsJSON       sql.NullString
		candidatesJSON   sql.NullString
		attributesJSON   sql.NullString
		selectedJSON     sql.NullString
		priceJSON        sql.NullString
		listingJSON      sql.NullString
		locationCode     sql.NullString
		errorMessage     sql.NullString
		createdRaw       sql.NullString
		updatedRaw       sql.NullString
		progressStage    sql.NullString
		progressPercent  sql.NullFloat64
		progressMessage  sql.NullString
		fingerprint      sql.NullString
		lastHeartbeatRaw sql.NullString
		needsReview      sql.NullInt64
		reviewReason     sql.NullString
		scanLogPath      sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&sourcePath,
		&stagedFile,
		&scanTitle,
		&batchID,
		&mimeType,
		&sideHint,
		&statusStr,
		&fieldsJSON,
		&candidatesJSON,
		&attributesJSON,
		&selectedJSON,
		&priceJSON,
		&listingJSON,
		&locationCode,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
		&progressStage,
		&progressPercent,
		&progressMessage,
		&fingerprint,
		&lastHeartbeatRaw,
		&needsReview,
		&reviewReason,
		&scanLogPath,
	); err != nil {
		return nil, err
	}

	item := &Item{
		ID:                id,
		SourcePath:        sourcePath.String,
		StagedFile:        stagedFile.String,
		ScanTitle:         scanTitle.String,
		BatchID:           batchID.String,
		MimeType:          mimeType.String,
		SideHint:          sideHint.String,
		Status:            Status(statusStr),
		FieldsJSON:        fieldsJSON.String,
		CandidatesJSON:    candidatesJSON.String,
		AttributesJSON:    attributesJSON.String,
		SelectedJSON:      selectedJSON.String,
		PriceJSON:         priceJSON.String,
		ListingJSON:       listingJSON.String,
		LocationCode:      locationCode.String,
		ErrorMessage:      errorMessage.String,
		ProgressStage:     progressStage.String,
		ProgressPercent:   progressPercent.Float64,
		ProgressMessage:   progressMessage.String,
		SourceFingerprint: fingerprint.String,
	}
	if needsReview.Valid {
		item.NeedsReview = needsReview.Int64 != 0
	}
	item.ReviewReason = reviewReason.String
	item.ScanLogPath = scanLogPath.String

	if created, err := parseTimeString(createdRaw.String); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		item.UpdatedAt = updated
	}
	if lastHeartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(lastHeartbeatRaw.String); err == nil {
			item.LastHeartbeat = &heartbeat
		}
	}
	return item, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	v := value.UTC().Format(time.RFC3339Nano)
	return v
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

func inferTitleFromPath(path string) string {
	base := strings.TrimSpace(filepath.Base(path))
	if base == "" {
		return "Untitled Scan"
	}
	ext := filepath.Ext(base)
	base = strings.TrimSuffix(base, ext)
	cleaned := strings.TrimSpace(base)
	if cleaned == "" {
		return "Untitled Scan"
	}
	return cleaned
}
