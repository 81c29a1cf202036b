package api

import "time"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// QueueItem describes a queue entry in a transport-friendly format.
type QueueItem struct {
	ID                int64             `json:"id"`
	ScanTitle         string            `json:"scanTitle"`
	SourcePath        string            `json:"sourcePath"`
	StagedFile        string            `json:"stagedFile,omitempty"`
	Status            string            `json:"status"`
	ProcessingLane    string            `json:"processingLane"`
	Progress          QueueProgress     `json:"progress"`
	ErrorMessage      string            `json:"errorMessage"`
	CreatedAt         string            `json:"createdAt,omitempty"`
	UpdatedAt         string            `json:"updatedAt,omitempty"`
	SourceFingerprint string            `json:"sourceFingerprint,omitempty"`
	BatchID           string            `json:"batchId,omitempty"`
	MimeType          string            `json:"mimeType,omitempty"`
	SideHint          string            `json:"sideHint,omitempty"`
	LocationCode      string            `json:"locationCode,omitempty"`
	NeedsReview       bool              `json:"needsReview"`
	ReviewReason      string            `json:"reviewReason,omitempty"`
	ScanLogPath       string            `json:"scanLogPath,omitempty"`
	Fields            *CardFields       `json:"fields,omitempty"`
	Candidates        []Candidate       `json:"candidates,omitempty"`
	CandidatesRelaxed bool              `json:"candidatesRelaxed,omitempty"`
	SearchAttempts    []SearchAttempt   `json:"searchAttempts,omitempty"`
	Attributes        map[string]string `json:"attributes,omitempty"`
	Selected          *Candidate        `json:"selected,omitempty"`
	Price             *Price            `json:"price,omitempty"`
	Listing           *Listing          `json:"listing,omitempty"`
}

// QueueProgress captures stage progress information for a queue entry.
type QueueProgress struct {
	Stage   string  `json:"stage"`
	Percent float64 `json:"percent"`
	Message string  `json:"message"`
}

// CardFields mirrors the recognition payload. Nil means the model could
// not read that field off the scan.
type CardFields struct {
	Name        *string `json:"name"`
	Number      *string `json:"number"`
	SetHint     *string `json:"setHint"`
	RarityText  *string `json:"rarityText"`
	EnergyText  *string `json:"energyText"`
	CardType    *string `json:"cardType"`
	VariantText *string `json:"variantText"`
}

// Candidate is a catalog match offered for review.
type Candidate struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Number        string `json:"number"`
	NumberDisplay string `json:"numberDisplay,omitempty"`
	SetName       string `json:"setName"`
	SetCode       string `json:"setCode"`
	Rarity        string `json:"rarity,omitempty"`
	ImageSmall    string `json:"imageSmall,omitempty"`
	ImageLarge    string `json:"imageLarge,omitempty"`
	PriceCents    int64  `json:"priceCents,omitempty"`
	Currency      string `json:"currency,omitempty"`
	ReleasedAt    string `json:"releasedAt,omitempty"`
}

// SearchAttempt summarizes one catalog query made while identifying a scan.
type SearchAttempt struct {
	Mode      string `json:"mode"`
	Query     string `json:"query"`
	Results   int    `json:"results"`
	ElapsedMS int64  `json:"elapsedMs"`
}

// Price is the listing price attached to a scan. Manual marks a
// hand-edited value that survives candidate reselection.
type Price struct {
	Cents    int64  `json:"cents"`
	Currency string `json:"currency"`
	Manual   bool   `json:"manual"`
}

// Listing records the published listing reference for a completed scan.
type Listing struct {
	ID          string `json:"id"`
	URL         string `json:"url,omitempty"`
	SKU         string `json:"sku,omitempty"`
	PublishedAt string `json:"publishedAt,omitempty"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running     bool           `json:"running"`
	QueueStats  map[string]int `json:"queueStats"`
	LastError   string         `json:"lastError,omitempty"`
	LastItem    *QueueItem     `json:"lastItem,omitempty"`
	StageHealth []StageHealth  `json:"stageHealth"`
}

// StageHealth mirrors readiness reporting for workflow stages.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Detail    string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	QueueDBPath  string             `json:"queueDbPath"`
	LockFilePath string             `json:"lockFilePath"`
	Workflow     WorkflowStatus     `json:"workflow"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// QueueStatsResponse provides a normalized queue stats payload.
type QueueStatsResponse struct {
	Counts map[string]int `json:"counts"`
}

// QueueListResponse wraps a collection of queue items for API responses.
type QueueListResponse struct {
	Items []QueueItem `json:"items"`
}

// QueueItemResponse wraps a single queue item.
type QueueItemResponse struct {
	Item QueueItem `json:"item"`
}

// ScanSubmitRequest carries an uploaded scan image. Either the base64
// payload or a multipart file part must be present.
type ScanSubmitRequest struct {
	ImageBase64 string `json:"imageBase64"`
	MimeType    string `json:"mimeType"`
	Filename    string `json:"filename,omitempty"`
	Side        string `json:"side,omitempty"`
	BatchID     string `json:"batchId,omitempty"`
}

// SelectRequest confirms a candidate for a reviewed scan. CandidateID
// "none" routes the scan down the manual path. An optional price is
// recorded as hand-edited in the same operation.
type SelectRequest struct {
	CandidateID string `json:"candidateId"`
	PriceCents  *int64 `json:"priceCents,omitempty"`
	Currency    string `json:"currency,omitempty"`
}

// PriceRequest records a hand-edited price for a scan.
type PriceRequest struct {
	Cents    int64  `json:"cents"`
	Currency string `json:"currency,omitempty"`
}

// UpdatedResponse reports how many queue items a bulk action changed.
type UpdatedResponse struct {
	Updated int64 `json:"updated"`
}

// RemovedResponse reports how many queue items a clear or remove dropped.
type RemovedResponse struct {
	Removed int64 `json:"removed"`
}

// HealthResponse is the liveness payload served without authentication.
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse carries a failure message for non-2xx API responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// TaxonomyOption is one allowed value inside a taxonomy group.
type TaxonomyOption struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// TaxonomyGroup is an attribute group with its ordered options.
type TaxonomyGroup struct {
	ID      string           `json:"id"`
	Name    string           `json:"name"`
	Options []TaxonomyOption `json:"options"`
}

// TaxonomyResponse is the shop vocabulary snapshot served to clients.
type TaxonomyResponse struct {
	Source    string          `json:"source,omitempty"`
	FetchedAt string          `json:"fetchedAt,omitempty"`
	Groups    []TaxonomyGroup `json:"groups"`
}

// LogEvent is the transport form of a structured log line.
type LogEvent struct {
	Sequence  uint64            `json:"seq"`
	Timestamp time.Time         `json:"ts"`
	Level     string            `json:"level"`
	Message   string            `json:"msg"`
	Component string            `json:"component,omitempty"`
	Stage     string            `json:"stage,omitempty"`
	ItemID    int64             `json:"itemId,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
	Details   []DetailField     `json:"details,omitempty"`
}

// DetailField mirrors the console handler's info bullet lines.
type DetailField struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// LogStreamResponse carries a page of log events plus the next cursor.
type LogStreamResponse struct {
	Events []LogEvent `json:"events"`
	Next   uint64     `json:"next"`
}
