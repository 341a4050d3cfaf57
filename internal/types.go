package internal

type FieldKey string

const (
	FieldMedicineName   FieldKey = "medicineName"
	FieldPresentation   FieldKey = "presentation"
	FieldDosage         FieldKey = "dosage"
	FieldQuantity       FieldKey = "quantity"
	FieldUnits          FieldKey = "units"
	FieldSIP            FieldKey = "sip"
	FieldPackagingNotes FieldKey = "packagingNotes"
	FieldCountries      FieldKey = "countries"
)

// SIP (special import permit) statuses carried by order rows.
const (
	SIPDoesNotApply   = "does_not_apply"
	SIPHasBeenIssued  = "has_been_issued"
	SIPBeingProcessed = "is_being_processed"
	SIPToBeRequested  = "to_be_requested"
)

// Fallbacks used when a bulk-upload row is turned into a draft order item.
const (
	DefaultPresentation = "Tablet"
	DefaultUnits        = "tablets"
)

// RawRow is one uploaded data row keyed by the verbatim header text.
type RawRow map[string]string

// NormalizedRow holds the target-schema values of one uploaded row. Which
// fields are meaningful depends on the schema that produced it.
type NormalizedRow struct {
	MedicineName   string `json:"medicineName"`
	Presentation   string `json:"presentation"`
	Dosage         string `json:"dosage"`
	Quantity       string `json:"quantity,omitempty"`
	Units          string `json:"units,omitempty"`
	SIP            string `json:"sip,omitempty"`
	PackagingNotes string `json:"packagingNotes,omitempty"`
	Countries      string `json:"countries,omitempty"`
}

func (r NormalizedRow) Get(key FieldKey) string {
	switch key {
	case FieldMedicineName:
		return r.MedicineName
	case FieldPresentation:
		return r.Presentation
	case FieldDosage:
		return r.Dosage
	case FieldQuantity:
		return r.Quantity
	case FieldUnits:
		return r.Units
	case FieldSIP:
		return r.SIP
	case FieldPackagingNotes:
		return r.PackagingNotes
	case FieldCountries:
		return r.Countries
	default:
		return ""
	}
}

func (r *NormalizedRow) Set(key FieldKey, value string) {
	switch key {
	case FieldMedicineName:
		r.MedicineName = value
	case FieldPresentation:
		r.Presentation = value
	case FieldDosage:
		r.Dosage = value
	case FieldQuantity:
		r.Quantity = value
	case FieldUnits:
		r.Units = value
	case FieldSIP:
		r.SIP = value
	case FieldPackagingNotes:
		r.PackagingNotes = value
	case FieldCountries:
		r.Countries = value
	}
}

type MatchStatus string

type MatchReason string

const (
	MatchOK       MatchStatus = "OK"
	MatchReview   MatchStatus = "REVIEW"
	MatchNotFound MatchStatus = "NOT_FOUND"

	ReasonName  MatchReason = "NAME"
	ReasonFuzzy MatchReason = "FUZZY"
	ReasonNone  MatchReason = "NONE"
)

type MedicineRecord struct {
	ID            int
	Name          string
	Category      string
	Presentations []string
	Dosages       []string
	SIPRequired   bool
}

type MatchCandidate struct {
	ID    int     `json:"id"`
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

type MatchMedicine struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	SIPRequired bool   `json:"sipRequired"`
}

type MatchResult struct {
	Status     MatchStatus      `json:"status"`
	Confidence float64          `json:"confidence"`
	Reason     MatchReason      `json:"reason"`
	Medicine   *MatchMedicine   `json:"medicine"`
	Candidates []MatchCandidate `json:"candidates"`
}

type UploadRecord struct {
	ID         string
	Owner      string
	Schema     string
	Source     string
	FileName   string
	Headers    []string
	Mapping    map[string]string
	RowCount   int
	ValidCount int
	Status     string
	CreatedAt  string
}

type UploadRow struct {
	LineNo int
	Row    NormalizedRow
	Match  MatchResult
}

type BulkDraft struct {
	Owner   string
	Schema  string
	Rows    []NormalizedRow
	SavedAt string
}

type OrderItem struct {
	ID             string
	Owner          string
	MedicineName   string
	Presentation   string
	Dosage         string
	SIP            string
	Quantity       int
	Units          string
	PackagingNotes *string
	CreatedAt      string
}

type PortfolioItem struct {
	ID           string
	Owner        string
	MedicineName string
	Presentation string
	Dosage       string
	Countries    []string
	CreatedAt    string
}

type PendingUpload struct {
	Owner       string
	ItemCount   int
	SubmittedAt string
}

type EmailRow struct {
	ID         int
	Provider   string
	MessageID  string
	Subject    string
	Sender     string
	ReceivedAt string
	Hash       string
	Status     string
	RawRef     string
	UploadID   string
}

type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}

type ExportRow struct {
	LineNo          int
	Row             NormalizedRow
	MatchStatus     string
	Confidence      float64
	MatchReason     string
	MedicineID      *int
	MedicineName    *string
	Category        *string
	Candidate2Name  *string
	Candidate2Score *float64
}
