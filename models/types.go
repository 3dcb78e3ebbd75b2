package models

import "time"

// Device binding status constants
const (
	BindingActive = "ACTIVE"
	BindingVoted  = "VOTED"
)

// Cookie names
const (
	DeviceCookie = "dbt"
	VotedCookie  = "poll_voted"
	AdminCookie  = "admin_key"
)

// Request types

// ClientSignals are the device attributes reported by the browser.
// Every field is optional.
type ClientSignals struct {
	ScreenWidth         *int     `json:"screenWidth,omitempty"`
	ScreenHeight        *int     `json:"screenHeight,omitempty"`
	ColorDepth          *int     `json:"colorDepth,omitempty"`
	Language            string   `json:"language,omitempty"`
	Timezone            string   `json:"timezone,omitempty"`
	HardwareConcurrency *int     `json:"hardwareConcurrency,omitempty"`
	DeviceMemory        *float64 `json:"deviceMemory,omitempty"`
	TouchSupport        *bool    `json:"touchSupport,omitempty"`
}

type VoteRequest struct {
	Option        int            `json:"option"`
	Token         string         `json:"token,omitempty"`
	ClientSignals *ClientSignals `json:"client_signals,omitempty"`
}

type AdminAuthRequest struct {
	AdminKey string `json:"admin_key"`
}

type SetPollStateRequest struct {
	IsOpen *bool `json:"is_open"`
}

type DeviceActionRequest struct {
	Action string `json:"action"`
	Token  string `json:"token"`
	Reason string `json:"reason,omitempty"`
}

type HardResetRequest struct {
	Confirm string `json:"confirm"`
}

// Response types

type VoteResponse struct {
	Success bool   `json:"success"`
	VoteID  string `json:"vote_id"`
}

type BootstrapResponse struct {
	Token string `json:"token"`
	IsNew bool   `json:"is_new"`
}

type PollStateResponse struct {
	IsOpen bool `json:"is_open"`
}

type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type ResultsResponse struct {
	Counts []int `json:"counts"`
	Total  int   `json:"total"`
}

type RateLimitStatus struct {
	Identity  string    `json:"identity"`
	Count     int       `json:"count"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

type DeviceSummary struct {
	ID          string     `json:"id"`
	TokenPrefix string     `json:"token"`
	Status      string     `json:"status"`
	VotedAt     *time.Time `json:"voted_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type DeviceStats struct {
	TotalDevices      int             `json:"total_devices"`
	VotedDevices      int             `json:"voted_devices"`
	FingerprintBlocks int             `json:"fingerprint_blocks"`
	RateLimit         RateLimitStatus `json:"rate_limit"`
}

type HourCount struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

type DevicesResponse struct {
	Devices     []DeviceSummary `json:"devices"`
	Stats       DeviceStats     `json:"stats"`
	VotesByHour []HourCount     `json:"votes_by_hour"`
}

type ResetResponse struct {
	Success      bool `json:"success"`
	RemovedVotes int  `json:"removed_votes"`
	RemovedBlock bool `json:"removed_block"`
}

type ClearVotesResponse struct {
	Success      bool   `json:"success"`
	ResetType    string `json:"reset_type"`
	DeletedVotes int    `json:"deleted_votes"`
}

type HardResetResponse struct {
	Success         bool   `json:"success"`
	ResetType       string `json:"reset_type"`
	DeletedVotes    int    `json:"deleted_votes"`
	DeletedBindings int    `json:"deleted_bindings"`
	DeletedBlocks   int    `json:"deleted_blocks"`
}

// Domain types

type DeviceBinding struct {
	ID                   string     `json:"id"`
	PollID               string     `json:"poll_id"`
	Token                string     `json:"-"` // Never expose in JSON
	Status               string     `json:"status"`
	VotedAt              *time.Time `json:"voted_at,omitempty"`
	FingerprintSignature *string    `json:"-"`
	CreatedAt            time.Time  `json:"created_at"`
}

type FingerprintBlock struct {
	PollID    string    `json:"poll_id"`
	Signature string    `json:"signature"`
	BindingID string    `json:"binding_id"`
	CreatedAt time.Time `json:"created_at"`
}

type Vote struct {
	ID        string    `json:"id"`
	PollID    string    `json:"poll_id"`
	Option    int       `json:"option"`
	VoterHash string    `json:"-"` // Never expose in JSON
	BindingID string    `json:"binding_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type AuditRecord struct {
	BindingID    string    `json:"binding_id"`
	TokenPrefix  string    `json:"token"`
	Reason       string    `json:"reason"`
	RemovedVotes int       `json:"removed_votes"`
	CreatedAt    time.Time `json:"created_at"`
}

type AuditResponse struct {
	ResetRemovesVote bool          `json:"reset_removes_vote"`
	Entries          []AuditRecord `json:"entries"`
}
