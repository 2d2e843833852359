// Package domain defines the core models of the trademark monitor: tracked
// registration cases (processes), the official dispatches published on them,
// user deadlines, specialist chats, and the static reference data exposed
// through the catalog. These types are plain JSON documents; persistence is
// handled by the key/value gateways in the repo package.
package domain

import (
	"time"
)

// DispatchStatus classifies an official dispatch.
type DispatchStatus string

const (
	DispatchPendingAction DispatchStatus = "pending_action"
	DispatchInformative   DispatchStatus = "informative"
	DispatchDecision      DispatchStatus = "decision"
	DispatchArchived      DispatchStatus = "archived"
)

// Valid reports whether s is one of the known dispatch statuses.
func (s DispatchStatus) Valid() bool {
	switch s {
	case DispatchPendingAction, DispatchInformative, DispatchDecision, DispatchArchived:
		return true
	}
	return false
}

// Label returns the Portuguese label used by the registry.
func (s DispatchStatus) Label() string {
	switch s {
	case DispatchPendingAction:
		return "Pendente de Ação"
	case DispatchInformative:
		return "Informativo"
	case DispatchDecision:
		return "Decisão"
	case DispatchArchived:
		return "Arquivado"
	}
	return string(s)
}

// Dispatch is an immutable status update published by the registry for a
// single process. Codes are only unique within their process.
type Dispatch struct {
	Code           string         `json:"code"            yaml:"code"`
	Date           string         `json:"date"            yaml:"date"`
	Description    string         `json:"description"     yaml:"description"`
	Status         DispatchStatus `json:"status"          yaml:"status"`
	ActionGuidance string         `json:"action_guidance" yaml:"action_guidance"`
	IsCritical     bool           `json:"is_critical"     yaml:"is_critical"`
}

// Deadline is a user-authored reminder, optionally tied to a dispatch by code.
// The dispatch reference is weak: a dangling code is tolerated.
type Deadline struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Date         time.Time `json:"date"`
	DispatchCode string    `json:"dispatch_code,omitempty"`
	IsCompleted  bool      `json:"is_completed"`
}

// Process is a tracked trademark registration case.
//
// Fields:
//   - ID: stable identifier, never reused.
//   - CaseNumber: registry (INPI) case number.
//   - NiceClass: Nice classification code (e.g. "30").
//   - Dispatches: append-only, chronological as received.
//   - Deadlines: user-managed; presented sorted by date (see SortDeadlines).
type Process struct {
	ID            string     `json:"id"`
	CaseNumber    string     `json:"case_number"`
	BrandName     string     `json:"brand_name"`
	NiceClass     string     `json:"nice_class"`
	Owner         string     `json:"owner"`
	Specification string     `json:"specification"`
	Status        string     `json:"status"`
	DepositDate   string     `json:"deposit_date,omitempty"`
	Dispatches    []Dispatch `json:"dispatches"`
	Deadlines     []Deadline `json:"deadlines"`
	LastUpdate    time.Time  `json:"last_update"`
}

// Clone returns a deep copy so callers can never alias store-owned slices.
func (p Process) Clone() Process {
	out := p
	out.Dispatches = append([]Dispatch(nil), p.Dispatches...)
	out.Deadlines = append([]Deadline(nil), p.Deadlines...)
	if out.Dispatches == nil {
		out.Dispatches = []Dispatch{}
	}
	if out.Deadlines == nil {
		out.Deadlines = []Deadline{}
	}
	return out
}

// FindDispatch returns the dispatch with the given code, if present.
func (p Process) FindDispatch(code string) (Dispatch, bool) {
	for _, d := range p.Dispatches {
		if d.Code == code {
			return d, true
		}
	}
	return Dispatch{}, false
}

// CaseSnapshot is what the registry returns for a case number.
type CaseSnapshot struct {
	Number        string     `json:"number"        yaml:"number"`
	Brand         string     `json:"brand"         yaml:"brand"`
	Class         string     `json:"class"         yaml:"class"`
	Owner         string     `json:"owner"         yaml:"owner"`
	Specification string     `json:"specification" yaml:"specification"`
	Status        string     `json:"status"        yaml:"status"`
	DepositDate   string     `json:"deposit_date,omitempty" yaml:"deposit_date"`
	Dispatches    []Dispatch `json:"dispatches"    yaml:"dispatches"`
}

// Sender identifies the author of a chat message.
type Sender string

const (
	SenderUser       Sender = "user"
	SenderSpecialist Sender = "specialist"
)

// Message is a single entry of a chat. IsRead is only meaningful for
// specialist messages; a missing flag counts as unread.
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
	IsRead    *bool     `json:"is_read,omitempty"`
}

// Unread reports whether m is a specialist message not yet read.
func (m Message) Unread() bool {
	return m.Sender == SenderSpecialist && (m.IsRead == nil || !*m.IsRead)
}

// Chat is the conversation between the user and one specialist.
type Chat struct {
	ID           string    `json:"id"`
	SpecialistID string    `json:"specialist_id"`
	Messages     []Message `json:"messages"`
	LastUpdate   time.Time `json:"last_update"`
}

// Clone returns a deep copy of the chat.
func (c Chat) Clone() Chat {
	out := c
	out.Messages = append([]Message(nil), c.Messages...)
	if out.Messages == nil {
		out.Messages = []Message{}
	}
	return out
}

// HasUnread reports whether the chat holds at least one unread specialist message.
func (c Chat) HasUnread() bool {
	for _, m := range c.Messages {
		if m.Unread() {
			return true
		}
	}
	return false
}

// Specialist is static catalog data for a professional reachable by chat.
type Specialist struct {
	ID           string  `json:"id"            yaml:"id"`
	Name         string  `json:"name"          yaml:"name"`
	License      string  `json:"license"       yaml:"license"`
	Specialty    string  `json:"specialty"     yaml:"specialty"`
	Rating       float64 `json:"rating"        yaml:"rating"`
	ReviewsCount int     `json:"reviews_count" yaml:"reviews_count"`
	PriceStart   string  `json:"price_start"   yaml:"price_start"`
	ImageURL     string  `json:"image_url,omitempty" yaml:"image_url"`
}

// Article is an educational text from the catalog. Content is HTML.
type Article struct {
	ID      int    `json:"id"      yaml:"id"`
	Title   string `json:"title"   yaml:"title"`
	Summary string `json:"summary" yaml:"summary"`
	Content string `json:"content" yaml:"content"`
}

// UserType distinguishes individual (PF) from corporate (PJ) holders.
type UserType string

const (
	UserIndividual UserType = "PF"
	UserCompany    UserType = "PJ"
)

// User is the account holder of the local workspace.
type User struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Email      string   `json:"email"`
	Type       UserType `json:"type"`
	Document   string   `json:"document"` // CPF or CNPJ
	IsVerified bool     `json:"is_verified"`
}

// Theme is the stored UI theme preference.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)
