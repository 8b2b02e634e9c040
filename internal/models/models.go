package models

import (
	"time"

	"github.com/google/uuid"
)

// Group is the tenant boundary. Participants, providers, paths and
// group-owned resources all hang off a group. An archived group blocks
// login, invite verification and password reset for its members.
type Group struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Archived  bool      `json:"archived"`
	CreatedAt time.Time `json:"created_at"`
}

type ParticipantType string

const (
	ParticipantPrimary   ParticipantType = "PRIMARY"
	ParticipantSecondary ParticipantType = "SECONDARY"
)

func (t ParticipantType) Valid() bool {
	return t == ParticipantPrimary || t == ParticipantSecondary
}

type ParticipantStatus string

const (
	StatusInvited   ParticipantStatus = "INVITED"
	StatusActive    ParticipantStatus = "ACTIVE"
	StatusSuspended ParticipantStatus = "SUSPENDED"
)

func (s ParticipantStatus) Valid() bool {
	return s == StatusInvited || s == StatusActive || s == StatusSuspended
}

type Address struct {
	StreetAddress string `json:"streetAddress"`
	City          string `json:"city"`
	State         string `json:"state"`
	Zip           string `json:"zip"`
}

type Preferences struct {
	PushNotifications  bool `json:"pushNotifications"`
	EmailNotifications bool `json:"emailNotifications"`
}

// DefaultPreferences is what a freshly invited participant gets.
func DefaultPreferences() Preferences {
	return Preferences{PushNotifications: true, EmailNotifications: true}
}

// Participant is a patient (PRIMARY) or a support person (SECONDARY).
//
// Email is globally unique and always stored lowercase. For a SECONDARY,
// StageID, DateOfSurgery and LocationID are not authoritative: readers
// take them from the linked primary (see service.MergePrimaryIntoSecondary).
type Participant struct {
	ID            uuid.UUID         `json:"id"`
	GroupID       uuid.UUID         `json:"group_id"`
	Name          string            `json:"name"`
	Email         string            `json:"email"`
	PasswordHash  string            `json:"-"`
	DOB           *time.Time        `json:"dob,omitempty"`
	Phone         string            `json:"phone,omitempty"`
	Address       Address           `json:"address"`
	Type          ParticipantType   `json:"type"`
	Status        ParticipantStatus `json:"status"`
	LocationID    *uuid.UUID        `json:"location_id,omitempty"`
	StageID       *uuid.UUID        `json:"stage_id,omitempty"`
	DateOfSurgery *time.Time        `json:"date_of_surgery,omitempty"`
	Zone          int               `json:"zone"`
	Preferences   Preferences       `json:"preferences"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

type PartnerStatus string

const (
	PartnerInvited PartnerStatus = "INVITED"
	PartnerActive  PartnerStatus = "ACTIVE"
)

// PrimaryPartner links a SECONDARY to the PRIMARY it supports.
// A secondary has at most one row.
type PrimaryPartner struct {
	SecondaryID uuid.UUID     `json:"secondary_id"`
	PrimaryID   uuid.UUID     `json:"primary_id"`
	Status      PartnerStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
}

type CodeKind string

const (
	CodeInvite        CodeKind = "INVITE"
	CodeResetPassword CodeKind = "RESET_PASSWORD"
)

// InviteCode is a one-time numeric code. At most one live code exists per
// (participant, kind); issuing a new one replaces the old one.
type InviteCode struct {
	ID               uuid.UUID  `json:"id"`
	ParticipantID    uuid.UUID  `json:"participant_id"`
	Code             string     `json:"-"`
	Kind             CodeKind   `json:"kind"`
	PrimaryPartnerID *uuid.UUID `json:"primary_partner_id,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// Attempt counts consecutive failed code verifications for a
// (participant, kind). Count never exceeds the configured maximum.
type Attempt struct {
	ParticipantID uuid.UUID `json:"participant_id"`
	Kind          CodeKind  `json:"kind"`
	Count         int       `json:"count"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type ProviderStatus string

const (
	ProviderInvited ProviderStatus = "INVITED"
	ProviderActive  ProviderStatus = "ACTIVE"
	ProviderRemoved ProviderStatus = "REMOVED"
)

// Provider is a surgeon or clinician inside a group.
type Provider struct {
	ID        uuid.UUID      `json:"id"`
	GroupID   uuid.UUID      `json:"group_id"`
	Name      string         `json:"name"`
	Email     string         `json:"email"`
	Phone     string         `json:"phone,omitempty"`
	Status    ProviderStatus `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
}

// LinkedProvider is a provider as seen from one participant: the provider
// row plus the link metadata.
type LinkedProvider struct {
	Provider
	IsDefault bool      `json:"isDefault"`
	LinkedAt  time.Time `json:"linkedAt"`
}

// Stage is a care stage such as "Pre-op" or "Post-op".
type Stage struct {
	ID        uuid.UUID  `json:"id"`
	GroupID   *uuid.UUID `json:"group_id,omitempty"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"created_at"`
}

type ContentStatus string

const (
	ContentActive  ContentStatus = "ACTIVE"
	ContentRemoved ContentStatus = "REMOVED"
)

type ResourceCategory struct {
	ID        uuid.UUID     `json:"id"`
	GroupID   *uuid.UUID    `json:"group_id,omitempty"`
	Name      string        `json:"name"`
	Picture   string        `json:"picture,omitempty"`
	Status    ContentStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}

type ResourceType string

const (
	ResourceVideo   ResourceType = "VIDEO"
	ResourceArticle ResourceType = "ARTICLE"
	ResourcePDF     ResourceType = "PDF"
	ResourceAudio   ResourceType = "AUDIO"
	ResourceLink    ResourceType = "LINK"
)

func (t ResourceType) Valid() bool {
	switch t {
	case ResourceVideo, ResourceArticle, ResourcePDF, ResourceAudio, ResourceLink:
		return true
	}
	return false
}

type ContentBlockType string

const (
	ContentBlockText  ContentBlockType = "TEXT"
	ContentBlockImage ContentBlockType = "IMAGE"
	ContentBlockLink  ContentBlockType = "LINK"
)

func (t ContentBlockType) Valid() bool {
	return t == ContentBlockText || t == ContentBlockImage || t == ContentBlockLink
}

type ContentBlock struct {
	Type  ContentBlockType `json:"type"`
	Value string           `json:"value"`
}

// Resource is an item in the content library. GroupID == nil means the
// resource belongs to the global catalog and every group can see it.
type Resource struct {
	ID          uuid.UUID      `json:"id"`
	GroupID     *uuid.UUID     `json:"group_id,omitempty"`
	LocationID  *uuid.UUID     `json:"location_id,omitempty"`
	CategoryID  uuid.UUID      `json:"category_id"`
	Headline    string         `json:"headline"`
	Media       string         `json:"media"`
	Type        ResourceType   `json:"type"`
	Description string         `json:"description,omitempty"`
	Thumbnail   string         `json:"thumbnail,omitempty"`
	ViewTime    int            `json:"view_time"`
	Status      ContentStatus  `json:"status"`
	Content     []ContentBlock `json:"resource_content,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// ResourcePosition is the display position of a resource inside one group.
// Unique per (group, resource).
type ResourcePosition struct {
	GroupID    uuid.UUID `json:"group_id"`
	ResourceID uuid.UUID `json:"resource_id"`
	Position   int       `json:"position"`
}

// Path is a care path: the touch points a participant of a given type and
// stage should see. Nil GroupID / LocationID mean "applies everywhere".
type Path struct {
	ID         uuid.UUID       `json:"id"`
	GroupID    *uuid.UUID      `json:"group_id,omitempty"`
	LocationID *uuid.UUID      `json:"location_id,omitempty"`
	UserType   ParticipantType `json:"user_type"`
	StageID    uuid.UUID       `json:"stage_id"`
	Status     ContentStatus   `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
}

type TouchPointKind string

const (
	TouchPointResource      TouchPointKind = "RESOURCE"
	TouchPointQuestionnaire TouchPointKind = "QUESTIONNAIRE"
)

// TouchPoint schedules a target (resource or questionnaire) on a path at a
// period, counted in weeks relative to the date of surgery.
type TouchPoint struct {
	ID          uuid.UUID      `json:"id"`
	PathID      uuid.UUID      `json:"path_id"`
	GroupID     *uuid.UUID     `json:"group_id,omitempty"`
	Kind        TouchPointKind `json:"kind"`
	Period      int            `json:"period"`
	TargetID    uuid.UUID      `json:"target_id"`
	Status      ContentStatus  `json:"status"`
	DisabledFor []uuid.UUID    `json:"-"`
	ReplacedFor []uuid.UUID    `json:"-"`
	CreatedAt   time.Time      `json:"created_at"`
}

type TouchPointAction string

const (
	ActionRead TouchPointAction = "read"
	ActionDone TouchPointAction = "done"
)

func (a TouchPointAction) Valid() bool {
	return a == ActionRead || a == ActionDone
}

type TouchPointRead struct {
	TouchPointID  uuid.UUID        `json:"touch_point_id"`
	ParticipantID uuid.UUID        `json:"participant_id"`
	Action        TouchPointAction `json:"action"`
	ReadAt        time.Time        `json:"read_at"`
}

// Session backs one issued token. Deleting it logs that token out.
type Session struct {
	ID        uuid.UUID `json:"id"`
	SubjectID uuid.UUID `json:"subject_id"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
