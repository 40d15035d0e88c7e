package model

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of soft-deletable rows. Rows are never
// physically removed; they move to StatusInactive.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// ValidationError reports a request that is missing or carries malformed
// fields. The HTTP layer maps it to 400.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// Invalid builds a *ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// CachedEvent is a snapshot of one provider event occurrence. Start and End
// are UTC instants. Rows are replaced wholesale on each refresh.
type CachedEvent struct {
	ProviderID       string    `gorm:"column:provider_id;primaryKey"`
	Title            string    `gorm:"column:title"`
	Description      string    `gorm:"column:description"`
	Location         string    `gorm:"column:location"`
	Start            time.Time `gorm:"column:start_time;index"`
	End              time.Time `gorm:"column:end_time"`
	AllDay           bool      `gorm:"column:all_day"`
	IsRecurring      bool      `gorm:"column:is_recurring"`
	RecurringEventID string    `gorm:"column:recurring_event_id"`
	FetchedAt        time.Time `gorm:"column:fetched_at"`
}

func (CachedEvent) TableName() string { return "cached_events" }

// CalendarEventRecord is the church's annotation of a provider event.
type CalendarEventRecord struct {
	ID              uint   `gorm:"primaryKey"`
	ProviderEventID string `gorm:"column:provider_event_id;uniqueIndex;not null"`

	// Snapshot of the provider event at annotation time.
	Title     string    `gorm:"column:title"`
	StartTime time.Time `gorm:"column:start_time"`
	EndTime   time.Time `gorm:"column:end_time"`
	Location  string    `gorm:"column:location"`

	MinistryID     *uint `gorm:"column:ministry_id;index"`
	SpecialEventID *uint `gorm:"column:special_event_id;index"`

	IsSpecialEvent     bool       `gorm:"column:is_special_event"`
	IsExternal         bool       `gorm:"column:is_external"`
	TitleOverride      string     `gorm:"column:title_override"`
	Note               string     `gorm:"column:note"`
	ImageURL           string     `gorm:"column:image_url"`
	ContactPerson      string     `gorm:"column:contact_person"`
	SeriesName         string     `gorm:"column:series_name;index"`
	EndsBy             *time.Time `gorm:"column:ends_by"`
	FeaturedOnHomepage bool       `gorm:"column:featured_on_homepage"`
	Status             Status     `gorm:"column:status;default:active"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (CalendarEventRecord) TableName() string { return "calendar_event_records" }

func (r *CalendarEventRecord) IsActive() bool { return r.Status != StatusInactive }

// RecurringPatternSummary says "this title recurs weekly at this civil slot".
// Location is nil for events without a location.
type RecurringPatternSummary struct {
	ID              uint      `gorm:"primaryKey"`
	Title           string    `gorm:"column:title;uniqueIndex:idx_pattern_key"`
	DayOfWeek       int       `gorm:"column:day_of_week;uniqueIndex:idx_pattern_key"`
	TimeOfDay       string    `gorm:"column:time_of_day;uniqueIndex:idx_pattern_key"`
	Location        *string   `gorm:"column:location;uniqueIndex:idx_pattern_key"`
	IsExternal      bool      `gorm:"column:is_external"`
	OccurrenceCount int       `gorm:"column:occurrence_count"`
	FirstStart      time.Time `gorm:"column:first_start"`
	LastStart       time.Time `gorm:"column:last_start"`
	UpdatedAt       time.Time
}

func (RecurringPatternSummary) TableName() string { return "recurring_patterns" }

// CacheMeta is the single-row bookkeeping for calendar refreshes.
type CacheMeta struct {
	ID            uint      `gorm:"primaryKey"`
	RefreshedAt   time.Time `gorm:"column:refreshed_at"`
	WindowStart   time.Time `gorm:"column:window_start"`
	WindowEnd     time.Time `gorm:"column:window_end"`
	EventCount    int       `gorm:"column:event_count"`
	LastAttemptAt time.Time `gorm:"column:last_attempt_at"`
	LastError     string    `gorm:"column:last_error"`
}

func (CacheMeta) TableName() string { return "calendar_cache_meta" }

type Ministry struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Name         string `gorm:"column:name;uniqueIndex;not null" json:"name"`
	Description  string `gorm:"column:description" json:"description"`
	ImageURL     string `gorm:"column:image_url" json:"imageUrl"`
	ContactName  string `gorm:"column:contact_name" json:"contactName"`
	ContactEmail string `gorm:"column:contact_email" json:"contactEmail"`
	MeetingInfo  string `gorm:"column:meeting_info" json:"meetingInfo"`
	Category     string `gorm:"column:category" json:"category"`
	Status       Status `gorm:"column:status;default:active" json:"status"`

	Leaders []MinistryLeader `gorm:"foreignKey:MinistryID" json:"leaders,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Ministry) TableName() string { return "ministries" }

type MinistryLeader struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	MinistryID uint   `gorm:"column:ministry_id;uniqueIndex:idx_ministry_leader" json:"ministryId"`
	MemberID   uint   `gorm:"column:member_id;uniqueIndex:idx_ministry_leader" json:"memberId"`
	Role       string `gorm:"column:role" json:"role"`

	CreatedAt time.Time `json:"createdAt"`
}

func (MinistryLeader) TableName() string { return "ministry_leaders" }

type SpecialEventType struct {
	ID            uint   `gorm:"primaryKey" json:"id"`
	Name          string `gorm:"column:name;uniqueIndex;not null" json:"name"`
	Description   string `gorm:"column:description" json:"description"`
	ImageURL      string `gorm:"column:image_url" json:"imageUrl"`
	ContactPerson string `gorm:"column:contact_person" json:"contactPerson"`
	ContactEmail  string `gorm:"column:contact_email" json:"contactEmail"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (SpecialEventType) TableName() string { return "special_event_types" }

type Family struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	FamilyName string `gorm:"column:family_name;uniqueIndex;not null" json:"familyName"`
	Address    string `gorm:"column:address" json:"address"`
	City       string `gorm:"column:city" json:"city"`
	State      string `gorm:"column:state" json:"state"`
	Zip        string `gorm:"column:zip" json:"zip"`
	Phone      string `gorm:"column:phone" json:"phone"`
	Email      string `gorm:"column:email" json:"email"`

	Members []Member `gorm:"foreignKey:FamilyID" json:"members,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Family) TableName() string { return "families" }

type Member struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	FirstName  string     `gorm:"column:first_name;not null" json:"firstName"`
	LastName   string     `gorm:"column:last_name;not null" json:"lastName"`
	Email      string     `gorm:"column:email;index" json:"email"`
	Phone      string     `gorm:"column:phone" json:"phone"`
	Birthday   *time.Time `gorm:"column:birthday" json:"birthday,omitempty"`
	JoinedOn   *time.Time `gorm:"column:joined_on" json:"joinedOn,omitempty"`
	Address    string     `gorm:"column:address" json:"address"`
	FamilyID   *uint      `gorm:"column:family_id;index" json:"familyId,omitempty"`
	FamilyRole string     `gorm:"column:family_role" json:"familyRole"`
	Notes      string     `gorm:"column:notes" json:"notes"`
	Status     Status     `gorm:"column:status;default:active" json:"status"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Member) TableName() string { return "members" }

func (m *Member) FullName() string { return m.FirstName + " " + m.LastName }

// Message kinds.
const (
	MessageContact  = "contact"
	MessageMinistry = "ministry"
)

// Delivery states of a ContactMessage.
const (
	DeliveryPending = "pending"
	DeliverySent    = "sent"
	DeliveryFailed  = "failed"
)

// ContactMessage is a persisted visitor submission.
type ContactMessage struct {
	ID          string `gorm:"primaryKey" json:"id"`
	Kind        string `gorm:"column:kind;index" json:"kind"`
	MinistryID  *uint  `gorm:"column:ministry_id" json:"ministryId,omitempty"`
	Name        string `gorm:"column:name" json:"name"`
	Email       string `gorm:"column:email" json:"email"`
	Phone       string `gorm:"column:phone" json:"phone"`
	Subject     string `gorm:"column:subject" json:"subject"`
	Body        string `gorm:"column:body" json:"body"`
	Delivery    string `gorm:"column:delivery" json:"delivery"`
	DeliveryErr string `gorm:"column:delivery_err" json:"-"`

	CreatedAt time.Time `json:"createdAt"`
}

func (ContactMessage) TableName() string { return "contact_messages" }

// All lists every persisted model, in migration order.
func All() []any {
	return []any{
		&CachedEvent{},
		&CacheMeta{},
		&Ministry{},
		&SpecialEventType{},
		&CalendarEventRecord{},
		&RecurringPatternSummary{},
		&Family{},
		&Member{},
		&MinistryLeader{},
		&ContactMessage{},
	}
}
