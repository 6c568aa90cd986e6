package model

import "time"

type ResourceKind string

const (
	KindEvent ResourceKind = "event"
	KindList  ResourceKind = "list"
)

func (k ResourceKind) Valid() bool { return k == KindEvent || k == KindList }

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

func (v Visibility) Valid() bool { return v == VisibilityPublic || v == VisibilityPrivate }

type AccessTier string

const (
	AccessFree     AccessTier = "free"
	AccessPremium  AccessTier = "premium"
	AccessLocation AccessTier = "location"
)

func (a AccessTier) Valid() bool {
	return a == AccessFree || a == AccessPremium || a == AccessLocation
}

type EditPolicy string

const (
	EditOpen       EditPolicy = "open"
	EditInviteOnly EditPolicy = "invite_only"
)

func (p EditPolicy) Valid() bool { return p == EditOpen || p == EditInviteOnly }

type Fence struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	RadiusM int     `json:"radiusM"`
}

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type ResourceRef struct {
	Kind ResourceKind `json:"kind"`
	ID   string       `json:"id"`
}

// Resource is the kind-independent snapshot of an event or list used for
// access decisions.
type Resource struct {
	Kind       ResourceKind
	ID         string
	OwnerID    string
	Visibility Visibility
	Active     bool
	AccessTier AccessTier
	Fence      *Fence
	StartsAt   *time.Time
	EndsAt     *time.Time
	EditPolicy EditPolicy
}

func (r Resource) Ref() ResourceRef { return ResourceRef{Kind: r.Kind, ID: r.ID} }

type Event struct {
	ID         string     `json:"id"`
	OwnerID    string     `json:"ownerId"`
	Name       string     `json:"name"`
	Visibility Visibility `json:"visibility"`
	AccessTier AccessTier `json:"accessTier"`
	Fence      *Fence     `json:"fence,omitempty"`
	StartsAt   *time.Time `json:"startsAt,omitempty"`
	EndsAt     *time.Time `json:"endsAt,omitempty"`
	Active     bool       `json:"active"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

func (e *Event) Resource() Resource {
	return Resource{
		Kind:       KindEvent,
		ID:         e.ID,
		OwnerID:    e.OwnerID,
		Visibility: e.Visibility,
		Active:     e.Active,
		AccessTier: e.AccessTier,
		Fence:      e.Fence,
		StartsAt:   e.StartsAt,
		EndsAt:     e.EndsAt,
	}
}

type List struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"ownerId"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Visibility  Visibility `json:"visibility"`
	EditPolicy  EditPolicy `json:"editPolicy"`
	Active      bool       `json:"active"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (l *List) Resource() Resource {
	return Resource{
		Kind:       KindList,
		ID:         l.ID,
		OwnerID:    l.OwnerID,
		Visibility: l.Visibility,
		Active:     l.Active,
		AccessTier: AccessFree,
		EditPolicy: l.EditPolicy,
	}
}

type Role string

const (
	RoleGuest        Role = "guest"
	RoleCollaborator Role = "collaborator"
	RoleManager      Role = "manager"
)

func (r Role) Valid() bool { return r.rank() > 0 }

func (r Role) rank() int {
	switch r {
	case RoleGuest:
		return 1
	case RoleCollaborator:
		return 2
	case RoleManager:
		return 3
	}
	return 0
}

// AtLeast reports whether r grants at least the rights of other.
func (r Role) AtLeast(other Role) bool { return r.rank() >= other.rank() && r.rank() > 0 }

type Invitation struct {
	ID           string       `json:"id"`
	ResourceKind ResourceKind `json:"resourceKind"`
	ResourceID   string       `json:"resourceId"`
	InviteeID    string       `json:"inviteeId"`
	GrantorID    string       `json:"grantorId"`
	Role         Role         `json:"role"`
	State        RequestState `json:"state"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// Accepted reports whether the invitation grants membership.
func (i *Invitation) Accepted() bool { return i != nil && i.State == RequestAccepted }
