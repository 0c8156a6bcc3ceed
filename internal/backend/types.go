package backend

// User is a backend account as returned by /users/me and /users/search.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	FullName string `json:"fullName"`
	Email    string `json:"email,omitempty"`
	OpenID   string `json:"openId,omitempty"`
	Role     string `json:"role,omitempty"`
}

// DisplayName prefers the full name over the login name.
func (u User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}

// Credentials is the password login payload.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse covers both the password and the Feishu login replies.
type LoginResponse struct {
	Token    string `json:"token"`
	User     *User  `json:"user,omitempty"`
	UserInfo *User  `json:"userInfo,omitempty"`
}

// Profile returns whichever user object the backend sent.
func (r LoginResponse) Profile() *User {
	if r.User != nil {
		return r.User
	}
	return r.UserInfo
}

// Area is a venue zone with its seats.
type Area struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	NameZh      string  `json:"nameZh"`
	AreaType    string  `json:"areaType"`
	Capacity    int     `json:"capacity"`
	Description *string `json:"description"`
	IsActive    bool    `json:"isActive"`
	Seats       []Seat  `json:"seats,omitempty"`
}

// Seat is a seat as listed by the seat map endpoint.
type Seat struct {
	SeatID          int64     `json:"seatId"`
	SeatNumber      string    `json:"seatNumber"`
	Table           *string   `json:"table"`
	AreaName        string    `json:"areaName"`
	RowNum          *int      `json:"rowNum"`
	ColumnNum       *int      `json:"columnNum"`
	PositionX       float64   `json:"positionX"`
	PositionY       float64   `json:"positionY"`
	IsAvailable     bool      `json:"isAvailable"`
	BookingUserInfo *Occupant `json:"bookingUserInfo"`
	Description     *string   `json:"description"`
}

// SeatMap is the /seats/map payload.
type SeatMap struct {
	Areas []Area `json:"areas"`
}

// TimeSlot is a bookable window within a day.
type TimeSlot struct {
	ID        int64  `json:"id"`
	Name      string `json:"name,omitempty"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// Occupant identifies who holds a seat.
type Occupant struct {
	UserID    int64  `json:"userId"`
	UserName  string `json:"userName"`
	FullName  string `json:"fullName,omitempty"`
	BookingID *int64 `json:"bookingId,omitempty"`
}

// SeatAvailability is the per-seat result of an availability query.
type SeatAvailability struct {
	SeatID          int64     `json:"seatId"`
	SeatNumber      string    `json:"seatNumber"`
	IsAvailable     bool      `json:"isAvailable"`
	BookingUserInfo *Occupant `json:"bookingUserInfo"`
	GroupID         *int64    `json:"groupId"`
	BookingID       *int64    `json:"bookingId,omitempty"`
}

// AvailabilityQuery selects one (date, slot, area) combination.
type AvailabilityQuery struct {
	AreaID      int64  `json:"areaId,omitempty"`
	BookingDate string `json:"bookingDate"`
	TimeSlotID  int64  `json:"timeSlotId"`
}

// BatchAvailabilityItem is one slot's result in a batch availability reply.
type BatchAvailabilityItem struct {
	BookingDate string             `json:"bookingDate"`
	TimeSlotID  int64              `json:"timeSlotId"`
	AreaID      int64              `json:"areaId"`
	Seats       []SeatAvailability `json:"seats"`
}

// Invitation status values as sent by the backend.
const (
	InvitationPending  = "PENDING"
	InvitationAccepted = "ACCEPTED"
	InvitationDeclined = "DECLINED"
	InvitationExpired  = "EXPIRED"
)

// Partner is an invited co-booker attached to a booking.
type Partner struct {
	ID               int64   `json:"id"`
	BookingID        int64   `json:"bookingId"`
	PartnerUserID    int64   `json:"partnerUserId"`
	InviterUserID    int64   `json:"inviterUserId"`
	PartnerName      string  `json:"partnerName"`
	InvitationStatus string  `json:"invitationStatus"`
	InvitedAt        string  `json:"invitedAt"`
	RespondedAt      *string `json:"respondedAt"`
	Seat             string  `json:"seat,omitempty"`
	TimeSlots        []int64 `json:"timeSlots,omitempty"`
}

// TimeSlotDetail is one (date, slot) entry of a multi-slot booking.
type TimeSlotDetail struct {
	ID              int64  `json:"id"`
	BookingDate     string `json:"bookingDate"`
	TimeSlotID      int64  `json:"timeSlotId"`
	TimeSlotName    string `json:"timeSlotName"`
	StartTime       string `json:"startTime"`
	EndTime         string `json:"endTime"`
	CreditsRequired int    `json:"creditsRequired"`
	SlotStatus      string `json:"slotStatus"`
	BookingID       int64  `json:"bookingId"`
	SeatID          int64  `json:"seatId"`
	AreaID          int64  `json:"areaId"`
	SeatNumber      string `json:"seatNumber"`
}

// Booking is a reservation owned by the current user.
type Booking struct {
	ID              int64            `json:"id"`
	UserID          int64            `json:"userId"`
	SeatID          int64            `json:"seatId"`
	SeatNumber      string           `json:"seatNumber"`
	AreaName        string           `json:"areaName"`
	BookingDate     string           `json:"bookingDate"`
	TimeSlotID      int64            `json:"timeSlotId"`
	TimeSlotName    string           `json:"timeSlotName"`
	StartTime       string           `json:"startTime"`
	EndTime         string           `json:"endTime"`
	Status          string           `json:"status"`
	CreditsUsed     int              `json:"creditsUsed"`
	CreatedAt       string           `json:"createdAt"`
	Partners        []Partner        `json:"partners"`
	TimeSlotDetails []TimeSlotDetail `json:"timeSlotDetails,omitempty"`
	GroupID         *int64           `json:"groupId,omitempty"`
}

// BookingList is the /bookings payload.
type BookingList struct {
	Bookings []Booking `json:"bookings"`
	Total    int       `json:"total"`
}

// SlotRequest names one slot of a booking request.
type SlotRequest struct {
	BookingDate string `json:"bookingDate"`
	TimeSlotID  int64  `json:"timeSlotId"`
}

// PartnerInvite asks the backend to invite a user onto a seat.
type PartnerInvite struct {
	UserID   string `json:"userId"`
	OpenID   string `json:"openId"`
	Username string `json:"username"`
	SeatID   int64  `json:"seatId"`
}

// CreateBookingRequest is the POST /bookings payload.
type CreateBookingRequest struct {
	AreaID         int64           `json:"areaId"`
	SeatID         int64           `json:"seatId"`
	TimeSlots      []SlotRequest   `json:"timeSlots"`
	InvitePartners []PartnerInvite `json:"invitePartners,omitempty"`
}

// CreateBookingResponse is the POST /bookings reply.
type CreateBookingResponse struct {
	BookingID int64            `json:"bookingId"`
	GroupID   int64            `json:"groupId"`
	TimeSlots []TimeSlotDetail `json:"timeSlots"`
}

// SwapSeatRequest moves a booking to another seat.
type SwapSeatRequest struct {
	BookingID      int64           `json:"bookingId"`
	NewSeatID      int64           `json:"newSeatId"`
	InvitePartners []PartnerInvite `json:"invitePartners,omitempty"`
}

// SwapSeatResponse is the PUT /bookings/swap-seat reply.
type SwapSeatResponse struct {
	BookingID int64  `json:"bookingId"`
	NewSeatID int64  `json:"newSeatId"`
	Message   string `json:"message,omitempty"`
}

// Credits is the user's credit balance.
type Credits struct {
	Credits int `json:"credits"`
}

// Transaction is one credit movement.
type Transaction struct {
	ID        int64  `json:"id"`
	Amount    int    `json:"amount"`
	Type      string `json:"type"`
	CreatedAt string `json:"createdAt"`
}

// TransactionList is the /users/me/transactions payload.
type TransactionList struct {
	Transactions []Transaction `json:"transactions"`
	Total        int           `json:"total"`
}

// InvitationUser is the inviter of an invitation.
type InvitationUser struct {
	UserID   int64  `json:"userId"`
	FullName string `json:"fullName"`
}

// InvitationSeat is the seat an invitation points at.
type InvitationSeat struct {
	SeatNumber string `json:"seatNumber"`
	AreaName   string `json:"areaName"`
}

// InvitationSlot is the time slot an invitation points at.
type InvitationSlot struct {
	ID   int64  `json:"id"`
	Time string `json:"time"`
}

// Invitation is an upcoming partner invitation addressed to the current user.
type Invitation struct {
	ID          int64          `json:"id"`
	Inviter     InvitationUser `json:"inviter"`
	Seat        InvitationSeat `json:"seat"`
	BookingDate string         `json:"bookingDate"`
	TimeSlot    InvitationSlot `json:"timeSlot"`
	Status      string         `json:"status"`
}

// CreateAreaRequest is the admin payload for a new area.
type CreateAreaRequest struct {
	Name        string `json:"name"`
	NameZh      string `json:"nameZh"`
	AreaType    string `json:"areaType"`
	Capacity    int    `json:"capacity"`
	Description string `json:"description,omitempty"`
}

// CreateSeatRequest is one seat of an admin bulk create.
type CreateSeatRequest struct {
	SeatNumber  string  `json:"seatNumber"`
	Table       string  `json:"table"`
	AreaID      int64   `json:"areaId"`
	RowNum      int     `json:"rowNum"`
	ColumnNum   int     `json:"columnNum"`
	PositionX   float64 `json:"positionX"`
	PositionY   float64 `json:"positionY"`
	Description string  `json:"description"`
}
