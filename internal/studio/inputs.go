package studio

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ClientFields are the caller-supplied attributes of a client.
type ClientFields struct {
	Name       string   `json:"name"`
	Email      string   `json:"email"`
	Phone      string   `json:"phone,omitempty"`
	Address    string   `json:"address,omitempty"`
	FamilyType string   `json:"family_type,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	Notes      string   `json:"notes,omitempty"`
}

// Normalized trims whitespace from every text field.
func (f ClientFields) Normalized() ClientFields {
	f.Name = strings.TrimSpace(f.Name)
	f.Email = strings.TrimSpace(f.Email)
	f.Phone = strings.TrimSpace(f.Phone)
	f.Address = strings.TrimSpace(f.Address)
	f.FamilyType = strings.TrimSpace(f.FamilyType)
	f.Notes = strings.TrimSpace(f.Notes)
	if f.Tags != nil {
		tags := make([]string, 0, len(f.Tags))
		for _, t := range f.Tags {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
		f.Tags = tags
	}
	return f
}

// Validate requires a name or an email and a plausible email shape.
func (f ClientFields) Validate() error {
	f = f.Normalized()
	if f.Name == "" && f.Email == "" {
		return Invalid("client", "name or email is required")
	}
	if f.Email != "" && !validEmail(f.Email) {
		return Invalid("client.email", "malformed address")
	}
	return nil
}

// ClientPatch updates only the non-nil fields of a client.
type ClientPatch struct {
	Name       *string   `json:"name,omitempty"`
	Email      *string   `json:"email,omitempty"`
	Phone      *string   `json:"phone,omitempty"`
	Address    *string   `json:"address,omitempty"`
	FamilyType *string   `json:"family_type,omitempty"`
	Tags       *[]string `json:"tags,omitempty"`
	Notes      *string   `json:"notes,omitempty"`
}

// Apply copies the supplied fields onto c. Aggregate metrics are never patched.
func (p ClientPatch) Apply(c *Client, now time.Time) error {
	next := c.Clone()
	if p.Name != nil {
		next.Name = strings.TrimSpace(*p.Name)
	}
	if p.Email != nil {
		next.Email = strings.TrimSpace(*p.Email)
	}
	if p.Phone != nil {
		next.Phone = strings.TrimSpace(*p.Phone)
	}
	if p.Address != nil {
		next.Address = strings.TrimSpace(*p.Address)
	}
	if p.FamilyType != nil {
		next.FamilyType = strings.TrimSpace(*p.FamilyType)
	}
	if p.Tags != nil {
		next.Tags = ClientFields{Tags: *p.Tags}.Normalized().Tags
	}
	if p.Notes != nil {
		next.Notes = *p.Notes
	}
	if err := (ClientFields{Name: next.Name, Email: next.Email}).Validate(); err != nil {
		return err
	}
	next.UpdatedAt = now
	*c = next
	return nil
}

// NewAppointment is the closed set of inputs accepted when booking.
type NewAppointment struct {
	// ClientID books for an existing client; otherwise Client is resolved by email.
	ClientID          *uuid.UUID    `json:"client_id,omitempty"`
	Client            ClientFields  `json:"client"`
	StartTime         time.Time     `json:"start_time"`
	SessionType       string        `json:"session_type"`
	Milestone         string        `json:"milestone,omitempty"`
	Duration          *int          `json:"duration,omitempty"`
	EndTime           *time.Time    `json:"end_time,omitempty"`
	SessionFee        float64       `json:"session_fee"`
	AdditionalCharges float64       `json:"additional_charges"`
	Discount          float64       `json:"discount"`
	TotalAmount       *float64      `json:"total_amount,omitempty"`
	PaymentStatus     PaymentStatus `json:"payment_status,omitempty"`
	Location          string        `json:"location,omitempty"`
	Notes             string        `json:"notes,omitempty"`
}

// Build validates the input and returns an appointment with its derived
// fields filled in. defaultDuration applies when no duration or end time is given.
func (in NewAppointment) Build(defaultDuration int, now time.Time) (*Appointment, error) {
	if in.ClientID == nil {
		if err := in.Client.Validate(); err != nil {
			return nil, err
		}
	}
	sessionType := strings.TrimSpace(in.SessionType)
	if sessionType == "" {
		return nil, Invalid("session_type", "required")
	}
	if in.StartTime.IsZero() {
		return nil, Invalid("start_time", "required")
	}
	if err := validateMoney(in.SessionFee, in.AdditionalCharges, in.Discount); err != nil {
		return nil, err
	}

	paymentStatus := in.PaymentStatus
	if paymentStatus == "" {
		paymentStatus = PaymentPending
	}
	if !paymentStatus.Valid() {
		return nil, Invalid("payment_status", "unknown value "+string(paymentStatus))
	}

	duration := defaultDuration
	var end time.Time
	switch {
	case in.Duration != nil:
		duration = *in.Duration
		if duration <= 0 {
			return nil, Invalid("duration", "must be positive")
		}
		end = EndTime(in.StartTime, duration)
	case in.EndTime != nil:
		duration = int(in.EndTime.Sub(in.StartTime) / time.Minute)
	default:
		if duration <= 0 {
			return nil, Invalid("duration", "no default duration configured")
		}
		end = EndTime(in.StartTime, duration)
	}
	if in.EndTime != nil {
		if !in.EndTime.After(in.StartTime) {
			return nil, Invalid("end_time", "must be after start_time")
		}
		end = *in.EndTime
	}

	total := TotalAmount(in.SessionFee, in.AdditionalCharges, in.Discount)
	if in.TotalAmount != nil {
		total = *in.TotalAmount
	}
	if total < 0 {
		return nil, Invalid("total_amount", "must not be negative")
	}

	client := in.Client.Normalized()
	return &Appointment{
		ID:                uuid.New(),
		ClientID:          in.ClientID,
		ClientName:        client.Name,
		ClientEmail:       client.Email,
		StartTime:         in.StartTime,
		EndTime:           end,
		Duration:          duration,
		SessionType:       sessionType,
		Milestone:         strings.TrimSpace(in.Milestone),
		SessionFee:        in.SessionFee,
		AdditionalCharges: in.AdditionalCharges,
		Discount:          in.Discount,
		TotalAmount:       total,
		PaymentStatus:     paymentStatus,
		Status:            StatusConfirmed,
		Location:          strings.TrimSpace(in.Location),
		Notes:             in.Notes,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// AppointmentPatch updates only the non-nil fields of an appointment.
type AppointmentPatch struct {
	StartTime         *time.Time         `json:"start_time,omitempty"`
	Duration          *int               `json:"duration,omitempty"`
	EndTime           *time.Time         `json:"end_time,omitempty"`
	SessionType       *string            `json:"session_type,omitempty"`
	Milestone         *string            `json:"milestone,omitempty"`
	SessionFee        *float64           `json:"session_fee,omitempty"`
	AdditionalCharges *float64           `json:"additional_charges,omitempty"`
	Discount          *float64           `json:"discount,omitempty"`
	TotalAmount       *float64           `json:"total_amount,omitempty"`
	PaymentStatus     *PaymentStatus     `json:"payment_status,omitempty"`
	Status            *AppointmentStatus `json:"status,omitempty"`
	Location          *string            `json:"location,omitempty"`
	Notes             *string            `json:"notes,omitempty"`
}

// PatchResult reports which derived groups an applied patch touched.
type PatchResult struct {
	TimesChanged  bool
	AmountChanged bool
}

// Apply merges the patch into a. End time and total are recomputed only when
// their inputs changed and no explicit override was supplied. On error a is
// left untouched.
func (p AppointmentPatch) Apply(a *Appointment, now time.Time) (PatchResult, error) {
	next := a.Clone()
	var res PatchResult

	timeInputs := false
	if p.StartTime != nil && !p.StartTime.Equal(next.StartTime) {
		next.StartTime = *p.StartTime
		timeInputs = true
	}
	if p.Duration != nil && *p.Duration != next.Duration {
		if *p.Duration <= 0 {
			return res, Invalid("duration", "must be positive")
		}
		next.Duration = *p.Duration
		timeInputs = true
	}
	if p.EndTime != nil {
		if !p.EndTime.Equal(next.EndTime) {
			res.TimesChanged = true
		}
		next.EndTime = *p.EndTime
		if p.Duration == nil {
			next.Duration = int(next.EndTime.Sub(next.StartTime) / time.Minute)
		}
	} else if timeInputs {
		next.EndTime = EndTime(next.StartTime, next.Duration)
	}
	if timeInputs {
		res.TimesChanged = true
	}
	if !next.EndTime.After(next.StartTime) {
		return PatchResult{}, Invalid("end_time", "must be after start_time")
	}

	moneyInputs := false
	if p.SessionFee != nil && *p.SessionFee != next.SessionFee {
		next.SessionFee = *p.SessionFee
		moneyInputs = true
	}
	if p.AdditionalCharges != nil && *p.AdditionalCharges != next.AdditionalCharges {
		next.AdditionalCharges = *p.AdditionalCharges
		moneyInputs = true
	}
	if p.Discount != nil && *p.Discount != next.Discount {
		next.Discount = *p.Discount
		moneyInputs = true
	}
	if err := validateMoney(next.SessionFee, next.AdditionalCharges, next.Discount); err != nil {
		return PatchResult{}, err
	}
	if p.TotalAmount != nil {
		res.AmountChanged = *p.TotalAmount != next.TotalAmount
		next.TotalAmount = *p.TotalAmount
	} else if moneyInputs {
		next.TotalAmount = TotalAmount(next.SessionFee, next.AdditionalCharges, next.Discount)
		res.AmountChanged = true
	}
	if next.TotalAmount < 0 {
		return PatchResult{}, Invalid("total_amount", "must not be negative")
	}

	if p.SessionType != nil {
		st := strings.TrimSpace(*p.SessionType)
		if st == "" {
			return PatchResult{}, Invalid("session_type", "required")
		}
		next.SessionType = st
	}
	if p.Milestone != nil {
		next.Milestone = strings.TrimSpace(*p.Milestone)
	}
	if p.PaymentStatus != nil {
		if !p.PaymentStatus.Valid() {
			return PatchResult{}, Invalid("payment_status", "unknown value "+string(*p.PaymentStatus))
		}
		next.PaymentStatus = *p.PaymentStatus
	}
	if p.Status != nil && *p.Status != next.Status {
		if !next.Status.CanTransition(*p.Status) {
			return PatchResult{}, Invalid("status", "cannot move from "+string(next.Status)+" to "+string(*p.Status))
		}
		next.Status = *p.Status
	}
	if p.Location != nil {
		next.Location = strings.TrimSpace(*p.Location)
	}
	if p.Notes != nil {
		next.Notes = *p.Notes
	}

	next.UpdatedAt = now
	*a = next
	return res, nil
}

// EndTime is start plus duration minutes.
func EndTime(start time.Time, durationMinutes int) time.Time {
	return start.Add(time.Duration(durationMinutes) * time.Minute)
}

// TotalAmount is the fee plus additional charges minus the discount.
func TotalAmount(fee, charges, discount float64) float64 {
	return fee + charges - discount
}

func validateMoney(fee, charges, discount float64) error {
	switch {
	case fee < 0:
		return Invalid("session_fee", "must not be negative")
	case charges < 0:
		return Invalid("additional_charges", "must not be negative")
	case discount < 0:
		return Invalid("discount", "must not be negative")
	}
	return nil
}

func validEmail(email string) bool {
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t\n")
}
