package auth

import (
	"time"
)

type Role string

const (
	RoleStartup  Role = "startup"
	RoleInvestor Role = "investor"
)

func (r Role) Valid() bool {
	return r == RoleStartup || r == RoleInvestor
}

type User struct {
	ID           uint   `gorm:"primaryKey"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	FirstName    string `gorm:"not null"`
	LastName     string `gorm:"not null"`
	Role         Role   `gorm:"type:varchar(16);not null"`
	IsActive     bool   `gorm:"not null;default:true"`
	// ResetToken holds the SHA-256 digest of the emailed token, never the token itself.
	ResetToken        *string `gorm:"index"`
	ResetTokenExpiry  *time.Time
	PasswordChangedAt *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (User) TableName() string {
	return "users"
}

type StartupProfile struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"uniqueIndex;not null" json:"userId"`
	CompanyName string    `gorm:"not null" json:"companyName"`
	Industry    string    `json:"industry"`
	Stage       string    `json:"stage"`
	FundingGoal int64     `json:"fundingGoal"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (StartupProfile) TableName() string {
	return "startup_profiles"
}

type InvestorProfile struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          uint      `gorm:"uniqueIndex;not null" json:"userId"`
	FirmName        string    `gorm:"not null" json:"firmName"`
	InvestmentFocus string    `json:"investmentFocus"`
	MinInvestment   int64     `json:"minInvestment"`
	MaxInvestment   int64     `json:"maxInvestment"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func (InvestorProfile) TableName() string {
	return "investor_profiles"
}

// Profile is the role-specific row created alongside a User. Exactly one of
// the two pointers is set, matching the user's role.
type Profile struct {
	Startup  *StartupProfile  `json:"startup,omitempty"`
	Investor *InvestorProfile `json:"investor,omitempty"`
}

// ProfileFields are the optional business fields accepted at registration.
type ProfileFields struct {
	CompanyName     string `json:"companyName"`
	Industry        string `json:"industry"`
	Stage           string `json:"stage"`
	FundingGoal     int64  `json:"fundingGoal"`
	Description     string `json:"description"`
	FirmName        string `json:"firmName"`
	InvestmentFocus string `json:"investmentFocus"`
	MinInvestment   int64  `json:"minInvestment"`
	MaxInvestment   int64  `json:"maxInvestment"`
}

// newProfile builds the profile row for role, filling placeholders where the
// caller left business fields empty.
func newProfile(role Role, firstName, lastName string, f ProfileFields) Profile {
	switch role {
	case RoleStartup:
		p := &StartupProfile{
			CompanyName: f.CompanyName,
			Industry:    f.Industry,
			Stage:       f.Stage,
			FundingGoal: f.FundingGoal,
			Description: f.Description,
		}
		if p.CompanyName == "" {
			p.CompanyName = firstName + " " + lastName + "'s Startup"
		}
		if p.Industry == "" {
			p.Industry = "Technology"
		}
		if p.Stage == "" {
			p.Stage = "idea"
		}
		return Profile{Startup: p}
	default:
		p := &InvestorProfile{
			FirmName:        f.FirmName,
			InvestmentFocus: f.InvestmentFocus,
			MinInvestment:   f.MinInvestment,
			MaxInvestment:   f.MaxInvestment,
		}
		if p.FirmName == "" {
			p.FirmName = firstName + " " + lastName + " Capital"
		}
		if p.InvestmentFocus == "" {
			p.InvestmentFocus = "General"
		}
		return Profile{Investor: p}
	}
}

// UserSummary is the client-facing view of a User; it never carries the
// password digest or reset token.
type UserSummary struct {
	ID        uint      `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Role      Role      `json:"role"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}
